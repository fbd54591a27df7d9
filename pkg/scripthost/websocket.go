package scripthost

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/antibyte/hspc/pkg/hlog"
)

var errNoToken = errors.New("no session token found in request")

// upgrader is intentionally permissive about origin: this host is
// meant to sit behind a caller-supplied reverse proxy that handles
// origin policy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a *websocket.Conn to the plain io.Writer Session.Attach
// wants, sending each chunk as its own text message.
type wsConn struct{ conn *websocket.Conn }

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// HandleWebSocket upgrades the request and either starts a new script
// session (when the "script" query parameter carries source text) or
// reattaches to an existing one named by a "session_token" bearer.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.WarnLog(hlog.AreaHost, "websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var sess *Session
	var token string
	if src := r.URL.Query().Get("script"); src != "" {
		sess, token, err = m.StartSession(src)
		if err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte("ERROR: "+err.Error()+"\n"))
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("SESSION "+token+"\n"))
	} else {
		tok, err := tokenFromWSRequest(r)
		if err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte("ERROR: "+err.Error()+"\n"))
			return
		}
		sess, err = m.Lookup(tok)
		if err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte("ERROR: "+err.Error()+"\n"))
			return
		}
	}

	lines := make(chan string)
	detach := make(chan struct{})
	go func() {
		defer close(lines)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(detach)
				return
			}
			lines <- drainLine(data)
		}
	}()

	if err := sess.Attach(&wsConn{conn: conn}, lines, detach); err != nil {
		hlog.WarnLog(hlog.AreaHost, "session %s attach ended: %v", sess.ID, err)
	}
	select {
	case <-sess.done:
		m.Remove(sess.ID)
	default:
	}
}

func tokenFromWSRequest(r *http.Request) (string, error) {
	if tok := r.URL.Query().Get("session_token"); tok != "" {
		return tok, nil
	}
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return authHeader, nil
	}
	return "", errNoToken
}
