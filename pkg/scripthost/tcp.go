package scripthost

import (
	"bufio"
	"fmt"
	"net"

	"github.com/antibyte/hspc/pkg/hlog"
)

// ServeTCP accepts connections on ln forever, handling each one on its
// own goroutine. Unlike the websocket front end there's no
// upgrade/origin handshake here, so this part is plain net/bufio.
func ServeTCP(m *Manager, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go m.handleTCPConn(conn)
	}
}

func (m *Manager) handleTCPConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)

	fmt.Fprint(conn, "script> ")
	if !scanner.Scan() {
		return
	}
	first := drainLine(scanner.Bytes())

	var sess *Session
	var err error
	if tok, ok := stripSessionPrefix(first); ok {
		sess, err = m.Lookup(tok)
	} else {
		var token string
		sess, token, err = m.StartSession(first)
		if err == nil {
			fmt.Fprintf(conn, "SESSION %s\n", token)
		}
	}
	if err != nil {
		fmt.Fprintf(conn, "ERROR: %v\n", err)
		return
	}

	lines := make(chan string)
	detach := make(chan struct{})
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- drainLine(scanner.Bytes())
		}
		close(detach)
	}()

	if err := sess.Attach(conn, lines, detach); err != nil {
		hlog.WarnLog(hlog.AreaHost, "session %s attach ended: %v", sess.ID, err)
	}
	select {
	case <-sess.done:
		m.Remove(sess.ID)
	default:
	}
}

func stripSessionPrefix(line string) (string, bool) {
	const prefix = "RESUME "
	if len(line) > len(prefix) && line[:len(prefix)] == prefix {
		return line[len(prefix):], true
	}
	return "", false
}
