// Package scripthost runs scripts as a resident, multi-client service:
// each connection gets its own compiled script and VM, addressable by a
// reconnectable session ID so a client can drop and resume an
// input-blocked script. Sessions are tracked in a sessionID-keyed
// registry guarded by one mutex, with the same front end handed both a
// websocket and a plain TCP listener.
package scripthost

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/antibyte/hspc/pkg/hlog"
	"github.com/antibyte/hspc/pkg/hsp"
	"github.com/antibyte/hspc/pkg/scriptauth"
)

// maxOutputBuffer bounds the number of pending output chunks queued for
// a connection that has fallen behind or briefly detached.
const maxOutputBuffer = 256

// Session is one running script: its own Environment and VM goroutine,
// an output channel fed by the VM's writes, and a pipe the attached
// connection's incoming lines are written into to satisfy the VM's
// blocking input reads.
type Session struct {
	ID string

	mu      sync.Mutex
	attached bool

	out    chan []byte
	inPipe *io.PipeWriter
	done   chan struct{}
	err    error
}

// broadcastWriter adapts Session.out to the io.Writer the VM's mes/
// input traffic writes to.
type broadcastWriter struct{ sess *Session }

func (w *broadcastWriter) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	select {
	case w.sess.out <- cp:
	default:
		hlog.WarnLog(hlog.AreaHost, "session %s output buffer full, dropping chunk", w.sess.ID)
	}
	return len(p), nil
}

// Manager is the sessionID->*Session registry: a map guarded by one
// RWMutex, with lookup by session token and remove/count by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// StartSession compiles source and begins executing it on a background
// goroutine, returning the new session and a bearer token a client can
// present later to Attach to it.
func (m *Manager) StartSession(source string) (*Session, string, error) {
	env := hsp.NewEnvironment()
	if err := env.LoadScript(source); err != nil {
		return nil, "", err
	}

	id := scriptauth.NewSessionID()
	token, err := scriptauth.IssueToken(id)
	if err != nil {
		return nil, "", err
	}

	pr, pw := io.Pipe()
	sess := &Session{
		ID:     id,
		out:    make(chan []byte, maxOutputBuffer),
		inPipe: pw,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	go func() {
		defer close(sess.done)
		defer close(sess.out)
		sess.err = env.Execute(&broadcastWriter{sess: sess}, pr)
		if sess.err != nil {
			hlog.ErrorLog(hlog.AreaHost, "session %s finished with error: %v", id, sess.err)
		} else {
			hlog.InfoLog(hlog.AreaHost, "session %s finished", id)
		}
	}()

	return sess, token, nil
}

// Lookup validates token and returns the session it names.
func (m *Manager) Lookup(token string) (*Session, error) {
	claims, err := scriptauth.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	sess, ok := m.sessions[claims.SessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scripthost: no session for token")
	}
	return sess, nil
}

// Remove drops a finished session from the registry.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Attach claims exclusive ownership of the session's output stream and
// feeds it to w until the session ends or detach is closed; every line
// received on lines is written to the session's input pipe. Only one
// connection may be attached to a session at a time.
func (sess *Session) Attach(w io.Writer, lines <-chan string, detach <-chan struct{}) error {
	sess.mu.Lock()
	if sess.attached {
		sess.mu.Unlock()
		return fmt.Errorf("scripthost: session %s already has an attached client", sess.ID)
	}
	sess.attached = true
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		sess.attached = false
		sess.mu.Unlock()
	}()

	writeErrs := make(chan error, 1)
	go func() {
		for line := range lines {
			if _, err := sess.inPipe.Write([]byte(line + "\n")); err != nil {
				writeErrs <- err
				return
			}
		}
	}()

	for {
		select {
		case chunk, ok := <-sess.out:
			if !ok {
				return sess.err
			}
			if _, err := w.Write(chunk); err != nil {
				return err
			}
		case err := <-writeErrs:
			return err
		case <-detach:
			return nil
		case <-sess.done:
			// Drain whatever output remains buffered before reporting done.
			for {
				select {
				case chunk, ok := <-sess.out:
					if !ok {
						return sess.err
					}
					if _, err := w.Write(chunk); err != nil {
						return err
					}
				default:
					return sess.err
				}
			}
		}
	}
}

// Wait blocks until the session's script has finished running.
func (sess *Session) Wait() error {
	<-sess.done
	return sess.err
}

// drainLine is a small helper used by both front ends to turn a raw
// byte slice into a trimmed line, stripping a trailing CR the way a
// telnet-style client commonly sends it.
func drainLine(b []byte) string {
	return string(bytes.TrimRight(b, "\r\n"))
}
