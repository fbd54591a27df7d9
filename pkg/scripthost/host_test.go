package scripthost

import (
	"bytes"
	"testing"
	"time"
)

func TestStartSessionRunsToCompletion(t *testing.T) {
	m := NewManager()

	sess, token, err := m.StartSession(`mes "hi"`)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if token == "" {
		t.Error("StartSession() returned empty token")
	}

	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestLookupFindsRunningSession(t *testing.T) {
	m := NewManager()

	_, token, err := m.StartSession(`input a, 80`)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	sess, err := m.Lookup(token)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if sess.ID == "" {
		t.Error("Lookup() returned session with empty ID")
	}

	m.Remove(sess.ID)
	if m.Count() != 0 {
		t.Errorf("Count() = %d after Remove, want 0", m.Count())
	}
}

func TestLookupRejectsUnknownToken(t *testing.T) {
	m := NewManager()

	if _, err := m.Lookup("garbage"); err == nil {
		t.Error("Lookup() with garbage token returned nil error")
	}
}

func TestAttachStreamsOutputThenDetaches(t *testing.T) {
	m := NewManager()

	sess, _, err := m.StartSession(`mes "one"
mes "two"`)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	var out bytes.Buffer
	lines := make(chan string)
	detach := make(chan struct{})
	close(lines)

	done := make(chan error, 1)
	go func() { done <- sess.Attach(&out, lines, detach) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Attach() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Attach() did not return in time")
	}

	if out.Len() == 0 {
		t.Error("Attach() produced no output")
	}
}

func TestAttachRefusesSecondConcurrentClient(t *testing.T) {
	m := NewManager()

	sess, _, err := m.StartSession(`input a, 80`)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	lines1 := make(chan string)
	detach1 := make(chan struct{})
	attached := make(chan struct{})
	go func() {
		close(attached)
		sess.Attach(&bytes.Buffer{}, lines1, detach1)
	}()
	<-attached
	time.Sleep(20 * time.Millisecond)

	lines2 := make(chan string)
	detach2 := make(chan struct{})
	close(lines2)
	if err := sess.Attach(&bytes.Buffer{}, lines2, detach2); err == nil {
		t.Error("second Attach() on an already-attached session returned nil error")
	}

	close(detach1)
}
