package scriptstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scripts.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save("hello", "mes \"hi\"", "", "", ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load("hello")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "mes \"hi\"" {
		t.Errorf("Load() = %q, want %q", got, "mes \"hi\"")
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Load("nope"); err != ErrNotFound {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSaveWithPassphraseLocksFutureSaves(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save("locked", "mes 1", "", "", "secret"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := s.Save("locked", "mes 2", "", "wrong", ""); err != ErrLocked {
		t.Errorf("Save() with wrong passphrase error = %v, want ErrLocked", err)
	}

	if err := s.Save("locked", "mes 2", "", "secret", ""); err != nil {
		t.Errorf("Save() with correct passphrase error = %v, want nil", err)
	}

	got, err := s.Load("locked")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "mes 2" {
		t.Errorf("Load() = %q, want %q", got, "mes 2")
	}
}

func TestDeleteRespectsPassphrase(t *testing.T) {
	s := openTestStore(t)

	if err := s.Save("locked", "mes 1", "", "", "secret"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := s.Delete("locked", "wrong"); err != ErrLocked {
		t.Errorf("Delete() with wrong passphrase error = %v, want ErrLocked", err)
	}

	if err := s.Delete("locked", "secret"); err != nil {
		t.Errorf("Delete() with correct passphrase error = %v, want nil", err)
	}

	if _, err := s.Load("locked"); err != ErrNotFound {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}
}

func TestListReturnsNamesAlphabetically(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"zebra", "apple", "mango"} {
		if err := s.Save(name, "mes 1", "", "", ""); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"apple", "mango", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
