package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "facegate.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNew_Schema(t *testing.T) {
	s := newTestStore(t)

	objects := []struct {
		kind, name string
	}{
		{"table", "enrollments"},
		{"table", "enrollment_descriptors"},
		{"table", "verifications"},
		{"table", "settings"},
		{"index", "idx_enrollment_descriptors_enrollment_id"},
		{"index", "idx_verifications_enrollment_id"},
	}
	for _, o := range objects {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", o.kind, o.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %q missing: %v", o.kind, o.name, err)
		}
	}

	v, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion() = %d, want %d", v, len(migrations))
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "facegate.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Settings().Set("k", "v"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.Settings().Get("k")
	if err != nil || got != "v" {
		t.Errorf("Get() = %q, %v; want \"v\"", got, err)
	}
}

func TestNew_RejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "facegate.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.DB().Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)+1)); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if s, err := New(dbPath); err == nil {
		s.Close()
		t.Fatal("New() should fail on a newer schema")
	}
}

func TestStore_Pragmas(t *testing.T) {
	s := newTestStore(t)

	pragmas := map[string]int{
		"foreign_keys": 1,
		"busy_timeout": 5000,
	}
	for pragma, want := range pragmas {
		var got int
		if err := s.DB().QueryRow("PRAGMA " + pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", pragma, err)
		}
		if got != want {
			t.Errorf("PRAGMA %s = %d, want %d", pragma, got, want)
		}
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "facegate.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("queries should fail after Close()")
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	boom := errors.New("boom")

	err := withTx(s.DB(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES ('a', '1')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("withTx() error = %v, want boom", err)
	}

	if _, err := s.Settings().Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after rollback error = %v, want ErrNotFound", err)
	}
}
