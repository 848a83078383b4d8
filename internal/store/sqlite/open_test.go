package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_UnreachablePath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "lectora.db")
	s, err := Open(context.Background(), path)
	if err == nil {
		s.Close()
		t.Fatal("Open: expected error for a path in a missing directory")
	}
	if !strings.HasPrefix(err.Error(), "sqlite store:") {
		t.Errorf("Open error = %q, want sqlite store prefix", err)
	}
}

func TestCloseOnErr(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	cause := errors.New("pragma failed")

	got := closeOnErr(db, cause)
	if !errors.Is(got, cause) {
		t.Errorf("closeOnErr = %v, want it to wrap the cause", got)
	}
	if err := db.Ping(); err == nil {
		t.Error("Ping after closeOnErr: expected error from a closed database")
	}
}
