// Package sqlite is a [store.Store] backed by an embedded SQLite database
// through the pure-Go modernc.org/sqlite driver.
//
// The store keeps a single open connection: SQLite serializes writers anyway,
// and one connection guarantees the pragmas apply to every statement.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/lectora/internal/store"
)

// Compile-time interface checks.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*txConn)(nil)
)

// Store is a SQLite-backed [store.Store].
type Store struct {
	conn
	db *sql.DB
}

// Open opens (creating if needed) the database at path, applies pragmas and
// runs [Migrate]. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		return nil, closeOnErr(db, err)
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, closeOnErr(db, err)
	}
	return &Store{conn: conn{q: db}, db: db}, nil
}

// closeOnErr closes db after a failed Open and joins any close error to err.
func closeOnErr(db *sql.DB, err error) error {
	err = fmt.Errorf("sqlite store: %w", err)
	if cErr := db.Close(); cErr != nil {
		return errors.Join(err, fmt.Errorf("sqlite store: close: %w", cErr))
	}
	return err
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx implements [store.Store].
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	if err := fn(&txConn{conn{q: tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("sqlite store: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit: %w", err)
	}
	return nil
}

// PutStudent implements [store.Store].
func (s *Store) PutStudent(ctx context.Context, st store.Student) (store.Student, error) {
	if st.ID == "" {
		st.ID = store.NewID()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO students (id, name, grade, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, grade = excluded.grade`
	if _, err := s.db.ExecContext(ctx, q, st.ID, st.Name, st.Grade, toUnix(st.CreatedAt)); err != nil {
		return store.Student{}, fmt.Errorf("sqlite store: put student: %w", err)
	}
	return st, nil
}

// PutContent implements [store.Store].
func (s *Store) PutContent(ctx context.Context, c store.Content) (store.Content, error) {
	if c.ID == "" {
		c.ID = store.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO contents (id, title, body, level, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, body = excluded.body, level = excluded.level`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.Title, c.Text, c.Level, toUnix(c.CreatedAt)); err != nil {
		return store.Content{}, fmt.Errorf("sqlite store: put content: %w", err)
	}
	return c, nil
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(ns int64) time.Time { return time.Unix(0, ns).UTC() }
