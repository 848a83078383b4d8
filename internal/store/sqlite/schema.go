package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as Unix nanoseconds in UTC; durations as
// nanoseconds. Target word lists are JSON arrays.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id         TEXT    PRIMARY KEY,
		name       TEXT    NOT NULL,
		grade      INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contents (
		id         TEXT    PRIMARY KEY,
		title      TEXT    NOT NULL DEFAULT '',
		body       TEXT    NOT NULL,
		level      INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		id               TEXT    PRIMARY KEY,
		student_id       TEXT    NOT NULL REFERENCES students (id),
		content_id       TEXT    NOT NULL REFERENCES contents (id),
		transcript       TEXT    NOT NULL DEFAULT '',
		audio_ref        TEXT    NOT NULL DEFAULT '',
		duration_ns      INTEGER NOT NULL DEFAULT 0,
		accuracy         REAL    NOT NULL,
		raw_accuracy     REAL    NOT NULL,
		words_per_minute REAL    NOT NULL,
		error_count      INTEGER NOT NULL,
		tier             TEXT    NOT NULL DEFAULT '',
		status           TEXT    NOT NULL,
		created_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluations_student ON evaluations (student_id)`,
	`CREATE TABLE IF NOT EXISTS error_details (
		id            TEXT    PRIMARY KEY,
		evaluation_id TEXT    NOT NULL REFERENCES evaluations (id) ON DELETE CASCADE,
		kind          TEXT    NOT NULL,
		expected      TEXT    NOT NULL DEFAULT '',
		observed      TEXT    NOT NULL DEFAULT '',
		position      INTEGER NOT NULL,
		severity      INTEGER NOT NULL,
		similarity    REAL    NOT NULL DEFAULT 0,
		word_accuracy REAL    NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_error_details_evaluation ON error_details (evaluation_id)`,
	`CREATE TABLE IF NOT EXISTS practice_exercises (
		id            TEXT    PRIMARY KEY,
		student_id    TEXT    NOT NULL REFERENCES students (id),
		evaluation_id TEXT    NOT NULL REFERENCES evaluations (id) ON DELETE CASCADE,
		kind          TEXT    NOT NULL,
		source_kind   TEXT    NOT NULL,
		target_words  TEXT    NOT NULL,
		instructions  TEXT    NOT NULL,
		difficulty    INTEGER NOT NULL,
		completed     INTEGER NOT NULL DEFAULT 0,
		attempts      INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL,
		completed_at  INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_practice_exercises_student ON practice_exercises (student_id, completed)`,
	`CREATE TABLE IF NOT EXISTS practice_fragments (
		id           TEXT    PRIMARY KEY,
		exercise_id  TEXT    NOT NULL REFERENCES practice_exercises (id) ON DELETE CASCADE,
		text         TEXT    NOT NULL,
		word         TEXT    NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		error_kind   TEXT    NOT NULL,
		completed    INTEGER NOT NULL DEFAULT 0,
		improved     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_practice_fragments_exercise ON practice_fragments (exercise_id)`,
}

// Migrate creates every table and index that does not exist yet. It is
// idempotent and runs on every [Open].
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}
