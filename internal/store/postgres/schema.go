// Package postgres is a [store.Store] backed by PostgreSQL through a
// [pgxpool.Pool].
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//
//	err = s.InTx(ctx, func(tx store.Tx) error {
//		id, err := tx.CreateEvaluation(ctx, ev)
//		…
//	})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlRoster = `
CREATE TABLE IF NOT EXISTS students (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    grade       INTEGER      NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contents (
    id          TEXT         PRIMARY KEY,
    title       TEXT         NOT NULL DEFAULT '',
    body        TEXT         NOT NULL,
    level       INTEGER      NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id                TEXT              PRIMARY KEY,
    student_id        TEXT              NOT NULL REFERENCES students (id),
    content_id        TEXT              NOT NULL REFERENCES contents (id),
    transcript        TEXT              NOT NULL DEFAULT '',
    audio_ref         TEXT              NOT NULL DEFAULT '',
    duration_ns       BIGINT            NOT NULL DEFAULT 0,
    accuracy          DOUBLE PRECISION  NOT NULL,
    raw_accuracy      DOUBLE PRECISION  NOT NULL,
    words_per_minute  DOUBLE PRECISION  NOT NULL,
    error_count       INTEGER           NOT NULL,
    tier              TEXT              NOT NULL DEFAULT '',
    status            TEXT              NOT NULL,
    created_at        TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_student
    ON evaluations (student_id, created_at);

CREATE TABLE IF NOT EXISTS error_details (
    id             TEXT              PRIMARY KEY,
    evaluation_id  TEXT              NOT NULL REFERENCES evaluations (id) ON DELETE CASCADE,
    kind           TEXT              NOT NULL,
    expected       TEXT              NOT NULL DEFAULT '',
    observed       TEXT              NOT NULL DEFAULT '',
    position       INTEGER           NOT NULL,
    severity       INTEGER           NOT NULL,
    similarity     DOUBLE PRECISION  NOT NULL DEFAULT 0,
    word_accuracy  DOUBLE PRECISION  NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_error_details_evaluation
    ON error_details (evaluation_id);
`

const ddlExercises = `
CREATE TABLE IF NOT EXISTS practice_exercises (
    id             TEXT         PRIMARY KEY,
    student_id     TEXT         NOT NULL REFERENCES students (id),
    evaluation_id  TEXT         NOT NULL REFERENCES evaluations (id) ON DELETE CASCADE,
    kind           TEXT         NOT NULL,
    source_kind    TEXT         NOT NULL,
    target_words   TEXT[]       NOT NULL,
    instructions   TEXT         NOT NULL,
    difficulty     INTEGER      NOT NULL,
    completed      BOOLEAN      NOT NULL DEFAULT false,
    attempts       INTEGER      NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    completed_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_practice_exercises_student
    ON practice_exercises (student_id, completed);

CREATE TABLE IF NOT EXISTS practice_fragments (
    id            TEXT     PRIMARY KEY,
    exercise_id   TEXT     NOT NULL REFERENCES practice_exercises (id) ON DELETE CASCADE,
    text          TEXT     NOT NULL,
    word          TEXT     NOT NULL,
    start_offset  INTEGER  NOT NULL,
    end_offset    INTEGER  NOT NULL,
    error_kind    TEXT     NOT NULL,
    completed     BOOLEAN  NOT NULL DEFAULT false,
    improved      BOOLEAN  NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_practice_fragments_exercise
    ON practice_fragments (exercise_id);
`

// Migrate creates or ensures all required tables exist. It is idempotent
// and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlRoster, ddlEvaluations, ddlExercises} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
