package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// Compile-time interface checks.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*txConn)(nil)
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL-backed [store.Store]. All methods are safe for
// concurrent use.
type Store struct {
	conn
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{conn: conn{q: pool}, pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx implements [store.Store].
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&txConn{conn{q: tx}})
	})
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
		INSERT INTO students (id, name, grade, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, grade = EXCLUDED.grade`
	if _, err := s.pool.Exec(ctx, q, st.ID, st.Name, st.Grade, st.CreatedAt); err != nil {
		return store.Student{}, fmt.Errorf("postgres store: put student: %w", err)
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
		INSERT INTO contents (id, title, body, level, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, level = EXCLUDED.level`
	if _, err := s.pool.Exec(ctx, q, c.ID, c.Title, c.Text, c.Level, c.CreatedAt); err != nil {
		return store.Content{}, fmt.Errorf("postgres store: put content: %w", err)
	}
	return c, nil
}

// conn implements [store.Reader] over a pool or a transaction.
type conn struct {
	q dbtx
}

// txConn adds the write methods of [store.Tx].
type txConn struct {
	conn
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres store: %s %q: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("postgres store: get %s: %w", kind, err)
}

func (c *conn) GetStudent(ctx context.Context, id string) (store.Student, error) {
	var st store.Student
	err := c.q.QueryRow(ctx,
		`SELECT id, name, grade, created_at FROM students WHERE id = $1`, id,
	).Scan(&st.ID, &st.Name, &st.Grade, &st.CreatedAt)
	if err != nil {
		return store.Student{}, notFound("student", id, err)
	}
	return st, nil
}

func (c *conn) GetContent(ctx context.Context, id string) (store.Content, error) {
	var ct store.Content
	err := c.q.QueryRow(ctx,
		`SELECT id, title, body, level, created_at FROM contents WHERE id = $1`, id,
	).Scan(&ct.ID, &ct.Title, &ct.Text, &ct.Level, &ct.CreatedAt)
	if err != nil {
		return store.Content{}, notFound("content", id, err)
	}
	return ct, nil
}

func (c *conn) GetEvaluation(ctx context.Context, id string) (store.Evaluation, error) {
	var (
		ev           store.Evaluation
		durationNS   int64
		tier, status string
	)
	err := c.q.QueryRow(ctx, `
		SELECT id, student_id, content_id, transcript, audio_ref, duration_ns,
		       accuracy, raw_accuracy, words_per_minute, error_count, tier, status, created_at
		FROM   evaluations
		WHERE  id = $1`, id,
	).Scan(
		&ev.ID, &ev.StudentID, &ev.ContentID, &ev.Transcript, &ev.AudioRef, &durationNS,
		&ev.Accuracy, &ev.RawAccuracy, &ev.WordsPerMinute, &ev.ErrorCount, &tier, &status, &ev.CreatedAt,
	)
	if err != nil {
		return store.Evaluation{}, notFound("evaluation", id, err)
	}
	ev.Duration = time.Duration(durationNS)
	ev.Tier = scoring.Tier(tier)
	ev.Status = store.EvaluationStatus(status)
	return ev, nil
}

func (c *conn) ListErrorDetails(ctx context.Context, evaluationID string) ([]store.ErrorDetail, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, evaluation_id, kind, expected, observed, position, severity, similarity, word_accuracy
		FROM   error_details
		WHERE  evaluation_id = $1
		ORDER  BY id`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list error details: %w", err)
	}
	details, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ErrorDetail, error) {
		var (
			d    store.ErrorDetail
			kind string
		)
		if err := row.Scan(&d.ID, &d.EvaluationID, &kind, &d.Expected, &d.Observed,
			&d.Position, &d.Severity, &d.Similarity, &d.WordAccuracy); err != nil {
			return store.ErrorDetail{}, err
		}
		k, err := scoring.ParseErrorKind(kind)
		if err != nil {
			return store.ErrorDetail{}, err
		}
		d.Kind = k
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan error details: %w", err)
	}
	if details == nil {
		details = []store.ErrorDetail{}
	}
	return details, nil
}

const exerciseColumns = `id, student_id, evaluation_id, kind, source_kind, target_words,
       instructions, difficulty, completed, attempts, created_at, completed_at`

func (c *conn) GetExercise(ctx context.Context, id string) (store.PracticeExercise, error) {
	exs, err := c.queryExercises(ctx, `SELECT `+exerciseColumns+` FROM practice_exercises WHERE id = $1`, id)
	if err != nil {
		return store.PracticeExercise{}, err
	}
	if len(exs) == 0 {
		return store.PracticeExercise{}, fmt.Errorf("postgres store: exercise %q: %w", id, store.ErrNotFound)
	}
	return exs[0], nil
}

func (c *conn) ListExercises(ctx context.Context, f store.ExerciseFilter) ([]store.PracticeExercise, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conds []string
	if f.StudentID != "" {
		conds = append(conds, "student_id = "+next(f.StudentID))
	}
	if f.EvaluationID != "" {
		conds = append(conds, "evaluation_id = "+next(f.EvaluationID))
	}
	if f.Pending {
		conds = append(conds, "NOT completed")
	}

	q := "SELECT " + exerciseColumns + "\nFROM   practice_exercises"
	if len(conds) > 0 {
		q += "\nWHERE  " + strings.Join(conds, "\n  AND  ")
	}
	q += "\nORDER  BY id"
	if f.Limit > 0 {
		q += "\nLIMIT " + next(f.Limit)
	}
	return c.queryExercises(ctx, q, args...)
}

// queryExercises collects all exercise rows before loading fragments; a
// transaction's connection cannot run a second query while rows are open.
func (c *conn) queryExercises(ctx context.Context, q string, args ...any) ([]store.PracticeExercise, error) {
	rows, err := c.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query exercises: %w", err)
	}
	exs, err := pgx.CollectRows(rows, scanExercise)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan exercises: %w", err)
	}
	if exs == nil {
		exs = []store.PracticeExercise{}
	}
	for i := range exs {
		frags, err := c.fragments(ctx, exs[i].ID)
		if err != nil {
			return nil, err
		}
		exs[i].Fragments = frags
	}
	return exs, nil
}

func scanExercise(row pgx.CollectableRow) (store.PracticeExercise, error) {
	var (
		ex               store.PracticeExercise
		kind, sourceKind string
	)
	if err := row.Scan(&ex.ID, &ex.StudentID, &ex.EvaluationID, &kind, &sourceKind, &ex.TargetWords,
		&ex.Instructions, &ex.Difficulty, &ex.Completed, &ex.Attempts, &ex.CreatedAt, &ex.CompletedAt); err != nil {
		return store.PracticeExercise{}, err
	}
	sk, err := scoring.ParseErrorKind(sourceKind)
	if err != nil {
		return store.PracticeExercise{}, err
	}
	ex.Kind = store.ExerciseKind(kind)
	ex.SourceKind = sk
	return ex, nil
}

func (c *conn) fragments(ctx context.Context, exerciseID string) ([]store.PracticeFragment, error) {
	rows, err := c.q.Query(ctx, `
		SELECT id, exercise_id, text, word, start_offset, end_offset, error_kind, completed, improved
		FROM   practice_fragments
		WHERE  exercise_id = $1
		ORDER  BY id`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list fragments: %w", err)
	}
	frags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.PracticeFragment, error) {
		var (
			f    store.PracticeFragment
			kind string
		)
		if err := row.Scan(&f.ID, &f.ExerciseID, &f.Text, &f.Word, &f.Start, &f.End,
			&kind, &f.Completed, &f.Improved); err != nil {
			return store.PracticeFragment{}, err
		}
		k, err := scoring.ParseErrorKind(kind)
		if err != nil {
			return store.PracticeFragment{}, err
		}
		f.ErrorKind = k
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan fragments: %w", err)
	}
	return frags, nil
}

func (c *txConn) CreateEvaluation(ctx context.Context, ev store.Evaluation) (string, error) {
	ev.ID = store.NewID()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := c.q.Exec(ctx, `
		INSERT INTO evaluations
		    (id, student_id, content_id, transcript, audio_ref, duration_ns, accuracy,
		     raw_accuracy, words_per_minute, error_count, tier, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.StudentID, ev.ContentID, ev.Transcript, ev.AudioRef, ev.Duration.Nanoseconds(),
		ev.Accuracy, ev.RawAccuracy, ev.WordsPerMinute, ev.ErrorCount, string(ev.Tier), string(ev.Status),
		ev.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("postgres store: create evaluation: %w", err)
	}
	return ev.ID, nil
}

func (c *txConn) CreateErrorDetail(ctx context.Context, evaluationID string, d store.ErrorDetail) (string, error) {
	id := store.NewID()
	_, err := c.q.Exec(ctx, `
		INSERT INTO error_details
		    (id, evaluation_id, kind, expected, observed, position, severity, similarity, word_accuracy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, evaluationID, d.Kind.String(), d.Expected, d.Observed, d.Position, d.Severity,
		d.Similarity, d.WordAccuracy,
	)
	if err != nil {
		return "", fmt.Errorf("postgres store: create error detail: %w", err)
	}
	return id, nil
}

func (c *txConn) CreateExercise(ctx context.Context, studentID, evaluationID string, ex store.PracticeExercise) (string, error) {
	id := store.NewID()
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	_, err := c.q.Exec(ctx, `
		INSERT INTO practice_exercises
		    (id, student_id, evaluation_id, kind, source_kind, target_words, instructions,
		     difficulty, completed, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, studentID, evaluationID, string(ex.Kind), ex.SourceKind.String(), ex.TargetWords,
		ex.Instructions, ex.Difficulty, ex.Completed, ex.Attempts, ex.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("postgres store: create exercise: %w", err)
	}
	return id, nil
}

func (c *txConn) CreatePracticeFragment(ctx context.Context, exerciseID string, f store.PracticeFragment) (string, error) {
	id := store.NewID()
	_, err := c.q.Exec(ctx, `
		INSERT INTO practice_fragments
		    (id, exercise_id, text, word, start_offset, end_offset, error_kind, completed, improved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, exerciseID, f.Text, f.Word, f.Start, f.End, f.ErrorKind.String(), f.Completed, f.Improved,
	)
	if err != nil {
		return "", fmt.Errorf("postgres store: create fragment: %w", err)
	}
	return id, nil
}

func (c *txConn) RecordAttempt(ctx context.Context, exerciseID string, improved bool, at time.Time) (store.PracticeExercise, error) {
	tag, err := c.q.Exec(ctx, `
		UPDATE practice_exercises
		SET    attempts     = attempts + 1,
		       completed    = completed OR $2,
		       completed_at = CASE WHEN $2 THEN $3::timestamptz ELSE completed_at END
		WHERE  id = $1`, exerciseID, improved, at)
	if err != nil {
		return store.PracticeExercise{}, fmt.Errorf("postgres store: record attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.PracticeExercise{}, fmt.Errorf("postgres store: exercise %q: %w", exerciseID, store.ErrNotFound)
	}
	if improved {
		if _, err := c.q.Exec(ctx,
			`UPDATE practice_fragments SET completed = true, improved = true WHERE exercise_id = $1`,
			exerciseID); err != nil {
			return store.PracticeExercise{}, fmt.Errorf("postgres store: complete fragments: %w", err)
		}
	}
	return c.GetExercise(ctx, exerciseID)
}
