package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements [store.Reader] on top of a queryer.
type conn struct {
	q queryer
}

// txConn adds the write methods of [store.Tx].
type txConn struct {
	conn
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite store: %s %q: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("sqlite store: get %s: %w", kind, err)
}

func (c *conn) GetStudent(ctx context.Context, id string) (store.Student, error) {
	var (
		st      store.Student
		created int64
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, name, grade, created_at FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.Grade, &created)
	if err != nil {
		return store.Student{}, notFound("student", id, err)
	}
	st.CreatedAt = fromUnix(created)
	return st, nil
}

func (c *conn) GetContent(ctx context.Context, id string) (store.Content, error) {
	var (
		ct      store.Content
		created int64
	)
	err := c.q.QueryRowContext(ctx,
		`SELECT id, title, body, level, created_at FROM contents WHERE id = ?`, id,
	).Scan(&ct.ID, &ct.Title, &ct.Text, &ct.Level, &created)
	if err != nil {
		return store.Content{}, notFound("content", id, err)
	}
	ct.CreatedAt = fromUnix(created)
	return ct, nil
}

func (c *conn) GetEvaluation(ctx context.Context, id string) (store.Evaluation, error) {
	var (
		ev       store.Evaluation
		duration int64
		created  int64
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT id, student_id, content_id, transcript, audio_ref, duration_ns,
		       accuracy, raw_accuracy, words_per_minute, error_count, tier, status, created_at
		FROM   evaluations WHERE id = ?`, id,
	).Scan(
		&ev.ID, &ev.StudentID, &ev.ContentID, &ev.Transcript, &ev.AudioRef, &duration,
		&ev.Accuracy, &ev.RawAccuracy, &ev.WordsPerMinute, &ev.ErrorCount, &ev.Tier, &ev.Status, &created,
	)
	if err != nil {
		return store.Evaluation{}, notFound("evaluation", id, err)
	}
	ev.Duration = time.Duration(duration)
	ev.CreatedAt = fromUnix(created)
	return ev, nil
}

func (c *conn) ListErrorDetails(ctx context.Context, evaluationID string) ([]store.ErrorDetail, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, evaluation_id, kind, expected, observed, position, severity, similarity, word_accuracy
		FROM   error_details WHERE evaluation_id = ? ORDER BY id`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list error details: %w", err)
	}
	defer rows.Close()

	out := []store.ErrorDetail{}
	for rows.Next() {
		var (
			d    store.ErrorDetail
			kind string
		)
		if err := rows.Scan(&d.ID, &d.EvaluationID, &kind, &d.Expected, &d.Observed,
			&d.Position, &d.Severity, &d.Similarity, &d.WordAccuracy); err != nil {
			return nil, fmt.Errorf("sqlite store: scan error detail: %w", err)
		}
		if d.Kind, err = scoring.ParseErrorKind(kind); err != nil {
			return nil, fmt.Errorf("sqlite store: error detail %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list error details: %w", err)
	}
	return out, nil
}

const exerciseColumns = `id, student_id, evaluation_id, kind, source_kind, target_words,
	instructions, difficulty, completed, attempts, created_at, completed_at`

func (c *conn) GetExercise(ctx context.Context, id string) (store.PracticeExercise, error) {
	exs, err := c.queryExercises(ctx, `SELECT `+exerciseColumns+` FROM practice_exercises WHERE id = ?`, id)
	if err != nil {
		return store.PracticeExercise{}, err
	}
	if len(exs) == 0 {
		return store.PracticeExercise{}, fmt.Errorf("sqlite store: exercise %q: %w", id, store.ErrNotFound)
	}
	return exs[0], nil
}

func (c *conn) ListExercises(ctx context.Context, f store.ExerciseFilter) ([]store.PracticeExercise, error) {
	var (
		conds []string
		args  []any
	)
	if f.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.EvaluationID != "" {
		conds = append(conds, "evaluation_id = ?")
		args = append(args, f.EvaluationID)
	}
	if f.Pending {
		conds = append(conds, "completed = 0")
	}
	q := `SELECT ` + exerciseColumns + ` FROM practice_exercises`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return c.queryExercises(ctx, q, args...)
}

// queryExercises runs q and attaches fragments. Rows are fully read before
// fragments are queried because the store holds a single connection.
func (c *conn) queryExercises(ctx context.Context, q string, args ...any) ([]store.PracticeExercise, error) {
	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: query exercises: %w", err)
	}
	out := []store.PracticeExercise{}
	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, ex)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: query exercises: %w", err)
	}

	for i := range out {
		frags, err := c.fragments(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Fragments = frags
	}
	return out, nil
}

func scanExercise(rows *sql.Rows) (store.PracticeExercise, error) {
	var (
		ex          store.PracticeExercise
		kind        string
		sourceKind  string
		targets     string
		completed   bool
		created     int64
		completedAt sql.NullInt64
	)
	if err := rows.Scan(&ex.ID, &ex.StudentID, &ex.EvaluationID, &kind, &sourceKind, &targets,
		&ex.Instructions, &ex.Difficulty, &completed, &ex.Attempts, &created, &completedAt); err != nil {
		return store.PracticeExercise{}, fmt.Errorf("sqlite store: scan exercise: %w", err)
	}
	ex.Kind = store.ExerciseKind(kind)
	sk, err := scoring.ParseErrorKind(sourceKind)
	if err != nil {
		return store.PracticeExercise{}, fmt.Errorf("sqlite store: exercise %s: %w", ex.ID, err)
	}
	ex.SourceKind = sk
	if err := json.Unmarshal([]byte(targets), &ex.TargetWords); err != nil {
		return store.PracticeExercise{}, fmt.Errorf("sqlite store: exercise %s target words: %w", ex.ID, err)
	}
	ex.Completed = completed
	ex.CreatedAt = fromUnix(created)
	if completedAt.Valid {
		t := fromUnix(completedAt.Int64)
		ex.CompletedAt = &t
	}
	return ex, nil
}

func (c *conn) fragments(ctx context.Context, exerciseID string) ([]store.PracticeFragment, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, exercise_id, text, word, start_offset, end_offset, error_kind, completed, improved
		FROM   practice_fragments WHERE exercise_id = ? ORDER BY id`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list fragments: %w", err)
	}
	defer rows.Close()

	var out []store.PracticeFragment
	for rows.Next() {
		var (
			f    store.PracticeFragment
			kind string
		)
		if err := rows.Scan(&f.ID, &f.ExerciseID, &f.Text, &f.Word, &f.Start, &f.End,
			&kind, &f.Completed, &f.Improved); err != nil {
			return nil, fmt.Errorf("sqlite store: scan fragment: %w", err)
		}
		if f.ErrorKind, err = scoring.ParseErrorKind(kind); err != nil {
			return nil, fmt.Errorf("sqlite store: fragment %s: %w", f.ID, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: list fragments: %w", err)
	}
	return out, nil
}

func (c *txConn) CreateEvaluation(ctx context.Context, ev store.Evaluation) (string, error) {
	ev.ID = store.NewID()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO evaluations
		    (id, student_id, content_id, transcript, audio_ref, duration_ns, accuracy,
		     raw_accuracy, words_per_minute, error_count, tier, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.StudentID, ev.ContentID, ev.Transcript, ev.AudioRef, ev.Duration.Nanoseconds(),
		ev.Accuracy, ev.RawAccuracy, ev.WordsPerMinute, ev.ErrorCount, string(ev.Tier), string(ev.Status),
		toUnix(ev.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite store: create evaluation: %w", err)
	}
	return ev.ID, nil
}

func (c *txConn) CreateErrorDetail(ctx context.Context, evaluationID string, d store.ErrorDetail) (string, error) {
	id := store.NewID()
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO error_details
		    (id, evaluation_id, kind, expected, observed, position, severity, similarity, word_accuracy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, evaluationID, d.Kind.String(), d.Expected, d.Observed, d.Position, d.Severity,
		d.Similarity, d.WordAccuracy,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite store: create error detail: %w", err)
	}
	return id, nil
}

func (c *txConn) CreateExercise(ctx context.Context, studentID, evaluationID string, ex store.PracticeExercise) (string, error) {
	id := store.NewID()
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	targets, err := json.Marshal(ex.TargetWords)
	if err != nil {
		return "", fmt.Errorf("sqlite store: encode target words: %w", err)
	}
	_, err = c.q.ExecContext(ctx, `
		INSERT INTO practice_exercises
		    (id, student_id, evaluation_id, kind, source_kind, target_words, instructions,
		     difficulty, completed, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, studentID, evaluationID, string(ex.Kind), ex.SourceKind.String(), string(targets),
		ex.Instructions, ex.Difficulty, ex.Completed, ex.Attempts, toUnix(ex.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite store: create exercise: %w", err)
	}
	return id, nil
}

func (c *txConn) CreatePracticeFragment(ctx context.Context, exerciseID string, f store.PracticeFragment) (string, error) {
	id := store.NewID()
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO practice_fragments
		    (id, exercise_id, text, word, start_offset, end_offset, error_kind, completed, improved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, exerciseID, f.Text, f.Word, f.Start, f.End, f.ErrorKind.String(), f.Completed, f.Improved,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite store: create fragment: %w", err)
	}
	return id, nil
}

func (c *txConn) RecordAttempt(ctx context.Context, exerciseID string, improved bool, at time.Time) (store.PracticeExercise, error) {
	var (
		res sql.Result
		err error
	)
	if improved {
		res, err = c.q.ExecContext(ctx, `
			UPDATE practice_exercises
			SET    attempts = attempts + 1, completed = 1, completed_at = ?
			WHERE  id = ?`, toUnix(at), exerciseID)
	} else {
		res, err = c.q.ExecContext(ctx,
			`UPDATE practice_exercises SET attempts = attempts + 1 WHERE id = ?`, exerciseID)
	}
	if err != nil {
		return store.PracticeExercise{}, fmt.Errorf("sqlite store: record attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.PracticeExercise{}, fmt.Errorf("sqlite store: exercise %q: %w", exerciseID, store.ErrNotFound)
	}
	if improved {
		if _, err := c.q.ExecContext(ctx,
			`UPDATE practice_fragments SET completed = 1, improved = 1 WHERE exercise_id = ?`, exerciseID); err != nil {
			return store.PracticeExercise{}, fmt.Errorf("sqlite store: complete fragments: %w", err)
		}
	}
	return c.GetExercise(ctx, exerciseID)
}
