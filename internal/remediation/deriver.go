package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// Option is a functional option for configuring a [Deriver].
type Option func(*Deriver)

// WithClock overrides the time source used for creation and completion
// timestamps. Default: time.Now in UTC.
func WithClock(now func() time.Time) Option {
	return func(d *Deriver) {
		if now != nil {
			d.now = now
		}
	}
}

// Deriver persists exercises derived from evaluation errors and records
// practice attempts against them. It is safe for concurrent use.
type Deriver struct {
	store store.Store
	now   func() time.Time
}

// New returns a Deriver writing to s.
func New(s store.Store, opts ...Option) *Deriver {
	d := &Deriver{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Derive builds the exercises for errs (see [Plan]) and stores each one with
// its fragments for studentID and evaluationID.
//
// All writes happen in one transaction. If the student or the evaluation
// does not exist, or the evaluation belongs to another student, Derive
// returns an error wrapping [store.ErrNotFound] and nothing is created.
// The existence checks run even for an empty error list, which then
// returns no exercises and writes nothing.
func (d *Deriver) Derive(ctx context.Context, studentID, evaluationID string, errs []scoring.PronunciationError) ([]store.PracticeExercise, error) {
	planned, err := Plan(errs)
	if err != nil {
		return nil, err
	}

	created := d.now()
	out := []store.PracticeExercise{}
	err = d.store.InTx(ctx, func(tx store.Tx) error {
		out = out[:0]
		if _, err := tx.GetStudent(ctx, studentID); err != nil {
			return err
		}
		ev, err := tx.GetEvaluation(ctx, evaluationID)
		if err != nil {
			return err
		}
		if ev.StudentID != studentID {
			return fmt.Errorf("remediation: evaluation %q of student %q: %w", evaluationID, studentID, store.ErrNotFound)
		}

		for _, ex := range planned {
			ex.StudentID = studentID
			ex.EvaluationID = evaluationID
			ex.CreatedAt = created
			id, err := tx.CreateExercise(ctx, studentID, evaluationID, ex)
			if err != nil {
				return err
			}
			ex.ID = id

			frags := make([]store.PracticeFragment, 0, len(ex.Fragments))
			for _, f := range ex.Fragments {
				fid, err := tx.CreatePracticeFragment(ctx, id, f)
				if err != nil {
					return err
				}
				f.ID = fid
				f.ExerciseID = id
				frags = append(frags, f)
			}
			ex.Fragments = frags
			out = append(out, ex)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remediation: derive exercises: %w", err)
	}

	slog.Debug("remediation: exercises derived",
		"student_id", studentID,
		"evaluation_id", evaluationID,
		"errors", len(errs),
		"exercises", len(out),
	)
	return out, nil
}

// DeriveFromEvaluation rebuilds the error list of a stored evaluation from
// its error details and derives exercises from it.
func (d *Deriver) DeriveFromEvaluation(ctx context.Context, evaluationID string) ([]store.PracticeExercise, error) {
	ev, err := d.store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("remediation: load evaluation: %w", err)
	}
	details, err := d.store.ListErrorDetails(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("remediation: load error details: %w", err)
	}
	errs := make([]scoring.PronunciationError, len(details))
	for i, det := range details {
		errs[i] = det.PronunciationError
	}
	return d.Derive(ctx, ev.StudentID, evaluationID, errs)
}
