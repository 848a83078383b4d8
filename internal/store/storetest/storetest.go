// Package storetest holds a behavioural test suite every [store.Store]
// backend must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// Run exercises newStore against the [store.Store] contract. newStore must
// return an empty store; cleanup is the caller's business.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("PutAndGet", func(t *testing.T) { testPutAndGet(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("EvaluationWithDetails", func(t *testing.T) { testEvaluationWithDetails(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ExercisesAndAttempts", func(t *testing.T) { testExercises(t, newStore(t)) })
}

// Seed stores one student and one passage and returns them.
func Seed(t *testing.T, s store.Store) (store.Student, store.Content) {
	t.Helper()
	ctx := context.Background()

	st, err := s.PutStudent(ctx, store.Student{ID: "ana", Name: "Ana", Grade: 2})
	if err != nil {
		t.Fatalf("PutStudent: %v", err)
	}
	c, err := s.PutContent(ctx, store.Content{ID: "perro", Title: "El perro", Text: "El perro corre.", Level: 1})
	if err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	return st, c
}

func testPutAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	Seed(t, s)

	st, err := s.GetStudent(ctx, "ana")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if st.Name != "Ana" || st.Grade != 2 {
		t.Errorf("GetStudent = %+v, want Ana grade 2", st)
	}

	c, err := s.GetContent(ctx, "perro")
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if c.Text != "El perro corre." {
		t.Errorf("GetContent text = %q, want %q", c.Text, "El perro corre.")
	}

	// Replace keeps the ID.
	if _, err := s.PutContent(ctx, store.Content{ID: "perro", Title: "El perro", Text: "El perro salta."}); err != nil {
		t.Fatalf("PutContent replace: %v", err)
	}
	c, err = s.GetContent(ctx, "perro")
	if err != nil {
		t.Fatalf("GetContent after replace: %v", err)
	}
	if c.Text != "El perro salta." {
		t.Errorf("GetContent after replace = %q, want %q", c.Text, "El perro salta.")
	}

	generated, err := s.PutStudent(ctx, store.Student{Name: "Luis"})
	if err != nil {
		t.Fatalf("PutStudent without id: %v", err)
	}
	if generated.ID == "" {
		t.Error("PutStudent without id: ID is empty, want generated")
	}
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetStudent(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetStudent: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetContent(ctx, "nothing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetContent: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetEvaluation(ctx, "none"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEvaluation: err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetExercise(ctx, "none"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetExercise: err = %v, want ErrNotFound", err)
	}
	details, err := s.ListErrorDetails(ctx, "none")
	if err != nil {
		t.Fatalf("ListErrorDetails: %v", err)
	}
	if len(details) != 0 {
		t.Errorf("ListErrorDetails = %+v, want empty", details)
	}
	err = s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.RecordAttempt(ctx, "none", true, time.Now())
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RecordAttempt: err = %v, want ErrNotFound", err)
	}
}

// CreateEvaluation writes an evaluation with the given errors in one
// transaction and returns its ID.
func CreateEvaluation(t *testing.T, s store.Store, studentID, contentID string, errs []scoring.PronunciationError) string {
	t.Helper()
	ctx := context.Background()

	var id string
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		id, err = tx.CreateEvaluation(ctx, store.Evaluation{
			StudentID:      studentID,
			ContentID:      contentID,
			Transcript:     "el pero",
			Duration:       2500 * time.Millisecond,
			Accuracy:       95,
			RawAccuracy:    61.5,
			WordsPerMinute: 48,
			ErrorCount:     len(errs),
			Tier:           scoring.TierExcellent,
			Status:         store.StatusScored,
		})
		if err != nil {
			return err
		}
		for _, e := range errs {
			if _, err := tx.CreateErrorDetail(ctx, id, store.ErrorDetail{PronunciationError: e, WordAccuracy: e.WordAccuracy()}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create evaluation: %v", err)
	}
	return id
}

func testEvaluationWithDetails(t *testing.T, s store.Store) {
	ctx := context.Background()
	st, c := Seed(t, s)

	errs := []scoring.PronunciationError{
		{Kind: scoring.Substitution, Expected: "perro", Observed: "pero", Position: 1, Severity: 1, Similarity: 0.6},
		{Kind: scoring.Omission, Expected: "corre", Position: 2, Severity: 1},
	}
	id := CreateEvaluation(t, s, st.ID, c.ID, errs)

	ev, err := s.GetEvaluation(ctx, id)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if ev.StudentID != st.ID || ev.ContentID != c.ID {
		t.Errorf("GetEvaluation owners = %q/%q, want %q/%q", ev.StudentID, ev.ContentID, st.ID, c.ID)
	}
	if ev.Duration != 2500*time.Millisecond || ev.Accuracy != 95 || ev.Tier != scoring.TierExcellent || ev.Status != store.StatusScored {
		t.Errorf("GetEvaluation = %+v, fields not preserved", ev)
	}
	if ev.CreatedAt.IsZero() {
		t.Error("GetEvaluation: CreatedAt is zero")
	}

	details, err := s.ListErrorDetails(ctx, id)
	if err != nil {
		t.Fatalf("ListErrorDetails: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("ListErrorDetails: got %d, want 2", len(details))
	}
	if details[0].Kind != scoring.Substitution || details[0].Observed != "pero" || details[0].WordAccuracy != 60 {
		t.Errorf("details[0] = %+v, want substitution perro->pero at 60", details[0])
	}
	if details[1].Kind != scoring.Omission || details[1].Expected != "corre" || details[1].Observed != "" {
		t.Errorf("details[1] = %+v, want omission of corre", details[1])
	}
	if details[1].EvaluationID != id {
		t.Errorf("details[1].EvaluationID = %q, want %q", details[1].EvaluationID, id)
	}
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	st, c := Seed(t, s)

	boom := errors.New("boom")
	var id string
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		id, err = tx.CreateEvaluation(ctx, store.Evaluation{StudentID: st.ID, ContentID: c.ID, Status: store.StatusScored})
		if err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx: err = %v, want %v", err, boom)
	}
	if _, err := s.GetEvaluation(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEvaluation after rollback: err = %v, want ErrNotFound", err)
	}
}

func testExercises(t *testing.T, s store.Store) {
	ctx := context.Background()
	st, c := Seed(t, s)
	evalID := CreateEvaluation(t, s, st.ID, c.ID, nil)

	var exID string
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		exID, err = tx.CreateExercise(ctx, st.ID, evalID, store.PracticeExercise{
			Kind:         store.WordDrill,
			SourceKind:   scoring.Substitution,
			TargetWords:  []string{"perro", "corre"},
			Instructions: "Repite las palabras.",
			Difficulty:   1,
		})
		if err != nil {
			return err
		}
		for _, w := range []string{"perro", "corre"} {
			text := "Lee en voz alta la palabra: " + w
			if _, err := tx.CreatePracticeFragment(ctx, exID, store.PracticeFragment{
				Text:      text,
				Word:      w,
				Start:     len(text) - len(w),
				End:       len(text),
				ErrorKind: scoring.Substitution,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("create exercise: %v", err)
	}

	ex, err := s.GetExercise(ctx, exID)
	if err != nil {
		t.Fatalf("GetExercise: %v", err)
	}
	if ex.Kind != store.WordDrill || ex.SourceKind != scoring.Substitution || ex.Difficulty != 1 {
		t.Errorf("GetExercise = %+v, fields not preserved", ex)
	}
	if len(ex.TargetWords) != 2 || ex.TargetWords[0] != "perro" || ex.TargetWords[1] != "corre" {
		t.Errorf("TargetWords = %q, want [perro corre]", ex.TargetWords)
	}
	if len(ex.Fragments) != 2 || ex.Fragments[1].Word != "corre" {
		t.Fatalf("Fragments = %+v, want two in order", ex.Fragments)
	}
	if ex.Completed || ex.Attempts != 0 {
		t.Errorf("new exercise: completed=%v attempts=%d, want false/0", ex.Completed, ex.Attempts)
	}

	list, err := s.ListExercises(ctx, store.ExerciseFilter{StudentID: st.ID, Pending: true})
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(list) != 1 || list[0].ID != exID {
		t.Fatalf("ListExercises pending = %+v, want [%s]", list, exID)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, improved := range []bool{false, true} {
		err := s.InTx(ctx, func(tx store.Tx) error {
			_, err := tx.RecordAttempt(ctx, exID, improved, at)
			return err
		})
		if err != nil {
			t.Fatalf("RecordAttempt(improved=%v): %v", improved, err)
		}
	}

	ex, err = s.GetExercise(ctx, exID)
	if err != nil {
		t.Fatalf("GetExercise after attempts: %v", err)
	}
	if ex.Attempts != 2 || !ex.Completed {
		t.Errorf("after attempts: attempts=%d completed=%v, want 2/true", ex.Attempts, ex.Completed)
	}
	if ex.CompletedAt == nil || !ex.CompletedAt.Equal(at) {
		t.Errorf("CompletedAt = %v, want %v", ex.CompletedAt, at)
	}
	for i, f := range ex.Fragments {
		if !f.Completed || !f.Improved {
			t.Errorf("Fragments[%d] = %+v, want completed and improved", i, f)
		}
	}

	list, err = s.ListExercises(ctx, store.ExerciseFilter{StudentID: st.ID, Pending: true})
	if err != nil {
		t.Fatalf("ListExercises after completion: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListExercises pending after completion = %+v, want empty", list)
	}
	list, err = s.ListExercises(ctx, store.ExerciseFilter{EvaluationID: evalID})
	if err != nil {
		t.Fatalf("ListExercises by evaluation: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListExercises by evaluation: got %d, want 1", len(list))
	}
}
