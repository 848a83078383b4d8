package remediation

import (
	"context"
	"fmt"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// Achievement describes a practice attempt for the learner-facing layer.
type Achievement string

const (
	AchievementExcellent  Achievement = "excellent"
	AchievementVeryGood   Achievement = "very_good"
	AchievementGood       Achievement = "good"
	AchievementImproving  Achievement = "improving"
	AchievementPracticing Achievement = "practicing"
)

// Improved reports whether a practice attempt is good enough to complete an
// exercise. Fewer errors lower the accuracy needed:
//
//	accuracy >= 75
//	accuracy >= 65 with at most 4 errors
//	accuracy >= 55 with at most 2 errors
//	no errors at all
func Improved(accuracy float64, errorCount int) bool {
	switch {
	case accuracy >= 75:
		return true
	case accuracy >= 65 && errorCount <= 4:
		return true
	case accuracy >= 55 && errorCount <= 2:
		return true
	default:
		return errorCount == 0
	}
}

// AchievementFor maps an attempt's accuracy and improvement to a level.
func AchievementFor(accuracy float64, improved bool) Achievement {
	switch scoring.TierFor(accuracy) {
	case scoring.TierExcellent:
		return AchievementExcellent
	case scoring.TierVeryGood:
		return AchievementVeryGood
	case scoring.TierGood:
		return AchievementGood
	}
	if improved {
		return AchievementImproving
	}
	return AchievementPracticing
}

// Attempt is the outcome of one practice attempt.
type Attempt struct {
	Exercise    store.PracticeExercise `json:"exercise"`
	Result      scoring.Result         `json:"result"`
	Improved    bool                   `json:"improved"`
	Achievement Achievement            `json:"achievement"`
}

// Exercise loads an exercise and checks that it belongs to studentID.
// Exercises of other students are reported as [store.ErrNotFound].
func (d *Deriver) Exercise(ctx context.Context, studentID, exerciseID string) (store.PracticeExercise, error) {
	ex, err := d.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return store.PracticeExercise{}, fmt.Errorf("remediation: load exercise: %w", err)
	}
	if ex.StudentID != studentID {
		return store.PracticeExercise{}, fmt.Errorf("remediation: exercise %q of student %q: %w", exerciseID, studentID, store.ErrNotFound)
	}
	return ex, nil
}

// RecordAttempt judges res, a scoring of the learner reading
// [PracticeText] of the exercise, and stores the attempt. An improved
// attempt completes the exercise and all its fragments.
func (d *Deriver) RecordAttempt(ctx context.Context, studentID, exerciseID string, res scoring.Result) (Attempt, error) {
	if _, err := d.Exercise(ctx, studentID, exerciseID); err != nil {
		return Attempt{}, err
	}
	improved := Improved(res.Accuracy, len(res.Errors))

	var updated store.PracticeExercise
	err := d.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		updated, err = tx.RecordAttempt(ctx, exerciseID, improved, d.now())
		return err
	})
	if err != nil {
		return Attempt{}, fmt.Errorf("remediation: record attempt: %w", err)
	}
	return Attempt{
		Exercise:    updated,
		Result:      res,
		Improved:    improved,
		Achievement: AchievementFor(res.Accuracy, improved),
	}, nil
}
