package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/lectora/internal/observe"
	"github.com/MrWong99/lectora/internal/remediation"
	"github.com/MrWong99/lectora/pkg/audio"
)

// PracticeRequest is one attempt at an exercise.
type PracticeRequest struct {
	StudentID  string
	ExerciseID string

	// Audio is the recording of the learner reading the exercise's target
	// words. It is ignored when Transcript is set.
	Audio audio.Clip

	// Transcript, when non-empty, is scored directly. Duration then gives
	// the reading time.
	Transcript string
	Duration   time.Duration
}

// Practice scores an attempt at an exercise against its target words and
// records it. An exercise that is missing or belongs to another student is
// reported as [store.ErrNotFound]. A failed transcription is scored as
// silence, as in [Service.Evaluate].
func (s *Service) Practice(ctx context.Context, req PracticeRequest) (att remediation.Attempt, err error) {
	ctx, span := observe.StartSpan(ctx, "evaluation.Practice")
	defer func() { observe.EndSpan(span, err) }()

	ex, err := s.deriver.Exercise(ctx, req.StudentID, req.ExerciseID)
	if err != nil {
		return remediation.Attempt{}, fmt.Errorf("evaluation: %w", err)
	}

	h, err := s.transcribe(ctx, req.Audio, req.Transcript, req.Duration)
	if err != nil {
		return remediation.Attempt{}, err
	}
	if h.failed {
		observe.Logger(ctx).Warn("evaluation: practice transcription failed, scoring as silence",
			"student_id", req.StudentID, "exercise_id", req.ExerciseID, "err", h.err)
	}

	res, err := s.score(ctx, remediation.PracticeText(ex), h.text, h.duration)
	if err != nil {
		return remediation.Attempt{}, fmt.Errorf("evaluation: score exercise %q: %w", req.ExerciseID, err)
	}
	att, err = s.deriver.RecordAttempt(ctx, req.StudentID, req.ExerciseID, res)
	if err != nil {
		return remediation.Attempt{}, fmt.Errorf("evaluation: %w", err)
	}
	s.metrics.RecordPracticeAttempt(ctx, att.Improved)
	observe.Logger(ctx).Info("evaluation: practice attempt recorded",
		"student_id", req.StudentID,
		"exercise_id", req.ExerciseID,
		"accuracy", res.Accuracy,
		"improved", att.Improved,
		"attempts", att.Exercise.Attempts,
	)
	return att, nil
}
