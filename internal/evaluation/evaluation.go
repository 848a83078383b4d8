// Package evaluation runs a complete reading evaluation: it transcribes the
// student's recording, scores it against the reading passage, stores the
// evaluation with its error details and derives practice exercises.
//
// A failed transcription does not fail the evaluation. The reading is scored
// as if nothing was read, stored with [store.StatusTranscriptionFailed] and
// counted, so the student still gets a result and exercises.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/lectora/internal/observe"
	"github.com/MrWong99/lectora/internal/remediation"
	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
	"github.com/MrWong99/lectora/internal/transcript"
	"github.com/MrWong99/lectora/pkg/audio"
)

// ErrNoTranscriber is returned when a request carries audio but the service
// has no [transcript.Transcriber].
var ErrNoTranscriber = errors.New("evaluation: no transcriber configured")

// DefaultWorkers bounds [Service.EvaluateBatch] unless [WithWorkers] is used.
const DefaultWorkers = 4

// Request is one reading to evaluate.
type Request struct {
	StudentID string
	ContentID string

	// Audio is the recording. It is ignored when Transcript is set.
	Audio audio.Clip

	// AudioRef identifies the recording in the stored evaluation, typically
	// its file path.
	AudioRef string

	// Transcript, when non-empty, is scored directly and no transcription
	// happens. Duration then gives the reading time.
	Transcript string
	Duration   time.Duration
}

// Report is the outcome of one evaluation.
type Report struct {
	Evaluation store.Evaluation         `json:"evaluation"`
	Result     scoring.Result           `json:"result"`
	Outcome    scoring.Outcome          `json:"outcome"`
	Exercises  []store.PracticeExercise `json:"exercises"`

	// Provider names the transcription backend, empty when the transcript
	// was supplied or transcription failed.
	Provider string `json:"provider,omitempty"`
}

// Option is a functional option for configuring a [Service].
type Option func(*Service)

// WithScorer replaces the scorer. Default: [scoring.New] with no options.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithWorkers bounds how many requests [Service.EvaluateBatch] runs at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDerivation turns exercise derivation after each evaluation on or off.
// Default: on.
func WithDerivation(enabled bool) Option {
	return func(s *Service) { s.derive = enabled }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source for evaluation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates evaluations. It is safe for concurrent use.
type Service struct {
	store       store.Store
	transcriber transcript.Transcriber
	scorer      *scoring.Scorer
	deriver     *remediation.Deriver
	metrics     *observe.Metrics
	workers     int
	derive      bool
	now         func() time.Time
}

// New creates a Service. t may be nil, in which case only requests with a
// supplied transcript can be evaluated. d derives and tracks exercises and
// must write to the same store as s.
func New(s store.Store, t transcript.Transcriber, d *remediation.Deriver, opts ...Option) *Service {
	svc := &Service{
		store:       s,
		transcriber: t,
		deriver:     d,
		scorer:      scoring.New(),
		workers:     DefaultWorkers,
		derive:      true,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(svc)
	}
	if svc.metrics == nil {
		svc.metrics = observe.DefaultMetrics()
	}
	return svc
}

// Evaluate runs one evaluation end to end.
//
// A missing student or passage returns an error wrapping
// [store.ErrNotFound] before any transcription. If exercise derivation
// fails after the evaluation was stored, the returned Report is complete
// except for Exercises and the error is non-nil.
func (s *Service) Evaluate(ctx context.Context, req Request) (rep Report, err error) {
	ctx, span := observe.StartSpan(ctx, "evaluation.Evaluate")
	defer func() { observe.EndSpan(span, err) }()

	s.metrics.ActiveEvaluations.Add(ctx, 1)
	defer s.metrics.ActiveEvaluations.Add(ctx, -1)
	start := time.Now()
	defer func() { s.metrics.EvaluationDuration.Record(ctx, time.Since(start).Seconds()) }()

	log := observe.Logger(ctx).With("student_id", req.StudentID, "content_id", req.ContentID)

	if _, err := s.store.GetStudent(ctx, req.StudentID); err != nil {
		return Report{}, fmt.Errorf("evaluation: load student %q: %w", req.StudentID, err)
	}
	content, err := s.store.GetContent(ctx, req.ContentID)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: load content %q: %w", req.ContentID, err)
	}

	h, err := s.transcribe(ctx, req.Audio, req.Transcript, req.Duration)
	if err != nil {
		return Report{}, err
	}
	status := store.StatusScored
	if h.failed {
		log.Warn("evaluation: transcription failed, scoring as silence", "err", h.err)
		status = store.StatusTranscriptionFailed
	}
	rep.Provider = h.provider

	res, err := s.score(ctx, content.Text, h.text, h.duration)
	if err != nil {
		return Report{}, fmt.Errorf("evaluation: score content %q: %w", req.ContentID, err)
	}
	rep.Result = res
	rep.Outcome = scoring.Summarize(res)

	ev := store.Evaluation{
		StudentID:      req.StudentID,
		ContentID:      req.ContentID,
		Transcript:     h.text,
		AudioRef:       req.AudioRef,
		Duration:       h.duration,
		Accuracy:       res.Accuracy,
		RawAccuracy:    res.RawAccuracy,
		WordsPerMinute: res.WordsPerMinute,
		ErrorCount:     len(res.Errors),
		Tier:           rep.Outcome.Tier,
		Status:         status,
		CreatedAt:      s.now(),
	}
	ev.ID, err = s.persist(ctx, ev, res.Errors)
	if err != nil {
		return Report{}, err
	}
	rep.Evaluation = ev
	s.record(ctx, rep)

	log.Info("evaluation: stored",
		"evaluation_id", ev.ID,
		"status", status,
		"accuracy", res.Accuracy,
		"errors", len(res.Errors),
	)

	rep.Exercises = []store.PracticeExercise{}
	if !s.derive {
		return rep, nil
	}
	exs, err := s.deriver.Derive(ctx, req.StudentID, ev.ID, res.Errors)
	if err != nil {
		return rep, fmt.Errorf("evaluation: %w", err)
	}
	for _, ex := range exs {
		s.metrics.RecordExercise(ctx, string(ex.Kind))
	}
	rep.Exercises = exs
	return rep, nil
}

type heard struct {
	text     string
	duration time.Duration
	provider string

	// failed is set when transcription failed and text is empty.
	failed bool
	err    error
}

// transcribe returns the text to score: the supplied transcript, or the
// transcription of clip. A transcription failure is counted and reported
// through failed; only a cancelled ctx or a missing transcriber is an error.
func (s *Service) transcribe(ctx context.Context, clip audio.Clip, text string, d time.Duration) (heard, error) {
	if text != "" {
		return heard{text: text, duration: d}, nil
	}
	if s.transcriber == nil {
		return heard{}, ErrNoTranscriber
	}
	tr, err := s.transcriber.Transcribe(ctx, clip)
	switch {
	case err != nil && ctx.Err() != nil:
		return heard{}, fmt.Errorf("evaluation: transcribe: %w", err)
	case err != nil:
		s.metrics.TranscriptionFailures.Add(ctx, 1)
		return heard{duration: clip.Duration(), failed: true, err: err}, nil
	}
	return heard{text: tr.Text, duration: tr.Duration, provider: tr.Provider}, nil
}

// persist stores ev and one error detail per error in a single transaction.
func (s *Service) persist(ctx context.Context, ev store.Evaluation, errs []scoring.PronunciationError) (string, error) {
	var id string
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		id, err = tx.CreateEvaluation(ctx, ev)
		if err != nil {
			return err
		}
		for _, e := range errs {
			d := store.ErrorDetail{PronunciationError: e, WordAccuracy: e.WordAccuracy()}
			if _, err := tx.CreateErrorDetail(ctx, id, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("evaluation: store evaluation: %w", err)
	}
	return id, nil
}

func (s *Service) record(ctx context.Context, rep Report) {
	s.metrics.RecordEvaluation(ctx, string(rep.Evaluation.Status), string(rep.Outcome.Tier), rep.Result.Accuracy)
	s.metrics.RecordPronunciationErrors(ctx, scoring.Substitution.String(), rep.Outcome.Substitutions)
	s.metrics.RecordPronunciationErrors(ctx, scoring.Omission.String(), rep.Outcome.Omissions)
	s.metrics.RecordPronunciationErrors(ctx, scoring.Insertion.String(), rep.Outcome.Insertions)
}

func (s *Service) score(ctx context.Context, reference, hypothesis string, d time.Duration) (scoring.Result, error) {
	start := time.Now()
	res, err := s.scorer.Score(reference, hypothesis, d)
	s.metrics.ScoringDuration.Record(ctx, time.Since(start).Seconds())
	return res, err
}

// ScoreText scores hypothesis against reference without storing anything.
func (s *Service) ScoreText(ctx context.Context, reference, hypothesis string, d time.Duration) (scoring.Result, scoring.Outcome, error) {
	res, err := s.score(ctx, reference, hypothesis, d)
	if err != nil {
		return scoring.Result{}, scoring.Outcome{}, fmt.Errorf("evaluation: %w", err)
	}
	return res, scoring.Summarize(res), nil
}

// Derive rebuilds the errors of a stored evaluation and derives exercises
// from them.
func (s *Service) Derive(ctx context.Context, evaluationID string) ([]store.PracticeExercise, error) {
	exs, err := s.deriver.DeriveFromEvaluation(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("evaluation: %w", err)
	}
	for _, ex := range exs {
		s.metrics.RecordExercise(ctx, string(ex.Kind))
	}
	return exs, nil
}

// Exercises lists exercises matching f.
func (s *Service) Exercises(ctx context.Context, f store.ExerciseFilter) ([]store.PracticeExercise, error) {
	exs, err := s.store.ListExercises(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("evaluation: list exercises: %w", err)
	}
	return exs, nil
}
