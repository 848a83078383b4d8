// Package transcript turns a recorded reading into text for scoring.
//
// A [Service] wraps one speech-to-text backend. It converts the recording to
// the backend's input format, optionally trims leading and trailing silence,
// applies a timeout and records latency and outcome metrics. Every failure
// it returns wraps [ErrTranscription] so that callers can tell a failed
// transcription apart from a failed store or a bad request.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/lectora/internal/observe"
	"github.com/MrWong99/lectora/pkg/audio"
	"github.com/MrWong99/lectora/pkg/provider/stt"
)

// ErrTranscription marks every error returned by [Transcriber.Transcribe].
var ErrTranscription = errors.New("transcript: transcription failed")

// Result is the transcription of one recording.
type Result struct {
	// Text is the recognised speech. It may be empty.
	Text string `json:"text"`

	// Duration is the length of the submitted recording, silence included.
	// It is the reading time used for words per minute.
	Duration time.Duration `json:"duration"`

	// Confidence is the backend's confidence (0.0–1.0), zero if unknown.
	Confidence float64 `json:"confidence,omitempty"`

	// Provider names the backend that produced the text.
	Provider string `json:"provider"`
}

// Transcriber converts a recording into text.
//
// Implementations must be safe for concurrent use.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (Result, error)
}

// Defaults applied by [New] and [NewStream].
var (
	DefaultFormat  = audio.Format{SampleRate: 16000, Channels: 1}
	DefaultTimeout = 2 * time.Minute
)

// Option is a functional option for configuring a [Service].
type Option func(*Service)

// WithName sets the provider name used in results, logs and metrics.
// Default: "stt".
func WithName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLanguage sets the recognition language passed to the backend.
func WithLanguage(lang string) Option {
	return func(s *Service) { s.language = lang }
}

// WithFormat sets the audio format recordings are converted to before they
// reach the backend. Default: [DefaultFormat].
func WithFormat(f audio.Format) Option {
	return func(s *Service) {
		if f.SampleRate > 0 && f.Channels > 0 {
			s.format = f
		}
	}
}

// WithTimeout bounds a single transcription. Zero disables the timeout.
// Default: [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithSilenceTrim enables trimming of leading and trailing audio whose RMS
// energy is below threshold (0.0–1.0) before upload. Disabled by default.
func WithSilenceTrim(threshold float64) Option {
	return func(s *Service) { s.silence = threshold }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// transcribeFunc performs one backend call on an already converted clip.
type transcribeFunc func(ctx context.Context, clip audio.Clip, lang string) (stt.Transcript, error)

// Service implements [Transcriber] on top of a speech-to-text backend.
type Service struct {
	name     string
	language string
	format   audio.Format
	timeout  time.Duration
	silence  float64
	metrics  *observe.Metrics
	call     transcribeFunc
}

var _ Transcriber = (*Service)(nil)

// New returns a Service backed by a batch provider.
func New(p stt.Provider, opts ...Option) *Service {
	return newService(func(ctx context.Context, clip audio.Clip, lang string) (stt.Transcript, error) {
		return p.Transcribe(ctx, clip, stt.Config{Language: lang})
	}, opts)
}

func newService(call transcribeFunc, opts []Option) *Service {
	s := &Service{
		name:    "stt",
		format:  DefaultFormat,
		timeout: DefaultTimeout,
		call:    call,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Name returns the provider name.
func (s *Service) Name() string { return s.name }

// Transcribe converts clip, sends it to the backend and returns the text.
// A clip without a valid sample rate or channel count is rejected without
// calling the backend.
func (s *Service) Transcribe(ctx context.Context, clip audio.Clip) (res Result, err error) {
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return Result{}, fmt.Errorf("%w: %s: invalid audio format %d Hz, %d channels",
			ErrTranscription, s.name, clip.SampleRate, clip.Channels)
	}

	ctx, span := observe.StartSpan(ctx, "transcript.Transcribe")
	defer func() { observe.EndSpan(span, err) }()

	prepared := audio.Convert(clip, s.format)
	if s.silence > 0 {
		prepared = audio.TrimSilence(prepared, s.silence)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	t, err := s.call(ctx, prepared, s.language)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.name, "stt", "error")
		s.metrics.RecordProviderError(ctx, s.name, "stt")
		return Result{}, fmt.Errorf("%w: %s: %w", ErrTranscription, s.name, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.name, "stt", "ok")

	observe.Logger(ctx).Debug("transcript: transcribed",
		"provider", s.name,
		"duration", clip.Duration(),
		"uploaded", prepared.Duration(),
		"chars", len(t.Text),
	)
	return Result{
		Text:       t.Text,
		Duration:   clip.Duration(),
		Confidence: t.Confidence,
		Provider:   s.name,
	}, nil
}
