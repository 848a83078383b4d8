package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/lectora/internal/transcript"
	"github.com/MrWong99/lectora/pkg/audio"
)

// Compile-time assertion.
var _ transcript.Transcriber = (*TranscriberFallback)(nil)

// TranscriberFallback implements [transcript.Transcriber] with automatic
// failover across multiple backends. Errors it returns wrap
// [transcript.ErrTranscription].
type TranscriberFallback struct {
	group *FallbackGroup[transcript.Transcriber]
}

// NewTranscriberFallback creates a [TranscriberFallback] with the given
// primary transcriber.
func NewTranscriberFallback(primary transcript.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	return &TranscriberFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers a fallback transcriber.
func (f *TranscriberFallback) AddFallback(name string, t transcript.Transcriber) {
	f.group.AddFallback(name, t)
}

// Names returns the backend names in the order they are tried.
func (f *TranscriberFallback) Names() []string {
	return f.group.Names()
}

// Available reports whether at least one backend's circuit breaker is not
// open.
func (f *TranscriberFallback) Available() bool {
	for _, name := range f.group.Names() {
		if st, _ := f.group.State(name); st != StateOpen {
			return true
		}
	}
	return false
}

// Transcribe tries each backend in order until one succeeds.
func (f *TranscriberFallback) Transcribe(ctx context.Context, clip audio.Clip) (transcript.Result, error) {
	res, err := ExecuteWithResult(ctx, f.group, func(ctx context.Context, t transcript.Transcriber) (transcript.Result, error) {
		return t.Transcribe(ctx, clip)
	})
	if err != nil {
		if errors.Is(err, transcript.ErrTranscription) {
			return transcript.Result{}, err
		}
		return transcript.Result{}, fmt.Errorf("%w: %w", transcript.ErrTranscription, err)
	}
	return res, nil
}
