package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lectora/internal/transcript"
	"github.com/MrWong99/lectora/pkg/audio"
)

type fakeTranscriber struct {
	name  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, audio.Clip) (transcript.Result, error) {
	f.calls++
	if f.err != nil {
		return transcript.Result{}, f.err
	}
	return transcript.Result{Text: "el perro corre", Provider: f.name}, nil
}

var clip = audio.Clip{PCM: make([]byte, 320), SampleRate: 16000, Channels: 1}

func TestTranscriberFallback_UsesFallback(t *testing.T) {
	t.Parallel()
	primary := &fakeTranscriber{name: "whisper", err: errTest}
	backup := &fakeTranscriber{name: "openai"}
	f := NewTranscriberFallback(primary, "whisper", FallbackConfig{})
	f.AddFallback("openai", backup)

	res, err := f.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", res.Provider)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Errorf("calls = %d, %d, want 1, 1", primary.calls, backup.calls)
	}
}

func TestTranscriberFallback_WrapsErrTranscription(t *testing.T) {
	t.Parallel()
	f := NewTranscriberFallback(&fakeTranscriber{err: errTest}, "whisper", FallbackConfig{})
	f.AddFallback("openai", &fakeTranscriber{err: errTest})

	_, err := f.Transcribe(context.Background(), clip)
	if !errors.Is(err, transcript.ErrTranscription) {
		t.Errorf("Transcribe = %v, want ErrTranscription", err)
	}
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("Transcribe = %v, want ErrAllFailed", err)
	}
	if got := len(f.Names()); got != 2 {
		t.Errorf("len(Names()) = %d, want 2", got)
	}
}

func TestTranscriberFallback_Available(t *testing.T) {
	t.Parallel()
	cfg := FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1}}
	f := NewTranscriberFallback(&fakeTranscriber{err: errTest}, "whisper", cfg)
	f.AddFallback("openai", &fakeTranscriber{err: errTest})

	if !f.Available() {
		t.Fatal("Available() = false before any failure, want true")
	}
	_, _ = f.Transcribe(context.Background(), clip)
	if f.Available() {
		t.Error("Available() = true with every breaker open, want false")
	}
}
