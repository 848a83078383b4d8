package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lectora/internal/app"
	"github.com/MrWong99/lectora/internal/config"
	"github.com/MrWong99/lectora/internal/evaluation"
	"github.com/MrWong99/lectora/internal/observe"
	"github.com/MrWong99/lectora/internal/resilience"
	"github.com/MrWong99/lectora/internal/store"
	"github.com/MrWong99/lectora/internal/store/storetest"
	"github.com/MrWong99/lectora/pkg/audio"
	"github.com/MrWong99/lectora/pkg/provider/stt"
	"github.com/MrWong99/lectora/pkg/provider/stt/mock"
)

var errDown = errors.New("backend down")

// testConfig returns a validated in-memory config using the mock provider.
func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

// testRegistry registers a "mock" batch provider that fails for the model
// "down" and a "mock-stream" streaming provider.
func testRegistry(text string) *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Provider, error) {
		if entry.Model == "down" {
			return &mock.Provider{Err: errDown}, nil
		}
		return &mock.Provider{Transcript: stt.Transcript{Text: text}}, nil
	})
	reg.RegisterStreamSTT("mock-stream", func(config.ProviderEntry) (stt.StreamProvider, error) {
		return &mock.StreamProvider{Finals: []stt.Transcript{{Text: text, IsFinal: true}}}, nil
	})
	return reg
}

func newApp(t *testing.T, cfg *config.Config, reg *config.Registry, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithMetrics(observe.DefaultMetrics())}, opts...)
	a, err := app.New(context.Background(), cfg, reg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

// recording is one second of 16 kHz mono silence.
func recording() audio.Clip {
	return audio.Clip{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
}

func evaluate(t *testing.T, a *app.App) evaluation.Report {
	t.Helper()
	storetest.Seed(t, a.Store())
	rep, err := a.Service().Evaluate(context.Background(), evaluation.Request{
		StudentID: "ana",
		ContentID: "perro",
		Audio:     recording(),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return rep
}

func TestNew_BatchProvider(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `
store: {driver: memory}
transcription:
  provider: {name: mock}
`)
	a := newApp(t, cfg, testRegistry("el perro corre"))

	rep := evaluate(t, a)
	if rep.Result.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100", rep.Result.Accuracy)
	}
	if rep.Provider != "mock" {
		t.Errorf("Provider = %q, want mock", rep.Provider)
	}
}

func TestNew_StreamProvider(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `
store: {driver: memory}
transcription:
  provider: {name: mock-stream}
`)
	a := newApp(t, cfg, testRegistry("el perro corre"))

	rep := evaluate(t, a)
	if rep.Result.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100", rep.Result.Accuracy)
	}
	if rep.Provider != "mock-stream" {
		t.Errorf("Provider = %q, want mock-stream", rep.Provider)
	}
}

func TestNew_Fallbacks(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `
store: {driver: memory}
transcription:
  provider: {name: mock, model: down}
  fallbacks:
    - {name: mock, model: up}
`)
	a := newApp(t, cfg, testRegistry("el perro corre"))

	fb, ok := a.Transcriber().(*resilience.TranscriberFallback)
	if !ok {
		t.Fatalf("Transcriber() = %T, want *resilience.TranscriberFallback", a.Transcriber())
	}
	if got := fb.Names(); len(got) != 2 || got[0] != "mock/down" || got[1] != "mock/up" {
		t.Errorf("Names() = %v, want [mock/down mock/up]", got)
	}

	rep := evaluate(t, a)
	if rep.Provider != "mock/up" {
		t.Errorf("Provider = %q, want mock/up", rep.Provider)
	}
}

func TestNew_NoProvider(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `store: {driver: memory}`)
	a := newApp(t, cfg, nil)

	if a.Transcriber() != nil {
		t.Errorf("Transcriber() = %T, want nil", a.Transcriber())
	}
	storetest.Seed(t, a.Store())
	_, err := a.Service().Evaluate(context.Background(), evaluation.Request{
		StudentID: "ana",
		ContentID: "perro",
		Audio:     recording(),
	})
	if !errors.Is(err, evaluation.ErrNoTranscriber) {
		t.Errorf("Evaluate = %v, want ErrNoTranscriber", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *config.Config
		want error
	}{
		{
			name: "unregistered provider",
			cfg: &config.Config{
				Store:         config.StoreConfig{Driver: config.DriverMemory},
				Transcription: config.TranscriptionConfig{Provider: config.ProviderEntry{Name: "nope"}},
			},
			want: config.ErrProviderNotRegistered,
		},
		{
			name: "unregistered fallback",
			cfg: &config.Config{
				Store: config.StoreConfig{Driver: config.DriverMemory},
				Transcription: config.TranscriptionConfig{
					Provider:  config.ProviderEntry{Name: "mock"},
					Fallbacks: []config.ProviderEntry{{Name: "nope"}},
				},
			},
			want: config.ErrProviderNotRegistered,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.cfg.ApplyDefaults()
			_, err := app.New(context.Background(), tc.cfg, testRegistry(""), app.WithMetrics(observe.DefaultMetrics()))
			if !errors.Is(err, tc.want) {
				t.Errorf("New = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNew_UnknownSimilarity(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Store:   config.StoreConfig{Driver: config.DriverMemory},
		Scoring: config.ScoringConfig{Similarity: "soundex"},
	}
	cfg.ApplyDefaults()
	if _, err := app.New(context.Background(), cfg, nil, app.WithMetrics(observe.DefaultMetrics())); err == nil {
		t.Error("New = nil error, want unknown similarity error")
	}
}

func TestNew_SQLite(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Store: config.StoreConfig{
			Driver: config.DriverSQLite,
			DSN:    filepath.Join(t.TempDir(), "lectora.db"),
		},
	}
	cfg.ApplyDefaults()
	a := newApp(t, cfg, nil)

	if err := a.Store().Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	storetest.Seed(t, a.Store())
	rep, err := a.Service().Evaluate(context.Background(), evaluation.Request{
		StudentID:  "ana",
		ContentID:  "perro",
		Transcript: "el gato corre",
		Duration:   3 * time.Second,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(rep.Exercises) != 1 || len(rep.Exercises[0].TargetWords) != 1 || rep.Exercises[0].TargetWords[0] != "perro" {
		t.Fatalf("Exercises = %+v, want one drill on perro", rep.Exercises)
	}

	stored, err := a.Store().ListExercises(context.Background(), store.ExerciseFilter{StudentID: "ana"})
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != rep.Exercises[0].ID {
		t.Errorf("stored exercises = %+v, want the derived drill", stored)
	}
}

func TestNew_InjectedStoreNotClosed(t *testing.T) {
	t.Parallel()
	s := &closeCounter{MemStore: store.NewMemStore()}
	cfg := &config.Config{}
	cfg.ApplyDefaults()

	a, err := app.New(context.Background(), cfg, nil, app.WithStore(s), app.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s.closed != 0 {
		t.Errorf("Close calls = %d, want 0", s.closed)
	}
}

type closeCounter struct {
	*store.MemStore
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestHandler(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `
store: {driver: memory}
transcription:
  provider: {name: mock, model: down}
  fallbacks:
    - {name: mock, model: also-down}
  circuit_breaker: {max_failures: 1}
`)
	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) {
		return &mock.Provider{Err: errDown}, nil
	})
	a := newApp(t, cfg, reg)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	get := func(path string) int {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := get("/healthz"); got != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", got)
	}
	if got := get("/readyz"); got != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", got)
	}
	if got := get("/metrics"); got != http.StatusNotFound {
		t.Errorf("GET /metrics with injected metrics = %d, want 404", got)
	}

	// One failure per backend opens every breaker.
	if _, err := a.Transcriber().Transcribe(context.Background(), recording()); err == nil {
		t.Fatal("Transcribe = nil error, want failure")
	}
	if got := get("/readyz"); got != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz with open breakers = %d, want 503", got)
	}
}

func TestServe_NoOpsAddr(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `store: {driver: memory}`)
	a := newApp(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `
server: {ops_addr: "127.0.0.1:0"}
store: {driver: memory}
`)
	a := newApp(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `store: {driver: memory}`)
	a, err := app.New(context.Background(), cfg, nil, app.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range 2 {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown #%d: %v", i+1, err)
		}
	}
}

func TestShutdown_ExpiredDeadline(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `store: {driver: memory}`)
	a, err := app.New(context.Background(), cfg, nil, app.WithMetrics(observe.DefaultMetrics()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown = %v, want context.Canceled", err)
	}
}
