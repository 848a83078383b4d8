// Package app wires all lectora subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the store, builds the
// transcription chain and the evaluation service from the config, Serve runs
// the operations listener, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithTranscriber, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/MrWong99/lectora/internal/config"
	"github.com/MrWong99/lectora/internal/evaluation"
	"github.com/MrWong99/lectora/internal/health"
	"github.com/MrWong99/lectora/internal/observe"
	"github.com/MrWong99/lectora/internal/remediation"
	"github.com/MrWong99/lectora/internal/resilience"
	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
	"github.com/MrWong99/lectora/internal/store/postgres"
	"github.com/MrWong99/lectora/internal/store/sqlite"
	"github.com/MrWong99/lectora/internal/transcript"
	"github.com/MrWong99/lectora/pkg/audio"
)

// ErrTranscribersUnavailable is reported by the readiness probe when every
// transcription backend has an open circuit breaker.
var ErrTranscribersUnavailable = errors.New("app: all transcription backends unavailable")

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry

	// Subsystems, initialised in New and torn down in Shutdown.
	store       store.Store
	transcriber transcript.Transcriber
	metrics     *observe.Metrics
	telemetry   *observe.Telemetry
	service     *evaluation.Service
	ops         *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of opening the configured one. The
// caller keeps ownership; Shutdown does not close it.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTranscriber injects a transcriber instead of building one from the
// registry.
func WithTranscriber(t transcript.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithMetrics injects a metrics sink and skips the OpenTelemetry SDK setup.
// The ops listener then serves no /metrics endpoint.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. reg supplies the
// speech-to-text factories named in cfg.Transcription.
//
// On error every subsystem opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		registry: reg,
	}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 3. Transcription chain ───────────────────────────────────────────
	if err := a.initTranscriber(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init transcription: %w", err)
	}

	// ── 4. Evaluation service ────────────────────────────────────────────
	if err := a.initService(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init evaluation: %w", err)
	}

	// ── 5. Ops listener ──────────────────────────────────────────────────
	a.initOps()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry sets up the OTel SDK with a Prometheus exporter unless a
// metrics sink was injected.
func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lectora"})
	if err != nil {
		return err
	}
	a.telemetry = tel
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tel.Shutdown(ctx)
	})

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initStore opens the configured backend or uses the injected store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	sc := a.cfg.Store
	var (
		s   store.Store
		err error
	)
	switch sc.Driver {
	case config.DriverMemory:
		s = store.NewMemStore()
	case config.DriverPostgres:
		var pg *postgres.Store
		pg, err = postgres.NewStore(ctx, sc.DSN)
		s = pg
	default:
		var lite *sqlite.Store
		lite, err = sqlite.Open(ctx, sc.DSN)
		s = lite
	}
	if err != nil {
		return fmt.Errorf("open %s store: %w", sc.Driver, err)
	}

	a.store = s
	a.closers = append(a.closers, s.Close)
	slog.Info("store opened", "driver", sc.Driver)
	return nil
}

// initTranscriber builds the primary transcriber and wraps it with the
// configured fallbacks.
func (a *App) initTranscriber() error {
	if a.transcriber != nil {
		return nil
	}

	tc := a.cfg.Transcription
	if tc.Provider.Name == "" {
		slog.Warn("no transcription provider configured, evaluations need a supplied transcript")
		return nil
	}

	primary, err := a.buildTranscriber(tc.Provider)
	if err != nil {
		return err
	}
	if len(tc.Fallbacks) == 0 {
		a.transcriber = primary
		return nil
	}

	fb := resilience.NewTranscriberFallback(primary, config.ProviderLabel(tc.Provider), resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  tc.CircuitBreaker.MaxFailures,
			ResetTimeout: tc.CircuitBreaker.ResetTimeout,
			HalfOpenMax:  tc.CircuitBreaker.HalfOpenMax,
		},
	})
	for _, entry := range tc.Fallbacks {
		t, err := a.buildTranscriber(entry)
		if err != nil {
			return err
		}
		fb.AddFallback(config.ProviderLabel(entry), t)
	}
	slog.Info("transcription failover enabled", "order", fb.Names())
	a.transcriber = fb
	return nil
}

// buildTranscriber instantiates one provider entry. Batch factories are
// preferred; providers registered only as streaming backends are adapted
// with [transcript.NewStream].
func (a *App) buildTranscriber(entry config.ProviderEntry) (transcript.Transcriber, error) {
	tc := a.cfg.Transcription
	label := config.ProviderLabel(entry)
	opts := []transcript.Option{
		transcript.WithName(label),
		transcript.WithLanguage(tc.Language),
		transcript.WithFormat(audio.Format{SampleRate: tc.SampleRate, Channels: 1}),
		transcript.WithTimeout(tc.Timeout),
		transcript.WithSilenceTrim(tc.SilenceThreshold),
		transcript.WithMetrics(a.metrics),
	}

	p, err := a.registry.CreateSTT(entry)
	if err == nil {
		a.closeLater(p)
		slog.Info("provider created", "kind", "stt", "name", label)
		return transcript.New(p, opts...), nil
	}
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		return nil, fmt.Errorf("create stt provider %q: %w", label, err)
	}

	sp, err := a.registry.CreateStreamSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", label, err)
	}
	a.closeLater(sp)
	slog.Info("provider created", "kind", "stt-stream", "name", label)
	return transcript.NewStream(sp, opts...), nil
}

// closeLater registers v for Shutdown if it holds resources.
func (a *App) closeLater(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
}

// initService assembles the scorer, deriver and evaluation service.
func (a *App) initService() error {
	sim, err := scoring.SimilarityByName(a.cfg.Scoring.Similarity)
	if err != nil {
		return err
	}
	a.service = evaluation.New(
		a.store,
		a.transcriber,
		remediation.New(a.store),
		evaluation.WithScorer(scoring.New(scoring.WithSimilarity(sim))),
		evaluation.WithWorkers(a.cfg.Evaluation.Workers),
		evaluation.WithDerivation(a.cfg.Evaluation.ShouldDerive()),
		evaluation.WithMetrics(a.metrics),
	)
	return nil
}

// initOps builds the health and metrics listener when an address is set.
func (a *App) initOps() {
	if a.cfg.Server.OpsAddr == "" {
		return
	}
	a.ops = &http.Server{
		Addr:              a.cfg.Server.OpsAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Service returns the evaluation service.
func (a *App) Service() *evaluation.Service { return a.service }

// Store returns the persistence backend.
func (a *App) Store() store.Store { return a.store }

// Transcriber returns the transcription chain, or nil when none is
// configured.
func (a *App) Transcriber() transcript.Transcriber { return a.transcriber }

// Handler returns the operations mux: /healthz, /readyz and, when the SDK was
// initialised by New, /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.checkers()...).Register(mux)
	if a.telemetry != nil {
		mux.Handle("GET /metrics", a.telemetry.Handler())
	}
	return observe.Middleware(a.metrics)(mux)
}

// checkers returns the readiness checks: the store always, the transcription
// chain when one is configured.
func (a *App) checkers() []health.Checker {
	checks := []health.Checker{{Name: "store", Check: a.store.Ping}}
	if a.transcriber == nil {
		return checks
	}
	return append(checks, health.Checker{
		Name: "stt",
		Check: func(context.Context) error {
			if av, ok := a.transcriber.(interface{ Available() bool }); ok && !av.Available() {
				return ErrTranscribersUnavailable
			}
			return nil
		},
	})
}

// ─── Serve ───────────────────────────────────────────────────────────────────

// Serve runs the ops listener and blocks until ctx is cancelled. Without an
// ops address it just waits for ctx. Serve returns ctx.Err() after a clean
// stop.
func (a *App) Serve(ctx context.Context) error {
	if a.ops == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ln, err := net.Listen("tcp", a.ops.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.ops.Addr, err)
	}
	slog.Info("ops listener started", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- a.ops.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: ops listener: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.ops.Shutdown(shutdownCtx); err != nil {
			slog.Warn("ops listener shutdown error", "err", err)
		}
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever New opened before failing.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
	a.closers = nil
}
