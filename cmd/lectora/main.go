// Command lectora scores read-aloud recordings against reference passages
// and manages the practice exercises derived from them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/lectora/internal/app"
	"github.com/MrWong99/lectora/internal/config"
)

const usage = `usage: lectora [-config file] <command> [flags] [args]

commands:
  score      score a transcript against a reference text
  evaluate   evaluate recordings or a transcript of a stored passage
  practice   record an attempt at a practice exercise
  derive     derive exercises from a stored evaluation
  exercises  list a student's exercises
  import     import students and passages from a catalog file
  serve      run the health and metrics listener until interrupted
`

// defaultConfigPath is read when -config is not given. Unlike an explicit
// path it may be missing, in which case the built-in defaults apply.
const defaultConfigPath = "lectora.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("lectora", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", defaultConfigPath, "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "lectora: unknown command %q\n\n%s", name, usage)
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	explicit := false
	fs.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "config" })
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "lectora: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(stderr, "lectora: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(stderr, cfg.Server.LogLevel))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}

	if cmd.needsApp {
		reg := config.NewRegistry()
		registerBuiltinProviders(reg)

		application, err := app.New(ctx, cfg, reg)
		if err != nil {
			slog.Error("failed to initialise application", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := application.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "err", err)
			}
		}()
		e.app = application
	}

	if err := cmd.run(ctx, e, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "lectora: %s: %v\n", name, err)
		return 1
	}
	return 0
}

// loadConfig reads path. A missing default file yields the built-in
// defaults; a missing explicit file is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil || explicit || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	return config.LoadFromReader(strings.NewReader(""))
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
