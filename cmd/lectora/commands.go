package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/lectora/internal/app"
	"github.com/MrWong99/lectora/internal/catalog"
	"github.com/MrWong99/lectora/internal/config"
	"github.com/MrWong99/lectora/internal/evaluation"
	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
	"github.com/MrWong99/lectora/internal/transcript"
)

// errUsage marks invalid command-line arguments. The message has already
// been printed.
var errUsage = errors.New("usage error")

// env is what a command runs against.
type env struct {
	cfg    *config.Config
	app    *app.App // nil for commands that need no store
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	// needsApp opens the store and transcription chain before run.
	needsApp bool
	run      func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"score":     {run: runScore},
	"evaluate":  {needsApp: true, run: runEvaluate},
	"practice":  {needsApp: true, run: runPractice},
	"derive":    {needsApp: true, run: runDerive},
	"exercises": {needsApp: true, run: runExercises},
	"import":    {needsApp: true, run: runImport},
	"serve":     {needsApp: true, run: runServe},
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (e *env) newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "usage: lectora %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and maps flag errors to errUsage.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// usageErr prints msg and the flag usage.
func usageErr(e *env, fs *flag.FlagSet, msg string) error {
	fmt.Fprintf(e.stderr, "lectora %s: %s\n", fs.Name(), msg)
	fs.Usage()
	return errUsage
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── score ─────────────────────────────────────────────────────────────────────

type scoreOutput struct {
	Result  scoring.Result  `json:"result"`
	Outcome scoring.Outcome `json:"outcome"`
}

func runScore(_ context.Context, e *env, args []string) error {
	fs := e.newFlagSet("score", "")
	reference := fs.String("reference", "", "reference text the learner read")
	hypothesis := fs.String("hypothesis", "", "transcript of what the learner said")
	duration := fs.Duration("duration", 0, "reading time, used for words per minute")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *reference == "" {
		return usageErr(e, fs, "-reference is required")
	}

	sim, err := scoring.SimilarityByName(e.cfg.Scoring.Similarity)
	if err != nil {
		return err
	}
	res, err := scoring.New(scoring.WithSimilarity(sim)).Score(*reference, *hypothesis, *duration)
	if err != nil {
		return err
	}
	return e.writeJSON(scoreOutput{Result: res, Outcome: scoring.Summarize(res)})
}

// ── evaluate ──────────────────────────────────────────────────────────────────

// errBatchFailed is returned when at least one recording of a batch could
// not be evaluated. The per-item errors are part of the JSON output.
var errBatchFailed = errors.New("some evaluations failed")

func runEvaluate(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("evaluate", "[recording.wav ...]")
	studentID := fs.String("student", "", "student id")
	contentID := fs.String("content", "", "passage id")
	text := fs.String("text", "", "score this transcript instead of transcribing recordings")
	duration := fs.Duration("duration", 0, "reading time when -text is used")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *studentID == "" || *contentID == "" {
		return usageErr(e, fs, "-student and -content are required")
	}

	svc := e.app.Service()
	base := evaluation.Request{StudentID: *studentID, ContentID: *contentID}

	if *text != "" {
		if fs.NArg() > 0 {
			return usageErr(e, fs, "-text cannot be combined with recordings")
		}
		base.Transcript, base.Duration = *text, *duration
		return e.report(svc.Evaluate(ctx, base))
	}

	if fs.NArg() == 0 {
		return usageErr(e, fs, "need -text or at least one recording")
	}
	reqs := make([]evaluation.Request, 0, fs.NArg())
	for _, path := range fs.Args() {
		clip, err := transcript.ReadFile(path)
		if err != nil {
			return err
		}
		req := base
		req.Audio, req.AudioRef = clip, path
		reqs = append(reqs, req)
	}
	if len(reqs) == 1 {
		return e.report(svc.Evaluate(ctx, reqs[0]))
	}

	items := svc.EvaluateBatch(ctx, reqs)
	if err := e.writeJSON(items); err != nil {
		return err
	}
	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailed, failed, len(items))
	}
	return nil
}

// report prints rep whenever it holds a stored evaluation, even if exercise
// derivation failed afterwards.
func (e *env) report(rep evaluation.Report, err error) error {
	if rep.Evaluation.ID != "" {
		if werr := e.writeJSON(rep); werr != nil {
			return werr
		}
	}
	return err
}

// ── practice ──────────────────────────────────────────────────────────────────

func runPractice(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("practice", "[recording.wav]")
	studentID := fs.String("student", "", "student id")
	exerciseID := fs.String("exercise", "", "exercise id")
	text := fs.String("text", "", "score this transcript instead of transcribing a recording")
	duration := fs.Duration("duration", 0, "reading time when -text is used")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *studentID == "" || *exerciseID == "" {
		return usageErr(e, fs, "-student and -exercise are required")
	}

	req := evaluation.PracticeRequest{StudentID: *studentID, ExerciseID: *exerciseID}
	switch {
	case *text != "" && fs.NArg() == 0:
		req.Transcript, req.Duration = *text, *duration
	case *text == "" && fs.NArg() == 1:
		clip, err := transcript.ReadFile(fs.Arg(0))
		if err != nil {
			return err
		}
		req.Audio = clip
	default:
		return usageErr(e, fs, "need exactly one of -text or a recording")
	}

	att, err := e.app.Service().Practice(ctx, req)
	if err != nil {
		return err
	}
	return e.writeJSON(att)
}

// ── derive ────────────────────────────────────────────────────────────────────

func runDerive(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("derive", "")
	evaluationID := fs.String("evaluation", "", "evaluation id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *evaluationID == "" {
		return usageErr(e, fs, "-evaluation is required")
	}

	exs, err := e.app.Service().Derive(ctx, *evaluationID)
	if err != nil {
		return err
	}
	return e.writeJSON(nonNil(exs))
}

// ── exercises ─────────────────────────────────────────────────────────────────

func runExercises(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("exercises", "")
	var f store.ExerciseFilter
	fs.StringVar(&f.StudentID, "student", "", "student id")
	fs.StringVar(&f.EvaluationID, "evaluation", "", "only exercises derived from this evaluation")
	fs.BoolVar(&f.Pending, "pending", false, "only exercises not yet completed")
	fs.IntVar(&f.Limit, "limit", 0, "maximum number of exercises, 0 for all")
	if err := parse(fs, args); err != nil {
		return err
	}
	if f.StudentID == "" {
		return usageErr(e, fs, "-student is required")
	}

	exs, err := e.app.Service().Exercises(ctx, f)
	if err != nil {
		return err
	}
	return e.writeJSON(nonNil(exs))
}

// ── import ────────────────────────────────────────────────────────────────────

func runImport(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("import", "catalog.yaml ...")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageErr(e, fs, "need at least one catalog file")
	}

	var total catalog.Summary
	for _, path := range fs.Args() {
		cf, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		sum, err := catalog.Import(ctx, e.app.Store(), cf)
		if err != nil {
			return fmt.Errorf("import %q: %w", path, err)
		}
		slog.Info("imported catalog", "path", path, "students", sum.Students, "contents", sum.Contents)
		total.Students += sum.Students
		total.Contents += sum.Contents
	}
	return e.writeJSON(total)
}

// ── serve ─────────────────────────────────────────────────────────────────────

func runServe(ctx context.Context, e *env, args []string) error {
	fs := e.newFlagSet("serve", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	if e.cfg.Server.OpsAddr == "" {
		slog.Warn("server.ops_addr is empty, nothing to serve until interrupted")
	}

	slog.Info("lectora ready, press Ctrl+C to shut down")
	start := time.Now()
	err := e.app.Serve(ctx)
	slog.Info("shutdown signal received, stopping", "uptime", time.Since(start).Round(time.Second))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// nonNil makes empty lists print as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
