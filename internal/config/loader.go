package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/lectora/internal/scoring"
)

// KnownProviders lists the speech-to-text backends that ship with lectora.
// Used by [Validate] to warn about unrecognised provider names.
var KnownProviders = []string{"whisper", "whisper-native", "deepgram", "openai", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected. Empty input yields the
// default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: sqlite, postgres, memory", cfg.Store.Driver))
	}
	if cfg.Store.Driver == DriverPostgres && cfg.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required when store.driver is postgres"))
	}

	tc := cfg.Transcription
	if tc.Provider.Name == "" && len(tc.Fallbacks) > 0 {
		errs = append(errs, errors.New("transcription.fallbacks are set but transcription.provider.name is empty"))
	}
	if tc.Provider.Name == "" {
		slog.Warn("no transcription provider configured; only text scoring is available")
	}
	seen := make(map[string]string, len(tc.Fallbacks)+1)
	entries := append([]ProviderEntry{tc.Provider}, tc.Fallbacks...)
	for i, e := range entries {
		field := "transcription.provider"
		if i > 0 {
			field = fmt.Sprintf("transcription.fallbacks[%d]", i-1)
		}
		if e.Name == "" {
			if i > 0 {
				errs = append(errs, fmt.Errorf("%s.name is required", field))
			}
			continue
		}
		validateProviderName(e.Name)
		key := ProviderLabel(e)
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s duplicates %s (%s)", field, prev, key))
		}
		seen[key] = field
	}
	if tc.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("transcription.sample_rate %d must not be negative", tc.SampleRate))
	}
	if tc.Timeout < 0 {
		errs = append(errs, fmt.Errorf("transcription.timeout %v must not be negative", tc.Timeout))
	}
	if tc.SilenceThreshold < 0 || tc.SilenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("transcription.silence_threshold %.3f is out of range [0, 1)", tc.SilenceThreshold))
	}

	if _, err := scoring.SimilarityByName(cfg.Scoring.Similarity); err != nil {
		errs = append(errs, fmt.Errorf("scoring.similarity %q is invalid; valid values: %s, %s, %s",
			cfg.Scoring.Similarity, scoring.MetricRatio, scoring.MetricLevenshtein, scoring.MetricJaroWinkler))
	}

	if cfg.Evaluation.Workers < 0 {
		errs = append(errs, fmt.Errorf("evaluation.workers %d must not be negative", cfg.Evaluation.Workers))
	}

	return errors.Join(errs...)
}

// ProviderLabel names an entry for logs, metrics and fallback groups:
// the provider name, plus the model when one is set.
func ProviderLabel(e ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

func validateProviderName(name string) {
	if slices.Contains(KnownProviders, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"name", name,
		"known", KnownProviders,
	)
}

// OptString returns the string value stored under key in opts, or "" if the
// key is missing or not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// OptInt returns the integer value stored under key in opts, or 0. YAML
// integers decode as int; float values are truncated.
func OptInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
