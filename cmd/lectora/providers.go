package main

import (
	"log/slog"

	"github.com/MrWong99/lectora/internal/config"
	"github.com/MrWong99/lectora/pkg/provider/stt"
	"github.com/MrWong99/lectora/pkg/provider/stt/deepgram"
	"github.com/MrWong99/lectora/pkg/provider/stt/mock"
	"github.com/MrWong99/lectora/pkg/provider/stt/openai"
	"github.com/MrWong99/lectora/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires all built-in speech-to-text factories into
// reg. Each factory receives a config.ProviderEntry and constructs the
// provider from the real implementation package.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = config.OptString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, openai.WithLanguage(lang))
		}
		if n := config.OptInt(entry.Options, "max_retries"); n > 0 {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// Deepgram only offers a streaming session; the app replays recordings
	// through it.
	reg.RegisterStreamSTT("deepgram", func(entry config.ProviderEntry) (stt.StreamProvider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// mock echoes options.text for every recording. Useful for dry runs of
	// a configuration without a speech backend.
	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Provider, error) {
		return &mock.Provider{
			Transcript: stt.Transcript{Text: config.OptString(entry.Options, "text")},
		}, nil
	})

	for _, name := range reg.Names() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}
