// Package stt defines the interfaces for Speech-to-Text backends.
//
// Most backends transcribe a finished recording in one request and implement
// [Provider]. Backends that only offer a real-time API implement
// [StreamProvider] instead: a session accepts raw PCM chunks and emits
// low-latency partials and authoritative finals.
//
// All audio is signed 16-bit little-endian PCM (see package audio).
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/lectora/pkg/audio"
)

// Config carries recognition hints for a single request.
type Config struct {
	// Language is the BCP-47 language tag for recognition (e.g. "es", "es-MX").
	// An empty string lets the provider use its default or auto-detect.
	Language string
}

// Provider transcribes complete recordings.
type Provider interface {
	// Transcribe returns the text spoken in clip. The clip's format must be
	// one the provider accepts; callers normally convert to 16 kHz mono first.
	// A clip with no recognisable speech yields an empty Text and no error.
	Transcribe(ctx context.Context, clip audio.Clip, cfg Config) (Transcript, error)
}

// StreamConfig describes the audio format and recognition hints for a new
// streaming session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition.
	Language string
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio. Calling SendAudio after
	// Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns interim transcripts. The channel is closed when the
	// session ends.
	Partials() <-chan Transcript

	// Finals returns authoritative transcripts. The channel is closed when
	// the session ends.
	Finals() <-chan Transcript

	// Close flushes pending audio, waits for the remaining finals to be
	// delivered and releases all resources. Finals must be consumed
	// concurrently with Close. Calling Close more than once is safe.
	Close() error
}

// StreamProvider is a backend that only offers real-time transcription.
type StreamProvider interface {
	// StartStream opens a new streaming session. The caller owns the
	// SessionHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
