// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to return canned transcripts from Transcribe and inspect the
// clips it received. Use StreamProvider and Session to feed controlled
// Transcript values through a streaming session.
//
// Example:
//
//	p := &mock.Provider{Transcript: stt.Transcript{Text: "el perro corre"}}
//	t, _ := p.Transcribe(ctx, clip, stt.Config{})
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/lectora/pkg/audio"
	"github.com/MrWong99/lectora/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	Clip audio.Clip
	Cfg  stt.Config
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by every successful Transcribe call.
	Transcript stt.Transcript

	// TranscribeFunc, if set, replaces the canned Transcript and Err.
	TranscribeFunc func(ctx context.Context, clip audio.Clip, cfg stt.Config) (stt.Transcript, error)

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, cfg stt.Config) (stt.Transcript, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Clip: clip, Cfg: cfg})
	fn, tr, err := p.TranscribeFunc, p.Transcript, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, clip, cfg)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	tr.IsFinal = true
	return tr, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// StartStreamCall records a single invocation of StreamProvider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// StreamProvider is a mock implementation of stt.StreamProvider.
type StreamProvider struct {
	mu sync.Mutex

	// Finals are delivered by every session the provider opens, after all
	// audio has been sent and Close was called.
	Finals []stt.Transcript

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// Sessions records every session opened, in order.
	Sessions []*Session
}

// StartStream records the call and returns a new Session that emits Finals
// on Close.
func (p *StreamProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	s := NewSession(p.Finals...)
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// Ensure StreamProvider implements stt.StreamProvider at compile time.
var _ stt.StreamProvider = (*StreamProvider)(nil)

// errClosed is returned by SendAudio after Close.
var errClosed = errors.New("mock: session is closed")

// Session is a mock implementation of stt.SessionHandle. For every chunk it
// receives it emits a partial; on Close it emits its finals and closes both
// channels.
type Session struct {
	mu sync.Mutex

	finals   []stt.Transcript
	partials chan stt.Transcript
	out      chan stt.Transcript
	closed   bool

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// Chunks records a copy of every chunk passed to SendAudio.
	Chunks [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession returns a Session that delivers finals on Close.
func NewSession(finals ...stt.Transcript) *Session {
	return &Session{
		finals:   finals,
		partials: make(chan stt.Transcript, 1),
		out:      make(chan stt.Transcript),
	}
}

// SendAudio records the chunk and emits a partial if nobody is behind on
// reading them.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	s.Chunks = append(s.Chunks, append([]byte(nil), chunk...))
	select {
	case s.partials <- stt.Transcript{Text: "…"}:
	default:
	}
	return nil
}

// Partials returns the interim transcript channel.
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the final transcript channel. It is unbuffered: finals are
// handed over during Close.
func (s *Session) Finals() <-chan stt.Transcript { return s.out }

// Close delivers the finals, closes both channels and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	if s.closed {
		s.mu.Unlock()
		return s.CloseErr
	}
	s.closed = true
	finals := s.finals
	s.mu.Unlock()

	for _, t := range finals {
		t.IsFinal = true
		s.out <- t
	}
	close(s.out)
	close(s.partials)
	return s.CloseErr
}

// ChunkCount returns the number of SendAudio calls recorded. Thread-safe.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Chunks)
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
