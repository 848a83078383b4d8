package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/lectora/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions. Batch
// providers transcribe a whole recording per call; streaming providers take
// audio in chunks. A name may be registered in either table or both.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stt    map[string]func(ProviderEntry) (stt.Provider, error)
	stream map[string]func(ProviderEntry) (stt.StreamProvider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:    make(map[string]func(ProviderEntry) (stt.Provider, error)),
		stream: make(map[string]func(ProviderEntry) (stt.StreamProvider, error)),
	}
}

// RegisterSTT registers a batch STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterStreamSTT registers a streaming STT provider factory under name.
func (r *Registry) RegisterStreamSTT(name string, factory func(ProviderEntry) (stt.StreamProvider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream[name] = factory
}

// CreateSTT instantiates a batch STT provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateStreamSTT instantiates a streaming STT provider using the factory
// registered under entry.Name.
func (r *Registry) CreateStreamSTT(entry ProviderEntry) (stt.StreamProvider, error) {
	r.mu.RLock()
	factory, ok := r.stream[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stream-stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns every registered provider name, sorted and deduplicated.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stt)+len(r.stream))
	for n := range r.stt {
		names = append(names, n)
	}
	for n := range r.stream {
		names = append(names, n)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
