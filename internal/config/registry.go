package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talkscribe/talkscribe/pkg/provider/llm"
	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transcribe map[string]func(ProviderEntry) (transcribe.Provider, error)
	grammar    map[string]func(ProviderEntry) (llm.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		transcribe: make(map[string]func(ProviderEntry) (transcribe.Provider, error)),
		grammar:    make(map[string]func(ProviderEntry) (llm.Provider, error)),
	}
}

// RegisterTranscribe registers a speech-to-text provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTranscribe(name string, factory func(ProviderEntry) (transcribe.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribe[name] = factory
}

// RegisterGrammar registers a grammar model backend factory under name.
func (r *Registry) RegisterGrammar(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammar[name] = factory
}

// CreateTranscribe instantiates a speech-to-text provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateTranscribe(entry ProviderEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcribe[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcribe/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateGrammar instantiates a grammar model backend using the factory
// registered under entry.Name.
func (r *Registry) CreateGrammar(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.grammar[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: grammar/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
