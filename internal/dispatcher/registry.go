package dispatcher

import (
	"fmt"
	"net/http"
	"sync"
)

// KeywordRequest is the registry keyword of the HTTP request dispatcher.
const KeywordRequest = "request"

// Factory creates a fresh dispatcher for one route process.
type Factory func() Interface

// Registry maps dispatcher keywords to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(keyword string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[keyword] = factory
}

// DataDispatcher returns a new dispatcher instance for keyword.
func (r *Registry) DataDispatcher(keyword string) (Interface, error) {
	r.mu.RLock()
	factory, ok := r.factories[keyword]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDispatcher, keyword)
	}
	return factory(), nil
}

// RegisterRequest registers the HTTP request dispatcher under "request".
func RegisterRequest(r *Registry, client *http.Client) {
	r.Register(KeywordRequest, func() Interface {
		return New(client)
	})
}
