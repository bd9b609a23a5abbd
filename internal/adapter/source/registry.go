package source

import (
	"errors"
	"fmt"

	"github.com/cwygoda/transcriber/internal/domain"
)

// ErrUnknownSource is returned by Get for names nobody registered.
var ErrUnknownSource = errors.New("unknown transcript source")

// Registry holds the available transcript sources.
type Registry struct {
	sources []domain.TranscriptSource
}

// NewRegistry creates a new source registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a source to the registry. A later source with the same
// name shadows an earlier one.
func (r *Registry) Register(s domain.TranscriptSource) {
	r.sources = append(r.sources, s)
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (domain.TranscriptSource, error) {
	for i := len(r.sources) - 1; i >= 0; i-- {
		if r.sources[i].Name() == name {
			return r.sources[i], nil
		}
	}
	return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownSource, name, r.Names())
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}
