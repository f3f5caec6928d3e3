package flight

import (
	"context"
	"fmt"
	"sync"

	arrowlayer "github.com/hugr-lab/arrowlayer-go"
)

// LayerProvider resolves layer names to open layers. DoGet and GetFlightInfo
// call OpenLayer once per request; every request gets its own Layer, so
// implementations must not share iteration state between calls.
// Implementations MUST be goroutine-safe.
type LayerProvider interface {
	// OpenLayer returns a fresh layer for the named dataset.
	// Returns ErrLayerNotFound when the name is unknown.
	OpenLayer(ctx context.Context, name string) (*arrowlayer.Layer, error)

	// LayerNames lists the datasets this provider serves.
	LayerNames(ctx context.Context) ([]string, error)
}

// StaticSet is a LayerProvider over a fixed set of named sources.
// Layers are constructed on demand from the registered source and config.
type StaticSet struct {
	mu      sync.RWMutex
	entries map[string]staticEntry
	names   []string // registration order
}

type staticEntry struct {
	source arrowlayer.BatchSource
	cfg    arrowlayer.Config
}

// NewStaticSet creates an empty layer set. Register layers with Add.
func NewStaticSet() *StaticSet {
	return &StaticSet{
		entries: make(map[string]staticEntry),
	}
}

// Add registers a source under the given name.
// Returns ErrLayerExists if the name is taken, ErrNilSource for a nil source.
func (s *StaticSet) Add(name string, source arrowlayer.BatchSource, cfg arrowlayer.Config) error {
	if source == nil {
		return fmt.Errorf("%w: %s", ErrNilSource, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrLayerExists, name)
	}

	s.entries[name] = staticEntry{source: source, cfg: cfg}
	s.names = append(s.names, name)
	return nil
}

// OpenLayer implements LayerProvider.
func (s *StaticSet) OpenLayer(ctx context.Context, name string) (*arrowlayer.Layer, error) {
	s.mu.RLock()
	entry, ok := s.entries[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
	}

	return arrowlayer.New(entry.source, entry.cfg)
}

// LayerNames implements LayerProvider. Names come back in registration order.
func (s *StaticSet) LayerNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.names))
	copy(names, s.names)
	return names, nil
}
