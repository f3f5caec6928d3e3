package flight

import "errors"

// Error types for layer set operations.

var (
	// ErrLayerExists is returned when adding a layer with a name that already exists.
	ErrLayerExists = errors.New("layer already exists")
	// ErrLayerNotFound is returned when a requested layer does not exist.
	ErrLayerNotFound = errors.New("layer not found")
	// ErrNilSource is returned when attempting to add a layer with a nil source.
	ErrNilSource = errors.New("layer source cannot be nil")
	// ErrNilProvider is returned when creating a server without a layer provider.
	ErrNilProvider = errors.New("layer provider cannot be nil")
)
