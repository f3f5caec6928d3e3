package arrowlayer

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/arrowlayer-go/schema"
)

// Config contains configuration for a Layer.
type Config struct {
	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger

	// Overlay supplies an explicit attribute overlay document.
	// OPTIONAL: If nil, the overlay is read from the schema metadata.
	Overlay *schema.Overlay

	// DisableSchemaOverlay skips the attribute overlay entirely, both the
	// explicit one and the schema-metadata one.
	// OPTIONAL: Default is overlay enabled.
	DisableSchemaOverlay bool

	// DisableFilterPushdown turns off constraint compilation. Attribute
	// filters are then evaluated only against materialized features.
	// OPTIONAL: Default is pushdown enabled.
	DisableFilterPushdown bool

	// DisableBBoxAcceleration ignores the per-row bbox.* columns and the
	// declared geometry extents. Spatial filtering then always inspects the
	// geometry values themselves.
	// OPTIONAL: Default is acceleration enabled.
	DisableBBoxAcceleration bool

	// ForceGenericExport makes Reader always materialize features instead of
	// passing source batches through.
	// OPTIONAL: Default is the direct path when its preconditions hold.
	ForceGenericExport bool

	// WKBTag is the extension name stamped on exported WKB geometry columns,
	// "geoarrow.wkb" or "ogc.wkb".
	// OPTIONAL: Defaults to "geoarrow.wkb".
	WKBTag string
}

// Standard errors returned by the arrowlayer package.
var (
	// ErrNilSource indicates New was called without a batch source.
	ErrNilSource = errors.New("nil batch source")

	// ErrUnknownField indicates a field name that is neither an attribute
	// nor a geometry field of the layer.
	ErrUnknownField = errors.New("unknown field")

	// ErrNoDomain indicates a FieldDomain lookup for a field without a
	// coded-value domain.
	ErrNoDomain = errors.New("field has no domain")
)

func (c *Config) allocator() memory.Allocator {
	if c.Allocator != nil {
		return c.Allocator
	}
	return memory.DefaultAllocator
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) wkbTag() string {
	if c.WKBTag != "" {
		return c.WKBTag
	}
	return "geoarrow.wkb"
}
