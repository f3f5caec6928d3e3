package arrowlayer

import (
	"github.com/twpayne/go-geom"
)

// Feature is one materialized row: the feature identifier, the attribute
// values in definition order and the geometry values in geometry-field
// order. Ignored fields hold nil. A feature is valid until the next call to
// Next on the layer that produced it.
type Feature struct {
	fid    int64
	values []any
	geoms  []geom.T
}

// FID returns the feature identifier, read from the FID column or assigned
// from the sequential row counter.
func (f *Feature) FID() int64 { return f.fid }

// Len returns the number of attribute fields.
func (f *Feature) Len() int { return len(f.values) }

// Value returns the attribute value at field index i, nil when null or
// ignored. Scalar values use the Go types of the mapping: int32, int64,
// bool, float32, float64, string, []byte, time.Time, time.Duration; list
// values use the matching slices.
func (f *Feature) Value(i int) any { return f.values[i] }

// IsNull reports whether the attribute at field index i is null.
func (f *Feature) IsNull(i int) bool { return f.values[i] == nil }

// Geometry returns the geometry value at geometry field index i, nil when
// null or ignored.
func (f *Feature) Geometry(i int) geom.T { return f.geoms[i] }
