// Package geometry decodes geometry columns of Arrow record batches into
// go-geom values and provides the envelope fast paths used for spatial
// filtering without full decoding.
package geometry

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/twpayne/go-geom"
)

// Encoding identifies how a geometry column stores its values.
type Encoding string

const (
	EncodingUnknown         Encoding = ""
	EncodingWKB             Encoding = "wkb"
	EncodingWKT             Encoding = "wkt"
	EncodingPoint           Encoding = "point"
	EncodingLineString      Encoding = "linestring"
	EncodingPolygon         Encoding = "polygon"
	EncodingMultiPoint      Encoding = "multipoint"
	EncodingMultiLineString Encoding = "multilinestring"
	EncodingMultiPolygon    Encoding = "multipolygon"
)

// Kind is the nominal geometry type of a column. It drives promotion of
// decoded single geometries when the column is declared as a multi type.
type Kind string

const (
	KindUnknown         Kind = ""
	KindPoint           Kind = "Point"
	KindLineString      Kind = "LineString"
	KindPolygon         Kind = "Polygon"
	KindMultiPoint      Kind = "MultiPoint"
	KindMultiLineString Kind = "MultiLineString"
	KindMultiPolygon    Kind = "MultiPolygon"
)

// ParseEncoding maps a geometry extension tag to its canonical encoding.
// Unrecognized tags return false; the caller keeps the column as a plain
// attribute field.
func ParseEncoding(tag string) (Encoding, bool) {
	switch tag {
	case "WKT", "ogc.wkt", "geoarrow.wkt":
		return EncodingWKT, true
	case "WKB", "ogc.wkb", "geoarrow.wkb":
		return EncodingWKB, true
	case "geoarrow.point":
		return EncodingPoint, true
	case "geoarrow.linestring":
		return EncodingLineString, true
	case "geoarrow.polygon":
		return EncodingPolygon, true
	case "geoarrow.multipoint":
		return EncodingMultiPoint, true
	case "geoarrow.multilinestring":
		return EncodingMultiLineString, true
	case "geoarrow.multipolygon":
		return EncodingMultiPolygon, true
	default:
		return EncodingUnknown, false
	}
}

// Tag returns the geoarrow extension tag for the encoding.
func (e Encoding) Tag() string {
	switch e {
	case EncodingWKB:
		return "geoarrow.wkb"
	case EncodingWKT:
		return "geoarrow.wkt"
	case EncodingPoint, EncodingLineString, EncodingPolygon,
		EncodingMultiPoint, EncodingMultiLineString, EncodingMultiPolygon:
		return "geoarrow." + string(e)
	default:
		return ""
	}
}

// Kind returns the geometry type implied by a native coordinate encoding,
// or KindUnknown for WKB/WKT columns, which carry their type per value.
func (e Encoding) Kind() Kind {
	switch e {
	case EncodingPoint:
		return KindPoint
	case EncodingLineString:
		return KindLineString
	case EncodingPolygon:
		return KindPolygon
	case EncodingMultiPoint:
		return KindMultiPoint
	case EncodingMultiLineString:
		return KindMultiLineString
	case EncodingMultiPolygon:
		return KindMultiPolygon
	default:
		return KindUnknown
	}
}

// IsCoordinate reports whether the encoding stores raw coordinates rather
// than serialized payloads.
func (e Encoding) IsCoordinate() bool {
	switch e {
	case EncodingPoint, EncodingLineString, EncodingPolygon,
		EncodingMultiPoint, EncodingMultiLineString, EncodingMultiPolygon:
		return true
	default:
		return false
	}
}

// IsMulti reports whether the nominal kind is a multi geometry.
func (k Kind) IsMulti() bool {
	switch k {
	case KindMultiPoint, KindMultiLineString, KindMultiPolygon:
		return true
	default:
		return false
	}
}

// nesting returns how many list levels wrap the point storage for a
// coordinate encoding.
func (e Encoding) nesting() int {
	switch e {
	case EncodingPoint:
		return 0
	case EncodingLineString, EncodingMultiPoint:
		return 1
	case EncodingPolygon, EncodingMultiLineString:
		return 2
	case EncodingMultiPolygon:
		return 3
	default:
		return -1
	}
}

// StorageLayout validates that the arrow type matches the physical storage
// the encoding requires and returns the coordinate layout it stores.
//
// WKB accepts binary or large binary, WKT string or large string. The
// coordinate encodings require the point storage to be a fixed-size list of
// 2 to 4 float64 values, wrapped in one list level per nesting degree. A
// three-value point is XYZ unless the inner field is named "xym"; four
// values are always XYZM.
func StorageLayout(e Encoding, dt arrow.DataType) (geom.Layout, error) {
	switch e {
	case EncodingWKB:
		switch dt.ID() {
		case arrow.BINARY, arrow.LARGE_BINARY:
			return geom.XY, nil
		}
		return geom.NoLayout, fmt.Errorf("wkb geometry requires a binary column, got %s", dt)
	case EncodingWKT:
		switch dt.ID() {
		case arrow.STRING, arrow.LARGE_STRING:
			return geom.XY, nil
		}
		return geom.NoLayout, fmt.Errorf("wkt geometry requires a string column, got %s", dt)
	}

	depth := e.nesting()
	if depth < 0 {
		return geom.NoLayout, fmt.Errorf("unknown geometry encoding %q", e)
	}
	cur := dt
	for i := 0; i < depth; i++ {
		lt, ok := cur.(*arrow.ListType)
		if !ok {
			return geom.NoLayout, fmt.Errorf("%s geometry requires %d list levels, got %s", e, depth, dt)
		}
		cur = lt.Elem()
	}
	return pointLayout(cur)
}

func pointLayout(dt arrow.DataType) (geom.Layout, error) {
	fsl, ok := dt.(*arrow.FixedSizeListType)
	if !ok {
		return geom.NoLayout, fmt.Errorf("point storage must be a fixed-size list, got %s", dt)
	}
	if fsl.Elem().ID() != arrow.FLOAT64 {
		return geom.NoLayout, fmt.Errorf("point storage must hold float64 values, got %s", fsl.Elem())
	}
	switch fsl.Len() {
	case 2:
		return geom.XY, nil
	case 3:
		if fsl.ElemField().Name == "xym" {
			return geom.XYM, nil
		}
		return geom.XYZ, nil
	case 4:
		return geom.XYZM, nil
	}
	return geom.NoLayout, fmt.Errorf("point storage must hold 2 to 4 values per point, got %d", fsl.Len())
}
