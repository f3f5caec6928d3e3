package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/twpayne/go-geom"

	"github.com/hugr-lab/arrowlayer-go/geometry"
)

// Arrow field metadata keys carrying the geometry extension information.
const (
	ExtensionNameKey     = "ARROW:extension:name"
	ExtensionMetadataKey = "ARROW:extension:metadata"
)

// GeometryMetadata is the JSON payload of a geometry field's extension
// metadata. Compatible with GeoArrow and GeoParquet column metadata.
type GeometryMetadata struct {
	// CRS is the coordinate reference system (PROJJSON format).
	CRS *CRS `json:"crs,omitempty"`

	// Encoding is the declared geometry encoding tag.
	Encoding string `json:"encoding,omitempty"`

	// GeometryTypes lists allowed geometry types (e.g., ["Point Z"]).
	// Empty means any type.
	GeometryTypes []string `json:"geometry_types,omitempty"`

	// Edges indicates edge interpretation ("planar" or "spherical").
	Edges string `json:"edges,omitempty"`

	// BBox is the declared extent, [minx miny maxx maxy] or the 3-D
	// variant with six values.
	BBox []float64 `json:"bbox,omitempty"`
}

// CRS is a coordinate reference system in PROJJSON form, reduced to the
// parts the engine forwards.
type CRS struct {
	ID   *CRSID `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// CRSID identifies a CRS, typically an EPSG code.
type CRSID struct {
	Authority string `json:"authority"`
	Code      int    `json:"code"`
}

// extensionTag returns the geometry extension tag of a field, looking at a
// registered extension type first and the field metadata second.
func extensionTag(f arrow.Field) (string, bool) {
	if ext, ok := f.Type.(arrow.ExtensionType); ok {
		return ext.ExtensionName(), true
	}
	if idx := f.Metadata.FindKey(ExtensionNameKey); idx >= 0 {
		return f.Metadata.Values()[idx], true
	}
	return "", false
}

// storageType unwraps a registered extension type to its storage.
func storageType(dt arrow.DataType) arrow.DataType {
	if ext, ok := dt.(arrow.ExtensionType); ok {
		return ext.StorageType()
	}
	return dt
}

func parseGeometryMetadata(f arrow.Field) *GeometryMetadata {
	var raw string
	if ext, ok := f.Type.(arrow.ExtensionType); ok {
		raw = ext.Serialize()
	}
	if raw == "" {
		idx := f.Metadata.FindKey(ExtensionMetadataKey)
		if idx < 0 {
			return nil
		}
		raw = f.Metadata.Values()[idx]
	}
	if raw == "" {
		return nil
	}
	md := &GeometryMetadata{}
	if err := json.Unmarshal([]byte(raw), md); err != nil {
		return nil
	}
	return md
}

// declaredKind derives the nominal geometry kind and coordinate layout from
// the metadata geometry_types list. Only a single declared type is
// conclusive; WKB and WKT columns otherwise stay per-value typed.
func declaredKind(md *GeometryMetadata) (geometry.Kind, geom.Layout) {
	if md == nil || len(md.GeometryTypes) != 1 {
		return geometry.KindUnknown, geom.XY
	}
	name := md.GeometryTypes[0]
	layout := geom.XY
	switch {
	case strings.HasSuffix(name, " ZM"):
		layout = geom.XYZM
		name = name[:len(name)-3]
	case strings.HasSuffix(name, " Z"):
		layout = geom.XYZ
		name = name[:len(name)-2]
	case strings.HasSuffix(name, " M"):
		layout = geom.XYM
		name = name[:len(name)-2]
	}
	switch geometry.Kind(name) {
	case geometry.KindPoint, geometry.KindLineString, geometry.KindPolygon,
		geometry.KindMultiPoint, geometry.KindMultiLineString, geometry.KindMultiPolygon:
		return geometry.Kind(name), layout
	}
	return geometry.KindUnknown, geom.XY
}

// metadataExtent converts a declared bbox of four or six numbers into a 2-D
// envelope; the 3-D form drops its Z range.
func metadataExtent(md *GeometryMetadata) *geometry.Envelope {
	if md == nil {
		return nil
	}
	var env geometry.Envelope
	switch len(md.BBox) {
	case 4:
		env = geometry.Envelope{MinX: md.BBox[0], MinY: md.BBox[1], MaxX: md.BBox[2], MaxY: md.BBox[3]}
	case 6:
		env = geometry.Envelope{MinX: md.BBox[0], MinY: md.BBox[1], MaxX: md.BBox[3], MaxY: md.BBox[4]}
	default:
		return nil
	}
	if env.IsEmpty() {
		return nil
	}
	return &env
}

// WKBField builds an arrow field for a WKB geometry column, stamping the
// extension tag and metadata the way GeoArrow consumers expect. The tag is
// the requested convention, "ogc.wkb" or "geoarrow.wkb".
func WKBField(name string, nullable bool, tag string, md *GeometryMetadata) arrow.Field {
	out := GeometryMetadata{Encoding: "WKB"}
	if md != nil {
		out.CRS = md.CRS
		out.GeometryTypes = md.GeometryTypes
		out.Edges = md.Edges
	}
	raw, _ := json.Marshal(out)
	return arrow.Field{
		Name:     name,
		Type:     arrow.BinaryTypes.Binary,
		Nullable: nullable,
		Metadata: arrow.MetadataFrom(map[string]string{
			ExtensionNameKey:     tag,
			ExtensionMetadataKey: string(raw),
		}),
	}
}

func (m *GeometryMetadata) String() string {
	if m == nil {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("geometry metadata: %v", err)
	}
	return string(b)
}
