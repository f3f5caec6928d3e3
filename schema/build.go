package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/arrowlayer-go/geometry"
)

// OverlayMetadataKey is the schema-level metadata key carrying the optional
// attribute overlay document.
const OverlayMetadataKey = "gdal:schema"

// Names of the per-row bounding box acceleration columns.
const (
	BBoxMinXName = "bbox.minx"
	BBoxMinYName = "bbox.miny"
	BBoxMaxXName = "bbox.maxx"
	BBoxMaxYName = "bbox.maxy"
)

// Overlay is the parsed attribute overlay document. It can refine the
// inferred attribute types and name the feature identifier column; it never
// overrides a physical type.
type Overlay struct {
	FID     string                   `json:"fid"`
	Columns map[string]OverlayColumn `json:"columns"`
}

// OverlayColumn refines a single attribute field.
type OverlayColumn struct {
	Type            string `json:"type"`
	Subtype         string `json:"subtype"`
	Width           int    `json:"width"`
	Precision       int    `json:"precision"`
	AlternativeName string `json:"alternative_name"`
	Comment         string `json:"comment"`
}

// ParseOverlay decodes an overlay document.
func ParseOverlay(data []byte) (*Overlay, error) {
	var o Overlay
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("schema overlay: %w", err)
	}
	return &o, nil
}

// BuildOptions control definition building.
type BuildOptions struct {
	// Overlay refines inferred attribute types. When nil the overlay is
	// read from the schema metadata under OverlayMetadataKey.
	Overlay *Overlay

	// DisableOverlay ignores the overlay entirely.
	DisableOverlay bool

	// DisableBBoxColumns skips detection of the bounding box columns.
	DisableBBoxColumns bool

	// Logger for schema rejection warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

type builder struct {
	def     *Definition
	overlay *Overlay
	logger  *slog.Logger
}

// BuildDefinition maps an Arrow schema to a layer definition. Fields with an
// unsupported type are dropped with a warning; geometry fields whose storage
// does not match their declared encoding are demoted to plain attributes
// (WKB/WKT) or dropped (coordinate encodings). The definition is immutable
// once built.
func BuildDefinition(s *arrow.Schema, opts *BuildOptions) (*Definition, error) {
	if s == nil {
		return nil, fmt.Errorf("schema: nil arrow schema")
	}
	if opts == nil {
		opts = &BuildOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &builder{
		def: &Definition{
			FIDColumn: -1,
			Domains:   map[string]*Domain{},
			Source:    s,
		},
		logger: logger,
	}
	if !opts.DisableOverlay {
		b.overlay = opts.Overlay
		if b.overlay == nil {
			if idx := s.Metadata().FindKey(OverlayMetadataKey); idx >= 0 {
				o, err := ParseOverlay([]byte(s.Metadata().Values()[idx]))
				if err != nil {
					logger.Warn("ignoring malformed schema overlay", "error", err)
				} else {
					b.overlay = o
				}
			}
		}
	}
	if b.overlay != nil {
		b.def.FIDName = b.overlay.FID
	}

	for i, f := range s.Fields() {
		if b.geometryField(i, f) {
			continue
		}
		if b.fidField(i, f) {
			continue
		}
		b.mapField(f, []int{i}, f.Name)
	}

	if !opts.DisableBBoxColumns {
		b.detectBBoxColumns()
	}
	return b.def, nil
}

// geometryField registers f as a geometry field when it carries a recognized
// encoding tag and its storage matches. Returns true when the field is fully
// handled, false when it should continue as a plain attribute.
func (b *builder) geometryField(col int, f arrow.Field) bool {
	tag, ok := extensionTag(f)
	if !ok {
		return false
	}
	enc, ok := geometry.ParseEncoding(tag)
	if !ok {
		b.logger.Warn("unrecognized geometry encoding, treating field as attribute",
			"field", f.Name, "encoding", tag)
		return false
	}
	layout, err := geometry.StorageLayout(enc, storageType(f.Type))
	if err != nil {
		if enc == geometry.EncodingWKB || enc == geometry.EncodingWKT {
			b.logger.Warn("geometry storage mismatch, treating field as attribute",
				"field", f.Name, "encoding", tag, "error", err)
			return false
		}
		// A coordinate encoding with broken storage cannot be read at all.
		b.logger.Warn("dropping geometry field with invalid storage",
			"field", f.Name, "encoding", tag, "error", err)
		return true
	}

	md := parseGeometryMetadata(f)
	kind, mdLayout := declaredKind(md)
	if kind == geometry.KindUnknown {
		kind = enc.Kind()
	}
	if enc.IsCoordinate() {
		// Coordinate storage fixes the layout; metadata cannot override it.
		mdLayout = layout
	}
	b.def.GeomFields = append(b.def.GeomFields, GeomFieldDefn{
		Name:     f.Name,
		Encoding: enc,
		Kind:     kind,
		Layout:   mdLayout,
		Nullable: f.Nullable,
		Column:   col,
		Metadata: md,
		Extent:   metadataExtent(md),
	})
	return true
}

// fidField records f as the feature identifier column when its name matches
// the overlay fid and its type can carry identifiers.
func (b *builder) fidField(col int, f arrow.Field) bool {
	if b.def.FIDName == "" || f.Name != b.def.FIDName {
		return false
	}
	switch f.Type.ID() {
	case arrow.INT32, arrow.INT64:
		b.def.FIDColumn = col
		return true
	}
	b.logger.Warn("declared fid column is not an integer column, ignoring",
		"field", f.Name, "type", f.Type)
	return false
}

// mapField appends zero or more attribute fields for the physical field f
// reached through path. Struct fields flatten depth first with dot-joined
// names; everything else appends at most one field.
func (b *builder) mapField(f arrow.Field, path []int, name string) {
	dt := storageType(f.Type)

	if st, ok := dt.(*arrow.StructType); ok {
		for i, child := range st.Fields() {
			childPath := make([]int, len(path), len(path)+1)
			copy(childPath, path)
			childPath = append(childPath, i)
			b.mapField(child, childPath, name+"."+child.Name)
		}
		return
	}

	fd := FieldDefn{
		Name:     name,
		Nullable: f.Nullable,
		Path:     path,
		Arrow:    dt,
	}
	ok := false
	switch t := dt.(type) {
	case *arrow.DictionaryType:
		ok = b.mapDictionary(&fd, t)
	case *arrow.ListType:
		ok = b.mapList(&fd, t.Elem())
	case *arrow.LargeListType:
		ok = b.mapList(&fd, t.Elem())
	case *arrow.FixedSizeListType:
		ok = b.mapList(&fd, t.Elem())
	case *arrow.MapType:
		ok = b.mapMap(&fd, t)
	default:
		ok = b.mapScalar(&fd, dt)
	}
	if !ok {
		b.logger.Warn("dropping field with unsupported type", "field", name, "type", dt)
		return
	}
	b.applyOverlay(&fd)
	b.def.Fields = append(b.def.Fields, fd)
}

// mapScalar fills the semantic type for a scalar physical type. Returns
// false for unsupported types.
func (b *builder) mapScalar(fd *FieldDefn, dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL:
		fd.Type, fd.Subtype = TypeInteger, SubtypeBoolean
	case arrow.UINT8, arrow.INT8, arrow.UINT16:
		fd.Type = TypeInteger
	case arrow.INT16:
		fd.Type, fd.Subtype = TypeInteger, SubtypeInt16
	case arrow.INT32:
		fd.Type = TypeInteger
	case arrow.UINT32:
		fd.Type = TypeInteger64
	case arrow.INT64:
		fd.Type = TypeInteger64
	case arrow.UINT64:
		// No lossless mapping exists; values above 2^53 lose precision.
		fd.Type = TypeReal
	case arrow.FLOAT16, arrow.FLOAT32:
		fd.Type, fd.Subtype = TypeReal, SubtypeFloat32
	case arrow.FLOAT64:
		fd.Type = TypeReal
	case arrow.STRING, arrow.LARGE_STRING:
		fd.Type = TypeString
	case arrow.BINARY, arrow.LARGE_BINARY:
		fd.Type = TypeBinary
	case arrow.FIXED_SIZE_BINARY:
		fd.Type = TypeBinary
		fd.Width = dt.(*arrow.FixedSizeBinaryType).ByteWidth
	case arrow.DATE32, arrow.DATE64:
		fd.Type = TypeDate
	case arrow.TIMESTAMP:
		t := dt.(*arrow.TimestampType)
		fd.Type = TypeDateTime
		fd.Unit = t.Unit
		fd.TimeZone = b.resolveTimeZone(fd.Name, t.TimeZone)
	case arrow.TIME32:
		fd.Type = TypeTime
		fd.Unit = dt.(*arrow.Time32Type).Unit
	case arrow.TIME64:
		// Sub-second precision exceeds the time type resolution.
		fd.Type = TypeInteger64
		fd.Unit = dt.(*arrow.Time64Type).Unit
	case arrow.DECIMAL128:
		t := dt.(*arrow.Decimal128Type)
		fd.Type = TypeReal
		fd.Width, fd.Precision = int(t.Precision), int(t.Scale)
	case arrow.DECIMAL256:
		t := dt.(*arrow.Decimal256Type)
		fd.Type = TypeReal
		fd.Width, fd.Precision = int(t.Precision), int(t.Scale)
	default:
		return false
	}
	return true
}

func (b *builder) resolveTimeZone(field, tz string) *time.Location {
	if tz == "" {
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		b.logger.Warn("unrecognized timestamp time zone, assuming UTC",
			"field", field, "time_zone", tz)
		return time.UTC
	}
	return loc
}

// mapDictionary maps a text dictionary with an integral index to the index
// integer type and registers a coded-value domain. Other dictionary shapes
// are unsupported.
func (b *builder) mapDictionary(fd *FieldDefn, dt *arrow.DictionaryType) bool {
	switch dt.ValueType.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
	default:
		return false
	}
	switch dt.IndexType.ID() {
	case arrow.INT8, arrow.UINT8, arrow.INT16, arrow.UINT16, arrow.INT32:
		fd.Type = TypeInteger
	case arrow.UINT32, arrow.INT64:
		fd.Type = TypeInteger64
	default:
		return false
	}
	name := fd.Name + "Domain"
	fd.Domain = name
	b.def.Domains[name] = &Domain{Name: name, Field: fd.Name, Type: fd.Type}
	return true
}

// mapList maps list storage by its element type to the matching list
// semantic type. Elements that are themselves nested structures collapse to
// a JSON string field; anything else unsupported rejects the field.
func (b *builder) mapList(fd *FieldDefn, elem arrow.DataType) bool {
	elem = storageType(elem)
	switch elem.ID() {
	case arrow.BOOL:
		fd.Type, fd.Subtype = TypeIntegerList, SubtypeBoolean
	case arrow.UINT8, arrow.INT8, arrow.UINT16, arrow.INT32:
		fd.Type = TypeIntegerList
	case arrow.INT16:
		fd.Type, fd.Subtype = TypeIntegerList, SubtypeInt16
	case arrow.UINT32, arrow.INT64:
		fd.Type = TypeInteger64List
	case arrow.UINT64, arrow.FLOAT64:
		fd.Type = TypeRealList
	case arrow.FLOAT16, arrow.FLOAT32:
		fd.Type, fd.Subtype = TypeRealList, SubtypeFloat32
	case arrow.STRING, arrow.LARGE_STRING:
		fd.Type = TypeStringList
	case arrow.STRUCT, arrow.MAP, arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		if !b.supportedNested(elem) {
			return false
		}
		fd.Type, fd.Subtype = TypeString, SubtypeJSON
	default:
		return false
	}
	return true
}

// mapMap maps string-keyed maps with a supported value type to a JSON
// string field.
func (b *builder) mapMap(fd *FieldDefn, dt *arrow.MapType) bool {
	switch storageType(dt.KeyType()).ID() {
	case arrow.STRING, arrow.LARGE_STRING:
	default:
		return false
	}
	if !b.supportedValue(dt.ItemType()) {
		return false
	}
	fd.Type, fd.Subtype = TypeString, SubtypeJSON
	return true
}

// supportedNested reports whether a nested type is fully composed of
// supported value types, so it can be rendered as JSON.
func (b *builder) supportedNested(dt arrow.DataType) bool {
	switch t := storageType(dt).(type) {
	case *arrow.StructType:
		for _, f := range t.Fields() {
			if !b.supportedValue(f.Type) {
				return false
			}
		}
		return true
	case *arrow.MapType:
		switch storageType(t.KeyType()).ID() {
		case arrow.STRING, arrow.LARGE_STRING:
			return b.supportedValue(t.ItemType())
		}
		return false
	case *arrow.ListType:
		return b.supportedValue(t.Elem())
	case *arrow.LargeListType:
		return b.supportedValue(t.Elem())
	case *arrow.FixedSizeListType:
		return b.supportedValue(t.Elem())
	default:
		return false
	}
}

func (b *builder) supportedValue(dt arrow.DataType) bool {
	dt = storageType(dt)
	switch dt.ID() {
	case arrow.STRUCT, arrow.MAP, arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		return b.supportedNested(dt)
	}
	var probe FieldDefn
	return b.mapScalar(&probe, dt)
}

// applyOverlay merges the overlay column matching the flattened field name.
// The physical inference always wins on type; the overlay may only supply
// width, precision, names, comments, and a subtype when none was inferred.
func (b *builder) applyOverlay(fd *FieldDefn) {
	if b.overlay == nil {
		return
	}
	oc, ok := b.overlay.Columns[fd.Name]
	if !ok {
		return
	}
	if oc.Type != "" && FieldType(oc.Type) != fd.Type {
		b.logger.Debug("schema overlay type differs from physical type, keeping physical",
			"field", fd.Name, "overlay", oc.Type, "physical", fd.Type)
	}
	if oc.Type == "" || FieldType(oc.Type) == fd.Type {
		if fd.Subtype == SubtypeNone && oc.Subtype != "" {
			fd.Subtype = FieldSubtype(oc.Subtype)
		}
		if oc.Width > 0 {
			fd.Width = oc.Width
		}
		if oc.Precision > 0 {
			fd.Precision = oc.Precision
		}
	}
	if oc.AlternativeName != "" {
		fd.AlternativeName = oc.AlternativeName
	}
	if oc.Comment != "" {
		fd.Comment = oc.Comment
	}
}

// detectBBoxColumns records the four double columns of the per-row bounding
// box convention. All four must be present as plain double fields.
func (b *builder) detectBBoxColumns() {
	find := func(name string) int {
		for i := range b.def.Fields {
			f := &b.def.Fields[i]
			if f.Name == name && f.Type == TypeReal && f.Subtype == SubtypeNone &&
				f.Arrow.ID() == arrow.FLOAT64 {
				return i
			}
		}
		return -1
	}
	bb := BBoxColumns{
		MinX: find(BBoxMinXName),
		MinY: find(BBoxMinYName),
		MaxX: find(BBoxMaxXName),
		MaxY: find(BBoxMaxYName),
	}
	if bb.MinX < 0 || bb.MinY < 0 || bb.MaxX < 0 || bb.MaxY < 0 {
		return
	}
	b.def.BBox = &bb
}
