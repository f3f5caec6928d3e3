// Package schema maps Arrow schemas to row-oriented layer definitions:
// attribute fields with driver-neutral types, geometry fields with their
// encodings, the FID column and the bounding-box acceleration columns.
package schema

import (
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/twpayne/go-geom"

	"github.com/hugr-lab/arrowlayer-go/geometry"
)

// FieldType is the semantic type of an attribute field.
type FieldType string

const (
	TypeInteger       FieldType = "Integer"
	TypeInteger64     FieldType = "Integer64"
	TypeReal          FieldType = "Real"
	TypeString        FieldType = "String"
	TypeBinary        FieldType = "Binary"
	TypeDate          FieldType = "Date"
	TypeTime          FieldType = "Time"
	TypeDateTime      FieldType = "DateTime"
	TypeIntegerList   FieldType = "IntegerList"
	TypeInteger64List FieldType = "Integer64List"
	TypeRealList      FieldType = "RealList"
	TypeStringList    FieldType = "StringList"
)

// FieldSubtype refines a field type.
type FieldSubtype string

const (
	SubtypeNone    FieldSubtype = ""
	SubtypeBoolean FieldSubtype = "Boolean"
	SubtypeInt16   FieldSubtype = "Int16"
	SubtypeFloat32 FieldSubtype = "Float32"
	SubtypeJSON    FieldSubtype = "JSON"
)

// FieldDefn describes one attribute field. Struct children become separate
// fields with dot-joined names; Path holds the top-level column index
// followed by the child index at each struct level.
type FieldDefn struct {
	Name            string
	Type            FieldType
	Subtype         FieldSubtype
	Width           int
	Precision       int
	Nullable        bool
	AlternativeName string
	Comment         string
	Domain          string

	// TimeZone applies to DateTime fields; nil means unknown.
	TimeZone *time.Location
	// Unit applies to timestamp and time columns.
	Unit arrow.TimeUnit

	// Path locates the value: column index, then struct child indexes.
	Path []int
	// Arrow is the leaf arrow type the value is read from.
	Arrow arrow.DataType
}

// Column returns the top-level column index the field reads from.
func (f *FieldDefn) Column() int { return f.Path[0] }

// GeomFieldDefn describes one geometry field.
type GeomFieldDefn struct {
	Name     string
	Encoding geometry.Encoding
	Kind     geometry.Kind
	Layout   geom.Layout
	Nullable bool
	// Column is the top-level column index.
	Column int
	// Metadata is the parsed extension metadata, nil when absent.
	Metadata *GeometryMetadata
	// Extent is the metadata bounding box, nil unless declared.
	Extent *geometry.Envelope
}

// CodedValue is one code of a coded-value domain.
type CodedValue struct {
	Code  int64
	Value string
}

// Domain is a coded-value domain backed by a dictionary column. Values are
// filled from the first record batch read.
type Domain struct {
	Name  string
	Field string
	// Type is the semantic type of the codes.
	Type   FieldType
	Values []CodedValue
}

// BBoxColumns indexes the four double fields that carry precomputed
// per-row bounds for the first geometry field. Indexes refer to Fields.
type BBoxColumns struct {
	MinX, MinY, MaxX, MaxY int
}

// Definition is the row-oriented view of an Arrow schema.
type Definition struct {
	Fields     []FieldDefn
	GeomFields []GeomFieldDefn

	// FIDColumn is the top-level column holding feature identifiers, -1
	// when identifiers are synthesized; FIDName is its advertised name.
	FIDColumn int
	FIDName   string

	// BBox is set when bbox.minx/miny/maxx/maxy columns were detected.
	BBox *BBoxColumns

	Domains map[string]*Domain

	// Source is the arrow schema the definition was built from.
	Source *arrow.Schema
}

// FieldIndex returns the index of the named attribute field, or -1. The
// lookup is exact first, then case-insensitive.
func (d *Definition) FieldIndex(name string) int {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return i
		}
	}
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return i
		}
	}
	return -1
}

// GeomFieldIndex returns the index of the named geometry field, or -1.
func (d *Definition) GeomFieldIndex(name string) int {
	for i := range d.GeomFields {
		if d.GeomFields[i].Name == name {
			return i
		}
	}
	for i := range d.GeomFields {
		if strings.EqualFold(d.GeomFields[i].Name, name) {
			return i
		}
	}
	return -1
}

// FID returns the advertised feature identifier name, defaulting to "fid".
func (d *Definition) FID() string {
	if d.FIDName != "" {
		return d.FIDName
	}
	return "fid"
}

// IsList reports whether the type holds multiple values per row.
func (t FieldType) IsList() bool {
	switch t {
	case TypeIntegerList, TypeInteger64List, TypeRealList, TypeStringList:
		return true
	default:
		return false
	}
}
