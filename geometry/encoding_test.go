package geometry

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/twpayne/go-geom"
)

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		tag  string
		want Encoding
		ok   bool
	}{
		{"WKB", EncodingWKB, true},
		{"ogc.wkb", EncodingWKB, true},
		{"geoarrow.wkb", EncodingWKB, true},
		{"WKT", EncodingWKT, true},
		{"ogc.wkt", EncodingWKT, true},
		{"geoarrow.wkt", EncodingWKT, true},
		{"geoarrow.point", EncodingPoint, true},
		{"geoarrow.linestring", EncodingLineString, true},
		{"geoarrow.polygon", EncodingPolygon, true},
		{"geoarrow.multipoint", EncodingMultiPoint, true},
		{"geoarrow.multilinestring", EncodingMultiLineString, true},
		{"geoarrow.multipolygon", EncodingMultiPolygon, true},
		{"wkb", EncodingUnknown, false},
		{"geoarrow.unknown", EncodingUnknown, false},
		{"", EncodingUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := ParseEncoding(tt.tag)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseEncoding(%q) = %q, %v, want %q, %v", tt.tag, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestEncodingKind(t *testing.T) {
	if k := EncodingMultiPolygon.Kind(); k != KindMultiPolygon {
		t.Errorf("expected MultiPolygon kind, got %q", k)
	}
	if k := EncodingWKB.Kind(); k != KindUnknown {
		t.Errorf("wkb encoding should not imply a kind, got %q", k)
	}
	if !KindMultiLineString.IsMulti() {
		t.Error("MultiLineString should be multi")
	}
	if KindPoint.IsMulti() {
		t.Error("Point should not be multi")
	}
}

func pointType(dim int32, name string) arrow.DataType {
	return arrow.FixedSizeListOfField(dim, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64})
}

func TestStorageLayout(t *testing.T) {
	tests := []struct {
		name string
		enc  Encoding
		dt   arrow.DataType
		want geom.Layout
		ok   bool
	}{
		{"wkb binary", EncodingWKB, arrow.BinaryTypes.Binary, geom.XY, true},
		{"wkb large binary", EncodingWKB, arrow.BinaryTypes.LargeBinary, geom.XY, true},
		{"wkb string rejected", EncodingWKB, arrow.BinaryTypes.String, geom.NoLayout, false},
		{"wkt string", EncodingWKT, arrow.BinaryTypes.String, geom.XY, true},
		{"wkt binary rejected", EncodingWKT, arrow.BinaryTypes.Binary, geom.NoLayout, false},
		{"point xy", EncodingPoint, pointType(2, "xy"), geom.XY, true},
		{"point xyz", EncodingPoint, pointType(3, "xyz"), geom.XYZ, true},
		{"point xym", EncodingPoint, pointType(3, "xym"), geom.XYM, true},
		{"point xyzm", EncodingPoint, pointType(4, "xyzm"), geom.XYZM, true},
		{"point wrong width", EncodingPoint, pointType(5, "xy"), geom.NoLayout, false},
		{"point not fixed size", EncodingPoint, arrow.ListOf(arrow.PrimitiveTypes.Float64), geom.NoLayout, false},
		{"point not float64", EncodingPoint, arrow.FixedSizeListOf(2, arrow.PrimitiveTypes.Float32), geom.NoLayout, false},
		{"linestring", EncodingLineString, arrow.ListOf(pointType(2, "xy")), geom.XY, true},
		{"linestring missing list", EncodingLineString, pointType(2, "xy"), geom.NoLayout, false},
		{"multipoint", EncodingMultiPoint, arrow.ListOf(pointType(3, "xyz")), geom.XYZ, true},
		{"polygon", EncodingPolygon, arrow.ListOf(arrow.ListOf(pointType(2, "xy"))), geom.XY, true},
		{"polygon too shallow", EncodingPolygon, arrow.ListOf(pointType(2, "xy")), geom.NoLayout, false},
		{"multilinestring", EncodingMultiLineString, arrow.ListOf(arrow.ListOf(pointType(4, "xyzm"))), geom.XYZM, true},
		{"multipolygon", EncodingMultiPolygon, arrow.ListOf(arrow.ListOf(arrow.ListOf(pointType(2, "xy")))), geom.XY, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StorageLayout(tt.enc, tt.dt)
			if tt.ok && err != nil {
				t.Fatalf("StorageLayout failed: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected an error")
			}
			if got != tt.want {
				t.Errorf("layout = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodingTag(t *testing.T) {
	if tag := EncodingWKB.Tag(); tag != "geoarrow.wkb" {
		t.Errorf("wkb tag = %q", tag)
	}
	if tag := EncodingMultiLineString.Tag(); tag != "geoarrow.multilinestring" {
		t.Errorf("multilinestring tag = %q", tag)
	}
	if tag := EncodingUnknown.Tag(); tag != "" {
		t.Errorf("unknown tag = %q", tag)
	}
}
