package geometry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

func marshalWKB(t *testing.T, g geom.T, bo binary.ByteOrder) []byte {
	t.Helper()
	data, err := wkb.Marshal(g, bo)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}

func TestEnvelopeFromWKB(t *testing.T) {
	tests := []struct {
		name string
		g    geom.T
		bo   binary.ByteOrder
		want Envelope
	}{
		{
			name: "point little endian",
			g:    geom.NewPointFlat(geom.XY, []float64{3, 7}),
			bo:   binary.LittleEndian,
			want: Envelope{MinX: 3, MinY: 7, MaxX: 3, MaxY: 7},
		},
		{
			name: "point big endian",
			g:    geom.NewPointFlat(geom.XY, []float64{3, 7}),
			bo:   binary.BigEndian,
			want: Envelope{MinX: 3, MinY: 7, MaxX: 3, MaxY: 7},
		},
		{
			name: "point with z",
			g:    geom.NewPointFlat(geom.XYZ, []float64{1, 2, 99}),
			bo:   binary.LittleEndian,
			want: Envelope{MinX: 1, MinY: 2, MaxX: 1, MaxY: 2},
		},
		{
			name: "point with zm",
			g:    geom.NewPointFlat(geom.XYZM, []float64{1, 2, 99, 98}),
			bo:   binary.LittleEndian,
			want: Envelope{MinX: 1, MinY: 2, MaxX: 1, MaxY: 2},
		},
		{
			name: "linestring",
			g:    geom.NewLineStringFlat(geom.XY, []float64{-1, -2, 5, 8, 3, 0}),
			bo:   binary.LittleEndian,
			want: Envelope{MinX: -1, MinY: -2, MaxX: 5, MaxY: 8},
		},
		{
			name: "polygon with hole",
			g: geom.NewPolygonFlat(geom.XY,
				[]float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0, 4, 4, 6, 4, 6, 6, 4, 4},
				[]int{10, 18}),
			bo:   binary.LittleEndian,
			want: Envelope{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10},
		},
		{
			name: "multipolygon",
			g: geom.NewMultiPolygonFlat(geom.XY,
				[]float64{0, 0, 2, 0, 2, 2, 0, 0, 10, 10, 12, 10, 12, 12, 10, 10},
				[][]int{{8}, {16}}),
			bo:   binary.LittleEndian,
			want: Envelope{MinX: 0, MinY: 0, MaxX: 12, MaxY: 12},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := EnvelopeFromWKB(marshalWKB(t, tt.g, tt.bo))
			if !ok {
				t.Fatal("scan failed")
			}
			if env != tt.want {
				t.Errorf("envelope = %+v, want %+v", env, tt.want)
			}
		})
	}
}

func TestEnvelopeFromWKBCollection(t *testing.T) {
	// A collection header followed by two serialized members.
	pt := marshalWKB(t, geom.NewPointFlat(geom.XY, []float64{1, 1}), binary.LittleEndian)
	ln := marshalWKB(t, geom.NewLineStringFlat(geom.XY, []float64{5, 5, 9, 2}), binary.LittleEndian)
	buf := []byte{1, 7, 0, 0, 0, 2, 0, 0, 0}
	buf = append(buf, pt...)
	buf = append(buf, ln...)

	env, ok := EnvelopeFromWKB(buf)
	if !ok {
		t.Fatal("scan failed")
	}
	want := Envelope{MinX: 1, MinY: 1, MaxX: 9, MaxY: 5}
	if env != want {
		t.Errorf("envelope = %+v, want %+v", env, want)
	}
}

func TestEnvelopeFromWKBExtendedFlags(t *testing.T) {
	t.Run("z flag", func(t *testing.T) {
		buf := []byte{1}
		buf = binary.LittleEndian.AppendUint32(buf, 1|wkbFlagZ)
		for _, v := range []float64{4, 5, 100} {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		env, ok := EnvelopeFromWKB(buf)
		if !ok {
			t.Fatal("scan failed")
		}
		want := Envelope{MinX: 4, MinY: 5, MaxX: 4, MaxY: 5}
		if env != want {
			t.Errorf("envelope = %+v, want %+v", env, want)
		}
	})

	t.Run("embedded srid", func(t *testing.T) {
		buf := []byte{1}
		buf = binary.LittleEndian.AppendUint32(buf, 1|wkbFlagSRID)
		buf = binary.LittleEndian.AppendUint32(buf, 4326)
		for _, v := range []float64{-3, 8} {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
		env, ok := EnvelopeFromWKB(buf)
		if !ok {
			t.Fatal("scan failed")
		}
		want := Envelope{MinX: -3, MinY: 8, MaxX: -3, MaxY: 8}
		if env != want {
			t.Errorf("envelope = %+v, want %+v", env, want)
		}
	})
}

func TestEnvelopeFromWKBMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only", []byte{1, 1, 0, 0}},
		{"bad byte order", []byte{9, 1, 0, 0, 0}},
		{"truncated point", []byte{1, 1, 0, 0, 0, 0, 0}},
		{"truncated count", []byte{1, 2, 0, 0, 0, 9, 0}},
		{"count past end", append([]byte{1, 2, 0, 0, 0, 255, 0, 0, 0}, make([]byte, 16)...)},
		{"unknown type", []byte{1, 42, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := EnvelopeFromWKB(tt.data); ok {
				t.Error("expected scan to fail")
			}
		})
	}
}

func TestEnvelopeFromWKBEmptyPoint(t *testing.T) {
	// POINT EMPTY is serialized as NaN coordinates; the envelope must stay
	// empty so an intersection test skips the row.
	buf := []byte{1, 1, 0, 0, 0}
	for i := 0; i < 2; i++ {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(math.NaN()))
	}
	env, ok := EnvelopeFromWKB(buf)
	if !ok {
		t.Fatal("scan failed")
	}
	if !env.IsEmpty() {
		t.Errorf("expected an empty envelope, got %+v", env)
	}
}
