package geometry

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// Codec decodes values of one geometry column. A codec is bound to the
// column's encoding, its declared geometry kind and its coordinate layout;
// decoded single geometries are promoted to the matching multi type when the
// declared kind is a multi kind.
type Codec struct {
	enc      Encoding
	declared Kind
	layout   geom.Layout
	decodes  int64
}

// NewCodec returns a codec for a geometry column.
func NewCodec(enc Encoding, declared Kind, layout geom.Layout) *Codec {
	return &Codec{enc: enc, declared: declared, layout: layout}
}

// Encoding returns the column encoding the codec was built for.
func (c *Codec) Encoding() Encoding { return c.enc }

// Layout returns the coordinate layout of the column.
func (c *Codec) Layout() geom.Layout { return c.layout }

// Decodes returns how many values the codec fully decoded. Envelope scans
// that avoid decoding do not count.
func (c *Codec) Decodes() int64 { return c.decodes }

// Decode builds the geometry stored at row. Null values, zero-length
// serialized payloads and null point coordinates yield a nil geometry
// without error. Decode errors are per-value; the caller decides whether to
// null the result.
func (c *Codec) Decode(col arrow.Array, row int) (geom.T, error) {
	if col.IsNull(row) {
		return nil, nil
	}
	c.decodes++
	var (
		g   geom.T
		err error
	)
	switch c.enc {
	case EncodingWKB:
		g, err = decodeWKB(binaryValue(col, row))
	case EncodingWKT:
		g, err = decodeWKT(stringValue(col, row))
	case EncodingPoint:
		g, err = c.decodePoint(col, row)
	case EncodingLineString:
		g, err = c.decodeLine(col, row, false)
	case EncodingMultiPoint:
		g, err = c.decodeLine(col, row, true)
	case EncodingPolygon:
		g, err = c.decodeRings(col, row, false)
	case EncodingMultiLineString:
		g, err = c.decodeRings(col, row, true)
	case EncodingMultiPolygon:
		g, err = c.decodeMultiPolygon(col, row)
	default:
		return nil, fmt.Errorf("unknown geometry encoding %q", c.enc)
	}
	if err != nil {
		return nil, err
	}
	return c.promote(g), nil
}

func decodeWKB(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode wkb: %w", err)
	}
	return g, nil
}

func decodeWKT(s string) (geom.T, error) {
	if len(s) == 0 {
		return nil, nil
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("decode wkt: %w", err)
	}
	return g, nil
}

func (c *Codec) decodePoint(col arrow.Array, row int) (geom.T, error) {
	fsl, coords, err := pointStorage(col)
	if err != nil {
		return nil, err
	}
	stride := c.layout.Stride()
	base := (fsl.Data().Offset() + row) * stride
	if coords.IsNull(base) {
		return nil, nil
	}
	flat := make([]float64, stride)
	copy(flat, coords.Float64Values()[base:base+stride])
	return geom.NewPointFlat(c.layout, flat), nil
}

// decodeLine handles the single-list encodings: a linestring or multipoint
// is one list of points, so both share the flat extraction and differ only
// in the constructed type.
func (c *Codec) decodeLine(col arrow.Array, row int, multi bool) (geom.T, error) {
	lists, fsl, coords, err := listStorage(col, 1)
	if err != nil {
		return nil, err
	}
	start, end := lists[0].ValueOffsets(row)
	flat := c.copyFlat(fsl, coords, start, end)
	if multi {
		return geom.NewMultiPointFlat(c.layout, flat), nil
	}
	return geom.NewLineStringFlat(c.layout, flat), nil
}

// decodeRings handles the two-list encodings: a polygon is a list of rings
// and a multilinestring a list of lines, both lists of lists of points.
func (c *Codec) decodeRings(col arrow.Array, row int, multi bool) (geom.T, error) {
	lists, fsl, coords, err := listStorage(col, 2)
	if err != nil {
		return nil, err
	}
	rs, re := lists[0].ValueOffsets(row)
	flat, ends := c.flatEnds(lists[1], fsl, coords, rs, re)
	if multi {
		return geom.NewMultiLineStringFlat(c.layout, flat, ends), nil
	}
	return geom.NewPolygonFlat(c.layout, flat, ends), nil
}

func (c *Codec) decodeMultiPolygon(col arrow.Array, row int) (geom.T, error) {
	lists, fsl, coords, err := listStorage(col, 3)
	if err != nil {
		return nil, err
	}
	parts, rings, points := lists[0], lists[1], lists[2]
	ps, pe := parts.ValueOffsets(row)
	if ps == pe {
		return geom.NewMultiPolygonFlat(c.layout, nil, nil), nil
	}

	// Rings of consecutive parts are contiguous in the ring list, and so
	// are their points, so one flat copy covers the whole value.
	rs, _ := rings.ValueOffsets(int(ps))
	_, re := rings.ValueOffsets(int(pe - 1))
	var qs, qe int64
	if rs < re {
		qs, _ = points.ValueOffsets(int(rs))
		_, qe = points.ValueOffsets(int(re - 1))
	}
	flat := c.copyFlat(fsl, coords, qs, qe)

	stride := c.layout.Stride()
	endss := make([][]int, 0, pe-ps)
	for j := ps; j < pe; j++ {
		jrs, jre := rings.ValueOffsets(int(j))
		ends := make([]int, 0, jre-jrs)
		for k := jrs; k < jre; k++ {
			_, kqe := points.ValueOffsets(int(k))
			ends = append(ends, int(kqe-qs)*stride)
		}
		endss = append(endss, ends)
	}
	return geom.NewMultiPolygonFlat(c.layout, flat, endss), nil
}

// flatEnds extracts the flat coordinates and cumulative ends for one value
// of a list-of-lists-of-points column, given the outer element range.
func (c *Codec) flatEnds(points *array.List, fsl *array.FixedSizeList, coords *array.Float64, rs, re int64) ([]float64, []int) {
	if rs == re {
		return nil, nil
	}
	qs, _ := points.ValueOffsets(int(rs))
	_, qe := points.ValueOffsets(int(re - 1))
	flat := c.copyFlat(fsl, coords, qs, qe)

	stride := c.layout.Stride()
	ends := make([]int, 0, re-rs)
	for k := rs; k < re; k++ {
		_, kqe := points.ValueOffsets(int(k))
		ends = append(ends, int(kqe-qs)*stride)
	}
	return flat, ends
}

// copyFlat copies the interleaved coordinates of the point range [start,
// end) out of the shared values buffer. One copy covers every layout since
// the storage is interleaved.
func (c *Codec) copyFlat(fsl *array.FixedSizeList, coords *array.Float64, start, end int64) []float64 {
	if start >= end {
		return nil
	}
	stride := c.layout.Stride()
	off := fsl.Data().Offset()
	src := coords.Float64Values()[(off+int(start))*stride : (off+int(end))*stride]
	flat := make([]float64, len(src))
	copy(flat, src)
	return flat
}

func (c *Codec) promote(g geom.T) geom.T {
	if g == nil || !c.declared.IsMulti() {
		return g
	}
	switch t := g.(type) {
	case *geom.Point:
		if c.declared == KindMultiPoint {
			return geom.NewMultiPointFlat(t.Layout(), t.FlatCoords())
		}
	case *geom.LineString:
		if c.declared == KindMultiLineString {
			return geom.NewMultiLineStringFlat(t.Layout(), t.FlatCoords(), []int{len(t.FlatCoords())})
		}
	case *geom.Polygon:
		if c.declared == KindMultiPolygon {
			return geom.NewMultiPolygonFlat(t.Layout(), t.FlatCoords(), [][]int{t.Ends()})
		}
	}
	return g
}

// Envelope computes the bounding box of the value at row without building a
// geometry when the encoding allows it: WKB values are scanned from their
// header bytes and multipolygon coordinates over the first ring of each
// part. Other encodings, and WKB payloads the scanner rejects, decode the
// value. Null values yield an empty envelope.
func (c *Codec) Envelope(col arrow.Array, row int) (Envelope, error) {
	if col.IsNull(row) {
		return NewEnvelope(), nil
	}
	switch c.enc {
	case EncodingWKB:
		if env, ok := EnvelopeFromWKB(binaryValue(col, row)); ok {
			return env, nil
		}
	case EncodingMultiPolygon:
		return c.multiPolygonEnvelope(col, row)
	}
	g, err := c.Decode(col, row)
	if err != nil {
		return NewEnvelope(), err
	}
	return EnvelopeOf(g), nil
}

// multiPolygonEnvelope scans the first ring of each part. The first ring is
// the outer ring, so its points bound the whole part.
func (c *Codec) multiPolygonEnvelope(col arrow.Array, row int) (Envelope, error) {
	lists, fsl, coords, err := listStorage(col, 3)
	if err != nil {
		return NewEnvelope(), err
	}
	parts, rings, points := lists[0], lists[1], lists[2]
	stride := c.layout.Stride()
	off := fsl.Data().Offset()
	values := coords.Float64Values()

	env := NewEnvelope()
	ps, pe := parts.ValueOffsets(row)
	for j := ps; j < pe; j++ {
		rs, re := rings.ValueOffsets(int(j))
		if rs == re {
			continue
		}
		qs, qe := points.ValueOffsets(int(rs))
		for q := qs; q < qe; q++ {
			base := (off + int(q)) * stride
			env.Extend(values[base], values[base+1])
		}
	}
	return env, nil
}

func binaryValue(col arrow.Array, row int) []byte {
	switch a := col.(type) {
	case *array.Binary:
		return a.Value(row)
	case *array.LargeBinary:
		return a.Value(row)
	}
	return nil
}

func stringValue(col arrow.Array, row int) string {
	switch a := col.(type) {
	case *array.String:
		return a.Value(row)
	case *array.LargeString:
		return a.Value(row)
	}
	return ""
}

// listStorage walks depth list levels down to the point storage and returns
// the list arrays, the point fixed-size list and its float64 values.
func listStorage(col arrow.Array, depth int) ([]*array.List, *array.FixedSizeList, *array.Float64, error) {
	lists := make([]*array.List, 0, depth)
	cur := col
	for i := 0; i < depth; i++ {
		l, ok := cur.(*array.List)
		if !ok {
			return nil, nil, nil, fmt.Errorf("geometry storage: expected list level %d, got %s", i, cur.DataType())
		}
		lists = append(lists, l)
		cur = l.ListValues()
	}
	fsl, coords, err := pointStorage(cur)
	if err != nil {
		return nil, nil, nil, err
	}
	return lists, fsl, coords, nil
}

func pointStorage(col arrow.Array) (*array.FixedSizeList, *array.Float64, error) {
	fsl, ok := col.(*array.FixedSizeList)
	if !ok {
		return nil, nil, fmt.Errorf("geometry storage: expected fixed-size list points, got %s", col.DataType())
	}
	coords, ok := fsl.ListValues().(*array.Float64)
	if !ok {
		return nil, nil, fmt.Errorf("geometry storage: expected float64 coordinates, got %s", fsl.ListValues().DataType())
	}
	return fsl, coords, nil
}
