package arrowlayer

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/hugr-lab/arrowlayer-go/geometry"
	"github.com/hugr-lab/arrowlayer-go/schema"
)

// streamBatchSize is the row count of batches the generic export path
// produces.
const streamBatchSize = 4096

// StreamOptions control one export reader.
type StreamOptions struct {
	// Encoding requests a geometry encoding for exported batches. The zero
	// value keeps the source encoding; geometry.EncodingWKB re-encodes WKT
	// columns and restamps WKB columns with the requested tag.
	// OPTIONAL.
	Encoding geometry.Encoding

	// WKBTag overrides Config.WKBTag for this reader.
	// OPTIONAL.
	WKBTag string

	// ForceGeneric bypasses the batch pass-through path and always
	// materializes features.
	// OPTIONAL.
	ForceGeneric bool
}

// Reader returns a record reader streaming the layer's filtered content.
// Source batches pass through with column projection and row compaction
// when possible; otherwise features are materialized and rebuilt into fresh
// batches. Both paths yield the same rows. The caller owns the reader and
// must Release it.
func (l *Layer) Reader(ctx context.Context, opts *StreamOptions) (array.RecordReader, error) {
	if opts == nil {
		opts = &StreamOptions{}
	}
	switch opts.Encoding {
	case geometry.EncodingUnknown, geometry.EncodingWKB:
	default:
		return nil, fmt.Errorf("unsupported export encoding %q", opts.Encoding)
	}
	tag := opts.WKBTag
	if tag == "" {
		tag = l.cfg.wkbTag()
	}
	if l.directPathOK(opts) {
		return l.newDirectReader(ctx, opts.Encoding == geometry.EncodingWKB, tag)
	}
	return l.newGenericReader(ctx, tag)
}

// directPathOK reports whether exported batches can reuse the source
// arrays. The pass-through requires column-aligned field visibility, a
// geometry request the source encodings can satisfy by transcoding alone,
// and filters the constraint compiler covered completely.
func (l *Layer) directPathOK(opts *StreamOptions) bool {
	if opts.ForceGeneric || l.cfg.ForceGenericExport {
		return false
	}
	if !l.columnVisibilityConsistent() {
		return false
	}
	if opts.Encoding == geometry.EncodingWKB {
		for i := range l.def.GeomFields {
			if l.ignoredGeom[i] {
				continue
			}
			switch l.def.GeomFields[i].Encoding {
			case geometry.EncodingWKB, geometry.EncodingWKT:
			default:
				return false
			}
		}
	}
	if l.attrExpr != nil && (l.constraints == nil || !l.constraints.Complete()) {
		return false
	}
	return true
}

// directReader passes source batches through: projected columns, WKT
// transcoded to WKB on demand, filtered rows compacted by slicing the
// surviving runs and concatenating them. Batches left empty by filtering
// are skipped.
type directReader struct {
	refs       int64
	ctx        context.Context
	layer      *Layer
	src        array.RecordReader
	schema     *arrow.Schema
	cols       []int
	wkt        map[int]bool
	rowsBefore int64
	cur        arrow.Record
	err        error
}

func (l *Layer) newDirectReader(ctx context.Context, asWKB bool, tag string) (array.RecordReader, error) {
	sub := l.clone()
	fields := make([]arrow.Field, 0, len(l.def.Source.Fields()))
	cols := make([]int, 0, len(l.def.Source.Fields()))
	wkt := map[int]bool{}
	geomAt := map[int]int{}
	for i := range l.def.GeomFields {
		geomAt[l.def.GeomFields[i].Column] = i
	}
	for ci, f := range l.def.Source.Fields() {
		if l.ignoredCols[ci] {
			continue
		}
		if gi, ok := geomAt[ci]; ok && asWKB {
			g := &l.def.GeomFields[gi]
			if g.Encoding == geometry.EncodingWKT {
				wkt[ci] = true
			}
			f = schema.WKBField(g.Name, g.Nullable, tag, g.Metadata)
		}
		fields = append(fields, f)
		cols = append(cols, ci)
	}
	r := &directReader{
		refs:   1,
		ctx:    ctx,
		layer:  sub,
		schema: arrow.NewSchema(fields, nil),
		cols:   cols,
		wkt:    wkt,
	}
	if sub.spatial != nil && sub.disjointExtent() {
		// Nothing can match; never open the source.
		return r, nil
	}
	src, err := l.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	r.src = src
	return r, nil
}

func (r *directReader) Retain()  { atomic.AddInt64(&r.refs, 1) }
func (r *directReader) Release() {
	if atomic.AddInt64(&r.refs, -1) != 0 {
		return
	}
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.src != nil {
		r.src.Release()
		r.src = nil
	}
}

func (r *directReader) Schema() *arrow.Schema          { return r.schema }
func (r *directReader) Record() arrow.Record           { return r.cur }
func (r *directReader) RecordBatch() arrow.RecordBatch { return r.cur }
func (r *directReader) Err() error                     { return r.err }

func (r *directReader) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.err != nil || r.src == nil {
		return false
	}
	for r.src.Next() {
		if err := r.ctx.Err(); err != nil {
			r.err = err
			return false
		}
		rec := r.src.Record()
		runs, total := r.mask(rec)
		r.rowsBefore += rec.NumRows()
		if total == 0 {
			continue
		}
		out, err := r.project(rec, runs, total)
		if err != nil {
			r.err = err
			return false
		}
		r.cur = out
		return true
	}
	r.err = r.src.Err()
	return false
}

// mask evaluates the row filters over one batch and returns the surviving
// rows as [start, end) runs.
func (r *directReader) mask(rec arrow.Record) ([][2]int, int64) {
	n := int(rec.NumRows())
	l := r.layer
	if l.spatial == nil && l.constraints == nil {
		return [][2]int{{0, n}}, int64(n)
	}
	var (
		runs  [][2]int
		total int64
		start = -1
	)
	for row := 0; row < n; row++ {
		fid := l.fidAt(rec, row, r.rowsBefore+int64(row))
		if l.admit(rec, row, fid) {
			if start < 0 {
				start = row
			}
			total++
			continue
		}
		if start >= 0 {
			runs = append(runs, [2]int{start, row})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, n})
	}
	return runs, total
}

func (r *directReader) project(rec arrow.Record, runs [][2]int, total int64) (arrow.Record, error) {
	cols := make([]arrow.Array, 0, len(r.cols))
	fail := func(err error) (arrow.Record, error) {
		for _, c := range cols {
			c.Release()
		}
		return nil, err
	}
	full := len(runs) == 1 && runs[0][0] == 0 && runs[0][1] == int(rec.NumRows())
	for _, ci := range r.cols {
		col := rec.Column(ci)
		var owned arrow.Array
		if r.wkt[ci] {
			t, err := geometry.TranscodeWKT(r.layer.mem, col)
			if err != nil {
				return fail(err)
			}
			owned, col = t, t
		}
		out, err := compact(r.layer.mem, col, runs, full)
		if owned != nil {
			owned.Release()
		}
		if err != nil {
			return fail(err)
		}
		cols = append(cols, out)
	}
	out := array.NewRecord(r.schema, cols, total)
	for _, c := range cols {
		c.Release()
	}
	return out, nil
}

// compact keeps only the rows inside runs, slicing each run and
// concatenating the slices. A full batch is retained as is.
func compact(mem memory.Allocator, col arrow.Array, runs [][2]int, full bool) (arrow.Array, error) {
	if full {
		col.Retain()
		return col, nil
	}
	if len(runs) == 1 {
		return array.NewSlice(col, int64(runs[0][0]), int64(runs[0][1])), nil
	}
	slices := make([]arrow.Array, 0, len(runs))
	for _, run := range runs {
		slices = append(slices, array.NewSlice(col, int64(run[0]), int64(run[1])))
	}
	out, err := array.Concatenate(slices, mem)
	for _, s := range slices {
		s.Release()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// genericReader materializes features and rebuilds them into flat batches:
// the identifier column, the visible attributes in their row-oriented
// types, and geometries as WKB.
type genericReader struct {
	refs   int64
	ctx    context.Context
	layer  *Layer
	schema *arrow.Schema
	bld    *array.RecordBuilder
	fields []int
	geoms  []int
	cur    arrow.Record
	err    error
}

func (l *Layer) newGenericReader(ctx context.Context, tag string) (array.RecordReader, error) {
	fields := []arrow.Field{{Name: l.def.FID(), Type: arrow.PrimitiveTypes.Int64}}
	var attrs, geoms []int
	for i := range l.def.Fields {
		if l.ignored[i] {
			continue
		}
		fd := &l.def.Fields[i]
		fields = append(fields, arrow.Field{
			Name:     fd.Name,
			Type:     exportType(fd),
			Nullable: true,
		})
		attrs = append(attrs, i)
	}
	for i := range l.def.GeomFields {
		if l.ignoredGeom[i] {
			continue
		}
		g := &l.def.GeomFields[i]
		fields = append(fields, schema.WKBField(g.Name, true, tag, g.Metadata))
		geoms = append(geoms, i)
	}
	s := arrow.NewSchema(fields, nil)
	return &genericReader{
		refs:   1,
		ctx:    ctx,
		layer:  l.clone(),
		schema: s,
		bld:    array.NewRecordBuilder(l.mem, s),
		fields: attrs,
		geoms:  geoms,
	}, nil
}

// exportType is the arrow type the generic path rebuilds a field with.
func exportType(fd *schema.FieldDefn) arrow.DataType {
	switch fd.Type {
	case schema.TypeInteger:
		return arrow.PrimitiveTypes.Int32
	case schema.TypeInteger64:
		return arrow.PrimitiveTypes.Int64
	case schema.TypeReal:
		return arrow.PrimitiveTypes.Float64
	case schema.TypeString:
		return arrow.BinaryTypes.String
	case schema.TypeBinary:
		return arrow.BinaryTypes.Binary
	case schema.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case schema.TypeTime:
		return arrow.FixedWidthTypes.Time32ms
	case schema.TypeDateTime:
		return arrow.FixedWidthTypes.Timestamp_ms
	case schema.TypeIntegerList:
		return arrow.ListOf(arrow.PrimitiveTypes.Int32)
	case schema.TypeInteger64List:
		return arrow.ListOf(arrow.PrimitiveTypes.Int64)
	case schema.TypeRealList:
		return arrow.ListOf(arrow.PrimitiveTypes.Float64)
	case schema.TypeStringList:
		return arrow.ListOf(arrow.BinaryTypes.String)
	}
	return arrow.BinaryTypes.String
}

func (r *genericReader) Retain()  { atomic.AddInt64(&r.refs, 1) }
func (r *genericReader) Release() {
	if atomic.AddInt64(&r.refs, -1) != 0 {
		return
	}
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	r.bld.Release()
	r.layer.Reset()
}

func (r *genericReader) Schema() *arrow.Schema          { return r.schema }
func (r *genericReader) Record() arrow.Record           { return r.cur }
func (r *genericReader) RecordBatch() arrow.RecordBatch { return r.cur }
func (r *genericReader) Err() error                     { return r.err }

func (r *genericReader) Next() bool {
	if r.cur != nil {
		r.cur.Release()
		r.cur = nil
	}
	if r.err != nil {
		return false
	}
	rows := 0
	for rows < streamBatchSize && r.layer.Next(r.ctx) {
		r.append(r.layer.Feature())
		rows++
	}
	if err := r.layer.Err(); err != nil {
		r.err = err
		return false
	}
	if rows == 0 {
		return false
	}
	r.cur = r.bld.NewRecord()
	return true
}

func (r *genericReader) append(f *Feature) {
	r.bld.Field(0).(*array.Int64Builder).Append(f.FID())
	for bi, fi := range r.fields {
		r.appendValue(r.bld.Field(bi+1), f.Value(fi))
	}
	base := 1 + len(r.fields)
	for bi, gi := range r.geoms {
		b := r.bld.Field(base + bi).(*array.BinaryBuilder)
		g := f.Geometry(gi)
		if g == nil {
			b.AppendNull()
			continue
		}
		data, err := wkb.Marshal(g, binary.LittleEndian)
		if err != nil {
			r.layer.logger.Warn("geometry does not encode as wkb, exported as null",
				"fid", f.FID(), "error", err)
			b.AppendNull()
			continue
		}
		b.Append(data)
	}
}

// appendValue feeds one materialized value into its builder. The value
// types here mirror what materialization produces for each semantic type.
func (r *genericReader) appendValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch bld := b.(type) {
	case *array.Int32Builder:
		switch t := v.(type) {
		case bool:
			if t {
				bld.Append(1)
			} else {
				bld.Append(0)
			}
		case int32:
			bld.Append(t)
		case int64:
			bld.Append(int32(t))
		default:
			bld.AppendNull()
		}
	case *array.Int64Builder:
		switch t := v.(type) {
		case int32:
			bld.Append(int64(t))
		case int64:
			bld.Append(t)
		default:
			bld.AppendNull()
		}
	case *array.Float64Builder:
		switch t := v.(type) {
		case float32:
			bld.Append(float64(t))
		case float64:
			bld.Append(t)
		default:
			bld.AppendNull()
		}
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			bld.Append(s)
		} else {
			bld.AppendNull()
		}
	case *array.BinaryBuilder:
		if data, ok := v.([]byte); ok {
			bld.Append(data)
		} else {
			bld.AppendNull()
		}
	case *array.Date32Builder:
		if t, ok := v.(time.Time); ok {
			bld.Append(arrow.Date32FromTime(t))
		} else {
			bld.AppendNull()
		}
	case *array.Time32Builder:
		if d, ok := v.(time.Duration); ok {
			bld.Append(arrow.Time32(d.Milliseconds()))
		} else {
			bld.AppendNull()
		}
	case *array.TimestampBuilder:
		if t, ok := v.(time.Time); ok {
			bld.Append(arrow.Timestamp(t.UnixMilli()))
		} else {
			bld.AppendNull()
		}
	case *array.ListBuilder:
		r.appendList(bld, v)
	default:
		b.AppendNull()
	}
}

func (r *genericReader) appendList(bld *array.ListBuilder, v any) {
	switch t := v.(type) {
	case []int32:
		bld.Append(true)
		bld.ValueBuilder().(*array.Int32Builder).AppendValues(t, nil)
	case []int64:
		bld.Append(true)
		bld.ValueBuilder().(*array.Int64Builder).AppendValues(t, nil)
	case []float64:
		bld.Append(true)
		bld.ValueBuilder().(*array.Float64Builder).AppendValues(t, nil)
	case []string:
		bld.Append(true)
		bld.ValueBuilder().(*array.StringBuilder).AppendValues(t, nil)
	default:
		bld.AppendNull()
	}
}
