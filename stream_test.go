package arrowlayer

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/arrowlayer-go/filter"
	"github.com/hugr-lab/arrowlayer-go/geometry"
	"github.com/hugr-lab/arrowlayer-go/schema"
)

func readAll(t *testing.T, r array.RecordReader) []arrow.Record {
	t.Helper()
	var out []arrow.Record
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reader: %v", err)
	}
	return out
}

func releaseAll(recs []arrow.Record) {
	for _, rec := range recs {
		rec.Release()
	}
}

func TestReaderDirectPassThrough(t *testing.T) {
	l := layerOver(t, wkbSchema(""), Config{}, []rowSpec{
		{"a", 1, []float64{1, 2}},
		{"b", 2, []float64{3, 4}},
	})
	r, err := l.Reader(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Release()

	recs := readAll(t, r)
	defer releaseAll(recs)
	if len(recs) != 1 {
		t.Fatalf("got %d batches, want 1", len(recs))
	}
	rec := recs[0]
	if rec.NumRows() != 2 || rec.NumCols() != 3 {
		t.Fatalf("batch %dx%d, want 2x3", rec.NumRows(), rec.NumCols())
	}
	if got := rec.Column(0).(*array.String).Value(1); got != "b" {
		t.Errorf("name[1] = %q, want b", got)
	}
}

func TestReaderDirectFiltered(t *testing.T) {
	l := layerOver(t, wkbSchema(""), Config{}, []rowSpec{
		{"a", 10, nil},
		{"b", 20, nil},
		{"c", 5, nil},
		{"d", 30, nil},
	})
	l.SetAttributeFilter(filter.Gt(filter.Col("pop"), filter.Lit(9)))
	r, err := l.Reader(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Release()

	recs := readAll(t, r)
	defer releaseAll(recs)
	if len(recs) != 1 || recs[0].NumRows() != 3 {
		t.Fatalf("got %d batches, want one of 3 rows", len(recs))
	}
	names := recs[0].Column(0).(*array.String)
	want := []string{"a", "b", "d"}
	for i, w := range want {
		if names.Value(i) != w {
			t.Errorf("name[%d] = %q, want %q", i, names.Value(i), w)
		}
	}
}

func TestReaderSkipsEmptyBatches(t *testing.T) {
	l := layerOver(t, wkbSchema(""), Config{},
		[]rowSpec{{"a", 1, nil}},
		[]rowSpec{{"b", 2, nil}},
		[]rowSpec{{"c", 3, nil}},
	)
	l.SetAttributeFilter(filter.Ne(filter.Col("name"), filter.Lit("b")))
	r, err := l.Reader(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Release()

	recs := readAll(t, r)
	defer releaseAll(recs)
	if len(recs) != 2 {
		t.Fatalf("got %d batches, fully filtered batches must be skipped", len(recs))
	}
}

func wktSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "geom", Type: arrow.BinaryTypes.String, Nullable: true,
			Metadata: arrow.MetadataFrom(map[string]string{
				schema.ExtensionNameKey: "geoarrow.wkt",
			})},
	}, nil)
}

func TestReaderTranscodesWKT(t *testing.T) {
	s := wktSchema()
	b := array.NewRecordBuilder(memory.DefaultAllocator, s)
	defer b.Release()
	gb := b.Field(0).(*array.StringBuilder)
	gb.Append("POINT (1 2)")
	gb.AppendNull()
	gb.Append("POINT (3 4)")
	rec := b.NewRecord()
	src := NewRecordSource(s, rec)
	rec.Release()
	t.Cleanup(src.Release)

	l, err := New(src, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, err := l.Reader(context.Background(), &StreamOptions{
		Encoding: geometry.EncodingWKB,
		WKBTag:   "ogc.wkb",
	})
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Release()

	f := r.Schema().Field(0)
	if idx := f.Metadata.FindKey(schema.ExtensionNameKey); idx < 0 || f.Metadata.Values()[idx] != "ogc.wkb" {
		t.Errorf("exported geometry field metadata = %v, want ogc.wkb tag", f.Metadata)
	}
	if f.Type.ID() != arrow.BINARY {
		t.Fatalf("exported geometry type = %s, want binary", f.Type)
	}

	recs := readAll(t, r)
	defer releaseAll(recs)
	if len(recs) != 1 {
		t.Fatalf("got %d batches, want 1", len(recs))
	}
	col := recs[0].Column(0).(*array.Binary)
	// A 2-D WKB point is 21 bytes; the null contributes no payload bytes.
	wantLens := []int{21, 0, 21}
	for i, w := range wantLens {
		if got := len(col.Value(i)); got != w {
			t.Errorf("len(value[%d]) = %d, want %d", i, got, w)
		}
	}
	if !col.IsNull(1) {
		t.Error("null wkt value must stay null after transcode")
	}
}

func TestReaderGenericMatchesDirect(t *testing.T) {
	rows := []rowSpec{
		{"a", 10, []float64{1, 1}},
		{"b", 20, []float64{5, 5}},
		{"c", 30, []float64{9, 9}},
	}
	expr := filter.Ge(filter.Col("pop"), filter.Lit(20))

	direct := layerOver(t, wkbSchema(""), Config{}, rows)
	direct.SetAttributeFilter(expr)
	generic := layerOver(t, wkbSchema(""), Config{}, rows)
	generic.SetAttributeFilter(expr)

	dr, err := direct.Reader(context.Background(), nil)
	if err != nil {
		t.Fatalf("direct Reader: %v", err)
	}
	defer dr.Release()
	gr, err := generic.Reader(context.Background(), &StreamOptions{ForceGeneric: true})
	if err != nil {
		t.Fatalf("generic Reader: %v", err)
	}
	defer gr.Release()

	drecs := readAll(t, dr)
	defer releaseAll(drecs)
	grecs := readAll(t, gr)
	defer releaseAll(grecs)

	var dnames, gnames []string
	for _, rec := range drecs {
		col := rec.Column(0).(*array.String)
		for i := 0; i < col.Len(); i++ {
			dnames = append(dnames, col.Value(i))
		}
	}
	for _, rec := range grecs {
		idx := -1
		for i, f := range rec.Schema().Fields() {
			if f.Name == "name" {
				idx = i
			}
		}
		col := rec.Column(idx).(*array.String)
		for i := 0; i < col.Len(); i++ {
			gnames = append(gnames, col.Value(i))
		}
	}
	if len(dnames) != len(gnames) {
		t.Fatalf("direct %v vs generic %v", dnames, gnames)
	}
	for i := range dnames {
		if dnames[i] != gnames[i] {
			t.Fatalf("direct %v vs generic %v", dnames, gnames)
		}
	}
}

func TestReaderGenericSchema(t *testing.T) {
	l := layerOver(t, wkbSchema(""), Config{ForceGenericExport: true}, []rowSpec{
		{"a", 1, []float64{1, 2}},
	})
	r, err := l.Reader(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Release()

	s := r.Schema()
	if s.Field(0).Name != "fid" || s.Field(0).Type.ID() != arrow.INT64 {
		t.Errorf("field 0 = %v, want int64 fid", s.Field(0))
	}
	recs := readAll(t, r)
	defer releaseAll(recs)
	if len(recs) != 1 || recs[0].NumRows() != 1 {
		t.Fatalf("got %v, want one single-row batch", recs)
	}
	// The geometry column is the last field and holds WKB.
	col := recs[0].Column(int(recs[0].NumCols()) - 1).(*array.Binary)
	if len(col.Value(0)) != 21 {
		t.Errorf("wkb length = %d, want 21", len(col.Value(0)))
	}
}

func TestReaderResidualFilterForcesGeneric(t *testing.T) {
	l := layerOver(t, wkbSchema(""), Config{}, []rowSpec{
		{"a", 10, nil},
		{"b", 20, nil},
	})
	// OR does not compile, so the direct path is off the table.
	l.SetAttributeFilter(filter.Or(
		filter.Eq(filter.Col("name"), filter.Lit("a")),
		filter.Gt(filter.Col("pop"), filter.Lit(100)),
	))
	if l.directPathOK(&StreamOptions{}) {
		t.Fatal("partially compiled filter must disable the direct path")
	}
	r, err := l.Reader(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer r.Release()
	recs := readAll(t, r)
	defer releaseAll(recs)
	if len(recs) != 1 || recs[0].NumRows() != 1 {
		t.Fatalf("generic fallback returned %v, want one row", recs)
	}
}
