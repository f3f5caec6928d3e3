package arrowlayer

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/hugr-lab/arrowlayer-go/filter"
)

func benchmarkSource(b *testing.B, rows int) *RecordSource {
	b.Helper()
	s := wkbSchema("")
	bld := array.NewRecordBuilder(memory.DefaultAllocator, s)
	defer bld.Release()
	for i := 0; i < rows; i++ {
		bld.Field(0).(*array.StringBuilder).Append(fmt.Sprintf("feature-%d", i))
		bld.Field(1).(*array.Int32Builder).Append(int32(i))
		x := float64(i % 100)
		data, err := wkb.Marshal(geom.NewPointFlat(geom.XY, []float64{x, x}), binary.LittleEndian)
		if err != nil {
			b.Fatalf("marshal: %v", err)
		}
		bld.Field(2).(*array.BinaryBuilder).Append(data)
	}
	rec := bld.NewRecord()
	src := NewRecordSource(s, rec)
	rec.Release()
	b.Cleanup(src.Release)
	return src
}

func BenchmarkLayerScan(b *testing.B) {
	src := benchmarkSource(b, 10000)
	l, err := New(src, Config{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		for l.Next(ctx) {
			n++
		}
		if err := l.Err(); err != nil {
			b.Fatal(err)
		}
		if n != 10000 {
			b.Fatalf("rows = %d", n)
		}
		l.Reset()
	}
}

func BenchmarkLayerFilteredScan(b *testing.B) {
	src := benchmarkSource(b, 10000)
	l, err := New(src, Config{})
	if err != nil {
		b.Fatal(err)
	}
	l.SetAttributeFilter(filter.Lt(filter.Col("pop"), filter.Lit(100)))
	l.SetSpatialFilter(bench2DBox())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for l.Next(ctx) {
		}
		if err := l.Err(); err != nil {
			b.Fatal(err)
		}
		l.Reset()
	}
}

func bench2DBox() *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{0, 0, 50, 0, 50, 50, 0, 50, 0, 0}, []int{10})
}

func BenchmarkReaderDirect(b *testing.B) {
	src := benchmarkSource(b, 10000)
	l, err := New(src, Config{})
	if err != nil {
		b.Fatal(err)
	}
	l.SetAttributeFilter(filter.Lt(filter.Col("pop"), filter.Lit(5000)))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, err := l.Reader(ctx, nil)
		if err != nil {
			b.Fatal(err)
		}
		var rows int64
		for r.Next() {
			rows += r.Record().NumRows()
		}
		if err := r.Err(); err != nil {
			b.Fatal(err)
		}
		r.Release()
		if rows != 5000 {
			b.Fatalf("rows = %d", rows)
		}
	}
}
