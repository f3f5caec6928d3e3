package arrowlayer

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/twpayne/go-geom"

	"github.com/hugr-lab/arrowlayer-go/schema"
)

// materialize builds the row-oriented feature for one admitted row. Ignored
// fields stay nil; values that cannot be read (decode failures, oversized
// binaries) become null rather than failing the row.
func (l *Layer) materialize(rec arrow.Record, row int, fid int64) (*Feature, error) {
	f := &Feature{
		fid:    fid,
		values: make([]any, len(l.def.Fields)),
		geoms:  make([]geom.T, len(l.def.GeomFields)),
	}
	for i := range l.def.Fields {
		if l.ignored[i] {
			continue
		}
		fd := &l.def.Fields[i]
		col, ok := resolveValue(rec, fd.Path, row)
		if !ok {
			continue
		}
		f.values[i] = l.value(fd, col, row)
	}
	for i := range l.def.GeomFields {
		if l.ignoredGeom[i] {
			continue
		}
		g, err := l.codecs[i].Decode(rec.Column(l.def.GeomFields[i].Column), row)
		if err != nil {
			l.logger.Debug("geometry decode failed, value set to null",
				"fid", fid, "field", l.def.GeomFields[i].Name, "error", err)
			continue
		}
		f.geoms[i] = g
	}
	return f, nil
}

// resolveColumn walks a field path down struct columns without row checks.
func resolveColumn(rec arrow.Record, path []int) (arrow.Array, bool) {
	col := rec.Column(path[0])
	for _, idx := range path[1:] {
		st, ok := col.(*array.Struct)
		if !ok {
			return nil, false
		}
		col = st.Field(idx)
	}
	return col, true
}

// resolveValue walks a field path for one row. A null at any struct level
// nulls the whole field.
func resolveValue(rec arrow.Record, path []int, row int) (arrow.Array, bool) {
	col := rec.Column(path[0])
	for _, idx := range path[1:] {
		if col.IsNull(row) {
			return nil, false
		}
		st, ok := col.(*array.Struct)
		if !ok {
			return nil, false
		}
		col = st.Field(idx)
	}
	if col.IsNull(row) {
		return nil, false
	}
	return col, true
}

// value converts one non-null physical value to its row-oriented form.
func (l *Layer) value(fd *schema.FieldDefn, col arrow.Array, row int) any {
	switch a := col.(type) {
	case *array.Boolean:
		return a.Value(row)
	case *array.Int8:
		return int32(a.Value(row))
	case *array.Uint8:
		return int32(a.Value(row))
	case *array.Int16:
		return int32(a.Value(row))
	case *array.Uint16:
		return int32(a.Value(row))
	case *array.Int32:
		return a.Value(row)
	case *array.Uint32:
		return int64(a.Value(row))
	case *array.Int64:
		return a.Value(row)
	case *array.Uint64:
		// Mapped to Real; values above 2^53 lose precision.
		return float64(a.Value(row))
	case *array.Float16:
		return a.Value(row).Float32()
	case *array.Float32:
		return a.Value(row)
	case *array.Float64:
		return a.Value(row)
	case *array.String:
		return a.Value(row)
	case *array.LargeString:
		return a.Value(row)
	case *array.Binary:
		return a.Value(row)
	case *array.LargeBinary:
		if a.ValueLen(row) > math.MaxInt32 {
			l.logger.Warn("binary value exceeds 32-bit length, set to null", "field", fd.Name)
			return nil
		}
		return a.Value(row)
	case *array.FixedSizeBinary:
		return a.Value(row)
	case *array.Date32:
		return a.Value(row).ToTime()
	case *array.Date64:
		return a.Value(row).ToTime()
	case *array.Timestamp:
		t := a.Value(row).ToTime(fd.Unit)
		if fd.TimeZone != nil {
			t = t.In(fd.TimeZone)
		}
		return t
	case *array.Time32:
		return time.Duration(a.Value(row)) * fd.Unit.Multiplier()
	case *array.Time64:
		return int64(a.Value(row))
	case *array.Decimal128:
		return l.decimalValue(fd, col, row)
	case *array.Decimal256:
		return l.decimalValue(fd, col, row)
	case *array.Dictionary:
		idx := a.GetValueIndex(row)
		if fd.Type == schema.TypeInteger {
			return int32(idx)
		}
		return int64(idx)
	case *array.List:
		if fd.Type == schema.TypeString {
			return l.jsonValue(fd, col, row)
		}
		s, e := a.ValueOffsets(row)
		return listValue(fd, a.ListValues(), int(s), int(e))
	case *array.LargeList:
		if fd.Type == schema.TypeString {
			return l.jsonValue(fd, col, row)
		}
		s, e := a.ValueOffsets(row)
		return listValue(fd, a.ListValues(), int(s), int(e))
	case *array.FixedSizeList:
		if fd.Type == schema.TypeString {
			return l.jsonValue(fd, col, row)
		}
		n := int(a.DataType().(*arrow.FixedSizeListType).Len())
		s := (a.Data().Offset() + row) * n
		return listValue(fd, a.ListValues(), s, s+n)
	case *array.Map:
		return l.jsonValue(fd, col, row)
	}
	return nil
}

// decimalValue renders a decimal through its canonical text form. The
// float64 round trip loses precision beyond 15 digits, matching the Real
// mapping of the field.
func (l *Layer) decimalValue(fd *schema.FieldDefn, col arrow.Array, row int) any {
	f, err := strconv.ParseFloat(col.ValueStr(row), 64)
	if err != nil {
		l.logger.Warn("unparsable decimal value, set to null", "field", fd.Name, "error", err)
		return nil
	}
	return f
}

// jsonValue renders nested storage (lists of structs, maps) as JSON text.
func (l *Layer) jsonValue(fd *schema.FieldDefn, col arrow.Array, row int) any {
	m, ok := col.(interface{ GetOneForMarshal(int) any })
	if !ok {
		return nil
	}
	data, err := json.Marshal(m.GetOneForMarshal(row))
	if err != nil {
		l.logger.Warn("field value does not render as JSON, set to null",
			"field", fd.Name, "error", err)
		return nil
	}
	return string(data)
}

// listValue copies the element range [s, e) into the slice type matching
// the list field. Null elements render as 0, NaN or the empty string.
func listValue(fd *schema.FieldDefn, values arrow.Array, s, e int) any {
	switch fd.Type {
	case schema.TypeIntegerList:
		out := make([]int32, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, int32(elemInt(values, i)))
		}
		return out
	case schema.TypeInteger64List:
		out := make([]int64, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, elemInt(values, i))
		}
		return out
	case schema.TypeRealList:
		out := make([]float64, 0, e-s)
		for i := s; i < e; i++ {
			if values.IsNull(i) {
				out = append(out, math.NaN())
				continue
			}
			out = append(out, elemFloat(values, i))
		}
		return out
	case schema.TypeStringList:
		out := make([]string, 0, e-s)
		for i := s; i < e; i++ {
			out = append(out, elemString(values, i))
		}
		return out
	}
	return nil
}

func elemInt(values arrow.Array, i int) int64 {
	if values.IsNull(i) {
		return 0
	}
	switch a := values.(type) {
	case *array.Boolean:
		if a.Value(i) {
			return 1
		}
		return 0
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	}
	return 0
}

func elemFloat(values arrow.Array, i int) float64 {
	switch a := values.(type) {
	case *array.Uint64:
		return float64(a.Value(i))
	case *array.Float16:
		return float64(a.Value(i).Float32())
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	}
	return float64(elemInt(values, i))
}

func elemString(values arrow.Array, i int) string {
	if values.IsNull(i) {
		return ""
	}
	switch a := values.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	}
	return ""
}
