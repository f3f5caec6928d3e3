package geometry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ErrOffsetOverflow reports that a re-encoded binary column grew past the
// 32-bit offset range. The conversion of the whole batch fails; the caller
// surfaces the error rather than truncating the column.
var ErrOffsetOverflow = errors.New("geometry: wkb column exceeds 32-bit offset range")

// TranscodeWKT re-encodes a WKT string column as a WKB binary column with
// little-endian ISO payloads. Null and empty values stay null, values that
// fail to parse become null, and the result keeps one offset per row. The
// returned array is allocated from mem and owned by the caller.
func TranscodeWKT(mem memory.Allocator, col arrow.Array) (*array.Binary, error) {
	switch col.(type) {
	case *array.String, *array.LargeString:
	default:
		return nil, fmt.Errorf("transcode: expected a string column, got %s", col.DataType())
	}

	bld := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer bld.Release()

	var total int64
	for row := 0; row < col.Len(); row++ {
		if col.IsNull(row) {
			bld.AppendNull()
			continue
		}
		s := stringValue(col, row)
		if len(s) == 0 {
			bld.AppendNull()
			continue
		}
		g, err := wkt.Unmarshal(s)
		if err != nil {
			bld.AppendNull()
			continue
		}
		data, err := wkb.Marshal(g, binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("transcode row %d: %w", row, err)
		}
		total += int64(len(data))
		if total > math.MaxInt32 {
			return nil, fmt.Errorf("transcode row %d: %w", row, ErrOffsetOverflow)
		}
		bld.Append(data)
	}
	return bld.NewBinaryArray(), nil
}
