package arrowlayer

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// BatchSource supplies the record batches a layer reads. Open may be called
// more than once; every reader starts from the first batch, so a source must
// be re-openable (a slice of retained records, a file, a query). The layer
// releases every reader it opens.
type BatchSource interface {
	// Schema returns the arrow schema shared by all batches.
	Schema() *arrow.Schema

	// Open returns a fresh reader positioned before the first batch.
	Open(ctx context.Context) (array.RecordReader, error)
}

// RecordSource is a BatchSource over an in-memory slice of records. It
// retains the records on creation and holds them until Release.
type RecordSource struct {
	schema  *arrow.Schema
	records []arrow.Record
}

// NewRecordSource builds a source over records. All records must share
// schema; the source retains them.
func NewRecordSource(schema *arrow.Schema, records ...arrow.Record) *RecordSource {
	for _, r := range records {
		r.Retain()
	}
	return &RecordSource{schema: schema, records: records}
}

// Schema implements BatchSource.
func (s *RecordSource) Schema() *arrow.Schema { return s.schema }

// Open implements BatchSource.
func (s *RecordSource) Open(ctx context.Context) (array.RecordReader, error) {
	return array.NewRecordReader(s.schema, s.records)
}

// Release drops the source's references to its records.
func (s *RecordSource) Release() {
	for _, r := range s.records {
		r.Release()
	}
	s.records = nil
}
