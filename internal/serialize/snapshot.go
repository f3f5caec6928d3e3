// Package serialize provides layer snapshot encoding for Flight metadata.
// GetFlightInfo and ListFlights attach a compact description of a layer
// (fields, geometry columns, extent, feature count) as app metadata; the
// snapshot is MessagePack-encoded and ZStandard-compressed for transfer.
package serialize

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// FieldSnapshot describes one attribute field of a layer.
type FieldSnapshot struct {
	Name     string `msgpack:"name"`
	Type     string `msgpack:"type"`
	Subtype  string `msgpack:"subtype,omitempty"`
	Nullable bool   `msgpack:"nullable"`
}

// GeomFieldSnapshot describes one geometry field of a layer.
// Extent is [minx, miny, maxx, maxy], omitted when unknown.
type GeomFieldSnapshot struct {
	Name     string    `msgpack:"name"`
	Encoding string    `msgpack:"encoding"`
	Kind     string    `msgpack:"kind,omitempty"`
	Nullable bool      `msgpack:"nullable"`
	Extent   []float64 `msgpack:"extent,omitempty"`
}

// LayerSnapshot is the wire description of a layer sent to clients as
// FlightInfo app metadata. FeatureCount is -1 when unknown.
type LayerSnapshot struct {
	Name         string              `msgpack:"name"`
	FID          string              `msgpack:"fid"`
	Fields       []FieldSnapshot     `msgpack:"fields,omitempty"`
	GeomFields   []GeomFieldSnapshot `msgpack:"geom_fields,omitempty"`
	FeatureCount int64               `msgpack:"feature_count"`
}

// EncodeSnapshot serializes a layer snapshot to compressed bytes.
func EncodeSnapshot(snap *LayerSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	compressor, err := NewCompressor()
	if err != nil {
		return nil, err
	}
	defer compressor.Close()

	return compressor.Compress(data)
}

// DecodeSnapshot decompresses and deserializes a layer snapshot.
func DecodeSnapshot(data []byte) (*LayerSnapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot data")
	}

	decompressor, err := NewDecompressor()
	if err != nil {
		return nil, err
	}
	defer decompressor.Close()

	raw, err := decompressor.Decompress(data)
	if err != nil {
		return nil, err
	}

	var snap LayerSnapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snap, nil
}
