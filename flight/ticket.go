package flight

import (
	"fmt"

	"github.com/hugr-lab/arrowlayer-go/geometry"
	"github.com/hugr-lab/arrowlayer-go/internal/msgpack"
)

// TicketData represents the decoded content of a Flight ticket.
// Tickets are opaque byte slices encoding the layer name plus the optional
// filters and output options applied to the stream.
type TicketData struct {
	// Layer is the dataset name (e.g., "roads", "parcels")
	Layer string `msgpack:"layer"`

	// Columns to keep in the output (optional, nil means all columns)
	Columns []string `msgpack:"columns,omitempty"`

	// Filter is a JSON-encoded attribute filter expression (optional)
	Filter []byte `msgpack:"filter,omitempty"`

	// Encoding requests a geometry encoding for the stream (optional).
	// Empty keeps the source encoding; "wkb" re-encodes text columns.
	Encoding string `msgpack:"encoding,omitempty"`

	// BBox is a spatial filter rectangle [minx, miny, maxx, maxy] (optional)
	BBox []float64 `msgpack:"bbox,omitempty"`
}

// validate checks the invariants shared by encode and decode.
func (t *TicketData) validate() error {
	if t.Layer == "" {
		return fmt.Errorf("layer name cannot be empty")
	}
	if len(t.BBox) != 0 && len(t.BBox) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %d", len(t.BBox))
	}
	switch geometry.Encoding(t.Encoding) {
	case geometry.EncodingUnknown, geometry.EncodingWKB:
	default:
		return fmt.Errorf("unsupported geometry encoding: %q", t.Encoding)
	}
	return nil
}

// EncodeTicket creates an opaque ticket from the given request data.
// The ticket is MessagePack-encoded to stay compact on the wire.
// Returns error if the data is invalid or encoding fails.
func EncodeTicket(data *TicketData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("ticket data cannot be nil")
	}
	if err := data.validate(); err != nil {
		return nil, err
	}

	encoded, err := msgpack.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}

	return encoded, nil
}

// DecodeTicket parses an opaque ticket back into its request data.
// Returns error if the bytes are not a valid ticket.
func DecodeTicket(data []byte) (*TicketData, error) {
	var ticket TicketData
	if err := msgpack.Decode(data, &ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}

	if err := ticket.validate(); err != nil {
		return nil, err
	}

	return &ticket, nil
}
