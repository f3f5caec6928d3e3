package flight

import (
	"bytes"
	"testing"

	"github.com/hugr-lab/arrowlayer-go/internal/msgpack"
)

func TestTicketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ticket TicketData
	}{
		{
			name:   "layer_only",
			ticket: TicketData{Layer: "roads"},
		},
		{
			name: "with_columns",
			ticket: TicketData{
				Layer:   "roads",
				Columns: []string{"name", "lanes", "geom"},
			},
		},
		{
			name: "with_filter",
			ticket: TicketData{
				Layer:  "roads",
				Filter: []byte(`{"expression_class": "COMPARISON", "type": "COMPARE_EQUAL", "left": {"expression_class": "COLUMN_REF", "name": "name"}, "right": {"expression_class": "CONSTANT", "value": "A1"}}`),
			},
		},
		{
			name: "with_bbox_and_encoding",
			ticket: TicketData{
				Layer:    "parcels",
				Encoding: "wkb",
				BBox:     []float64{-10, -10, 10, 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeTicket(&tt.ticket)
			if err != nil {
				t.Fatalf("EncodeTicket failed: %v", err)
			}

			got, err := DecodeTicket(data)
			if err != nil {
				t.Fatalf("DecodeTicket failed: %v", err)
			}

			if got.Layer != tt.ticket.Layer {
				t.Errorf("Layer = %q, want %q", got.Layer, tt.ticket.Layer)
			}
			if len(got.Columns) != len(tt.ticket.Columns) {
				t.Fatalf("got %d columns, want %d", len(got.Columns), len(tt.ticket.Columns))
			}
			for i, c := range got.Columns {
				if c != tt.ticket.Columns[i] {
					t.Errorf("column %d = %q, want %q", i, c, tt.ticket.Columns[i])
				}
			}
			if !bytes.Equal(got.Filter, tt.ticket.Filter) {
				t.Errorf("Filter = %s, want %s", got.Filter, tt.ticket.Filter)
			}
			if got.Encoding != tt.ticket.Encoding {
				t.Errorf("Encoding = %q, want %q", got.Encoding, tt.ticket.Encoding)
			}
			if len(got.BBox) != len(tt.ticket.BBox) {
				t.Fatalf("got %d bbox elements, want %d", len(got.BBox), len(tt.ticket.BBox))
			}
			for i, v := range got.BBox {
				if v != tt.ticket.BBox[i] {
					t.Errorf("bbox[%d] = %v, want %v", i, v, tt.ticket.BBox[i])
				}
			}
		})
	}
}

func TestEncodeTicketValidation(t *testing.T) {
	tests := []struct {
		name   string
		ticket *TicketData
	}{
		{"nil", nil},
		{"empty_layer", &TicketData{}},
		{"short_bbox", &TicketData{Layer: "roads", BBox: []float64{0, 0, 1}}},
		{"bad_encoding", &TicketData{Layer: "roads", Encoding: "geojson"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeTicket(tt.ticket); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeTicketErrors(t *testing.T) {
	if _, err := DecodeTicket(nil); err == nil {
		t.Error("expected error for empty ticket")
	}
	if _, err := DecodeTicket([]byte("not msgpack at all")); err == nil {
		t.Error("expected error for garbage ticket")
	}

	// Structurally valid msgpack that fails validation.
	raw, err := msgpack.Encode(&TicketData{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := DecodeTicket(raw); err == nil {
		t.Error("expected error for ticket without layer name")
	}
}
