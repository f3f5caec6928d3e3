// Package msgpack provides MessagePack encoding/decoding for Flight tickets.
// Tickets travel as opaque byte slices, so a compact binary codec keeps them
// small and cheap to parse on every DoGet.
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode deserializes MessagePack data into a Go value.
// The v parameter should be a pointer to the target structure.
//
// Example:
//
//	type TicketData struct {
//	    Layer   string   `msgpack:"layer"`
//	    Columns []string `msgpack:"columns,omitempty"`
//	}
//
//	var ticket TicketData
//	err := msgpack.Decode(data, &ticket)
func Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	return nil
}

// Encode serializes a Go value into MessagePack format.
// Returns the serialized bytes or error.
//
// Example:
//
//	ticket := TicketData{Layer: "roads"}
//	data, err := msgpack.Encode(ticket)
func Encode(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	return data, nil
}
