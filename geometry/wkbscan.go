package geometry

import (
	"encoding/binary"
	"math"
)

const (
	wkbFlagZ    = 0x80000000
	wkbFlagM    = 0x40000000
	wkbFlagSRID = 0x20000000

	maxScanDepth = 128
)

// EnvelopeFromWKB computes the bounding box of a WKB payload by scanning
// header bytes and raw coordinates without building a geometry. Both ISO
// (type offsets 1000/2000/3000) and extended (flag bits) dimensionality
// codes are handled, as are nested collections. Returns false when the
// payload is malformed or truncated; the caller falls back to a full
// decode.
func EnvelopeFromWKB(data []byte) (Envelope, bool) {
	env := NewEnvelope()
	_, ok := scanWKB(data, &env, 0)
	if !ok {
		return NewEnvelope(), false
	}
	return env, true
}

// scanWKB consumes one geometry from buf, extends env with its
// coordinates, and returns the unconsumed tail.
func scanWKB(buf []byte, env *Envelope, depth int) ([]byte, bool) {
	if depth > maxScanDepth || len(buf) < 5 {
		return nil, false
	}
	var bo binary.ByteOrder
	switch buf[0] {
	case 0:
		bo = binary.BigEndian
	case 1:
		bo = binary.LittleEndian
	default:
		return nil, false
	}
	typ := bo.Uint32(buf[1:5])
	buf = buf[5:]

	if typ&wkbFlagSRID != 0 {
		if len(buf) < 4 {
			return nil, false
		}
		buf = buf[4:]
	}
	hasZ := typ&wkbFlagZ != 0
	hasM := typ&wkbFlagM != 0
	base := typ &^ (wkbFlagZ | wkbFlagM | wkbFlagSRID)
	switch {
	case base >= 3000 && base < 4000:
		base -= 3000
		hasZ, hasM = true, true
	case base >= 2000 && base < 3000:
		base -= 2000
		hasM = true
	case base >= 1000 && base < 2000:
		base -= 1000
		hasZ = true
	}
	dim := 2
	if hasZ {
		dim++
	}
	if hasM {
		dim++
	}

	switch base {
	case 1: // point
		return scanPoints(buf, bo, env, 1, dim)
	case 2: // linestring
		return scanCounted(buf, bo, env, dim)
	case 3: // polygon
		n, rest, ok := scanCount(buf, bo)
		if !ok {
			return nil, false
		}
		buf = rest
		for i := uint32(0); i < n; i++ {
			buf, ok = scanCounted(buf, bo, env, dim)
			if !ok {
				return nil, false
			}
		}
		return buf, true
	case 4, 5, 6, 7: // multi types and collections: parts carry own headers
		n, rest, ok := scanCount(buf, bo)
		if !ok {
			return nil, false
		}
		buf = rest
		for i := uint32(0); i < n; i++ {
			buf, ok = scanWKB(buf, env, depth+1)
			if !ok {
				return nil, false
			}
		}
		return buf, true
	}
	return nil, false
}

func scanCount(buf []byte, bo binary.ByteOrder) (uint32, []byte, bool) {
	if len(buf) < 4 {
		return 0, nil, false
	}
	return bo.Uint32(buf[:4]), buf[4:], true
}

// scanCounted reads a point count then that many points.
func scanCounted(buf []byte, bo binary.ByteOrder, env *Envelope, dim int) ([]byte, bool) {
	n, rest, ok := scanCount(buf, bo)
	if !ok {
		return nil, false
	}
	return scanPoints(rest, bo, env, int64(n), dim)
}

// scanPoints reads n points of dim doubles and extends env with their x/y.
// NaN coordinates of empty points leave the envelope untouched.
func scanPoints(buf []byte, bo binary.ByteOrder, env *Envelope, n int64, dim int) ([]byte, bool) {
	need := n * int64(dim) * 8
	if int64(len(buf)) < need {
		return nil, false
	}
	for i := int64(0); i < n; i++ {
		p := i * int64(dim) * 8
		x := math.Float64frombits(bo.Uint64(buf[p : p+8]))
		y := math.Float64frombits(bo.Uint64(buf[p+8 : p+16]))
		env.Extend(x, y)
	}
	return buf[need:], true
}
