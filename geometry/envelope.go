package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Envelope is a 2-D bounding box. The zero value of NewEnvelope is empty;
// extending it with NaN coordinates leaves it empty, so envelopes built
// from empty geometries never intersect anything.
type Envelope struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// NewEnvelope returns an empty envelope.
func NewEnvelope() Envelope {
	return Envelope{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether the envelope contains no points.
func (e Envelope) IsEmpty() bool {
	return !(e.MinX <= e.MaxX && e.MinY <= e.MaxY)
}

// Extend grows the envelope to include the point (x, y).
func (e *Envelope) Extend(x, y float64) {
	if x < e.MinX {
		e.MinX = x
	}
	if x > e.MaxX {
		e.MaxX = x
	}
	if y < e.MinY {
		e.MinY = y
	}
	if y > e.MaxY {
		e.MaxY = y
	}
}

// Merge grows the envelope to include o.
func (e *Envelope) Merge(o Envelope) {
	if o.IsEmpty() {
		return
	}
	e.Extend(o.MinX, o.MinY)
	e.Extend(o.MaxX, o.MaxY)
}

// Intersects reports whether the two envelopes overlap. Empty envelopes
// intersect nothing.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && e.MaxX >= o.MinX &&
		e.MinY <= o.MaxY && e.MaxY >= o.MinY
}

// EnvelopeOf returns the bounding box of a geometry. Nil or empty
// geometries yield an empty envelope.
func EnvelopeOf(g geom.T) Envelope {
	e := NewEnvelope()
	if g == nil || g.Empty() {
		return e
	}
	b := g.Bounds()
	e.Extend(b.Min(0), b.Min(1))
	e.Extend(b.Max(0), b.Max(1))
	return e
}
