package field

import (
	"math"

	"github.com/sbl8/ssccs/core"
)

// Projector turns a point into an observed value in the context of a field.
// It reports false when the point has no value under this projection.
type Projector[T any] interface {
	Project(f *Field, p core.Segment) (T, bool)
}

// ProjectorFunc adapts a function to Projector
type ProjectorFunc[T any] func(f *Field, p core.Segment) (T, bool)

// Project calls fn
func (fn ProjectorFunc[T]) Project(f *Field, p core.Segment) (T, bool) { return fn(f, p) }

// Integer projects the value of one axis.
func Integer(axis int) ProjectorFunc[int64] {
	return func(_ *Field, p core.Segment) (int64, bool) {
		return p.At(axis)
	}
}

// Parity projects "even" or "odd" for one axis.
func Parity(axis int) ProjectorFunc[string] {
	return func(_ *Field, p core.Segment) (string, bool) {
		v, ok := p.At(axis)
		if !ok {
			return "", false
		}
		if v%2 == 0 {
			return "even", true
		}
		return "odd", true
	}
}

// ArithmeticProjector projects one axis and brings its own adjacency:
// v+1, v-1, 2v and v/2 when v is even.
type ArithmeticProjector struct {
	axis int
}

var (
	_ Projector[int64] = ArithmeticProjector{}
	_ Adjacency        = ArithmeticProjector{}
)

// Arithmetic returns the arithmetic projector for axis.
func Arithmetic(axis int) ArithmeticProjector { return ArithmeticProjector{axis: axis} }

// Project returns the axis value
func (a ArithmeticProjector) Project(_ *Field, p core.Segment) (int64, bool) {
	return p.At(a.axis)
}

// Next changes the projected axis by the arithmetic moves. Moves that land
// on c itself, repeat an earlier move or overflow int64 are dropped.
func (a ArithmeticProjector) Next(c core.Coordinate) []core.Coordinate {
	v, ok := c.At(a.axis)
	if !ok {
		return nil
	}
	var values []int64
	if v < math.MaxInt64 {
		values = append(values, v+1)
	}
	if v > math.MinInt64 {
		values = append(values, v-1)
	}
	if v <= math.MaxInt64/2 && v >= math.MinInt64/2 {
		values = append(values, v*2)
	}
	if v%2 == 0 {
		values = append(values, v/2)
	}
	var out []core.Coordinate
	seen := map[int64]bool{v: true}
	for _, n := range values {
		if seen[n] {
			continue
		}
		seen[n] = true
		next := c.Clone()
		next[a.axis] = n
		out = append(out, next)
	}
	return out
}
