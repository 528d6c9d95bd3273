// Package core provides the leaf primitives of the structural scheme system.
//
// Everything above this package (schemes, fields, the compiler) is built from
// four value types:
//
//   - Coordinate: an opaque, fixed-arity tuple of signed integers
//   - Identity: a 256-bit content hash of a coordinate or of a whole structure
//   - Segment: an immutable (Coordinate, Identity) pair, the "point" of a scheme
//   - Constraint: a hashable predicate over a Coordinate
//
// No type in this package interprets coordinate components. Axis meaning,
// adjacency and memory placement live in the scheme and layout packages.
//
// All values are immutable after construction and safe to share between
// goroutines without synchronization.
package core

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Coordinate is an ordered tuple of integers locating a point in an abstract space.
type Coordinate []int64

// Coord builds a Coordinate from its components.
func Coord(values ...int64) Coordinate {
	c := make(Coordinate, len(values))
	copy(c, values)
	return c
}

// Dim returns the arity of the coordinate
func (c Coordinate) Dim() int {
	return len(c)
}

// Equal reports whether both coordinates have the same arity and components
func (c Coordinate) Equal(other Coordinate) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy
func (c Coordinate) Clone() Coordinate {
	if c == nil {
		return nil
	}
	out := make(Coordinate, len(c))
	copy(out, c)
	return out
}

// At returns the component on axis i and whether the axis exists.
func (c Coordinate) At(axis int) (int64, bool) {
	if axis < 0 || axis >= len(c) {
		return 0, false
	}
	return c[axis], true
}

// Bytes returns the little-endian encoding of every component in order.
// This is the exact input of IdentityOf.
func (c Coordinate) Bytes() []byte {
	buf := make([]byte, 8*len(c))
	for i, v := range c {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

// Key returns a string usable as a map key. Two coordinates share a key
// iff they are Equal.
func (c Coordinate) Key() string {
	return string(c.Bytes())
}

// String formats the coordinate as [a, b, c]
func (c Coordinate) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range c {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseCoordinate parses the String form, with or without brackets.
func ParseCoordinate(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return Coordinate{}, nil
	}
	parts := strings.Split(s, ",")
	c := make(Coordinate, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, &ParseError{Type: "coordinate", Value: s, Err: err}
		}
		c = append(c, v)
	}
	return c, nil
}
