package core

import (
	"slices"
)

// Segment is an immutable point: a coordinate together with the identity
// computed from it at construction time.
type Segment struct {
	coord Coordinate
	id    Identity
}

// NewSegment copies c and computes its identity once.
func NewSegment(c Coordinate) Segment {
	owned := c.Clone()
	if owned == nil {
		owned = Coordinate{}
	}
	return Segment{coord: owned, id: IdentityOf(owned)}
}

// SegmentOf is shorthand for NewSegment(Coord(values...)).
func SegmentOf(values ...int64) Segment {
	return NewSegment(Coord(values...))
}

// ID returns the segment identity
func (s Segment) ID() Identity {
	return s.id
}

// Coordinate returns a copy of the segment coordinate
func (s Segment) Coordinate() Coordinate {
	return s.coord.Clone()
}

// Dim returns the dimensionality of the segment
func (s Segment) Dim() int {
	return len(s.coord)
}

// At returns the component on the given axis.
func (s Segment) At(axis int) (int64, bool) {
	return s.coord.At(axis)
}

func (s Segment) String() string {
	return s.coord.String() + "@" + s.id.Short()
}

// SegmentSet is a set of segments keyed by identity.
type SegmentSet map[Identity]Segment

// NewSegmentSet returns a set containing segs
func NewSegmentSet(segs ...Segment) SegmentSet {
	set := make(SegmentSet, len(segs))
	for _, s := range segs {
		set[s.id] = s
	}
	return set
}

// Add inserts s and reports whether it was new.
func (set SegmentSet) Add(s Segment) bool {
	if _, ok := set[s.id]; ok {
		return false
	}
	set[s.id] = s
	return true
}

// Contains reports membership by identity
func (set SegmentSet) Contains(id Identity) bool {
	_, ok := set[id]
	return ok
}

// ContainsCoordinate reports membership by coordinate
func (set SegmentSet) ContainsCoordinate(c Coordinate) bool {
	return set.Contains(IdentityOf(c))
}

// Len returns the number of segments
func (set SegmentSet) Len() int {
	return len(set)
}

// Sorted returns the segments ordered by identity.
func (set SegmentSet) Sorted() []Segment {
	out := make([]Segment, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Segment) int { return a.id.Compare(b.id) })
	return out
}

// Coordinates returns the coordinates of the set ordered lexicographically
// by component, which is easier to read than identity order.
func (set SegmentSet) Coordinates() []Coordinate {
	out := make([]Coordinate, 0, len(set))
	for _, s := range set {
		out = append(out, s.coord.Clone())
	}
	slices.SortFunc(out, CompareCoordinates)
	return out
}

// CompareCoordinates orders coordinates by arity, then component by component.
func CompareCoordinates(a, b Coordinate) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}
