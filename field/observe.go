package field

import (
	"fmt"

	"github.com/sbl8/ssccs/core"
)

// Adjacency yields the structural neighbors of a coordinate.
type Adjacency interface {
	Next(c core.Coordinate) []core.Coordinate
}

// AdjacencyFunc adapts a function to Adjacency
type AdjacencyFunc func(c core.Coordinate) []core.Coordinate

// Next calls f
func (f AdjacencyFunc) Next(c core.Coordinate) []core.Coordinate { return f(c) }

type adjacencies []Adjacency

// Adjacencies unions several sources in argument order. Nil sources are skipped.
func Adjacencies(sources ...Adjacency) Adjacency {
	var out adjacencies
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (a adjacencies) Next(c core.Coordinate) []core.Coordinate {
	var out []core.Coordinate
	for _, s := range a {
		out = append(out, s.Next(c)...)
	}
	return out
}

// Observe projects p when f allows its coordinate. It neither caches nor
// mutates anything.
func Observe[T any](f *Field, p core.Segment, proj Projector[T]) (T, bool) {
	if !f.Allows(p.Coordinate()) {
		var zero T
		return zero, false
	}
	return proj.Project(f, p)
}

// PossibleNextCoordinates returns the structural neighbors of p followed by
// the field transitions out of p, deduplicated by coordinate in first-seen
// order and filtered by the field constraints. adj may be nil.
func PossibleNextCoordinates(f *Field, p core.Segment, adj Adjacency) []core.Coordinate {
	return NextCoordinates(f, p.Coordinate(), adj)
}

// NextCoordinates is PossibleNextCoordinates for a bare coordinate.
func NextCoordinates(f *Field, c core.Coordinate, adj Adjacency) []core.Coordinate {
	var candidates []core.Coordinate
	if adj != nil {
		candidates = adj.Next(c)
	}
	candidates = append(candidates, f.TransitionTargets(c)...)

	seen := make(map[string]struct{}, len(candidates))
	out := make([]core.Coordinate, 0, len(candidates))
	for _, n := range candidates {
		key := n.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if f.Allows(n) {
			out = append(out, n)
		}
	}
	return out
}

// Observer checks an observed value.
type Observer[T any] interface {
	Matches(v T) bool
	Describe() string
}

// ValueObserver matches one expected value.
type ValueObserver[T comparable] struct {
	Expected    T
	Description string
}

// NewValueObserver returns an observer for expected.
func NewValueObserver[T comparable](expected T, description string) ValueObserver[T] {
	return ValueObserver[T]{Expected: expected, Description: description}
}

// Matches reports v == Expected
func (o ValueObserver[T]) Matches(v T) bool { return v == o.Expected }

// Describe returns the description, or the expected value when it is empty.
func (o ValueObserver[T]) Describe() string {
	if o.Description != "" {
		return o.Description
	}
	return fmt.Sprintf("expects %v", o.Expected)
}

// Check observes p and reports whether obs accepts the result. An
// observation the field refuses never matches.
func Check[T any](f *Field, p core.Segment, proj Projector[T], obs Observer[T]) bool {
	v, ok := Observe(f, p, proj)
	return ok && obs.Matches(v)
}
