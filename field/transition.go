package field

import (
	"slices"

	"github.com/sbl8/ssccs/core"
)

// Transition is one weighted edge of a TransitionMatrix.
type Transition struct {
	From   core.Coordinate
	To     core.Coordinate
	Weight float64
}

// TransitionMatrix is a weighted directed graph keyed by coordinate.
type TransitionMatrix struct {
	edges map[string][]Transition
	// sources keeps first-insertion order for Each.
	sources []string
	count   int
}

// NewTransitionMatrix returns an empty matrix
func NewTransitionMatrix() *TransitionMatrix {
	return &TransitionMatrix{edges: make(map[string][]Transition)}
}

// Add records from -> to with weight, replacing the weight of an existing edge.
func (m *TransitionMatrix) Add(from, to core.Coordinate, weight float64) {
	key := from.Key()
	list, ok := m.edges[key]
	if !ok {
		m.sources = append(m.sources, key)
	}
	for i := range list {
		if list[i].To.Equal(to) {
			list[i].Weight = weight
			return
		}
	}
	m.edges[key] = append(list, Transition{From: from.Clone(), To: to.Clone(), Weight: weight})
	m.count++
}

// From returns the transitions out of c in insertion order.
func (m *TransitionMatrix) From(c core.Coordinate) []Transition {
	return slices.Clone(m.edges[c.Key()])
}

// Weight returns the weight of the edge a -> b.
func (m *TransitionMatrix) Weight(a, b core.Coordinate) (float64, bool) {
	for _, t := range m.edges[a.Key()] {
		if t.To.Equal(b) {
			return t.Weight, true
		}
	}
	return 0, false
}

// Len returns the number of edges
func (m *TransitionMatrix) Len() int { return m.count }

// All returns every edge, grouped by source in first-insertion order.
func (m *TransitionMatrix) All() []Transition {
	out := make([]Transition, 0, m.count)
	for _, key := range m.sources {
		out = append(out, m.edges[key]...)
	}
	return out
}

// Clone returns a deep copy. Coordinates inside transitions are never
// mutated, so they are shared.
func (m *TransitionMatrix) Clone() *TransitionMatrix {
	out := &TransitionMatrix{
		edges:   make(map[string][]Transition, len(m.edges)),
		sources: slices.Clone(m.sources),
		count:   m.count,
	}
	for k, v := range m.edges {
		out.edges[k] = slices.Clone(v)
	}
	return out
}
