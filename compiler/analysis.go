package compiler

import (
	"errors"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/scheme"
)

// Analysis is the structural digest of a scheme.
type Analysis struct {
	Points    int
	Relations int
	// DependencyLevels groups the endpoints of dependency relations; level 0
	// has no prerequisites.
	DependencyLevels [][]core.Identity
	// ExecutionOrder lists every point: dependency levels first, then the
	// points without dependencies in identity order.
	ExecutionOrder []core.Identity
	// Cyclic is set when the dependency relations contain a cycle.
	Cyclic bool
	// Isolated counts points with no relation in either direction.
	Isolated int
	// RelationKinds counts relations by type name.
	RelationKinds map[string]int
}

// Analyze computes the structural digest. On a dependency cycle it returns
// the partial analysis together with an error wrapping
// scheme.ErrDependencyCycle.
func Analyze(s scheme.Scheme) (Analysis, error) {
	rels := s.Relations()
	a := Analysis{
		Points:        s.Len(),
		Relations:     len(rels),
		RelationKinds: make(map[string]int),
	}

	touched := make(map[core.Identity]bool, s.Len())
	for _, r := range rels {
		a.RelationKinds[r.TypeName()]++
		touched[r.From] = true
		touched[r.To] = true
	}
	for _, p := range s.Points() {
		if !touched[p.ID()] {
			a.Isolated++
		}
	}

	levels, err := scheme.GraphOf(rels).DependencyLevels()
	a.DependencyLevels = levels
	if err != nil {
		if !errors.Is(err, scheme.ErrDependencyCycle) {
			return a, err
		}
		a.Cyclic = true
	}

	placed := make(map[core.Identity]bool, s.Len())
	for _, level := range levels {
		for _, id := range level {
			if !placed[id] {
				placed[id] = true
				a.ExecutionOrder = append(a.ExecutionOrder, id)
			}
		}
	}
	// points are already in identity order; anything left (independent or
	// stuck on a cycle) follows in that order
	for _, p := range s.Points() {
		if !placed[p.ID()] {
			a.ExecutionOrder = append(a.ExecutionOrder, p.ID())
		}
	}
	return a, err
}
