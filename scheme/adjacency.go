package scheme

import "github.com/sbl8/ssccs/core"

// Adjacency follows the relations of a scheme from a coordinate.
type Adjacency struct {
	scheme Scheme
	filter string
}

// StructuralAdjacency returns the neighbors of a coordinate along the
// relations of s whose type name contains filter. An empty filter follows
// every relation.
func StructuralAdjacency(s Scheme, filter string) Adjacency {
	return Adjacency{scheme: s, filter: filter}
}

// Next returns the target coordinates of the matching outgoing relations in
// canonical relation order. Coordinates that are not points of the scheme
// have no neighbors.
func (a Adjacency) Next(c core.Coordinate) []core.Coordinate {
	id := core.IdentityOf(c)
	if !a.scheme.Contains(id) {
		return nil
	}
	var out []core.Coordinate
	for _, r := range a.scheme.Neighbors(id, a.filter) {
		if p, ok := a.scheme.Point(r.To); ok {
			out = append(out, p.Coordinate())
		}
	}
	return out
}
