package scheme

import (
	"fmt"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
)

// neighborOffsets returns the grid offsets of a cell under topo. Hexagonal
// grids use axial coordinates; triangular cells point up or down by the
// parity of x+y.
func neighborOffsets(topo GridTopology, x, y int64) [][2]int64 {
	switch topo {
	case EightConnected:
		return [][2]int64{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
	case Hexagonal:
		return [][2]int64{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, -1}, {-1, 1}}
	case Triangular:
		dy := int64(-1)
		if (x+y)%2 == 0 {
			dy = 1
		}
		return [][2]int64{{1, 0}, {-1, 0}, {0, dy}}
	}
	return [][2]int64{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
}

// Grid2D builds a width x height grid over axes x and y with grid adjacency
// relations for the topology and a row-major layout.
func Grid2D(width, height int64, topo GridTopology) (*Basic, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: grid extents must be positive, got %dx%d", ErrInvalidTemplate, width, height)
	}
	if topo == 0 {
		topo = FourConnected
	}
	b := NewBuilder().
		AddAxis(Discrete("x").WithRange(0, width-1)).
		AddAxis(Discrete("y").WithRange(0, height-1)).
		SetMemoryLayout(layout.RowMajor(width, height)).
		AddMetadata("template", "grid2d").
		AddMetadata("topology", topo.String())

	for y := int64(0); y < height; y++ {
		for x := int64(0); x < width; x++ {
			b.AddCoordinate(x, y)
		}
	}
	for y := int64(0); y < height; y++ {
		for x := int64(0); x < width; x++ {
			from := core.IdentityOf(core.Coord(x, y))
			for _, d := range neighborOffsets(topo, x, y) {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				b.AddRelation(GridAdjacent(from, core.IdentityOf(core.Coord(nx, ny)), topo).WithWeight(1))
			}
		}
	}
	return b.Build()
}

// IntegerLine builds the points start, start+step, ... up to end inclusive
// with Manhattan adjacency in both directions between consecutive points.
func IntegerLine(start, end, step int64) (*Basic, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive, got %d", ErrInvalidTemplate, step)
	}
	if end < start {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidTemplate, end, start)
	}
	b := NewBuilder().
		AddAxis(Discrete("n").WithRange(start, end)).
		SetMemoryLayout(layout.Linear().WithOrigin(start)).
		AddMetadata("template", "integer-line")

	prev := core.Coordinate(nil)
	for v := start; ; v += step {
		cur := core.Coord(v)
		b.AddPoint(core.NewSegment(cur))
		if prev != nil {
			b.AddRelation(Adjacent(core.IdentityOf(prev), core.IdentityOf(cur), Manhattan))
			b.AddRelation(Adjacent(core.IdentityOf(cur), core.IdentityOf(prev), Manhattan))
		}
		prev = cur
		// unsigned distance cannot overflow since v <= end
		if uint64(end)-uint64(v) < uint64(step) {
			break
		}
	}
	return b.Build()
}

// Graph builds a one-dimensional scheme with nodes 0..nodes-1 and a graph
// adjacency relation per directed edge.
func Graph(nodes int64, edges [][2]int64) (*Basic, error) {
	if nodes <= 0 {
		return nil, fmt.Errorf("%w: node count must be positive, got %d", ErrInvalidTemplate, nodes)
	}
	b := NewBuilder().
		AddAxis(Discrete("node").WithRange(0, nodes-1)).
		AddMetadata("template", "graph")
	for n := int64(0); n < nodes; n++ {
		b.AddCoordinate(n)
	}
	for _, e := range edges {
		if e[0] < 0 || e[0] >= nodes || e[1] < 0 || e[1] >= nodes {
			return nil, fmt.Errorf("%w: edge %d->%d outside [0, %d)", ErrInvalidTemplate, e[0], e[1], nodes)
		}
		b.AddRelation(Adjacent(core.IdentityOf(core.Coord(e[0])), core.IdentityOf(core.Coord(e[1])), GraphEdge))
	}
	return b.Build()
}
