package scheme

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/ssccs/core"
)

func TestGrid2D(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		w, h      int64
		topo      GridTopology
		relations int
	}{
		{name: "four connected", w: 3, h: 3, topo: FourConnected, relations: 24},
		{name: "eight connected", w: 3, h: 3, topo: EightConnected, relations: 40},
		{name: "hexagonal", w: 2, h: 2, topo: Hexagonal, relations: 10},
		{name: "single cell", w: 1, h: 1, topo: FourConnected, relations: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := Grid2D(tt.w, tt.h, tt.topo)
			require.NoError(t, err)
			assert.Equal(t, int(tt.w*tt.h), g.Len())
			assert.Len(t, g.Relations(), tt.relations)
			for _, r := range g.Relations() {
				assert.Equal(t, Grid, r.Adjacency)
				assert.Equal(t, tt.topo, r.Topology)
			}
		})
	}
}

func TestGrid2DLayout(t *testing.T) {
	t.Parallel()
	g, err := Grid2D(3, 3, FourConnected)
	require.NoError(t, err)

	addr, ok := g.MapToLogicalAddress(core.Coord(1, 2))
	require.True(t, ok)
	assert.Equal(t, uint64(5), addr.Offset)

	_, ok = g.MapToLogicalAddress(core.Coord(3, 0))
	assert.False(t, ok)

	start, end, ok := g.Axes()[0].Range()
	require.True(t, ok)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(2), end)
}

func TestTriangularGrid(t *testing.T) {
	t.Parallel()
	g, err := Grid2D(2, 2, Triangular)
	require.NoError(t, err)

	// (0,0) points up and reaches (0,1); (0,1) points down and reaches (0,0)
	assert.Len(t, g.Graph().Between(id(0, 0), id(0, 1)), 1)
	assert.Len(t, g.Graph().Between(id(0, 1), id(0, 0)), 1)
	// (1,0) points down, so it has no vertical neighbor inside the grid
	assert.Empty(t, g.Graph().Between(id(1, 0), id(1, 1)))
}

func TestIntegerLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name             string
		start, end, step int64
		points           []core.Coordinate
	}{
		{name: "unit step", start: 0, end: 3, step: 1, points: []core.Coordinate{{0}, {1}, {2}, {3}}},
		{name: "end reached", start: 0, end: 10, step: 5, points: []core.Coordinate{{0}, {5}, {10}}},
		{name: "end skipped", start: 2, end: 10, step: 3, points: []core.Coordinate{{2}, {5}, {8}}},
		{name: "single", start: -4, end: -4, step: 1, points: []core.Coordinate{{-4}}},
		{name: "ends at max int", start: math.MaxInt64 - 2, end: math.MaxInt64, step: 1,
			points: []core.Coordinate{{math.MaxInt64 - 2}, {math.MaxInt64 - 1}, {math.MaxInt64}}},
		{name: "span wider than int64", start: -1, end: math.MaxInt64, step: math.MaxInt64,
			points: []core.Coordinate{{-1}, {math.MaxInt64 - 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := IntegerLine(tt.start, tt.end, tt.step)
			require.NoError(t, err)

			var got []core.Coordinate
			for _, p := range s.Points() {
				got = append(got, p.Coordinate())
			}
			assert.ElementsMatch(t, tt.points, got)
			assert.Len(t, s.Relations(), 2*(len(tt.points)-1))
		})
	}
}

func TestIntegerLineOrigin(t *testing.T) {
	t.Parallel()
	s, err := IntegerLine(100, 110, 2)
	require.NoError(t, err)
	addr, ok := s.MapToLogicalAddress(core.Coord(104))
	require.True(t, ok)
	assert.Equal(t, uint64(4), addr.Offset)
}

func TestGraphTemplate(t *testing.T) {
	t.Parallel()
	g, err := Graph(4, [][2]int64{{0, 1}, {1, 2}, {2, 0}})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())
	assert.Len(t, g.Relations(), 3)
	assert.Empty(t, g.Neighbors(id(3), ""))
	assert.Len(t, g.Neighbors(id(2), "Graph"), 1)
}

func TestTemplateErrors(t *testing.T) {
	t.Parallel()
	_, err := Grid2D(0, 3, FourConnected)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
	_, err = IntegerLine(0, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
	_, err = IntegerLine(5, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
	_, err = Graph(2, [][2]int64{{0, 2}})
	assert.ErrorIs(t, err, ErrInvalidTemplate)
	_, err = Graph(0, nil)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestStructuralAdjacency(t *testing.T) {
	t.Parallel()
	line, err := IntegerLine(0, 3, 1)
	require.NoError(t, err)

	adj := StructuralAdjacency(line, "Manhattan")
	assert.ElementsMatch(t, []core.Coordinate{{0}, {2}}, adj.Next(core.Coord(1)))
	assert.Equal(t, []core.Coordinate{{1}}, adj.Next(core.Coord(0)))
	assert.Nil(t, adj.Next(core.Coord(9)))
	assert.Nil(t, StructuralAdjacency(line, "Hierarchy").Next(core.Coord(1)))
}
