package scheme

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
)

func id(values ...int64) core.Identity { return core.IdentityOf(core.Coord(values...)) }

func TestBuilderIdentityIgnoresInsertionOrder(t *testing.T) {
	t.Parallel()

	a := NewBuilder().
		AddAxis(Discrete("x")).
		AddCoordinate(1).AddCoordinate(2).AddCoordinate(3).
		AddRelation(Adjacent(id(1), id(2), Manhattan)).
		AddRelation(Adjacent(id(2), id(3), Manhattan)).
		Constrain(core.Range(0, 0, 10), Algebraic).
		Constrain(core.Odd(0), Logical).
		MustBuild()

	b := NewBuilder().
		AddAxis(Discrete("x")).
		AddCoordinate(3).AddCoordinate(1).AddCoordinate(2).AddCoordinate(1).
		AddRelation(Adjacent(id(2), id(3), Manhattan)).
		AddRelation(Adjacent(id(1), id(2), Manhattan)).
		Constrain(core.Odd(0), Logical).
		Constrain(core.Range(0, 0, 10), Algebraic).
		AddMetadata("owner", "tests").
		MustBuild()

	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, "tests", b.Metadata()["owner"])
}

func TestBuilderIdentityChanges(t *testing.T) {
	t.Parallel()
	base := NewBuilder().AddAxis(Discrete("x")).AddAxis(Discrete("y")).AddCoordinate(0, 0).MustBuild()

	tests := []struct {
		name    string
		builder *Builder
	}{
		{name: "axis order", builder: NewBuilder().AddAxis(Discrete("y")).AddAxis(Discrete("x")).AddCoordinate(0, 0)},
		{name: "axis kind", builder: NewBuilder().AddAxis(Cyclic("x", 4)).AddAxis(Discrete("y")).AddCoordinate(0, 0)},
		{name: "extra point", builder: NewBuilder().AddAxis(Discrete("x")).AddAxis(Discrete("y")).AddCoordinate(0, 0).AddCoordinate(0, 1)},
		{name: "layout", builder: NewBuilder().AddAxis(Discrete("x")).AddAxis(Discrete("y")).AddCoordinate(0, 0).SetMemoryLayout(layout.ZOrder(8))},
		{name: "policy", builder: NewBuilder().AddAxis(Discrete("x")).AddAxis(Discrete("y")).AddCoordinate(0, 0).
			SetObservationPolicy(ObservationPolicy{Resolution: Resolution{Kind: Deterministic, Name: "min"}, Priority: High})},
		{name: "constraint", builder: NewBuilder().AddAxis(Discrete("x")).AddAxis(Discrete("y")).AddCoordinate(0, 0).Constrain(core.Positive(0), Algebraic)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := tt.builder.Build()
			require.NoError(t, err)
			assert.NotEqual(t, base.ID(), s.ID())
		})
	}
}

func TestBuilderErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		builder *Builder
		want    error
	}{
		{
			name:    "unknown endpoint",
			builder: NewBuilder().AddCoordinate(1).AddRelation(Adjacent(id(1), id(2), Manhattan)),
			want:    ErrUnknownPoint,
		},
		{
			name:    "arity against axes",
			builder: NewBuilder().AddAxis(Discrete("x")).AddCoordinate(1, 2),
			want:    ErrDimensionMismatch,
		},
		{
			name:    "mixed arity",
			builder: NewBuilder().AddCoordinate(1).AddCoordinate(1, 2),
			want:    ErrDimensionMismatch,
		},
		{
			name:    "layout arity",
			builder: NewBuilder().AddCoordinate(1).SetMemoryLayout(layout.RowMajor(4, 4)),
			want:    ErrDimensionMismatch,
		},
		{
			name:    "unknown relation predicate",
			builder: NewBuilder().AddCoordinate(1).RelateWhere("no-such-predicate"),
			want:    ErrUnknownRelationPredicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := tt.builder.Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, s)
		})
	}
}

func TestConnectAddsEndpoints(t *testing.T) {
	t.Parallel()
	s := NewBuilder().
		Connect(core.Coord(0, 0), core.Coord(0, 1), Parent(core.Identity{}, core.Identity{}, Containment, 1)).
		MustBuild()

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(id(0, 1)))
	rels := s.Graph().Between(id(0, 0), id(0, 1))
	require.Len(t, rels, 1)
	assert.Equal(t, "Hierarchy(Containment)", rels[0].TypeName())
}

func TestRelateWhere(t *testing.T) {
	t.Parallel()
	RegisterRelationPredicate("test-successor", func(a, b core.Segment) bool {
		x, _ := a.At(0)
		y, _ := b.At(0)
		return y == x+1
	})

	s := NewBuilder().AddCoordinate(0).AddCoordinate(1).AddCoordinate(2).RelateWhere("test-successor").MustBuild()
	assert.Len(t, s.Relations(), 2)
	next := s.Neighbors(id(0), "Custom(test-successor)")
	require.Len(t, next, 1)
	assert.Equal(t, id(1), next[0].To)
}

func TestValidateStructure(t *testing.T) {
	t.Parallel()
	s := NewBuilder().
		AddAxis(Discrete("x")).AddAxis(Discrete("y")).AddAxis(Discrete("z")).
		Constrain(core.Range(0, 0, 10), Algebraic).
		Constrain(core.Odd(1), Logical).
		AddStructuralConstraint(Structural(core.Positive(2), Physical).Within(Local(id(3, 3, 0)))).
		MustBuild()

	tests := []struct {
		name     string
		coord    core.Coordinate
		wantType ConstraintType
		wantDesc string
	}{
		{name: "valid", coord: core.Coord(4, 3, 100)},
		{name: "out of range", coord: core.Coord(15, 3, 0), wantType: Algebraic, wantDesc: "axis[0] ∈ [0, 10]"},
		{name: "even second axis", coord: core.Coord(3, 2, 0), wantType: Logical, wantDesc: "axis[1] is odd"},
		{name: "arity", coord: core.Coord(1, 1), wantType: Dimensional, wantDesc: "expected 3 dimensions, got 2"},
		{name: "local scope applies", coord: core.Coord(3, 3, 0), wantType: Physical, wantDesc: "axis[2] > 0"},
		{name: "local scope skipped", coord: core.Coord(5, 3, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := s.ValidateStructure(tt.coord)
			if tt.wantType == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ViolationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrStructuralViolation)
			assert.Equal(t, tt.wantType, verr.Type)
			assert.Equal(t, tt.wantDesc, verr.Description)
		})
	}
}

func TestDefaultLayoutAndPolicy(t *testing.T) {
	t.Parallel()
	s := NewBuilder().AddCoordinate(7).MustBuild()

	addr, ok := s.MapToLogicalAddress(core.Coord(7))
	require.True(t, ok)
	assert.Equal(t, uint64(7), addr.Offset)
	assert.Equal(t, layout.KindLinear, s.Layout().Kind())
	assert.Equal(t, FirstValid, s.Policy().Resolution.Kind)
	assert.True(t, s.Policy().Allows("anyone"))
}

func TestDependencyLevels(t *testing.T) {
	t.Parallel()
	a, b, c, d := id(0), id(1), id(2), id(3)
	s := NewBuilder().
		AddCoordinate(0).AddCoordinate(1).AddCoordinate(2).AddCoordinate(3).
		AddRelation(Dependency(a, b, DataFlow, 1)).
		AddRelation(Dependency(a, c, DataFlow, 1)).
		AddRelation(Dependency(b, d, ControlFlow, 0.5)).
		AddRelation(Dependency(c, d, ControlFlow, 0.5)).
		AddRelation(Adjacent(d, a, Manhattan)).
		MustBuild()

	levels, err := s.Graph().DependencyLevels()
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []core.Identity{a}, levels[0])
	assert.ElementsMatch(t, []core.Identity{b, c}, levels[1])
	assert.True(t, levels[1][0].Less(levels[1][1]))
	assert.Equal(t, []core.Identity{d}, levels[2])

	order, err := s.Graph().TopologicalOrder()
	require.NoError(t, err)
	assert.Len(t, order, 4)
	assert.Equal(t, a, order[0])
}

func TestDependencyCycle(t *testing.T) {
	t.Parallel()
	s := NewBuilder().
		AddCoordinate(0).AddCoordinate(1).
		AddRelation(Dependency(id(0), id(1), Causal, 1)).
		AddRelation(Dependency(id(1), id(0), Causal, 1)).
		MustBuild()

	_, err := s.Graph().DependencyLevels()
	assert.ErrorIs(t, err, ErrDependencyCycle)
}

func TestNeighborFilter(t *testing.T) {
	t.Parallel()
	s, err := Grid2D(2, 2, FourConnected)
	require.NoError(t, err)

	tests := []struct {
		filter string
		want   int
	}{
		{filter: "", want: 2},
		{filter: "Grid", want: 2},
		{filter: "FourConnected", want: 2},
		{filter: "Hierarchy", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, s.Neighbors(id(0, 0), tt.filter), tt.want)
		})
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	s, err := Grid2D(2, 2, FourConnected)
	require.NoError(t, err)
	assert.Equal(t, "Scheme "+s.ID().String()+" with 2 dimensions, 4 segments, 8 relations", s.Describe())
}

func TestArenaHandles(t *testing.T) {
	t.Parallel()
	s := NewBuilder().AddCoordinate(5).AddCoordinate(9).MustBuild()

	h, ok := s.Handle(id(9))
	require.True(t, ok)
	p, ok := s.At(h)
	require.True(t, ok)
	assert.Equal(t, core.Coord(9), p.Coordinate())

	_, ok = s.Handle(id(4))
	assert.False(t, ok)
	_, ok = s.At(InvalidHandle)
	assert.False(t, ok)
}

func TestRelationTypeNames(t *testing.T) {
	t.Parallel()
	var z core.Identity
	tests := []struct {
		rel  Relation
		want string
	}{
		{rel: GridAdjacent(z, z, Hexagonal), want: "Adjacency(Grid(Hexagonal))"},
		{rel: Adjacent(z, z, GraphEdge), want: "Adjacency(Graph)"},
		{rel: Parent(z, z, Inheritance, 2), want: "Hierarchy(Inheritance)"},
		{rel: Dependency(z, z, Temporal, 1), want: "Dependency(Temporal)"},
		{rel: Equivalent(z, z, Symmetric, "mirror"), want: "Equivalence(Symmetric)"},
		{rel: CustomRelation(z, z, "near"), want: "Custom(near)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rel.TypeName())
		})
	}
}

func TestParseNames(t *testing.T) {
	t.Parallel()
	k, err := ParseCombinationKind("Product")
	require.NoError(t, err)
	assert.Equal(t, Product, k)

	tk, err := ParseTransformKind("rotation")
	require.NoError(t, err)
	assert.Equal(t, Rotation, tk)

	_, err = ParseConflictKind("whatever")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestIdentityIgnoresOrderOfNearDuplicateRelations(t *testing.T) {
	t.Parallel()
	plain := Adjacent(id(1), id(2), Manhattan)
	hex := plain
	hex.Topology = Hexagonal
	negZero := Dependency(id(1), id(2), DataFlow, math.Copysign(0, -1))
	posZero := Dependency(id(1), id(2), DataFlow, 0)

	tests := []struct {
		name string
		a, b Relation
	}{
		{name: "topology off the grid", a: plain, b: hex},
		{name: "signed zero weight", a: negZero, b: posZero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			build := func(rs ...Relation) *Basic {
				b := NewBuilder().AddCoordinate(1).AddCoordinate(2)
				for _, r := range rs {
					b.AddRelation(r)
				}
				return b.MustBuild()
			}
			ab, ba := build(tt.a, tt.b), build(tt.b, tt.a)
			assert.Equal(t, ab.ID(), ba.ID())
			assert.Equal(t, ab.Relations(), ba.Relations())
		})
	}
}
