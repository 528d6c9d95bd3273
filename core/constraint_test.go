package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintAllows(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		constraint Constraint
		coord      Coordinate
		want       bool
	}{
		{name: "range inside", constraint: Range(0, 0, 10), coord: Coord(4), want: true},
		{name: "range lower bound", constraint: Range(0, 0, 10), coord: Coord(0), want: true},
		{name: "range upper bound", constraint: Range(0, 0, 10), coord: Coord(10), want: true},
		{name: "range above", constraint: Range(0, 0, 10), coord: Coord(15), want: false},
		{name: "range missing axis", constraint: Range(2, 0, 10), coord: Coord(1, 1), want: false},
		{name: "even", constraint: Even(0), coord: Coord(-4), want: true},
		{name: "even rejects odd", constraint: Even(0), coord: Coord(3), want: false},
		{name: "odd", constraint: Odd(1), coord: Coord(0, -3), want: true},
		{name: "multiple of three", constraint: MultipleOf(0, 3), coord: Coord(9), want: true},
		{name: "multiple of three rejects", constraint: MultipleOf(0, 3), coord: Coord(10), want: false},
		{name: "multiple of zero", constraint: MultipleOf(0, 0), coord: Coord(0), want: true},
		{name: "positive", constraint: Positive(0), coord: Coord(0), want: false},
		{
			name:       "custom",
			constraint: Custom("sum-small", "sum < 5", func(c Coordinate) bool { return c[0]+c[1] < 5 }),
			coord:      Coord(1, 2),
			want:       true,
		},
		{name: "custom without predicate", constraint: Custom("nil", "", nil), coord: Coord(1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.constraint.Allows(tt.coord))
		})
	}
}

func TestConstraintDescribe(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "axis[1] ∈ [0, 5]", Range(1, 0, 5).Describe())
	assert.Equal(t, "axis[0] is even", Even(0).Describe())
	assert.Equal(t, "sum < 5", Custom("sum-small", "sum < 5", nil).Describe())
	assert.Equal(t, "sum-small", Custom("sum-small", "", nil).Describe())
}

func TestConstraintIdentity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Range(0, 0, 10).Identity(), Range(0, 0, 10).Identity())
	assert.NotEqual(t, Range(0, 0, 10).Identity(), Range(1, 0, 10).Identity())
	assert.NotEqual(t, Even(0).Identity(), Odd(0).Identity())

	// custom constraints are identified by name, never by function value
	a := Custom("p", "first", func(Coordinate) bool { return true })
	b := Custom("p", "second", func(Coordinate) bool { return false })
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestConstraintSetWorkedExample(t *testing.T) {
	t.Parallel()
	set := NewConstraintSet(Range(0, 0, 10), Range(1, 0, 5), Even(0))

	tests := []struct {
		coord     Coordinate
		want      bool
		violation string
	}{
		{coord: Coord(4, 3, 100), want: true},
		{coord: Coord(15, 3, 0), want: false, violation: "axis[0] ∈ [0, 10]"},
		{coord: Coord(3, 2, 0), want: false, violation: "axis[0] is even"},
	}

	for _, tt := range tests {
		t.Run(tt.coord.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, set.Allows(tt.coord))
			c, violated := set.FirstViolation(tt.coord)
			assert.Equal(t, !tt.want, violated)
			if violated {
				assert.Equal(t, tt.violation, c.Describe())
			}
		})
	}
}

func TestConstraintSetWithIsPersistent(t *testing.T) {
	t.Parallel()
	base := NewConstraintSet(Range(0, 0, 20))
	narrowed := base.With(Even(0))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, narrowed.Len())

	// adding a constraint never widens the admitted set
	for v := int64(-5); v <= 25; v++ {
		c := Coord(v)
		if narrowed.Allows(c) {
			assert.True(t, base.Allows(c), "value %d", v)
		}
	}
	assert.Equal(t, "axis[0] ∈ [0, 20]; axis[0] is even", narrowed.Describe())
	assert.Equal(t, "no constraints", ConstraintSet{}.Describe())
	assert.True(t, ConstraintSet{}.Allows(Coord(1)))
}

func TestNamedPredicates(t *testing.T) {
	t.Parallel()
	RegisterPredicate("core-test-diagonal", func(c Coordinate) bool {
		return len(c) == 2 && c[0] == c[1]
	})

	c, err := Named("core-test-diagonal", "x == y")
	require.NoError(t, err)
	assert.True(t, c.Allows(Coord(3, 3)))
	assert.False(t, c.Allows(Coord(3, 4)))
	assert.Equal(t, KindCustom, c.Kind())

	_, err = Named("core-test-missing", "")
	assert.ErrorIs(t, err, ErrUnknownPredicate)
}

func TestParseConstraintKind(t *testing.T) {
	t.Parallel()
	for _, k := range []ConstraintKind{KindRange, KindEven, KindOdd, KindMultipleOf, KindPositive, KindCustom} {
		got, err := ParseConstraintKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseConstraintKind("nope")
	assert.Error(t, err)
}
