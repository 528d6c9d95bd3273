package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/scheme"
)

func TestTransitionMatrix(t *testing.T) {
	t.Parallel()
	m := NewTransitionMatrix()
	m.Add(core.Coord(0), core.Coord(1), 0.8)
	m.Add(core.Coord(0), core.Coord(2), 0.2)

	from := m.From(core.Coord(0))
	require.Len(t, from, 2)
	assert.Equal(t, core.Coord(1), from[0].To)
	assert.Equal(t, 0.8, from[0].Weight)
	assert.Equal(t, core.Coord(2), from[1].To)
	assert.Equal(t, 0.2, from[1].Weight)
	assert.Empty(t, m.From(core.Coord(1)))

	m.Add(core.Coord(0), core.Coord(1), 0.5)
	w, ok := m.Weight(core.Coord(0), core.Coord(1))
	require.True(t, ok)
	assert.Equal(t, 0.5, w)
	assert.Equal(t, 2, m.Len())

	_, ok = m.Weight(core.Coord(1), core.Coord(0))
	assert.False(t, ok)
	assert.Len(t, m.All(), 2)
}

func TestFieldTransitions(t *testing.T) {
	t.Parallel()
	f := New().AddTransition(core.Coord(1, 2, 3), core.Coord(2, 2, 3), 1)

	assert.Equal(t, []core.Coordinate{{2, 2, 3}}, f.TransitionTargets(core.Coord(1, 2, 3)))
	assert.Empty(t, f.TransitionTargets(core.Coord(2, 2, 3)))
}

func TestFieldConstraints(t *testing.T) {
	t.Parallel()
	f := New()
	assert.True(t, f.Allows(core.Coord(-100)))
	assert.Equal(t, "no constraints", f.DescribeConstraints())

	before := f.Constraints()
	f.AddConstraint(core.Range(0, 0, 10)).AddConstraint(core.Even(0))
	assert.Equal(t, 0, before.Len())
	assert.Equal(t, 2, f.Constraints().Len())
	assert.True(t, f.Allows(core.Coord(4)))
	assert.False(t, f.Allows(core.Coord(5)))
	assert.False(t, f.Allows(core.Coord(12)))
	assert.Equal(t, "axis[0] ∈ [0, 10]; axis[0] is even", f.DescribeConstraints())
}

func TestFieldClone(t *testing.T) {
	t.Parallel()
	f := New(core.Range(0, 0, 10)).AddTransition(core.Coord(0), core.Coord(1), 1)
	g := f.Clone()

	g.AddConstraint(core.Odd(0)).AddTransition(core.Coord(0), core.Coord(3), 1)

	assert.NotEqual(t, f.Session(), g.Session())
	assert.Equal(t, 1, f.Constraints().Len())
	assert.Equal(t, 2, g.Constraints().Len())
	assert.Equal(t, 1, f.Transitions().Len())
	assert.Equal(t, 2, g.Transitions().Len())
}

func TestObserve(t *testing.T) {
	t.Parallel()
	f := New(core.Range(0, 0, 10))

	tests := []struct {
		name  string
		coord core.Coordinate
		want  int64
		ok    bool
	}{
		{name: "allowed", coord: core.Coord(5), want: 5, ok: true},
		{name: "outside range", coord: core.Coord(15), ok: false},
		{name: "missing axis", coord: core.Coord(), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Observe(f, core.NewSegment(tt.coord), Integer(0))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectors(t *testing.T) {
	t.Parallel()
	f := New()
	p := core.SegmentOf(7, 4)

	v, ok := Integer(0).Project(f, p)
	require.True(t, ok)
	assert.Equal(t, int64(7), v)

	parity, ok := Parity(0).Project(f, p)
	require.True(t, ok)
	assert.Equal(t, "odd", parity)
	parity, ok = Parity(1).Project(f, p)
	require.True(t, ok)
	assert.Equal(t, "even", parity)

	_, ok = Parity(2).Project(f, p)
	assert.False(t, ok)

	sum := ProjectorFunc[int64](func(_ *Field, p core.Segment) (int64, bool) {
		c := p.Coordinate()
		return c[0] + c[1], true
	})
	got, ok := Observe(f, p, sum)
	require.True(t, ok)
	assert.Equal(t, int64(11), got)
}

func TestArithmeticAdjacency(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		coord core.Coordinate
		want  []core.Coordinate
	}{
		{name: "even", coord: core.Coord(6), want: []core.Coordinate{{7}, {5}, {12}, {3}}},
		{name: "odd", coord: core.Coord(5), want: []core.Coordinate{{6}, {4}, {10}}},
		{name: "zero", coord: core.Coord(0), want: []core.Coordinate{{1}, {-1}}},
		{name: "two halves to one", coord: core.Coord(2), want: []core.Coordinate{{3}, {1}, {4}}},
		{name: "missing axis", coord: core.Coord(), want: nil},
		{name: "max int", coord: core.Coord(math.MaxInt64), want: []core.Coordinate{{math.MaxInt64 - 1}}},
		{name: "min int", coord: core.Coord(math.MinInt64), want: []core.Coordinate{{math.MinInt64 + 1}, {math.MinInt64 / 2}}},
		{name: "doubling overflows", coord: core.Coord(math.MaxInt64/2 + 2), want: []core.Coordinate{{math.MaxInt64/2 + 3}, {math.MaxInt64/2 + 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Arithmetic(0).Next(tt.coord))
		})
	}
}

func TestPossibleNextCoordinates(t *testing.T) {
	t.Parallel()
	f := New(core.Range(0, 0, 20), core.Even(0)).
		AddTransition(core.Coord(6), core.Coord(12), 1).
		AddTransition(core.Coord(6), core.Coord(18), 1).
		AddTransition(core.Coord(6), core.Coord(19), 1)

	got := PossibleNextCoordinates(f, core.SegmentOf(6), Arithmetic(0))
	// 7, 5 and 3 fail the even rule, 12 is seen once, 19 is odd
	assert.Equal(t, []core.Coordinate{{12}, {18}}, got)

	got = PossibleNextCoordinates(f, core.SegmentOf(6), nil)
	assert.Equal(t, []core.Coordinate{{12}, {18}}, got)
}

func TestPossibleNextCoordinatesWithScheme(t *testing.T) {
	t.Parallel()
	line, err := scheme.IntegerLine(0, 10, 1)
	require.NoError(t, err)
	f := New(core.Odd(0))

	adj := Adjacencies(scheme.StructuralAdjacency(line, "Manhattan"), nil, AdjacencyFunc(func(c core.Coordinate) []core.Coordinate {
		return []core.Coordinate{{c[0] + 2}}
	}))
	got := PossibleNextCoordinates(f, core.SegmentOf(4), adj)
	assert.ElementsMatch(t, []core.Coordinate{{3}, {5}}, got)

	got = PossibleNextCoordinates(f, core.SegmentOf(1), adj)
	assert.ElementsMatch(t, []core.Coordinate{{3}}, got)
}

func TestCheck(t *testing.T) {
	t.Parallel()
	f := New(core.Range(0, 0, 10))
	odd := NewValueObserver("odd", "")

	assert.True(t, Check(f, core.SegmentOf(7), Parity(0), odd))
	assert.False(t, Check(f, core.SegmentOf(8), Parity(0), odd))
	// refused by the field
	assert.False(t, Check(f, core.SegmentOf(11), Parity(0), odd))

	seven := NewValueObserver(int64(7), "is seven")
	assert.True(t, Check(f, core.SegmentOf(7), Integer(0), seven))
	assert.Equal(t, "expects odd", odd.Describe())
	assert.Equal(t, "is seven", seven.Describe())
}

func TestAddConstraintNeverWidens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		start []core.Constraint
		add   core.Constraint
	}{
		{name: "range on empty field", add: core.Range(0, -5, 5)},
		{name: "even after range", start: []core.Constraint{core.Range(0, -5, 5)}, add: core.Even(0)},
		{name: "wider range", start: []core.Constraint{core.Range(0, 0, 3)}, add: core.Range(0, -20, 20)},
		{name: "other axis", start: []core.Constraint{core.Odd(0)}, add: core.Positive(1)},
		{name: "contradiction", start: []core.Constraint{core.Even(0)}, add: core.Odd(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := New(tt.start...)
			var coords []core.Coordinate
			for x := int64(-10); x <= 10; x++ {
				for y := int64(-2); y <= 2; y++ {
					coords = append(coords, core.Coord(x, y))
				}
			}
			before := map[string]bool{}
			for _, c := range coords {
				before[c.Key()] = f.Allows(c)
			}

			f.AddConstraint(tt.add)
			for _, c := range coords {
				if f.Allows(c) {
					assert.True(t, before[c.Key()], "%s became allowed", c)
				}
			}
		})
	}
}

func TestObserveIsPure(t *testing.T) {
	t.Parallel()
	f := New(core.Range(0, 0, 10), core.Even(0)).AddTransition(core.Coord(4), core.Coord(6), 1)
	points := []core.Segment{core.SegmentOf(4, 3, 100), core.SegmentOf(15, 3, 0), core.SegmentOf(3, 2, 0)}

	for _, p := range points {
		allowed := f.Allows(p.Coordinate())
		v1, ok1 := Observe(f, p, Integer(0))
		v2, ok2 := Observe(f, p, Integer(0))
		assert.Equal(t, v1, v2)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, allowed, ok1)
		assert.Equal(t, allowed, f.Allows(p.Coordinate()))
	}
	assert.Equal(t, 2, f.Constraints().Len())
	assert.Equal(t, 1, f.Transitions().Len())
}

func TestCompose(t *testing.T) {
	t.Parallel()
	evens := New(core.Even(0))
	small := New(core.Range(0, 0, 5))

	tests := []struct {
		name         string
		point        core.Segment
		both, either bool
		verdict      string
	}{
		{name: "both", point: core.SegmentOf(4), both: true, either: true, verdict: "compatible"},
		{name: "first only", point: core.SegmentOf(8), either: true, verdict: "incompatible"},
		{name: "second only", point: core.SegmentOf(3), either: true, verdict: "incompatible"},
		{name: "neither", point: core.SegmentOf(9), verdict: "incompatible"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Compose(evens, small, tt.point)
			assert.Equal(t, tt.both, c.Both())
			assert.Equal(t, tt.either, c.Either())
			assert.Equal(t, tt.verdict, c.String())
		})
	}
}
