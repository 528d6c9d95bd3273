package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		a, b      Coordinate
		wantEqual bool
	}{
		{name: "same coordinate", a: Coord(1, 2, 3), b: Coord(1, 2, 3), wantEqual: true},
		{name: "different component", a: Coord(1, 2, 3), b: Coord(1, 2, 4), wantEqual: false},
		{name: "permuted components", a: Coord(1, 2), b: Coord(2, 1), wantEqual: false},
		{name: "different arity", a: Coord(0), b: Coord(0, 0), wantEqual: false},
		{name: "negative values", a: Coord(-1), b: Coord(-1), wantEqual: true},
		{name: "empty coordinates", a: Coord(), b: Coordinate{}, wantEqual: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IdentityOf(tt.a) == IdentityOf(tt.b)
			assert.Equal(t, tt.wantEqual, got)
		})
	}
}

func TestIdentityOfIsStable(t *testing.T) {
	t.Parallel()
	c := Coord(7, -3, 1<<40)
	first := IdentityOf(c)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, IdentityOf(c))
	}
	assert.False(t, first.IsZero())
	assert.Len(t, first.String(), 2*IdentitySize)
	assert.Len(t, first.Short(), 8)
}

func TestParseIdentity(t *testing.T) {
	t.Parallel()
	id := IdentityOf(Coord(42))

	parsed, err := ParseIdentity(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseIdentity("zz")
	assert.Error(t, err)

	_, err = ParseIdentity("abcd")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestHasherIdentitiesIgnoresOrder(t *testing.T) {
	t.Parallel()
	a, b, c := IdentityOf(Coord(1)), IdentityOf(Coord(2)), IdentityOf(Coord(3))
	in := []Identity{c, a, b}

	h1 := NewHasher().Tag(1).Identities(in).Sum()
	h2 := NewHasher().Tag(1).Identities([]Identity{b, c, a}).Sum()
	assert.Equal(t, h1, h2)
	assert.Equal(t, []Identity{c, a, b}, in, "caller slice must not be reordered")

	h3 := NewHasher().Tag(2).Identities(in).Sum()
	assert.NotEqual(t, h1, h3)
}

func TestHasherStringMapIgnoresInsertionOrder(t *testing.T) {
	t.Parallel()
	m1 := map[string]string{"a": "1", "b": "2"}
	m2 := map[string]string{"b": "2", "a": "1"}
	assert.Equal(t, NewHasher().StringMap(m1).Sum(), NewHasher().StringMap(m2).Sum())
	assert.NotEqual(t, NewHasher().String("ab").String("c").Sum(), NewHasher().String("a").String("bc").Sum())
}

func TestSegment(t *testing.T) {
	t.Parallel()
	c := Coord(4, 3, 100)
	s := NewSegment(c)
	c[0] = 99

	assert.Equal(t, Coord(4, 3, 100), s.Coordinate(), "segment must own its coordinate")
	assert.Equal(t, IdentityOf(Coord(4, 3, 100)), s.ID())
	assert.Equal(t, 3, s.Dim())

	clone := s
	assert.Equal(t, s.ID(), clone.ID())

	out := s.Coordinate()
	out[1] = -1
	assert.Equal(t, Coord(4, 3, 100), s.Coordinate())
}

func TestSegmentSet(t *testing.T) {
	t.Parallel()
	set := NewSegmentSet(SegmentOf(2), SegmentOf(1))
	assert.True(t, set.Add(SegmentOf(3)))
	assert.False(t, set.Add(SegmentOf(1)))
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.ContainsCoordinate(Coord(2)))
	assert.Equal(t, []Coordinate{Coord(1), Coord(2), Coord(3)}, set.Coordinates())

	sorted := set.Sorted()
	require.Len(t, sorted, 3)
	for i := 1; i < len(sorted); i++ {
		assert.True(t, sorted[i-1].ID().Less(sorted[i].ID()))
	}
}

func TestParseCoordinate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input   string
		want    Coordinate
		wantErr bool
	}{
		{input: "[1, 2, 3]", want: Coord(1, 2, 3)},
		{input: "4,-5", want: Coord(4, -5)},
		{input: "[]", want: Coordinate{}},
		{input: "[1, x]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCoordinate(tt.input)
			if tt.wantErr {
				var perr *ParseError
				assert.ErrorAs(t, err, &perr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
