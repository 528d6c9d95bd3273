package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/ssccs/core"
)

func TestMap(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		layout Layout
		coord  core.Coordinate
		want   uint64
		wantOK bool
	}{
		{name: "linear 1d", layout: Linear(), coord: core.Coord(7), want: 7, wantOK: true},
		{name: "linear 2d fold", layout: Linear(), coord: core.Coord(2, 3), want: 2*LinearStride + 3, wantOK: true},
		{name: "linear empty", layout: Linear(), coord: core.Coord(), wantOK: false},
		{name: "row major", layout: RowMajor(3, 4), coord: core.Coord(2, 1), want: 9, wantOK: true},
		{name: "row major out of box", layout: RowMajor(3, 4), coord: core.Coord(3, 0), wantOK: false},
		{name: "row major wrong arity", layout: RowMajor(3, 4), coord: core.Coord(1), wantOK: false},
		{name: "column major", layout: ColumnMajor(3, 4), coord: core.Coord(2, 1), want: 5, wantOK: true},
		{name: "row major 3d", layout: RowMajor(2, 3, 4), coord: core.Coord(1, 2, 3), want: 23, wantOK: true},
		{name: "z-order", layout: ZOrder(4), coord: core.Coord(3, 5), want: 0b100111, wantOK: true},
		{name: "z-order negative", layout: ZOrder(4), coord: core.Coord(-1, 0), wantOK: false},
		{name: "z-order overflow bits", layout: ZOrder(4), coord: core.Coord(16, 0), wantOK: false},
		{name: "gray", layout: Gray(4), coord: core.Coord(1, 1), want: 2, wantOK: true},
		{name: "hilbert origin", layout: Hilbert(2), coord: core.Coord(0, 0), want: 0, wantOK: true},
		{name: "hilbert corner", layout: Hilbert(2), coord: core.Coord(3, 0), want: 15, wantOK: true},
		{name: "hilbert center", layout: Hilbert(2), coord: core.Coord(2, 2), want: 8, wantOK: true},
		{name: "hilbert 3d", layout: Hilbert(2), coord: core.Coord(0, 0, 0), wantOK: false},
		{name: "hierarchical", layout: Hierarchical([]int64{2, 2}, []int64{4, 4}), coord: core.Coord(1, 2), want: 6, wantOK: true},
		{name: "origin shift", layout: RowMajor(3, 3).WithOrigin(10, 10), coord: core.Coord(11, 12), want: 5, wantOK: true},
		{name: "origin arity", layout: RowMajor(3, 3).WithOrigin(10, 10), coord: core.Coord(11), wantOK: false},
		{name: "custom unknown", layout: Custom("layout-test-missing"), coord: core.Coord(1), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			addr, ok := tt.layout.Map(tt.coord)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, addr.Offset)
				assert.Equal(t, tt.layout.Kind().String(), addr.Metadata["layout"])
			}
		})
	}
}

func TestHilbertVisitsEveryCellOnce(t *testing.T) {
	t.Parallel()
	l := Hilbert(3)
	seen := make(map[uint64]core.Coordinate)
	for x := int64(0); x < 8; x++ {
		for y := int64(0); y < 8; y++ {
			addr, ok := l.Map(core.Coord(x, y))
			require.True(t, ok)
			_, dup := seen[addr.Offset]
			require.False(t, dup, "offset %d assigned twice", addr.Offset)
			seen[addr.Offset] = core.Coord(x, y)
		}
	}
	// consecutive curve positions are grid neighbours
	for d := uint64(1); d < 64; d++ {
		a, b := seen[d-1], seen[d]
		dist := abs(a[0]-b[0]) + abs(a[1]-b[1])
		assert.Equal(t, int64(1), dist, "step %d", d)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestCustomStrategy(t *testing.T) {
	t.Parallel()
	Register("layout-test-sum", StrategyFunc(func(c core.Coordinate) (uint64, bool) {
		var s int64
		for _, v := range c {
			s += v
		}
		return uint64(s), s >= 0
	}))

	l := Custom("layout-test-sum").WithSpace(3)
	addr, ok := l.Map(core.Coord(1, 2, 3))
	require.True(t, ok)
	assert.Equal(t, uint64(6), addr.Offset)
	assert.Equal(t, uint64(3), addr.SpaceID)
	assert.Equal(t, "layout-test-sum", addr.Metadata["strategy"])

	_, ok = l.Map(core.Coord(-5))
	assert.False(t, ok)
}

func TestIdentity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RowMajor(4, 4).Identity(), RowMajor(4, 4).Identity())
	assert.NotEqual(t, RowMajor(4, 4).Identity(), ColumnMajor(4, 4).Identity())
	assert.NotEqual(t, RowMajor(4, 4).Identity(), RowMajor(4, 4).WithSpace(1).Identity())
	assert.True(t, Custom("a").Equal(Custom("a")))
	assert.False(t, Custom("a").Equal(Custom("b")))
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		kind    Kind
		params  Params
		wantErr bool
	}{
		{name: "row major", kind: KindRowMajor, params: Params{Extents: []int64{2, 2}}},
		{name: "row major no extents", kind: KindRowMajor, wantErr: true},
		{name: "row major zero extent", kind: KindRowMajor, params: Params{Extents: []int64{2, 0}}, wantErr: true},
		{name: "z-order zero bits", kind: KindZOrder, wantErr: true},
		{name: "hilbert too large", kind: KindHilbert, params: Params{Bits: 40}, wantErr: true},
		{name: "hierarchical mismatch", kind: KindHierarchical, params: Params{Extents: []int64{4}, Blocks: []int64{2, 2}}, wantErr: true},
		{name: "custom no name", kind: KindCustom, wantErr: true},
		{name: "origin arity", kind: KindRowMajor, params: Params{Extents: []int64{2, 2}, Origin: core.Coord(1)}, wantErr: true},
		{name: "unknown kind", kind: Kind(99), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.kind, tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLayout)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for k := KindLinear; k <= KindCustom; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("spiral")
	assert.ErrorIs(t, err, ErrInvalidLayout)
}
