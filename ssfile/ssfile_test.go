package ssfile

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
	"github.com/sbl8/ssccs/scheme"
)

func init() {
	core.RegisterPredicate("ssfile-test-diagonal", func(c core.Coordinate) bool {
		return len(c) == 2 && c[0] == c[1]
	})
}

func id(v ...int64) core.Identity { return core.IdentityOf(core.Coord(v...)) }

func richScheme(t *testing.T) *scheme.Basic {
	t.Helper()
	diag, err := core.Named("ssfile-test-diagonal", "x equals y")
	require.NoError(t, err)

	s, err := scheme.NewBuilder().
		AddAxis(scheme.Discrete("x").WithRange(0, 1)).
		AddAxis(scheme.Cyclic("y", 2)).
		AddCoordinate(0, 0).AddCoordinate(0, 1).AddCoordinate(1, 0).AddCoordinate(1, 1).
		AddRelation(scheme.GridAdjacent(id(0, 0), id(0, 1), scheme.FourConnected).WithWeight(0.5)).
		AddRelation(scheme.Dependency(id(0, 0), id(1, 1), scheme.DataFlow, 2).WithMetadata("note", "diag")).
		AddRelation(scheme.Equivalent(id(1, 0), id(0, 1), scheme.Symmetric, "mirror")).
		Constrain(core.Range(0, 0, 1), scheme.Dimensional).
		AddStructuralConstraint(scheme.Structural(core.Even(1), scheme.Algebraic).Within(scheme.Regional(id(0, 0), id(1, 0)))).
		Constrain(diag, scheme.Logical).
		SetMemoryLayout(layout.RowMajor(2, 2).WithSpace(7)).
		SetObservationPolicy(scheme.ObservationPolicy{
			Resolution: scheme.Resolution{Kind: scheme.Probabilistic, Name: "softmax", Temperature: 0.25, Params: map[string]string{"seed": "42"}},
			Triggers:   []scheme.Trigger{{Kind: scheme.Periodic, Interval: 3 * time.Second}, {Kind: scheme.ExternalEvent, Event: "tick"}},
			Priority:   scheme.High,
			Observers:  []string{"probe", "audit"},
		}).
		AddMetadata("author", "ssfile tests").
		Build()
	require.NoError(t, err)
	return s
}

// resum rewrites the trailing checksum after a test has edited data.
func resum(data []byte) []byte {
	body := len(data) - 4
	binary.LittleEndian.PutUint32(data[body:], crc32.ChecksumIEEE(data[:body]))
	return data
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	s := richScheme(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))
	data := bytes.Clone(buf.Bytes())

	got, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, s.Axes(), got.Axes())
	assert.Equal(t, s.Relations(), got.Relations())
	assert.Equal(t, s.Policy(), got.Policy())
	assert.Equal(t, s.Metadata(), got.Metadata())
	assert.True(t, s.Layout().Equal(got.Layout()))

	require.Len(t, got.Points(), 4)
	for i, p := range s.Points() {
		assert.Equal(t, p.ID(), got.Points()[i].ID())
	}
	require.Len(t, got.Constraints(), 3)
	for i, sc := range s.Constraints() {
		assert.Equal(t, sc.Identity(), got.Constraints()[i].Identity())
		assert.Equal(t, sc.String(), got.Constraints()[i].String())
	}
	assert.NoError(t, got.ValidateStructure(core.Coord(1, 1)))
	assert.Error(t, got.ValidateStructure(core.Coord(0, 1)))

	again, err := Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding is deterministic")
}

func TestRoundTripTemplates(t *testing.T) {
	t.Parallel()
	grid, err := scheme.Grid2D(3, 2, scheme.Hexagonal)
	require.NoError(t, err)
	line, err := scheme.IntegerLine(-3, 9, 3)
	require.NoError(t, err)
	graph, err := scheme.Graph(4, [][2]int64{{0, 1}, {1, 2}, {3, 0}})
	require.NoError(t, err)
	empty := scheme.NewBuilder().MustBuild()

	tests := []struct {
		name string
		s    *scheme.Basic
	}{
		{"grid", grid},
		{"line", line},
		{"graph", graph},
		{"empty", empty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := Marshal(tt.s)
			require.NoError(t, err)
			assert.Zero(t, (len(data)-headerSize-trailerSize)%sectionAlign, "sections are 8-byte aligned")

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tt.s.ID(), got.ID())
			assert.Equal(t, tt.s.Len(), got.Len())
			assert.Equal(t, tt.s.Metadata(), got.Metadata())
		})
	}
}

func TestHeaderErrors(t *testing.T) {
	t.Parallel()
	data, err := Marshal(richScheme(t))
	require.NoError(t, err)

	t.Run("magic", func(t *testing.T) {
		t.Parallel()
		bad := bytes.Clone(data)
		bad[1] = 'x'
		_, err := Unmarshal(bad)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})
	t.Run("version", func(t *testing.T) {
		t.Parallel()
		bad := bytes.Clone(data)
		bad[4] = 2
		_, err := Unmarshal(bad)
		var verr *UnsupportedVersionError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, uint8(2), verr.Version)
	})
	t.Run("short", func(t *testing.T) {
		t.Parallel()
		_, err := Unmarshal(data[:5])
		var merr *MalformedError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "header", merr.Section)
	})
}

func TestTruncation(t *testing.T) {
	t.Parallel()
	data, err := Marshal(richScheme(t))
	require.NoError(t, err)

	for n := headerSize; n < len(data); n++ {
		got, err := Unmarshal(data[:n])
		var merr *MalformedError
		require.ErrorAs(t, err, &merr, "prefix of %d bytes", n)
		assert.Nil(t, got)
	}
}

func TestCorruption(t *testing.T) {
	t.Parallel()
	data, err := Marshal(richScheme(t))
	require.NoError(t, err)

	tests := []struct {
		name    string
		edit    func([]byte) []byte
		section string
	}{
		{
			name: "checksum",
			edit: func(b []byte) []byte {
				b[headerSize+10] ^= 0xff
				return b
			},
			section: "trailer",
		},
		{
			name: "identity",
			edit: func(b []byte) []byte {
				b[len(b)-5] ^= 0x01
				return resum(b)
			},
			section: "identity",
		},
		{
			name: "section tag",
			edit: func(b []byte) []byte {
				b[headerSize] = sectionPoints
				return resum(b)
			},
			section: "axes",
		},
		{
			name: "section length",
			edit: func(b []byte) []byte {
				binary.LittleEndian.PutUint32(b[headerSize+4:], 1<<30)
				return resum(b)
			},
			section: "axes",
		},
		{
			name: "missing metadata",
			edit: func(b []byte) []byte {
				b[5] = 0
				return resum(b)
			},
			section: "trailer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Unmarshal(tt.edit(bytes.Clone(data)))
			var merr *MalformedError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.section, merr.Section)
		})
	}
}

func TestUnknownCustomPredicate(t *testing.T) {
	t.Parallel()
	unregistered := core.Custom("ssfile-test-unregistered", "", func(core.Coordinate) bool { return true })
	s := scheme.NewBuilder().
		AddCoordinate(1).
		Constrain(unregistered, scheme.Logical).
		MustBuild()

	data, err := Marshal(s)
	require.NoError(t, err)

	_, err = Unmarshal(data)
	var merr *MalformedError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "constraints", merr.Section)
	assert.ErrorIs(t, err, core.ErrUnknownPredicate)
}

func TestAlignSize(t *testing.T) {
	t.Parallel()
	tests := []struct{ size, want int }{{0, 0}, {1, 8}, {8, 8}, {9, 16}, {17, 24}}
	for _, tt := range tests {
		assert.Equal(t, tt.want, alignSize(tt.size, 8))
		assert.Len(t, padding(tt.size, 8), tt.want-tt.size)
	}
}
