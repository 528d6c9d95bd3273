package blueprint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/explore"
	"github.com/sbl8/ssccs/layout"
	"github.com/sbl8/ssccs/scheme"
)

func id(v ...int64) core.Identity { return core.IdentityOf(core.Coord(v...)) }

func TestExpandPoints(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    []core.Coordinate
		wantErr bool
	}{
		{in: "[1, 2]", want: []core.Coordinate{{1, 2}}},
		{in: "4", want: []core.Coordinate{{4}}},
		{in: "[0..2, 5]", want: []core.Coordinate{{0, 5}, {1, 5}, {2, 5}}},
		{in: "0..1,0..1", want: []core.Coordinate{{0, 0}, {0, 1}, {1, 0}, {1, 1}}},
		{in: "[-1..1]", want: []core.Coordinate{{-1}, {0}, {1}}},
		{in: "[3..1]", wantErr: true},
		{in: "[x]", wantErr: true},
		{in: "[]", wantErr: true},
		{in: "[0..2000000]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ExpandPoints(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const gridYAML = `
name: small-grid
scheme:
  axes:
    - name: x
      range: [0, 2]
    - name: y
      kind: cyclic
      param: "3"
  points: ["[0..2, 0..2]"]
  relations:
    - {from: "[0, 0]", to: "[1, 1]", kind: dependency, sub: control-flow, weight: 0.5}
    - {from: "[1, 1]", to: "[2, 2]", kind: adjacency, sub: grid, topology: eight-connected}
  constraints:
    - {kind: range, axis: 0, min: 0, max: 2}
    - kind: even
      axis: 1
      scope: {kind: regional, points: ["[0, 0]", "[2, 2]"]}
  layout: {kind: row-major, extents: [3, 3]}
  policy:
    resolution: deterministic
    strategy: lowest-id
    priority: high
    triggers:
      - {kind: periodic, interval: 2s}
  metadata: {owner: tests}
field:
  constraints:
    - {kind: range, axis: 0, min: 0, max: 20}
    - {kind: even, axis: 0}
  transitions:
    - {from: "[6]", to: "[8]", weight: 1}
explore:
  seeds: ["[6]"]
  adjacency: arithmetic
  max_depth: 2
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(gridYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "small-grid", doc.Name)

	s, err := doc.BuildScheme()
	require.NoError(t, err)
	basic, ok := s.(*scheme.Basic)
	require.True(t, ok)

	want := scheme.NewBuilder().
		AddAxis(scheme.Discrete("x").WithRange(0, 2)).
		AddAxis(scheme.Cyclic("y", 3))
	for x := int64(0); x <= 2; x++ {
		for y := int64(0); y <= 2; y++ {
			want.AddCoordinate(x, y)
		}
	}
	want.AddRelation(scheme.Dependency(id(0, 0), id(1, 1), scheme.ControlFlow, 0.5)).
		AddRelation(scheme.GridAdjacent(id(1, 1), id(2, 2), scheme.EightConnected)).
		Constrain(core.Range(0, 0, 2), scheme.Dimensional).
		AddStructuralConstraint(scheme.Structural(core.Even(1), scheme.Algebraic).Within(scheme.Regional(id(0, 0), id(2, 2)))).
		SetMemoryLayout(layout.RowMajor(3, 3)).
		SetObservationPolicy(scheme.ObservationPolicy{
			Resolution: scheme.Resolution{Kind: scheme.Deterministic, Name: "lowest-id"},
			Triggers:   []scheme.Trigger{{Kind: scheme.Periodic, Interval: 2e9}},
			Priority:   scheme.High,
		})
	expected, err := want.Build()
	require.NoError(t, err)

	assert.Equal(t, expected.ID(), basic.ID())
	assert.Equal(t, 9, basic.Len())
	assert.Equal(t, map[string]string{"owner": "tests"}, basic.Metadata())

	f, err := doc.BuildField()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Transitions().Len())

	adj, err := doc.Explore.NewAdjacency(s)
	require.NoError(t, err)
	seeds, err := doc.Explore.SeedCoordinates()
	require.NoError(t, err)
	require.Len(t, seeds, 1)

	set, err := explore.GenerateTree(core.NewSegment(seeds[0]), f, adj, doc.Explore.Bound())
	require.NoError(t, err)
	assert.Equal(t, []core.Coordinate{{4}, {6}, {8}, {12}, {16}}, set.Coordinates())
}

func TestParseYAMLTemplatesAndViews(t *testing.T) {
	t.Parallel()
	line, err := scheme.IntegerLine(0, 4, 1)
	require.NoError(t, err)
	other, err := scheme.IntegerLine(3, 8, 1)
	require.NoError(t, err)
	union, err := scheme.Combine(scheme.Union, scheme.FirstWins, line, other)
	require.NoError(t, err)
	shifted, err := scheme.NewTransformed(line, scheme.Translate(10))
	require.NoError(t, err)
	grid, err := scheme.Grid2D(2, 3, scheme.Hexagonal)
	require.NoError(t, err)

	tests := []struct {
		name string
		src  string
		want core.Identity
	}{
		{
			name: "template",
			src:  "scheme:\n  template: {kind: grid, width: 2, height: 3, topology: hexagonal}\n",
			want: grid.ID(),
		},
		{
			name: "combine",
			src: `scheme:
  combine:
    method: union
    components:
      - template: {kind: line, start: 3, end: 8}
      - template: {kind: line, start: 0, end: 4}
`,
			want: union.ID(),
		},
		{
			name: "transform",
			src: `scheme:
  transform:
    kind: translation
    vector: [10]
    base:
      template: {kind: line, start: 0, end: 4}
`,
			want: shifted.ID(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Parse([]byte(tt.src), FormatYAML)
			require.NoError(t, err)
			s, err := doc.BuildScheme()
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.ID())
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, err error)
	}{
		{
			name: "bad relation kind",
			src:  "scheme:\n  points: [\"[0]\", \"[1]\"]\n  relations: [{from: \"[0]\", to: \"[1]\", kind: sideways}]\n",
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Error(), "Kind: oneof")
			},
		},
		{
			name: "bad point",
			src:  "scheme:\n  points: [\"[0..x]\"]\n",
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Error(), "points")
			},
		},
		{
			name: "custom without name",
			src:  "scheme:\n  constraints: [{kind: custom}]\n",
			check: func(t *testing.T, err error) {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
			},
		},
		{
			name: "unknown field",
			src:  "scheme:\n  pointz: []\n",
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode yaml")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.src), FormatYAML)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	mixed := &SchemeSpec{
		Template: &TemplateSpec{Kind: "line", End: 3},
		Points:   []string{"[9]"},
	}
	_, err := mixed.Build()
	assert.ErrorIs(t, err, ErrAmbiguousScheme)

	view := &SchemeSpec{Transform: &TransformSpec{Kind: "translation", Vector: []int64{1}, Base: &SchemeSpec{Points: []string{"[0]"}}}}
	_, err = view.BuildBasic()
	assert.ErrorIs(t, err, ErrNotBasic)

	unknown := &SchemeSpec{Points: []string{"[0]"}, Constraints: []ConstraintSpec{{Kind: "custom", Name: "blueprint-test-missing"}}}
	_, err = unknown.Build()
	assert.ErrorIs(t, err, core.ErrUnknownPredicate)

	badLayout := &SchemeSpec{Points: []string{"[0]"}, Layout: &LayoutSpec{Kind: "row-major"}}
	_, err = badLayout.Build()
	assert.ErrorIs(t, err, layout.ErrInvalidLayout)
}

const gridDSL = `
# 3x3 grid with right and down neighbors
axis x discrete
axis y cyclic 3
point 0..2,0..2
iterate i 0 2 {
  iterate j 0 1
  {
    relate adjacency grid four-connected [i,j] -> [i,j+1]
  }
}
iterate i 0 1 {
  relate adjacency grid four-connected i,0 -> i+1,0 w=2
}
constrain range 0 0 2 type=dimensional
constrain even 1 scope=axis:1
layout row-major 3 3 space=4
policy first-valid
meta owner dsl tests
`

func TestParseDSL(t *testing.T) {
	t.Parallel()
	spec, err := ParseDSL([]byte(gridDSL))
	require.NoError(t, err)
	assert.Len(t, spec.Relations, 8)
	assert.Equal(t, "[1,2]", spec.Relations[3].To)
	assert.Equal(t, "[2,0]", spec.Relations[7].To)

	s, err := spec.BuildBasic()
	require.NoError(t, err)

	want := scheme.NewBuilder().
		AddAxis(scheme.Discrete("x")).
		AddAxis(scheme.Cyclic("y", 3)).
		Constrain(core.Range(0, 0, 2), scheme.Dimensional).
		AddStructuralConstraint(scheme.Structural(core.Even(1), scheme.Algebraic).Within(scheme.OnAxis(1))).
		SetMemoryLayout(layout.RowMajor(3, 3).WithSpace(4)).
		SetObservationPolicy(scheme.DefaultPolicy())
	for x := int64(0); x <= 2; x++ {
		for y := int64(0); y <= 2; y++ {
			want.AddCoordinate(x, y)
			if y < 2 {
				want.AddRelation(scheme.GridAdjacent(id(x, y), id(x, y+1), scheme.FourConnected))
			}
		}
	}
	want.AddRelation(scheme.GridAdjacent(id(0, 0), id(1, 0), scheme.FourConnected).WithWeight(2)).
		AddRelation(scheme.GridAdjacent(id(1, 0), id(2, 0), scheme.FourConnected).WithWeight(2))
	expected, err := want.Build()
	require.NoError(t, err)

	assert.Equal(t, expected.ID(), s.ID())
	assert.Equal(t, "dsl tests", s.Metadata()["owner"])
}

func TestParseDSLErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "unknown directive", src: "point 1\nexplode 2\n", want: "line 2: unknown directive: explode"},
		{name: "unterminated", src: "iterate i 0 1 {\npoint i\n", want: "unterminated iterate block"},
		{name: "missing brace", src: "iterate i 0 1\npoint i\n", want: "missing '{'"},
		{name: "bad relate", src: "relate adjacency 0 1\n", want: "invalid relate spec"},
		{name: "constraint arity", src: "constrain range 0 1\n", want: "takes 3 arguments"},
		{name: "nested error line", src: "iterate i 0 1 {\n  point i\n  point [i,x..]\n}\n", want: "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseDSL([]byte(tt.src))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestExpandVariable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want string
	}{
		{line: "point i", want: "point 3"},
		{line: "point [i,i+1]", want: "point [3,4]"},
		{line: "relate dependency i-1 -> i", want: "relate dependency 2 -> 3"},
		{line: "point index", want: "point index"},
		{line: "meta i+x", want: "meta i+x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandVariable(tt.line, "i", 3), tt.line)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "grid.yaml")
	dslPath := filepath.Join(dir, "grid.ssd")
	require.NoError(t, os.WriteFile(yamlPath, []byte(gridYAML), 0o644))
	require.NoError(t, os.WriteFile(dslPath, []byte(gridDSL), 0o644))

	doc, err := Load(context.Background(), nil, yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "small-grid", doc.Name)
	assert.NotNil(t, doc.Explore)

	doc, err = Load(context.Background(), nil, dslPath)
	require.NoError(t, err)
	assert.Equal(t, "grid", doc.Name)
	assert.Nil(t, doc.Field)

	_, err = Load(context.Background(), nil, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
