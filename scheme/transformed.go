package scheme

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
)

// TransformKind discriminates transforms.
type TransformKind uint8

// Transform kinds
const (
	Translation TransformKind = iota + 1
	Rotation
	Scaling
	Shearing
	Projection
	DimensionalReduction
	DimensionalExpansion
	TopologicalTransform
)

var transformNames = [...]string{"", "translation", "rotation", "scaling", "shearing", "projection", "reduction", "expansion", "topological"}

func (k TransformKind) String() string { return nameOf(transformNames[:], uint8(k)) }

// ParseTransformKind is the inverse of TransformKind.String.
func ParseTransformKind(s string) (TransformKind, error) {
	if v, ok := parseName(transformNames[:], s); ok {
		return TransformKind(v), nil
	}
	return 0, fmt.Errorf("unknown transform %q", s)
}

// Transform is an integer coordinate transform. Which fields are used
// depends on Kind:
//
//	Translation, Scaling      Vector
//	Rotation, Shearing        Matrix (square, invertible)
//	Projection                Matrix (k x n)
//	DimensionalReduction      Axes to drop
//	DimensionalExpansion      Fill values appended
//	TopologicalTransform      Name and Params of a registered Topology
type Transform struct {
	Kind   TransformKind
	Vector core.Coordinate
	Matrix [][]int64
	Axes   []int
	Fill   core.Coordinate
	Name   string
	Params map[string]string
}

// Translate returns a translation by v
func Translate(v ...int64) Transform { return Transform{Kind: Translation, Vector: core.Coord(v...)} }

// Scale returns a per-axis integer scaling
func Scale(v ...int64) Transform { return Transform{Kind: Scaling, Vector: core.Coord(v...)} }

// Rotate returns a rotation by an integer matrix
func Rotate(m [][]int64) Transform { return Transform{Kind: Rotation, Matrix: m} }

// Shear returns a shear by an integer matrix
func Shear(m [][]int64) Transform { return Transform{Kind: Shearing, Matrix: m} }

// Project returns a linear projection by a k x n matrix
func Project(m [][]int64) Transform { return Transform{Kind: Projection, Matrix: m} }

// Reduce drops the given axes
func Reduce(axes ...int) Transform { return Transform{Kind: DimensionalReduction, Axes: axes} }

// Expand appends the fill values as new axes
func Expand(fill ...int64) Transform {
	return Transform{Kind: DimensionalExpansion, Fill: core.Coord(fill...)}
}

// Topology returns a transform backed by a registered topology.
func Topology(name string, params map[string]string) Transform {
	return Transform{Kind: TopologicalTransform, Name: name, Params: params}
}

func (t Transform) clone() Transform {
	t.Vector = t.Vector.Clone()
	t.Fill = t.Fill.Clone()
	t.Axes = slices.Clone(t.Axes)
	t.Params = maps.Clone(t.Params)
	if t.Matrix != nil {
		m := make([][]int64, len(t.Matrix))
		for i, row := range t.Matrix {
			m[i] = slices.Clone(row)
		}
		t.Matrix = m
	}
	return t
}

// WriteIdentity hashes the kind and every parameter.
func (t Transform) WriteIdentity(h *core.Hasher) {
	h.Tag(uint8(t.Kind)).Coordinate(t.Vector)
	h.Uint64(uint64(len(t.Matrix)))
	for _, row := range t.Matrix {
		h.Coordinate(row)
	}
	h.Uint64(uint64(len(t.Axes)))
	for _, a := range t.Axes {
		h.Int64(int64(a))
	}
	h.Coordinate(t.Fill).String(t.Name).StringMap(t.Params)
}

func (t Transform) String() string {
	switch t.Kind {
	case Translation, Scaling:
		return fmt.Sprintf("%s%s", t.Kind, t.Vector)
	case DimensionalReduction:
		return fmt.Sprintf("%s%v", t.Kind, t.Axes)
	case DimensionalExpansion:
		return fmt.Sprintf("%s%s", t.Kind, t.Fill)
	case TopologicalTransform:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Name)
	}
	return fmt.Sprintf("%s%v", t.Kind, t.Matrix)
}

// TopologyMap maps coordinates of a topological transform. Implementations
// must be pure.
type TopologyMap interface {
	Apply(c core.Coordinate, params map[string]string) (core.Coordinate, error)
}

// TopologyFunc adapts a function to TopologyMap
type TopologyFunc func(c core.Coordinate, params map[string]string) (core.Coordinate, error)

// Apply calls f
func (f TopologyFunc) Apply(c core.Coordinate, params map[string]string) (core.Coordinate, error) {
	return f(c, params)
}

var (
	topologiesMu sync.RWMutex
	topologies   = map[string]TopologyMap{
		"wrap": TopologyFunc(wrap),
	}
)

// RegisterTopology installs a named topological transform.
func RegisterTopology(name string, t TopologyMap) {
	topologiesMu.Lock()
	defer topologiesMu.Unlock()
	topologies[name] = t
}

func lookupTopology(name string) (TopologyMap, bool) {
	topologiesMu.RLock()
	defer topologiesMu.RUnlock()
	t, ok := topologies[name]
	return t, ok
}

// wrap reduces every axis modulo its period. params["periods"] is a comma
// separated list with one period per axis; a period of 0 leaves the axis alone.
func wrap(c core.Coordinate, params map[string]string) (core.Coordinate, error) {
	fields := strings.Split(params["periods"], ",")
	if len(fields) != len(c) {
		return nil, fmt.Errorf("wrap: %d periods for %d axes", len(fields), len(c))
	}
	out := c.Clone()
	for i, f := range fields {
		p, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil || p < 0 {
			return nil, fmt.Errorf("wrap: bad period %q", f)
		}
		if p > 0 {
			out[i] = ((out[i] % p) + p) % p
		}
	}
	return out, nil
}

// Transformed is a read-only view of a base scheme through a transform.
// The view is materialized at construction; the base is never modified.
type Transformed struct {
	id        core.Identity
	base      Scheme
	transform Transform
	inverse   ratMatrix
	axes      []Axis
	dim       int
	arena     *pointArena
	relations *RelationGraph
	// preimage maps a transformed point to the base coordinate it came from.
	preimage map[core.Identity]core.Coordinate
}

var _ Scheme = (*Transformed)(nil)

// NewTransformed validates t against base and materializes the view.
func NewTransformed(base Scheme, t Transform) (*Transformed, error) {
	v := &Transformed{base: base, transform: t.clone()}
	if v.transform.Kind == DimensionalReduction {
		// dropped axes form a set
		slices.Sort(v.transform.Axes)
		v.transform.Axes = slices.Compact(v.transform.Axes)
	}
	if err := v.prepare(); err != nil {
		return nil, err
	}

	baseToView := make(map[core.Identity]core.Identity, base.Len())
	v.preimage = make(map[core.Identity]core.Coordinate, base.Len())
	var points []core.Segment
	for _, p := range base.Points() {
		out, err := v.Apply(p.Coordinate())
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", p.Coordinate(), err)
		}
		q := core.NewSegment(out)
		baseToView[p.ID()] = q.ID()
		// base points arrive in identity order, so the first preimage wins deterministically
		if _, seen := v.preimage[q.ID()]; !seen {
			v.preimage[q.ID()] = p.Coordinate()
			points = append(points, q)
		}
	}
	v.arena = newPointArena(points)

	v.relations = NewRelationGraph()
	seen := make(map[core.Identity]bool)
	for _, r := range base.Relations() {
		from, to := baseToView[r.From], baseToView[r.To]
		if from == to {
			continue
		}
		lifted := r.Between(from, to)
		key := relationKey(lifted)
		if seen[key] {
			continue
		}
		seen[key] = true
		v.relations.add(lifted)
	}
	v.relations.sort()

	h := core.NewHasher().Tag('T').Identity(base.ID())
	v.transform.WriteIdentity(h)
	v.id = h.Sum()
	return v, nil
}

func (v *Transformed) prepare() error {
	t := v.transform
	n := v.base.Dimensionality()
	v.axes = v.base.Axes()
	v.dim = n

	switch t.Kind {
	case Translation, Scaling:
		if len(t.Vector) != n {
			return fmt.Errorf("%w: %s vector has %d components, scheme has %d dimensions", ErrInvalidTransform, t.Kind, len(t.Vector), n)
		}
		if t.Kind == Scaling && slices.Contains(t.Vector, 0) {
			return fmt.Errorf("%w: zero scale factor", ErrInvalidTransform)
		}
	case Rotation, Shearing:
		inv, err := invert(t.Matrix)
		if err != nil {
			return err
		}
		if len(inv) != n {
			return fmt.Errorf("%w: %dx%d matrix for %d dimensions", ErrInvalidTransform, len(inv), len(inv), n)
		}
		v.inverse = inv
	case Projection:
		rows, cols, err := checkRectangular(t.Matrix)
		if err != nil {
			return err
		}
		if cols != n {
			return fmt.Errorf("%w: projection has %d columns, scheme has %d dimensions", ErrInvalidTransform, cols, n)
		}
		v.dim = rows
		v.axes = make([]Axis, rows)
		for i := range v.axes {
			v.axes[i] = Discrete(fmt.Sprintf("p%d", i))
		}
	case DimensionalReduction:
		drop := make(map[int]bool, len(t.Axes))
		for _, a := range t.Axes {
			if a < 0 || a >= n {
				return fmt.Errorf("%w: axis %d out of range", ErrInvalidTransform, a)
			}
			drop[a] = true
		}
		v.dim = n - len(drop)
		if len(v.axes) == n {
			var kept []Axis
			for i, a := range v.axes {
				if !drop[i] {
					kept = append(kept, a)
				}
			}
			v.axes = kept
		}
	case DimensionalExpansion:
		if len(t.Fill) == 0 {
			return fmt.Errorf("%w: expansion without fill values", ErrInvalidTransform)
		}
		v.dim = n + len(t.Fill)
		if len(v.axes) == n {
			for i := range t.Fill {
				v.axes = append(v.axes, Discrete(fmt.Sprintf("e%d", i)))
			}
		}
	case TopologicalTransform:
		if _, ok := lookupTopology(t.Name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTopology, t.Name)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidTransform, t.Kind)
	}
	return nil
}

// Apply maps a base coordinate into the view.
func (v *Transformed) Apply(c core.Coordinate) (core.Coordinate, error) {
	t := v.transform
	if len(c) != v.base.Dimensionality() {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrDimensionMismatch, v.base.Dimensionality(), len(c))
	}
	switch t.Kind {
	case Translation:
		out := c.Clone()
		for i := range out {
			out[i] += t.Vector[i]
		}
		return out, nil
	case Scaling:
		out := c.Clone()
		for i := range out {
			out[i] *= t.Vector[i]
		}
		return out, nil
	case Rotation, Shearing, Projection:
		return mulInt(t.Matrix, c), nil
	case DimensionalReduction:
		out := make(core.Coordinate, 0, v.dim)
		for i, x := range c {
			if !slices.Contains(t.Axes, i) {
				out = append(out, x)
			}
		}
		return out, nil
	case DimensionalExpansion:
		return append(c.Clone(), t.Fill...), nil
	case TopologicalTransform:
		topo, _ := lookupTopology(t.Name)
		return topo.Apply(c.Clone(), t.Params)
	}
	return nil, ErrInvalidTransform
}

// Invert maps a view coordinate back to the base analytically. It reports
// false when the transform has no unique integer inverse at c.
func (v *Transformed) Invert(c core.Coordinate) (core.Coordinate, bool) {
	t := v.transform
	if len(c) != v.dim {
		return nil, false
	}
	switch t.Kind {
	case Translation:
		out := c.Clone()
		for i := range out {
			out[i] -= t.Vector[i]
		}
		return out, true
	case Scaling:
		out := c.Clone()
		for i := range out {
			if out[i]%t.Vector[i] != 0 {
				return nil, false
			}
			out[i] /= t.Vector[i]
		}
		return out, true
	case Rotation, Shearing:
		return v.inverse.apply(c)
	case DimensionalExpansion:
		n := v.base.Dimensionality()
		if !c[n:].Equal(t.Fill) {
			return nil, false
		}
		return c[:n].Clone(), true
	}
	return nil, false
}

func (v *Transformed) preimageOf(c core.Coordinate) (core.Coordinate, bool) {
	if pre, ok := v.preimage[core.IdentityOf(c)]; ok {
		return pre.Clone(), true
	}
	return v.Invert(c)
}

// Base returns the untransformed scheme
func (v *Transformed) Base() Scheme { return v.base }

// Transform returns a copy of the transform
func (v *Transformed) Transform() Transform { return v.transform.clone() }

// ID returns the view identity
func (v *Transformed) ID() core.Identity { return v.id }

// Axes returns the axes of the view
func (v *Transformed) Axes() []Axis { return cloneAxes(v.axes) }

// Dimensionality returns the arity of transformed coordinates
func (v *Transformed) Dimensionality() int { return v.dim }

// Contains reports membership of a transformed point
func (v *Transformed) Contains(id core.Identity) bool { return v.arena.has(id) }

// Point returns a transformed point
func (v *Transformed) Point(id core.Identity) (core.Segment, bool) { return v.arena.get(id) }

// Points returns the transformed points in identity order
func (v *Transformed) Points() []core.Segment { return v.arena.all() }

// Len returns the number of distinct transformed points
func (v *Transformed) Len() int { return v.arena.len() }

// Relations returns the lifted relations
func (v *Transformed) Relations() []Relation { return v.relations.Relations() }

// Neighbors returns filtered outgoing relations of id
func (v *Transformed) Neighbors(id core.Identity, filter string) []Relation {
	return v.relations.Neighbors(id, filter)
}

// ValidateStructure maps c back to the base and validates it there.
func (v *Transformed) ValidateStructure(c core.Coordinate) error {
	if len(c) != v.dim {
		return violation(c, Dimensional, fmt.Sprintf("expected %d dimensions, got %d", v.dim, len(c)))
	}
	pre, ok := v.preimageOf(c)
	if !ok {
		return violation(c, Topological, fmt.Sprintf("no preimage under %s", v.transform.Kind))
	}
	return v.base.ValidateStructure(pre)
}

// MapToLogicalAddress addresses c by its base preimage.
func (v *Transformed) MapToLogicalAddress(c core.Coordinate) (layout.LogicalAddress, bool) {
	pre, ok := v.preimageOf(c)
	if !ok {
		return layout.LogicalAddress{}, false
	}
	return v.base.MapToLogicalAddress(pre)
}

// Describe summarizes the view in one line.
func (v *Transformed) Describe() string {
	return fmt.Sprintf("Transformed %s (%s of %s) with %d dimensions, %d segments, %d relations",
		v.id, v.transform, v.base.ID().Short(), v.dim, v.arena.len(), v.relations.Len())
}
