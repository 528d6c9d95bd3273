// Package scheme implements content-addressed structural blueprints.
//
// A Scheme bundles axes, a set of points, a relation graph between them,
// structural constraints, a memory layout and an observation policy, and
// folds all of it into a single 256-bit identity. Schemes are immutable once
// built and may be shared between goroutines freely.
//
// Three implementations share the Scheme read contract:
//
//   - Basic: built once by a Builder
//   - Composite: N schemes combined by union, intersection, product, sum or
//     a named strategy, with a conflict-resolution policy
//   - Transformed: a base scheme viewed through a geometric or topological
//     transform; coordinates are transformed on read, the base never changes
//
// Identity rules:
//
//   - axes are hashed in declaration order (order is meaningful)
//   - point identities, relations and constraints are hashed in sorted
//     order, so insertion order never changes the identity
//   - composites hash their sorted component identities, so [A, B] and
//     [B, A] combined the same way are the same scheme
//   - transforms hash the base identity, the transform kind and every
//     parameter
//
// Strategies that would otherwise be closures (custom layouts, custom
// combinations, topological transforms, relation predicates) are selected
// by registered name so that identity stays well defined.
package scheme

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
)

// Scheme is the read contract shared by every blueprint kind.
type Scheme interface {
	// ID returns the content identity.
	ID() core.Identity
	// Axes returns a copy of the axes in declaration order.
	Axes() []Axis
	// Dimensionality is the arity of the scheme's coordinates.
	Dimensionality() int
	Contains(id core.Identity) bool
	Point(id core.Identity) (core.Segment, bool)
	// Points returns every point ordered by identity.
	Points() []core.Segment
	Len() int
	// Relations returns every relation in canonical order.
	Relations() []Relation
	// Neighbors returns the outgoing relations of id whose type name contains filter.
	Neighbors(id core.Identity, filter string) []Relation
	// ValidateStructure fails fast with a *ViolationError for the first violated constraint.
	ValidateStructure(c core.Coordinate) error
	// MapToLogicalAddress reports false when the layout is undefined for c.
	MapToLogicalAddress(c core.Coordinate) (layout.LogicalAddress, bool)
	Describe() string
}

// Basic is a scheme built directly from its parts.
type Basic struct {
	id          core.Identity
	axes        []Axis
	dim         int
	arena       *pointArena
	relations   *RelationGraph
	constraints []StructuralConstraint
	layout      layout.Layout
	policy      ObservationPolicy
	metadata    map[string]string
}

var _ Scheme = (*Basic)(nil)

// ID returns the content identity
func (s *Basic) ID() core.Identity { return s.id }

// Axes returns a copy of the axes
func (s *Basic) Axes() []Axis { return cloneAxes(s.axes) }

// Dimensionality is the number of axes, or the arity of the points when no axes were declared.
func (s *Basic) Dimensionality() int { return s.dim }

// Contains reports membership by identity
func (s *Basic) Contains(id core.Identity) bool {
	_, ok := s.arena.lookup(id)
	return ok
}

// Point returns the point with the given identity
func (s *Basic) Point(id core.Identity) (core.Segment, bool) { return s.arena.get(id) }

// Handle returns the arena handle of a point.
func (s *Basic) Handle(id core.Identity) (Handle, bool) { return s.arena.lookup(id) }

// At returns the point stored under handle h.
func (s *Basic) At(h Handle) (core.Segment, bool) { return s.arena.at(h) }

// Points returns every point ordered by identity
func (s *Basic) Points() []core.Segment { return s.arena.all() }

// Len returns the number of points
func (s *Basic) Len() int { return s.arena.len() }

// Relations returns the canonical relation list
func (s *Basic) Relations() []Relation { return s.relations.Relations() }

// Graph exposes the read-only relation graph.
func (s *Basic) Graph() *RelationGraph { return s.relations }

// Neighbors returns filtered outgoing relations of id
func (s *Basic) Neighbors(id core.Identity, filter string) []Relation {
	return s.relations.Neighbors(id, filter)
}

// Constraints returns the structural constraints in declaration order.
func (s *Basic) Constraints() []StructuralConstraint {
	out := make([]StructuralConstraint, len(s.constraints))
	for i, sc := range s.constraints {
		sc.Scope.Points = slices.Clone(sc.Scope.Points)
		out[i] = sc
	}
	return out
}

// Layout returns the memory layout
func (s *Basic) Layout() layout.Layout { return s.layout }

// Policy returns a copy of the observation policy
func (s *Basic) Policy() ObservationPolicy { return s.policy.clone() }

// Metadata returns a copy of the free-form metadata. Metadata does not take part in identity.
func (s *Basic) Metadata() map[string]string { return maps.Clone(s.metadata) }

// ValidateStructure checks arity, then every applicable constraint in declaration order.
func (s *Basic) ValidateStructure(c core.Coordinate) error {
	if s.dim > 0 && len(c) != s.dim {
		return violation(c, Dimensional, fmt.Sprintf("expected %d dimensions, got %d", s.dim, len(c)))
	}
	for _, sc := range s.constraints {
		if err := sc.Check(c); err != nil {
			return err
		}
	}
	return nil
}

// MapToLogicalAddress delegates to the memory layout.
func (s *Basic) MapToLogicalAddress(c core.Coordinate) (layout.LogicalAddress, bool) {
	return s.layout.Map(c)
}

// Describe summarizes the scheme in one line.
func (s *Basic) Describe() string {
	return fmt.Sprintf("Scheme %s with %d dimensions, %d segments, %d relations",
		s.id, s.dim, s.arena.len(), s.relations.Len())
}

func (s *Basic) String() string {
	return fmt.Sprintf("Scheme(%s)", s.id.Short())
}

func (s *Basic) computeIdentity() core.Identity {
	h := core.NewHasher().Tag('B')
	h.Uint64(uint64(len(s.axes)))
	for _, a := range s.axes {
		a.WriteIdentity(h)
	}
	h.Identities(s.arena.ids())
	s.relations.WriteIdentity(h)
	cids := make([]core.Identity, len(s.constraints))
	for i, sc := range s.constraints {
		cids[i] = sc.Identity()
	}
	h.Identities(cids)
	s.layout.WriteIdentity(h)
	s.policy.WriteIdentity(h)
	return h.Sum()
}

// Builder accumulates the parts of a Basic scheme. Methods only append;
// Build validates everything and freezes a new scheme, leaving the builder
// reusable.
type Builder struct {
	axes        []Axis
	points      []core.Segment
	relations   []Relation
	links       []link
	where       []string
	constraints []StructuralConstraint
	layout      layout.Layout
	policy      *ObservationPolicy
	metadata    map[string]string
}

// link is a relation declared by coordinates rather than identities.
type link struct {
	from, to core.Coordinate
	proto    Relation
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{metadata: make(map[string]string)}
}

// AddAxis appends an axis; axis order is part of identity.
func (b *Builder) AddAxis(a Axis) *Builder {
	b.axes = append(b.axes, a)
	return b
}

// AddPoint adds a point. Duplicates collapse at Build.
func (b *Builder) AddPoint(p core.Segment) *Builder {
	b.points = append(b.points, p)
	return b
}

// AddCoordinate adds the point at the given coordinate.
func (b *Builder) AddCoordinate(values ...int64) *Builder {
	return b.AddPoint(core.SegmentOf(values...))
}

// AddRelation adds an identity-addressed relation. Both endpoints must be points of the scheme.
func (b *Builder) AddRelation(r Relation) *Builder {
	b.relations = append(b.relations, r)
	return b
}

// Connect adds proto between the points at from and to, adding the points if needed.
func (b *Builder) Connect(from, to core.Coordinate, proto Relation) *Builder {
	b.links = append(b.links, link{from: from.Clone(), to: to.Clone(), proto: proto})
	return b
}

// RelateWhere adds a custom relation for every ordered pair of distinct
// points accepted by the registered relation predicate.
func (b *Builder) RelateWhere(predicate string) *Builder {
	b.where = append(b.where, predicate)
	return b
}

// AddStructuralConstraint appends a structural constraint.
func (b *Builder) AddStructuralConstraint(sc StructuralConstraint) *Builder {
	b.constraints = append(b.constraints, sc)
	return b
}

// Constrain appends a globally scoped constraint of type t.
func (b *Builder) Constrain(c core.Constraint, t ConstraintType) *Builder {
	return b.AddStructuralConstraint(Structural(c, t))
}

// SetMemoryLayout replaces the layout; the default is layout.Linear.
func (b *Builder) SetMemoryLayout(l layout.Layout) *Builder {
	b.layout = l
	return b
}

// SetObservationPolicy replaces the policy; the default is DefaultPolicy.
func (b *Builder) SetObservationPolicy(p ObservationPolicy) *Builder {
	cp := p.clone()
	b.policy = &cp
	return b
}

// AddMetadata records free-form metadata.
func (b *Builder) AddMetadata(key, value string) *Builder {
	b.metadata[key] = value
	return b
}

// Build validates the parts and returns the frozen scheme. It is the only
// place a scheme identity is computed.
func (b *Builder) Build() (*Basic, error) {
	points := slices.Clone(b.points)
	for _, l := range b.links {
		points = append(points, core.NewSegment(l.from), core.NewSegment(l.to))
	}
	arena := newPointArena(points)

	dim := len(b.axes)
	if dim == 0 && arena.len() > 0 {
		p, _ := arena.at(0)
		dim = p.Dim()
	}
	var errs []error
	for _, p := range arena.points {
		if p.Dim() != dim {
			errs = append(errs, fmt.Errorf("%w: point %s has %d dimensions, scheme has %d", ErrDimensionMismatch, p.Coordinate(), p.Dim(), dim))
		}
	}

	lay := b.layout
	if lay.IsZero() {
		lay = layout.Linear()
	}
	if ld := lay.Dimensionality(); ld > 0 && dim > 0 && ld != dim {
		errs = append(errs, fmt.Errorf("%w: layout %s expects %d dimensions, scheme has %d", ErrDimensionMismatch, lay, ld, dim))
	}

	graph := NewRelationGraph()
	for _, r := range b.relations {
		if _, ok := arena.lookup(r.From); !ok {
			errs = append(errs, fmt.Errorf("%w: source %s of %s", ErrUnknownPoint, r.From.Short(), r.TypeName()))
			continue
		}
		if _, ok := arena.lookup(r.To); !ok {
			errs = append(errs, fmt.Errorf("%w: target %s of %s", ErrUnknownPoint, r.To.Short(), r.TypeName()))
			continue
		}
		graph.add(r.Between(r.From, r.To))
	}
	for _, l := range b.links {
		graph.add(l.proto.Between(core.IdentityOf(l.from), core.IdentityOf(l.to)))
	}
	for _, name := range b.where {
		pred, ok := LookupRelationPredicate(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownRelationPredicate, name))
			continue
		}
		for _, p := range arena.points {
			for _, q := range arena.points {
				if p.ID() != q.ID() && pred(p, q) {
					graph.add(CustomRelation(p.ID(), q.ID(), name))
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	graph.sort()

	policy := DefaultPolicy()
	if b.policy != nil {
		policy = b.policy.clone()
	}

	s := &Basic{
		axes:        cloneAxes(b.axes),
		dim:         dim,
		arena:       arena,
		relations:   graph,
		constraints: slices.Clone(b.constraints),
		layout:      lay,
		policy:      policy,
		metadata:    maps.Clone(b.metadata),
	}
	s.id = s.computeIdentity()
	return s, nil
}

// MustBuild is Build for statically known schemes; it panics on error.
func (b *Builder) MustBuild() *Basic {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
