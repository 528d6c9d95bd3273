package scheme

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
)

// CombinationKind selects how component point sets are combined.
type CombinationKind uint8

// Combination methods
const (
	Union CombinationKind = iota + 1
	Intersection
	Product
	Sum
	CustomCombination
)

var combinationNames = [...]string{"", "union", "intersection", "product", "sum", "custom"}

func (k CombinationKind) String() string { return nameOf(combinationNames[:], uint8(k)) }

// ParseCombinationKind is the inverse of CombinationKind.String.
func ParseCombinationKind(s string) (CombinationKind, error) {
	if v, ok := parseName(combinationNames[:], s); ok {
		return CombinationKind(v), nil
	}
	return 0, fmt.Errorf("unknown combination %q", s)
}

// ConflictKind selects how overlapping components are resolved.
type ConflictKind uint8

// Conflict policies
const (
	FirstWins ConflictKind = iota + 1
	PriorityOrder
	Merge
	Fail
)

var conflictNames = [...]string{"", "first-wins", "priority", "merge", "fail"}

func (k ConflictKind) String() string { return nameOf(conflictNames[:], uint8(k)) }

// ParseConflictKind is the inverse of ConflictKind.String.
func ParseConflictKind(s string) (ConflictKind, error) {
	if v, ok := parseName(conflictNames[:], s); ok {
		return ConflictKind(v), nil
	}
	return 0, fmt.Errorf("unknown conflict policy %q", s)
}

// ConflictPolicy decides which component answers when several could.
// Order lists component identities, highest priority first, for PriorityOrder.
type ConflictPolicy struct {
	Kind  ConflictKind
	Order []core.Identity
}

// Alignment pairs axis names of the first component with axis names of the
// others. Paired axes must sit at the same position in every component.
// Tolerance is carried for continuous axes and takes part in identity.
type Alignment struct {
	Pairs     [][2]string
	Tolerance float64
}

// Rules configure a Composite.
type Rules struct {
	Method CombinationKind
	// Strategy names a registered Combiner when Method is CustomCombination.
	Strategy  string
	Alignment Alignment
	Conflict  ConflictPolicy
}

// Combiner computes the point set of a custom combination. Components are
// passed in identity order.
type Combiner interface {
	Combine(components []Scheme) ([]core.Segment, error)
}

// CombinerFunc adapts a function to Combiner
type CombinerFunc func(components []Scheme) ([]core.Segment, error)

// Combine calls f
func (f CombinerFunc) Combine(components []Scheme) ([]core.Segment, error) { return f(components) }

var (
	combinersMu sync.RWMutex
	combiners   = map[string]Combiner{}
)

// RegisterCombiner installs a named combination strategy.
func RegisterCombiner(name string, c Combiner) {
	combinersMu.Lock()
	defer combinersMu.Unlock()
	combiners[name] = c
}

func lookupCombiner(name string) (Combiner, bool) {
	combinersMu.RLock()
	defer combinersMu.RUnlock()
	c, ok := combiners[name]
	return c, ok
}

// Composite combines several schemes into one. Components are normalized to
// identity order, so the same components given in any order produce the same
// composite.
type Composite struct {
	id         core.Identity
	components []Scheme
	rules      Rules
	axes       []Axis
	dim        int
	arena      *pointArena
	relations  *RelationGraph
	// offsets[i] is the first coordinate position of component i (Product).
	offsets []int
}

var _ Scheme = (*Composite)(nil)

// NewComposite validates the rules and materializes the combined point set.
func NewComposite(components []Scheme, rules Rules) (*Composite, error) {
	if len(components) == 0 {
		return nil, ErrEmptyComposite
	}
	if rules.Conflict.Kind == 0 {
		rules.Conflict.Kind = FirstWins
	}
	rules.Conflict.Order = slices.Clone(rules.Conflict.Order)
	rules.Alignment.Pairs = slices.Clone(rules.Alignment.Pairs)

	comps := slices.Clone(components)
	slices.SortFunc(comps, func(a, b Scheme) int { return a.ID().Compare(b.ID()) })

	c := &Composite{components: comps, rules: rules}
	if err := c.checkShape(); err != nil {
		return nil, err
	}
	if err := c.materialize(); err != nil {
		return nil, err
	}
	c.id = c.computeIdentity()
	return c, nil
}

func (c *Composite) checkShape() error {
	first := c.components[0]
	switch c.rules.Method {
	case Union, Intersection, Sum:
		for _, s := range c.components[1:] {
			if s.Dimensionality() != first.Dimensionality() {
				return fmt.Errorf("%w: %s needs equal dimensionality, got %d and %d",
					ErrDimensionMismatch, c.rules.Method, first.Dimensionality(), s.Dimensionality())
			}
		}
	case Product:
	case CustomCombination:
		if _, ok := lookupCombiner(c.rules.Strategy); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCombiner, c.rules.Strategy)
		}
	default:
		return fmt.Errorf("unknown combination method %d", c.rules.Method)
	}

	for _, pair := range c.rules.Alignment.Pairs {
		left := axisIndex(first.Axes(), pair[0])
		if left < 0 {
			return fmt.Errorf("%w: axis %q missing in %s", ErrAlignment, pair[0], first.ID().Short())
		}
		for _, s := range c.components[1:] {
			if right := axisIndex(s.Axes(), pair[1]); right != left {
				return fmt.Errorf("%w: axis %q of %s is not at position %d", ErrAlignment, pair[1], s.ID().Short(), left)
			}
		}
	}
	return nil
}

func axisIndex(axes []Axis, name string) int {
	for i, a := range axes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (c *Composite) materialize() error {
	graph := NewRelationGraph()
	var points []core.Segment

	switch c.rules.Method {
	case Union, CustomCombination:
		if c.rules.Method == CustomCombination {
			combiner, _ := lookupCombiner(c.rules.Strategy)
			segs, err := combiner.Combine(slices.Clone(c.components))
			if err != nil {
				return fmt.Errorf("combine %q: %w", c.rules.Strategy, err)
			}
			points = segs
			c.dim = c.components[0].Dimensionality()
			if len(segs) > 0 {
				c.dim = segs[0].Dim()
			}
		} else {
			for _, s := range c.components {
				points = append(points, s.Points()...)
			}
			if c.rules.Conflict.Kind == Fail {
				if err := c.checkOverlap(); err != nil {
					return err
				}
			}
			c.dim = c.components[0].Dimensionality()
		}
		c.axes = c.components[0].Axes()
	case Intersection:
		for _, p := range c.components[0].Points() {
			if c.inAll(p.ID()) {
				points = append(points, p)
			}
		}
		c.axes = c.components[0].Axes()
		c.dim = c.components[0].Dimensionality()
	case Sum:
		points = c.sumPoints(graph)
		c.axes = append([]Axis{Categorical("component")}, c.components[0].Axes()...)
		c.dim = c.components[0].Dimensionality() + 1
	case Product:
		points = c.productPoints(graph)
		for _, s := range c.components {
			c.axes = append(c.axes, s.Axes()...)
			c.dim += s.Dimensionality()
		}
	}

	c.arena = newPointArena(points)
	if c.rules.Method != Sum && c.rules.Method != Product {
		seen := make(map[core.Identity]bool)
		for _, s := range c.components {
			for _, r := range s.Relations() {
				if !c.arena.has(r.From) || !c.arena.has(r.To) {
					continue
				}
				key := relationKey(r)
				if seen[key] {
					continue
				}
				seen[key] = true
				graph.add(r)
			}
		}
	}
	graph.sort()
	c.relations = graph
	return nil
}

func relationKey(r Relation) core.Identity {
	h := core.NewHasher()
	r.WriteIdentity(h)
	return h.Sum()
}

func (c *Composite) inAll(id core.Identity) bool {
	for _, s := range c.components {
		if !s.Contains(id) {
			return false
		}
	}
	return true
}

func (c *Composite) checkOverlap() error {
	owner := make(map[core.Identity]core.Identity)
	for _, s := range c.components {
		for _, p := range s.Points() {
			if prev, ok := owner[p.ID()]; ok && prev != s.ID() {
				return fmt.Errorf("%w: %s is in %s and %s", ErrConflict, p.Coordinate(), prev.Short(), s.ID().Short())
			}
			owner[p.ID()] = s.ID()
		}
	}
	return nil
}

// sumPoints prefixes every point with its component ordinal and carries the
// component relations over to the prefixed points.
func (c *Composite) sumPoints(graph *RelationGraph) []core.Segment {
	var points []core.Segment
	for k, s := range c.components {
		remap := make(map[core.Identity]core.Identity)
		for _, p := range s.Points() {
			q := core.NewSegment(append(core.Coord(int64(k)), p.Coordinate()...))
			remap[p.ID()] = q.ID()
			points = append(points, q)
		}
		for _, r := range s.Relations() {
			from, okF := remap[r.From]
			to, okT := remap[r.To]
			if okF && okT {
				graph.add(r.Between(from, to))
			}
		}
	}
	return points
}

// productPoints enumerates the cartesian product of the component point
// sets and lifts every component relation to the product (the Cartesian
// product graph).
func (c *Composite) productPoints(graph *RelationGraph) []core.Segment {
	c.offsets = make([]int, len(c.components))
	lists := make([][]core.Segment, len(c.components))
	off := 0
	for i, s := range c.components {
		c.offsets[i] = off
		off += s.Dimensionality()
		lists[i] = s.Points()
	}
	for _, l := range lists {
		if len(l) == 0 {
			return nil
		}
	}

	tuple := make([]core.Segment, len(lists))
	var points []core.Segment
	var walk func(i int)
	walk = func(i int) {
		if i == len(lists) {
			from := concat(tuple)
			points = append(points, from)
			for slot, s := range c.components {
				for _, r := range s.Neighbors(tuple[slot].ID(), "") {
					target, ok := s.Point(r.To)
					if !ok {
						continue
					}
					saved := tuple[slot]
					tuple[slot] = target
					graph.add(r.Between(from.ID(), concat(tuple).ID()))
					tuple[slot] = saved
				}
			}
			return
		}
		for _, p := range lists[i] {
			tuple[i] = p
			walk(i + 1)
		}
	}
	walk(0)
	return points
}

func concat(parts []core.Segment) core.Segment {
	var coord core.Coordinate
	for _, p := range parts {
		coord = append(coord, p.Coordinate()...)
	}
	return core.NewSegment(coord)
}

func (c *Composite) computeIdentity() core.Identity {
	h := core.NewHasher().Tag('C')
	h.Tag(uint8(c.rules.Method)).String(c.rules.Strategy)
	h.Tag(uint8(c.rules.Conflict.Kind)).Uint64(uint64(len(c.rules.Conflict.Order)))
	// priority order is meaningful and hashed as given
	for _, id := range c.rules.Conflict.Order {
		h.Identity(id)
	}
	pairs := make([]string, len(c.rules.Alignment.Pairs))
	for i, p := range c.rules.Alignment.Pairs {
		pairs[i] = p[0] + "\x00" + p[1]
	}
	slices.Sort(pairs)
	h.Uint64(uint64(len(pairs)))
	for _, p := range pairs {
		h.String(p)
	}
	h.Float64(c.rules.Alignment.Tolerance)
	ids := make([]core.Identity, len(c.components))
	for i, s := range c.components {
		ids[i] = s.ID()
	}
	h.Identities(ids)
	return h.Sum()
}

// ID returns the composite identity
func (c *Composite) ID() core.Identity { return c.id }

// Components returns the components in identity order.
func (c *Composite) Components() []Scheme { return slices.Clone(c.components) }

// Rules returns the composition rules.
func (c *Composite) Rules() Rules {
	r := c.rules
	r.Conflict.Order = slices.Clone(r.Conflict.Order)
	r.Alignment.Pairs = slices.Clone(r.Alignment.Pairs)
	return r
}

// Axes returns the combined axes
func (c *Composite) Axes() []Axis { return cloneAxes(c.axes) }

// Dimensionality returns the arity of the combined points. Sum adds the
// component ordinal; product adds up the component arities.
func (c *Composite) Dimensionality() int { return c.dim }

// Contains reports membership by identity
func (c *Composite) Contains(id core.Identity) bool { return c.arena.has(id) }

// Point returns the point with the given identity
func (c *Composite) Point(id core.Identity) (core.Segment, bool) { return c.arena.get(id) }

// Points returns every point in identity order
func (c *Composite) Points() []core.Segment { return c.arena.all() }

// Len returns the number of points
func (c *Composite) Len() int { return c.arena.len() }

// Relations returns the combined relations
func (c *Composite) Relations() []Relation { return c.relations.Relations() }

// Neighbors returns filtered outgoing relations of id
func (c *Composite) Neighbors(id core.Identity, filter string) []Relation {
	return c.relations.Neighbors(id, filter)
}

// ValidateStructure validates c against the components: any component for
// union and custom, all for intersection, the matching slice for product,
// the selected component for sum.
func (c *Composite) ValidateStructure(coord core.Coordinate) error {
	switch c.rules.Method {
	case Intersection:
		for _, s := range c.components {
			if err := s.ValidateStructure(coord); err != nil {
				return err
			}
		}
		return nil
	case Product:
		if len(coord) != c.Dimensionality() {
			return violation(coord, Dimensional, fmt.Sprintf("expected %d dimensions, got %d", c.Dimensionality(), len(coord)))
		}
		for i, s := range c.components {
			if err := s.ValidateStructure(c.slice(coord, i)); err != nil {
				return err
			}
		}
		return nil
	case Sum:
		s, rest, err := c.summand(coord)
		if err != nil {
			return err
		}
		return s.ValidateStructure(rest)
	}
	var first error
	for _, s := range c.components {
		err := s.ValidateStructure(coord)
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func (c *Composite) slice(coord core.Coordinate, i int) core.Coordinate {
	start := c.offsets[i]
	return coord[start : start+c.components[i].Dimensionality()].Clone()
}

func (c *Composite) summand(coord core.Coordinate) (Scheme, core.Coordinate, error) {
	if len(coord) == 0 || coord[0] < 0 || coord[0] >= int64(len(c.components)) {
		return nil, nil, violation(coord, Dimensional, fmt.Sprintf("component ordinal must be in [0, %d)", len(c.components)))
	}
	return c.components[coord[0]], coord[1:].Clone(), nil
}

// MapToLogicalAddress resolves the address through the components.
//
// Sum keeps the component address and uses the ordinal as address space.
// Product folds the component offsets like layout.Linear. Union,
// intersection and custom combinations ask the components that contain the
// point (or all components when none does) and resolve disagreement with
// the conflict policy.
func (c *Composite) MapToLogicalAddress(coord core.Coordinate) (layout.LogicalAddress, bool) {
	switch c.rules.Method {
	case Sum:
		s, rest, err := c.summand(coord)
		if err != nil {
			return layout.LogicalAddress{}, false
		}
		addr, ok := s.MapToLogicalAddress(rest)
		if !ok {
			return layout.LogicalAddress{}, false
		}
		addr.SpaceID = uint64(coord[0])
		return addr, true
	case Product:
		if len(coord) != c.Dimensionality() {
			return layout.LogicalAddress{}, false
		}
		offsets := make(core.Coordinate, len(c.components))
		var space uint64
		for i, s := range c.components {
			addr, ok := s.MapToLogicalAddress(c.slice(coord, i))
			if !ok {
				return layout.LogicalAddress{}, false
			}
			if i == 0 {
				space = addr.SpaceID
			}
			offsets[i] = int64(addr.Offset)
		}
		addr, ok := layout.Linear().WithSpace(space).Map(offsets)
		if ok {
			addr.Metadata["composite"] = c.rules.Method.String()
		}
		return addr, ok
	}
	return c.resolve(coord)
}

func (c *Composite) resolve(coord core.Coordinate) (layout.LogicalAddress, bool) {
	id := core.IdentityOf(coord)
	var candidates []Scheme
	for _, s := range c.components {
		if s.Contains(id) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		candidates = c.components
	}

	if c.rules.Conflict.Kind == PriorityOrder {
		rank := func(s Scheme) int {
			if i := slices.Index(c.rules.Conflict.Order, s.ID()); i >= 0 {
				return i
			}
			return len(c.rules.Conflict.Order)
		}
		candidates = slices.Clone(candidates)
		slices.SortStableFunc(candidates, func(a, b Scheme) int { return rank(a) - rank(b) })
	}

	var found []layout.LogicalAddress
	for _, s := range candidates {
		addr, ok := s.MapToLogicalAddress(coord)
		if !ok {
			continue
		}
		if c.rules.Conflict.Kind == FirstWins || c.rules.Conflict.Kind == PriorityOrder {
			return addr, true
		}
		found = append(found, addr)
	}
	if len(found) == 0 {
		return layout.LogicalAddress{}, false
	}
	switch c.rules.Conflict.Kind {
	case Merge:
		for _, a := range found[1:] {
			if a.SpaceID != found[0].SpaceID || a.Offset != found[0].Offset {
				return layout.LogicalAddress{}, false
			}
		}
		return found[0], true
	case Fail:
		if len(found) > 1 {
			return layout.LogicalAddress{}, false
		}
		return found[0], true
	}
	return layout.LogicalAddress{}, false
}

// Describe summarizes the composite in one line.
func (c *Composite) Describe() string {
	ids := make([]string, len(c.components))
	for i, s := range c.components {
		ids[i] = s.ID().Short()
	}
	return fmt.Sprintf("Composite %s (%s of %s, %s) with %d dimensions, %d segments, %d relations",
		c.id, c.rules.Method, strings.Join(ids, ", "), c.rules.Conflict.Kind,
		c.Dimensionality(), c.arena.len(), c.relations.Len())
}

// Combine is a convenience for NewComposite with a method and conflict policy.
func Combine(method CombinationKind, conflict ConflictKind, components ...Scheme) (*Composite, error) {
	if method == CustomCombination {
		return nil, errors.New("custom combinations need Rules.Strategy; use NewComposite")
	}
	return NewComposite(components, Rules{Method: method, Conflict: ConflictPolicy{Kind: conflict}})
}
