package scheme

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/sbl8/ssccs/core"
)

// RelationKind is the top-level relation discriminant.
type RelationKind uint8

// Relation kinds
const (
	RelAdjacency RelationKind = iota + 1
	RelHierarchy
	RelDependency
	RelEquivalence
	RelCustom
)

// AdjacencyKind refines RelAdjacency.
type AdjacencyKind uint8

// Adjacency sub-kinds
const (
	Euclidean AdjacencyKind = iota + 1
	Manhattan
	Grid
	GraphEdge
	Spatiotemporal
	Conceptual
)

// GridTopology refines Grid adjacency.
type GridTopology uint8

// Grid topologies
const (
	FourConnected GridTopology = iota + 1
	EightConnected
	Hexagonal
	Triangular
)

// HierarchyKind refines RelHierarchy.
type HierarchyKind uint8

// Hierarchy sub-kinds
const (
	Containment HierarchyKind = iota + 1
	Inheritance
	Composition
	Specialization
)

// DependencyKind refines RelDependency.
type DependencyKind uint8

// Dependency sub-kinds
const (
	DataFlow DependencyKind = iota + 1
	ControlFlow
	Temporal
	Causal
	Resource
)

// Symmetry refines RelEquivalence.
type Symmetry uint8

// Equivalence symmetries
const (
	Symmetric Symmetry = iota + 1
	Asymmetric
	Reflexive
	Transitive
)

var (
	relationKindNames = [...]string{"", "Adjacency", "Hierarchy", "Dependency", "Equivalence", "Custom"}
	adjacencyNames    = [...]string{"", "Euclidean", "Manhattan", "Grid", "Graph", "Spatiotemporal", "Conceptual"}
	topologyNames     = [...]string{"", "FourConnected", "EightConnected", "Hexagonal", "Triangular"}
	hierarchyNames    = [...]string{"", "Containment", "Inheritance", "Composition", "Specialization"}
	dependencyNames   = [...]string{"", "DataFlow", "ControlFlow", "Temporal", "Causal", "Resource"}
	symmetryNames     = [...]string{"", "Symmetric", "Asymmetric", "Reflexive", "Transitive"}
)

func nameOf(names []string, v uint8) string {
	if int(v) < len(names) && names[v] != "" {
		return names[v]
	}
	return fmt.Sprintf("?%d", v)
}

func parseName(names []string, s string) (uint8, bool) {
	for i, n := range names {
		if n != "" && strings.EqualFold(n, s) {
			return uint8(i), true
		}
	}
	return 0, false
}

func (k RelationKind) String() string   { return nameOf(relationKindNames[:], uint8(k)) }
func (k AdjacencyKind) String() string  { return nameOf(adjacencyNames[:], uint8(k)) }
func (t GridTopology) String() string   { return nameOf(topologyNames[:], uint8(t)) }
func (k HierarchyKind) String() string  { return nameOf(hierarchyNames[:], uint8(k)) }
func (k DependencyKind) String() string { return nameOf(dependencyNames[:], uint8(k)) }
func (s Symmetry) String() string       { return nameOf(symmetryNames[:], uint8(s)) }

// ParseRelationKind parses names such as "Adjacency" (case-insensitive).
func ParseRelationKind(s string) (RelationKind, error) {
	if v, ok := parseName(relationKindNames[:], s); ok {
		return RelationKind(v), nil
	}
	return 0, fmt.Errorf("unknown relation kind %q", s)
}

// ParseAdjacencyKind parses names such as "Manhattan".
func ParseAdjacencyKind(s string) (AdjacencyKind, error) {
	if v, ok := parseName(adjacencyNames[:], s); ok {
		return AdjacencyKind(v), nil
	}
	return 0, fmt.Errorf("unknown adjacency kind %q", s)
}

// ParseGridTopology parses names such as "FourConnected".
func ParseGridTopology(s string) (GridTopology, error) {
	if v, ok := parseName(topologyNames[:], s); ok {
		return GridTopology(v), nil
	}
	return 0, fmt.Errorf("unknown grid topology %q", s)
}

// ParseHierarchyKind parses names such as "Containment".
func ParseHierarchyKind(s string) (HierarchyKind, error) {
	if v, ok := parseName(hierarchyNames[:], s); ok {
		return HierarchyKind(v), nil
	}
	return 0, fmt.Errorf("unknown hierarchy kind %q", s)
}

// ParseDependencyKind parses names such as "DataFlow".
func ParseDependencyKind(s string) (DependencyKind, error) {
	if v, ok := parseName(dependencyNames[:], s); ok {
		return DependencyKind(v), nil
	}
	return 0, fmt.Errorf("unknown dependency kind %q", s)
}

// ParseSymmetry parses names such as "Symmetric".
func ParseSymmetry(s string) (Symmetry, error) {
	if v, ok := parseName(symmetryNames[:], s); ok {
		return Symmetry(v), nil
	}
	return 0, fmt.Errorf("unknown symmetry %q", s)
}

// Relation is a typed, optionally weighted edge between two point identities.
// Only the fields matching Kind are meaningful.
type Relation struct {
	From, To core.Identity
	Kind     RelationKind

	Adjacency  AdjacencyKind
	Topology   GridTopology
	Hierarchy  HierarchyKind
	Depth      int
	Dependency DependencyKind
	Symmetry   Symmetry
	// Class names the equivalence class.
	Class string
	// Predicate names the registered predicate of a custom relation.
	Predicate string

	Weight   float64
	Weighted bool
	Metadata map[string]string
}

// Adjacent relates two points by spatial or graph adjacency.
func Adjacent(from, to core.Identity, kind AdjacencyKind) Relation {
	return Relation{From: from, To: to, Kind: RelAdjacency, Adjacency: kind}
}

// GridAdjacent relates two cells of a grid with the given topology.
func GridAdjacent(from, to core.Identity, topo GridTopology) Relation {
	return Relation{From: from, To: to, Kind: RelAdjacency, Adjacency: Grid, Topology: topo}
}

// Parent relates a parent point to a child at the given depth.
func Parent(parent, child core.Identity, kind HierarchyKind, depth int) Relation {
	return Relation{From: parent, To: child, Kind: RelHierarchy, Hierarchy: kind, Depth: depth}
}

// Dependency states that to depends on from. strength is stored as the weight.
func Dependency(from, to core.Identity, kind DependencyKind, strength float64) Relation {
	return Relation{From: from, To: to, Kind: RelDependency, Dependency: kind, Weight: strength, Weighted: true}
}

// Equivalent places two points in the same equivalence class.
func Equivalent(a, b core.Identity, sym Symmetry, class string) Relation {
	return Relation{From: a, To: b, Kind: RelEquivalence, Symmetry: sym, Class: class}
}

// CustomRelation tags an edge with the name of a registered relation predicate.
func CustomRelation(from, to core.Identity, predicate string) Relation {
	return Relation{From: from, To: to, Kind: RelCustom, Predicate: predicate}
}

// WithWeight returns a weighted copy of r.
func (r Relation) WithWeight(w float64) Relation {
	r.Weight = w
	r.Weighted = true
	return r
}

// WithMetadata returns a copy of r with key set to value.
func (r Relation) WithMetadata(key, value string) Relation {
	m := maps.Clone(r.Metadata)
	if m == nil {
		m = make(map[string]string, 1)
	}
	m[key] = value
	r.Metadata = m
	return r
}

// Between returns a copy of r re-pointed at from and to.
func (r Relation) Between(from, to core.Identity) Relation {
	r.From, r.To = from, to
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

// TypeName renders the kind path, e.g. "Adjacency(Grid(FourConnected))".
// Neighbor filters match against this string.
func (r Relation) TypeName() string {
	switch r.Kind {
	case RelAdjacency:
		if r.Adjacency == Grid {
			return fmt.Sprintf("Adjacency(Grid(%s))", r.Topology)
		}
		return fmt.Sprintf("Adjacency(%s)", r.Adjacency)
	case RelHierarchy:
		return fmt.Sprintf("Hierarchy(%s)", r.Hierarchy)
	case RelDependency:
		return fmt.Sprintf("Dependency(%s)", r.Dependency)
	case RelEquivalence:
		return fmt.Sprintf("Equivalence(%s)", r.Symmetry)
	case RelCustom:
		return fmt.Sprintf("Custom(%s)", r.Predicate)
	}
	return r.Kind.String()
}

// Matches reports whether filter is empty or a substring of TypeName.
func (r Relation) Matches(filter string) bool {
	return filter == "" || strings.Contains(r.TypeName(), filter)
}

func (r Relation) String() string {
	s := fmt.Sprintf("%s -%s-> %s", r.From.Short(), r.TypeName(), r.To.Short())
	if r.Weighted {
		s += fmt.Sprintf(" (%g)", r.Weight)
	}
	return s
}

// WriteIdentity hashes endpoints, kind path and weight. Metadata is excluded.
func (r Relation) WriteIdentity(h *core.Hasher) {
	h.Identity(r.From).Identity(r.To)
	h.Tag(uint8(r.Kind)).Tag(uint8(r.Adjacency)).Tag(uint8(r.Topology)).
		Tag(uint8(r.Hierarchy)).Int64(int64(r.Depth)).
		Tag(uint8(r.Dependency)).Tag(uint8(r.Symmetry)).
		String(r.Class).String(r.Predicate)
	if r.Weighted {
		h.Tag(1).Float64(r.Weight)
	} else {
		h.Tag(0)
	}
}

// compareRelations is the canonical order: source, target, kind path and
// weight, then the hashed encoding.
func compareRelations(a, b Relation) int {
	if c := a.From.Compare(b.From); c != 0 {
		return c
	}
	if c := a.To.Compare(b.To); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TypeName(), b.TypeName()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Depth, b.Depth); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Class, b.Class); c != 0 {
		return c
	}
	if a.Weighted != b.Weighted {
		if !a.Weighted {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
		return c
	}
	// fields the comparisons above skip (topology off the grid, signed zero)
	return relationKey(a).Compare(relationKey(b))
}

// RelationPredicate decides whether two points are related.
type RelationPredicate func(a, b core.Segment) bool

var (
	relPredicatesMu sync.RWMutex
	relPredicates   = map[string]RelationPredicate{}
)

// RegisterRelationPredicate makes a predicate available to Builder.RelateWhere.
func RegisterRelationPredicate(name string, p RelationPredicate) {
	relPredicatesMu.Lock()
	defer relPredicatesMu.Unlock()
	relPredicates[name] = p
}

// LookupRelationPredicate returns the predicate registered under name.
func LookupRelationPredicate(name string) (RelationPredicate, bool) {
	relPredicatesMu.RLock()
	defer relPredicatesMu.RUnlock()
	p, ok := relPredicates[name]
	return p, ok
}

// RelationGraph stores relations as adjacency lists keyed by source and by
// target identity. A graph owned by a built scheme is never modified.
type RelationGraph struct {
	outgoing map[core.Identity][]Relation
	incoming map[core.Identity][]Relation
	count    int
}

// NewRelationGraph returns an empty graph
func NewRelationGraph() *RelationGraph {
	return &RelationGraph{
		outgoing: make(map[core.Identity][]Relation),
		incoming: make(map[core.Identity][]Relation),
	}
}

// GraphOf indexes a relation list. Endpoints are not checked.
func GraphOf(rels []Relation) *RelationGraph {
	g := NewRelationGraph()
	for _, r := range rels {
		g.add(r.Between(r.From, r.To))
	}
	g.sort()
	return g
}

func (g *RelationGraph) add(r Relation) {
	g.outgoing[r.From] = append(g.outgoing[r.From], r)
	g.incoming[r.To] = append(g.incoming[r.To], r)
	g.count++
}

// sort puts every adjacency list in canonical order.
func (g *RelationGraph) sort() {
	for _, rs := range g.outgoing {
		slices.SortFunc(rs, compareRelations)
	}
	for _, rs := range g.incoming {
		slices.SortFunc(rs, compareRelations)
	}
}

// Len returns the number of relations
func (g *RelationGraph) Len() int {
	if g == nil {
		return 0
	}
	return g.count
}

// Outgoing returns the relations whose source is id.
func (g *RelationGraph) Outgoing(id core.Identity) []Relation {
	if g == nil {
		return nil
	}
	return slices.Clone(g.outgoing[id])
}

// Incoming returns the relations whose target is id.
func (g *RelationGraph) Incoming(id core.Identity) []Relation {
	if g == nil {
		return nil
	}
	return slices.Clone(g.incoming[id])
}

// Between returns the relations from a to b.
func (g *RelationGraph) Between(a, b core.Identity) []Relation {
	if g == nil {
		return nil
	}
	var out []Relation
	for _, r := range g.outgoing[a] {
		if r.To == b {
			out = append(out, r)
		}
	}
	return out
}

// Neighbors returns outgoing relations of id whose TypeName contains filter.
func (g *RelationGraph) Neighbors(id core.Identity, filter string) []Relation {
	if g == nil {
		return nil
	}
	var out []Relation
	for _, r := range g.outgoing[id] {
		if r.Matches(filter) {
			out = append(out, r)
		}
	}
	return out
}

// Relations returns every relation in canonical order.
func (g *RelationGraph) Relations() []Relation {
	if g == nil {
		return nil
	}
	out := make([]Relation, 0, g.count)
	for _, rs := range g.outgoing {
		out = append(out, rs...)
	}
	slices.SortFunc(out, compareRelations)
	return out
}

// WriteIdentity hashes the canonical relation list.
func (g *RelationGraph) WriteIdentity(h *core.Hasher) {
	rels := g.Relations()
	h.Uint64(uint64(len(rels)))
	for _, r := range rels {
		r.WriteIdentity(h)
	}
}

// DependencyLevels groups the endpoints of dependency relations into levels
// with Kahn's algorithm: level 0 has no prerequisites, level n depends only
// on lower levels. Every level is sorted by identity. A cycle returns
// ErrDependencyCycle.
func (g *RelationGraph) DependencyLevels() ([][]core.Identity, error) {
	if g == nil {
		return nil, nil
	}
	adj := make(map[core.Identity][]core.Identity)
	inDegree := make(map[core.Identity]int)

	for _, r := range g.Relations() {
		if r.Kind != RelDependency {
			continue
		}
		if _, ok := inDegree[r.From]; !ok {
			inDegree[r.From] = 0
		}
		adj[r.From] = append(adj[r.From], r.To)
		inDegree[r.To]++
	}

	var current []core.Identity
	for id, degree := range inDegree {
		if degree == 0 {
			current = append(current, id)
		}
	}

	var levels [][]core.Identity
	processed := 0
	for len(current) > 0 {
		core.SortIdentities(current)
		levels = append(levels, current)
		processed += len(current)

		var next []core.Identity
		for _, id := range current {
			for _, dep := range adj[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		current = next
	}

	if processed != len(inDegree) {
		return levels, fmt.Errorf("%w: %d of %d points unresolved", ErrDependencyCycle, len(inDegree)-processed, len(inDegree))
	}
	return levels, nil
}

// TopologicalOrder flattens DependencyLevels.
func (g *RelationGraph) TopologicalOrder() ([]core.Identity, error) {
	levels, err := g.DependencyLevels()
	if err != nil {
		return nil, err
	}
	var order []core.Identity
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}
