package blueprint

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
	"github.com/sbl8/ssccs/scheme"
)

// MaxExpandedPoints caps the number of coordinates one range entry may expand to.
const MaxExpandedPoints = 1 << 20

var (
	// ErrNotBasic is returned by BuildBasic for composite and transformed specs.
	ErrNotBasic = errors.New("blueprint: scheme is not a basic scheme")
	// ErrAmbiguousScheme is returned when a spec mixes a template, a
	// combination, a transform or explicit parts.
	ErrAmbiguousScheme = errors.New("blueprint: scheme spec mixes construction modes")
)

func (s *SchemeSpec) explicit() bool {
	return len(s.Axes) > 0 || len(s.Points) > 0 || len(s.Relations) > 0 || len(s.RelateWhere) > 0 ||
		len(s.Constraints) > 0 || s.Layout != nil || s.Policy != nil || len(s.Metadata) > 0
}

func (s *SchemeSpec) modes() int {
	n := 0
	for _, set := range []bool{s.Template != nil, s.Combine != nil, s.Transform != nil, s.explicit()} {
		if set {
			n++
		}
	}
	return n
}

// Build validates the description and constructs the scheme it describes.
func (s *SchemeSpec) Build() (scheme.Scheme, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s.build()
}

// BuildBasic is Build for specs that describe a basic scheme: explicit parts
// or a template.
func (s *SchemeSpec) BuildBasic() (*scheme.Basic, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	if s.Combine != nil || s.Transform != nil {
		return nil, ErrNotBasic
	}
	if s.modes() > 1 {
		return nil, ErrAmbiguousScheme
	}
	if s.Template != nil {
		return s.Template.build()
	}
	b, err := s.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func (s *SchemeSpec) build() (scheme.Scheme, error) {
	if s.modes() > 1 {
		return nil, ErrAmbiguousScheme
	}
	switch {
	case s.Template != nil:
		return s.Template.build()
	case s.Combine != nil:
		return s.Combine.build()
	case s.Transform != nil:
		return s.Transform.build()
	}
	b, err := s.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// Builder converts the explicit parts of the description into a scheme builder.
func (s *SchemeSpec) Builder() (*scheme.Builder, error) {
	b := scheme.NewBuilder()
	var errs []error

	for i, a := range s.Axes {
		axis, err := a.axis()
		if err != nil {
			errs = append(errs, fmt.Errorf("axes[%d]: %w", i, err))
			continue
		}
		b.AddAxis(axis)
	}
	for i, p := range s.Points {
		coords, err := ExpandPoints(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("points[%d]: %w", i, err))
			continue
		}
		for _, c := range coords {
			b.AddPoint(core.NewSegment(c))
		}
	}
	for i, r := range s.Relations {
		from, to, proto, err := r.relation()
		if err != nil {
			errs = append(errs, fmt.Errorf("relations[%d]: %w", i, err))
			continue
		}
		b.Connect(from, to, proto)
	}
	for _, name := range s.RelateWhere {
		b.RelateWhere(name)
	}
	for i, c := range s.Constraints {
		sc, err := c.structural()
		if err != nil {
			errs = append(errs, fmt.Errorf("constraints[%d]: %w", i, err))
			continue
		}
		b.AddStructuralConstraint(sc)
	}
	if s.Layout != nil {
		l, err := s.Layout.layout()
		if err != nil {
			errs = append(errs, fmt.Errorf("layout: %w", err))
		} else {
			b.SetMemoryLayout(l)
		}
	}
	if s.Policy != nil {
		p, err := s.Policy.policy()
		if err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		} else {
			b.SetObservationPolicy(p)
		}
	}
	for k, v := range s.Metadata {
		b.AddMetadata(k, v)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}

func (t *TemplateSpec) build() (*scheme.Basic, error) {
	switch t.Kind {
	case "grid":
		topo := scheme.FourConnected
		if t.Topology != "" {
			var err error
			if topo, err = scheme.ParseGridTopology(enumName(t.Topology)); err != nil {
				return nil, err
			}
		}
		return scheme.Grid2D(t.Width, t.Height, topo)
	case "line":
		step := t.Step
		if step == 0 {
			step = 1
		}
		return scheme.IntegerLine(t.Start, t.End, step)
	case "graph":
		return scheme.Graph(t.Nodes, t.Edges)
	}
	return nil, fmt.Errorf("unknown template %q", t.Kind)
}

func (c *CombineSpec) build() (*scheme.Composite, error) {
	method, err := scheme.ParseCombinationKind(c.Method)
	if err != nil {
		return nil, err
	}
	rules := scheme.Rules{
		Method:    method,
		Strategy:  c.Strategy,
		Alignment: scheme.Alignment{Pairs: c.Align, Tolerance: c.Tolerance},
	}
	if c.Conflict != "" {
		if rules.Conflict.Kind, err = scheme.ParseConflictKind(c.Conflict); err != nil {
			return nil, err
		}
	}
	components := make([]scheme.Scheme, 0, len(c.Components))
	for i := range c.Components {
		s, err := c.Components[i].build()
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
		components = append(components, s)
	}
	return scheme.NewComposite(components, rules)
}

func (t *TransformSpec) build() (*scheme.Transformed, error) {
	kind, err := scheme.ParseTransformKind(t.Kind)
	if err != nil {
		return nil, err
	}
	base, err := t.Base.build()
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	tr := scheme.Transform{
		Kind:   kind,
		Vector: core.Coord(t.Vector...),
		Matrix: t.Matrix,
		Axes:   t.Axes,
		Fill:   core.Coord(t.Fill...),
		Name:   t.Name,
		Params: t.Params,
	}
	return scheme.NewTransformed(base, tr)
}

func (a AxisSpec) axis() (scheme.Axis, error) {
	kind := scheme.AxisDiscrete
	if a.Kind != "" {
		var err error
		if kind, err = scheme.ParseAxisKind(a.Kind); err != nil {
			return scheme.Axis{}, err
		}
	}
	var axis scheme.Axis
	switch kind {
	case scheme.AxisCyclic:
		var period int64
		if a.Param != "" {
			p, err := strconv.ParseInt(a.Param, 10, 64)
			if err != nil {
				return scheme.Axis{}, fmt.Errorf("invalid period %q: %w", a.Param, err)
			}
			period = p
		}
		axis = scheme.Cyclic(a.Name, period)
	case scheme.AxisRelational:
		axis = scheme.Relational(a.Name, a.Param)
	case scheme.AxisWithUnit:
		axis = scheme.WithUnit(a.Name, a.Param)
	default:
		axis = scheme.Axis{Name: a.Name, Kind: kind}
	}
	for k, v := range a.Metadata {
		axis = axis.WithMetadata(k, v)
	}
	if len(a.Range) == 2 {
		axis = axis.WithRange(a.Range[0], a.Range[1])
	}
	return axis, nil
}

func (r RelationSpec) relation() (from, to core.Coordinate, proto scheme.Relation, err error) {
	if from, err = parseCoordinate(r.From); err != nil {
		return
	}
	if to, err = parseCoordinate(r.To); err != nil {
		return
	}
	switch r.Kind {
	case "adjacency":
		kind := scheme.Manhattan
		if r.Sub != "" {
			if kind, err = scheme.ParseAdjacencyKind(enumName(r.Sub)); err != nil {
				return
			}
		}
		proto = scheme.Adjacent(core.Identity{}, core.Identity{}, kind)
		if kind == scheme.Grid {
			proto.Topology = scheme.FourConnected
			if r.Topology != "" {
				if proto.Topology, err = scheme.ParseGridTopology(enumName(r.Topology)); err != nil {
					return
				}
			}
		}
	case "hierarchy":
		kind := scheme.Containment
		if r.Sub != "" {
			if kind, err = scheme.ParseHierarchyKind(enumName(r.Sub)); err != nil {
				return
			}
		}
		proto = scheme.Parent(core.Identity{}, core.Identity{}, kind, r.Depth)
	case "dependency":
		kind := scheme.DataFlow
		if r.Sub != "" {
			if kind, err = scheme.ParseDependencyKind(enumName(r.Sub)); err != nil {
				return
			}
		}
		strength := 1.0
		if r.Weight != nil {
			strength = *r.Weight
		}
		proto = scheme.Dependency(core.Identity{}, core.Identity{}, kind, strength)
	case "equivalence":
		sym := scheme.Symmetric
		if r.Sub != "" {
			if sym, err = scheme.ParseSymmetry(enumName(r.Sub)); err != nil {
				return
			}
		}
		proto = scheme.Equivalent(core.Identity{}, core.Identity{}, sym, r.Class)
	case "custom":
		if r.Sub == "" {
			err = errors.New("custom relation needs a predicate name in sub")
			return
		}
		proto = scheme.CustomRelation(core.Identity{}, core.Identity{}, r.Sub)
	default:
		err = fmt.Errorf("unknown relation kind %q", r.Kind)
		return
	}
	if r.Weight != nil {
		proto = proto.WithWeight(*r.Weight)
	}
	for k, v := range r.Metadata {
		proto = proto.WithMetadata(k, v)
	}
	return
}

// constraint converts the description into a core constraint. Custom constraints
// must name a registered predicate.
func (c ConstraintSpec) constraint() (core.Constraint, error) {
	kind, err := core.ParseConstraintKind(c.Kind)
	if err != nil {
		return core.Constraint{}, err
	}
	switch kind {
	case core.KindCustom:
		return core.Named(c.Name, c.Description)
	case core.KindMultipleOf:
		return core.FromKind(kind, c.Axis, c.N, 0)
	}
	return core.FromKind(kind, c.Axis, c.Min, c.Max)
}

// defaultType classifies a constraint whose spec leaves the type out: ranges
// are dimensional, custom predicates logical, everything else algebraic.
func defaultType(kind core.ConstraintKind) scheme.ConstraintType {
	switch kind {
	case core.KindRange:
		return scheme.Dimensional
	case core.KindCustom:
		return scheme.Logical
	}
	return scheme.Algebraic
}

func (c ConstraintSpec) structural() (scheme.StructuralConstraint, error) {
	con, err := c.constraint()
	if err != nil {
		return scheme.StructuralConstraint{}, err
	}
	typ := defaultType(con.Kind())
	if c.Type != "" {
		if typ, err = scheme.ParseConstraintType(c.Type); err != nil {
			return scheme.StructuralConstraint{}, err
		}
	}
	sc := scheme.Structural(con, typ)
	if c.Scope == nil {
		return sc, nil
	}
	scope, err := c.Scope.scope()
	if err != nil {
		return scheme.StructuralConstraint{}, err
	}
	return sc.Within(scope), nil
}

func (s ScopeSpec) scope() (scheme.Scope, error) {
	kind, err := scheme.ParseScopeKind(s.Kind)
	if err != nil {
		return scheme.Scope{}, err
	}
	ids := make([]core.Identity, 0, len(s.Points))
	for _, p := range s.Points {
		c, err := parseCoordinate(p)
		if err != nil {
			return scheme.Scope{}, err
		}
		ids = append(ids, core.IdentityOf(c))
	}
	switch kind {
	case scheme.ScopeGlobal:
		return scheme.Global(), nil
	case scheme.ScopeLocal:
		if len(ids) != 1 {
			return scheme.Scope{}, fmt.Errorf("local scope needs exactly one point, got %d", len(ids))
		}
		return scheme.Local(ids[0]), nil
	case scheme.ScopeRegional:
		return scheme.Regional(ids...), nil
	}
	return scheme.OnAxis(s.Axis), nil
}

func (l *LayoutSpec) layout() (layout.Layout, error) {
	kind, err := layout.ParseKind(l.Kind)
	if err != nil {
		return layout.Layout{}, err
	}
	return layout.New(kind, layout.Params{
		Space:   l.Space,
		Extents: l.Extents,
		Blocks:  l.Blocks,
		Origin:  core.Coordinate(l.Origin),
		Bits:    l.Bits,
		Name:    l.Name,
	})
}

// policy starts from scheme.DefaultPolicy and overrides what the description sets.
func (p *PolicySpec) policy() (scheme.ObservationPolicy, error) {
	out := scheme.DefaultPolicy()
	var err error
	if p.Resolution != "" {
		if out.Resolution.Kind, err = scheme.ParseResolutionKind(p.Resolution); err != nil {
			return out, err
		}
	}
	out.Resolution.Name = p.Strategy
	out.Resolution.Temperature = p.Temperature
	out.Resolution.Params = p.Params
	if len(p.Triggers) > 0 {
		out.Triggers = make([]scheme.Trigger, 0, len(p.Triggers))
		for _, t := range p.Triggers {
			kind, err := scheme.ParseTriggerKind(t.Kind)
			if err != nil {
				return out, err
			}
			out.Triggers = append(out.Triggers, scheme.Trigger{
				Kind:      kind,
				Interval:  t.Interval,
				Threshold: t.Threshold,
				Event:     t.Event,
			})
		}
	}
	if p.Priority != "" {
		if out.Priority, err = scheme.ParsePriority(p.Priority); err != nil {
			return out, err
		}
	}
	out.Observers = p.Observers
	out.Constraints = p.Constraints
	return out, nil
}

// enumName lets "control-flow" and "eight-connected" name the CamelCase
// relation enums.
func enumName(s string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}

func parseCoordinate(s string) (core.Coordinate, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty coordinate")
	}
	return core.ParseCoordinate(s)
}

// ExpandPoints parses a coordinate whose components may be inclusive ranges
// "lo..hi" and returns every coordinate of the Cartesian product, last
// component varying fastest.
func ExpandPoints(s string) ([]core.Coordinate, error) {
	body := strings.TrimSpace(s)
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty point %q", s)
	}

	parts := strings.Split(body, ",")
	lo := make([]int64, len(parts))
	hi := make([]int64, len(parts))
	total := int64(1)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		a, b, isRange := strings.Cut(part, "..")
		var err error
		if lo[i], err = strconv.ParseInt(strings.TrimSpace(a), 10, 64); err != nil {
			return nil, &core.ParseError{Type: "point", Value: s, Err: err}
		}
		hi[i] = lo[i]
		if isRange {
			if hi[i], err = strconv.ParseInt(strings.TrimSpace(b), 10, 64); err != nil {
				return nil, &core.ParseError{Type: "point", Value: s, Err: err}
			}
		}
		if hi[i] < lo[i] {
			return nil, fmt.Errorf("empty range %d..%d in %q", lo[i], hi[i], s)
		}
		span := hi[i] - lo[i] + 1
		if span <= 0 || span > MaxExpandedPoints || total*span > MaxExpandedPoints {
			return nil, fmt.Errorf("point %q expands to more than %d coordinates", s, MaxExpandedPoints)
		}
		total *= span
	}

	out := make([]core.Coordinate, 0, total)
	cur := core.Coordinate(slices.Clone(lo))
	for {
		out = append(out, cur.Clone())
		i := len(cur) - 1
		for ; i >= 0; i-- {
			if cur[i] < hi[i] {
				cur[i]++
				break
			}
			cur[i] = lo[i]
		}
		if i < 0 {
			return out, nil
		}
	}
}
