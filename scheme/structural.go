package scheme

import (
	"fmt"
	"slices"

	"github.com/sbl8/ssccs/core"
)

// ConstraintType classifies a structural constraint.
type ConstraintType uint8

// Constraint types
const (
	Dimensional ConstraintType = iota + 1
	Topological
	Algebraic
	Logical
	Physical
)

var constraintTypeNames = [...]string{"", "dimensional", "topological", "algebraic", "logical", "physical"}

func (t ConstraintType) String() string { return nameOf(constraintTypeNames[:], uint8(t)) }

// ParseConstraintType is the inverse of ConstraintType.String.
func ParseConstraintType(s string) (ConstraintType, error) {
	if v, ok := parseName(constraintTypeNames[:], s); ok {
		return ConstraintType(v), nil
	}
	return 0, fmt.Errorf("unknown constraint type %q", s)
}

// ScopeKind selects which coordinates a structural constraint applies to.
type ScopeKind uint8

// Scope kinds
const (
	ScopeGlobal ScopeKind = iota + 1
	ScopeLocal
	ScopeRegional
	ScopeAxis
)

var scopeKindNames = [...]string{"", "global", "local", "regional", "axis"}

func (k ScopeKind) String() string { return nameOf(scopeKindNames[:], uint8(k)) }

// ParseScopeKind is the inverse of ScopeKind.String.
func ParseScopeKind(s string) (ScopeKind, error) {
	if v, ok := parseName(scopeKindNames[:], s); ok {
		return ScopeKind(v), nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

// Scope of a structural constraint. Points is used by Local and Regional,
// Axis by ScopeAxis.
type Scope struct {
	Kind   ScopeKind
	Points []core.Identity
	Axis   int
}

// Global applies everywhere
func Global() Scope { return Scope{Kind: ScopeGlobal} }

// Local applies to a single point
func Local(id core.Identity) Scope {
	return Scope{Kind: ScopeLocal, Points: []core.Identity{id}}
}

// Regional applies to the listed points
func Regional(ids ...core.Identity) Scope {
	return Scope{Kind: ScopeRegional, Points: core.SortIdentities(slices.Clone(ids))}
}

// OnAxis applies to every coordinate that has the given axis
func OnAxis(axis int) Scope { return Scope{Kind: ScopeAxis, Axis: axis} }

// Applies reports whether the scope covers c.
func (s Scope) Applies(c core.Coordinate) bool {
	switch s.Kind {
	case ScopeGlobal, 0:
		return true
	case ScopeLocal, ScopeRegional:
		return slices.Contains(s.Points, core.IdentityOf(c))
	case ScopeAxis:
		return s.Axis >= 0 && s.Axis < len(c)
	}
	return false
}

func (s Scope) writeIdentity(h *core.Hasher) {
	h.Tag(uint8(s.Kind)).Identities(s.Points).Int64(int64(s.Axis))
}

// StructuralConstraint is a constraint attached to a scheme together with
// its classification and scope.
type StructuralConstraint struct {
	Constraint core.Constraint
	Type       ConstraintType
	Scope      Scope
}

// Structural returns a globally scoped structural constraint.
func Structural(c core.Constraint, t ConstraintType) StructuralConstraint {
	return StructuralConstraint{Constraint: c, Type: t, Scope: Global()}
}

// Within returns a copy restricted to scope.
func (sc StructuralConstraint) Within(scope Scope) StructuralConstraint {
	sc.Scope = scope
	return sc
}

// Check returns a *ViolationError if the constraint applies to c and rejects it.
func (sc StructuralConstraint) Check(c core.Coordinate) error {
	if !sc.Scope.Applies(c) || sc.Constraint.Allows(c) {
		return nil
	}
	return violation(c, sc.Type, sc.Constraint.Describe())
}

// Identity returns the content hash of the constraint, type and scope.
func (sc StructuralConstraint) Identity() core.Identity {
	h := core.NewHasher()
	sc.Constraint.WriteIdentity(h)
	h.Tag(uint8(sc.Type))
	sc.Scope.writeIdentity(h)
	return h.Sum()
}

func (sc StructuralConstraint) String() string {
	return fmt.Sprintf("%s %s (%s)", sc.Type, sc.Constraint.Describe(), sc.Scope.Kind)
}
