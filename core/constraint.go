package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ConstraintKind discriminates the built-in constraint variants.
type ConstraintKind uint8

// Constraint kinds
const (
	KindRange ConstraintKind = iota + 1
	KindEven
	KindOdd
	KindMultipleOf
	KindPositive
	KindCustom
)

var constraintKindNames = map[ConstraintKind]string{
	KindRange:      "range",
	KindEven:       "even",
	KindOdd:        "odd",
	KindMultipleOf: "multiple-of",
	KindPositive:   "positive",
	KindCustom:     "custom",
}

func (k ConstraintKind) String() string {
	if name, ok := constraintKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ConstraintKind(%d)", k)
}

// ParseConstraintKind is the inverse of ConstraintKind.String.
func ParseConstraintKind(s string) (ConstraintKind, error) {
	for k, name := range constraintKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, &ParseError{Type: "constraint kind", Value: s}
}

// Predicate decides whether a coordinate is admissible.
type Predicate func(Coordinate) bool

// Constraint is a hashable predicate over a coordinate. The zero value is
// not usable; build constraints with Range, Even, Odd, MultipleOf, Positive
// or Custom.
type Constraint struct {
	kind ConstraintKind
	axis int
	a, b int64
	name string
	desc string
	pred Predicate
}

// Range admits coordinates whose component on axis lies in [min, max].
func Range(axis int, min, max int64) Constraint {
	return Constraint{kind: KindRange, axis: axis, a: min, b: max}
}

// Even admits coordinates whose component on axis is even.
func Even(axis int) Constraint {
	return Constraint{kind: KindEven, axis: axis}
}

// Odd admits coordinates whose component on axis is odd.
func Odd(axis int) Constraint {
	return Constraint{kind: KindOdd, axis: axis}
}

// MultipleOf admits coordinates whose component on axis is divisible by n.
// n == 0 admits only zero.
func MultipleOf(axis int, n int64) Constraint {
	return Constraint{kind: KindMultipleOf, axis: axis, a: n}
}

// Positive admits coordinates whose component on axis is > 0.
func Positive(axis int) Constraint {
	return Constraint{kind: KindPositive, axis: axis}
}

// Custom wraps a caller predicate under a stable name. Identity hashing
// uses the name only, so two custom constraints with the same name are the
// same constraint.
func Custom(name, description string, pred Predicate) Constraint {
	return Constraint{kind: KindCustom, axis: -1, name: name, desc: description, pred: pred}
}

// Named resolves a registered predicate into a Custom constraint.
func Named(name, description string) (Constraint, error) {
	pred, ok := LookupPredicate(name)
	if !ok {
		return Constraint{}, fmt.Errorf("%w: %q", ErrUnknownPredicate, name)
	}
	return Custom(name, description, pred), nil
}

// FromKind builds a built-in constraint from its parts: (min, max) for
// Range, (n, _) for MultipleOf. Custom constraints go through Named.
func FromKind(kind ConstraintKind, axis int, a, b int64) (Constraint, error) {
	switch kind {
	case KindRange:
		return Range(axis, a, b), nil
	case KindEven:
		return Even(axis), nil
	case KindOdd:
		return Odd(axis), nil
	case KindMultipleOf:
		return MultipleOf(axis, a), nil
	case KindPositive:
		return Positive(axis), nil
	}
	return Constraint{}, &ParseError{Type: "constraint kind", Value: kind.String()}
}

// Kind returns the variant
func (c Constraint) Kind() ConstraintKind { return c.kind }

// Axis returns the constrained axis, or -1 for custom constraints.
func (c Constraint) Axis() int { return c.axis }

// Bounds returns the numeric parameters: (min, max) for Range, (n, 0) for MultipleOf.
func (c Constraint) Bounds() (int64, int64) { return c.a, c.b }

// Name returns the registered name of a custom constraint.
func (c Constraint) Name() string { return c.name }

// Allows evaluates the predicate. A coordinate without the referenced axis is rejected.
func (c Constraint) Allows(coord Coordinate) bool {
	if c.kind == KindCustom {
		return c.pred != nil && c.pred(coord)
	}
	v, ok := coord.At(c.axis)
	if !ok {
		return false
	}
	switch c.kind {
	case KindRange:
		return v >= c.a && v <= c.b
	case KindEven:
		return v%2 == 0
	case KindOdd:
		return v%2 != 0
	case KindMultipleOf:
		if c.a == 0 {
			return v == 0
		}
		return v%c.a == 0
	case KindPositive:
		return v > 0
	}
	return false
}

// Describe returns a human-readable description
func (c Constraint) Describe() string {
	switch c.kind {
	case KindRange:
		return fmt.Sprintf("axis[%d] ∈ [%d, %d]", c.axis, c.a, c.b)
	case KindEven:
		return fmt.Sprintf("axis[%d] is even", c.axis)
	case KindOdd:
		return fmt.Sprintf("axis[%d] is odd", c.axis)
	case KindMultipleOf:
		return fmt.Sprintf("axis[%d] is a multiple of %d", c.axis, c.a)
	case KindPositive:
		return fmt.Sprintf("axis[%d] > 0", c.axis)
	case KindCustom:
		if c.desc != "" {
			return c.desc
		}
		return c.name
	}
	return "invalid constraint"
}

func (c Constraint) String() string {
	return c.Describe()
}

// WriteIdentity feeds the canonical encoding of c into h.
func (c Constraint) WriteIdentity(h *Hasher) {
	h.Tag(uint8(c.kind))
	if c.kind == KindCustom {
		h.String(c.name)
		return
	}
	h.Int64(int64(c.axis)).Int64(c.a).Int64(c.b)
}

// Identity returns the content hash of the constraint alone.
func (c Constraint) Identity() Identity {
	h := NewHasher()
	c.WriteIdentity(h)
	return h.Sum()
}

// ConstraintSet is an immutable conjunction of constraints. Sets are cheap
// to share: With returns a new set and never modifies the receiver.
type ConstraintSet struct {
	items []Constraint
}

// NewConstraintSet returns a set holding cs
func NewConstraintSet(cs ...Constraint) ConstraintSet {
	return ConstraintSet{items: slices.Clone(cs)}
}

// With returns a new set with c appended.
func (s ConstraintSet) With(c Constraint) ConstraintSet {
	items := make([]Constraint, len(s.items), len(s.items)+1)
	copy(items, s.items)
	return ConstraintSet{items: append(items, c)}
}

// Len returns the number of constraints
func (s ConstraintSet) Len() int { return len(s.items) }

// All returns a copy of the constraints in insertion order.
func (s ConstraintSet) All() []Constraint { return slices.Clone(s.items) }

// Allows reports whether every constraint admits coord. The empty set admits everything.
func (s ConstraintSet) Allows(coord Coordinate) bool {
	_, violated := s.FirstViolation(coord)
	return !violated
}

// FirstViolation returns the first constraint, in insertion order, that rejects coord.
func (s ConstraintSet) FirstViolation(coord Coordinate) (Constraint, bool) {
	for _, c := range s.items {
		if !c.Allows(coord) {
			return c, true
		}
	}
	return Constraint{}, false
}

// Describe joins the descriptions with "; ", or returns "no constraints".
func (s ConstraintSet) Describe() string {
	if len(s.items) == 0 {
		return "no constraints"
	}
	parts := make([]string, len(s.items))
	for i, c := range s.items {
		parts[i] = c.Describe()
	}
	return strings.Join(parts, "; ")
}

var (
	predicatesMu sync.RWMutex
	predicates   = map[string]Predicate{}
)

// RegisterPredicate makes a predicate resolvable by name for decoders and
// descriptions. Registering the same name twice replaces the earlier entry.
func RegisterPredicate(name string, pred Predicate) {
	predicatesMu.Lock()
	defer predicatesMu.Unlock()
	predicates[name] = pred
}

// LookupPredicate returns the predicate registered under name.
func LookupPredicate(name string) (Predicate, bool) {
	predicatesMu.RLock()
	defer predicatesMu.RUnlock()
	p, ok := predicates[name]
	return p, ok
}
