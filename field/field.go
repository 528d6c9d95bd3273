// Package field holds the mutable context that gates observation.
//
// A Field never owns points. It carries a constraint set that decides which
// coordinates may be observed and a transition matrix of extra, weighted
// moves between coordinates. Points come from schemes or are made on the
// fly; observation projects a point through a Projector only when the field
// allows its coordinate.
//
// A Field is not safe for concurrent mutation. Workers that explore in
// parallel each take their own Clone.
package field

import (
	"github.com/google/uuid"

	"github.com/sbl8/ssccs/core"
)

// Field is the observation context of one session.
type Field struct {
	session     uuid.UUID
	constraints core.ConstraintSet
	transitions *TransitionMatrix
}

// New returns an empty field with a fresh session id.
func New(constraints ...core.Constraint) *Field {
	return &Field{
		session:     uuid.New(),
		constraints: core.NewConstraintSet(constraints...),
		transitions: NewTransitionMatrix(),
	}
}

// Session identifies the field in logs and job records.
func (f *Field) Session() uuid.UUID { return f.session }

// AddConstraint narrows the set of allowed coordinates.
func (f *Field) AddConstraint(c core.Constraint) *Field {
	f.constraints = f.constraints.With(c)
	return f
}

// Constraints returns the current constraint set. Sets are immutable, so
// the caller may keep it across later AddConstraint calls.
func (f *Field) Constraints() core.ConstraintSet { return f.constraints }

// AddTransition records a weighted move from one coordinate to another.
// Adding the same pair again replaces its weight.
func (f *Field) AddTransition(from, to core.Coordinate, weight float64) *Field {
	f.transitions.Add(from, to, weight)
	return f
}

// Transitions exposes the transition matrix for reading.
func (f *Field) Transitions() *TransitionMatrix { return f.transitions }

// Allows reports whether every constraint admits c.
func (f *Field) Allows(c core.Coordinate) bool { return f.constraints.Allows(c) }

// TransitionTargets returns the targets of the transitions out of c in
// insertion order. They are not filtered by the constraints.
func (f *Field) TransitionTargets(c core.Coordinate) []core.Coordinate {
	from := f.transitions.From(c)
	out := make([]core.Coordinate, len(from))
	for i, t := range from {
		out[i] = t.To
	}
	return out
}

// DescribeConstraints joins the constraint descriptions with "; ".
func (f *Field) DescribeConstraints() string { return f.constraints.Describe() }

// Clone returns an independent field with the same constraints and
// transitions under a new session id.
func (f *Field) Clone() *Field {
	return &Field{
		session:     uuid.New(),
		constraints: f.constraints,
		transitions: f.transitions.Clone(),
	}
}
