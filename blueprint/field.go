package blueprint

import (
	"errors"
	"fmt"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/explore"
	"github.com/sbl8/ssccs/field"
	"github.com/sbl8/ssccs/scheme"
)

// Build returns a new field holding the described constraints and
// transitions. A nil spec yields an empty field.
func (s *FieldSpec) Build() (*field.Field, error) {
	f := field.New()
	if s == nil {
		return f, nil
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	var errs []error
	for i, c := range s.Constraints {
		con, err := c.constraint()
		if err != nil {
			errs = append(errs, fmt.Errorf("constraints[%d]: %w", i, err))
			continue
		}
		f.AddConstraint(con)
	}
	for i, t := range s.Transitions {
		from, err := parseCoordinate(t.From)
		if err != nil {
			errs = append(errs, fmt.Errorf("transitions[%d]: %w", i, err))
			continue
		}
		to, err := parseCoordinate(t.To)
		if err != nil {
			errs = append(errs, fmt.Errorf("transitions[%d]: %w", i, err))
			continue
		}
		f.AddTransition(from, to, t.Weight)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f, nil
}

// SeedCoordinates parses the seeds.
func (e *ExploreSpec) SeedCoordinates() ([]core.Coordinate, error) {
	out := make([]core.Coordinate, 0, len(e.Seeds))
	for _, s := range e.Seeds {
		c, err := parseCoordinate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Bound returns the exploration bound.
func (e *ExploreSpec) Bound() explore.Bound {
	return explore.Bound{MaxDepth: e.MaxDepth, MaxStates: e.MaxStates}
}

// NewAdjacency returns the adjacency named by Adjacency. Structural adjacency
// follows the relations of s matching Filter; "transitions" relies on the
// field transitions alone and returns nil.
func (e *ExploreSpec) NewAdjacency(s scheme.Scheme) (field.Adjacency, error) {
	switch e.Adjacency {
	case "", "arithmetic":
		return field.Arithmetic(e.Axis), nil
	case "structural":
		if s == nil {
			return nil, errors.New("blueprint: structural adjacency needs a scheme")
		}
		return scheme.StructuralAdjacency(s, e.Filter), nil
	case "transitions":
		return nil, nil
	}
	return nil, fmt.Errorf("blueprint: unknown adjacency %q", e.Adjacency)
}
