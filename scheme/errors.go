package scheme

import (
	"errors"
	"fmt"

	"github.com/sbl8/ssccs/core"
)

var (
	ErrDimensionMismatch        = errors.New("dimensionality mismatch")
	ErrUnknownPoint             = errors.New("relation endpoint is not a member of the scheme")
	ErrUnknownRelationPredicate = errors.New("unknown relation predicate")
	ErrUnknownCombiner          = errors.New("unknown combination strategy")
	ErrUnknownTopology          = errors.New("unknown topological transform")
	ErrConflict                 = errors.New("components overlap under fail-on-conflict policy")
	ErrAlignment                = errors.New("axis alignment does not hold")
	ErrInvalidTransform         = errors.New("invalid transform")
	ErrEmptyComposite           = errors.New("composite needs at least one component")
	ErrInvalidTemplate          = errors.New("invalid template parameters")
	ErrDependencyCycle          = errors.New("dependency relations form a cycle")

	// ErrStructuralViolation is matched by every *ViolationError.
	ErrStructuralViolation = errors.New("structural violation")
)

// ViolationError reports the first structural constraint a coordinate failed.
type ViolationError struct {
	Coordinate  core.Coordinate
	Type        ConstraintType
	Description string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s violates %s constraint: %s", e.Coordinate, e.Type, e.Description)
}

// Unwrap lets errors.Is match ErrStructuralViolation.
func (e *ViolationError) Unwrap() error {
	return ErrStructuralViolation
}

func violation(c core.Coordinate, t ConstraintType, desc string) *ViolationError {
	return &ViolationError{Coordinate: c.Clone(), Type: t, Description: desc}
}
