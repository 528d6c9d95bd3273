// Package blueprint turns human written descriptions into schemes and fields.
//
// Two source formats are understood:
//   - YAML documents (.yaml, .yml) holding a scheme, an optional field and
//     an optional exploration run
//   - the line oriented scheme DSL (.ssd) with point, relate, constrain,
//     layout and nested iterate blocks
//
// Both formats produce the same SchemeSpec, which is validated with struct
// tags before any scheme is built. Point entries may use inclusive ranges
// such as "[0..2, 5]", which expand to the Cartesian product of the ranges.
package blueprint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Document is the root of a YAML blueprint.
type Document struct {
	Name    string       `yaml:"name,omitempty"`
	Scheme  SchemeSpec   `yaml:"scheme"`
	Field   *FieldSpec   `yaml:"field,omitempty"`
	Explore *ExploreSpec `yaml:"explore,omitempty"`
}

// SchemeSpec describes one scheme. Exactly one of Template, Combine,
// Transform or the explicit parts (axes, points, relations...) is used.
type SchemeSpec struct {
	Template  *TemplateSpec  `yaml:"template,omitempty"`
	Combine   *CombineSpec   `yaml:"combine,omitempty"`
	Transform *TransformSpec `yaml:"transform,omitempty"`

	Axes        []AxisSpec        `yaml:"axes,omitempty" validate:"dive"`
	Points      []string          `yaml:"points,omitempty" validate:"dive,points"`
	Relations   []RelationSpec    `yaml:"relations,omitempty" validate:"dive"`
	RelateWhere []string          `yaml:"relate_where,omitempty" validate:"dive,required"`
	Constraints []ConstraintSpec  `yaml:"constraints,omitempty" validate:"dive"`
	Layout      *LayoutSpec       `yaml:"layout,omitempty"`
	Policy      *PolicySpec       `yaml:"policy,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
}

// TemplateSpec selects one of the scheme templates.
type TemplateSpec struct {
	Kind     string     `yaml:"kind" validate:"required,oneof=grid line graph"`
	Width    int64      `yaml:"width,omitempty" validate:"gte=0"`
	Height   int64      `yaml:"height,omitempty" validate:"gte=0"`
	Topology string     `yaml:"topology,omitempty"`
	Start    int64      `yaml:"start,omitempty"`
	End      int64      `yaml:"end,omitempty"`
	Step     int64      `yaml:"step,omitempty"`
	Nodes    int64      `yaml:"nodes,omitempty" validate:"gte=0"`
	Edges    [][2]int64 `yaml:"edges,omitempty"`
}

// CombineSpec builds a composite of nested schemes.
type CombineSpec struct {
	Method     string       `yaml:"method" validate:"required"`
	Strategy   string       `yaml:"strategy,omitempty"`
	Conflict   string       `yaml:"conflict,omitempty"`
	Align      [][2]string  `yaml:"align,omitempty"`
	Tolerance  float64      `yaml:"tolerance,omitempty" validate:"gte=0"`
	Components []SchemeSpec `yaml:"components" validate:"required,min=1,dive"`
}

// TransformSpec builds a transformed view of a nested scheme.
type TransformSpec struct {
	Kind   string            `yaml:"kind" validate:"required"`
	Vector []int64           `yaml:"vector,omitempty"`
	Matrix [][]int64         `yaml:"matrix,omitempty"`
	Axes   []int             `yaml:"axes,omitempty"`
	Fill   []int64           `yaml:"fill,omitempty"`
	Name   string            `yaml:"name,omitempty"`
	Params map[string]string `yaml:"params,omitempty"`
	Base   *SchemeSpec       `yaml:"base" validate:"required"`
}

// AxisSpec describes one axis; Param is the period, related axis or unit
// depending on the kind.
type AxisSpec struct {
	Name     string            `yaml:"name" validate:"required"`
	Kind     string            `yaml:"kind,omitempty" validate:"omitempty,oneof=discrete continuous cyclic categorical relational unit"`
	Param    string            `yaml:"param,omitempty"`
	Range    []int64           `yaml:"range,omitempty" validate:"omitempty,len=2"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// RelationSpec describes a relation between two coordinates. Sub refines
// Kind: the adjacency kind, hierarchy kind, dependency kind, symmetry or
// custom predicate name.
type RelationSpec struct {
	From     string            `yaml:"from" validate:"required,coordinate"`
	To       string            `yaml:"to" validate:"required,coordinate"`
	Kind     string            `yaml:"kind" validate:"required,oneof=adjacency hierarchy dependency equivalence custom"`
	Sub      string            `yaml:"sub,omitempty"`
	Topology string            `yaml:"topology,omitempty"`
	Depth    int               `yaml:"depth,omitempty" validate:"gte=0"`
	Class    string            `yaml:"class,omitempty"`
	Weight   *float64          `yaml:"weight,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// ConstraintSpec describes a constraint. Type and Scope only apply to
// structural constraints of a scheme.
type ConstraintSpec struct {
	Kind        string     `yaml:"kind" validate:"required,oneof=range even odd multiple-of positive custom"`
	Axis        int        `yaml:"axis,omitempty" validate:"gte=0"`
	Min         int64      `yaml:"min,omitempty"`
	Max         int64      `yaml:"max,omitempty"`
	N           int64      `yaml:"n,omitempty"`
	Name        string     `yaml:"name,omitempty" validate:"required_if=Kind custom"`
	Description string     `yaml:"description,omitempty"`
	Type        string     `yaml:"type,omitempty" validate:"omitempty,oneof=dimensional topological algebraic logical physical"`
	Scope       *ScopeSpec `yaml:"scope,omitempty"`
}

// ScopeSpec restricts a structural constraint.
type ScopeSpec struct {
	Kind   string   `yaml:"kind" validate:"required,oneof=global local regional axis"`
	Points []string `yaml:"points,omitempty" validate:"dive,coordinate"`
	Axis   int      `yaml:"axis,omitempty" validate:"gte=0"`
}

// LayoutSpec describes the memory layout.
type LayoutSpec struct {
	Kind    string  `yaml:"kind" validate:"required"`
	Space   uint64  `yaml:"space,omitempty"`
	Extents []int64 `yaml:"extents,omitempty"`
	Blocks  []int64 `yaml:"blocks,omitempty"`
	Origin  []int64 `yaml:"origin,omitempty"`
	Bits    uint    `yaml:"bits,omitempty"`
	Name    string  `yaml:"name,omitempty"`
}

// PolicySpec describes the observation policy.
type PolicySpec struct {
	Resolution  string            `yaml:"resolution,omitempty"`
	Strategy    string            `yaml:"strategy,omitempty"`
	Temperature float64           `yaml:"temperature,omitempty" validate:"gte=0"`
	Params      map[string]string `yaml:"params,omitempty"`
	Triggers    []TriggerSpec     `yaml:"triggers,omitempty" validate:"dive"`
	Priority    string            `yaml:"priority,omitempty"`
	Observers   []string          `yaml:"observers,omitempty"`
	Constraints []string          `yaml:"constraints,omitempty"`
}

// TriggerSpec is one firing condition.
type TriggerSpec struct {
	Kind      string        `yaml:"kind" validate:"required"`
	Interval  time.Duration `yaml:"interval,omitempty"`
	Threshold float64       `yaml:"threshold,omitempty"`
	Event     string        `yaml:"event,omitempty"`
}

// FieldSpec describes the mutable observation field.
type FieldSpec struct {
	Constraints []ConstraintSpec `yaml:"constraints,omitempty" validate:"dive"`
	Transitions []TransitionSpec `yaml:"transitions,omitempty" validate:"dive"`
}

// TransitionSpec is one explicit field transition.
type TransitionSpec struct {
	From   string  `yaml:"from" validate:"required,coordinate"`
	To     string  `yaml:"to" validate:"required,coordinate"`
	Weight float64 `yaml:"weight,omitempty"`
}

// ExploreSpec describes a bounded exploration run. Adjacency is
// "arithmetic", "structural" or "transitions".
type ExploreSpec struct {
	Seeds     []string `yaml:"seeds" validate:"required,min=1,dive,coordinate"`
	Adjacency string   `yaml:"adjacency,omitempty" validate:"omitempty,oneof=arithmetic structural transitions"`
	Axis      int      `yaml:"axis,omitempty" validate:"gte=0"`
	Filter    string   `yaml:"filter,omitempty"`
	MaxDepth  int      `yaml:"max_depth,omitempty" validate:"gte=0"`
	MaxStates int      `yaml:"max_states,omitempty" validate:"gte=0"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "blueprint: invalid description: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("coordinate", validateCoordinate)
	_ = v.RegisterValidation("points", validatePoints)
	return v
}

func validateCoordinate(fl validator.FieldLevel) bool {
	_, err := parseCoordinate(fl.Field().String())
	return err == nil
}

func validatePoints(fl validator.FieldLevel) bool {
	_, err := ExpandPoints(fl.Field().String())
	return err == nil
}

// Validate checks the struct tags of v, which must be a pointer to one of
// the description types.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("blueprint: validate: %w", err)
	}
	out := &ValidationError{Problems: make([]string, 0, len(verrs))}
	for _, fe := range verrs {
		p := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			p += "=" + fe.Param()
		}
		out.Problems = append(out.Problems, p)
	}
	return out
}
