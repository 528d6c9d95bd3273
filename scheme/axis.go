package scheme

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/sbl8/ssccs/core"
)

// AxisKind describes how the values on an axis are meant to be read.
// It is descriptive only: enforcement is done with constraints.
type AxisKind uint8

// Axis kinds
const (
	AxisDiscrete AxisKind = iota + 1
	AxisContinuous
	AxisCyclic
	AxisCategorical
	AxisRelational
	AxisWithUnit
)

var axisKindNames = [...]string{
	AxisDiscrete:    "discrete",
	AxisContinuous:  "continuous",
	AxisCyclic:      "cyclic",
	AxisCategorical: "categorical",
	AxisRelational:  "relational",
	AxisWithUnit:    "unit",
}

func (k AxisKind) String() string {
	if int(k) < len(axisKindNames) && axisKindNames[k] != "" {
		return axisKindNames[k]
	}
	return fmt.Sprintf("AxisKind(%d)", k)
}

// ParseAxisKind is the inverse of AxisKind.String.
func ParseAxisKind(s string) (AxisKind, error) {
	for k, name := range axisKindNames {
		if name != "" && name == s {
			return AxisKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown axis kind %q", s)
}

// Metadata keys understood by Axis.Range.
const (
	MetaRangeStart = "range_start"
	MetaRangeEnd   = "range_end"
)

// Axis names one dimension of a scheme.
type Axis struct {
	Name string
	Kind AxisKind
	// Period of a cyclic axis; 0 means unspecified.
	Period int64
	// Related names the axis a relational axis refers to.
	Related string
	// Unit of a unit-tagged axis.
	Unit     string
	Metadata map[string]string
}

// Discrete returns an integer-valued axis
func Discrete(name string) Axis { return Axis{Name: name, Kind: AxisDiscrete} }

// Continuous returns an axis whose integer values stand for a sampled continuum
func Continuous(name string) Axis { return Axis{Name: name, Kind: AxisContinuous} }

// Cyclic returns a wrapping axis; period 0 leaves the period unspecified.
func Cyclic(name string, period int64) Axis {
	return Axis{Name: name, Kind: AxisCyclic, Period: period}
}

// Categorical returns an axis whose values are category codes
func Categorical(name string) Axis { return Axis{Name: name, Kind: AxisCategorical} }

// Relational returns an axis defined relative to another axis
func Relational(name, related string) Axis {
	return Axis{Name: name, Kind: AxisRelational, Related: related}
}

// WithUnit returns a unit-tagged axis
func WithUnit(name, unit string) Axis {
	return Axis{Name: name, Kind: AxisWithUnit, Unit: unit}
}

// WithMetadata returns a copy of a with key set to value.
func (a Axis) WithMetadata(key, value string) Axis {
	m := maps.Clone(a.Metadata)
	if m == nil {
		m = make(map[string]string, 1)
	}
	m[key] = value
	a.Metadata = m
	return a
}

// WithRange records an inclusive value range in the axis metadata.
func (a Axis) WithRange(start, end int64) Axis {
	return a.WithMetadata(MetaRangeStart, strconv.FormatInt(start, 10)).
		WithMetadata(MetaRangeEnd, strconv.FormatInt(end, 10))
}

// Range returns the inclusive range recorded in metadata, if any.
func (a Axis) Range() (start, end int64, ok bool) {
	s, okS := a.Metadata[MetaRangeStart]
	e, okE := a.Metadata[MetaRangeEnd]
	if !okS || !okE {
		return 0, 0, false
	}
	start, errS := strconv.ParseInt(s, 10, 64)
	end, errE := strconv.ParseInt(e, 10, 64)
	if errS != nil || errE != nil {
		return 0, 0, false
	}
	return start, end, true
}

// WriteIdentity hashes the name, the kind and the kind parameter.
// Free-form metadata does not take part in identity.
func (a Axis) WriteIdentity(h *core.Hasher) {
	h.String(a.Name).Tag(uint8(a.Kind)).Int64(a.Period).String(a.Related).String(a.Unit)
}

func (a Axis) String() string {
	switch a.Kind {
	case AxisCyclic:
		if a.Period > 0 {
			return fmt.Sprintf("%s:cyclic(%d)", a.Name, a.Period)
		}
	case AxisRelational:
		return fmt.Sprintf("%s:relational(%s)", a.Name, a.Related)
	case AxisWithUnit:
		return fmt.Sprintf("%s:unit(%s)", a.Name, a.Unit)
	}
	return a.Name + ":" + a.Kind.String()
}

func cloneAxes(axes []Axis) []Axis {
	out := make([]Axis, len(axes))
	for i, a := range axes {
		a.Metadata = maps.Clone(a.Metadata)
		out[i] = a
	}
	return out
}
