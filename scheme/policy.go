package scheme

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/sbl8/ssccs/core"
)

// ResolutionKind selects how competing observations are resolved.
type ResolutionKind uint8

// Resolution kinds
const (
	FirstValid ResolutionKind = iota + 1
	Deterministic
	Probabilistic
	EnergyMinimization
	EntropyMaximization
	External
)

var resolutionNames = [...]string{"", "first-valid", "deterministic", "probabilistic", "energy-minimization", "entropy-maximization", "external"}

func (k ResolutionKind) String() string { return nameOf(resolutionNames[:], uint8(k)) }

// ParseResolutionKind is the inverse of ResolutionKind.String.
func ParseResolutionKind(s string) (ResolutionKind, error) {
	if v, ok := parseName(resolutionNames[:], s); ok {
		return ResolutionKind(v), nil
	}
	return 0, fmt.Errorf("unknown resolution %q", s)
}

// Resolution strategy. Name holds the algorithm, distribution or resolver id
// depending on Kind. Strategies are referenced by name, never by function.
type Resolution struct {
	Kind        ResolutionKind
	Name        string
	Temperature float64
	Params      map[string]string
}

// TriggerKind says when an observation fires.
type TriggerKind uint8

// Trigger kinds
const (
	OnDemand TriggerKind = iota + 1
	Periodic
	Threshold
	StructuralChange
	DependencySatisfied
	ExternalEvent
)

var triggerNames = [...]string{"", "on-demand", "periodic", "threshold", "structural-change", "dependency-satisfied", "external-event"}

func (k TriggerKind) String() string { return nameOf(triggerNames[:], uint8(k)) }

// ParseTriggerKind is the inverse of TriggerKind.String.
func ParseTriggerKind(s string) (TriggerKind, error) {
	if v, ok := parseName(triggerNames[:], s); ok {
		return TriggerKind(v), nil
	}
	return 0, fmt.Errorf("unknown trigger %q", s)
}

// Trigger describes one firing condition.
type Trigger struct {
	Kind      TriggerKind
	Interval  time.Duration
	Threshold float64
	Event     string
}

// Priority of observations on a scheme.
type Priority uint8

// Priorities, most urgent first
const (
	Critical Priority = iota + 1
	High
	Normal
	Low
	Background
)

var priorityNames = [...]string{"", "critical", "high", "normal", "low", "background"}

func (p Priority) String() string { return nameOf(priorityNames[:], uint8(p)) }

// ParsePriority is the inverse of Priority.String.
func ParsePriority(s string) (Priority, error) {
	if v, ok := parseName(priorityNames[:], s); ok {
		return Priority(v), nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// ObservationPolicy is the descriptive observation contract carried by a
// scheme. The core observation path does not consult it; compilers and
// runners downstream do.
type ObservationPolicy struct {
	Resolution Resolution
	Triggers   []Trigger
	Priority   Priority
	// Observers lists the observer ids allowed to observe the scheme; empty means anyone.
	Observers []string
	// Constraints are free-form observation preconditions.
	Constraints []string
	Metadata    map[string]string
}

// DefaultPolicy resolves the first valid observation on demand at normal priority.
func DefaultPolicy() ObservationPolicy {
	return ObservationPolicy{
		Resolution: Resolution{Kind: FirstValid},
		Triggers:   []Trigger{{Kind: OnDemand}},
		Priority:   Normal,
	}
}

// Allows reports whether observer may observe under this policy.
func (p ObservationPolicy) Allows(observer string) bool {
	return len(p.Observers) == 0 || slices.Contains(p.Observers, observer)
}

func (p ObservationPolicy) clone() ObservationPolicy {
	p.Resolution.Params = maps.Clone(p.Resolution.Params)
	p.Triggers = slices.Clone(p.Triggers)
	p.Observers = slices.Clone(p.Observers)
	p.Constraints = slices.Clone(p.Constraints)
	p.Metadata = maps.Clone(p.Metadata)
	return p
}

// WriteIdentity hashes the policy. Observer and constraint lists are sets;
// triggers keep their order. Metadata is excluded.
func (p ObservationPolicy) WriteIdentity(h *core.Hasher) {
	h.Tag(uint8(p.Resolution.Kind)).String(p.Resolution.Name).
		Float64(p.Resolution.Temperature).StringMap(p.Resolution.Params)
	h.Uint64(uint64(len(p.Triggers)))
	for _, t := range p.Triggers {
		h.Tag(uint8(t.Kind)).Int64(int64(t.Interval)).Float64(t.Threshold).String(t.Event)
	}
	h.Tag(uint8(p.Priority))
	for _, list := range [][]string{p.Observers, p.Constraints} {
		sorted := slices.Clone(list)
		slices.Sort(sorted)
		h.Uint64(uint64(len(sorted)))
		for _, s := range sorted {
			h.String(s)
		}
	}
}
