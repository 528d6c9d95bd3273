// Package layout maps coordinates onto logical addresses.
//
// A Layout is a pure, hashable descriptor: a kind plus its parameters. The
// mapping functions for built-in kinds live in a fixed catalog indexed by
// kind, and user strategies are selected by name through Register. Because
// no layout ever holds a function value, two layouts with the same kind and
// parameters always have the same identity.
//
// Built-in kinds:
//   - Linear: fold of components (acc*1009 + v), any arity
//   - RowMajor / ColumnMajor: mixed-radix offsets over fixed extents
//   - ZOrder: Morton bit interleaving
//   - Hilbert: 2-D Hilbert curve index
//   - Gray: Gray-coded Morton index
//   - Hierarchical: tiled row-major (block index, then offset in block)
//   - Custom: a named Strategy from the registry
//
// A mapping that is undefined for a coordinate (wrong arity, out of domain,
// unknown strategy) reports false instead of inventing an address.
package layout

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sbl8/ssccs/core"
)

// Kind selects a mapping function
type Kind uint8

// Layout kinds
const (
	KindLinear Kind = iota + 1
	KindRowMajor
	KindColumnMajor
	KindZOrder
	KindHilbert
	KindGray
	KindHierarchical
	KindCustom
)

var kindNames = [...]string{
	KindLinear:       "linear",
	KindRowMajor:     "row-major",
	KindColumnMajor:  "column-major",
	KindZOrder:       "z-order",
	KindHilbert:      "hilbert",
	KindGray:         "gray",
	KindHierarchical: "hierarchical",
	KindCustom:       "custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name != "" && name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidLayout, s)
}

// LinearStride is the multiplier of the Linear fold.
const LinearStride = 1009

// ErrInvalidLayout is returned for inconsistent layout parameters.
var ErrInvalidLayout = errors.New("invalid memory layout")

// LogicalAddress is a layout-resolved address, independent of any physical resource.
type LogicalAddress struct {
	SpaceID  uint64
	Offset   uint64
	Metadata map[string]string
}

func (a LogicalAddress) String() string {
	return fmt.Sprintf("%d:%#x", a.SpaceID, a.Offset)
}

// Params carries every parameter a layout kind may use. Unused fields must be zero.
type Params struct {
	Space   uint64
	Extents []int64
	Blocks  []int64
	Origin  core.Coordinate
	Bits    uint
	Name    string
}

// Layout is an immutable memory layout descriptor.
type Layout struct {
	kind Kind
	p    Params
}

// New validates p for kind and returns the layout.
func New(kind Kind, p Params) (Layout, error) {
	l := Layout{kind: kind, p: Params{
		Space:   p.Space,
		Extents: slices.Clone(p.Extents),
		Blocks:  slices.Clone(p.Blocks),
		Origin:  p.Origin.Clone(),
		Bits:    p.Bits,
		Name:    p.Name,
	}}
	if err := l.validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func must(l Layout, err error) Layout {
	if err != nil {
		panic(err)
	}
	return l
}

// Linear folds components as acc*1009 + v. Defined for any non-empty coordinate.
func Linear() Layout {
	return Layout{kind: KindLinear}
}

// RowMajor lays out a dense box with the last axis varying fastest.
// It panics on non-positive extents; use New for untrusted input.
func RowMajor(extents ...int64) Layout {
	return must(New(KindRowMajor, Params{Extents: extents}))
}

// ColumnMajor lays out a dense box with the first axis varying fastest.
func ColumnMajor(extents ...int64) Layout {
	return must(New(KindColumnMajor, Params{Extents: extents}))
}

// ZOrder interleaves the low bits of every component (Morton order).
func ZOrder(bits uint) Layout {
	return must(New(KindZOrder, Params{Bits: bits}))
}

// Hilbert maps a 2-D coordinate in [0, 2^order) to its Hilbert curve index.
func Hilbert(order uint) Layout {
	return must(New(KindHilbert, Params{Bits: order}))
}

// Gray maps a coordinate to the Gray code of its Morton index.
func Gray(bits uint) Layout {
	return must(New(KindGray, Params{Bits: bits}))
}

// Hierarchical tiles a dense box into blocks; blocks are laid out row-major
// and so is every cell inside a block.
func Hierarchical(blocks, extents []int64) Layout {
	return must(New(KindHierarchical, Params{Blocks: blocks, Extents: extents}))
}

// Custom selects a registered Strategy by name. The name is resolved at
// mapping time, so the strategy may be registered after the layout is built.
func Custom(name string) Layout {
	return must(New(KindCustom, Params{Name: name}))
}

// WithSpace returns a copy that emits addresses in address space id.
func (l Layout) WithSpace(id uint64) Layout {
	l.p.Space = id
	return l
}

// WithOrigin returns a copy that subtracts origin from coordinates before mapping.
func (l Layout) WithOrigin(origin ...int64) Layout {
	l.p.Origin = core.Coord(origin...)
	return l
}

// Kind returns the layout kind
func (l Layout) Kind() Kind { return l.kind }

// IsZero reports whether l is the zero Layout.
func (l Layout) IsZero() bool { return l.kind == 0 }

// Params returns a copy of the layout parameters.
func (l Layout) Params() Params {
	return Params{
		Space:   l.p.Space,
		Extents: slices.Clone(l.p.Extents),
		Blocks:  slices.Clone(l.p.Blocks),
		Origin:  l.p.Origin.Clone(),
		Bits:    l.p.Bits,
		Name:    l.p.Name,
	}
}

// Dimensionality returns the arity the layout requires, or 0 when any arity is accepted.
func (l Layout) Dimensionality() int {
	switch l.kind {
	case KindRowMajor, KindColumnMajor, KindHierarchical:
		return len(l.p.Extents)
	case KindHilbert:
		return 2
	}
	return 0
}

func (l Layout) validate() error {
	switch l.kind {
	case KindLinear:
	case KindRowMajor, KindColumnMajor:
		if len(l.p.Extents) == 0 {
			return fmt.Errorf("%w: %s needs extents", ErrInvalidLayout, l.kind)
		}
		if err := positive(l.p.Extents); err != nil {
			return err
		}
	case KindZOrder, KindGray:
		if l.p.Bits == 0 || l.p.Bits > 32 {
			return fmt.Errorf("%w: %s bits must be in [1, 32], got %d", ErrInvalidLayout, l.kind, l.p.Bits)
		}
	case KindHilbert:
		if l.p.Bits == 0 || l.p.Bits > 31 {
			return fmt.Errorf("%w: hilbert order must be in [1, 31], got %d", ErrInvalidLayout, l.p.Bits)
		}
	case KindHierarchical:
		if len(l.p.Extents) == 0 || len(l.p.Blocks) != len(l.p.Extents) {
			return fmt.Errorf("%w: hierarchical needs one block size per extent", ErrInvalidLayout)
		}
		if err := positive(l.p.Extents); err != nil {
			return err
		}
		if err := positive(l.p.Blocks); err != nil {
			return err
		}
	case KindCustom:
		if l.p.Name == "" {
			return fmt.Errorf("%w: custom layout needs a strategy name", ErrInvalidLayout)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidLayout, l.kind)
	}
	if len(l.p.Origin) > 0 && l.Dimensionality() > 0 && len(l.p.Origin) != l.Dimensionality() {
		return fmt.Errorf("%w: origin arity %d does not match %d", ErrInvalidLayout, len(l.p.Origin), l.Dimensionality())
	}
	return nil
}

func positive(values []int64) error {
	for i, v := range values {
		if v <= 0 {
			return fmt.Errorf("%w: extent %d must be positive, got %d", ErrInvalidLayout, i, v)
		}
	}
	return nil
}

// Map resolves c to a logical address. It reports false when the layout is
// undefined for c.
func (l Layout) Map(c core.Coordinate) (LogicalAddress, bool) {
	if l.kind == 0 || int(l.kind) >= len(catalog) {
		return LogicalAddress{}, false
	}
	if len(l.p.Origin) > 0 {
		if len(c) != len(l.p.Origin) {
			return LogicalAddress{}, false
		}
		shifted := make(core.Coordinate, len(c))
		for i := range c {
			shifted[i] = c[i] - l.p.Origin[i]
		}
		c = shifted
	}
	offset, ok := catalog[l.kind](&l.p, c)
	if !ok {
		return LogicalAddress{}, false
	}
	meta := map[string]string{"layout": l.kind.String()}
	if l.kind == KindCustom {
		meta["strategy"] = l.p.Name
	}
	return LogicalAddress{SpaceID: l.p.Space, Offset: offset, Metadata: meta}, true
}

// WriteIdentity feeds the canonical encoding of the layout into h.
func (l Layout) WriteIdentity(h *core.Hasher) {
	h.Tag(uint8(l.kind)).Uint64(l.p.Space)
	h.Uint64(uint64(len(l.p.Extents)))
	for _, e := range l.p.Extents {
		h.Int64(e)
	}
	h.Uint64(uint64(len(l.p.Blocks)))
	for _, b := range l.p.Blocks {
		h.Int64(b)
	}
	h.Coordinate(l.p.Origin).Uint64(uint64(l.p.Bits)).String(l.p.Name)
}

// Identity returns the content hash of the layout
func (l Layout) Identity() core.Identity {
	h := core.NewHasher()
	l.WriteIdentity(h)
	return h.Sum()
}

// Equal reports whether both layouts have the same kind and parameters.
func (l Layout) Equal(other Layout) bool {
	return l.Identity() == other.Identity()
}

func (l Layout) String() string {
	var sb strings.Builder
	sb.WriteString(l.kind.String())
	switch l.kind {
	case KindRowMajor, KindColumnMajor:
		fmt.Fprintf(&sb, "%v", l.p.Extents)
	case KindHierarchical:
		fmt.Fprintf(&sb, "%v/%v", l.p.Extents, l.p.Blocks)
	case KindZOrder, KindGray, KindHilbert:
		fmt.Fprintf(&sb, "(%d)", l.p.Bits)
	case KindCustom:
		fmt.Fprintf(&sb, "(%s)", l.p.Name)
	}
	if l.p.Space != 0 {
		fmt.Fprintf(&sb, "@%d", l.p.Space)
	}
	return sb.String()
}
