package ssfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/layout"
	"github.com/sbl8/ssccs/scheme"
)

// Decode reads a whole container from r and rebuilds the scheme.
func Decode(r io.Reader) (*scheme.Basic, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ssfile: read: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal rebuilds the scheme stored in data. The rebuilt scheme must hash
// to the identity recorded in the trailer. No partial scheme is ever returned.
func Unmarshal(data []byte) (*scheme.Basic, error) {
	if len(data) < headerSize {
		return nil, malformed("header", "truncated at %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, ErrInvalidMagic
	}
	if v := data[4]; v != Version {
		return nil, &UnsupportedVersionError{Version: v}
	}
	flags := data[5]
	if len(data) < headerSize+trailerSize {
		return nil, malformed("trailer", "truncated at %d bytes", len(data))
	}

	body := len(data) - 4
	want := binary.LittleEndian.Uint32(data[body:])
	if got := crc32.ChecksumIEEE(data[:body]); got != want {
		return nil, malformed("trailer", "checksum mismatch: stored %08x, computed %08x", want, got)
	}
	var recorded core.Identity
	copy(recorded[:], data[body-32:body])

	tags := []uint8{sectionAxes, sectionPoints, sectionRelations, sectionLayout, sectionObservation, sectionConstraints}
	if flags&flagMetadata != 0 {
		tags = append(tags, sectionMetadata)
	}
	payloads, err := splitSections(data[headerSize:body-32], tags)
	if err != nil {
		return nil, err
	}

	b := scheme.NewBuilder()
	readers := map[uint8]func(*decoder, *scheme.Builder) error{
		sectionAxes:        readAxes,
		sectionPoints:      readPoints,
		sectionRelations:   readRelations,
		sectionLayout:      readLayout,
		sectionObservation: readPolicy,
		sectionConstraints: readConstraints,
		sectionMetadata:    readMetadata,
	}
	for _, tag := range tags {
		d := newDecoder(tag, payloads[tag])
		if err := readers[tag](d, b); err != nil {
			return nil, err
		}
		if d.err != nil {
			return nil, d.err
		}
		if d.r.Len() != 0 {
			return nil, malformed(d.section, "%d trailing bytes", d.r.Len())
		}
	}

	s, err := b.Build()
	if err != nil {
		return nil, &MalformedError{Section: "scheme", Reason: "rebuild failed", Err: err}
	}
	if s.ID() != recorded {
		return nil, malformed("identity", "recorded %s, rebuilt %s", recorded.Short(), s.ID().Short())
	}
	return s, nil
}

// splitSections walks the section area and returns the payload of each tag,
// which must appear exactly in the given order with nothing left over.
func splitSections(area []byte, tags []uint8) (map[uint8][]byte, error) {
	out := make(map[uint8][]byte, len(tags))
	off := 0
	for _, tag := range tags {
		name := sectionName(tag)
		if len(area)-off < 8 {
			return nil, malformed(name, "missing section header")
		}
		if got := area[off]; got != tag {
			return nil, malformed(name, "unexpected tag %d", got)
		}
		n := int(binary.LittleEndian.Uint32(area[off+4 : off+8]))
		off += 8
		padded := alignSize(n, sectionAlign)
		if n < 0 || padded > len(area)-off {
			return nil, malformed(name, "length %d exceeds container", n)
		}
		out[tag] = area[off : off+n]
		off += padded
	}
	if off != len(area) {
		return nil, malformed("trailer", "%d unexpected bytes after sections", len(area)-off)
	}
	return out, nil
}

// decoder reads little endian fields from one section payload. The first
// failure sticks and later reads return zero values.
type decoder struct {
	section string
	r       *bytes.Reader
	err     error
}

func newDecoder(tag uint8, payload []byte) *decoder {
	return &decoder{section: sectionName(tag), r: bytes.NewReader(payload)}
}

func (d *decoder) get(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		d.err = &MalformedError{Section: d.section, Reason: "truncated", Err: err}
	}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = malformed(d.section, format, args...)
	}
}

func read[T any](d *decoder) T {
	var v T
	d.get(&v)
	return v
}

func (d *decoder) u8() uint8         { return read[uint8](d) }
func (d *decoder) u32() uint32       { return read[uint32](d) }
func (d *decoder) u64() uint64       { return read[uint64](d) }
func (d *decoder) i64() int64        { return read[int64](d) }
func (d *decoder) f64() float64      { return read[float64](d) }
func (d *decoder) flag() bool        { return d.u8() != 0 }
func (d *decoder) id() core.Identity { return read[core.Identity](d) }

// count reads a length prefix. Every counted element takes at least one
// byte, so a count larger than the rest of the payload is rejected before
// anything is allocated.
func (d *decoder) count() int {
	n := int(d.u32())
	if d.err == nil && n > d.r.Len() {
		d.fail("count %d exceeds remaining %d bytes", n, d.r.Len())
		return 0
	}
	return n
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.err = &MalformedError{Section: d.section, Reason: "truncated string", Err: err}
		return ""
	}
	return string(buf)
}

func (d *decoder) strs() []string {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for range n {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) strmap() map[string]string {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make(map[string]string, n)
	for range n {
		k := d.str()
		out[k] = d.str()
	}
	return out
}

func (d *decoder) ints() []int64 {
	n := d.count()
	if n == 0 {
		return nil
	}
	out := make([]int64, 0, n)
	for range n {
		out = append(out, d.i64())
	}
	return out
}

func readAxes(d *decoder, b *scheme.Builder) error {
	for range d.count() {
		a := scheme.Axis{
			Name:    d.str(),
			Kind:    scheme.AxisKind(d.u8()),
			Period:  d.i64(),
			Related: d.str(),
			Unit:    d.str(),
		}
		a.Metadata = d.strmap()
		if d.err != nil {
			return d.err
		}
		b.AddAxis(a)
	}
	return nil
}

func readPoints(d *decoder, b *scheme.Builder) error {
	for range d.count() {
		c := d.ints()
		if d.err != nil {
			return d.err
		}
		b.AddPoint(core.NewSegment(core.Coord(c...)))
	}
	return nil
}

func readRelations(d *decoder, b *scheme.Builder) error {
	for range d.count() {
		r := scheme.Relation{
			From:       d.id(),
			To:         d.id(),
			Kind:       scheme.RelationKind(d.u8()),
			Adjacency:  scheme.AdjacencyKind(d.u8()),
			Topology:   scheme.GridTopology(d.u8()),
			Hierarchy:  scheme.HierarchyKind(d.u8()),
			Depth:      int(d.i64()),
			Dependency: scheme.DependencyKind(d.u8()),
			Symmetry:   scheme.Symmetry(d.u8()),
			Class:      d.str(),
			Predicate:  d.str(),
			Weighted:   d.flag(),
			Weight:     d.f64(),
		}
		r.Metadata = d.strmap()
		if d.err != nil {
			return d.err
		}
		b.AddRelation(r)
	}
	return nil
}

func readLayout(d *decoder, b *scheme.Builder) error {
	kind := layout.Kind(d.u8())
	p := layout.Params{
		Space:   d.u64(),
		Extents: d.ints(),
		Blocks:  d.ints(),
		Origin:  d.ints(),
		Bits:    uint(d.u32()),
		Name:    d.str(),
	}
	if d.err != nil {
		return d.err
	}
	l, err := layout.New(kind, p)
	if err != nil {
		return &MalformedError{Section: d.section, Reason: "invalid layout", Err: err}
	}
	b.SetMemoryLayout(l)
	return nil
}

func readPolicy(d *decoder, b *scheme.Builder) error {
	var p scheme.ObservationPolicy
	p.Resolution.Kind = scheme.ResolutionKind(d.u8())
	p.Resolution.Name = d.str()
	p.Resolution.Temperature = d.f64()
	p.Resolution.Params = d.strmap()
	if n := d.count(); n > 0 {
		p.Triggers = make([]scheme.Trigger, 0, n)
		for range n {
			p.Triggers = append(p.Triggers, scheme.Trigger{
				Kind:      scheme.TriggerKind(d.u8()),
				Interval:  time.Duration(d.i64()),
				Threshold: d.f64(),
				Event:     d.str(),
			})
		}
	}
	p.Priority = scheme.Priority(d.u8())
	p.Observers = d.strs()
	p.Constraints = d.strs()
	p.Metadata = d.strmap()
	if d.err != nil {
		return d.err
	}
	b.SetObservationPolicy(p)
	return nil
}

func readConstraints(d *decoder, b *scheme.Builder) error {
	for range d.count() {
		kind := core.ConstraintKind(d.u8())
		axis := int(d.i64())
		lo, hi := d.i64(), d.i64()
		name, desc := d.str(), d.str()
		typ := scheme.ConstraintType(d.u8())
		scope := scheme.Scope{Kind: scheme.ScopeKind(d.u8())}
		if n := d.count(); n > 0 {
			scope.Points = make([]core.Identity, 0, n)
			for range n {
				scope.Points = append(scope.Points, d.id())
			}
		}
		scope.Axis = int(d.i64())
		if d.err != nil {
			return d.err
		}

		var (
			c   core.Constraint
			err error
		)
		if kind == core.KindCustom {
			c, err = core.Named(name, desc)
			if errors.Is(err, core.ErrUnknownPredicate) {
				return &MalformedError{Section: d.section, Reason: fmt.Sprintf("unknown custom predicate %q", name), Err: err}
			}
		} else {
			c, err = core.FromKind(kind, axis, lo, hi)
		}
		if err != nil {
			return &MalformedError{Section: d.section, Reason: "invalid constraint", Err: err}
		}
		b.AddStructuralConstraint(scheme.StructuralConstraint{Constraint: c, Type: typ, Scope: scope})
	}
	return d.err
}

func readMetadata(d *decoder, b *scheme.Builder) error {
	for k, v := range d.strmap() {
		b.AddMetadata(k, v)
	}
	return d.err
}
