package ssfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"slices"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/scheme"
)

// Marshal returns the container bytes for s.
func Marshal(s *scheme.Basic) ([]byte, error) {
	buf := &bytes.Buffer{}

	header := struct {
		Magic    [4]byte
		Version  uint8
		Flags    uint8
		Reserved uint16
	}{Magic: magic, Version: Version}
	meta := s.Metadata()
	if len(meta) > 0 {
		header.Flags |= flagMetadata
	}
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}

	sections := []sectionWriter{
		{sectionAxes, func(e *encoder) { writeAxes(e, s.Axes()) }},
		{sectionPoints, func(e *encoder) { writePoints(e, s.Points()) }},
		{sectionRelations, func(e *encoder) { writeRelations(e, s.Relations()) }},
		{sectionLayout, func(e *encoder) { writeLayout(e, s) }},
		{sectionObservation, func(e *encoder) { writePolicy(e, s.Policy()) }},
		{sectionConstraints, func(e *encoder) { writeConstraints(e, s.Constraints()) }},
	}
	if len(meta) > 0 {
		sections = append(sections, sectionWriter{sectionMetadata, func(e *encoder) { e.strmap(meta) }})
	}

	for _, sec := range sections {
		e := newEncoder()
		sec.write(e)
		if e.err != nil {
			return nil, fmt.Errorf("ssfile: encode %s: %w", sectionName(sec.tag), e.err)
		}
		if err := writeSection(buf, sec.tag, e.buf.Bytes()); err != nil {
			return nil, err
		}
	}

	id := s.ID()
	buf.Write(id[:])
	if err := binary.Write(buf, binary.LittleEndian, crc32.ChecksumIEEE(buf.Bytes())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type sectionWriter struct {
	tag   uint8
	write func(*encoder)
}

// Encode writes the container for s to w.
func Encode(w io.Writer, s *scheme.Basic) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("ssfile: write: %w", err)
	}
	return nil
}

func writeSection(buf *bytes.Buffer, tag uint8, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("ssfile: %s section too large (%d bytes)", sectionName(tag), len(payload))
	}
	head := struct {
		Tag    uint8
		Pad    [3]byte
		Length uint32
	}{Tag: tag, Length: uint32(len(payload))}
	if err := binary.Write(buf, binary.LittleEndian, head); err != nil {
		return err
	}
	buf.Write(payload)
	buf.Write(padding(len(payload), sectionAlign))
	return nil
}

// encoder appends little endian fields to a section payload. The first
// failure sticks and later writes are dropped.
type encoder struct {
	buf *bytes.Buffer
	err error
}

func newEncoder() *encoder { return &encoder{buf: &bytes.Buffer{}} }

func (e *encoder) put(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.buf, binary.LittleEndian, v)
}

func (e *encoder) u8(v uint8)    { e.put(v) }
func (e *encoder) u32(v uint32)  { e.put(v) }
func (e *encoder) u64(v uint64)  { e.put(v) }
func (e *encoder) i64(v int64)   { e.put(v) }
func (e *encoder) f64(v float64) { e.put(v) }
func (e *encoder) flag(v bool)   { e.u8(boolByte(v)) }
func (e *encoder) count(n int)   { e.u32(uint32(n)) }

func (e *encoder) id(v core.Identity) { e.put(v) }

func (e *encoder) str(s string) {
	e.count(len(s))
	if e.err == nil {
		e.buf.WriteString(s)
	}
}

func (e *encoder) strs(list []string) {
	e.count(len(list))
	for _, s := range list {
		e.str(s)
	}
}

func (e *encoder) strmap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	e.count(len(keys))
	for _, k := range keys {
		e.str(k)
		e.str(m[k])
	}
}

func (e *encoder) ints(values []int64) {
	e.count(len(values))
	for _, v := range values {
		e.i64(v)
	}
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

func writeAxes(e *encoder, axes []scheme.Axis) {
	e.count(len(axes))
	for _, a := range axes {
		e.str(a.Name)
		e.u8(uint8(a.Kind))
		e.i64(a.Period)
		e.str(a.Related)
		e.str(a.Unit)
		e.strmap(a.Metadata)
	}
}

func writePoints(e *encoder, points []core.Segment) {
	e.count(len(points))
	for _, p := range points {
		e.ints(p.Coordinate())
	}
}

func writeRelations(e *encoder, rels []scheme.Relation) {
	e.count(len(rels))
	for _, r := range rels {
		e.id(r.From)
		e.id(r.To)
		e.u8(uint8(r.Kind))
		e.u8(uint8(r.Adjacency))
		e.u8(uint8(r.Topology))
		e.u8(uint8(r.Hierarchy))
		e.i64(int64(r.Depth))
		e.u8(uint8(r.Dependency))
		e.u8(uint8(r.Symmetry))
		e.str(r.Class)
		e.str(r.Predicate)
		e.flag(r.Weighted)
		e.f64(r.Weight)
		e.strmap(r.Metadata)
	}
}

func writeLayout(e *encoder, s *scheme.Basic) {
	l := s.Layout()
	p := l.Params()
	e.u8(uint8(l.Kind()))
	e.u64(p.Space)
	e.ints(p.Extents)
	e.ints(p.Blocks)
	e.ints(p.Origin)
	e.u32(uint32(p.Bits))
	e.str(p.Name)
}

func writePolicy(e *encoder, p scheme.ObservationPolicy) {
	e.u8(uint8(p.Resolution.Kind))
	e.str(p.Resolution.Name)
	e.f64(p.Resolution.Temperature)
	e.strmap(p.Resolution.Params)
	e.count(len(p.Triggers))
	for _, t := range p.Triggers {
		e.u8(uint8(t.Kind))
		e.i64(int64(t.Interval))
		e.f64(t.Threshold)
		e.str(t.Event)
	}
	e.u8(uint8(p.Priority))
	e.strs(p.Observers)
	e.strs(p.Constraints)
	e.strmap(p.Metadata)
}

func writeConstraints(e *encoder, cs []scheme.StructuralConstraint) {
	e.count(len(cs))
	for _, sc := range cs {
		c := sc.Constraint
		a, b := c.Bounds()
		e.u8(uint8(c.Kind()))
		e.i64(int64(c.Axis()))
		e.i64(a)
		e.i64(b)
		e.str(c.Name())
		e.str(c.Describe())
		e.u8(uint8(sc.Type))
		e.u8(uint8(sc.Scope.Kind))
		e.count(len(sc.Scope.Points))
		for _, id := range sc.Scope.Points {
			e.id(id)
		}
		e.i64(int64(sc.Scope.Axis))
	}
}
