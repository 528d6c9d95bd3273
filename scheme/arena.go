package scheme

import (
	"slices"

	"github.com/sbl8/ssccs/core"
)

// Handle is a small dense index of a point inside one scheme's arena.
// Handles are only meaningful for the scheme that issued them.
type Handle uint32

// InvalidHandle is returned when a lookup misses.
const InvalidHandle = ^Handle(0)

// pointArena stores the points of a scheme contiguously, ordered by
// identity, with a parallel identity -> handle table. Identity stays the
// external equality contract; handles let hot paths index slices instead
// of hashing 32-byte keys.
type pointArena struct {
	points []core.Segment
	index  map[core.Identity]Handle
}

// newPointArena deduplicates segs by identity and freezes them in identity order.
func newPointArena(segs []core.Segment) *pointArena {
	set := make(core.SegmentSet, len(segs))
	for _, s := range segs {
		set.Add(s)
	}
	points := set.Sorted()
	a := &pointArena{
		points: points,
		index:  make(map[core.Identity]Handle, len(points)),
	}
	for i, p := range points {
		a.index[p.ID()] = Handle(i)
	}
	return a
}

func (a *pointArena) lookup(id core.Identity) (Handle, bool) {
	h, ok := a.index[id]
	return h, ok
}

func (a *pointArena) has(id core.Identity) bool {
	_, ok := a.index[id]
	return ok
}

func (a *pointArena) at(h Handle) (core.Segment, bool) {
	if int(h) >= len(a.points) {
		return core.Segment{}, false
	}
	return a.points[h], true
}

func (a *pointArena) get(id core.Identity) (core.Segment, bool) {
	h, ok := a.index[id]
	if !ok {
		return core.Segment{}, false
	}
	return a.points[h], true
}

func (a *pointArena) len() int { return len(a.points) }

// all returns a copy of the points in identity order.
func (a *pointArena) all() []core.Segment { return slices.Clone(a.points) }

func (a *pointArena) ids() []core.Identity {
	out := make([]core.Identity, len(a.points))
	for i, p := range a.points {
		out[i] = p.ID()
	}
	return out
}
