// Package explore enumerates the configurations reachable from a point.
//
// The transition graph is the union of structural adjacency and field
// transitions, filtered by the field constraints. It may be cyclic or
// infinite; a Bound is the only thing that guarantees termination, so an
// unbounded walk is refused up front.
package explore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/field"
)

// ErrUnbounded is returned for a Bound that limits neither depth nor size.
var ErrUnbounded = errors.New("explore: bound limits neither depth nor states")

// Bound limits a walk. A zero field means no limit on that dimension, but
// at least one must be set.
type Bound struct {
	// MaxDepth is the largest hop count from the seed that is expanded.
	MaxDepth int
	// MaxStates caps the size of the result.
	MaxStates int
}

// Depth bounds a walk by hop count.
func Depth(n int) Bound { return Bound{MaxDepth: n} }

// States bounds a walk by result size.
func States(n int) Bound { return Bound{MaxStates: n} }

// Validate rejects bounds that cannot terminate.
func (b Bound) Validate() error {
	if b.MaxDepth < 0 || b.MaxStates < 0 {
		return fmt.Errorf("explore: negative bound %+v", b)
	}
	if b.MaxDepth == 0 && b.MaxStates == 0 {
		return ErrUnbounded
	}
	return nil
}

func (b Bound) full(n int) bool { return b.MaxStates > 0 && n >= b.MaxStates }

func (b Bound) expands(depth int) bool { return b.MaxDepth == 0 || depth < b.MaxDepth }

// Stats summarizes one walk.
type Stats struct {
	States    int
	Expanded  int
	MaxDepth  int
	Truncated bool
	Duration  time.Duration
}

type frame struct {
	coord core.Coordinate
	depth int
}

// cancelCheckInterval is how many pops happen between context checks.
const cancelCheckInterval = 1024

// GenerateTree walks from start and returns every reachable point within b.
//
// The walk is a depth first search over an explicit stack. The seed is
// always part of the result. A coordinate is expanded again only when it is
// reached by a shorter path, so the result holds every allowed point within
// MaxDepth hops unless MaxStates cuts the walk short.
func GenerateTree(start core.Segment, f *field.Field, adj field.Adjacency, b Bound) (core.SegmentSet, error) {
	set, _, err := Walk(context.Background(), start, f, adj, b)
	return set, err
}

// Walk is GenerateTree with cancellation and statistics.
func Walk(ctx context.Context, start core.Segment, f *field.Field, adj field.Adjacency, b Bound) (core.SegmentSet, Stats, error) {
	if err := b.Validate(); err != nil {
		return nil, Stats{}, err
	}
	ctx, span := startWalkSpan(ctx, b)
	defer span.End()

	began := time.Now()
	result := core.NewSegmentSet()
	// best holds the smallest depth a coordinate was expanded at.
	best := make(map[string]int)
	stack := []frame{{coord: start.Coordinate(), depth: 0}}
	var stats Stats
	pops := 0

	for len(stack) > 0 {
		if pops++; pops%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				stats.States = result.Len()
				stats.Duration = time.Since(began)
				recordWalkMetrics(ctx, stats, false)
				return nil, stats, fmt.Errorf("explore: walk interrupted after %d states: %w", result.Len(), err)
			}
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := top.coord.Key()
		if d, seen := best[key]; seen && d <= top.depth {
			continue
		}
		best[key] = top.depth
		result.Add(core.NewSegment(top.coord))
		if top.depth > stats.MaxDepth {
			stats.MaxDepth = top.depth
		}

		if b.full(result.Len()) {
			stats.Truncated = len(stack) > 0 || b.expands(top.depth)
			break
		}
		if !b.expands(top.depth) {
			continue
		}
		stats.Expanded++
		for _, next := range field.NextCoordinates(f, top.coord, adj) {
			if d, seen := best[next.Key()]; seen && d <= top.depth+1 {
				continue
			}
			stack = append(stack, frame{coord: next, depth: top.depth + 1})
		}
	}

	stats.States = result.Len()
	stats.Duration = time.Since(began)
	setWalkSpanResult(span, stats)
	recordWalkMetrics(ctx, stats, true)
	return result, stats, nil
}

// ObserveTree walks like GenerateTree and projects every reached point.
// Points the projector or the field refuse are skipped. Distinct points
// with equal projections collapse into one value.
func ObserveTree[T comparable](start core.Segment, f *field.Field, adj field.Adjacency, proj field.Projector[T], b Bound) (map[T]struct{}, error) {
	set, err := GenerateTree(start, f, adj, b)
	if err != nil {
		return nil, err
	}
	values := make(map[T]struct{}, set.Len())
	for _, p := range set {
		if v, ok := field.Observe(f, p, proj); ok {
			values[v] = struct{}{}
		}
	}
	return values, nil
}
