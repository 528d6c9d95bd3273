package layout

import (
	"sync"

	"github.com/sbl8/ssccs/core"
)

// mapFn computes an offset for an origin-adjusted coordinate.
type mapFn func(p *Params, c core.Coordinate) (uint64, bool)

// catalog maps kinds to mapping functions
var catalog = [...]mapFn{
	KindLinear:       mapLinear,
	KindRowMajor:     mapRowMajor,
	KindColumnMajor:  mapColumnMajor,
	KindZOrder:       mapZOrder,
	KindHilbert:      mapHilbert,
	KindGray:         mapGray,
	KindHierarchical: mapHierarchical,
	KindCustom:       mapCustom,
}

// Strategy is a user-supplied mapping selected by name.
type Strategy interface {
	Offset(c core.Coordinate) (uint64, bool)
}

// StrategyFunc adapts a function to Strategy
type StrategyFunc func(c core.Coordinate) (uint64, bool)

// Offset calls f
func (f StrategyFunc) Offset(c core.Coordinate) (uint64, bool) { return f(c) }

var (
	strategiesMu sync.RWMutex
	strategies   = map[string]Strategy{}
)

// Register installs a named strategy for Custom layouts. A later
// registration under the same name replaces the earlier one.
func Register(name string, s Strategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	strategies[name] = s
}

// Lookup returns the strategy registered under name
func Lookup(name string) (Strategy, bool) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[name]
	return s, ok
}

func mapCustom(p *Params, c core.Coordinate) (uint64, bool) {
	s, ok := Lookup(p.Name)
	if !ok {
		return 0, false
	}
	return s.Offset(c)
}

func mapLinear(_ *Params, c core.Coordinate) (uint64, bool) {
	if len(c) == 0 {
		return 0, false
	}
	var acc uint64
	for _, v := range c {
		acc = acc*LinearStride + uint64(v)
	}
	return acc, true
}

// inBox reports whether every component lies in [0, extent).
func inBox(extents []int64, c core.Coordinate) bool {
	if len(c) != len(extents) {
		return false
	}
	for i, v := range c {
		if v < 0 || v >= extents[i] {
			return false
		}
	}
	return true
}

func mapRowMajor(p *Params, c core.Coordinate) (uint64, bool) {
	if !inBox(p.Extents, c) {
		return 0, false
	}
	var off uint64
	for i, v := range c {
		off = off*uint64(p.Extents[i]) + uint64(v)
	}
	return off, true
}

func mapColumnMajor(p *Params, c core.Coordinate) (uint64, bool) {
	if !inBox(p.Extents, c) {
		return 0, false
	}
	var off uint64
	for i := len(c) - 1; i >= 0; i-- {
		off = off*uint64(p.Extents[i]) + uint64(c[i])
	}
	return off, true
}

func mapHierarchical(p *Params, c core.Coordinate) (uint64, bool) {
	if !inBox(p.Extents, c) {
		return 0, false
	}
	var tile, inner, volume uint64 = 0, 0, 1
	for i, v := range c {
		b := p.Blocks[i]
		tiles := (p.Extents[i] + b - 1) / b
		tile = tile*uint64(tiles) + uint64(v/b)
		inner = inner*uint64(b) + uint64(v%b)
		volume *= uint64(b)
	}
	return tile*volume + inner, true
}

// morton interleaves the low bits of every component: bit b of axis d
// lands at position b*len(c) + d.
func morton(bits uint, c core.Coordinate) (uint64, bool) {
	if len(c) == 0 || uint(len(c))*bits > 64 {
		return 0, false
	}
	limit := int64(1) << bits
	for _, v := range c {
		if v < 0 || v >= limit {
			return 0, false
		}
	}
	var code uint64
	dims := uint(len(c))
	for b := uint(0); b < bits; b++ {
		for d, v := range c {
			code |= ((uint64(v) >> b) & 1) << (b*dims + uint(d))
		}
	}
	return code, true
}

func mapZOrder(p *Params, c core.Coordinate) (uint64, bool) {
	return morton(p.Bits, c)
}

func mapGray(p *Params, c core.Coordinate) (uint64, bool) {
	m, ok := morton(p.Bits, c)
	if !ok {
		return 0, false
	}
	return m ^ (m >> 1), true
}

// mapHilbert converts (x, y) to the distance along a Hilbert curve of side 2^order.
func mapHilbert(p *Params, c core.Coordinate) (uint64, bool) {
	if len(c) != 2 {
		return 0, false
	}
	n := int64(1) << p.Bits
	x, y := c[0], c[1]
	if x < 0 || y < 0 || x >= n || y >= n {
		return 0, false
	}
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry int64
		if x&s != 0 {
			rx = 1
		}
		if y&s != 0 {
			ry = 1
		}
		d += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		// rotate the quadrant
		if ry == 0 {
			if rx == 1 {
				x = n - 1 - x
				y = n - 1 - y
			}
			x, y = y, x
		}
	}
	return d, true
}
