package field

import "github.com/sbl8/ssccs/core"

// Composition records how two fields judge the same point.
type Composition struct {
	First  bool
	Second bool
}

// Compose checks p against both fields. Neither field is modified.
func Compose(a, b *Field, p core.Segment) Composition {
	c := p.Coordinate()
	return Composition{First: a.Allows(c), Second: b.Allows(c)}
}

// Both reports whether both fields allow the point.
func (c Composition) Both() bool { return c.First && c.Second }

// Either reports whether at least one field allows the point.
func (c Composition) Either() bool { return c.First || c.Second }

func (c Composition) String() string {
	if c.Both() {
		return "compatible"
	}
	return "incompatible"
}
