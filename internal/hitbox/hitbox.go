// Package hitbox implements the collision shape variant and the overlap
// tests between transformed shapes.
package hitbox

import (
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
)

var (
	InvalidHitboxType = errs.New(210, "Unknown hitbox type")
	InvalidPolygon    = errs.New(211, "Polygon must be convex with at least three vertices")
)

// Kind tags the active shape of a Hitbox. Values match the binary format.
type Kind uint8

const (
	None Kind = iota
	Box
	Circle
	Line
	OneWay
	Polygon
	Composite
)

var kindNames = [...]string{"none", "box", "circle", "line", "oneway", "polygon", "composite"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a shape name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return None, false
}

// Hitbox is a shape in local space. Only the fields of the active Kind are
// meaningful. For Polygon and Composite, bounds caches the enclosing box.
type Hitbox struct {
	Kind     Kind
	Box      geom.AABB
	Circle   geom.Circle
	Line     geom.Line
	Vertices geom.Polygon
	Children []Hitbox

	bounds geom.AABB
}

func NewBox(b geom.AABB) Hitbox {
	return Hitbox{Kind: Box, Box: b}
}

func NewCircle(center geom.Vector2, radius float32) Hitbox {
	return Hitbox{Kind: Circle, Circle: geom.Circle{Center: center, Radius: radius}}
}

func NewLine(p1, p2 geom.Vector2) Hitbox {
	return Hitbox{Kind: Line, Line: geom.Line{P1: p1, P2: p2}}
}

// NewOneWay builds a line that only blocks motion coming from the side its
// normal points to.
func NewOneWay(p1, p2 geom.Vector2) Hitbox {
	return Hitbox{Kind: OneWay, Line: geom.Line{P1: p1, P2: p2}}
}

// NewPolygon validates convexity.
func NewPolygon(vertices geom.Polygon) (Hitbox, error) {
	if !vertices.IsConvex() {
		return Hitbox{}, errs.Detailed(InvalidPolygon, "%d vertices", len(vertices))
	}
	v := make(geom.Polygon, len(vertices))
	copy(v, vertices)
	return Hitbox{Kind: Polygon, Vertices: v, bounds: v.Bounds()}, nil
}

func NewComposite(children ...Hitbox) Hitbox {
	h := Hitbox{Kind: Composite, Children: children}
	h.bounds = compositeBounds(children)
	return h
}

func compositeBounds(children []Hitbox) geom.AABB {
	var b geom.AABB
	first := true
	for _, c := range children {
		if c.Kind == None {
			continue
		}
		if first {
			b = c.Bounds()
			first = false
			continue
		}
		b = b.Union(c.Bounds())
	}
	return b
}

// Bounds returns the local-space enclosing box.
func (h Hitbox) Bounds() geom.AABB {
	switch h.Kind {
	case Box:
		return h.Box
	case Circle:
		return h.Circle.Bounds()
	case Line, OneWay:
		return h.Line.Bounds()
	case Polygon, Composite:
		return h.bounds
	}
	return geom.AABB{}
}

// WorldBounds returns the enclosing box of h after t.
func (h Hitbox) WorldBounds(t geom.Transform) geom.AABB {
	switch h.Kind {
	case Box:
		return t.ApplyBox(h.Box)
	case Circle:
		return t.ApplyCircle(h.Circle)
	case Line, OneWay:
		return t.ApplyLine(h.Line).Bounds()
	case Polygon:
		return h.Vertices.Transformed(t).Bounds()
	case Composite:
		var b geom.AABB
		first := true
		for _, c := range h.Children {
			if c.Kind == None {
				continue
			}
			cb := c.WorldBounds(t)
			if first {
				b, first = cb, false
			} else {
				b = b.Union(cb)
			}
		}
		return b
	}
	return geom.AABB{}
}

// HeadFoot returns the top and bottom y extents in local space.
func (h Hitbox) HeadFoot() (head, foot float32) {
	if h.Kind == None {
		return 0, 0
	}
	b := h.Bounds()
	return b.Top, b.Bottom
}
