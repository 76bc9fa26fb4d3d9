package hitbox

import (
	"github.com/plate/engine/internal/geom"
)

// shape is a hitbox leaf moved into world space. Boxes stay boxes only
// while the transform keeps them axis-aligned, and circles stay circles
// only under uniform scale; otherwise both become polygons.
type shape struct {
	kind       Kind
	box        geom.AABB
	circle     geom.Circle
	line       geom.Line
	poly       geom.Polygon
	degenerate bool
}

func toWorld(h Hitbox, t geom.Transform) shape {
	switch h.Kind {
	case Box:
		if h.Box.Degenerate() {
			return shape{degenerate: true}
		}
		if t.IsRectInvariant() {
			b := t.ApplyBox(h.Box)
			return shape{kind: Box, box: b, degenerate: b.Degenerate()}
		}
		p := geom.BoxPolygon(h.Box).Transformed(t)
		return shape{kind: Polygon, poly: p, degenerate: p.Degenerate()}
	case Circle:
		if h.Circle.Radius <= 0 {
			return shape{degenerate: true}
		}
		if t.IsUniformScale() {
			c := t.CircleEnclosing(h.Circle)
			return shape{kind: Circle, circle: c, degenerate: c.Radius <= 0}
		}
		p := geom.TessellateCircle(h.Circle, geom.CircleSegments).Transformed(t)
		return shape{kind: Polygon, poly: p, degenerate: p.Degenerate()}
	case Line, OneWay:
		l := t.ApplyLine(h.Line)
		return shape{kind: h.Kind, line: l, degenerate: l.P1.ApproxEqual(l.P2)}
	case Polygon:
		if h.Vertices.Degenerate() {
			return shape{degenerate: true}
		}
		p := h.Vertices.Transformed(t)
		return shape{kind: Polygon, poly: p, degenerate: p.Degenerate()}
	}
	return shape{degenerate: true}
}

// Overlap reports whether a under ta overlaps b under tb. da and db are the
// displacements of each owner this frame; they only matter for one-way
// lines, which block shapes moving into them from their solid side.
func Overlap(a Hitbox, ta geom.Transform, da geom.Vector2, b Hitbox, tb geom.Transform, db geom.Vector2) bool {
	if a.Kind == None || b.Kind == None {
		return false
	}
	if a.Kind == Composite {
		if !touches(a.WorldBounds(ta), b.WorldBounds(tb)) {
			return false
		}
		for _, c := range a.Children {
			if Overlap(c, ta, da, b, tb, db) {
				return true
			}
		}
		return false
	}
	if b.Kind == Composite {
		if !touches(a.WorldBounds(ta), b.WorldBounds(tb)) {
			return false
		}
		for _, c := range b.Children {
			if Overlap(a, ta, da, c, tb, db) {
				return true
			}
		}
		return false
	}

	sa, sb := toWorld(a, ta), toWorld(b, tb)
	if sa.degenerate || sb.degenerate {
		return false
	}
	if sa.kind == OneWay && !blocks(sa.line, db.Sub(da)) {
		return false
	}
	if sb.kind == OneWay && !blocks(sb.line, da.Sub(db)) {
		return false
	}
	return shapesOverlap(sa, sb)
}

// blocks reports whether motion rel, measured relative to a one-way line,
// comes from the solid side. Resting contact counts as blocked.
func blocks(l geom.Line, rel geom.Vector2) bool {
	return rel.Dot(l.Normal()) <= 0
}

func touches(a, b geom.AABB) bool {
	return a.Left <= b.Right+geom.Epsilon && b.Left <= a.Right+geom.Epsilon &&
		a.Top <= b.Bottom+geom.Epsilon && b.Top <= a.Bottom+geom.Epsilon
}

func isLine(k Kind) bool { return k == Line || k == OneWay }

func shapesOverlap(a, b shape) bool {
	switch {
	case a.kind == Box && b.kind == Box:
		return span(a.box.Left, a.box.Right, b.box.Left, b.box.Right) > geom.Epsilon &&
			span(a.box.Top, a.box.Bottom, b.box.Top, b.box.Bottom) > geom.Epsilon
	case a.kind == Circle && b.kind == Circle:
		r := a.circle.Radius + b.circle.Radius
		return a.circle.Center.DistanceSq(b.circle.Center) < (r-geom.Epsilon)*(r-geom.Epsilon)
	case isLine(a.kind) && isLine(b.kind):
		return a.line.Intersects(b.line)
	}
	_, ok := sat(convexOf(a), convexOf(b))
	return ok
}

func span(loA, hiA, loB, hiB float32) float32 {
	return geom.Min(hiA, hiB) - geom.Max(loA, loB)
}

// Separation returns the shortest vector that moves a out of b. ok is false
// when they do not overlap or no depth can be measured, as with two lines.
func Separation(a Hitbox, ta geom.Transform, b Hitbox, tb geom.Transform) (geom.Vector2, bool) {
	if a.Kind == None || b.Kind == None {
		return geom.Vector2{}, false
	}
	if a.Kind == Composite || b.Kind == Composite {
		as, bs := leaves(a), leaves(b)
		var best geom.Vector2
		found := false
		for _, ca := range as {
			for _, cb := range bs {
				v, ok := Separation(ca, ta, cb, tb)
				if ok && v.MagnitudeSq() > best.MagnitudeSq() {
					best, found = v, true
				}
			}
		}
		return best, found
	}

	sa, sb := toWorld(a, ta), toWorld(b, tb)
	if sa.degenerate || sb.degenerate {
		return geom.Vector2{}, false
	}
	switch {
	case sa.kind == Box && sb.kind == Box:
		return boxSeparation(sa.box, sb.box)
	case sa.kind == Circle && sb.kind == Circle:
		return circleSeparation(sa.circle, sb.circle)
	case isLine(sa.kind) && isLine(sb.kind):
		return geom.Vector2{}, false
	}
	return sat(convexOf(sa), convexOf(sb))
}

func leaves(h Hitbox) []Hitbox {
	if h.Kind != Composite {
		return []Hitbox{h}
	}
	var out []Hitbox
	for _, c := range h.Children {
		out = append(out, leaves(c)...)
	}
	return out
}

func boxSeparation(a, b geom.AABB) (geom.Vector2, bool) {
	left := a.Right - b.Left  // push a left by this much
	right := b.Right - a.Left // push a right by this much
	up := a.Bottom - b.Top
	down := b.Bottom - a.Top
	if left <= geom.Epsilon || right <= geom.Epsilon || up <= geom.Epsilon || down <= geom.Epsilon {
		return geom.Vector2{}, false
	}
	x := geom.Vector2{X: -left}
	if right < left {
		x = geom.Vector2{X: right}
	}
	y := geom.Vector2{Y: -up}
	if down < up {
		y = geom.Vector2{Y: down}
	}
	if geom.Abs(x.X) <= geom.Abs(y.Y) {
		return x, true
	}
	return y, true
}

func circleSeparation(a, b geom.Circle) (geom.Vector2, bool) {
	d := a.Center.Sub(b.Center)
	dist := d.Magnitude()
	depth := a.Radius + b.Radius - dist
	if depth <= geom.Epsilon {
		return geom.Vector2{}, false
	}
	dir := geom.Vec(0, -1)
	if dist > 0 {
		dir = d.Scale(1 / dist)
	}
	return dir.Scale(depth), true
}

// convex is the common form used by the separating axis test: a point set
// (two points for a segment) or a circle.
type convex struct {
	pts    geom.Polygon
	circle geom.Circle
	round  bool
}

func convexOf(s shape) convex {
	switch s.kind {
	case Box:
		return convex{pts: geom.BoxPolygon(s.box)}
	case Circle:
		return convex{circle: s.circle, round: true}
	case Line, OneWay:
		return convex{pts: geom.Polygon{s.line.P1, s.line.P2}}
	}
	return convex{pts: s.poly}
}

func (c convex) project(axis geom.Vector2) (lo, hi float32) {
	if c.round {
		m := c.circle.Center.Dot(axis)
		return m - c.circle.Radius, m + c.circle.Radius
	}
	lo = c.pts[0].Dot(axis)
	hi = lo
	for _, p := range c.pts[1:] {
		d := p.Dot(axis)
		lo = geom.Min(lo, d)
		hi = geom.Max(hi, d)
	}
	return lo, hi
}

func (c convex) axes(dst []geom.Vector2) []geom.Vector2 {
	if c.round {
		return dst
	}
	n := len(c.pts)
	if n == 2 {
		n = 1
	}
	for i := 0; i < n; i++ {
		e := c.pts[(i+1)%len(c.pts)].Sub(c.pts[i])
		if e.IsZero() {
			continue
		}
		dst = append(dst, e.Rotated90CW().Normalized())
	}
	return dst
}

// closestAxis returns the axis from a circle center to the nearest vertex
// of a point set.
func closestAxis(center geom.Vector2, pts geom.Polygon) geom.Vector2 {
	best := pts[0]
	bestD := best.DistanceSq(center)
	for _, p := range pts[1:] {
		if d := p.DistanceSq(center); d < bestD {
			best, bestD = p, d
		}
	}
	return best.Sub(center).Normalized()
}

// sat runs the separating axis test and returns the minimum translation
// vector that pushes a out of b.
func sat(a, b convex) (geom.Vector2, bool) {
	axes := make([]geom.Vector2, 0, 16)
	axes = a.axes(axes)
	axes = b.axes(axes)
	switch {
	case a.round && b.round:
		axes = append(axes, a.circle.Center.Sub(b.circle.Center).Normalized())
	case a.round:
		axes = append(axes, closestAxis(a.circle.Center, b.pts))
	case b.round:
		axes = append(axes, closestAxis(b.circle.Center, a.pts))
	}

	var mtv geom.Vector2
	best := float32(-1)
	for _, axis := range axes {
		if axis.IsZero() {
			continue
		}
		loA, hiA := a.project(axis)
		loB, hiB := b.project(axis)
		back := hiA - loB // move a along -axis
		fwd := hiB - loA  // move a along +axis
		if back <= geom.Epsilon || fwd <= geom.Epsilon {
			return geom.Vector2{}, false
		}
		depth, dir := fwd, axis
		if back < fwd {
			depth, dir = back, axis.Neg()
		}
		if best < 0 || depth < best {
			best, mtv = depth, dir.Scale(depth)
		}
	}
	if best < 0 {
		return geom.Vector2{}, false
	}
	return mtv, true
}
