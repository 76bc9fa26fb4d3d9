package geom

import "math"

type Circle struct {
	Center Vector2
	Radius float32
}

func (c Circle) Bounds() AABB {
	return AABB{c.Center.X - c.Radius, c.Center.X + c.Radius, c.Center.Y - c.Radius, c.Center.Y + c.Radius}
}

type Line struct {
	P1, P2 Vector2
}

func (l Line) Bounds() AABB { return BoxFromPoints(l.P1, l.P2) }

func (l Line) Direction() Vector2 { return l.P2.Sub(l.P1) }

// Normal points to the solid side of a one-way line.
func (l Line) Normal() Vector2 { return l.Direction().Rotated90CW().Normalized() }

// Intersects reports whether two segments share a point, including
// collinear overlap and touching endpoints.
func (l Line) Intersects(o Line) bool {
	d1 := orient(o.P1, o.P2, l.P1)
	d2 := orient(o.P1, o.P2, l.P2)
	d3 := orient(l.P1, l.P2, o.P1)
	d4 := orient(l.P1, l.P2, o.P2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(o.P1, o.P2, l.P1)) ||
		(d2 == 0 && onSegment(o.P1, o.P2, l.P2)) ||
		(d3 == 0 && onSegment(l.P1, l.P2, o.P1)) ||
		(d4 == 0 && onSegment(l.P1, l.P2, o.P2))
}

// SideOf returns the signed cross product of p against the line; positive
// values lie on the normal side.
func (l Line) SideOf(p Vector2) float32 {
	return -l.Direction().Cross(p.Sub(l.P1))
}

// ClosestPoint returns the point on the segment nearest to p.
func (l Line) ClosestPoint(p Vector2) Vector2 {
	d := l.Direction()
	lenSq := d.MagnitudeSq()
	if lenSq == 0 {
		return l.P1
	}
	t := Clamp(p.Sub(l.P1).Dot(d)/lenSq, 0, 1)
	return l.P1.Add(d.Scale(t))
}

func orient(a, b, c Vector2) float32 {
	v := b.Sub(a).Cross(c.Sub(a))
	if Abs(v) < Epsilon*Epsilon {
		return 0
	}
	return v
}

func onSegment(a, b, p Vector2) bool {
	return p.X >= Min(a.X, b.X)-Epsilon && p.X <= Max(a.X, b.X)+Epsilon &&
		p.Y >= Min(a.Y, b.Y)-Epsilon && p.Y <= Max(a.Y, b.Y)+Epsilon
}

// Polygon is a convex vertex list in consistent winding order.
type Polygon []Vector2

// Bounds returns the enclosing box of the vertices.
func (p Polygon) Bounds() AABB {
	if len(p) == 0 {
		return AABB{}
	}
	b := AABB{p[0].X, p[0].X, p[0].Y, p[0].Y}
	for _, v := range p[1:] {
		b.Left = Min(b.Left, v.X)
		b.Right = Max(b.Right, v.X)
		b.Top = Min(b.Top, v.Y)
		b.Bottom = Max(b.Bottom, v.Y)
	}
	return b
}

// Degenerate reports fewer than three distinct vertices or no area.
func (p Polygon) Degenerate() bool {
	distinct := 0
	for i, v := range p {
		dup := false
		for _, w := range p[:i] {
			if v.ApproxEqual(w) {
				dup = true
				break
			}
		}
		if !dup {
			distinct++
		}
	}
	if distinct < 3 {
		return true
	}
	return Abs(p.signedArea()) < Epsilon
}

func (p Polygon) signedArea() float32 {
	var a float32
	for i := range p {
		j := (i + 1) % len(p)
		a += p[i].Cross(p[j])
	}
	return a / 2
}

// IsConvex reports whether every turn has the same orientation.
func (p Polygon) IsConvex() bool {
	if len(p) < 3 {
		return false
	}
	var sign float32
	for i := range p {
		a, b, c := p[i], p[(i+1)%len(p)], p[(i+2)%len(p)]
		cr := b.Sub(a).Cross(c.Sub(b))
		if Abs(cr) < Epsilon*Epsilon {
			continue
		}
		if sign == 0 {
			sign = Sign(cr)
		} else if Sign(cr) != sign {
			return false
		}
	}
	return sign != 0
}

// Center returns the vertex centroid.
func (p Polygon) Center() Vector2 {
	var c Vector2
	for _, v := range p {
		c = c.Add(v)
	}
	if len(p) == 0 {
		return c
	}
	return c.Scale(1 / float32(len(p)))
}

// Transformed applies t to every vertex.
func (p Polygon) Transformed(t Transform) Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[i] = t.Apply(v)
	}
	return out
}

// BoxPolygon returns the four corners of b as a polygon.
func BoxPolygon(b AABB) Polygon {
	c := b.Corners()
	return Polygon{c[0], c[1], c[2], c[3]}
}

// CircleSegments is the tessellation used when a circle has to be treated
// as a polygon.
const CircleSegments = 16

// TessellateCircle approximates c with a regular polygon whose vertices lie
// on the circle.
func TessellateCircle(c Circle, segments int) Polygon {
	out := make(Polygon, segments)
	step := 2 * math.Pi / float64(segments)
	for i := range out {
		s, co := math.Sincos(step * float64(i))
		out[i] = Vector2{c.Center.X + c.Radius*float32(co), c.Center.Y + c.Radius*float32(s)}
	}
	return out
}
