package entity

import (
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/hitbox"
)

const (
	// ContactEpsilon is the penetration below which bodies count as
	// touching.
	ContactEpsilon = 0.1
	// MaxEject caps how far each of two stuck bodies is pushed per frame.
	MaxEject = 100
)

// moveToContact backs a and b along this frame's motion until their
// solidity hitboxes just touch.
func moveToContact(a, b *Entity) {
	ha, hb := a.Animation.Solidity.Hitbox, b.Animation.Solidity.Hitbox
	ta, tb := a.SolidityTransform(), b.SolidityTransform()

	mtv, ok := hitbox.Separation(ha, ta, hb, tb)
	if !ok || mtv.Magnitude() < ContactEpsilon {
		return
	}

	da, db := a.Displacement(), b.Displacement()
	if da.IsZero() && db.IsZero() {
		eject(a, b, mtv)
		return
	}

	switch {
	case ha.Kind == hitbox.Box && hb.Kind == hitbox.Box && ta.IsRectInvariant() && tb.IsRectInvariant():
		contactBoxes(a, b, ta.ApplyBox(ha.Box), tb.ApplyBox(hb.Box), da, db)
	case ha.Kind == hitbox.Circle && hb.Kind == hitbox.Circle && ta.IsUniformScale() && tb.IsUniformScale():
		contactCircles(a, b, ta.CircleEnclosing(ha.Circle), tb.CircleEnclosing(hb.Circle), da, db)
	default:
		// Weighted by how far each body moved.
		ma, mb := da.Magnitude(), db.Magnitude()
		total := ma + mb
		a.Position = a.Position.Add(mtv.Scale(ma / total))
		b.Position = b.Position.Sub(mtv.Scale(mb / total))
	}
}

// eject separates two bodies that overlap without having moved: each takes
// half of mtv in opposite directions, at most MaxEject.
func eject(a, b *Entity, mtv geom.Vector2) {
	half := mtv.Scale(0.5)
	if half.Magnitude() > MaxEject {
		half = half.Normalized().Scale(MaxEject)
		if half.Magnitude() > MaxEject {
			half = half.Scale(MaxEject / half.Magnitude())
		}
	}
	a.Position = a.Position.Add(half)
	b.Position = b.Position.Sub(half)
}

// contactBoxes resolves axis-aligned boxes. The overlap on each axis is
// measured in the direction of relative motion; the axis whose overlap
// accumulated last is the one undone, and each body absorbs its share of
// the motion on that axis.
func contactBoxes(a, b *Entity, ba, bb geom.AABB, da, db geom.Vector2) {
	rel := da.Sub(db)
	if rel.IsZero() {
		da, db = geom.Vec(0, 1), geom.Vector2{}
		rel = da
	}
	over := geom.Vec(
		signedOverlap(rel.X, ba.Left, ba.Right, bb.Left, bb.Right),
		signedOverlap(rel.Y, ba.Top, ba.Bottom, bb.Top, bb.Bottom),
	)

	if rel.Cross(over)*geom.Sign(over.X*over.Y) > 0 {
		if rel.X == 0 {
			return
		}
		a.Position.X -= over.X * da.X / rel.X
		b.Position.X -= over.X * db.X / rel.X
		return
	}
	if rel.Y == 0 {
		return
	}
	a.Position.Y -= over.Y * da.Y / rel.Y
	b.Position.Y -= over.Y * db.Y / rel.Y
}

// signedOverlap is how far a has entered b along the sign of r. Without
// motion on the axis the box centers decide the side.
func signedOverlap(r, aLo, aHi, bLo, bHi float32) float32 {
	forward := r > 0 || (r == 0 && aLo+aHi < bLo+bHi)
	if forward {
		return aHi - bLo
	}
	return aLo - bHi
}

// contactCircles backs both circles along the line of centers in
// proportion to how fast each approached the other.
func contactCircles(a, b *Entity, ca, cb geom.Circle, da, db geom.Vector2) {
	d := ca.Center.Sub(cb.Center)
	dist := d.Magnitude()
	depth := ca.Radius + cb.Radius - dist
	if depth <= 0 {
		return
	}
	n := geom.Vec(0, -1)
	if dist > 0 {
		n = d.Scale(1 / dist)
	}
	wa := geom.Max(0, -da.Dot(n))
	wb := geom.Max(0, db.Dot(n))
	total := wa + wb
	if total == 0 {
		wa, wb, total = 1, 1, 2
	}
	a.Position = a.Position.Add(n.Scale(depth * wa / total))
	b.Position = b.Position.Sub(n.Scale(depth * wb / total))
}
