package geom

// AABB is an axis-aligned box. Left <= Right and Top <= Bottom.
type AABB struct {
	Left, Right, Top, Bottom float32
}

// BoxFromPoints builds the box spanned by two corners in any order.
func BoxFromPoints(a, b Vector2) AABB {
	return AABB{
		Left:   Min(a.X, b.X),
		Right:  Max(a.X, b.X),
		Top:    Min(a.Y, b.Y),
		Bottom: Max(a.Y, b.Y),
	}
}

// BoxFromSize builds a box with its top-left corner at pos.
func BoxFromSize(pos Vector2, w, h float32) AABB {
	return BoxFromPoints(pos, Vector2{pos.X + w, pos.Y + h})
}

func (b AABB) Width() float32 { return b.Right - b.Left }
func (b AABB) Height() float32 { return b.Bottom - b.Top }
func (b AABB) Area() float32 { return b.Width() * b.Height() }

func (b AABB) TopLeft() Vector2 { return Vector2{b.Left, b.Top} }
func (b AABB) TopRight() Vector2 { return Vector2{b.Right, b.Top} }
func (b AABB) BottomLeft() Vector2 { return Vector2{b.Left, b.Bottom} }
func (b AABB) BottomRight() Vector2 { return Vector2{b.Right, b.Bottom} }

func (b AABB) Center() Vector2 {
	return Vector2{(b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2}
}

// Corners returns the four corners clockwise from top-left.
func (b AABB) Corners() [4]Vector2 {
	return [4]Vector2{b.TopLeft(), b.TopRight(), b.BottomRight(), b.BottomLeft()}
}

// Union returns the smallest box enclosing both.
func (b AABB) Union(o AABB) AABB {
	return AABB{
		Left:   Min(b.Left, o.Left),
		Right:  Max(b.Right, o.Right),
		Top:    Min(b.Top, o.Top),
		Bottom: Max(b.Bottom, o.Bottom),
	}
}

// Intersect returns the overlapping region. ok is false when the boxes
// do not touch.
func (b AABB) Intersect(o AABB) (AABB, bool) {
	r := AABB{
		Left:   Max(b.Left, o.Left),
		Right:  Min(b.Right, o.Right),
		Top:    Max(b.Top, o.Top),
		Bottom: Min(b.Bottom, o.Bottom),
	}
	if r.Left > r.Right || r.Top > r.Bottom {
		return AABB{}, false
	}
	return r, true
}

// Overlaps reports a strictly positive-area intersection.
func (b AABB) Overlaps(o AABB) bool {
	return b.Left < o.Right && o.Left < b.Right && b.Top < o.Bottom && o.Top < b.Bottom
}

func (b AABB) Translate(v Vector2) AABB {
	return AABB{b.Left + v.X, b.Right + v.X, b.Top + v.Y, b.Bottom + v.Y}
}

func (b AABB) Contains(p Vector2) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

// Degenerate reports a box with no area.
func (b AABB) Degenerate() bool {
	return b.Width() <= 0 || b.Height() <= 0
}
