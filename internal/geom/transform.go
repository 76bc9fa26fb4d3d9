package geom

import (
	"math"

	"github.com/plate/engine/internal/core/errs"
)

var NonInvertible = errs.New(30, "Transform has a zero determinant")

// Transform is the upper 2x3 part of a homogeneous 3x3 matrix whose last
// row is (0, 0, 1).
//
//	| M11 M12 M13 |
//	| M21 M22 M23 |
type Transform struct {
	M11, M12, M13 float32
	M21, M22, M23 float32
}

func Identity() Transform {
	return Transform{M11: 1, M22: 1}
}

func Translation(v Vector2) Transform {
	return Transform{M11: 1, M13: v.X, M22: 1, M23: v.Y}
}

func Rotation(angle float32) Transform {
	s, c := sincos(angle)
	return Transform{M11: c, M12: -s, M21: s, M22: c}
}

func Scaling(s Vector2) Transform {
	return Transform{M11: s.X, M22: s.Y}
}

func UniformScaling(s float32) Transform {
	return Scaling(Vector2{s, s})
}

// RotTrans rotates then translates.
func RotTrans(angle float32, pos Vector2) Transform {
	s, c := sincos(angle)
	return Transform{M11: c, M12: -s, M13: pos.X, M21: s, M22: c, M23: pos.Y}
}

// ScalTrans scales then translates.
func ScalTrans(scale, pos Vector2) Transform {
	return Transform{M11: scale.X, M13: pos.X, M22: scale.Y, M23: pos.Y}
}

// ScalRotTrans scales, then rotates, then translates.
func ScalRotTrans(scale Vector2, angle float32, pos Vector2) Transform {
	s, c := sincos(angle)
	return Transform{
		M11: c * scale.X, M12: -s * scale.Y, M13: pos.X,
		M21: s * scale.X, M22: c * scale.Y, M23: pos.Y,
	}
}

func sincos(angle float32) (float32, float32) {
	s, c := math.Sincos(float64(angle))
	return float32(s), float32(c)
}

// Mul returns t*o, which applies o first.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		M11: t.M11*o.M11 + t.M12*o.M21,
		M12: t.M11*o.M12 + t.M12*o.M22,
		M13: t.M11*o.M13 + t.M12*o.M23 + t.M13,
		M21: t.M21*o.M11 + t.M22*o.M21,
		M22: t.M21*o.M12 + t.M22*o.M22,
		M23: t.M21*o.M13 + t.M22*o.M23 + t.M23,
	}
}

func (t Transform) Determinant() float32 {
	return t.M11*t.M22 - t.M12*t.M21
}

// Inverse fails with NonInvertible when the determinant is zero.
func (t Transform) Inverse() (Transform, error) {
	det := t.Determinant()
	if det == 0 {
		return Transform{}, NonInvertible
	}
	return Transform{
		M11: t.M22 / det,
		M12: -t.M12 / det,
		M13: (t.M12*t.M23 - t.M13*t.M22) / det,
		M21: -t.M21 / det,
		M22: t.M11 / det,
		M23: (t.M13*t.M21 - t.M11*t.M23) / det,
	}, nil
}

func (t Transform) Apply(p Vector2) Vector2 {
	return Vector2{
		t.M11*p.X + t.M12*p.Y + t.M13,
		t.M21*p.X + t.M22*p.Y + t.M23,
	}
}

// ApplyVector applies only the linear part, for displacements.
func (t Transform) ApplyVector(v Vector2) Vector2 {
	return Vector2{t.M11*v.X + t.M12*v.Y, t.M21*v.X + t.M22*v.Y}
}

// ApplyBox returns the smallest box enclosing the transformed box.
func (t Transform) ApplyBox(b AABB) AABB {
	switch {
	case t.IsIdentity():
		return b
	case t.IsTranslateOnly():
		return b.Translate(t.TranslationPart())
	case t.IsRectInvariant():
		return BoxFromPoints(t.Apply(b.TopLeft()), t.Apply(b.BottomRight()))
	}
	c := b.Corners()
	out := BoxFromPoints(t.Apply(c[0]), t.Apply(c[2]))
	out = out.Union(BoxFromPoints(t.Apply(c[1]), t.Apply(c[3])))
	return out
}

// ApplyCircle returns the bounding box of the ellipse c maps to.
func (t Transform) ApplyCircle(c Circle) AABB {
	center := t.Apply(c.Center)
	hw := c.Radius * Sqrt(t.M11*t.M11+t.M12*t.M12)
	hh := c.Radius * Sqrt(t.M21*t.M21+t.M22*t.M22)
	return AABB{center.X - hw, center.X + hw, center.Y - hh, center.Y + hh}
}

// CircleEnclosing maps c to a circle that encloses its transformed ellipse.
func (t Transform) CircleEnclosing(c Circle) Circle {
	r := c.Radius * Max(Abs(t.ScaleX()), Abs(t.ScaleY()))
	return Circle{Center: t.Apply(c.Center), Radius: r}
}

func (t Transform) ApplyLine(l Line) Line {
	return Line{P1: t.Apply(l.P1), P2: t.Apply(l.P2)}
}

func (t Transform) TranslationPart() Vector2 {
	return Vector2{t.M13, t.M23}
}

// ScaleX and ScaleY assume the matrix has no shear.
func (t Transform) ScaleX() float32 {
	return float32(math.Copysign(float64(Sqrt(t.M11*t.M11+t.M21*t.M21)), float64(t.Determinant())))
}

func (t Transform) ScaleY() float32 {
	return Sqrt(t.M12*t.M12 + t.M22*t.M22)
}

func (t Transform) Rotation() float32 {
	return float32(math.Atan2(float64(t.M21), float64(t.M11)))
}

func (t Transform) IsIdentity() bool {
	return t == Identity()
}

func (t Transform) IsTranslateOnly() bool {
	return t.M11 == 1 && t.M12 == 0 && t.M21 == 0 && t.M22 == 1
}

func (t Transform) IsUniformScale() bool {
	return NearlyEqual(Abs(t.ScaleX()), Abs(t.ScaleY()))
}

// IsRectInvariant reports a rotation by a multiple of 90 degrees, so boxes
// stay axis-aligned.
func (t Transform) IsRectInvariant() bool {
	return (NearlyZero(t.M12) && NearlyZero(t.M21)) || (NearlyZero(t.M11) && NearlyZero(t.M22))
}

// ApproxEqual compares every coefficient within Epsilon.
func (t Transform) ApproxEqual(o Transform) bool {
	return NearlyEqual(t.M11, o.M11) && NearlyEqual(t.M12, o.M12) && NearlyEqual(t.M13, o.M13) &&
		NearlyEqual(t.M21, o.M21) && NearlyEqual(t.M22, o.M22) && NearlyEqual(t.M23, o.M23)
}

func NearlyZero(x float32) bool { return NearlyEqual(x, 0) }
