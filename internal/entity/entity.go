package entity

import (
	"math"

	"github.com/plate/engine/internal/core/bucket"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/sprite"
)

type Flags uint8

const (
	AnimationEnabled Flags = 1 << iota
	PhysicsEnabled
	RenderingEnabled
	Solid

	DefaultFlags = AnimationEnabled | PhysicsEnabled | RenderingEnabled | Solid
)

// maxTrail bounds the script failures kept on an entity.
const maxTrail = 8

var inf = float32(math.Inf(1))

// Unbounded is the default velocity range.
var Unbounded = geom.AABB{Left: -inf, Right: inf, Top: -inf, Bottom: inf}

// Entity is a simulated object. During the parallel phases an entity's
// behavior may only mutate the entity itself.
type Entity struct {
	ID     uint32
	Object Object

	Sprite    *sprite.Sprite
	Animation *sprite.Animation
	AnimFrame int
	FrameTime float32
	Frame     *sprite.Frame

	Position     geom.Vector2
	LastPos      geom.Vector2
	Velocity     geom.Vector2
	Acceleration geom.Vector2
	VelRange     geom.AABB
	Rotation     float32
	Scale        geom.Vector2

	z          int
	flags      Flags
	class      *class
	system     *System
	handle     bucket.Handle
	controller *input.Controller
	trail      []error
}

func (e *Entity) System() *System { return e.system }

// Class returns the behavior class name, "" for plain entities.
func (e *Entity) Class() string {
	if e.class == nil {
		return ""
	}
	return e.class.Name()
}

func (e *Entity) Z() int { return e.z }

// SetZ changes the draw order.
func (e *Entity) SetZ(z int) {
	if e.z != z {
		e.z = z
		e.system.invalidateRenderOrder()
	}
}

func (e *Entity) Flags() Flags                  { return e.flags }
func (e *Entity) Has(f Flags) bool              { return e.flags&f == f }
func (e *Entity) Controller() *input.Controller { return e.controller }

// SetFlag turns flags on or off.
func (e *Entity) SetFlag(f Flags, on bool) {
	old := e.flags
	if on {
		e.flags |= f
	} else {
		e.flags &^= f
	}
	if (old^e.flags)&RenderingEnabled != 0 {
		e.system.invalidateRenderOrder()
	}
}

// Failures returns the most recent behavior failures of this entity.
func (e *Entity) Failures() []error { return e.trail }

func (e *Entity) record(err error) {
	if len(e.trail) == maxTrail {
		copy(e.trail, e.trail[1:])
		e.trail = e.trail[:maxTrail-1]
	}
	e.trail = append(e.trail, err)
}

// Transform maps sprite-local coordinates into the world.
func (e *Entity) Transform() geom.Transform {
	return geom.ScalRotTrans(e.Scale, e.Rotation, e.Position)
}

// SolidityTransform is Transform without rotation when the animation's
// solidity is fixed.
func (e *Entity) SolidityTransform() geom.Transform {
	if e.Animation != nil && e.Animation.Solidity.Fixed {
		return geom.ScalTrans(e.Scale, e.Position)
	}
	return e.Transform()
}

// Displacement is how far the entity moved this frame.
func (e *Entity) Displacement() geom.Vector2 { return e.Position.Sub(e.LastPos) }

// SetAnimation switches to the named animation of the entity's sprite and
// restarts it.
func (e *Entity) SetAnimation(name string) error {
	if e.Sprite == nil {
		return errs.Detailed(EntityMissingSprite, "entity %d", e.ID)
	}
	a := e.Sprite.Animation(name)
	if a == nil {
		return errs.Detailed(UnknownAnimation, "%s has no animation %q", e.Sprite.Name, name)
	}
	e.setAnimation(a)
	return nil
}

func (e *Entity) setAnimation(a *sprite.Animation) {
	e.Animation = a
	e.AnimFrame = 0
	e.FrameTime = 0
	e.Frame = nil
	if a != nil && len(a.Frames) > 0 {
		e.Frame = a.Frames[0].Frame
	}
}

// advanceAnimation steps frames while the accumulated time exceeds the
// current delay. A zero delay holds the frame. Whole loops through the
// animation are dropped first, so a call visits each frame at most once.
func (e *Entity) advanceAnimation(dt float32) {
	a := e.Animation
	if a == nil || len(a.Frames) == 0 {
		return
	}
	if !(a.Frames[e.AnimFrame].Delay > 0) {
		return
	}
	e.FrameTime += dt
	if math.IsNaN(float64(e.FrameTime)) || math.IsInf(float64(e.FrameTime), 0) {
		e.FrameTime = 0
	}
	if cycle := a.Cycle(); cycle > 0 && e.FrameTime > cycle {
		e.FrameTime = float32(math.Mod(float64(e.FrameTime), float64(cycle)))
	}
	for range len(a.Frames) {
		delay := a.Frames[e.AnimFrame].Delay
		if !(delay > 0) || e.FrameTime <= delay {
			break
		}
		e.FrameTime -= delay
		e.AnimFrame = (e.AnimFrame + 1) % len(a.Frames)
	}
	e.Frame = a.Frames[e.AnimFrame].Frame
}

// integrate advances velocity and position by dt. Velocity is clamped to
// VelRange per axis; the position follows the clamped velocity curve, so
// the distance covered does not depend on how dt is sliced.
func (e *Entity) integrate(dt float32) {
	e.Position.X, e.Velocity.X = integrateAxis(e.Position.X, e.Velocity.X, e.Acceleration.X, e.VelRange.Left, e.VelRange.Right, dt)
	e.Position.Y, e.Velocity.Y = integrateAxis(e.Position.Y, e.Velocity.Y, e.Acceleration.Y, e.VelRange.Top, e.VelRange.Bottom, dt)
}

// integrateAxis is exact for a velocity that reaches the clamp partway
// through dt: the position follows the accelerating segment, then the
// clamped one. This agrees with the 0.5*clamped*dt + 0.5*(expected-clamped)²/a
// correction when the clamp is reached halfway through the step or at its
// end, and differs from it at any other point.
func integrateAxis(p, v, a, lo, hi, dt float32) (float32, float32) {
	expected := v + a*dt
	clamped := geom.Clamp(expected, lo, hi)
	if clamped == expected {
		return p + v*dt + 0.5*a*dt*dt, clamped
	}
	if a == 0 {
		return p + clamped*dt, clamped
	}
	// t is spent accelerating toward the limit, the rest at the limit.
	t := geom.Clamp((clamped-v)/a, 0, dt)
	return p + v*t + 0.5*a*t*t + clamped*(dt-t), clamped
}

// BindController attaches c to the entity and wires the class's
// on_press_<button> and on_release_<button> methods to its buttons.
func (e *Entity) BindController(c *input.Controller) {
	if e.controller != nil {
		e.UnbindController()
	}
	callbacks := make([]input.ButtonCallbacks, len(c.Type.Buttons))
	if e.class != nil {
		for i, b := range c.Type.Buttons {
			if m := e.class.Method(DeclOnPress(b)); m != nil {
				callbacks[i].OnPress = func() { e.system.callButton(e, m, DeclOnPress(b)) }
			}
			if m := e.class.Method(DeclOnRelease(b)); m != nil {
				callbacks[i].OnRelease = func() { e.system.callButton(e, m, DeclOnRelease(b)) }
			}
		}
	}
	e.controller = c
	c.Bind(e, callbacks)
}

// UnbindController clears the entity's pointer before releasing the
// controller.
func (e *Entity) UnbindController() {
	c := e.controller
	e.controller = nil
	if c != nil {
		c.Unbind()
	}
}

func (e *Entity) ControllerDetached(c *input.Controller) {
	if e.controller == c {
		e.controller = nil
	}
}
