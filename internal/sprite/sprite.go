// Package sprite holds the immutable sprite data the entity system animates:
// clips, frames with their colliders, and timed animations.
package sprite

import (
	"math"

	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/hitbox"
)

// Frame is one drawable pose. Display is the offset of the clip's top-left
// corner from the entity origin; Foot is the point used to probe slopes.
type Frame struct {
	Clip      geom.AABB
	Display   geom.Vector2
	Foot      geom.Vector2
	Colliders []hitbox.Collider
}

// MinDelay is the shortest frame delay a sprite file may declare.
const MinDelay = 1e-4

// FrameTiming shows Frame for Delay seconds. A zero delay holds the frame
// forever.
type FrameTiming struct {
	Frame *Frame
	Delay float32
}

// Solidity is the body hitbox of an animation. A fixed solidity ignores the
// entity's rotation. Head and Foot are the hitbox's local y extents.
type Solidity struct {
	Fixed  bool
	Hitbox hitbox.Hitbox
	Head   float32
	Foot   float32
}

type Animation struct {
	Name     string
	Frames   []FrameTiming
	Solidity Solidity
}

// Cycle is the time one loop through the animation takes, or 0 when a
// frame holds forever.
func (a *Animation) Cycle() float32 {
	var total float32
	for _, f := range a.Frames {
		if !(f.Delay > 0) || math.IsInf(float64(f.Delay), 0) {
			return 0
		}
		total += f.Delay
	}
	return total
}

type Sprite struct {
	Name       string
	Texture    string
	Clips      []geom.AABB
	Frames     []Frame
	Animations []Animation

	byName map[string]int
}

// New assembles a sprite from already built frames and animations. The
// animations' frame pointers must point into frames.
func New(name, texture string, frames []Frame, animations []Animation) *Sprite {
	s := &Sprite{Name: name, Texture: texture, Frames: frames, Animations: animations}
	for _, f := range frames {
		s.Clips = append(s.Clips, f.Clip)
	}
	for i := range s.Animations {
		a := &s.Animations[i]
		a.Solidity.Head, a.Solidity.Foot = a.Solidity.Hitbox.HeadFoot()
	}
	s.index()
	return s
}

// Animation finds an animation by name, or nil.
func (s *Sprite) Animation(name string) *Animation {
	if i, ok := s.byName[name]; ok {
		return &s.Animations[i]
	}
	return nil
}

// DefaultAnimation is the first animation.
func (s *Sprite) DefaultAnimation() *Animation {
	if len(s.Animations) == 0 {
		return nil
	}
	return &s.Animations[0]
}

func (s *Sprite) index() {
	s.byName = make(map[string]int, len(s.Animations))
	for i, a := range s.Animations {
		s.byName[a.Name] = i
	}
}
