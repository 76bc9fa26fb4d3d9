package entity

import (
	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/bucket"
	"github.com/plate/engine/internal/core/event"
	"github.com/plate/engine/internal/hitbox"
)

// Collision is a collider pair that touched this frame.
type Collision struct {
	A, B                 *Entity
	ColliderA, ColliderB *hitbox.Collider
	Direction            event.CollisionDirection
}

func (c Collision) event() event.Collision {
	return event.Collision{
		A:         c.A.ID,
		B:         c.B.ID,
		ColliderA: colliderName(c.ColliderA),
		ColliderB: colliderName(c.ColliderB),
		Direction: c.Direction,
	}
}

func colliderName(c *hitbox.Collider) string {
	if c.Type == nil {
		return ""
	}
	return c.Type.Name
}

// pairs tests entity i against every later entity of the frame snapshot.
func (s *System) pairs(_, item any) {
	i := item.(int)
	a, ok := s.entities.Get(s.frame[i])
	if !ok {
		return
	}
	for _, hb := range s.frame[i+1:] {
		b, ok := s.entities.Get(hb)
		if !ok {
			continue
		}
		s.testPair(a, b)
	}
}

func (s *System) testPair(a, b *Entity) {
	ha, hb := a.handle, b.handle
	da, db := a.Displacement(), b.Displacement()

	if a.Has(Solid) && b.Has(Solid) && a.Animation != nil && b.Animation != nil {
		sa, sb := &a.Animation.Solidity, &b.Animation.Solidity
		if hitbox.Overlap(sa.Hitbox, a.SolidityTransform(), da, sb.Hitbox, b.SolidityTransform(), db) {
			s.deferPair(ha, hb, moveToContact)
		}
	}

	if a.Frame == nil || b.Frame == nil {
		return
	}
	ta, tb := a.Transform(), b.Transform()
	for i := range a.Frame.Colliders {
		ca := &a.Frame.Colliders[i]
		for j := range b.Frame.Colliders {
			cb := &b.Frame.Colliders[j]
			dir := direction(ca.Type.ActsOn(cb.Type), cb.Type.ActsOn(ca.Type))
			if dir == 0 {
				continue
			}
			if !hitbox.Overlap(ca.Hitbox, ta, da, cb.Hitbox, tb, db) {
				continue
			}
			s.deferPair(ha, hb, func(a, b *Entity) {
				s.dispatch(Collision{A: a, B: b, ColliderA: ca, ColliderB: cb, Direction: dir})
			})
		}
	}
}

func direction(aOnB, bOnA bool) event.CollisionDirection {
	switch {
	case aOnB && bOnA:
		return event.Both
	case aOnB:
		return event.AToB
	case bOnA:
		return event.BToA
	}
	return 0
}

// deferPair runs fn on the master if both entities are still alive then.
func (s *System) deferPair(ha, hb bucket.Handle, fn func(a, b *Entity)) {
	err := s.exec.Defer(func() {
		a, okA := s.entities.Get(ha)
		b, okB := s.entities.Get(hb)
		if okA && okB {
			fn(a, b)
		}
	})
	if err != nil {
		s.log.Warn("collision dropped", zap.Error(err))
	}
}

// dispatch delivers a collision to the Go hook, to the on_collision method
// of each acting entity and to the event bus.
func (s *System) dispatch(c Collision) {
	if s.onCollision != nil {
		s.onCollision(c)
	}
	nameA, nameB := colliderName(c.ColliderA), colliderName(c.ColliderB)
	if c.Direction != event.BToA {
		s.callCollision(c.A, c.B, nameA, nameB)
	}
	if c.Direction != event.AToB {
		s.callCollision(c.B, c.A, nameB, nameA)
	}
	if s.bus != nil {
		event.Emit(s.bus, c.event())
	}
}

func (s *System) callCollision(self, other *Entity, mine, theirs string) {
	if self.class == nil || self.class.onCollision == nil {
		return
	}
	st, ex := s.invoke(self.class.onCollision, self.Object, func(ctx Context) {
		ctx.SetArgEntity(0, self)
		ctx.SetArgEntity(1, other)
		ctx.SetArgString(2, mine)
		ctx.SetArgString(3, theirs)
	})
	if st != CallFinished {
		if ex.Function == "" {
			ex.Function = "on_collision"
		}
		s.fail(self, EntityCallbackException, ex)
	}
}
