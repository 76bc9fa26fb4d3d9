package entity

import (
	"slices"

	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/executor"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/render"
)

// RenderOrder lists entities with hidden ones first, then visible ones by
// ascending z, ties in spawn order. The slice is cached until a spawn,
// destroy, z change or visibility change. Master only.
func (s *System) RenderOrder() []*Entity {
	if !s.renderDirty.Load() {
		return s.renderOrder
	}
	s.renderOrder = s.renderOrder[:0]
	s.Each(func(e *Entity) { s.renderOrder = append(s.renderOrder, e) })
	slices.SortStableFunc(s.renderOrder, func(a, b *Entity) int {
		va, vb := a.Has(RenderingEnabled), b.Has(RenderingEnabled)
		switch {
		case va != vb:
			if vb {
				return -1
			}
			return 1
		case !va:
			return 0
		}
		return a.z - b.z
	})
	s.renderDirty.Store(false)
	return s.renderOrder
}

// Draw queues a blit for every visible entity with a current frame.
func (s *System) Draw(exec *executor.Executor) {
	for _, e := range s.RenderOrder() {
		if !e.Has(RenderingEnabled) || e.Sprite == nil || e.Frame == nil {
			continue
		}
		texture, clip := e.Sprite.Texture, e.Frame.Clip
		t := e.Transform().Mul(geom.Translation(e.Frame.Display))
		err := exec.Draw(func(surf render.Surface) {
			surf.Blit(texture, clip, t)
		}, e.z)
		if err != nil {
			s.log.Warn("entity draw dropped", zap.Uint32("entity_id", e.ID), zap.Error(err))
			return
		}
	}
}
