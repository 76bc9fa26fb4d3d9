package level

import (
	"slices"

	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/hitbox"
)

// Body is what tile collision needs to know about an entity. Transform maps
// the solidity hitbox into the world; Foot and Head are world points used to
// probe slopes from below and above.
type Body struct {
	Hitbox    hitbox.Hitbox
	Transform geom.Transform
	LastPos   geom.Vector2
	Foot      geom.Vector2
	Head      geom.Vector2
}

type candidate struct {
	tile *Tile
	cell geom.AABB
	dist float32
}

// Collide returns the displacement that moves b out of every solid tile.
// Solid layers are visited in ascending z; within a layer the tiles nearest
// to b.LastPos are resolved first and each correction feeds the next test.
func (in *Instance) Collide(b Body) geom.Vector2 {
	var total geom.Vector2
	if b.Hitbox.Kind == hitbox.None {
		return total
	}
	var cands []candidate
	for _, li := range in.solid {
		m := &in.Level.Layers[li]
		bounds := b.Hitbox.WorldBounds(geom.Translation(total).Mul(b.Transform))
		r := m.TilesIn(bounds, in.Camera)
		if r.Empty() {
			continue
		}

		cands = cands[:0]
		for y := r.Top; y <= r.Bottom; y++ {
			for x := r.Left; x <= r.Right; x++ {
				t := m.Tileset.Tile(m.At(x, y))
				if t == nil || t.Solidity.Kind == SolidNone {
					continue
				}
				cell := m.CellBox(x, y, in.Camera)
				cands = append(cands, candidate{tile: t, cell: cell, dist: cell.Center().DistanceSq(b.LastPos)})
			}
		}
		slices.SortStableFunc(cands, func(a, b candidate) int {
			switch {
			case a.dist < b.dist:
				return -1
			case a.dist > b.dist:
				return 1
			}
			return 0
		})

		for _, c := range cands {
			if d, ok := depenetrate(m, c, b, total); ok {
				total = total.Add(d)
			}
		}
	}
	return total
}

func depenetrate(m *Tilemap, c candidate, b Body, total geom.Vector2) (geom.Vector2, bool) {
	tx := geom.Translation(total).Mul(b.Transform)
	s := &c.tile.Solidity
	switch s.Kind {
	case SolidFull:
		return hitbox.Separation(b.Hitbox, tx, hitbox.NewBox(c.cell), geom.Identity())
	case SolidPartial:
		part, ok := partialBox(m, c.cell, s)
		if !ok {
			return geom.Vector2{}, false
		}
		return hitbox.Separation(b.Hitbox, tx, hitbox.NewBox(part), geom.Identity())
	case SolidComplex:
		return hitbox.Separation(b.Hitbox, tx, s.Hitbox, geom.ScalTrans(m.Scale, c.cell.TopLeft()))
	case SolidSlope:
		probe := b.Foot
		if s.Above {
			probe = b.Head
		}
		return slopePush(m, c.cell, s, probe.Add(total))
	}
	return geom.Vector2{}, false
}

// partialBox is the solid half of a partial tile in world space.
func partialBox(m *Tilemap, cell geom.AABB, s *TileSolidity) (geom.AABB, bool) {
	w, h := float32(m.Tileset.TileW), float32(m.Tileset.TileH)
	local := geom.AABB{Right: w, Bottom: h}
	if s.Vertical {
		p := geom.Clamp(s.Position, 0, w)
		if s.TopLeft {
			local.Right = p
		} else {
			local.Left = p
		}
	} else {
		p := geom.Clamp(s.Position, 0, h)
		if s.TopLeft {
			local.Bottom = p
		} else {
			local.Top = p
		}
	}
	if local.Degenerate() {
		return geom.AABB{}, false
	}
	return geom.ScalTrans(m.Scale, cell.TopLeft()).ApplyBox(local), true
}

// slopePush pushes probe perpendicular to the slope line when it lies on
// the solid side within the cell.
func slopePush(m *Tilemap, cell geom.AABB, s *TileSolidity, probe geom.Vector2) (geom.Vector2, bool) {
	if m.Scale.X == 0 || m.Scale.Y == 0 {
		return geom.Vector2{}, false
	}
	w, h := float32(m.Tileset.TileW), float32(m.Tileset.TileH)
	local := probe.Sub(cell.TopLeft())
	local = geom.Vec(local.X/m.Scale.X, local.Y/m.Scale.Y)
	if local.X < 0 || local.X > w || local.Y < 0 || local.Y > h {
		return geom.Vector2{}, false
	}
	lineY := s.Position + s.Slope*local.X
	norm := 1 + s.Slope*s.Slope
	var push geom.Vector2
	switch {
	case !s.Above && local.Y > lineY:
		push = geom.Vec(s.Slope, -1).Scale((local.Y - lineY) / norm)
	case s.Above && local.Y < lineY:
		push = geom.Vec(-s.Slope, 1).Scale((lineY - local.Y) / norm)
	default:
		return geom.Vector2{}, false
	}
	return push.Mul(m.Scale), true
}
