// Package level loads tilesets and levels and answers the spatial queries
// the entity system needs: tiles under a box, scene objects in a region,
// areas at a point and edge triggers crossed by a body.
package level

import (
	"math"
	"slices"

	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/sprite"
)

// Tilemap is one layer of tiles. Tiles is row-major, Width columns wide.
type Tilemap struct {
	Tileset  *Tileset
	Width    int
	Height   int
	Tiles    []uint16
	Z        int
	Offset   geom.Vector2
	Scale    geom.Vector2
	Parallax geom.Vector2
	Solid    bool
}

// At returns the tile id at column x, row y, or Blank outside the grid.
func (m *Tilemap) At(x, y int) uint16 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return Blank
	}
	return m.Tiles[y*m.Width+x]
}

// CellSize is the world size of one tile.
func (m *Tilemap) CellSize() geom.Vector2 {
	return geom.Vec(float32(m.Tileset.TileW)*m.Scale.X, float32(m.Tileset.TileH)*m.Scale.Y)
}

// Origin is the world position of the layer's top-left corner for a camera
// at the given position. A parallax of 1 pins the layer to the world; 0
// pins it to the screen.
func (m *Tilemap) Origin(camera geom.Vector2) geom.Vector2 {
	return m.Offset.Add(camera.Mul(geom.Vec(1-m.Parallax.X, 1-m.Parallax.Y)))
}

// CellBox is the world box of the cell at column x, row y.
func (m *Tilemap) CellBox(x, y int, camera geom.Vector2) geom.AABB {
	cell := m.CellSize()
	o := m.Origin(camera)
	return geom.BoxFromSize(geom.Vec(o.X+float32(x)*cell.X, o.Y+float32(y)*cell.Y), cell.X, cell.Y)
}

// TileRange is an inclusive range of cells.
type TileRange struct {
	Left, Right, Top, Bottom int
}

func (r TileRange) Empty() bool { return r.Left > r.Right || r.Top > r.Bottom }

// TilesIn returns the cells of m overlapped by box, clamped to the grid.
func (m *Tilemap) TilesIn(box geom.AABB, camera geom.Vector2) TileRange {
	cell := m.CellSize()
	if cell.X <= 0 || cell.Y <= 0 {
		return TileRange{Left: 0, Right: -1, Top: 0, Bottom: -1}
	}
	o := m.Origin(camera)
	r := TileRange{
		Left:   int(math.Floor(float64((box.Left - o.X) / cell.X))),
		Right:  int(math.Ceil(float64((box.Right-o.X)/cell.X))) - 1,
		Top:    int(math.Floor(float64((box.Top - o.Y) / cell.Y))),
		Bottom: int(math.Ceil(float64((box.Bottom-o.Y)/cell.Y))) - 1,
	}
	r.Left = max(r.Left, 0)
	r.Top = max(r.Top, 0)
	r.Right = min(r.Right, m.Width-1)
	r.Bottom = min(r.Bottom, m.Height-1)
	return r
}

// SceneObject is a static sprite placed in the level.
type SceneObject struct {
	Sprite    *sprite.Sprite
	Animation *sprite.Animation
	Position  geom.Vector2
	Z         int
	Rotation  float32
	Scale     geom.Vector2
	Bounds    geom.AABB
}

func (o *SceneObject) Transform() geom.Transform {
	return geom.ScalRotTrans(o.Scale, o.Rotation, o.Position)
}

func (o *SceneObject) updateBounds() {
	o.Bounds = geom.BoxFromPoints(o.Position, o.Position)
	if o.Animation == nil || len(o.Animation.Frames) == 0 {
		return
	}
	f := o.Animation.Frames[0].Frame
	local := geom.BoxFromSize(f.Display, f.Clip.Width(), f.Clip.Height())
	o.Bounds = o.Transform().ApplyBox(local)
}

// SpawnPoint names an entity to create when the level becomes active.
type SpawnPoint struct {
	Class     string
	Sprite    *sprite.Sprite
	Animation string
	Position  geom.Vector2
}

type Area struct {
	Name     string
	Box      geom.AABB
	Priority int
	Color    string
}

type Side uint8

const (
	SideTop Side = iota
	SideBottom
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideTop:
		return "top"
	case SideBottom:
		return "bottom"
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "unknown"
}

// EdgeTrigger fires when a body crosses a stretch of the level boundary.
// Position and Size locate the stretch along the edge. Strictness is the
// fraction of the body that must be past the edge; 0 fires on contact, 1
// once the body has fully left.
type EdgeTrigger struct {
	Name       string
	Side       Side
	Position   float32
	Size       float32
	Strictness float32
}

type Level struct {
	Name         string
	Boundary     geom.AABB
	Layers       []Tilemap
	Objects      []SceneObject
	Spawns       []SpawnPoint
	Areas        []Area
	EdgeTriggers []EdgeTrigger

	index *RTree
}

// Query returns the scene objects whose bounds overlap box. Levels built
// in code get their index on first use.
func (l *Level) Query(box geom.AABB) []*SceneObject {
	if l.index == nil {
		l.index = NewRTree(l.Objects)
	}
	return l.index.Query(box, nil)
}

// AreasAt returns the areas containing p, highest priority first.
func (l *Level) AreasAt(p geom.Vector2) []*Area {
	var out []*Area
	for i := range l.Areas {
		if l.Areas[i].Box.Contains(p) {
			out = append(out, &l.Areas[i])
		}
	}
	slices.SortStableFunc(out, func(a, b *Area) int { return b.Priority - a.Priority })
	return out
}

// EdgeTriggersHit returns the triggers the body box has crossed.
func (l *Level) EdgeTriggersHit(box geom.AABB) []*EdgeTrigger {
	var out []*EdgeTrigger
	for i := range l.EdgeTriggers {
		if l.EdgeTriggers[i].hit(l.Boundary, box) {
			out = append(out, &l.EdgeTriggers[i])
		}
	}
	return out
}

func (t *EdgeTrigger) hit(bound, box geom.AABB) bool {
	var along0, along1, past, extent float32
	switch t.Side {
	case SideLeft:
		along0, along1 = box.Top, box.Bottom
		past, extent = bound.Left-box.Left, box.Width()
	case SideRight:
		along0, along1 = box.Top, box.Bottom
		past, extent = box.Right-bound.Right, box.Width()
	case SideTop:
		along0, along1 = box.Left, box.Right
		past, extent = bound.Top-box.Top, box.Height()
	case SideBottom:
		along0, along1 = box.Left, box.Right
		past, extent = box.Bottom-bound.Bottom, box.Height()
	default:
		return false
	}
	if along1 < t.Position || along0 > t.Position+t.Size {
		return false
	}
	if past < 0 {
		return false
	}
	return past >= t.Strictness*extent
}

// SolidLayers returns the indices of solid layers in ascending z order.
func (l *Level) SolidLayers() []int {
	var out []int
	for i := range l.Layers {
		if l.Layers[i].Solid {
			out = append(out, i)
		}
	}
	slices.SortStableFunc(out, func(a, b int) int { return l.Layers[a].Z - l.Layers[b].Z })
	return out
}
