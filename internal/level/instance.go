package level

import (
	"math"

	"github.com/plate/engine/internal/geom"
)

// TileAnimState is the animation position of one tile id within a layer.
// Every cell showing that id shares it.
type TileAnimState struct {
	Frame int
	Time  float32
}

// Instance is the mutable, running copy of a level.
type Instance struct {
	Level  *Level
	Camera geom.Vector2

	anim  [][]TileAnimState
	solid []int
}

func NewInstance(l *Level) *Instance {
	in := &Instance{Level: l, solid: l.SolidLayers()}
	in.anim = make([][]TileAnimState, len(l.Layers))
	for i := range l.Layers {
		in.anim[i] = make([]TileAnimState, len(l.Layers[i].Tileset.Tiles))
	}
	return in
}

// Advance steps every animated tile by dt seconds. A frame with zero
// duration holds.
func (in *Instance) Advance(dt float32) {
	for i := range in.Level.Layers {
		tiles := in.Level.Layers[i].Tileset.Tiles
		for id := range tiles {
			in.anim[i][id].advance(&tiles[id], dt)
		}
	}
}

// advance drops whole loops first, so each frame is visited at most once.
func (st *TileAnimState) advance(t *Tile, dt float32) {
	frames := t.Frames
	if len(frames) < 2 || !(frames[st.Frame].Duration > 0) {
		return
	}
	st.Time += dt
	if math.IsNaN(float64(st.Time)) || math.IsInf(float64(st.Time), 0) {
		st.Time = 0
	}
	if cycle := t.Cycle(); cycle > 0 && st.Time > cycle {
		st.Time = float32(math.Mod(float64(st.Time), float64(cycle)))
	}
	for range len(frames) {
		d := frames[st.Frame].Duration
		if !(d > 0) || st.Time <= d {
			break
		}
		st.Time -= d
		st.Frame = (st.Frame + 1) % len(frames)
	}
}

// TileFrame returns the frame currently shown for id on the given layer.
func (in *Instance) TileFrame(layer int, id uint16) (TileFrame, bool) {
	t := in.Level.Layers[layer].Tileset.Tile(id)
	if t == nil || len(t.Frames) == 0 {
		return TileFrame{}, false
	}
	return t.Frames[in.anim[layer][id-1].Frame], true
}

// AnimState exposes the animation state of id on a layer.
func (in *Instance) AnimState(layer int, id uint16) TileAnimState {
	if id == Blank || int(id) > len(in.anim[layer]) {
		return TileAnimState{}
	}
	return in.anim[layer][id-1]
}
