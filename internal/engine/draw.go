package engine

import (
	"go.uber.org/zap"

	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/level"
	"github.com/plate/engine/internal/render"
)

// render clears the surface, queues the level's layers and scene objects
// and the entities, then drains the draw list in z order through the
// camera.
func (e *Engine) render() {
	e.surface.Clear(e.Background)
	var cam geom.Vector2
	if in := e.active; in != nil {
		cam = in.Camera
		w, h := e.surface.Size()
		e.queueLevel(in, geom.BoxFromSize(cam, float32(w), float32(h)))
	}
	e.entities.Draw(e.exec)

	e.exec.DrawBegin()
	e.exec.DrawEnd(camera{Surface: e.surface, at: cam})
	e.surface.Present()
}

func (e *Engine) queueLevel(in *level.Instance, view geom.AABB) {
	for i := range in.Level.Layers {
		err := e.exec.Draw(func(s render.Surface) { drawLayer(s, in, i, view) }, in.Level.Layers[i].Z)
		if err != nil {
			e.log.Warn("layer draw dropped", zap.Int("layer", i), zap.Error(err))
			return
		}
	}
	for _, o := range in.Level.Query(view) {
		if o.Sprite == nil || o.Animation == nil || len(o.Animation.Frames) == 0 {
			continue
		}
		f := o.Animation.Frames[0].Frame
		texture, clip := o.Sprite.Texture, f.Clip
		t := o.Transform().Mul(geom.Translation(f.Display))
		if err := e.exec.Draw(func(s render.Surface) { s.Blit(texture, clip, t) }, o.Z); err != nil {
			e.log.Warn("scene object draw dropped", zap.Error(err))
			return
		}
	}
}

// drawLayer blits the tiles of one layer that fall inside view.
func drawLayer(s render.Surface, in *level.Instance, layer int, view geom.AABB) {
	m := &in.Level.Layers[layer]
	r := m.TilesIn(view, in.Camera)
	if r.Empty() {
		return
	}
	tw, th := float32(m.Tileset.TileW), float32(m.Tileset.TileH)
	for y := r.Top; y <= r.Bottom; y++ {
		for x := r.Left; x <= r.Right; x++ {
			f, ok := in.TileFrame(layer, m.At(x, y))
			if !ok {
				continue
			}
			clip := geom.BoxFromSize(geom.Vec(float32(f.X)*tw, float32(f.Y)*th), tw, th)
			cell := m.CellBox(x, y, in.Camera)
			t := geom.ScalTrans(m.Scale, cell.TopLeft()).Mul(flip(f.Flip, tw, th))
			s.Blit(m.Tileset.Texture, clip, t)
		}
	}
}

func flip(bits uint8, w, h float32) geom.Transform {
	t := geom.Identity()
	if bits&level.FlipHorizontal != 0 {
		t = geom.Translation(geom.Vec(w, 0)).Mul(geom.Scaling(geom.Vec(-1, 1)))
	}
	if bits&level.FlipVertical != 0 {
		t = geom.Translation(geom.Vec(0, h)).Mul(geom.Scaling(geom.Vec(1, -1))).Mul(t)
	}
	return t
}

// camera shifts everything drawn through it so that at lands on the
// surface origin.
type camera struct {
	render.Surface
	at geom.Vector2
}

func (c camera) FillRect(r geom.AABB, col render.Color) {
	c.Surface.FillRect(r.Translate(c.at.Neg()), col)
}

func (c camera) StrokeRect(r geom.AABB, col render.Color) {
	c.Surface.StrokeRect(r.Translate(c.at.Neg()), col)
}

func (c camera) Line(p1, p2 geom.Vector2, col render.Color) {
	c.Surface.Line(p1.Sub(c.at), p2.Sub(c.at), col)
}

func (c camera) Blit(texture string, clip geom.AABB, t geom.Transform) {
	c.Surface.Blit(texture, clip, geom.Translation(c.at.Neg()).Mul(t))
}
