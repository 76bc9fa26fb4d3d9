// Package render defines the drawing surface the engine emits commands to.
// Concrete surfaces live in subpackages.
package render

import (
	"fmt"
	"sync"

	"github.com/plate/engine/internal/geom"
)

type Color struct {
	R, G, B, A uint8
}

var (
	Black   = Color{0, 0, 0, 255}
	White   = Color{255, 255, 255, 255}
	Red     = Color{255, 0, 0, 255}
	Green   = Color{0, 255, 0, 255}
	Blue    = Color{0, 0, 255, 255}
	Yellow  = Color{255, 255, 0, 255}
	Magenta = Color{255, 0, 255, 255}
	Gray    = Color{160, 160, 160, 255}
)

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Surface receives draw commands in world pixels. Only the master thread
// draws.
type Surface interface {
	Size() (w, h int)
	Clear(c Color)
	FillRect(r geom.AABB, c Color)
	StrokeRect(r geom.AABB, c Color)
	Line(p1, p2 geom.Vector2, c Color)
	// Blit draws the clip of a texture placed by t, where t maps clip-local
	// pixels (origin at the clip's top-left) to the screen.
	Blit(texture string, clip geom.AABB, t geom.Transform)
	Present()
}

// Op is one recorded draw command.
type Op struct {
	Kind    string
	Rect    geom.AABB
	P1, P2  geom.Vector2
	Color   Color
	Texture string
	Tx      geom.Transform
}

// Recorder is a Surface that keeps every command, used for headless runs
// and tests.
type Recorder struct {
	W, H int

	mu     sync.Mutex
	ops    []Op
	frames int
}

func NewRecorder(w, h int) *Recorder {
	return &Recorder{W: w, H: h}
}

func (r *Recorder) Size() (int, int) { return r.W, r.H }

func (r *Recorder) Clear(c Color) {
	r.mu.Lock()
	r.ops = r.ops[:0]
	r.ops = append(r.ops, Op{Kind: "clear", Color: c})
	r.mu.Unlock()
}

func (r *Recorder) FillRect(rect geom.AABB, c Color) {
	r.push(Op{Kind: "fill", Rect: rect, Color: c})
}

func (r *Recorder) StrokeRect(rect geom.AABB, c Color) {
	r.push(Op{Kind: "stroke", Rect: rect, Color: c})
}

func (r *Recorder) Line(p1, p2 geom.Vector2, c Color) {
	r.push(Op{Kind: "line", P1: p1, P2: p2, Color: c})
}

func (r *Recorder) Blit(texture string, clip geom.AABB, t geom.Transform) {
	r.push(Op{Kind: "blit", Texture: texture, Rect: clip, Tx: t})
}

func (r *Recorder) Present() {
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
}

func (r *Recorder) push(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

// Ops returns a copy of the commands since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Frames counts Present calls.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
