package term

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/render"
)

func newSurface(t *testing.T) (*Surface, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(10, 5)
	s := New(zap.NewNop(), screen, Options{CellWidth: 8, CellHeight: 16})
	t.Cleanup(s.Close)
	return s, screen
}

func background(screen tcell.Screen, x, y int) tcell.Color {
	_, _, st, _ := screen.GetContent(x, y)
	_, bg, _ := st.Decompose()
	return bg
}

func TestSize(t *testing.T) {
	s, _ := newSurface(t)
	w, h := s.Size()
	assert.Equal(t, 80, w)
	assert.Equal(t, 80, h)
}

func TestFillRect(t *testing.T) {
	s, screen := newSurface(t)
	s.Clear(render.Black)
	s.FillRect(geom.AABB{Left: 4, Right: 17, Top: 0, Bottom: 16}, render.Red)
	s.Present()

	red := tcell.NewRGBColor(255, 0, 0)
	assert.Equal(t, red, background(screen, 0, 0))
	assert.Equal(t, red, background(screen, 2, 0), "partially covered cells are filled")
	assert.NotEqual(t, red, background(screen, 3, 0))
	assert.NotEqual(t, red, background(screen, 0, 1))
}

func TestFillRectClipsToScreen(t *testing.T) {
	s, screen := newSurface(t)
	s.FillRect(geom.AABB{Left: -100, Right: 1000, Top: -100, Bottom: 1000}, render.Blue)
	assert.Equal(t, tcell.NewRGBColor(0, 0, 255), background(screen, 9, 4))
}

func TestBlitUsesTextureGlyph(t *testing.T) {
	s, screen := newSurface(t)
	s.Clear(render.Black)
	s.Blit("sprites/hero.png", geom.AABB{Left: 32, Right: 48, Top: 0, Bottom: 16}, geom.Translation(geom.Vec(16, 16)))

	r, _, st, _ := screen.GetContent(2, 1)
	assert.Equal(t, 'h', r)
	fg, _, _ := st.Decompose()
	assert.Equal(t, TextureColor("sprites/hero.png"), fg)
	assert.Equal(t, TextureColor("sprites/hero.png"), TextureColor("sprites/hero.png"))

	r, _, _, _ = screen.GetContent(4, 1)
	assert.NotEqual(t, 'h', r)
}

func TestStrokeAndLine(t *testing.T) {
	s, screen := newSurface(t)
	s.Clear(render.Black)
	s.StrokeRect(geom.AABB{Left: 0, Right: 32, Top: 0, Bottom: 48}, render.White)
	r, _, _, _ := screen.GetContent(0, 0)
	assert.Equal(t, tcell.RuneULCorner, r)
	r, _, _, _ = screen.GetContent(3, 2)
	assert.Equal(t, tcell.RuneLRCorner, r)

	s.Line(geom.Vec(40, 8), geom.Vec(72, 8), render.Green)
	for x := 5; x <= 9; x++ {
		r, _, _, _ = screen.GetContent(x, 0)
		assert.Equal(t, '*', r, "column %d", x)
	}
}

func TestKeysAreHeldForAWindow(t *testing.T) {
	s, screen := newSurface(t)
	clock := time.Unix(100, 0)
	s.now = func() time.Time { return clock }

	z := input.Real{Kind: input.RealKey, Key: "z"}
	left := input.Real{Kind: input.RealKey, Key: "left"}

	screen.InjectKey(tcell.KeyRune, 'Z', tcell.ModNone)
	screen.InjectKey(tcell.KeyLeft, 0, tcell.ModNone)
	require.Eventually(t, func() bool {
		s.Pump()
		return s.Held(z) && s.Held(left)
	}, time.Second, 5*time.Millisecond)

	clock = clock.Add(DefaultHold)
	assert.False(t, s.Held(z))
	assert.False(t, s.Held(input.Real{}))
	assert.False(t, s.QuitRequested())
}

func TestEscapeRequestsQuit(t *testing.T) {
	s, screen := newSurface(t)
	screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	require.Eventually(t, func() bool {
		s.Pump()
		return s.QuitRequested()
	}, time.Second, 5*time.Millisecond)
}
