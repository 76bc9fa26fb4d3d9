// Package term draws frames on a terminal through tcell and reads the
// keyboard for the input subsystem. World pixels map onto character cells
// at a fixed cell size.
package term

import (
	"math"
	"path"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/render"
)

// DefaultHold is how long a key counts as held after its last key event.
// Terminals report presses and repeats but never releases.
const DefaultHold = 150 * time.Millisecond

type Options struct {
	CellWidth  int
	CellHeight int
	Hold       time.Duration
}

// Surface is a render.Surface and an input.Source over one tcell screen.
type Surface struct {
	log    *zap.Logger
	screen tcell.Screen
	cw, ch float32
	bg     tcell.Color

	mu   sync.Mutex
	held map[string]time.Time
	hold time.Duration
	now  func() time.Time

	events chan tcell.Event
	quit   atomic.Bool
	once   sync.Once
}

// Open initializes the process terminal.
func Open(log *zap.Logger, opts Options) (*Surface, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return New(log, screen, opts), nil
}

// New wraps an initialized screen and starts reading its events.
func New(log *zap.Logger, screen tcell.Screen, opts Options) *Surface {
	if opts.CellWidth < 1 {
		opts.CellWidth = 8
	}
	if opts.CellHeight < 1 {
		opts.CellHeight = 16
	}
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	s := &Surface{
		log:    log,
		screen: screen,
		cw:     float32(opts.CellWidth),
		ch:     float32(opts.CellHeight),
		bg:     tcell.ColorBlack,
		held:   make(map[string]time.Time),
		hold:   opts.Hold,
		now:    time.Now,
		events: make(chan tcell.Event, 100),
	}
	screen.HideCursor()
	go s.poll()
	return s
}

func (s *Surface) poll() {
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			close(s.events)
			return
		}
		s.events <- ev
	}
}

// Pump handles every event read since the last call. Run it once per
// frame before the controllers update.
func (s *Surface) Pump() {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.handle(ev)
		default:
			return
		}
	}
}

func (s *Surface) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			s.quit.Store(true)
			return
		}
		name := keyName(ev)
		if name == "" {
			return
		}
		s.mu.Lock()
		s.held[name] = s.now()
		s.mu.Unlock()
	case *tcell.EventResize:
		s.screen.Sync()
		w, h := s.Size()
		s.log.Debug("terminal resized", zap.Int("width", w), zap.Int("height", h))
	}
}

var fold = cases.Fold()

func keyName(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune {
		if ev.Rune() == ' ' {
			return "space"
		}
		return fold.String(string(ev.Rune()))
	}
	if name, ok := tcell.KeyNames[ev.Key()]; ok {
		return fold.String(name)
	}
	return ""
}

// Held implements input.Source.
func (s *Surface) Held(r input.Real) bool {
	if r.Kind != input.RealKey {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.held[r.Key]
	return ok && s.now().Sub(at) < s.hold
}

// QuitRequested reports whether Escape or Ctrl-C was pressed.
func (s *Surface) QuitRequested() bool { return s.quit.Load() }

// Close restores the terminal.
func (s *Surface) Close() {
	s.once.Do(s.screen.Fini)
}

func (s *Surface) Size() (int, int) {
	cols, rows := s.screen.Size()
	return cols * int(s.cw), rows * int(s.ch)
}

func (s *Surface) Clear(c render.Color) {
	s.bg = color(c)
	s.screen.SetStyle(tcell.StyleDefault.Background(s.bg))
	s.screen.Clear()
}

func (s *Surface) FillRect(r geom.AABB, c render.Color) {
	if c.A == 0 {
		return
	}
	st := tcell.StyleDefault.Background(color(c))
	s.cells(r, func(x, y int) { s.screen.SetContent(x, y, ' ', nil, st) })
}

func (s *Surface) StrokeRect(r geom.AABB, c render.Color) {
	if c.A == 0 {
		return
	}
	st := tcell.StyleDefault.Foreground(color(c)).Background(s.bg)
	x0, y0, x1, y1, ok := s.span(r)
	if !ok {
		return
	}
	for x := x0; x <= x1; x++ {
		s.screen.SetContent(x, y0, tcell.RuneHLine, nil, st)
		s.screen.SetContent(x, y1, tcell.RuneHLine, nil, st)
	}
	for y := y0; y <= y1; y++ {
		s.screen.SetContent(x0, y, tcell.RuneVLine, nil, st)
		s.screen.SetContent(x1, y, tcell.RuneVLine, nil, st)
	}
	s.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, st)
	s.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, st)
	s.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, st)
	s.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, st)
}

// Line steps through the cells between the endpoints.
func (s *Surface) Line(p1, p2 geom.Vector2, c render.Color) {
	if c.A == 0 {
		return
	}
	st := tcell.StyleDefault.Foreground(color(c)).Background(s.bg)
	ax, ay := p1.X/s.cw, p1.Y/s.ch
	bx, by := p2.X/s.cw, p2.Y/s.ch
	steps := int(math.Ceil(float64(max(geom.Abs(bx-ax), geom.Abs(by-ay)))))
	for i := 0; i <= steps; i++ {
		t := float32(0)
		if steps > 0 {
			t = float32(i) / float32(steps)
		}
		x := int(math.Floor(float64(ax + (bx-ax)*t)))
		y := int(math.Floor(float64(ay + (by-ay)*t)))
		s.screen.SetContent(x, y, '*', nil, st)
	}
}

// Blit fills the placed clip with a glyph standing in for the texture: the
// first letter of its file name, in a color derived from the path.
func (s *Surface) Blit(texture string, clip geom.AABB, t geom.Transform) {
	box := t.ApplyBox(geom.BoxFromSize(geom.Vector2{}, clip.Width(), clip.Height()))
	glyph, _ := utf8.DecodeRuneInString(path.Base(texture))
	if glyph == utf8.RuneError || glyph == '.' || glyph == '/' {
		glyph = '#'
	}
	st := tcell.StyleDefault.Foreground(TextureColor(texture)).Background(s.bg)
	s.cells(box, func(x, y int) { s.screen.SetContent(x, y, glyph, nil, st) })
}

func (s *Surface) Present() { s.screen.Show() }

// TextureColor picks a stable bright color for a texture path.
func TextureColor(texture string) tcell.Color {
	h := xxhash.Sum64String(texture)
	return tcell.NewRGBColor(int32(96+h&0x9f), int32(96+(h>>8)&0x9f), int32(96+(h>>16)&0x9f))
}

// span converts a pixel box into the inclusive cell range it covers.
func (s *Surface) span(r geom.AABB) (x0, y0, x1, y1 int, ok bool) {
	if r.Right <= r.Left || r.Bottom <= r.Top {
		return 0, 0, 0, 0, false
	}
	x0 = int(math.Floor(float64(r.Left / s.cw)))
	y0 = int(math.Floor(float64(r.Top / s.ch)))
	x1 = int(math.Ceil(float64(r.Right/s.cw))) - 1
	y1 = int(math.Ceil(float64(r.Bottom/s.ch))) - 1
	return x0, y0, x1, y1, true
}

func (s *Surface) cells(r geom.AABB, fn func(x, y int)) {
	x0, y0, x1, y1, ok := s.span(r)
	if !ok {
		return
	}
	cols, rows := s.screen.Size()
	for y := max(y0, 0); y <= min(y1, rows-1); y++ {
		for x := max(x0, 0); x <= min(x1, cols-1); x++ {
			fn(x, y)
		}
	}
}

func color(c render.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
