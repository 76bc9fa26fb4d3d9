package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type keys map[string]bool

func (k keys) Held(r Real) bool { return r.Kind == RealKey && k[r.Key] }

const typesYAML = `
controllers:
  - name: pad
    axes: [x, y]
    buttons: [jump, attack]
  - name: menu
    buttons: [ok]
`

func newSystem(t *testing.T, src Source) *System {
	t.Helper()
	s := NewSystem(zap.NewNop(), src)
	require.NoError(t, s.LoadTypes([]byte(typesYAML)))
	return s
}

type attached struct {
	c        *Controller
	detached int
}

func (a *attached) ControllerDetached(c *Controller) {
	a.detached++
	if a.c == c {
		a.c = nil
	}
}

func TestParseReal(t *testing.T) {
	r, err := ParseReal(" Key:Left ")
	require.NoError(t, err)
	require.Equal(t, Real{Kind: RealKey, Key: "left"}, r)
	require.Equal(t, "key:left", r.String())

	r, err = ParseReal("NONE")
	require.NoError(t, err)
	require.Equal(t, RealNone, r.Kind)

	for _, bad := range []string{"left", "pad:1", "key:"} {
		_, err = ParseReal(bad)
		require.ErrorIs(t, err, InvalidBinding, bad)
	}
}

func TestCreate(t *testing.T) {
	s := newSystem(t, nil)
	require.Len(t, s.Types(), 2)

	p1, err := s.Create("pad", "player1")
	require.NoError(t, err)
	require.Len(t, p1.Axes, 2)
	require.Len(t, p1.Buttons, 2)
	require.NotNil(t, p1.Button("attack"))
	require.Nil(t, p1.Axis("z"))

	_, err = s.Create("joystick", "player2")
	require.ErrorIs(t, err, UnknownControllerType)

	a := &attached{c: p1}
	p1.Bind(a, nil)
	again, err := s.Create("pad", "player1")
	require.NoError(t, err)
	require.NotSame(t, p1, again)
	require.Same(t, again, s.Controller("player1"))
	require.Equal(t, 1, a.detached, "replaced controller releases its attachment")
	require.Len(t, s.Controllers(), 1)
}

func TestUpdate(t *testing.T) {
	held := keys{}
	s := newSystem(t, held)
	c, err := s.Create("pad", "p1")
	require.NoError(t, err)
	require.NoError(t, s.ApplyBindings(c, map[string]string{
		"axis.x+":     "key:right, key:d",
		"axis.x-":     "key:left",
		"button.jump": "key:z",
	}))

	var presses, releases int
	c.Bind(&attached{c: c}, []ButtonCallbacks{{
		OnPress:   func() { presses++ },
		OnRelease: func() { releases++ },
	}})

	held["right"], held["d"], held["z"] = true, true, true
	s.Update(0.5)
	x := c.Axis("x")
	assert.Equal(t, float32(1), x.Position, "clamped")
	assert.Equal(t, float32(2), x.Velocity)
	jump := c.Button("jump")
	assert.True(t, jump.Pressed)
	assert.True(t, jump.State)
	assert.Equal(t, 1, presses)

	held["left"] = true
	s.Update(0.5)
	assert.Equal(t, float32(1), x.Position, "right plus d minus left")
	assert.False(t, jump.Pressed, "held, not newly pressed")
	assert.Equal(t, 1, presses)

	held["right"], held["d"], held["z"] = false, false, false
	s.Update(0.25)
	assert.Equal(t, float32(-1), x.Position)
	assert.Equal(t, float32(-8), x.Velocity)
	assert.True(t, jump.Released)
	assert.False(t, jump.State)
	assert.Equal(t, 1, releases)

	c.Enabled = false
	held["z"] = true
	s.Update(0.25)
	assert.False(t, jump.State, "disabled controllers are not polled")
}

func TestBindingClearsDuplicates(t *testing.T) {
	s := newSystem(t, nil)
	p1, _ := s.Create("pad", "p1")
	p2, _ := s.Create("pad", "p2")
	m, _ := s.Create("menu", "m")

	z := Real{Kind: RealKey, Key: "z"}
	require.True(t, s.BindButton(m, 0, z, -1))
	require.True(t, s.BindButton(p1, 0, z, -1))
	require.True(t, s.BindAxis(p2, 1, -1, z, -1))

	assert.Equal(t, Real{}, p1.Buttons[0].Bindings[0], "same type loses the binding")
	assert.Equal(t, z, p2.Axes[1].Minus[0])
	assert.Equal(t, z, m.Buttons[0].Bindings[0], "other types keep it")

	for i := 0; i < BindingSlots; i++ {
		require.True(t, s.BindButton(p1, 1, Real{Kind: RealKey, Key: string(rune('a' + i))}, -1))
	}
	assert.False(t, s.BindButton(p1, 1, Real{Kind: RealKey, Key: "q"}, -1), "slots full")
	assert.True(t, s.BindButton(p1, 1, Real{Kind: RealKey, Key: "q"}, 2))
	assert.Equal(t, "q", p1.Buttons[1].Bindings[2].Key)

	assert.False(t, s.BindAxis(p1, 0, 0, z, -1), "zero sign")
	assert.False(t, s.BindButton(p1, 7, z, -1))
	require.Len(t, s.OfType("pad"), 2)
}

func TestApplyBindingsErrors(t *testing.T) {
	s := newSystem(t, nil)
	c, _ := s.Create("pad", "p1")

	cases := map[string]error{
		"button.fly": UnknownControllerInput,
		"axis.z+":    UnknownControllerInput,
		"axis.x":     InvalidBinding,
		"trigger.l":  InvalidBinding,
		"jump":       InvalidBinding,
	}
	for key, want := range cases {
		t.Run(key, func(t *testing.T) {
			require.ErrorIs(t, s.ApplyBindings(c, map[string]string{key: "key:a"}), want)
		})
	}
	require.ErrorIs(t, s.ApplyBindings(c, map[string]string{"button.jump": "mouse"}), InvalidBinding)
}

func TestUnbindClearsBackPointerFirst(t *testing.T) {
	s := newSystem(t, nil)
	c, _ := s.Create("pad", "p1")

	var seen Attachment = &attached{}
	a := &attached{c: c}
	c.Bind(a, []ButtonCallbacks{{OnPress: func() {}}})
	require.Same(t, a, c.Attachment())

	b := &probe{onDetach: func(c *Controller) { seen = c.Attachment() }}
	c.Bind(b, nil)
	assert.Equal(t, 1, a.detached)
	assert.Nil(t, a.c)
	assert.Nil(t, c.Callbacks[0].OnPress)

	c.Unbind()
	assert.Nil(t, seen, "attachment already cleared when notified")
	assert.Nil(t, c.Attachment())
}

type probe struct{ onDetach func(*Controller) }

func (p *probe) ControllerDetached(c *Controller) { p.onDetach(c) }
