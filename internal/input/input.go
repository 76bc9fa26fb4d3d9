// Package input maps physical inputs onto virtual controllers. A controller
// type names its axes and buttons; instances hold their state, bindings and
// per-button callbacks, and may be attached to one entity at a time.
package input

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/plate/engine/internal/core/errs"
)

// BindingSlots is the number of physical inputs one axis direction or
// button can be bound to.
const BindingSlots = 4

var (
	UnknownControllerType  = errs.New(800, "Controller type does not exist")
	UnknownControllerInput = errs.New(801, "Controller has no such axis or button")
	InvalidBinding         = errs.New(802, "Input binding is malformed")
)

type RealKind uint8

const (
	RealNone RealKind = iota
	RealKey
)

// Real identifies a physical input. Key names are case-folded.
type Real struct {
	Kind RealKind
	Key  string
}

func (r Real) String() string {
	if r.Kind == RealKey {
		return "key:" + r.Key
	}
	return "none"
}

var fold = cases.Fold()

// ParseReal reads "key:<name>" or "none".
func ParseReal(s string) (Real, error) {
	s = strings.TrimSpace(s)
	if fold.String(s) == "none" || s == "" {
		return Real{}, nil
	}
	kind, name, ok := strings.Cut(s, ":")
	if !ok || fold.String(kind) != "key" || name == "" {
		return Real{}, errs.Detailed(InvalidBinding, "%q", s)
	}
	return Real{Kind: RealKey, Key: fold.String(name)}, nil
}

// Source reports whether a physical input is held.
type Source interface {
	Held(r Real) bool
}

type ControllerType struct {
	Name    string
	Axes    []string
	Buttons []string
}

func (t *ControllerType) AxisIndex(name string) int   { return indexOf(t.Axes, name) }
func (t *ControllerType) ButtonIndex(name string) int { return indexOf(t.Buttons, name) }

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Axis position lies in [-1, 1]; Velocity is its change per second.
type Axis struct {
	Position float32
	Velocity float32
	Plus     [BindingSlots]Real
	Minus    [BindingSlots]Real
}

type Button struct {
	State    bool
	Pressed  bool
	Released bool
	Bindings [BindingSlots]Real
}

type ButtonCallbacks struct {
	OnPress   func()
	OnRelease func()
}

// Attachment is the object a controller drives, usually an entity.
type Attachment interface {
	// ControllerDetached is called after the controller has already
	// dropped its pointer to the attachment.
	ControllerDetached(c *Controller)
}

type Controller struct {
	Name      string
	Type      *ControllerType
	Axes      []Axis
	Buttons   []Button
	Callbacks []ButtonCallbacks
	Enabled   bool

	attachment Attachment
}

func newController(name string, t *ControllerType) *Controller {
	return &Controller{
		Name:      name,
		Type:      t,
		Axes:      make([]Axis, len(t.Axes)),
		Buttons:   make([]Button, len(t.Buttons)),
		Callbacks: make([]ButtonCallbacks, len(t.Buttons)),
		Enabled:   true,
	}
}

// Axis finds an axis by name, or nil.
func (c *Controller) Axis(name string) *Axis {
	if i := c.Type.AxisIndex(name); i >= 0 {
		return &c.Axes[i]
	}
	return nil
}

// Button finds a button by name, or nil.
func (c *Controller) Button(name string) *Button {
	if i := c.Type.ButtonIndex(name); i >= 0 {
		return &c.Buttons[i]
	}
	return nil
}

func (c *Controller) Attachment() Attachment { return c.attachment }

// Bind attaches a, detaching any previous attachment first, and installs
// callbacks (one entry per button, nil entries allowed).
func (c *Controller) Bind(a Attachment, callbacks []ButtonCallbacks) {
	if c.attachment != nil && c.attachment != a {
		c.Unbind()
	}
	c.attachment = a
	for i := range c.Callbacks {
		c.Callbacks[i] = ButtonCallbacks{}
		if i < len(callbacks) {
			c.Callbacks[i] = callbacks[i]
		}
	}
}

// Unbind clears the attachment and the callbacks. The back-pointer is
// cleared before the attachment is notified.
func (c *Controller) Unbind() {
	prev := c.attachment
	c.attachment = nil
	for i := range c.Callbacks {
		c.Callbacks[i] = ButtonCallbacks{}
	}
	if prev != nil {
		prev.ControllerDetached(c)
	}
}

func (c *Controller) clear(r Real) {
	for i := range c.Axes {
		a := &c.Axes[i]
		for j := range a.Plus {
			if a.Plus[j] == r {
				a.Plus[j] = Real{}
			}
			if a.Minus[j] == r {
				a.Minus[j] = Real{}
			}
		}
	}
	for i := range c.Buttons {
		b := &c.Buttons[i]
		for j := range b.Bindings {
			if b.Bindings[j] == r {
				b.Bindings[j] = Real{}
			}
		}
	}
}

func (c *Controller) update(src Source, dt float32) {
	for i := range c.Axes {
		a := &c.Axes[i]
		var raw float32
		for j := range a.Minus {
			if a.Minus[j].Kind != RealNone && src.Held(a.Minus[j]) {
				raw--
			}
			if a.Plus[j].Kind != RealNone && src.Held(a.Plus[j]) {
				raw++
			}
		}
		raw = min(max(raw, -1), 1)
		if dt > 0 {
			a.Velocity = (raw - a.Position) / dt
		}
		a.Position = raw
	}

	for i := range c.Buttons {
		b := &c.Buttons[i]
		raw := false
		for _, r := range b.Bindings {
			if r.Kind != RealNone && src.Held(r) {
				raw = true
				break
			}
		}
		b.Pressed = !b.State && raw
		b.Released = b.State && !raw
		b.State = raw

		cb := c.Callbacks[i]
		switch {
		case b.Pressed && cb.OnPress != nil:
			cb.OnPress()
		case b.Released && cb.OnRelease != nil:
			cb.OnRelease()
		}
	}
}
