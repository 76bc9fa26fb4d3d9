package input

import (
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/plate/engine/internal/core/errs"
)

type typeFile struct {
	Controllers []struct {
		Name    string   `yaml:"name"`
		Axes    []string `yaml:"axes"`
		Buttons []string `yaml:"buttons"`
	} `yaml:"controllers"`
}

type noSource struct{}

func (noSource) Held(Real) bool { return false }

// System owns the controller types and instances.
type System struct {
	log         *zap.Logger
	source      Source
	types       []*ControllerType
	controllers []*Controller
}

func NewSystem(log *zap.Logger, source Source) *System {
	if source == nil {
		source = noSource{}
	}
	return &System{log: log, source: source}
}

func (s *System) SetSource(src Source) {
	if src == nil {
		src = noSource{}
	}
	s.source = src
}

// LoadTypes reads controller types from YAML:
//
//	controllers:
//	  - name: gamepad
//	    axes: [x, y]
//	    buttons: [jump, attack]
func (s *System) LoadTypes(data []byte) error {
	var f typeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return errs.Detailed(errs.InvalidJson, "controller types: %v", err)
	}
	for _, c := range f.Controllers {
		s.DefineType(c.Name, c.Axes, c.Buttons)
	}
	return nil
}

// DefineType adds a controller type, replacing one with the same name.
// Existing instances keep the type they were created with.
func (s *System) DefineType(name string, axes, buttons []string) *ControllerType {
	t := &ControllerType{Name: name, Axes: slices.Clone(axes), Buttons: slices.Clone(buttons)}
	for i, old := range s.types {
		if old.Name == name {
			s.types[i] = t
			return t
		}
	}
	s.types = append(s.types, t)
	s.log.Debug("controller type defined",
		zap.String("type", name),
		zap.Strings("axes", axes),
		zap.Strings("buttons", buttons))
	return t
}

func (s *System) Type(name string) *ControllerType {
	for _, t := range s.types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (s *System) Types() []*ControllerType { return s.types }

// Create instantiates a controller. A controller with the same name is
// replaced and its attachment released.
func (s *System) Create(typeName, name string) (*Controller, error) {
	t := s.Type(typeName)
	if t == nil {
		return nil, errs.Detailed(UnknownControllerType, "%s", typeName)
	}
	c := newController(name, t)
	for i, old := range s.controllers {
		if old.Name == name {
			old.Unbind()
			s.controllers[i] = c
			return c, nil
		}
	}
	s.controllers = append(s.controllers, c)
	return c, nil
}

// Controller finds an instance by name, or nil.
func (s *System) Controller(name string) *Controller {
	for _, c := range s.controllers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// OfType returns the instances of a type in creation order.
func (s *System) OfType(typeName string) []*Controller {
	var out []*Controller
	for _, c := range s.controllers {
		if c.Type.Name == typeName {
			out = append(out, c)
		}
	}
	return out
}

func (s *System) Controllers() []*Controller { return s.controllers }

// clearDuplicates removes r from every controller sharing c's type.
func (s *System) clearDuplicates(c *Controller, r Real) {
	if r.Kind == RealNone {
		return
	}
	for _, o := range s.controllers {
		if o.Type == c.Type {
			o.clear(r)
		}
	}
}

// BindButton binds r to a button. A negative slot takes the first free one;
// false means there was none.
func (s *System) BindButton(c *Controller, button int, r Real, slot int) bool {
	if button < 0 || button >= len(c.Buttons) || slot >= BindingSlots {
		return false
	}
	s.clearDuplicates(c, r)
	return assign(&c.Buttons[button].Bindings, r, slot)
}

// BindAxis binds r to the positive (sign > 0) or negative side of an axis.
func (s *System) BindAxis(c *Controller, axis, sign int, r Real, slot int) bool {
	if sign == 0 || axis < 0 || axis >= len(c.Axes) || slot >= BindingSlots {
		return false
	}
	s.clearDuplicates(c, r)
	side := &c.Axes[axis].Plus
	if sign < 0 {
		side = &c.Axes[axis].Minus
	}
	return assign(side, r, slot)
}

func assign(slots *[BindingSlots]Real, r Real, slot int) bool {
	if slot >= 0 {
		slots[slot] = r
		return true
	}
	for i := range slots {
		if slots[i].Kind == RealNone {
			slots[i] = r
			return true
		}
	}
	return false
}

// ApplyBindings reads settings entries of the form
//
//	"button.jump" = "key:z"
//	"axis.x+"     = "key:right, key:d"
//	"axis.x-"     = "key:left"
//
// Entries are applied in key order.
func (s *System) ApplyBindings(c *Controller, entries map[string]string) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		kind, name, ok := strings.Cut(k, ".")
		if !ok {
			return errs.Detailed(InvalidBinding, "%s", k)
		}
		var bind func(Real) bool
		switch kind {
		case "button":
			i := c.Type.ButtonIndex(name)
			if i < 0 {
				return errs.Detailed(UnknownControllerInput, "%s has no button %s", c.Type.Name, name)
			}
			bind = func(r Real) bool { return s.BindButton(c, i, r, -1) }
		case "axis":
			sign := 1
			switch {
			case strings.HasSuffix(name, "+"):
			case strings.HasSuffix(name, "-"):
				sign = -1
			default:
				return errs.Detailed(InvalidBinding, "%s needs a + or - suffix", k)
			}
			name = name[:len(name)-1]
			i := c.Type.AxisIndex(name)
			if i < 0 {
				return errs.Detailed(UnknownControllerInput, "%s has no axis %s", c.Type.Name, name)
			}
			bind = func(r Real) bool { return s.BindAxis(c, i, sign, r, -1) }
		default:
			return errs.Detailed(InvalidBinding, "%s", k)
		}

		for _, part := range strings.Split(entries[k], ",") {
			r, err := ParseReal(part)
			if err != nil {
				return err
			}
			if r.Kind == RealNone {
				continue
			}
			if !bind(r) {
				s.log.Warn("no free binding slot",
					zap.String("controller", c.Name),
					zap.String("input", k),
					zap.Stringer("binding", r))
			}
		}
	}
	return nil
}

// Update polls every enabled controller and fires press and release
// callbacks for buttons that changed.
func (s *System) Update(dt float32) {
	for _, c := range s.controllers {
		if c.Enabled {
			c.update(s.source, dt)
		}
	}
}
