package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/entity"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/sprite"
)

const (
	entityType = "Entity"
	vectorType = "Vector2"
	aabbType   = "AABB"
)

// --- engine ---

func (e *Engine) openEngine() {
	L := e.vm
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			e.log.Info("script", zap.String("message", L.CheckString(1)))
			return 0
		},
		"include": func(L *lua.LState) int {
			if err := e.load(e.scriptDir(), L.CheckString(1)); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"on_config": func(L *lua.LState) int {
			e.handler[L.CheckString(1)] = L.CheckFunction(2)
			return 0
		},
	})
	L.SetGlobal("engine", tbl)
}

// --- Random ---

func (e *Engine) openRandom() {
	L := e.vm
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		// int(lo, hi) is inclusive on both ends.
		"int": func(L *lua.LState) int {
			lo, hi := L.CheckInt(1), L.CheckInt(2)
			if hi < lo {
				L.ArgError(2, "upper bound below lower bound")
				return 0
			}
			L.Push(lua.LNumber(lo + e.random.IntN(hi-lo+1)))
			return 1
		},
		"float": func(L *lua.LState) int {
			L.Push(lua.LNumber(e.random.Float64()))
			return 1
		},
	})
	L.SetGlobal("Random", tbl)
}

// --- Vector2 ---

func newVector(L *lua.LState, v geom.Vector2) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(v.X))
	t.RawSetString("y", lua.LNumber(v.Y))
	L.SetMetatable(t, L.GetTypeMetatable(vectorType))
	return t
}

// checkVector accepts any table with x and y fields.
func checkVector(L *lua.LState, n int) geom.Vector2 {
	t := L.CheckTable(n)
	return geom.Vec(
		float32(lua.LVAsNumber(t.RawGetString("x"))),
		float32(lua.LVAsNumber(t.RawGetString("y"))),
	)
}

func (e *Engine) openVector() {
	L := e.vm
	mt := L.NewTypeMetatable(vectorType)
	methods := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"length": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkVector(L, 1).Magnitude()))
			return 1
		},
		"normalized": func(L *lua.LState) int {
			L.Push(newVector(L, checkVector(L, 1).Normalized()))
			return 1
		},
		"dot": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkVector(L, 1).Dot(checkVector(L, 2))))
			return 1
		},
	})
	L.SetField(mt, "__index", methods)
	L.SetFuncs(mt, map[string]lua.LGFunction{
		"__add": func(L *lua.LState) int {
			L.Push(newVector(L, checkVector(L, 1).Add(checkVector(L, 2))))
			return 1
		},
		"__sub": func(L *lua.LState) int {
			L.Push(newVector(L, checkVector(L, 1).Sub(checkVector(L, 2))))
			return 1
		},
		"__mul": func(L *lua.LState) int {
			if n, ok := L.Get(1).(lua.LNumber); ok {
				L.Push(newVector(L, checkVector(L, 2).Scale(float32(n))))
				return 1
			}
			L.Push(newVector(L, checkVector(L, 1).Scale(float32(L.CheckNumber(2)))))
			return 1
		},
		"__unm": func(L *lua.LState) int {
			L.Push(newVector(L, checkVector(L, 1).Neg()))
			return 1
		},
		"__eq": func(L *lua.LState) int {
			L.Push(lua.LBool(checkVector(L, 1) == checkVector(L, 2)))
			return 1
		},
		"__tostring": func(L *lua.LState) int {
			v := checkVector(L, 1)
			L.Push(lua.LString(fmt.Sprintf("Vector2(%g, %g)", v.X, v.Y)))
			return 1
		},
	})
	L.SetGlobal(vectorType, L.NewFunction(func(L *lua.LState) int {
		x, y := L.OptNumber(1, 0), L.OptNumber(2, 0)
		L.Push(newVector(L, geom.Vec(float32(x), float32(y))))
		return 1
	}))
}

// --- AABB ---

func newAABB(L *lua.LState, b geom.AABB) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("left", lua.LNumber(b.Left))
	t.RawSetString("right", lua.LNumber(b.Right))
	t.RawSetString("top", lua.LNumber(b.Top))
	t.RawSetString("bottom", lua.LNumber(b.Bottom))
	L.SetMetatable(t, L.GetTypeMetatable(aabbType))
	return t
}

func checkAABB(L *lua.LState, n int) geom.AABB {
	t := L.CheckTable(n)
	f := func(k string) float32 { return float32(lua.LVAsNumber(t.RawGetString(k))) }
	return geom.AABB{Left: f("left"), Right: f("right"), Top: f("top"), Bottom: f("bottom")}
}

func (e *Engine) openAABB() {
	L := e.vm
	mt := L.NewTypeMetatable(aabbType)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"width": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkAABB(L, 1).Width()))
			return 1
		},
		"height": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkAABB(L, 1).Height()))
			return 1
		},
		"center": func(L *lua.LState) int {
			L.Push(newVector(L, checkAABB(L, 1).Center()))
			return 1
		},
		"contains": func(L *lua.LState) int {
			L.Push(lua.LBool(checkAABB(L, 1).Contains(checkVector(L, 2))))
			return 1
		},
		"overlaps": func(L *lua.LState) int {
			L.Push(lua.LBool(checkAABB(L, 1).Overlaps(checkAABB(L, 2))))
			return 1
		},
	}))
	L.SetGlobal(aabbType, L.NewFunction(func(L *lua.LState) int {
		b := geom.AABB{
			Left:   float32(L.OptNumber(1, 0)),
			Right:  float32(L.OptNumber(2, 0)),
			Top:    float32(L.OptNumber(3, 0)),
			Bottom: float32(L.OptNumber(4, 0)),
		}
		L.Push(newAABB(L, b))
		return 1
	}))
}

// --- Entity ---

// entityRef remembers the id so a stale reference is caught once the
// entity's slot has been freed or reused.
type entityRef struct {
	e  *entity.Entity
	id uint32
}

func (e *Engine) entityValue(ent *entity.Entity) lua.LValue {
	if ent == nil {
		return lua.LNil
	}
	ud := e.vm.NewUserData()
	ud.Value = &entityRef{e: ent, id: ent.ID}
	e.vm.SetMetatable(ud, e.vm.GetTypeMetatable(entityType))
	return ud
}

func checkEntity(L *lua.LState, n int) *entity.Entity {
	ud := L.CheckUserData(n)
	ref, ok := ud.Value.(*entityRef)
	if !ok {
		L.ArgError(n, "Entity expected")
		return nil
	}
	if ref.e.ID != ref.id {
		L.RaiseError("entity %d no longer exists", ref.id)
		return nil
	}
	return ref.e
}

var entityFlags = map[string]entity.Flags{
	"animation_enabled": entity.AnimationEnabled,
	"physics_enabled":   entity.PhysicsEnabled,
	"rendering_enabled": entity.RenderingEnabled,
	"solid":             entity.Solid,
}

func (e *Engine) openEntity() {
	L := e.vm
	mt := L.NewTypeMetatable(entityType)
	methods := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"set_animation":     entitySetAnimation,
		"spawn":             e.entitySpawn,
		"destroy":           e.entityDestroy,
		"bind_controller":   e.entityBindController,
		"unbind_controller": entityUnbindController,
		"axis":              entityAxis,
		"button":            entityButton,
	})
	L.SetField(mt, "__index", L.NewFunction(func(L *lua.LState) int {
		ent := checkEntity(L, 1)
		key := L.CheckString(2)
		if flag, ok := entityFlags[key]; ok {
			L.Push(lua.LBool(ent.Has(flag)))
			return 1
		}
		switch key {
		case "id":
			L.Push(lua.LNumber(ent.ID))
		case "class":
			L.Push(lua.LString(ent.Class()))
		case "position":
			L.Push(newVector(L, ent.Position))
		case "last_position":
			L.Push(newVector(L, ent.LastPos))
		case "velocity":
			L.Push(newVector(L, ent.Velocity))
		case "acceleration":
			L.Push(newVector(L, ent.Acceleration))
		case "vel_range":
			L.Push(newAABB(L, ent.VelRange))
		case "rotation":
			L.Push(lua.LNumber(ent.Rotation))
		case "scale":
			L.Push(newVector(L, ent.Scale))
		case "z_order":
			L.Push(lua.LNumber(ent.Z()))
		case "animation":
			if ent.Animation == nil {
				L.Push(lua.LNil)
			} else {
				L.Push(lua.LString(ent.Animation.Name))
			}
		case "frame":
			L.Push(lua.LNumber(ent.AnimFrame))
		default:
			L.Push(methods.RawGetString(key))
		}
		return 1
	}))
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		ent := checkEntity(L, 1)
		key := L.CheckString(2)
		if flag, ok := entityFlags[key]; ok {
			ent.SetFlag(flag, lua.LVAsBool(L.Get(3)))
			return 0
		}
		switch key {
		case "position":
			ent.Position = checkVector(L, 3)
		case "velocity":
			ent.Velocity = checkVector(L, 3)
		case "acceleration":
			ent.Acceleration = checkVector(L, 3)
		case "vel_range":
			ent.VelRange = checkAABB(L, 3)
		case "rotation":
			ent.Rotation = float32(L.CheckNumber(3))
		case "scale":
			ent.Scale = checkVector(L, 3)
		case "z_order":
			ent.SetZ(L.CheckInt(3))
		default:
			L.RaiseError("Entity has no writable field %q", key)
		}
		return 0
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ent := checkEntity(L, 1)
		L.Push(lua.LString(fmt.Sprintf("Entity(%d, %s)", ent.ID, ent.Class())))
		return 1
	}))
}

func entitySetAnimation(L *lua.LState) int {
	if err := checkEntity(L, 1).SetAnimation(L.CheckString(2)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// entitySpawn queues spawn(class, x, y [, sprite [, animation]]). The
// sprite path resolves from the main script's directory.
func (e *Engine) entitySpawn(L *lua.LState) int {
	sys := checkEntity(L, 1).System()
	className := L.CheckString(2)
	pos := geom.Vec(float32(L.CheckNumber(3)), float32(L.CheckNumber(4)))
	path, anim := L.OptString(5, ""), L.OptString(6, "")
	dir := e.dirs[0]

	var err error
	e.released(func() {
		err = sys.Executor().Defer(func() {
			var spr *sprite.Sprite
			if path != "" {
				if e.sprites == nil {
					e.log.Warn("spawn without sprite loader", zap.String("class", className), zap.String("sprite", path))
					return
				}
				var lerr error
				if spr, lerr = e.sprites.Load(dir, path); lerr != nil {
					e.log.Warn("spawn sprite failed", zap.String("class", className), zap.Error(lerr))
					return
				}
			}
			if _, serr := sys.Spawn(className, pos, spr, anim); serr != nil {
				e.log.Warn("scripted spawn failed", zap.String("class", className), zap.Error(serr))
			}
		})
	})
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (e *Engine) entityDestroy(L *lua.LState) int {
	ent := checkEntity(L, 1)
	sys, id := ent.System(), ent.ID
	var err error
	e.released(func() { err = sys.QueueDestroy(id) })
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// entityBindController attaches the named controller. During the update
// phase the binding waits for the deferred queue, like spawn and destroy.
func (e *Engine) entityBindController(L *lua.LState) int {
	ent := checkEntity(L, 1)
	name := L.CheckString(2)
	if e.controllers == nil {
		L.RaiseError("no controllers")
		return 0
	}
	c := e.controllers.Controller(name)
	if c == nil {
		L.ArgError(2, fmt.Sprintf("controller %q does not exist", name))
		return 0
	}
	sys := ent.System()
	if !sys.Updating() {
		ent.BindController(c)
		return 0
	}
	// The controller and its previous holder belong to the whole system.
	id := ent.ID
	var err error
	e.released(func() {
		err = sys.Executor().Defer(func() {
			if target, gerr := sys.Get(id); gerr == nil {
				target.BindController(c)
			}
		})
	})
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func entityUnbindController(L *lua.LState) int {
	checkEntity(L, 1).UnbindController()
	return 0
}

// entityAxis reads an axis of the bound controller, 0 when unbound.
func entityAxis(L *lua.LState) int {
	ent := checkEntity(L, 1)
	name := L.CheckString(2)
	var pos float32
	if c := ent.Controller(); c != nil {
		if a := c.Axis(name); a != nil {
			pos = a.Position
		}
	}
	L.Push(lua.LNumber(pos))
	return 1
}

func entityButton(L *lua.LState) int {
	ent := checkEntity(L, 1)
	name := L.CheckString(2)
	held := false
	if c := ent.Controller(); c != nil {
		if b := c.Button(name); b != nil {
			held = b.State
		}
	}
	L.Push(lua.LBool(held))
	return 1
}
