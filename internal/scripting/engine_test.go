package scripting

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/core/event"
	"github.com/plate/engine/internal/core/executor"
	"github.com/plate/engine/internal/entity"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/hitbox"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/sandbox"
	"github.com/plate/engine/internal/sprite"
)

func newEngine(t *testing.T, controllers *input.System) *Engine {
	t.Helper()
	e := NewEngine(zap.NewNop(), nil, nil, controllers, 1)
	t.Cleanup(e.Close)
	return e
}

func newEntities(t *testing.T, host entity.Host) *entity.System {
	t.Helper()
	return newWorkerEntities(t, host, 1)
}

func newWorkerEntities(t *testing.T, host entity.Host, workers int) *entity.System {
	t.Helper()
	exec := executor.New(zap.NewNop(), workers)
	t.Cleanup(func() { _ = exec.Close() })
	return entity.NewSystem(zap.NewNop(), exec, host, event.NewBus(), 0)
}

func bodySprite(t *testing.T) *sprite.Sprite {
	t.Helper()
	tbl, err := hitbox.ParseColliderTypes([]byte("types:\n  - name: body\n    acts_on: [body]\n"))
	require.NoError(t, err)
	box := geom.AABB{Right: 10, Bottom: 10}
	frames := []sprite.Frame{{Clip: box, Colliders: []hitbox.Collider{{Type: tbl.Lookup("body"), Hitbox: hitbox.NewBox(box)}}}}
	return sprite.New("body", "body.png", frames, []sprite.Animation{{
		Name:     "idle",
		Frames:   []sprite.FrameTiming{{Frame: &frames[0]}},
		Solidity: sprite.Solidity{Hitbox: hitbox.NewBox(box)},
	}})
}

func TestBehaviorLifecycle(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("hero", `
Hero = {}
function Hero:init(e)
  self.ticks = 0
  e.velocity = Vector2(10, 0)
  e.z_order = 3
end
function Hero:update(e, dt)
  self.ticks = self.ticks + 1
  e.acceleration = Vector2(0, 100)
end
`))
	s := newEntities(t, eng)

	e, err := s.Spawn("Hero", geom.Vector2{}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Z())
	assert.Equal(t, "Hero", e.Class())

	s.Update(0.5)
	assert.InDelta(t, 5, e.Position.X, 1e-4)
	assert.InDelta(t, 12.5, e.Position.Y, 1e-4)
	assert.InDelta(t, 50, e.Velocity.Y, 1e-4)

	self := e.Object.(*lua.LTable)
	assert.Equal(t, lua.LNumber(1), self.RawGetString("ticks"))
}

func TestScriptErrors(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("broken", "Broken = {}\n"+
		"function Broken:init(e) end\n"+
		"function Broken:update(e, dt)\n"+
		"  local x = nil\n"+
		"  return x.field\n"+
		"end\n"+
		"Fragile = {}\n"+
		"function Fragile:init(e) error(\"no\") end\n"+
		"Inert = {}\n"))
	s := newEntities(t, eng)

	_, err := s.Spawn("Fragile", geom.Vector2{}, nil, "")
	require.ErrorIs(t, err, entity.EntityInitException)
	assert.Contains(t, err.Error(), "line 8")
	_, err = s.Spawn("Inert", geom.Vector2{}, nil, "")
	require.ErrorIs(t, err, entity.EntityMissingInit)
	_, err = s.Spawn("Nobody", geom.Vector2{}, nil, "")
	require.ErrorIs(t, err, entity.UnknownEntityClass)
	require.Zero(t, s.Len())

	e, err := s.Spawn("Broken", geom.Vector2{}, nil, "")
	require.NoError(t, err)
	s.Update(0.1)
	require.Len(t, e.Failures(), 1)
	assert.ErrorIs(t, e.Failures()[0], entity.EntityUpdateException)
	assert.Contains(t, e.Failures()[0].Error(), "Broken.update line 5")

	require.ErrorIs(t, eng.DoString("bad", "function ("), ScriptLoadFailed)
	require.ErrorIs(t, eng.DoString("raise", "error('x')"), ScriptError)
}

func TestSpawnAndDestroyFromScript(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("spawner", `
Spawner = {}
function Spawner:init(e) self.done = false end
function Spawner:update(e, dt)
  if not self.done then
    self.done = true
    e:spawn("Child", 5, 6)
  end
end
Child = {}
function Child:init(e) e.rendering_enabled = false end
function Child:update(e, dt) e:destroy() end
`))
	s := newEntities(t, eng)
	_, err := s.Spawn("Spawner", geom.Vector2{}, nil, "")
	require.NoError(t, err)

	s.Update(0.1)
	require.Equal(t, 2, s.Len())
	var child *entity.Entity
	s.Each(func(e *entity.Entity) {
		if e.Class() == "Child" {
			child = e
		}
	})
	require.NotNil(t, child)
	assert.Equal(t, geom.Vec(5, 6), child.Position)
	assert.False(t, child.Has(entity.RenderingEnabled))

	s.Update(0.1)
	assert.Equal(t, 1, s.Len())
}

type keys map[string]bool

func (k keys) Held(r input.Real) bool { return r.Kind == input.RealKey && k[r.Key] }

func TestControllerCallbacks(t *testing.T) {
	held := keys{}
	inputs := input.NewSystem(zap.NewNop(), held)
	require.NoError(t, inputs.LoadTypes([]byte("controllers:\n  - name: pad\n    axes: [x]\n    buttons: [jump]\n")))
	pad, err := inputs.Create("pad", "p1")
	require.NoError(t, err)
	require.NoError(t, inputs.ApplyBindings(pad, map[string]string{"button.jump": "key:z", "axis.x+": "key:right"}))

	eng := newEngine(t, inputs)
	require.NoError(t, eng.DoString("hero", `
Hero = {}
function Hero:init(e) e:bind_controller("p1") end
function Hero:update(e, dt) e.velocity = Vector2(e:axis("x") * 30, e.velocity.y) end
function Hero:on_press_jump(e) e.velocity = Vector2(e.velocity.x, -200) end
`))
	s := newEntities(t, eng)
	e, err := s.Spawn("Hero", geom.Vector2{}, nil, "")
	require.NoError(t, err)
	require.Same(t, pad, e.Controller())

	held["z"], held["right"] = true, true
	inputs.Update(0.1)
	assert.Equal(t, float32(-200), e.Velocity.Y)

	s.Update(0.1)
	assert.Equal(t, float32(30), e.Velocity.X)
}

const walkersLua = `
made, ticks, children = 0, 0, 0
Walker = {}
function Walker:init(e)
  made = made + 1
  self.n = made
  self.spawned = false
  if self.n == 1 then e:bind_controller("p1") end
end
function Walker:update(e, dt)
  ticks = ticks + 1
  if not self.spawned and self.n % 10 == 0 then
    self.spawned = true
    e:spawn("Child", self.n, 0)
  end
  if self.n == 40 and not self.claimed then
    self.claimed = true
    e:bind_controller("p1")
  end
end
Child = {}
function Child:init(e) children = children + 1 end
function Child:update(e, dt) ticks = ticks + 1 end
`

func TestParallelUpdatesWithScriptedSpawnsAndBinding(t *testing.T) {
	inputs := input.NewSystem(zap.NewNop(), keys{})
	require.NoError(t, inputs.LoadTypes([]byte("controllers:\n  - name: pad\n    axes: [x]\n    buttons: [jump]\n")))
	pad, err := inputs.Create("pad", "p1")
	require.NoError(t, err)

	eng := newEngine(t, inputs)
	require.NoError(t, eng.DoString("walkers", walkersLua))
	s := newWorkerEntities(t, eng, 4)

	walkers := make([]*entity.Entity, 40)
	for i := range walkers {
		walkers[i], err = s.Spawn("Walker", geom.Vec(float32(i), 0), nil, "")
		require.NoError(t, err)
	}
	first, last := walkers[0], walkers[39]
	require.Same(t, pad, first.Controller(), "binding outside the update runs at once")

	s.Update(0.1)
	assert.Equal(t, 44, s.Len())
	require.NoError(t, eng.DoString("check", `assert(ticks == 40, tostring(ticks)); assert(children == 4, tostring(children))`))
	assert.Nil(t, first.Controller())
	assert.Same(t, pad, last.Controller())
	assert.Equal(t, last, pad.Attachment())

	s.Update(0.1)
	assert.Equal(t, 44, s.Len())
	require.NoError(t, eng.DoString("check", `assert(ticks == 84, tostring(ticks))`))
	assert.Same(t, pad, last.Controller())
}

func TestSpawnFromCollisionRunsInline(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("bumpers", `
sparks, hits = 0, 0
Bumper = {}
function Bumper:init(e) end
function Bumper:on_collision(e, other, mine, theirs)
  hits = hits + 1
  if sparks == 0 and spawned == nil then
    spawned = true
    e:spawn("Spark", 0, 0)
  end
end
Spark = {}
function Spark:init(e) sparks = sparks + 1 end
`))
	spr := bodySprite(t)

	for _, workers := range []int{2, 4} {
		require.NoError(t, eng.DoString("reset", "sparks, hits, spawned = 0, 0, nil"))
		s := newWorkerEntities(t, eng, workers)
		a, err := s.Spawn("Bumper", geom.Vec(0, 0), spr, "")
		require.NoError(t, err)
		b, err := s.Spawn("Bumper", geom.Vec(5, 5), spr, "")
		require.NoError(t, err)
		a.SetFlag(entity.Solid, false)
		b.SetFlag(entity.Solid, false)

		s.Update(0.1)
		assert.Equal(t, 3, s.Len(), "spark spawned within the same frame")
		require.NoError(t, eng.DoString("check", `assert(sparks == 1, tostring(sparks)); assert(hits == 2, tostring(hits))`))
	}
}

func TestValueTypes(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("values", `
local v = Vector2(3, 4)
assert(v:length() == 5)
local w = v + Vector2(1, 1) * 2
assert(w.x == 5 and w.y == 6)
assert(-v == Vector2(-3, -4))
assert(tostring(v) == "Vector2(3, 4)")
local b = AABB(0, 10, 0, 5)
assert(b:width() == 10 and b:height() == 5)
assert(b:contains(Vector2(1, 1)))
assert(not b:overlaps(AABB(20, 30, 0, 5)))
for i = 1, 100 do
  local r = Random.int(2, 4)
  assert(r >= 2 and r <= 4)
end
local f = Random.float()
assert(f >= 0 and f < 1)
`))

	a := newEngine(t, nil)
	b := newEngine(t, nil)
	require.NoError(t, a.DoString("roll", "roll = Random.int(1, 1000000)"))
	require.NoError(t, b.DoString("roll", "roll = Random.int(1, 1000000)"))
	assert.Equal(t, a.vm.GetGlobal("roll"), b.vm.GetGlobal("roll"), "same seed, same sequence")
}

func TestStaleEntityReference(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("keeper", `
Keeper = {}
function Keeper:init(e) saved = e end
`))
	s := newEntities(t, eng)
	e, err := s.Spawn("Keeper", geom.Vec(1, 2), nil, "")
	require.NoError(t, err)
	require.NoError(t, eng.DoString("read", "assert(saved.position.x == 1)"))

	require.NoError(t, s.Destroy(e.ID))
	err = eng.DoString("read", "return saved.position")
	require.ErrorIs(t, err, ScriptError)
	assert.Contains(t, err.Error(), "no longer exists")
}

func TestConfigHandlers(t *testing.T) {
	eng := newEngine(t, nil)
	require.NoError(t, eng.DoString("cfg", `
settings = {}
engine.on_config("Player", function(k, v) settings[k] = v end)
`))
	assert.True(t, eng.HandleConfig("Player", map[string]string{"speed": "4", "name": "ann"}))
	assert.False(t, eng.HandleConfig("Enemy", map[string]string{"hp": "3"}))
	require.NoError(t, eng.DoString("check", `assert(settings.speed == "4" and settings.name == "ann")`))
}

func TestLoadWithInclude(t *testing.T) {
	files := fstest.MapFS{
		"assets/scripts/main.lua":     {Data: []byte(`engine.include("lib/util.lua")` + "\nloaded = twice(21)\n")},
		"assets/scripts/lib/util.lua": {Data: []byte("function twice(x) return x * 2 end\n")},
	}
	reg := asset.NewRegistry(zap.NewNop(), files, "assets")
	eng := NewEngine(zap.NewNop(), reg, nil, nil, 1)
	t.Cleanup(eng.Close)

	require.NoError(t, eng.Load(sandbox.DirContext{}, "scripts/main.lua"))
	assert.Equal(t, lua.LNumber(42), eng.vm.GetGlobal("loaded"))
	require.Error(t, eng.Load(sandbox.DirContext{}, "scripts/missing.lua"))
}

func TestSplitLocation(t *testing.T) {
	cases := []struct {
		in   string
		line int
		msg  string
	}{
		{"hero:12: boom", 12, "boom"},
		{"assets/scripts/main.lua:3: attempt to call a nil value", 3, "attempt to call a nil value"},
		{"no location", 0, "no location"},
		{"a:b: c", 0, "a:b: c"},
	}
	for _, tc := range cases {
		line, msg := splitLocation(tc.in)
		assert.Equal(t, tc.line, line, tc.in)
		assert.Equal(t, tc.msg, msg, tc.in)
	}
}
