// Package scripting hosts entity behavior written in Lua. Behavior classes
// are global tables; the entity system finds their methods by declaration
// and runs them through leased contexts.
package scripting

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/entity"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/sandbox"
	"github.com/plate/engine/internal/sprite"
)

var (
	ScriptLoadFailed = errs.New(2000, "Script could not be loaded")
	ScriptError      = errs.New(2001, "Script raised an error")
	InvalidMethod    = errs.New(2002, "Method does not belong to this host")
)

// Engine wraps a single gopher-lua VM. The VM is not safe for concurrent
// use, so contexts are leased one at a time; RequestContext blocks until
// the current lease is returned.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger

	assets      *asset.Registry
	sprites     *sprite.Loader
	controllers *input.System

	lease   sync.Mutex
	free    []*context
	random  *rand.Rand
	dirs    []sandbox.DirContext
	handler map[string]*lua.LFunction
}

// NewEngine creates the VM and installs the engine API. sprites and
// controllers may be nil when scripts do not spawn or bind controllers.
func NewEngine(log *zap.Logger, assets *asset.Registry, sprites *sprite.Loader, controllers *input.System, seed uint64) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:          vm,
		log:         log,
		assets:      assets,
		sprites:     sprites,
		controllers: controllers,
		random:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		dirs:        []sandbox.DirContext{{}},
		handler:     make(map[string]*lua.LFunction),
	}
	e.openEngine()
	e.openVector()
	e.openAABB()
	e.openRandom()
	e.openEntity()
	return e
}

// Load runs the script at path. Scripts may include others relative to
// their own directory.
func (e *Engine) Load(ctx sandbox.DirContext, path string) error {
	e.lease.Lock()
	defer e.lease.Unlock()
	return e.load(ctx, path)
}

func (e *Engine) load(ctx sandbox.DirContext, path string) error {
	if e.assets == nil {
		return errs.Detailed(ScriptLoadFailed, "%s: no asset registry", path)
	}
	data, key, err := e.assets.ReadFile(ctx, path)
	if err != nil {
		return err
	}
	dir, err := ctx.Append(path)
	if err != nil {
		return err
	}
	e.dirs = append(e.dirs, dir)
	defer func() { e.dirs = e.dirs[:len(e.dirs)-1] }()

	if err := e.run(data, key); err != nil {
		return err
	}
	e.log.Debug("loaded lua script", zap.String("file", key))
	return nil
}

// DoString runs src as a chunk called name.
func (e *Engine) DoString(name, src string) error {
	e.lease.Lock()
	defer e.lease.Unlock()
	return e.run([]byte(src), name)
}

func (e *Engine) run(src []byte, name string) error {
	fn, err := e.vm.Load(bytes.NewReader(src), name)
	if err != nil {
		return errs.Detailed(ScriptLoadFailed, "%s: %v", name, err)
	}
	e.vm.Push(fn)
	if err := e.vm.PCall(0, lua.MultRet, nil); err != nil {
		return errs.Detailed(ScriptError, "%s: %v", name, err)
	}
	return nil
}

// scriptDir is the directory of the script being loaded, or of the main
// script once loading is over.
func (e *Engine) scriptDir() sandbox.DirContext {
	return e.dirs[len(e.dirs)-1]
}

// SetMainDir sets the directory sprite paths given by scripts resolve in.
func (e *Engine) SetMainDir(dir sandbox.DirContext) {
	e.lease.Lock()
	e.dirs[0] = dir
	e.lease.Unlock()
}

// Class implements entity.Host. A class is any global table.
func (e *Engine) Class(name string) entity.Class {
	e.lease.Lock()
	defer e.lease.Unlock()
	tbl, ok := e.vm.GetGlobal(name).(*lua.LTable)
	if !ok {
		return nil
	}
	return e.newClass(name, tbl)
}

// RequestContext implements entity.Host.
func (e *Engine) RequestContext() entity.Context {
	e.lease.Lock()
	if n := len(e.free); n > 0 {
		c := e.free[n-1]
		e.free = e.free[:n-1]
		return c
	}
	c := &context{eng: e}
	c.reset()
	return c
}

// ReturnContext implements entity.Host.
func (e *Engine) ReturnContext(ctx entity.Context) {
	if c, ok := ctx.(*context); ok {
		c.reset()
		e.free = append(e.free, c)
	}
	e.lease.Unlock()
}

// released runs fn with the lease given up. Go code that may call back into
// the host (spawning runs init) goes through here; the Lua stack is left
// as it was once fn returns.
func (e *Engine) released(fn func()) {
	e.lease.Unlock()
	defer e.lease.Lock()
	fn()
}

// HandleConfig passes a [Script_<name>] section to the handler registered
// with engine.on_config. It reports whether a handler exists.
func (e *Engine) HandleConfig(section string, values map[string]string) bool {
	e.lease.Lock()
	defer e.lease.Unlock()
	fn, ok := e.handler[section]
	if !ok {
		return false
	}
	for _, k := range sortedKeys(values) {
		err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LString(k), lua.LString(values[k]))
		if err != nil {
			e.log.Warn("lua config handler error", zap.String("section", section), zap.String("key", k), zap.Error(err))
		}
	}
	return true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.lease.Lock()
	defer e.lease.Unlock()
	e.vm.Close()
}

// splitLocation pulls the line number out of a Lua error message of the
// form "chunk:line: text".
func splitLocation(msg string) (int, string) {
	for i := 0; i < len(msg); i++ {
		if msg[i] != ':' {
			continue
		}
		j := i + 1
		for j < len(msg) && msg[j] >= '0' && msg[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(msg) && msg[j] == ':' {
			line, _ := strconv.Atoi(msg[i+1 : j])
			return line, strings.TrimSpace(msg[j+1:])
		}
	}
	return 0, msg
}

func errorMessage(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return fmt.Sprint(err)
}
