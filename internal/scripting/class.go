package scripting

import (
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/entity"
)

type method struct {
	name string
	fn   *lua.LFunction
}

// class is a behavior class. Its methods are collected once, following
// __index tables, so lookups never touch the VM.
type class struct {
	eng     *Engine
	name    string
	tbl     *lua.LTable
	meta    *lua.LTable
	methods map[string]*method
}

// newClass must be called with the lease held.
func (e *Engine) newClass(name string, tbl *lua.LTable) *class {
	c := &class{eng: e, name: name, tbl: tbl, methods: make(map[string]*method)}
	for t, depth := tbl, 0; t != nil && depth < 16; depth++ {
		t.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			fn, isFn := v.(*lua.LFunction)
			if !ok || !isFn {
				return
			}
			if _, seen := c.methods[string(key)]; !seen {
				c.methods[string(key)] = &method{name: string(key), fn: fn}
			}
		})
		mt, ok := e.vm.GetMetatable(t).(*lua.LTable)
		if !ok {
			break
		}
		t, _ = mt.RawGetString("__index").(*lua.LTable)
	}
	c.meta = e.vm.NewTable()
	c.meta.RawSetString("__index", tbl)
	return c
}

func (c *class) Name() string { return c.name }

// Method maps a declaration such as "void update(Entity@, float)" to the
// class's update function.
func (c *class) Method(decl string) entity.Method {
	if m, ok := c.methods[methodName(decl)]; ok {
		return m
	}
	return nil
}

// New creates an instance table whose missing fields fall back to the
// class.
func (c *class) New() (entity.Object, error) {
	c.eng.lease.Lock()
	defer c.eng.lease.Unlock()
	obj := c.eng.vm.NewTable()
	c.eng.vm.SetMetatable(obj, c.meta)
	return obj, nil
}

func methodName(decl string) string {
	head, _, _ := strings.Cut(decl, "(")
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// context is one leased call. Arguments are collected until Execute.
type context struct {
	eng  *Engine
	m    *method
	this lua.LValue
	args []lua.LValue
	ret  lua.LValue
	ex   entity.Exception
}

func (c *context) reset() {
	c.m = nil
	c.this = lua.LNil
	clear(c.args)
	c.args = c.args[:0]
	c.ret = lua.LNil
	c.ex = entity.Exception{}
}

func (c *context) Prepare(m entity.Method) error {
	lm, ok := m.(*method)
	if !ok || lm == nil {
		return errs.Detailed(InvalidMethod, "%T", m)
	}
	c.reset()
	c.m = lm
	return nil
}

func (c *context) SetThis(obj entity.Object) {
	if v, ok := obj.(lua.LValue); ok {
		c.this = v
	}
}

func (c *context) set(i int, v lua.LValue) {
	for len(c.args) <= i {
		c.args = append(c.args, lua.LNil)
	}
	c.args[i] = v
}

func (c *context) SetArgEntity(i int, e *entity.Entity) { c.set(i, c.eng.entityValue(e)) }
func (c *context) SetArgFloat(i int, v float32)         { c.set(i, lua.LNumber(v)) }
func (c *context) SetArgString(i int, s string)         { c.set(i, lua.LString(s)) }

// Execute calls the method with self first. A Lua error is an exception;
// anything else that stops the call is reported as CallOther.
func (c *context) Execute() entity.CallStatus {
	if c.m == nil {
		c.ex = entity.Exception{Message: "no method prepared"}
		return entity.CallOther
	}
	args := make([]lua.LValue, 0, len(c.args)+1)
	args = append(args, c.this)
	args = append(args, c.args...)

	vm := c.eng.vm
	err := vm.CallByParam(lua.P{Fn: c.m.fn, NRet: 1, Protect: true}, args...)
	if err != nil {
		line, msg := splitLocation(errorMessage(err))
		c.ex = entity.Exception{Function: c.m.name, Line: line, Message: msg}
		if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Type != lua.ApiErrorRun {
			return entity.CallOther
		}
		return entity.CallException
	}
	c.ret = vm.Get(-1)
	vm.Pop(1)
	return entity.CallFinished
}

func (c *context) ExceptionInfo() entity.Exception { return c.ex }

func (c *context) ReturnDword() uint32 {
	return uint32(lua.LVAsNumber(c.ret))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
