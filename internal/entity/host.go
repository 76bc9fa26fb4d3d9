package entity

// Behavior method declarations looked up on a class.
const (
	DeclInit        = "void init(Entity@)"
	DeclUpdate      = "void update(Entity@, float)"
	DeclOnCollision = "void on_collision(Entity@, Entity@, string, string)"
)

// DeclOnPress and DeclOnRelease build the declarations of button callbacks.
func DeclOnPress(button string) string   { return "void on_press_" + button + "(Entity@)" }
func DeclOnRelease(button string) string { return "void on_release_" + button + "(Entity@)" }

type CallStatus int

const (
	CallFinished CallStatus = iota
	CallException
	CallOther
)

func (s CallStatus) String() string {
	switch s {
	case CallFinished:
		return "finished"
	case CallException:
		return "exception"
	}
	return "other"
}

// Exception describes where a behavior method failed.
type Exception struct {
	Function string
	Line     int
	Message  string
}

// Method and Object are opaque handles owned by the Host.
type (
	Method any
	Object any
)

// Host is the scripting runtime that implements entity behavior.
type Host interface {
	// Class finds a behavior class by name, or returns nil.
	Class(name string) Class
	// RequestContext leases an execution context. It may block until one
	// is free.
	RequestContext() Context
	ReturnContext(ctx Context)
}

type Class interface {
	Name() string
	// Method returns nil when the class does not define decl.
	Method(decl string) Method
	New() (Object, error)
}

// Context executes one method call at a time.
type Context interface {
	Prepare(m Method) error
	SetThis(obj Object)
	SetArgEntity(i int, e *Entity)
	SetArgFloat(i int, v float32)
	SetArgString(i int, s string)
	Execute() CallStatus
	ExceptionInfo() Exception
	ReturnDword() uint32
}

// class caches the methods the entity system calls every frame.
type class struct {
	Class
	init        Method
	update      Method
	onCollision Method
}

func loadClass(c Class) *class {
	return &class{
		Class:       c,
		init:        c.Method(DeclInit),
		update:      c.Method(DeclUpdate),
		onCollision: c.Method(DeclOnCollision),
	}
}
