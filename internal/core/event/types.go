package event

// ScriptFailure reports a behavior method that raised or failed to run.
type ScriptFailure struct {
	EntityID uint32
	Class    string
	Function string
	Line     int
	Message  string
}

type LevelActivated struct {
	Name     string
	Spawned  int
	Failures int
}

// QuitRequested asks the engine loop to stop after the current frame.
type QuitRequested struct {
	Reason string
}

type CollisionDirection uint8

const (
	AToB CollisionDirection = iota + 1
	BToA
	Both
)

func (d CollisionDirection) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	case Both:
		return "both"
	}
	return "none"
}

// Collision reports two colliders touching where at least one collider
// type acts on the other. Colliders are named by type.
type Collision struct {
	A, B                 uint32
	ColliderA, ColliderB string
	Direction            CollisionDirection
}
