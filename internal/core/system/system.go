package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseInput        Phase = iota // 0: poll events, update controllers
	PhasePreDeferred               // 1: run jobs queued outside the frame
	PhaseSimulate                  // 2: entity pipeline
	PhasePostDeferred              // 3: drain what the simulation queued
	PhaseRender                    // 4: layers and the sorted draw list
)

var phaseNames = [...]string{"input", "pre-deferred", "simulate", "post-deferred", "render"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is the interface every frame stage implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Func adapts a function to System.
type Func struct {
	P  Phase
	Fn func(dt time.Duration)
}

func (f Func) Phase() Phase            { return f.P }
func (f Func) Update(dt time.Duration) { f.Fn(dt) }
