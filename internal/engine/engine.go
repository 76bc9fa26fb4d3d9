// Package engine runs the frame loop: input, deferred work, simulation and
// rendering in phase order, paced between a minimum and maximum frame rate.
package engine

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/config"
	"github.com/plate/engine/internal/core/event"
	"github.com/plate/engine/internal/core/executor"
	"github.com/plate/engine/internal/core/system"
	"github.com/plate/engine/internal/entity"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/level"
	"github.com/plate/engine/internal/render"
	"github.com/plate/engine/internal/scripting"
)

// EventSource is a surface that also delivers window or terminal events.
type EventSource interface {
	Pump()
	QuitRequested() bool
}

type Engine struct {
	log      *zap.Logger
	cfg      *config.Config
	exec     *executor.Executor
	bus      *event.Bus
	assets   *asset.Registry
	levels   *level.Loader
	inputs   *input.System
	scripts  *scripting.Engine
	entities *entity.System
	surface  render.Surface
	source   EventSource
	runner   *system.Runner

	// Frame time bounds in milliseconds.
	minStep       float64
	maxStep       float64
	tickRemainder float64

	active *level.Instance
	quit   atomic.Bool
	frames uint64

	Background render.Color

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(
	log *zap.Logger,
	cfg *config.Config,
	exec *executor.Executor,
	bus *event.Bus,
	assets *asset.Registry,
	levels *level.Loader,
	inputs *input.System,
	scripts *scripting.Engine,
	entities *entity.System,
	surface render.Surface,
) *Engine {
	e := &Engine{
		log:        log.Named("engine"),
		cfg:        cfg,
		exec:       exec,
		bus:        bus,
		assets:     assets,
		levels:     levels,
		inputs:     inputs,
		scripts:    scripts,
		entities:   entities,
		surface:    surface,
		runner:     system.NewRunner(),
		minStep:    1000 / float64(cfg.Engine.FPSMax),
		maxStep:    1000 / float64(cfg.Engine.FPSMin),
		Background: render.Black,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	if src, ok := surface.(EventSource); ok {
		e.source = src
	}
	event.Subscribe(bus, func(q event.QuitRequested) {
		e.log.Info("quit requested", zap.String("reason", q.Reason))
		e.quit.Store(true)
	})

	e.runner.Register(system.Func{P: system.PhaseInput, Fn: e.pollInput})
	e.runner.Register(system.Func{P: system.PhasePreDeferred, Fn: e.dispatch})
	e.runner.Register(system.Func{P: system.PhaseSimulate, Fn: e.simulate})
	e.runner.Register(system.Func{P: system.PhasePostDeferred, Fn: func(time.Duration) { e.exec.RunDeferred() }})
	e.runner.Register(system.Func{P: system.PhaseRender, Fn: func(time.Duration) { e.render() }})
	return e
}

func (e *Engine) Entities() *entity.System   { return e.entities }
func (e *Engine) Inputs() *input.System      { return e.inputs }
func (e *Engine) Scripts() *scripting.Engine { return e.scripts }
func (e *Engine) Bus() *event.Bus            { return e.bus }
func (e *Engine) Level() *level.Instance     { return e.active }
func (e *Engine) Frames() uint64             { return e.frames }

// Quit stops the loop once the current frame is over.
func (e *Engine) Quit(reason string) {
	if !e.quit.Swap(true) {
		e.log.Info("quit requested", zap.String("reason", reason))
	}
}

// Run loops until Quit, a QuitRequested event, a quit key on the surface,
// or ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine loop started",
		zap.Float64("min_timestep_ms", e.minStep),
		zap.Float64("max_timestep_ms", e.maxStep),
		zap.Int("workers", e.exec.Workers()))

	last := e.now()
	for !e.quit.Load() && ctx.Err() == nil {
		start := e.now()
		e.Frame(start.Sub(last))
		last = start
		if d := e.pace(e.now().Sub(start)); d > 0 {
			e.sleep(ctx, d)
		}
	}
	e.log.Info("engine loop stopped", zap.Uint64("frames", e.frames), zap.Int64("panics", e.exec.Panics()))
	return nil
}

// Frame runs every phase once with the measured frame time.
func (e *Engine) Frame(dt time.Duration) {
	e.runner.Tick(dt)
	e.frames++
}

// pace returns how long to sleep after a frame that took elapsed. The
// fractional part of the minimum timestep carries to the next frame.
func (e *Engine) pace(elapsed time.Duration) time.Duration {
	step := e.minStep + e.tickRemainder
	whole := math.Floor(step)
	e.tickRemainder = step - whole
	delay := whole - float64(elapsed)/float64(time.Millisecond)
	if delay <= 0 {
		return 0
	}
	return time.Duration(delay * float64(time.Millisecond))
}

func (e *Engine) pollInput(dt time.Duration) {
	if e.source != nil {
		e.source.Pump()
		if e.source.QuitRequested() {
			e.Quit("quit key")
		}
	}
	e.inputs.Update(float32(dt.Seconds()))
}

func (e *Engine) dispatch(time.Duration) {
	e.bus.SwapBuffers()
	e.bus.DispatchAll()
	e.exec.RunDeferred()
}

func (e *Engine) simulate(dt time.Duration) {
	step := geom.Clamp(float32(dt.Seconds()), 0, float32(e.maxStep/1000))
	if e.active != nil {
		e.active.Advance(step)
	}
	e.entities.Update(step)
}

// Close releases the script VM and stops the workers.
func (e *Engine) Close() error {
	e.entities.Clear()
	e.scripts.Close()
	return e.exec.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
