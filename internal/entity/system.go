// Package entity runs the entity simulation: scripted behavior, animation,
// kinematics, tile collision, entity pair collision and contact resolution,
// spread over the executor's workers.
package entity

import (
	"slices"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/bucket"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/core/event"
	"github.com/plate/engine/internal/core/executor"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/level"
	"github.com/plate/engine/internal/sprite"
)

const DefaultCapacity = 4096

var (
	EntitySystemCapacityReached = errs.New(300, "Entity system has reached its maximum entity count")
	EntityNotFound              = errs.New(301, "Entity does not exist")
	UnknownEntityClass          = errs.New(302, "Entity class does not exist")
	EntityMissingSprite         = errs.New(303, "Entity has no sprite")
	UnknownAnimation            = errs.New(304, "Sprite has no animation by that name")
	EntityMissingInit           = errs.New(310, "Entity class has no init method")
	EntityInitException         = errs.New(311, "Entity init raised an exception")
	EntityInitUnknownFailure    = errs.New(312, "Entity init did not finish")
	EntityUpdateException       = errs.New(313, "Entity update raised an exception")
	EntityUpdateUnknownFailure  = errs.New(314, "Entity update did not finish")
	EntityCallbackException     = errs.New(315, "Entity callback raised an exception")
)

// System owns every entity. Topology changes (spawn, destroy) happen on the
// master only; behavior code reaches them through QueueSpawn and
// QueueDestroy.
type System struct {
	log  *zap.Logger
	exec *executor.Executor
	host Host
	bus  *event.Bus

	entities *bucket.Bucket[Entity]
	byID     map[uint32]bucket.Handle
	order    []bucket.Handle
	frame    []bucket.Handle
	nextID   uint32
	classes  map[string]*class

	level       *level.Instance
	onCollision func(Collision)

	renderOrder []*Entity
	renderDirty atomic.Bool
	updating    atomic.Bool
}

func NewSystem(log *zap.Logger, exec *executor.Executor, host Host, bus *event.Bus, capacity int) *System {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &System{
		log:      log,
		exec:     exec,
		host:     host,
		bus:      bus,
		entities: bucket.New[Entity](capacity),
		byID:     make(map[uint32]bucket.Handle),
		nextID:   1,
		classes:  make(map[string]*class),
	}
	s.renderDirty.Store(true)
	return s
}

func (s *System) Executor() *executor.Executor { return s.exec }

// SetLevel selects the level instance entities collide with; nil disables
// tile collision.
func (s *System) SetLevel(in *level.Instance) { s.level = in }

func (s *System) Level() *level.Instance { return s.level }

// OnCollision installs the hook collision events are dispatched to.
func (s *System) OnCollision(fn func(Collision)) { s.onCollision = fn }

func (s *System) Len() int { return s.entities.Len() }

// Updating reports whether entities are running their update methods, when
// changes to shared state must go through the executor's deferred queue.
func (s *System) Updating() bool { return s.updating.Load() }
func (s *System) Cap() int { return s.entities.Cap() }

// Get finds a live entity by id.
func (s *System) Get(id uint32) (*Entity, error) {
	h, ok := s.byID[id]
	if !ok {
		return nil, errs.Detailed(EntityNotFound, "id %d", id)
	}
	e, _ := s.entities.Get(h)
	return e, nil
}

// Each visits entities in spawn order.
func (s *System) Each(fn func(*Entity)) {
	for _, h := range s.order {
		if e, ok := s.entities.Get(h); ok {
			fn(e)
		}
	}
}

func (s *System) class(name string) (*class, error) {
	if c, ok := s.classes[name]; ok {
		return c, nil
	}
	if s.host == nil {
		return nil, errs.Detailed(UnknownEntityClass, "%s (no script host)", name)
	}
	hc := s.host.Class(name)
	if hc == nil {
		return nil, errs.Detailed(UnknownEntityClass, "%s", name)
	}
	c := loadClass(hc)
	s.classes[name] = c
	return c, nil
}

// Spawn creates an entity and runs its class's init. An empty class name
// spawns an entity without behavior. Any failure rolls the spawn back.
// Master only.
func (s *System) Spawn(className string, pos geom.Vector2, spr *sprite.Sprite, animation string) (*Entity, error) {
	var cls *class
	if className != "" {
		var err error
		if cls, err = s.class(className); err != nil {
			return nil, err
		}
		if cls.init == nil {
			return nil, errs.Detailed(EntityMissingInit, "%s", className)
		}
	}

	h, e, err := s.entities.Insert(Entity{})
	if err != nil {
		return nil, errs.Detailed(EntitySystemCapacityReached, "capacity %d", s.entities.Cap())
	}
	*e = Entity{
		ID:       s.nextID,
		Sprite:   spr,
		Position: pos,
		LastPos:  pos,
		VelRange: Unbounded,
		Scale:    geom.Vec(1, 1),
		flags:    DefaultFlags,
		class:    cls,
		system:   s,
		handle:   h,
	}
	s.nextID++

	if spr != nil {
		a := spr.DefaultAnimation()
		if animation != "" {
			if a = spr.Animation(animation); a == nil {
				_ = s.entities.Remove(h)
				return nil, errs.Detailed(UnknownAnimation, "%s has no animation %q", spr.Name, animation)
			}
		}
		e.setAnimation(a)
	}

	if cls != nil {
		obj, err := cls.New()
		if err != nil {
			_ = s.entities.Remove(h)
			return nil, errs.Detailed(EntityInitUnknownFailure, "%s: %v", className, err)
		}
		e.Object = obj
		st, ex := s.invoke(cls.init, obj, func(ctx Context) { ctx.SetArgEntity(0, e) })
		switch st {
		case CallFinished:
		case CallException:
			e.UnbindController()
			_ = s.entities.Remove(h)
			return nil, errs.Detailed(EntityInitException, "%s.%s line %d: %s", className, ex.Function, ex.Line, ex.Message)
		default:
			e.UnbindController()
			_ = s.entities.Remove(h)
			return nil, errs.Detailed(EntityInitUnknownFailure, "%s: %s", className, ex.Message)
		}
	}

	s.byID[e.ID] = h
	s.order = append(s.order, h)
	s.invalidateRenderOrder()
	return e, nil
}

// QueueSpawn spawns on the next deferred drain, or immediately when called
// from inside one. Failures are logged.
func (s *System) QueueSpawn(className string, pos geom.Vector2, spr *sprite.Sprite, animation string) error {
	return s.exec.Defer(func() {
		if _, err := s.Spawn(className, pos, spr, animation); err != nil {
			s.log.Warn("spawn failed", zap.String("class", className), zap.Error(err))
		}
	})
}

// Destroy removes an entity and releases its controller. Master only.
func (s *System) Destroy(id uint32) error {
	h, ok := s.byID[id]
	if !ok {
		return errs.Detailed(EntityNotFound, "id %d", id)
	}
	e, _ := s.entities.Get(h)
	e.UnbindController()
	delete(s.byID, id)
	if i := slices.Index(s.order, h); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.invalidateRenderOrder()
	return s.entities.Remove(h)
}

// QueueDestroy destroys on the next deferred drain.
func (s *System) QueueDestroy(id uint32) error {
	return s.exec.Defer(func() {
		if err := s.Destroy(id); err != nil {
			s.log.Debug("destroy skipped", zap.Uint32("entity_id", id), zap.Error(err))
		}
	})
}

// Clear destroys every entity.
func (s *System) Clear() {
	for _, h := range slices.Clone(s.order) {
		if e, ok := s.entities.Get(h); ok {
			_ = s.Destroy(e.ID)
		}
	}
}

// Update advances the simulation by dt seconds:
//
//  1. every entity updates itself in parallel
//  2. deferred work runs on the caller (spawns, destroys)
//  3. every pair of entities present at the start of the frame is tested
//     in parallel
//  4. deferred contact resolution and collision events run on the caller
func (s *System) Update(dt float32) {
	s.frame = append(s.frame[:0], s.order...)

	s.updating.Store(true)
	s.batch(s.independent, dt)
	s.updating.Store(false)
	s.exec.RunDeferred()

	if len(s.frame) > 1 {
		s.batch(s.pairs, nil)
	}
	s.exec.RunDeferred()
}

func (s *System) batch(fn executor.BatchFunc, shared any) {
	if err := s.exec.SetBatchJob(fn, shared); err != nil {
		s.log.Error("batch job rejected", zap.Error(err))
		return
	}
	for i := range s.frame {
		if err := s.exec.Submit(i); err != nil {
			s.log.Error("batch item rejected", zap.Error(err))
			break
		}
	}
	s.exec.RunBatch()
}

func (s *System) independent(shared, item any) {
	dt := shared.(float32)
	e, ok := s.entities.Get(s.frame[item.(int)])
	if !ok {
		return
	}
	e.LastPos = e.Position

	if e.Has(AnimationEnabled) {
		e.advanceAnimation(dt)
	}
	if e.class != nil && e.class.update != nil {
		st, ex := s.invoke(e.class.update, e.Object, func(ctx Context) {
			ctx.SetArgEntity(0, e)
			ctx.SetArgFloat(1, dt)
		})
		if st != CallFinished {
			base := EntityUpdateUnknownFailure
			if st == CallException {
				base = EntityUpdateException
			}
			s.fail(e, base, ex)
		}
	}
	if e.Has(PhysicsEnabled) {
		e.integrate(dt)
	}
	if s.level != nil {
		s.collideTiles(e)
	}
}

// collideTiles pushes e out of the level's solid tiles and stops its
// velocity against the push.
func (s *System) collideTiles(e *Entity) {
	if e.Animation == nil || e.Animation.Solidity.Hitbox.Kind == 0 {
		return
	}
	sol := &e.Animation.Solidity
	tx := e.SolidityTransform()
	var foot geom.Vector2
	if e.Frame != nil {
		foot = e.Frame.Foot
	}
	push := s.level.Collide(level.Body{
		Hitbox:    sol.Hitbox,
		Transform: tx,
		LastPos:   e.LastPos,
		Foot:      tx.Apply(geom.Vec(foot.X, sol.Foot)),
		Head:      tx.Apply(geom.Vec(foot.X, sol.Head)),
	})
	if push.IsZero() {
		return
	}
	e.Position = e.Position.Add(push)
	if push.X*e.Velocity.X < 0 {
		e.Velocity.X = 0
	}
	if push.Y*e.Velocity.Y < 0 {
		e.Velocity.Y = 0
	}
}

func (s *System) invoke(m Method, this Object, args func(Context)) (CallStatus, Exception) {
	ctx := s.host.RequestContext()
	defer s.host.ReturnContext(ctx)
	if err := ctx.Prepare(m); err != nil {
		return CallOther, Exception{Message: err.Error()}
	}
	ctx.SetThis(this)
	args(ctx)
	st := ctx.Execute()
	if st == CallException {
		return st, ctx.ExceptionInfo()
	}
	return st, Exception{}
}

// fail records a behavior failure. The entity keeps running; the failure
// is logged and published from the next deferred drain.
func (s *System) fail(e *Entity, base *errs.Error, ex Exception) {
	err := errs.Detailed(base, "%s.%s line %d: %s", e.Class(), ex.Function, ex.Line, ex.Message)
	e.record(err)
	id, cls := e.ID, e.Class()
	report := func() {
		s.log.Warn("entity script failed",
			zap.Uint32("entity_id", id),
			zap.String("class", cls),
			zap.String("function", ex.Function),
			zap.Int("line", ex.Line),
			zap.String("message", ex.Message),
			zap.Error(err))
		if s.bus != nil {
			event.Emit(s.bus, event.ScriptFailure{EntityID: id, Class: cls, Function: ex.Function, Line: ex.Line, Message: ex.Message})
		}
	}
	if derr := s.exec.Defer(report); derr != nil {
		report()
	}
}

func (s *System) callButton(e *Entity, m Method, decl string) {
	st, ex := s.invoke(m, e.Object, func(ctx Context) { ctx.SetArgEntity(0, e) })
	if st != CallFinished {
		if ex.Function == "" {
			ex.Function = decl
		}
		s.fail(e, EntityCallbackException, ex)
	}
}

func (s *System) invalidateRenderOrder() { s.renderDirty.Store(true) }
