// Package executor runs the engine's per-frame parallel work. It offers
// three surfaces: data-parallel batch jobs fanned out to workers, a
// deferred queue drained serially on the master, and a z-ordered draw list
// consumed by the master.
//
// The master is whichever goroutine calls RunBatch, RunDeferred and the
// Draw* consumers. Only one goroutine may act as master at a time.
package executor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plate/engine/internal/core/errs"
)

var (
	TooManyDeferredCalls = errs.New(500, "Deferred job queue is full")
	TooManyDeferredDraws = errs.New(501, "Draw list is full")
	TooManyBatchItems    = errs.New(502, "Batch item buffer is full")
	BatchRunning         = errs.New(503, "A batch job is already running")
)

const (
	// BatchCapacity matches a 128 KiB item buffer of pointer-sized items.
	BatchCapacity    = 128 * 1024 / 8
	DeferredCapacity = 8192
	DrawCapacity     = 4096

	deferredPoolSize = 1 << 20
	drawPoolSize     = 1 << 20
)

// BatchFunc processes one item. It runs concurrently with other items and
// must only mutate state owned by its item.
type BatchFunc func(shared, item any)

type Executor struct {
	log     *zap.Logger
	workers int

	mu       sync.Mutex
	ready    *sync.Cond
	complete *sync.Cond
	epoch    uint64
	joined   int
	active   int
	stop     bool
	group    errgroup.Group

	fn      BatchFunc
	shared  any
	items   []any
	next    atomic.Int64
	running atomic.Bool
	panics  atomic.Int64

	deferred deferredGroup
	draws    drawList
}

// New starts workers goroutines. workers <= 0 uses one per CPU; a single
// worker makes the executor cooperative: batch items run on the submitting
// goroutine.
func New(log *zap.Logger, workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e := &Executor{
		log:     log,
		workers: workers,
		items:   make([]any, 0, BatchCapacity),
	}
	e.ready = sync.NewCond(&e.mu)
	e.complete = sync.NewCond(&e.mu)
	e.deferred.init(log, deferredPoolSize)
	e.draws.init(drawPoolSize)

	if e.Cooperative() {
		log.Debug("executor is cooperative")
		return e
	}
	for i := 0; i < workers; i++ {
		e.group.Go(e.worker)
	}
	log.Debug("executor started", zap.Int("workers", workers))
	return e
}

// Cooperative reports whether batch items run inline on the caller.
func (e *Executor) Cooperative() bool { return e.workers <= 1 }

func (e *Executor) Workers() int { return e.workers }

// Panics counts batch items and deferred jobs that panicked.
func (e *Executor) Panics() int64 { return e.panics.Load() }

// Close stops the workers once they reach a batch boundary.
func (e *Executor) Close() error {
	e.mu.Lock()
	e.stop = true
	e.ready.Broadcast()
	e.mu.Unlock()
	return e.group.Wait()
}

// SetBatchJob installs the function and shared parameter for the next
// batch.
func (e *Executor) SetBatchJob(fn BatchFunc, shared any) error {
	if e.running.Load() {
		return BatchRunning
	}
	e.fn = fn
	e.shared = shared
	e.items = e.items[:0]
	return nil
}

// Submit adds an item to the pending batch. In cooperative mode the item is
// processed immediately.
func (e *Executor) Submit(item any) error {
	if e.running.Load() {
		return BatchRunning
	}
	if e.Cooperative() {
		e.runItem(item)
		return nil
	}
	if len(e.items) >= BatchCapacity {
		return errs.Detailed(TooManyBatchItems, "capacity %d", BatchCapacity)
	}
	e.items = append(e.items, item)
	return nil
}

// RunBatch processes every submitted item and returns once all items are
// done and every worker has left the batch. The master takes items too.
func (e *Executor) RunBatch() {
	if e.Cooperative() || len(e.items) == 0 {
		e.items = e.items[:0]
		return
	}
	e.running.Store(true)
	e.next.Store(0)

	e.mu.Lock()
	e.epoch++
	e.joined = 0
	e.ready.Broadcast()
	e.mu.Unlock()

	e.drainBatch()

	e.mu.Lock()
	for e.joined < e.workers || e.active > 0 {
		e.complete.Wait()
	}
	e.mu.Unlock()

	clear(e.items)
	e.items = e.items[:0]
	e.running.Store(false)
}

func (e *Executor) worker() error {
	var seen uint64
	e.mu.Lock()
	for {
		for !e.stop && e.epoch == seen {
			e.ready.Wait()
		}
		if e.stop {
			e.mu.Unlock()
			return nil
		}
		seen = e.epoch
		e.joined++
		e.active++
		e.mu.Unlock()

		e.drainBatch()

		e.mu.Lock()
		e.active--
		e.complete.Broadcast()
	}
}

func (e *Executor) drainBatch() {
	n := int64(len(e.items))
	for {
		i := e.next.Add(1) - 1
		if i >= n {
			return
		}
		e.runItem(e.items[i])
	}
}

func (e *Executor) runItem(item any) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Error("batch item panicked", zap.Any("panic", r))
		}
	}()
	e.fn(e.shared, item)
}
