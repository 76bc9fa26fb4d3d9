package executor

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/core/mempool"
)

type deferredEntry struct {
	fn     func()
	dataFn func([]byte)
	data   []byte
}

// deferredGroup is a bounded many-producer queue with a single consumer.
type deferredGroup struct {
	log      *zap.Logger
	entries  []deferredEntry
	count    atomic.Int64
	pool     *mempool.Pool
	draining atomic.Bool
}

func (g *deferredGroup) init(log *zap.Logger, poolSize int) {
	g.log = log
	g.entries = make([]deferredEntry, DeferredCapacity)
	g.pool = mempool.New(poolSize)
}

func (g *deferredGroup) push(entry deferredEntry) error {
	i := g.count.Add(1) - 1
	if i >= DeferredCapacity {
		return errs.Detailed(TooManyDeferredCalls, "capacity %d", DeferredCapacity)
	}
	g.entries[i] = entry
	return nil
}

// Defer queues fn for the next RunDeferred. Called while a drain is in
// progress, fn runs immediately instead.
func (e *Executor) Defer(fn func()) error {
	if e.deferred.draining.Load() {
		e.runDeferredEntry(deferredEntry{fn: fn})
		return nil
	}
	return e.deferred.push(deferredEntry{fn: fn})
}

// DeferData queues fn with a private copy of payload. The copy lives in a
// fixed pool that is reset after each drain; an exhausted pool fails with
// BadAlloc.
func (e *Executor) DeferData(fn func([]byte), payload []byte) error {
	if e.deferred.draining.Load() {
		e.runDeferredEntry(deferredEntry{dataFn: fn, data: payload})
		return nil
	}
	data, err := e.deferred.pool.Copy(payload)
	if err != nil {
		return err
	}
	return e.deferred.push(deferredEntry{dataFn: fn, data: data})
}

// RunDeferred runs queued jobs on the caller in the order they were
// queued. Running an empty queue does nothing.
func (e *Executor) RunDeferred() {
	g := &e.deferred
	n := g.count.Load()
	if n == 0 {
		return
	}
	if n > DeferredCapacity {
		e.log.Warn("deferred jobs dropped", zap.Int64("dropped", n-DeferredCapacity))
		n = DeferredCapacity
	}

	g.draining.Store(true)
	for i := int64(0); i < n; i++ {
		e.runDeferredEntry(g.entries[i])
		g.entries[i] = deferredEntry{}
	}
	g.count.Store(0)
	g.pool.Reset()
	g.draining.Store(false)
}

// PendingDeferred returns the number of queued jobs.
func (e *Executor) PendingDeferred() int {
	return int(min(e.deferred.count.Load(), DeferredCapacity))
}

func (e *Executor) runDeferredEntry(entry deferredEntry) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Error("deferred job panicked", zap.Any("panic", r))
		}
	}()
	if entry.fn != nil {
		entry.fn()
		return
	}
	if entry.dataFn != nil {
		entry.dataFn(entry.data)
	}
}
