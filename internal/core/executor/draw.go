package executor

import (
	"cmp"
	"slices"
	"sync/atomic"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/core/mempool"
	"github.com/plate/engine/internal/render"
)

type (
	DrawFunc     func(s render.Surface)
	DrawDataFunc func(s render.Surface, data []byte)
)

type drawEntry struct {
	fn     DrawFunc
	dataFn DrawDataFunc
	data   []byte
	z      int
}

type drawList struct {
	entries []drawEntry
	count   atomic.Int64
	pool    *mempool.Pool
	sorted  []drawEntry
	cursor  int
}

func (d *drawList) init(poolSize int) {
	d.entries = make([]drawEntry, DrawCapacity)
	d.pool = mempool.New(poolSize)
}

func (d *drawList) push(entry drawEntry) error {
	i := d.count.Add(1) - 1
	if i >= DrawCapacity {
		return errs.Detailed(TooManyDeferredDraws, "capacity %d", DrawCapacity)
	}
	d.entries[i] = entry
	return nil
}

// Draw queues fn at depth z. Any goroutine may call it during simulation.
func (e *Executor) Draw(fn DrawFunc, z int) error {
	return e.draws.push(drawEntry{fn: fn, z: z})
}

// DrawData queues fn at depth z with a private copy of payload.
func (e *Executor) DrawData(fn DrawDataFunc, payload []byte, z int) error {
	data, err := e.draws.pool.Copy(payload)
	if err != nil {
		return err
	}
	return e.draws.push(drawEntry{dataFn: fn, data: data, z: z})
}

// DrawBegin sorts the queued draws by ascending z. Entries with equal z
// keep the order they were queued in.
func (e *Executor) DrawBegin() {
	d := &e.draws
	n := min(d.count.Load(), DrawCapacity)
	d.sorted = d.entries[:n]
	slices.SortStableFunc(d.sorted, func(a, b drawEntry) int {
		return cmp.Compare(a.z, b.z)
	})
	d.cursor = 0
}

func (e *Executor) HasDraw() bool {
	return e.draws.cursor < len(e.draws.sorted)
}

// PeekDrawZ returns the depth of the next draw. Only valid while HasDraw.
func (e *Executor) PeekDrawZ() int {
	return e.draws.sorted[e.draws.cursor].z
}

// DrawOne runs the next draw onto s.
func (e *Executor) DrawOne(s render.Surface) {
	d := &e.draws
	entry := d.sorted[d.cursor]
	d.cursor++
	if entry.fn != nil {
		entry.fn(s)
		return
	}
	if entry.dataFn != nil {
		entry.dataFn(s, entry.data)
	}
}

// DrawEnd runs whatever draws remain and empties the list.
func (e *Executor) DrawEnd(s render.Surface) {
	for e.HasDraw() {
		e.DrawOne(s)
	}
	d := &e.draws
	clear(d.entries[:len(d.sorted)])
	d.sorted = nil
	d.cursor = 0
	d.count.Store(0)
	d.pool.Reset()
}

// PendingDraws returns the number of queued draws.
func (e *Executor) PendingDraws() int {
	return int(min(e.draws.count.Load(), DrawCapacity))
}
