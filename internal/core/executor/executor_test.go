package executor

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/render"
)

func newExecutor(t *testing.T, workers int) *Executor {
	t.Helper()
	e := New(zap.NewNop(), workers)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func TestRunBatch(t *testing.T) {
	for _, workers := range []int{1, 2, 4} {
		e := newExecutor(t, workers)

		var sum atomic.Int64
		seen := make([]atomic.Int32, 1000)
		require.NoError(t, e.SetBatchJob(func(shared, item any) {
			i := item.(int)
			seen[i].Add(1)
			sum.Add(int64(i * shared.(int)))
		}, 2))
		for i := 0; i < 1000; i++ {
			require.NoError(t, e.Submit(i))
		}
		e.RunBatch()

		require.Equal(t, int64(999*1000), sum.Load(), "workers=%d", workers)
		for i := range seen {
			require.Equal(t, int32(1), seen[i].Load(), "item %d", i)
		}
	}
}

func TestRunBatchRepeatedly(t *testing.T) {
	e := newExecutor(t, 3)
	var count atomic.Int64
	for round := 0; round < 50; round++ {
		require.NoError(t, e.SetBatchJob(func(_, _ any) { count.Add(1) }, nil))
		for i := 0; i < 17; i++ {
			require.NoError(t, e.Submit(i))
		}
		e.RunBatch()
		require.Equal(t, int64(17*(round+1)), count.Load())
	}
}

func TestBatchPanicIsContained(t *testing.T) {
	e := newExecutor(t, 2)
	var done atomic.Int64
	require.NoError(t, e.SetBatchJob(func(_, item any) {
		if item.(int) == 3 {
			panic("boom")
		}
		done.Add(1)
	}, nil))
	for i := 0; i < 8; i++ {
		require.NoError(t, e.Submit(i))
	}
	e.RunBatch()
	require.Equal(t, int64(7), done.Load())
	require.Equal(t, int64(1), e.Panics())
}

func TestBatchCapacity(t *testing.T) {
	e := newExecutor(t, 2)
	require.NoError(t, e.SetBatchJob(func(_, _ any) {}, nil))
	for i := 0; i < BatchCapacity; i++ {
		require.NoError(t, e.Submit(i))
	}
	require.ErrorIs(t, e.Submit(0), TooManyBatchItems)
	e.RunBatch()
}

func TestDeferredOrder(t *testing.T) {
	e := newExecutor(t, 1)
	var order []int
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Defer(func() { order = append(order, i) }))
	}
	require.Equal(t, 5, e.PendingDeferred())
	e.RunDeferred()
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	require.Equal(t, 0, e.PendingDeferred())

	e.RunDeferred()
	require.Equal(t, []int{0, 1, 2, 3, 4}, order, "draining an empty queue is a no-op")
}

func TestDeferredRunsInlineDuringDrain(t *testing.T) {
	e := newExecutor(t, 1)
	var order []string
	require.NoError(t, e.Defer(func() {
		order = append(order, "outer")
		require.NoError(t, e.Defer(func() { order = append(order, "inner") }))
		order = append(order, "outer done")
	}))
	require.NoError(t, e.Defer(func() { order = append(order, "second") }))

	e.RunDeferred()
	require.Equal(t, []string{"outer", "inner", "outer done", "second"}, order)
	require.Equal(t, 0, e.PendingDeferred())
}

func TestDeferredFromWorkers(t *testing.T) {
	e := newExecutor(t, 4)
	var mu sync.Mutex
	got := map[int]bool{}
	require.NoError(t, e.SetBatchJob(func(_, item any) {
		i := item.(int)
		assert.NoError(t, e.Defer(func() {
			mu.Lock()
			got[i] = true
			mu.Unlock()
		}))
	}, nil))
	for i := 0; i < 500; i++ {
		require.NoError(t, e.Submit(i))
	}
	e.RunBatch()
	require.Equal(t, 500, e.PendingDeferred())
	e.RunDeferred()
	require.Len(t, got, 500)
}

func TestDeferredCapacity(t *testing.T) {
	e := newExecutor(t, 1)
	var ran int
	for i := 0; i < DeferredCapacity; i++ {
		require.NoError(t, e.Defer(func() { ran++ }))
	}
	require.ErrorIs(t, e.Defer(func() { ran++ }), TooManyDeferredCalls)
	e.RunDeferred()
	require.Equal(t, DeferredCapacity, ran)

	require.NoError(t, e.Defer(func() { ran++ }), "queue is usable again after a drain")
}

func TestDeferData(t *testing.T) {
	e := newExecutor(t, 1)
	payload := []byte("spawn:slime")
	var got string
	require.NoError(t, e.DeferData(func(b []byte) { got = string(b) }, payload))
	payload[0] = 'X'
	e.RunDeferred()
	require.Equal(t, "spawn:slime", got, "payload is copied at queue time")

	big := make([]byte, deferredPoolSize+1)
	require.ErrorIs(t, e.DeferData(func([]byte) {}, big), errs.BadAlloc)
}

func TestDrawOrdering(t *testing.T) {
	e := newExecutor(t, 1)
	var order []string
	push := func(name string, z int) {
		require.NoError(t, e.Draw(func(render.Surface) { order = append(order, name) }, z))
	}
	push("first z1", 1)
	push("second z1", 1)
	push("z0", 0)

	rec := render.NewRecorder(10, 10)
	e.DrawBegin()
	require.True(t, e.HasDraw())
	require.Equal(t, 0, e.PeekDrawZ())
	e.DrawOne(rec)
	require.Equal(t, 1, e.PeekDrawZ())
	e.DrawEnd(rec)

	require.Equal(t, []string{"z0", "first z1", "second z1"}, order)
	require.False(t, e.HasDraw())
	require.Equal(t, 0, e.PendingDraws())
}

func TestDrawStableUnderManyEqualDepths(t *testing.T) {
	e := newExecutor(t, 1)
	var order []int
	for i := 0; i < 200; i++ {
		require.NoError(t, e.Draw(func(render.Surface) { order = append(order, i) }, i%3))
	}
	e.DrawBegin()
	e.DrawEnd(render.NewRecorder(1, 1))

	require.Len(t, order, 200)
	last := map[int]int{0: -1, 1: -1, 2: -1}
	prevZ := 0
	for _, i := range order {
		z := i % 3
		require.GreaterOrEqual(t, z, prevZ)
		require.Greater(t, i, last[z])
		last[z], prevZ = i, z
	}
}

func TestDrawData(t *testing.T) {
	e := newExecutor(t, 1)
	rec := render.NewRecorder(10, 10)
	require.NoError(t, e.DrawData(func(s render.Surface, data []byte) {
		s.FillRect(geom.AABB{Right: float32(data[0]), Bottom: float32(data[1])}, render.Red)
	}, []byte{4, 2}, 5))

	e.DrawBegin()
	e.DrawEnd(rec)

	ops := rec.Ops()
	require.Len(t, ops, 1)
	require.Equal(t, geom.AABB{Right: 4, Bottom: 2}, ops[0].Rect)

	for i := 0; i < DrawCapacity; i++ {
		require.NoError(t, e.Draw(func(render.Surface) {}, 0))
	}
	require.ErrorIs(t, e.Draw(func(render.Surface) {}, 0), TooManyDeferredDraws)
	e.DrawBegin()
	e.DrawEnd(rec)
}
