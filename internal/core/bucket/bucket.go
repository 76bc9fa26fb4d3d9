// Package bucket is fixed-capacity slot storage with generational handles.
// Slots never move, so pointers into a bucket stay valid until the slot is
// removed.
package bucket

import (
	"github.com/plate/engine/internal/core/errs"
)

// Handle encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. Generation increments on remove to
// invalidate stale handles.
type Handle uint64

func NewHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

type Bucket[T any] struct {
	slots       []T
	generations []uint32
	alive       []bool
	freeList    []uint32
	nextIndex   uint32
	count       int
}

func New[T any](capacity int) *Bucket[T] {
	return &Bucket[T]{
		slots:       make([]T, capacity),
		generations: make([]uint32, capacity),
		alive:       make([]bool, capacity),
		freeList:    make([]uint32, 0, 64),
	}
}

// Insert stores v and returns its handle and stable address. A full bucket
// fails with BucketFull.
func (b *Bucket[T]) Insert(v T) (Handle, *T, error) {
	var idx uint32
	switch {
	case len(b.freeList) > 0:
		idx = b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
	case int(b.nextIndex) < len(b.slots):
		idx = b.nextIndex
		b.nextIndex++
	default:
		return 0, nil, errs.Detailed(errs.BucketFull, "capacity %d", len(b.slots))
	}
	b.slots[idx] = v
	b.alive[idx] = true
	b.count++
	return NewHandle(idx, b.generations[idx]), &b.slots[idx], nil
}

func (b *Bucket[T]) Alive(h Handle) bool {
	idx := h.Index()
	if idx >= b.nextIndex {
		return false
	}
	return b.alive[idx] && b.generations[idx] == h.Generation()
}

func (b *Bucket[T]) Get(h Handle) (*T, bool) {
	if !b.Alive(h) {
		return nil, false
	}
	return &b.slots[h.Index()], true
}

// Remove frees the slot. Removing a stale or unknown handle fails with
// BucketIllegalRemove and changes nothing.
func (b *Bucket[T]) Remove(h Handle) error {
	if !b.Alive(h) {
		return errs.Detailed(errs.BucketIllegalRemove, "handle %d/%d", h.Index(), h.Generation())
	}
	idx := h.Index()
	var zero T
	b.slots[idx] = zero
	b.alive[idx] = false
	b.generations[idx]++
	b.freeList = append(b.freeList, idx)
	b.count--
	return nil
}

// Each visits live slots in index order.
func (b *Bucket[T]) Each(fn func(Handle, *T)) {
	for i := uint32(0); i < b.nextIndex; i++ {
		if b.alive[i] {
			fn(NewHandle(i, b.generations[i]), &b.slots[i])
		}
	}
}

// Clear removes every element.
func (b *Bucket[T]) Clear() {
	b.Each(func(h Handle, _ *T) {
		_ = b.Remove(h)
	})
}

func (b *Bucket[T]) Len() int { return b.count }
func (b *Bucket[T]) Cap() int { return len(b.slots) }
