// Package mempool provides a fixed-size arena that hands out byte slices
// until it is reset. Allocation is lock-free so workers can copy payloads
// concurrently.
package mempool

import (
	"sync/atomic"

	"github.com/plate/engine/internal/core/errs"
)

const align = 8

type Pool struct {
	buf  []byte
	used atomic.Int64
}

func New(size int) *Pool {
	return &Pool{buf: make([]byte, size)}
}

// Alloc reserves n bytes. It fails with BadAlloc once the arena is
// exhausted; the failed reservation is not rolled back, so later requests
// fail as well until Reset.
func (p *Pool) Alloc(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	rounded := int64((n + align - 1) &^ (align - 1))
	end := p.used.Add(rounded)
	if end > int64(len(p.buf)) {
		return nil, errs.Detailed(errs.BadAlloc, "%d bytes requested, pool holds %d", n, len(p.buf))
	}
	start := end - rounded
	return p.buf[start : start+int64(n) : start+int64(n)], nil
}

// Copy allocates room for src and copies it in.
func (p *Pool) Copy(src []byte) ([]byte, error) {
	dst, err := p.Alloc(len(src))
	if err != nil {
		return nil, err
	}
	copy(dst, src)
	return dst, nil
}

// Reset releases every allocation at once. Slices handed out earlier must
// no longer be used.
func (p *Pool) Reset() {
	p.used.Store(0)
}

func (p *Pool) Size() int { return len(p.buf) }

// Used returns the reserved byte count, capped at Size.
func (p *Pool) Used() int {
	u := p.used.Load()
	if u > int64(len(p.buf)) {
		return len(p.buf)
	}
	return int(u)
}
