package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plate/engine/internal/core/errs"
)

func TestAllocAligns(t *testing.T) {
	p := New(64)

	a, err := p.Alloc(3)
	require.NoError(t, err)
	require.Len(t, a, 3)
	require.Equal(t, 8, p.Used())

	b, err := p.Copy([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))
	require.Equal(t, 24, p.Used())

	// Appending to a full slice must not clobber the next allocation.
	_ = append(a, 'x')
	require.Equal(t, "hello world", string(b))

	empty, err := p.Alloc(0)
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestAllocExhausted(t *testing.T) {
	p := New(16)
	_, err := p.Alloc(16)
	require.NoError(t, err)

	_, err = p.Alloc(1)
	require.ErrorIs(t, err, errs.BadAlloc)
	require.Equal(t, 16, p.Used())

	p.Reset()
	_, err = p.Alloc(9)
	require.NoError(t, err)
}

func TestConcurrentAlloc(t *testing.T) {
	p := New(8 * 1000)
	var wg sync.WaitGroup
	slices := make([][]byte, 1000)
	for i := range slices {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := p.Copy([]byte{byte(i), byte(i >> 8)})
			if err == nil {
				slices[i] = s
			}
		}(i)
	}
	wg.Wait()

	for i, s := range slices {
		require.Equal(t, []byte{byte(i), byte(i >> 8)}, s)
	}
	require.Equal(t, p.Size(), p.Used())
}
