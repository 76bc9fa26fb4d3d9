package bucket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plate/engine/internal/core/errs"
)

func TestInsertAndGet(t *testing.T) {
	b := New[string](2)

	h1, p1, err := b.Insert("a")
	require.NoError(t, err)
	h2, _, err := b.Insert("b")
	require.NoError(t, err)

	got, ok := b.Get(h1)
	require.True(t, ok)
	require.Same(t, p1, got)
	require.Equal(t, "a", *got)

	_, _, err = b.Insert("c")
	require.ErrorIs(t, err, errs.BucketFull)
	require.Equal(t, 2, b.Len())

	require.NoError(t, b.Remove(h2))
	require.False(t, b.Alive(h2))

	h3, _, err := b.Insert("c")
	require.NoError(t, err)
	require.Equal(t, h2.Index(), h3.Index(), "slot is reused")
	require.NotEqual(t, h2, h3, "generation changes")
}

func TestIllegalRemove(t *testing.T) {
	b := New[int](4)
	h, _, err := b.Insert(7)
	require.NoError(t, err)
	require.NoError(t, b.Remove(h))

	require.ErrorIs(t, b.Remove(h), errs.BucketIllegalRemove)
	require.ErrorIs(t, b.Remove(NewHandle(3, 0)), errs.BucketIllegalRemove)
	require.Equal(t, 0, b.Len())
}

func TestEachOrderAndClear(t *testing.T) {
	b := New[int](8)
	var handles []Handle
	for i := 0; i < 5; i++ {
		h, _, err := b.Insert(i * 10)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.NoError(t, b.Remove(handles[1]))

	var seen []int
	b.Each(func(_ Handle, v *int) { seen = append(seen, *v) })
	require.Equal(t, []int{0, 20, 30, 40}, seen)

	b.Clear()
	require.Equal(t, 0, b.Len())
	require.Equal(t, 8, b.Cap())
	for _, h := range handles {
		require.False(t, b.Alive(h))
	}
}
