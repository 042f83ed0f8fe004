package pagemanager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPool_PartitionsOneArena(t *testing.T) {
	pool, err := NewPool(16, 4)
	require.NoError(t, err)
	require.Equal(t, 4, pool.Size())
	require.Equal(t, 16, pool.PageSize())
	require.Len(t, pool.arena, 64)

	for i, page := range pool.Pages() {
		require.Equal(t, PageID(i), page.GetPageID())
		require.Equal(t, 16, page.Capacity())
		require.Equal(t, 0, page.Len())
		require.False(t, page.IsQueued())
		// Page i must view its own slice of the arena.
		page.Buffer()[0] = byte(i + 1)
		require.Equal(t, byte(i+1), pool.arena[i*16])
	}
	require.Same(t, pool.Pages()[2], pool.Page(2))
	require.Nil(t, pool.Page(4))
}

func TestNewPool_PagesCannotGrowIntoNeighbours(t *testing.T) {
	pool, err := NewPool(8, 2)
	require.NoError(t, err)

	first := pool.Page(0).Buffer()
	require.Equal(t, 8, cap(first))
	grown := append(first, 0xFF)
	grown[0] = 0xAA
	require.Equal(t, byte(0), pool.Page(1).Buffer()[0])
}

func TestNewPool_RejectsBadSizes(t *testing.T) {
	_, err := NewPool(0, 4)
	require.ErrorIs(t, err, ErrInvalidPageSize)

	_, err = NewPool(4096, -1)
	require.ErrorIs(t, err, ErrInvalidPageCount)

	_, err = NewPool(1<<30, 1<<10)
	require.ErrorIs(t, err, ErrPoolAllocation)
}

func TestPage_Length(t *testing.T) {
	pool, err := NewPool(8, 1)
	require.NoError(t, err)
	page := pool.Page(0)

	copy(page.Buffer(), "abcdefgh")
	page.SetLen(3)
	require.Equal(t, []byte("abc"), page.Bytes())
	require.False(t, page.IsFull())

	page.SetLen(8)
	require.True(t, page.IsFull())

	page.Reset()
	require.Empty(t, page.Bytes())
	require.Panics(t, func() { page.SetLen(9) })
}

func TestPage_QueuedMarker(t *testing.T) {
	pool, err := NewPool(8, 1)
	require.NoError(t, err)
	page := pool.Page(0)

	require.True(t, page.MarkQueued())
	require.False(t, page.MarkQueued())
	page.MarkHeld()
	require.True(t, page.MarkQueued())
}
