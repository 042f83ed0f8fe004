package pagemanager

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultPageSize is the size of every page unless configured otherwise.
	DefaultPageSize = 4096
	// DefaultNumPages bounds buffered data to 1 MiB with the default page size.
	DefaultNumPages = 256
	// LargeNumPages buffers up to 512 MiB with the default page size.
	LargeNumPages = 131072
	// MaxArenaBytes caps a single pool allocation.
	MaxArenaBytes int64 = 16 << 30
)

var (
	ErrInvalidPageSize  = errors.New("page size must be positive")
	ErrInvalidPageCount = errors.New("page count must be positive")
	ErrPoolAllocation   = errors.New("page pool allocation failed")
)

// Pool owns one contiguous arena partitioned into fixed-size pages. Pages are
// created once in NewPool and never created, destroyed or resized afterwards.
type Pool struct {
	arena    []byte
	pages    []*Page
	pageSize int
}

// NewPool allocates pageSize*pageCount bytes and partitions them into pages.
func NewPool(pageSize, pageCount int) (pool *Pool, err error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}
	if pageCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageCount, pageCount)
	}
	if int64(pageCount) > math.MaxUint32 || int64(pageSize) > MaxArenaBytes/int64(pageCount) {
		return nil, fmt.Errorf("%w: %d pages of %d bytes exceeds %d bytes", ErrPoolAllocation, pageCount, pageSize, MaxArenaBytes)
	}

	// make panics with a runtime error when the length is out of range for the platform.
	defer func() {
		if r := recover(); r != nil {
			pool, err = nil, fmt.Errorf("%w: %v", ErrPoolAllocation, r)
		}
	}()

	arena := make([]byte, pageSize*pageCount)
	pages := make([]*Page, pageCount)
	for i := range pages {
		off := i * pageSize
		pages[i] = newPage(PageID(i), arena[off:off+pageSize])
	}
	return &Pool{arena: arena, pages: pages, pageSize: pageSize}, nil
}

func (p *Pool) PageSize() int { return p.pageSize }
func (p *Pool) Size() int     { return len(p.pages) }

// Pages returns every page in arena order.
func (p *Pool) Pages() []*Page { return p.pages }

// Page returns the page with the given id, or nil if id is out of range.
func (p *Pool) Page(id PageID) *Page {
	if int(id) >= len(p.pages) {
		return nil
	}
	return p.pages[id]
}
