package pagemanager

import (
	"sync/atomic"
)

// --- Page Management ---

// PageID identifies a page by its slot in the pool arena.
type PageID uint32

// Page is a fixed-size view into the pool arena. It is the unit handed between
// the reader and the writer; the goroutine that dequeued it owns it until it
// is enqueued again.
type Page struct {
	id     PageID
	data   []byte // len == cap == page size, never resized
	length int    // valid bytes, set by the reader

	// queued is true while the page sits inside a transfer queue.
	queued atomic.Bool
}

func newPage(id PageID, data []byte) *Page {
	return &Page{
		id:   id,
		data: data[:len(data):len(data)],
	}
}

// Reset clears the valid length. The underlying bytes are left as-is; they are
// overwritten by the next read.
func (p *Page) Reset() {
	p.length = 0
}

func (p *Page) GetPageID() PageID { return p.id }
func (p *Page) Capacity() int     { return len(p.data) }
func (p *Page) Len() int          { return p.length }
func (p *Page) IsFull() bool      { return p.length == len(p.data) }

// Buffer returns the whole page for filling.
func (p *Page) Buffer() []byte { return p.data }

// Bytes returns the valid portion of the page.
func (p *Page) Bytes() []byte { return p.data[:p.length] }

// SetLen records how many bytes of the page are valid.
func (p *Page) SetLen(n int) {
	if n < 0 || n > len(p.data) {
		panic("pagemanager: page length out of range")
	}
	p.length = n
}

// MarkQueued flips the queued marker on and reports whether it was off.
// Transfer queues use it to reject a page that is already inside a queue.
func (p *Page) MarkQueued() bool { return p.queued.CompareAndSwap(false, true) }

// MarkHeld flips the queued marker off once a page leaves a queue.
func (p *Page) MarkHeld() { p.queued.Store(false) }

// IsQueued reports whether the page currently sits inside a transfer queue.
func (p *Page) IsQueued() bool { return p.queued.Load() }
