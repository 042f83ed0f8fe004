package transferqueue

import (
	"github.com/eapache/queue"

	pagemanager "github.com/sushant-115/draino/core/write_engine/page_manager"
)

// backing is the FIFO container under a Queue. It is never touched without
// holding the Queue lock.
type backing interface {
	push(p *pagemanager.Page)
	pop() *pagemanager.Page
	len() int
}

// ringBacking is a fixed array circular buffer sized to the pool.
type ringBacking struct {
	pages []*pagemanager.Page
	front int
	size  int
}

func newRingBacking(capacity int) *ringBacking {
	return &ringBacking{pages: make([]*pagemanager.Page, capacity)}
}

func (r *ringBacking) push(p *pagemanager.Page) {
	back := r.front + r.size
	if back >= len(r.pages) {
		back -= len(r.pages)
	}
	r.pages[back] = p
	r.size++
}

func (r *ringBacking) pop() *pagemanager.Page {
	p := r.pages[r.front]
	r.pages[r.front] = nil
	r.front++
	if r.front == len(r.pages) {
		r.front = 0
	}
	r.size--
	return p
}

func (r *ringBacking) len() int { return r.size }

// listBacking grows on demand. Capacity is still enforced by the Queue.
type listBacking struct {
	q *queue.Queue
}

func newListBacking() *listBacking {
	return &listBacking{q: queue.New()}
}

func (l *listBacking) push(p *pagemanager.Page) { l.q.Add(p) }
func (l *listBacking) pop() *pagemanager.Page  { return l.q.Remove().(*pagemanager.Page) }
func (l *listBacking) len() int                { return l.q.Length() }
