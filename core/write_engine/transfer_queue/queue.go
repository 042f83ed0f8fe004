// Package transferqueue implements the bounded FIFO used to hand pages between
// the reader and the writer. Each Queue has its own lock; a goroutine blocked
// on one queue never holds the other.
package transferqueue

import (
	"fmt"
	"strings"
	"sync"
	"time"

	pagemanager "github.com/sushant-115/draino/core/write_engine/page_manager"
)

// Kind selects the container behind a Queue.
type Kind string

const (
	// KindRing backs the queue with a fixed circular array.
	KindRing Kind = "ring"
	// KindList backs the queue with a growable FIFO.
	KindList Kind = "list"
)

// ParseKind maps a config string onto a Kind. The empty string selects KindRing.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindRing, "":
		return KindRing, nil
	case KindList:
		return KindList, nil
	default:
		return "", fmt.Errorf("unknown queue kind %q (want %q or %q)", s, KindRing, KindList)
	}
}

// UnmarshalText lets Kind be decoded from YAML and flags.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Queue is a thread-safe FIFO of pages bounded by the pool size.
type Queue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	items    backing
	kind     Kind
	capacity int
	closed   bool

	// waitHook receives how long a successful Dequeue was blocked.
	waitHook func(time.Duration)
}

// New creates an empty queue able to hold capacity pages.
func New(kind Kind, capacity int) *Queue {
	if capacity <= 0 {
		panic("transferqueue: capacity must be positive")
	}
	q := &Queue{kind: kind, capacity: capacity}
	q.notEmpty.L = &q.mu
	q.items = q.newBacking()
	return q
}

func (q *Queue) newBacking() backing {
	if q.kind == KindList {
		return newListBacking()
	}
	return newRingBacking(q.capacity)
}

// SetWaitHook installs fn to observe blocked time in Dequeue. It must be called
// before the queue is shared.
func (q *Queue) SetWaitHook(fn func(time.Duration)) {
	q.waitHook = fn
}

func (q *Queue) Kind() Kind { return q.kind }
func (q *Queue) Cap() int   { return q.capacity }

// Len returns the number of queued pages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.len()
}

// IsAvailable reports whether the queue is non-empty. The answer may be stale
// by the time the caller acts on it.
func (q *Queue) IsAvailable() bool {
	return q.Len() > 0
}

// Enqueue appends p to the tail and wakes a blocked Dequeue. Enqueueing a page
// that is already queued, or more pages than the capacity, panics: either one
// means a page was duplicated.
func (q *Queue) Enqueue(p *pagemanager.Page) {
	if !p.MarkQueued() {
		panic(fmt.Sprintf("transferqueue: page %d enqueued while already queued", p.GetPageID()))
	}

	q.mu.Lock()
	if q.items.len() >= q.capacity {
		q.mu.Unlock()
		p.MarkHeld()
		panic(fmt.Sprintf("transferqueue: queue over capacity %d", q.capacity))
	}
	q.items.push(p)
	q.notEmpty.Signal()
	q.mu.Unlock()
}

// TryDequeue pops the head without blocking.
func (q *Queue) TryDequeue() (*pagemanager.Page, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.len() == 0 {
		return nil, false
	}
	return q.popLocked(), true
}

// Dequeue pops the head, blocking until a page is queued. It returns false only
// once the queue is closed and empty.
func (q *Queue) Dequeue() (*pagemanager.Page, bool) {
	var start time.Time

	q.mu.Lock()
	for q.items.len() == 0 {
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if start.IsZero() {
			start = time.Now()
		}
		q.notEmpty.Wait()
	}
	p := q.popLocked()
	q.mu.Unlock()

	if !start.IsZero() && q.waitHook != nil {
		q.waitHook(time.Since(start))
	}
	return p, true
}

func (q *Queue) popLocked() *pagemanager.Page {
	p := q.items.pop()
	p.MarkHeld()
	return p
}

// Close wakes every blocked Dequeue. Pages still queued remain dequeueable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.mu.Unlock()
}

// IsClosed reports whether Close has been called since the last Reset.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Reset empties and reopens the queue. Removed pages are returned so the
// caller can account for them.
func (q *Queue) Reset() []*pagemanager.Page {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := make([]*pagemanager.Page, 0, q.items.len())
	for q.items.len() > 0 {
		drained = append(drained, q.popLocked())
	}
	q.items = q.newBacking()
	q.closed = false
	return drained
}
