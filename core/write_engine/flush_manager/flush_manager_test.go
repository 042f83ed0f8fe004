package flushmanager

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	pagemanager "github.com/sushant-115/draino/core/write_engine/page_manager"
	transferqueue "github.com/sushant-115/draino/core/write_engine/transfer_queue"
)

// --- Test Helpers ---

type flag struct{ v atomic.Bool }

func (f *flag) Terminated() bool { return f.v.Load() }

// shortWriter accepts at most limit bytes per call.
type shortWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		w.buf.Write(p[:w.limit])
		return w.limit, errors.New("device full")
	}
	return w.buf.Write(p)
}

type fixture struct {
	pool      *pagemanager.Pool
	buffered  *transferqueue.Queue
	available *transferqueue.Queue
	term      *flag
}

func newFixture(t *testing.T, pageSize, n int) *fixture {
	t.Helper()
	pool, err := pagemanager.NewPool(pageSize, n)
	require.NoError(t, err)
	return &fixture{
		pool:      pool,
		buffered:  transferqueue.New(transferqueue.KindRing, n),
		available: transferqueue.New(transferqueue.KindRing, n),
		term:      &flag{},
	}
}

// fillAll writes byte i into every position of page i and buffers it.
func (f *fixture) fillAll() {
	for i, p := range f.pool.Pages() {
		for j := range p.Buffer() {
			p.Buffer()[j] = byte('a' + i)
		}
		p.SetLen(p.Capacity())
		f.buffered.Enqueue(p)
	}
}

func (f *fixture) terminate() {
	f.term.v.Store(true)
	f.buffered.Close()
}

// --- Test Cases ---

func TestFlushManager_DrainsInOrderAndRecycles(t *testing.T) {
	f := newFixture(t, 4, 3)
	f.fillAll()
	f.terminate()

	var out bytes.Buffer
	fm := NewFlushManager(f.buffered, f.available, f.term, &out, Options{Logger: zap.NewNop()})
	stats := fm.Run(context.Background())

	require.Equal(t, "aaaabbbbcccc", out.String())
	require.Equal(t, int64(3), stats.PagesWritten)
	require.Equal(t, int64(12), stats.BytesWritten)
	require.NoError(t, stats.Err)
	require.Equal(t, 0, f.buffered.Len())
	require.Equal(t, 3, f.available.Len())
}

func TestFlushManager_WaitsForPagesUntilTerminated(t *testing.T) {
	f := newFixture(t, 2, 2)
	var out bytes.Buffer
	fm := NewFlushManager(f.buffered, f.available, f.term, &out, Options{})

	done := make(chan Stats)
	go func() { done <- fm.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	p := f.pool.Page(0)
	copy(p.Buffer(), "hi")
	p.SetLen(2)
	f.buffered.Enqueue(p)

	// A page buffered just before the flag flips must still be written.
	q := f.pool.Page(1)
	copy(q.Buffer(), "yo")
	q.SetLen(2)
	f.buffered.Enqueue(q)
	f.terminate()

	select {
	case stats := <-done:
		require.Equal(t, int64(2), stats.PagesWritten)
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not exit after termination")
	}
	require.Equal(t, "hiyo", out.String())
}

func TestFlushManager_ShortWritesAreReportedNotFatal(t *testing.T) {
	f := newFixture(t, 4, 2)
	f.fillAll()
	f.terminate()

	out := &shortWriter{limit: 3}
	fm := NewFlushManager(f.buffered, f.available, f.term, out, Options{})
	stats := fm.Run(context.Background())

	require.Equal(t, int64(2), stats.PagesWritten)
	require.Equal(t, int64(2), stats.ShortWrites)
	require.Equal(t, int64(6), stats.BytesWritten)
	require.ErrorIs(t, stats.Err, ErrShortWrite)
	require.Len(t, multierr.Errors(stats.Err), 2)
	require.Equal(t, "aaabbb", out.buf.String())
	require.Equal(t, 2, f.available.Len(), "pages are recycled even after a short write")
}

func TestFlushManager_FlushesBufferedOutput(t *testing.T) {
	f := newFixture(t, 4, 1)
	f.fillAll()
	f.terminate()

	var sink bytes.Buffer
	bw := bufio.NewWriterSize(&sink, 64)
	fm := NewFlushManager(f.buffered, f.available, f.term, bw, Options{})
	fm.Run(context.Background())

	require.Equal(t, "aaaa", sink.String())
}

func TestFlushManager_DeferFlushLeavesOutputToCaller(t *testing.T) {
	f := newFixture(t, 4, 1)
	f.fillAll()
	f.terminate()

	var sink bytes.Buffer
	bw := bufio.NewWriterSize(&sink, 64)
	fm := NewFlushManager(f.buffered, f.available, f.term, bw, Options{DeferFlush: true})
	fm.Run(context.Background())
	require.Zero(t, sink.Len())

	require.NoError(t, fm.Flush())
	require.Equal(t, "aaaa", sink.String())
}

func TestFlushManager_WritePageSkipsEmptyPage(t *testing.T) {
	f := newFixture(t, 4, 1)
	var out bytes.Buffer
	fm := NewFlushManager(f.buffered, f.available, f.term, &out, Options{})

	require.NoError(t, fm.WritePage(context.Background(), f.pool.Page(0)))
	require.Equal(t, int64(0), fm.Stats().PagesWritten)
}

func TestFlushManager_Throttles(t *testing.T) {
	f := newFixture(t, 100, 3)
	f.fillAll()
	f.terminate()

	// Burst covers the first page; the next two need 200 bytes at 2000 B/s.
	limiter := rate.NewLimiter(rate.Limit(2000), 100)
	var out bytes.Buffer
	fm := NewFlushManager(f.buffered, f.available, f.term, &out, Options{Limiter: limiter})

	start := time.Now()
	stats := fm.Run(context.Background())
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.NoError(t, stats.Err)
	require.Equal(t, 300, out.Len())
}

func TestFlushManager_ThrottleFailureStillWrites(t *testing.T) {
	f := newFixture(t, 100, 1)
	f.fillAll()
	f.terminate()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limiter := rate.NewLimiter(rate.Limit(1), 1) // burst smaller than a page
	var out bytes.Buffer
	fm := NewFlushManager(f.buffered, f.available, f.term, &out, Options{Limiter: limiter})
	stats := fm.Run(ctx)

	require.ErrorIs(t, stats.Err, ErrThrottle)
	require.Equal(t, 100, out.Len())
}
