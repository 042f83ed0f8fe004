// Package flushmanager implements the writer side of the pipeline: it drains
// filled pages to the output and recycles them to the free list.
package flushmanager

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	pagemanager "github.com/sushant-115/draino/core/write_engine/page_manager"
	transferqueue "github.com/sushant-115/draino/core/write_engine/transfer_queue"
	internaltelemetry "github.com/sushant-115/draino/internal/telemetry"
)

// Terminator exposes the shared termination flag.
type Terminator interface {
	Terminated() bool
}

// Flusher is implemented by outputs that buffer, such as *bufio.Writer.
type Flusher interface {
	Flush() error
}

// Options carries the optional collaborators of a FlushManager.
type Options struct {
	// Limiter throttles output in bytes per second. Its burst must be at least
	// one page.
	Limiter *rate.Limiter
	Logger  *zap.Logger
	Metrics *internaltelemetry.PipelineMetrics
	// DeferFlush leaves the final flush to the caller, which writes more after
	// Run returns and then calls Flush itself.
	DeferFlush bool
}

// Stats summarises what the writer has done. Err combines every non-fatal
// write, throttle and flush error in the order they occurred.
type Stats struct {
	PagesWritten int64
	BytesWritten int64
	ShortWrites  int64
	Err          error
}

// FlushManager drains the buffered queue to the output.
type FlushManager struct {
	buffered  *transferqueue.Queue
	available *transferqueue.Queue
	term      Terminator
	out       io.Writer

	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *internaltelemetry.PipelineMetrics
	deferFlush bool

	stats Stats
}

// NewFlushManager wires a writer between the two queues.
func NewFlushManager(buffered, available *transferqueue.Queue, term Terminator, out io.Writer, opts Options) *FlushManager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = internaltelemetry.NewNoopPipelineMetrics()
	}
	return &FlushManager{
		buffered:   buffered,
		available:  available,
		term:       term,
		out:        out,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		deferFlush: opts.DeferFlush,
	}
}

// Run writes buffered pages until the termination flag is set and the buffered
// queue is empty, then flushes the output unless DeferFlush is set. Each page
// goes back onto the available queue after its write, whether or not the write
// succeeded.
func (fm *FlushManager) Run(ctx context.Context) Stats {
	fm.logger.Debug("flush manager started")

	for !fm.term.Terminated() || fm.buffered.IsAvailable() {
		page, ok := fm.buffered.Dequeue()
		if !ok {
			continue
		}
		fm.metrics.BufferedPagesUpDown.Add(ctx, -1)

		fm.WritePage(ctx, page)
		fm.available.Enqueue(page)
	}

	if !fm.deferFlush {
		fm.Flush()
	}
	fm.logger.Debug("flush manager stopped",
		zap.Int64("pagesWritten", fm.stats.PagesWritten),
		zap.Int64("shortWrites", fm.stats.ShortWrites),
	)
	return fm.stats
}

// WritePage writes the valid bytes of page to the output exactly once. A short
// write is logged and recorded, never retried. The returned error is also
// folded into Stats.Err.
func (fm *FlushManager) WritePage(ctx context.Context, page *pagemanager.Page) error {
	data := page.Bytes()
	if len(data) == 0 {
		return nil
	}

	if fm.limiter != nil {
		if err := fm.limiter.WaitN(ctx, len(data)); err != nil {
			// Throttling is best effort; the page is still written.
			fm.record(fmt.Errorf("%w: page %d: %w", ErrThrottle, page.GetPageID(), err))
			fm.logger.Warn("output throttle wait failed", zap.Uint32("pageID", uint32(page.GetPageID())), zap.Error(err))
		}
	}

	n, err := fm.out.Write(data)
	if n < 0 || n > len(data) {
		n = 0
	}
	fm.stats.PagesWritten++
	fm.stats.BytesWritten += int64(n)
	fm.metrics.PagesWrittenCounter.Add(ctx, 1)
	fm.metrics.BytesWrittenCounter.Add(ctx, int64(n))

	switch {
	case n != len(data):
		fm.stats.ShortWrites++
		fm.metrics.ShortWritesCounter.Add(ctx, 1)
		werr := fmt.Errorf("%w: page %d wrote %d of %d bytes", ErrShortWrite, page.GetPageID(), n, len(data))
		if err != nil {
			werr = fmt.Errorf("%w: %w", werr, err)
		}
		fm.logger.Error("error writing page to output",
			zap.Uint32("pageID", uint32(page.GetPageID())),
			zap.Int("written", n),
			zap.Int("expected", len(data)),
			zap.Error(err),
		)
		fm.record(werr)
		return werr
	case err != nil:
		werr := fmt.Errorf("page %d: %w", page.GetPageID(), err)
		fm.logger.Warn("output reported an error after a complete write",
			zap.Uint32("pageID", uint32(page.GetPageID())), zap.Error(err))
		fm.record(werr)
		return werr
	}
	return nil
}

// Flush flushes the output if it buffers.
func (fm *FlushManager) Flush() error {
	f, ok := fm.out.(Flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		ferr := fmt.Errorf("%w: %w", ErrFlush, err)
		fm.logger.Error("failed to flush output", zap.Error(err))
		fm.record(ferr)
		return ferr
	}
	return nil
}

// Stats returns the counters accumulated so far. It must not be called while
// Run is in progress on another goroutine.
func (fm *FlushManager) Stats() Stats {
	return fm.stats
}

func (fm *FlushManager) record(err error) {
	fm.stats.Err = multierr.Append(fm.stats.Err, err)
}
