// Package drain relays an input stream to an output stream through a fixed
// pool of pages. The calling goroutine reads pages into the buffered queue
// while a writer goroutine empties them to the output and recycles them.
//
// Memory use is bounded by the pool: when every page is buffered or held, the
// reader blocks until the writer returns one.
package drain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	flushmanager "github.com/sushant-115/draino/core/write_engine/flush_manager"
	pagemanager "github.com/sushant-115/draino/core/write_engine/page_manager"
	transferqueue "github.com/sushant-115/draino/core/write_engine/transfer_queue"
	internaltelemetry "github.com/sushant-115/draino/internal/telemetry"
)

// Report describes a finished run.
type Report struct {
	RunID        string
	BytesRead    int64
	PagesRead    int64 // full pages plus the partial tail, if any
	PagesWritten int64
	BytesWritten int64
	TailBytes    int
	ShortWrites  int64
	// WriteErr combines the non-fatal output errors of the run.
	WriteErr error
}

// Snapshot is a point-in-time view of where the pages are.
type Snapshot struct {
	Available int
	Buffered  int
	InFlight  int // pages held by the reader or the writer
	Total     int
	State     State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger of the pipeline and its writer. A nil logger
// keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metric instruments updated by every run.
func WithMetrics(metrics *internaltelemetry.PipelineMetrics) Option {
	return func(p *Pipeline) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// WithTracer sets the tracer used for the drain.Run span.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// Pipeline holds the pool, both queues and the coordinator of one drain
// instance. Runs on the same Pipeline are sequential.
type Pipeline struct {
	cfg       Config
	pool      *pagemanager.Pool
	available *transferqueue.Queue
	buffered  *transferqueue.Queue
	coord     *Coordinator

	logger  *zap.Logger
	metrics *internaltelemetry.PipelineMetrics
	tracer  trace.Tracer

	running atomic.Bool
}

// New allocates the page pool and both queues. A pool allocation failure is
// returned as pagemanager.ErrPoolAllocation.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	pool, err := pagemanager.NewPool(cfg.PageSize, cfg.NumPages)
	if err != nil {
		return nil, fmt.Errorf("failed to create page pool: %w", err)
	}

	p := &Pipeline{
		cfg:       cfg,
		pool:      pool,
		available: transferqueue.New(cfg.QueueKind, cfg.NumPages),
		buffered:  transferqueue.New(cfg.QueueKind, cfg.NumPages),
		logger:    zap.NewNop(),
		metrics:   internaltelemetry.NewNoopPipelineMetrics(),
		tracer:    nooptrace.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.coord = newCoordinator(p.buffered)
	p.available.SetWaitHook(func(d time.Duration) {
		p.metrics.BackpressureWaitHistogram.Record(context.Background(), d.Microseconds())
	})
	p.reset()

	p.logger.Info("pipeline initialized",
		zap.Int("pageSize", cfg.PageSize),
		zap.Int("numPages", cfg.NumPages),
		zap.String("queueKind", string(cfg.QueueKind)),
		zap.Int64("writeRateBytesPerSec", cfg.WriteRateBytesPerSec),
	)
	return p, nil
}

// Drain runs a pipeline with the default config once.
func Drain(ctx context.Context, in io.Reader, out io.Writer, opts ...Option) (Report, error) {
	p, err := New(DefaultConfig(), opts...)
	if err != nil {
		return Report{}, err
	}
	return p.Run(ctx, in, out)
}

// Config returns the effective config.
func (p *Pipeline) Config() Config { return p.cfg }

// Snapshot reports queue occupancy. The two queue lengths are read under
// separate locks, so while a run is active the sum is only exact when the
// pipeline is quiescent (for example, blocked on a slow output).
func (p *Pipeline) Snapshot() Snapshot {
	a, b := p.available.Len(), p.buffered.Len()
	return Snapshot{
		Available: a,
		Buffered:  b,
		InFlight:  p.pool.Size() - a - b,
		Total:     p.pool.Size(),
		State:     p.coord.State(),
	}
}

// reset puts every page back onto the available queue.
func (p *Pipeline) reset() {
	p.buffered.Reset()
	p.available.Reset()
	for _, page := range p.pool.Pages() {
		page.Reset()
		p.available.Enqueue(page)
	}
	p.coord.reset()
}

// Run relays in to out until in is exhausted. Full pages are written by the
// writer goroutine in read order; a final partial page is written by the
// calling goroutine after the writer has drained and exited. The output is
// flushed once, after the last write.
//
// Short writes do not fail the run; they are counted and combined into
// Report.WriteErr. Run returns ErrWriterFailed if the writer goroutine
// panicked and ErrRead for input errors other than end of stream.
func (p *Pipeline) Run(ctx context.Context, in io.Reader, out io.Writer) (report Report, err error) {
	if !p.running.CompareAndSwap(false, true) {
		return Report{}, ErrPipelineBusy
	}
	defer p.running.Store(false)
	p.reset()

	start := time.Now()
	report.RunID = uuid.New().String()
	ctx, span := p.tracer.Start(ctx, "drain.Run", trace.WithAttributes(
		attribute.String("draino.run_id", report.RunID),
		attribute.Int("draino.page_size", p.cfg.PageSize),
		attribute.Int("draino.num_pages", p.cfg.NumPages),
		attribute.String("draino.queue_kind", string(p.cfg.QueueKind)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := p.logger.With(zap.String("runID", report.RunID))
	fm := flushmanager.NewFlushManager(p.buffered, p.available, p.coord, out, flushmanager.Options{
		Limiter:    p.newLimiter(),
		Logger:     logger.Named("flush_manager"),
		Metrics:    p.metrics,
		DeferFlush: true,
	})

	writerDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				// Unblock a reader waiting for pages that will never come back.
				p.available.Close()
				writerDone <- fmt.Errorf("%w: %v", ErrWriterFailed, r)
				return
			}
			writerDone <- nil
		}()
		fm.Run(ctx)
	}()

	var (
		page    *pagemanager.Page
		count   int
		readErr error
		joinErr error
	)
	func() {
		// The writer is stopped and joined even if the input panics, so it can
		// never outlive the run and consume pages of a later one.
		defer func() {
			p.coord.Terminate()
			joinErr = <-writerDone
		}()
		page, count, readErr = p.produce(ctx, in, &report)
	}()
	if joinErr != nil {
		logger.Error("writer goroutine failed", zap.Error(joinErr))
		return report, joinErr
	}
	p.coord.markDone()

	if page != nil {
		if count > 0 && count < p.cfg.PageSize {
			report.TailBytes = count
			fm.WritePage(ctx, page)
		}
		page.Reset()
		p.available.Enqueue(page)
	}
	fm.Flush()

	stats := fm.Stats()
	report.PagesWritten = stats.PagesWritten
	report.BytesWritten = stats.BytesWritten
	report.ShortWrites = stats.ShortWrites
	report.WriteErr = stats.Err
	p.metrics.RunDurationHistogram.Record(ctx, time.Since(start).Milliseconds())

	logger.Info("drain complete",
		zap.Int64("bytesRead", report.BytesRead),
		zap.Int64("bytesWritten", report.BytesWritten),
		zap.Int64("pagesWritten", report.PagesWritten),
		zap.Int("tailBytes", report.TailBytes),
		zap.Int64("shortWrites", report.ShortWrites),
		zap.Duration("elapsed", time.Since(start)),
	)

	if readErr != nil {
		logger.Error("input ended with an error", zap.Error(readErr))
		return report, fmt.Errorf("%w: %w", ErrRead, readErr)
	}
	return report, nil
}

// produce fills pages from in and buffers every full one. It returns the last
// page, which is never buffered, with its byte count. page is nil only if the
// writer failed while the reader was waiting for a free page.
func (p *Pipeline) produce(ctx context.Context, in io.Reader, report *Report) (*pagemanager.Page, int, error) {
	page, ok := p.available.Dequeue()
	if !ok {
		return nil, 0, nil
	}
	count, err := p.fill(ctx, in, page, report)

	for count == p.cfg.PageSize {
		p.buffered.Enqueue(page)
		p.metrics.BufferedPagesUpDown.Add(ctx, 1)

		page, ok = p.available.Dequeue()
		if !ok {
			return nil, 0, nil
		}
		count, err = p.fill(ctx, in, page, report)
	}
	return page, count, err
}

// fill reads up to one page. End of stream, with or without a partial page,
// is not an error.
func (p *Pipeline) fill(ctx context.Context, in io.Reader, page *pagemanager.Page, report *Report) (int, error) {
	n, err := io.ReadFull(in, page.Buffer())
	page.SetLen(n)
	if n > 0 {
		report.PagesRead++
		report.BytesRead += int64(n)
		p.metrics.PagesReadCounter.Add(ctx, 1)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return n, err
}

func (p *Pipeline) newLimiter() *rate.Limiter {
	if p.cfg.WriteRateBytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(p.cfg.WriteRateBytesPerSec), p.cfg.PageSize)
}
