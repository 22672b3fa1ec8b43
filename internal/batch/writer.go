// Package batch buffers product URLs and writes them to storage in bulk.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// DefaultSize is the buffer length that triggers a flush.
const DefaultSize = 10

// Inserter is the storage operation the writer depends on.
type Inserter interface {
	BulkInsert(ctx context.Context, rows []crawler.ProductRecord) error
}

// Writer accumulates records and flushes them once Size are buffered. A
// failed flush keeps the batch for the next trigger.
type Writer struct {
	mu      sync.Mutex
	flushMu sync.Mutex
	buf     []crawler.ProductRecord
	size    int
	sink    Inserter
	metrics *crawler.Metrics
	retry   crawler.RetryPolicy
	pause   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger
}

// New creates a Writer. retry governs the crawl-end flush in Close.
func New(sink Inserter, size int, metrics *crawler.Metrics, retry crawler.RetryPolicy, logger *zap.Logger) (*Writer, error) {
	if sink == nil {
		return nil, errors.New("batch: sink is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	if metrics == nil {
		metrics = crawler.NewMetrics(nil)
	}
	if retry == nil {
		retry = crawler.NewExponentialRetryPolicy(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		size:    size,
		sink:    sink,
		metrics: metrics,
		retry:   retry,
		pause:   crawler.Pause,
		logger:  logger.With(zap.String("component", "batch_writer")),
	}, nil
}

// Add buffers rec and flushes when the buffer is full. Once ctx is done the
// records stay buffered for Close.
func (w *Writer) Add(ctx context.Context, rec crawler.ProductRecord) error {
	w.mu.Lock()
	w.buf = append(w.buf, rec)
	pending := len(w.buf)
	w.mu.Unlock()
	if pending < w.size {
		return nil
	}
	if ctx.Err() != nil {
		w.logger.Debug("flush deferred to close", zap.Int("rows", pending), zap.Error(ctx.Err()))
		return nil
	}
	return w.Flush(ctx)
}

// Flush sends everything buffered as one bulk insert. Records added while
// the insert is in flight stay buffered for the next flush.
func (w *Writer) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := append([]crawler.ProductRecord(nil), w.buf...)
	w.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := w.sink.BulkInsert(ctx, batch); err != nil {
		w.metrics.StorageFailed(len(batch), err)
		return &crawler.StorageFailure{Op: "bulk insert", Rows: len(batch), Err: err}
	}

	w.mu.Lock()
	w.buf = append([]crawler.ProductRecord(nil), w.buf[len(batch):]...)
	w.mu.Unlock()
	w.metrics.BatchFlushed(len(batch))
	w.logger.Debug("batch flushed", zap.Int("rows", len(batch)))
	return nil
}

// Close flushes the remainder, retrying per the retry policy. An error means
// rows are still pending.
func (w *Writer) Close(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := w.Flush(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !w.retry.ShouldRetry(err, attempt) {
			return err
		}
		delay := w.retry.Backoff(attempt)
		w.logger.Warn("final flush failed; retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if perr := w.pause(ctx, delay); perr != nil {
			return err
		}
	}
}

// Pending returns how many records are buffered.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}
