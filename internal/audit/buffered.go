package audit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/agentweave/agentweave/internal/core/ports"
)

// BufferedSink decouples audit recording from the request path: Record
// enqueues onto a bounded channel and returns immediately, while a
// background worker drains the channel into an underlying sink. A sink
// that falls behind (or is down) must never block a security-relevant
// operation on audit I/O, so once the queue is full, Record drops the
// event and increments a loss counter rather than blocking.
type BufferedSink struct {
	underlying ports.AuditSink
	queue      chan ports.AuditEvent
	lost       atomic.Int64
	cancel     context.CancelFunc
	group      *errgroup.Group
	logger     *slog.Logger
}

// NewBufferedSink wraps underlying with a queue of the given capacity and
// starts the background drain worker.
func NewBufferedSink(ctx context.Context, underlying ports.AuditSink, capacity int) *BufferedSink {
	if capacity <= 0 {
		capacity = 256
	}
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	b := &BufferedSink{
		underlying: underlying,
		queue:      make(chan ports.AuditEvent, capacity),
		cancel:     cancel,
		group:      group,
		logger:     slog.Default(),
	}
	group.Go(func() error {
		return b.drain(ctx)
	})
	return b
}

func (b *BufferedSink) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.drainRemaining()
			return nil
		case event := <-b.queue:
			if err := b.underlying.Record(context.Background(), event); err != nil {
				b.logger.Error("buffered audit sink failed to record event", "error", err)
			}
		}
	}
}

// drainRemaining flushes whatever is left in the queue once the worker's
// context is cancelled, so a clean Close doesn't silently lose events
// that were enqueued right before shutdown.
func (b *BufferedSink) drainRemaining() {
	for {
		select {
		case event := <-b.queue:
			if err := b.underlying.Record(context.Background(), event); err != nil {
				b.logger.Error("buffered audit sink failed to record event during drain", "error", err)
			}
		default:
			return
		}
	}
}

// Record enqueues event for asynchronous recording. If the queue is full,
// the event is dropped and the loss counter is incremented; Record never
// blocks the caller.
func (b *BufferedSink) Record(ctx context.Context, event ports.AuditEvent) error {
	select {
	case b.queue <- event:
		return nil
	default:
		b.lost.Add(1)
		b.logger.Warn("audit queue full, dropping event", "audit_id", event.ID, "total_lost", b.lost.Load())
		return nil
	}
}

// Lost returns the total number of audit events dropped because the queue was full.
func (b *BufferedSink) Lost() int64 {
	return b.lost.Load()
}

// Close stops the drain worker, flushing any remaining queued events, then closes the underlying sink.
func (b *BufferedSink) Close() error {
	b.cancel()
	_ = b.group.Wait()
	return b.underlying.Close()
}
