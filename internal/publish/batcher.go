package publish

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/trace"
)

// Batcher accumulates events and flushes them in batches.
type Batcher struct {
	next       Publisher
	maxSize    int
	flushDelay time.Duration
	onFlush    func(events []Event, err error)
	mu         sync.Mutex
	items      []Event
	timer      *time.Timer
	wg         sync.WaitGroup
}

var _ Publisher = (*Batcher)(nil)

// NewBatcher creates an event batcher in front of next.
func NewBatcher(next Publisher, maxSize int, flushDelay time.Duration) *Batcher {
	if maxSize <= 0 {
		maxSize = DefaultBatcherMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatcherFlushDelay
	}
	return &Batcher{
		next:       next,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]Event, 0, maxSize),
	}
}

// OnFlush registers a callback invoked after every flush attempt.
func (b *Batcher) OnFlush(fn func(events []Event, err error)) *Batcher {
	b.onFlush = fn
	return b
}

// Publish queues events; it never blocks on the downstream publisher.
func (b *Batcher) Publish(_ context.Context, events ...Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, events...)

	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return nil
	}

	// Start or reset timer for delayed flush
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
	return nil
}

// Pending returns the number of queued events.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Batcher) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.items
	b.items = make([]Event, 0, b.maxSize)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "event_batch_flush")
		defer span.End()
		span.SetAttr("count", len(items))

		log := trace.Logger(ctx)
		err := b.next.Publish(ctx, items...)
		if err != nil {
			span.SetAttr("error", err.Error())
			log.Warn("event batch publish failed", "error", err, "count", len(items))
		} else {
			log.Debug("event batch published", "count", len(items))
		}
		if b.onFlush != nil {
			b.onFlush(items, err)
		}
	}()
}

// Flush forces immediate flush of pending events.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes remaining events and waits for in-flight flushes.
func (b *Batcher) Stop() {
	b.Flush()
	b.wg.Wait()
}
