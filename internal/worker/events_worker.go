// Package worker runs the dashboard events consumer.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ccdash/internal/amqp"
	"ccdash/internal/log"
	"ccdash/internal/storage"
)

// Handler processes one consumed snapshot event.
type Handler func(context.Context, *amqp.SnapshotMessage) error

// PopularityReader reports the most requested filters.
type PopularityReader interface {
	TopFilters(ctx context.Context, limit int) ([]storage.FilterCount, error)
}

// EventsWorker records snapshot events and periodically logs the most
// requested filters.
type EventsWorker struct {
	handle    Handler
	store     PopularityReader
	logger    *log.Logger
	topN      int
	processed atomic.Int64
	failed    atomic.Int64
}

func NewEventsWorker(handle Handler, store PopularityReader, logger *log.Logger, topN int) *EventsWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	if topN < 1 {
		topN = 5
	}
	return &EventsWorker{
		handle: handle,
		store:  store,
		logger: logger.WithComponent(log.ComponentEvents),
		topN:   topN,
	}
}

// HandleSnapshot is passed to amqp.Client.ConsumeSnapshots. A handler
// error nacks the delivery.
func (w *EventsWorker) HandleSnapshot(ctx context.Context, msg *amqp.SnapshotMessage) error {
	if msg == nil || msg.ID == "" {
		w.failed.Add(1)
		return fmt.Errorf("snapshot event without id")
	}
	if err := w.handle(ctx, msg); err != nil {
		w.failed.Add(1)
		return err
	}
	w.processed.Add(1)
	return nil
}

// Counts returns how many events were handled and how many failed.
func (w *EventsWorker) Counts() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// Report logs the most requested filters.
func (w *EventsWorker) Report(ctx context.Context) error {
	top, err := w.store.TopFilters(ctx, w.topN)
	if err != nil {
		return fmt.Errorf("read filter popularity: %w", err)
	}
	for i, fc := range top {
		w.logger.InfoContext(ctx, "Popular filter",
			"rank", i+1,
			log.FieldFilterKey, fc.FilterKey,
			"events", fc.Events)
	}
	w.logger.InfoContext(ctx, "Events summary",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
		"distinct_reported", len(top))
	return nil
}

// RunReports calls Report every interval until ctx is done.
func (w *EventsWorker) RunReports(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Report(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic report failed", log.FieldError, err)
			}
		}
	}
}
