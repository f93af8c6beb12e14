package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ccdash/internal/amqp"
	"ccdash/internal/log"
	"ccdash/internal/storage"
)

// EventStore persists snapshot events.
type EventStore interface {
	RecordEvent(ctx context.Context, e storage.DashboardEvent) (bool, error)
}

// EventRecorder stores consumed snapshot events. Redelivered messages are
// recognised by ID and ignored.
type EventRecorder struct {
	store  EventStore
	logger *log.Logger
	now    func() time.Time
}

func NewEventRecorder(store EventStore, logger *log.Logger) *EventRecorder {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &EventRecorder{store: store, logger: logger.WithComponent(log.ComponentEvents), now: time.Now}
}

// Handle implements the amqp consumer callback.
func (r *EventRecorder) Handle(ctx context.Context, msg *amqp.SnapshotMessage) error {
	total, err := decimal.NewFromString(msg.KPIs.Sum)
	if err != nil {
		total = decimal.Zero
		r.logger.WarnContext(ctx, "Snapshot event has an invalid sum", "id", msg.ID, "sum", msg.KPIs.Sum)
	}

	inserted, err := r.store.RecordEvent(ctx, storage.DashboardEvent{
		ID:         msg.ID,
		FilterKey:  msg.FilterKey,
		Rows:       msg.KPIs.Count,
		TotalCents: total.Shift(2).Round(0).IntPart(),
		ReceivedAt: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record event %s: %w", msg.ID, err)
	}
	if !inserted {
		r.logger.DebugContext(ctx, "Duplicate snapshot event ignored", "id", msg.ID)
		return nil
	}
	r.logger.InfoContext(ctx, "Snapshot event recorded",
		"id", msg.ID,
		log.FieldRequestID, msg.RequestID,
		log.FieldFilterKey, msg.FilterKey,
		log.FieldRows, msg.KPIs.Count)
	return nil
}
