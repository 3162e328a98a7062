package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/interfaces"
)

const outboxBatchSize = 100

// OutboxRelay moves committed transition events from the outbox to the bus.
// Delivery is at-least-once: a crash between publish and mark re-sends the
// event on the next pass, and a bus outage leaves rows pending instead of
// losing them.
type OutboxRelay struct {
	outbox    interfaces.OutboxRepository
	publisher interfaces.EventPublisher
	interval  time.Duration
	log       *zap.Logger
}

func NewOutboxRelay(outbox interfaces.OutboxRepository, publisher interfaces.EventPublisher, interval time.Duration, log *zap.Logger) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		log:       log,
	}
}

// Run drains the outbox on a fixed interval. Started once from main.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.log.Info("Outbox relay started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain publishes pending rows in commit order. The first failure stops the
// pass so ordering holds; the remaining rows wait for the next tick.
func (r *OutboxRelay) Drain(ctx context.Context) {
	events, err := r.outbox.ListUnpublished(ctx, outboxBatchSize)
	if err != nil {
		r.log.Error("Failed to read event outbox", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.log.Error("Failed to publish outbox event",
				zap.String("event_id", event.ID),
				zap.String("type", event.Type),
				zap.Error(err),
			)
			return
		}
		if err := r.outbox.MarkPublished(ctx, event.ID); err != nil {
			r.log.Warn("Failed to mark outbox event published",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			return
		}
	}
}
