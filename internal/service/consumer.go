package service

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
)

// EventConsumer bridges the durable event bus to the outbound dispatcher:
// every committed platform event fans out to the merchant's subscriptions.
type EventConsumer struct {
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewEventConsumer(dispatcher *Dispatcher, log *zap.Logger) *EventConsumer {
	return &EventConsumer{dispatcher: dispatcher, log: log}
}

func (c *EventConsumer) Run(ctx context.Context, brokers, topic, groupID string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokers},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	c.log.Info("Started consuming platform events", zap.String("topic", topic))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		var event models.PlatformEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("Error unmarshaling platform event", zap.Error(err))
			continue
		}

		result, err := c.dispatcher.Dispatch(ctx, event.MerchantID, event.Type, event.Payload)
		if err != nil {
			c.log.Error("Error dispatching platform event",
				zap.String("event_id", event.ID),
				zap.String("type", event.Type),
				zap.Error(err),
			)
			continue
		}

		c.log.Info("Dispatched platform event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Int("attempted", result.Attempted),
			zap.Int("delivered", result.Delivered),
		)
	}
}
