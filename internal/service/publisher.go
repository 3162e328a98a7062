package service

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
)

// KafkaPublisher writes committed platform events to the durable bus. The
// dispatcher consumes them on the other side, so outbound delivery always
// trails persisted state.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *models.PlatformEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MerchantID),
		Value: value,
	})
	if err != nil {
		p.log.Error("Failed to publish platform event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return err
	}

	p.log.Info("Published platform event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("merchant_id", event.MerchantID),
	)
	return nil
}
