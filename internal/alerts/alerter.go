// Package alerts escalates processing failures to operators. The engine
// publishes structured alerts to NATS; the notification service owns email
// rendering and delivery.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
)

const subjectWebhookFailed = "ops.webhook.failed"

type NatsAlerter struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewNatsAlerter(nc *nats.Conn, log *zap.Logger) *NatsAlerter {
	return &NatsAlerter{nc: nc, log: log}
}

type webhookFailureAlert struct {
	EventID         string    `json:"event_id"`
	ProviderEventID string    `json:"provider_event_id"`
	Provider        string    `json:"provider"`
	Kind            string    `json:"kind"`
	Attempts        int       `json:"attempts"`
	LastError       string    `json:"last_error,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (a *NatsAlerter) WebhookProcessingFailed(_ context.Context, event *models.ProviderEvent, attempts int) error {
	payload, err := json.Marshal(webhookFailureAlert{
		EventID:         event.ID,
		ProviderEventID: event.ProviderEventID,
		Provider:        event.Provider,
		Kind:            event.Kind,
		Attempts:        attempts,
		LastError:       event.LastError,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := a.nc.Publish(subjectWebhookFailed, payload); err != nil {
		return err
	}

	a.log.Info("Operator alert published",
		zap.String("event_id", event.ID),
		zap.Int("attempts", attempts),
	)
	return nil
}
