package models

import (
	"slices"
	"time"
)

type WebhookStatus string

const (
	WebhookActive    WebhookStatus = "ACTIVE"
	WebhookSuspended WebhookStatus = "SUSPENDED"
)

// Webhook is a merchant-owned outbound subscription. Delivery outcomes
// mutate the failure counter; crossing the suspension threshold parks the
// subscription until an operator re-activates it.
type Webhook struct {
	ID            string        `json:"id"`
	PublicID      string        `json:"public_id"`
	MerchantID    string        `json:"merchant_id"`
	URL           string        `json:"url"`
	Secret        string        `json:"-"`
	Events        []string      `json:"events"`
	Status        WebhookStatus `json:"status"`
	FailureCount  int           `json:"failure_count"`
	LastSuccessAt *time.Time    `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time    `json:"last_failure_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Subscribed reports whether the subscription wants the given event. An
// empty event list means subscribe-to-everything.
func (w *Webhook) Subscribed(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	return slices.Contains(w.Events, event)
}

// WebhookLog is the append-only record of one delivery attempt. Never
// mutated after creation.
type WebhookLog struct {
	ID           string    `json:"id"`
	WebhookID    string    `json:"webhook_id"`
	Event        string    `json:"event"`
	Payload      string    `json:"payload"`
	StatusCode   int       `json:"status_code"`
	ResponseBody string    `json:"response_body"`
	LatencyMS    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	Attempt      int       `json:"attempt"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProviderConfig registers an inbound callback channel from the banking
// provider: which provider account maps to which merchant, and the shared
// secret used to authenticate its webhooks.
type ProviderConfig struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	AccountID  string    `json:"account_id"`
	MerchantID string    `json:"merchant_id"`
	Secret     string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
