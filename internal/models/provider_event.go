package models

import (
	"encoding/json"
	"time"
)

// Inbound event kinds reported by the banking provider.
const (
	KindCashinReceived    = "cashin.received"
	KindReceivableExpired = "receivable.expired"
	KindTransferCompleted = "transfer.completed"
	KindTransferFailed    = "transfer.failed"
)

type ProviderEventStatus string

const (
	ProviderEventReceived   ProviderEventStatus = "RECEIVED"
	ProviderEventProcessed  ProviderEventStatus = "PROCESSED"
	ProviderEventUnresolved ProviderEventStatus = "UNRESOLVED"
	ProviderEventFailed     ProviderEventStatus = "FAILED"
)

// ProviderEvent is the persisted record of one authenticated inbound
// callback. UNRESOLVED events are the manual-review queue: the processor
// refuses to guess when charge matching is ambiguous.
type ProviderEvent struct {
	ID              string              `json:"id"`
	Provider        string              `json:"provider"`
	ProviderEventID string              `json:"provider_event_id"`
	AccountID       string              `json:"account_id"`
	Kind            string              `json:"kind"`
	RawBody         []byte              `json:"-"`
	Status          ProviderEventStatus `json:"status"`
	Attempts        int                 `json:"attempts"`
	LastError       string              `json:"last_error,omitempty"`
	ChargeID        string              `json:"charge_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// InboundEnvelope is the provider's wire format for a callback.
type InboundEnvelope struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Object    string          `json:"object"`
	Date      string          `json:"date"`
	Data      json.RawMessage `json:"data"`
}

// InboundPaymentData is the payload carried by payment-related inbound
// events. Fields are optional on the wire; the matching stage falls back
// through them in reliability order.
type InboundPaymentData struct {
	TransactionID string `json:"transaction_id"`
	ExternalRef   string `json:"external_reference"`
	AmountCents   int64  `json:"amount"`
	Method        string `json:"method"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}
