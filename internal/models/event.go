package models

import (
	"encoding/json"
	"time"
)

// Routing keys for platform events published to merchants.
const (
	EventChargeCreated      = "charge.created"
	EventChargeSplitCreated = "charge.split.created"
	EventChargePaid         = "charge.paid"
	EventChargeExpired      = "charge.expired"
)

// PlatformEvent is the durable event record carried on the internal bus
// between the issuance/reconciliation services and the outbound dispatcher.
// Events are only ever published after the state they describe has been
// committed.
type PlatformEvent struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Type       string          `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}
