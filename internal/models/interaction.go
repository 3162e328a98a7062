package models

import "time"

// Interaction kinds recorded on the charge timeline.
const (
	InteractionChargeCreated = "charge_created"
	InteractionPixIssued     = "pix_issued"
	InteractionBoletoIssued  = "boleto_issued"
	InteractionChargePaid    = "charge_paid"
	InteractionChargeExpired = "charge_expired"
)

// PaymentInteraction is one write-only audit trail entry. Interactions feed
// merchant-facing timelines; business logic never reads them back.
type PaymentInteraction struct {
	ID         string            `json:"id"`
	ChargeID   string            `json:"charge_id"`
	MerchantID string            `json:"merchant_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Kind       string            `json:"kind"`
	Detail     map[string]string `json:"detail,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
