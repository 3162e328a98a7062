package models

import "time"

type SettlementStatus string

const (
	SettlementProcessing SettlementStatus = "PROCESSING"
	SettlementCompleted  SettlementStatus = "COMPLETED"
	SettlementFailed     SettlementStatus = "FAILED"
)

// Settlement is an outbound transfer of a merchant's balance to their bank
// account. Only PROCESSING settlements may transition; COMPLETED and FAILED
// are final.
type Settlement struct {
	ID            string           `json:"id"`
	MerchantID    string           `json:"merchant_id"`
	AmountCents   int64            `json:"amount"`
	Status        SettlementStatus `json:"status"`
	ProviderTxID  string           `json:"provider_transaction_id,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (s *Settlement) Terminal() bool {
	return s.Status == SettlementCompleted || s.Status == SettlementFailed
}
