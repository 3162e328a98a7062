package models

import "time"

type ChargeStatus string

const (
	ChargePending  ChargeStatus = "PENDING"
	ChargePaid     ChargeStatus = "PAID"
	ChargeExpired  ChargeStatus = "EXPIRED"
	ChargeCanceled ChargeStatus = "CANCELED"
)

type PaymentMethod string

const (
	MethodPix    PaymentMethod = "PIX"
	MethodBoleto PaymentMethod = "BOLETO"
	MethodCard   PaymentMethod = "CARD"
)

// MinChargeAmountCents is the smallest amount the platform will collect.
const MinChargeAmountCents int64 = 500

// Charge is a single request to collect money from a payer. Amounts are
// integer minor-currency units; percentage results always floor, so
// allocations never exceed the amount collected.
type Charge struct {
	ID             string             `json:"id"`
	MerchantID     string             `json:"merchant_id"`
	AmountCents    int64              `json:"amount"`
	Currency       string             `json:"currency"`
	Status         ChargeStatus       `json:"status"`
	Method         PaymentMethod      `json:"method,omitempty"`
	IdempotencyKey string             `json:"idempotency_key"`
	ExternalRef    string             `json:"external_reference,omitempty"`
	ProviderTxID   string             `json:"provider_transaction_id,omitempty"`
	Instrument     *PaymentInstrument `json:"instrument,omitempty"`
	Splits         []ChargeSplit      `json:"splits,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Terminal reports whether the charge has reached a final state. Terminal
// charges never transition again.
func (c *Charge) Terminal() bool {
	return c.Status == ChargePaid || c.Status == ChargeExpired || c.Status == ChargeCanceled
}

// PaymentInstrument is the provider-issued payable artifact attached to a
// charge: a PIX copy-and-paste code or a boleto URL/barcode.
type PaymentInstrument struct {
	Method       PaymentMethod `json:"method"`
	ProviderTxID string        `json:"provider_transaction_id"`
	CopyPaste    string        `json:"copy_paste,omitempty"`
	QRCodeBase64 string        `json:"qr_code_base64,omitempty"`
	BoletoURL    string        `json:"boleto_url,omitempty"`
	Barcode      string        `json:"barcode,omitempty"`
	ExpiresAt    time.Time     `json:"expires_at,omitempty"`
}

// ChargeSplit is a portion of a charge owed to another merchant. Either
// Percentage or AmountCents is set on input; ComputedCents is what the
// recipient actually receives.
type ChargeSplit struct {
	ID            string    `json:"id"`
	ChargeID      string    `json:"charge_id"`
	RecipientID   string    `json:"recipient_id"`
	Percentage    float64   `json:"percentage,omitempty"`
	AmountCents   int64     `json:"amount,omitempty"`
	ComputedCents int64     `json:"computed_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// Fee is a platform or processing fee retained from a charge.
type Fee struct {
	ID          string    `json:"id"`
	ChargeID    string    `json:"charge_id"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type CommissionRuleType string

const (
	RulePercentage CommissionRuleType = "PERCENTAGE"
	RuleFixed      CommissionRuleType = "FIXED"
)

// CommissionRule is a merchant's standing configuration for automatic split
// computation. Rules are evaluated in priority order, highest first.
type CommissionRule struct {
	ID          string             `json:"id"`
	MerchantID  string             `json:"merchant_id"`
	RecipientID string             `json:"recipient_id"`
	Type        CommissionRuleType `json:"type"`
	Value       float64            `json:"value"`
	CapCents    int64              `json:"cap,omitempty"`
	Priority    int                `json:"priority"`
	Active      bool               `json:"active"`
}
