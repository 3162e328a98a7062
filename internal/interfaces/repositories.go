package interfaces

import (
	"context"
	"time"

	"github.com/turbofy/charge-engine/internal/models"
)

// ChargeRepository defines the contract for charge persistence. State
// transitions are checked-then-applied in a single statement; callers decide
// what a zero rows-affected result means. A non-nil event passed to
// Transition is written to the outbox in the same transaction, so the event
// exists exactly when the transition committed.
type ChargeRepository interface {
	Create(ctx context.Context, charge *models.Charge) error
	GetByID(ctx context.Context, id string) (*models.Charge, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Charge, error)
	GetByProviderTxID(ctx context.Context, txID string) (*models.Charge, error)
	GetByExternalRef(ctx context.Context, ref string) (*models.Charge, error)
	ListPendingByAmount(ctx context.Context, merchantID string, amountCents int64, method models.PaymentMethod, since time.Time) ([]*models.Charge, error)
	AttachSplits(ctx context.Context, chargeID string, splits []models.ChargeSplit, fees []models.Fee) error
	UpdateInstrument(ctx context.Context, chargeID string, instrument *models.PaymentInstrument) error
	SetProviderTxID(ctx context.Context, chargeID, txID string) error
	Transition(ctx context.Context, chargeID string, from, to models.ChargeStatus, event *models.PlatformEvent) (int64, error)
	ListSplits(ctx context.Context, chargeID string) ([]models.ChargeSplit, error)
}

// OutboxRepository drains events persisted alongside the state change that
// produced them. Delivery to the bus is at-least-once: an event is marked
// published only after the bus accepted it.
type OutboxRepository interface {
	ListUnpublished(ctx context.Context, limit int) ([]*models.PlatformEvent, error)
	MarkPublished(ctx context.Context, id string) error
}

// CommissionRuleRepository reads a merchant's standing split configuration.
type CommissionRuleRepository interface {
	ListActiveByMerchant(ctx context.Context, merchantID string) ([]models.CommissionRule, error)
}

// WebhookRepository defines the contract for outbound subscriptions and
// their delivery logs. RecordDelivery persists the attempt row and mutates
// the failure counter in the same transaction so concurrent deliveries never
// lose an increment.
type WebhookRepository interface {
	ListActiveByMerchantAndEvent(ctx context.Context, merchantID, event string) ([]*models.Webhook, error)
	RecordDelivery(ctx context.Context, log *models.WebhookLog, success bool, suspendThreshold int) error
}

// ProviderConfigRepository resolves inbound callback credentials by the
// provider account id declared in the event.
type ProviderConfigRepository interface {
	GetByAccountID(ctx context.Context, provider, accountID string) (*models.ProviderConfig, error)
}

// SettlementRepository defines the contract for settlement persistence.
type SettlementRepository interface {
	GetByProviderTxID(ctx context.Context, txID string) (*models.Settlement, error)
	Transition(ctx context.Context, id string, from, to models.SettlementStatus, failureReason string) (int64, error)
}

// InteractionRepository appends audit trail entries. Write-only.
type InteractionRepository interface {
	Record(ctx context.Context, interaction *models.PaymentInteraction) error
}

// ProviderEventRepository persists inbound events and their processing
// attempts.
type ProviderEventRepository interface {
	Create(ctx context.Context, event *models.ProviderEvent) error
	RecordAttempt(ctx context.Context, id string, attempt int, lastError string) error
	SetStatus(ctx context.Context, id string, status models.ProviderEventStatus, chargeID string) error
}
