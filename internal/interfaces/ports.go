package interfaces

import (
	"context"
	"time"

	"github.com/turbofy/charge-engine/internal/models"
)

// InstrumentIssuer obtains a payable instrument from the banking provider
// for one payment method. One implementation exists per method; the issuance
// service selects the right one once, at issuance time.
type InstrumentIssuer interface {
	Issue(ctx context.Context, charge *models.Charge) (*models.PaymentInstrument, error)
}

// PaymentProvider is the narrow port to the external banking provider.
type PaymentProvider interface {
	IssuerFor(method models.PaymentMethod) (InstrumentIssuer, bool)
}

// EventPublisher hands a committed platform event to the durable bus.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.PlatformEvent) error
}

// Locker provides short-lived distributed locks keyed by string.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// Alerter escalates to an operator when internal retry is exhausted.
type Alerter interface {
	WebhookProcessingFailed(ctx context.Context, event *models.ProviderEvent, attempts int) error
}
