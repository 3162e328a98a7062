package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/interfaces"
	"github.com/turbofy/charge-engine/internal/metrics"
	"github.com/turbofy/charge-engine/internal/models"
	"github.com/turbofy/charge-engine/internal/repository"
)

const issuanceLockTTL = 30 * time.Second

// IssueChargeInput is the caller's intent to collect money. The idempotency
// key is mandatory: replays with the same key return the original charge
// with no side effects.
type IssueChargeInput struct {
	IdempotencyKey string
	MerchantID     string
	AmountCents    int64
	Currency       string
	Method         models.PaymentMethod
	Splits         []models.ChargeSplit
	Fees           []models.Fee
	ExternalRef    string
	Metadata       map[string]string
	SessionID      string
}

// IssuanceService orchestrates charge creation: idempotency, split and fee
// validation, persistence ordering, provider instrument issuance, audit, and
// event publication.
type IssuanceService struct {
	charges      interfaces.ChargeRepository
	rules        interfaces.CommissionRuleRepository
	interactions interfaces.InteractionRepository
	provider     interfaces.PaymentProvider
	publisher    interfaces.EventPublisher
	locker       interfaces.Locker
	log          *zap.Logger
	now          func() time.Time
}

func NewIssuanceService(
	charges interfaces.ChargeRepository,
	rules interfaces.CommissionRuleRepository,
	interactions interfaces.InteractionRepository,
	provider interfaces.PaymentProvider,
	publisher interfaces.EventPublisher,
	locker interfaces.Locker,
	log *zap.Logger,
) *IssuanceService {
	return &IssuanceService{
		charges:      charges,
		rules:        rules,
		interactions: interactions,
		provider:     provider,
		publisher:    publisher,
		locker:       locker,
		log:          log,
		now:          time.Now,
	}
}

// Issue creates a charge exactly once per idempotency key. On a provider
// failure the charge is returned alongside a *ProviderError: it is persisted
// and PENDING, but carries no payment instrument yet.
func (s *IssuanceService) Issue(ctx context.Context, in IssueChargeInput) (*models.Charge, error) {
	if existing, err := s.findExisting(ctx, in.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		s.log.Info("Idempotent replay, returning existing charge",
			zap.String("charge_id", existing.ID),
			zap.String("idempotency_key", in.IdempotencyKey),
		)
		return existing, nil
	}

	lockKey := "charge_lock:" + in.IdempotencyKey
	locked, err := s.locker.Acquire(ctx, lockKey, issuanceLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		// Another request with the same key is mid-flight. Check whether it
		// already committed; otherwise the caller must retry.
		if existing, err := s.findExisting(ctx, in.IdempotencyKey); err == nil && existing != nil {
			return existing, nil
		}
		return nil, ErrIssuanceInFlight
	}
	defer s.locker.Release(ctx, lockKey)

	if in.AmountCents < models.MinChargeAmountCents {
		return nil, ErrAmountBelowMinimum
	}

	splits, fees, err := s.resolveSplits(ctx, in)
	if err != nil {
		return nil, err
	}
	if SumSplitsAndFees(splits, fees) > in.AmountCents {
		return nil, ErrSplitExceedsTotal
	}

	charge := &models.Charge{
		ID:             uuid.NewString(),
		MerchantID:     in.MerchantID,
		AmountCents:    in.AmountCents,
		Currency:       in.Currency,
		Status:         models.ChargePending,
		Method:         in.Method,
		IdempotencyKey: in.IdempotencyKey,
		ExternalRef:    in.ExternalRef,
		Metadata:       in.Metadata,
		CreatedAt:      s.now().UTC(),
	}
	charge.UpdatedAt = charge.CreatedAt

	// Charge first, then splits/fees, then audit. A crash mid-sequence
	// leaves a recoverable PENDING charge, never a half-applied money
	// movement.
	if err := s.charges.Create(ctx, charge); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			return s.charges.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		}
		return nil, err
	}

	for i := range splits {
		splits[i].ID = uuid.NewString()
		splits[i].ChargeID = charge.ID
		splits[i].CreatedAt = charge.CreatedAt
	}
	for i := range fees {
		fees[i].ID = uuid.NewString()
		fees[i].ChargeID = charge.ID
		fees[i].CreatedAt = charge.CreatedAt
	}
	if err := s.charges.AttachSplits(ctx, charge.ID, splits, fees); err != nil {
		return nil, err
	}

	s.recordInteraction(ctx, charge, in.SessionID, models.InteractionChargeCreated, nil)
	metrics.ChargesIssued.WithLabelValues(string(charge.Method)).Inc()

	s.publishChargeEvent(ctx, charge, models.EventChargeCreated)
	for _, split := range splits {
		s.publishSplitEvent(ctx, charge, split)
	}

	if issuer, ok := s.provider.IssuerFor(charge.Method); ok {
		if err := s.issueInstrument(ctx, charge, issuer, in.SessionID); err != nil {
			return charge, &ProviderError{ChargeID: charge.ID, Err: err}
		}
	}

	return charge, nil
}

// IssuePayment re-attempts instrument issuance for an existing PENDING
// charge whose original provider call failed. The idempotency key is already
// consumed; recovery goes through the charge id, never a new creation.
func (s *IssuanceService) IssuePayment(ctx context.Context, chargeID string) (*models.Charge, error) {
	charge, err := s.charges.GetByID(ctx, chargeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChargeNotFound
		}
		return nil, err
	}

	if charge.Status != models.ChargePending {
		return nil, ErrChargeNotPending
	}
	if charge.Instrument != nil {
		return charge, nil
	}

	issuer, ok := s.provider.IssuerFor(charge.Method)
	if !ok {
		return charge, nil
	}
	if err := s.issueInstrument(ctx, charge, issuer, ""); err != nil {
		return charge, &ProviderError{ChargeID: charge.ID, Err: err}
	}
	return charge, nil
}

func (s *IssuanceService) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
	charge, err := s.charges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChargeNotFound
		}
		return nil, err
	}
	if charge.Splits, err = s.charges.ListSplits(ctx, id); err != nil {
		return nil, err
	}
	return charge, nil
}

func (s *IssuanceService) findExisting(ctx context.Context, key string) (*models.Charge, error) {
	charge, err := s.charges.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return charge, nil
}

// resolveSplits picks between manual splits supplied by the caller and the
// merchant's automatic commission rules. Manual input wins when present.
func (s *IssuanceService) resolveSplits(ctx context.Context, in IssueChargeInput) ([]models.ChargeSplit, []models.Fee, error) {
	if len(in.Splits) > 0 || len(in.Fees) > 0 {
		// Every line item must be positive on its own. A negative fee would
		// offset an oversized split through the aggregate check below.
		for _, fee := range in.Fees {
			if fee.AmountCents <= 0 {
				return nil, nil, &ValidationError{Reason: "fee amount must be positive"}
			}
		}
		splits := make([]models.ChargeSplit, len(in.Splits))
		for i, split := range in.Splits {
			splits[i] = split
			if splits[i].ComputedCents == 0 {
				if split.Percentage > 0 {
					splits[i].ComputedCents = percentageFloor(in.AmountCents, split.Percentage)
				} else {
					splits[i].ComputedCents = split.AmountCents
				}
			}
			if splits[i].ComputedCents <= 0 {
				return nil, nil, &ValidationError{Reason: "split amount must be positive"}
			}
		}
		return splits, in.Fees, nil
	}

	rules, err := s.rules.ListActiveByMerchant(ctx, in.MerchantID)
	if err != nil {
		return nil, nil, err
	}
	return ComputeSplits(in.AmountCents, rules), nil, nil
}

func (s *IssuanceService) issueInstrument(ctx context.Context, charge *models.Charge, issuer interfaces.InstrumentIssuer, sessionID string) error {
	instrument, err := issuer.Issue(ctx, charge)
	if err != nil {
		s.log.Error("Provider issuance failed",
			zap.String("charge_id", charge.ID),
			zap.String("method", string(charge.Method)),
			zap.Error(err),
		)
		return err
	}

	if err := s.charges.UpdateInstrument(ctx, charge.ID, instrument); err != nil {
		return err
	}
	charge.Instrument = instrument
	charge.ProviderTxID = instrument.ProviderTxID

	kind := models.InteractionPixIssued
	if charge.Method == models.MethodBoleto {
		kind = models.InteractionBoletoIssued
	}
	s.recordInteraction(ctx, charge, sessionID, kind, map[string]string{
		"provider_tx_id": instrument.ProviderTxID,
	})
	return nil
}

func (s *IssuanceService) recordInteraction(ctx context.Context, charge *models.Charge, sessionID, kind string, detail map[string]string) {
	err := s.interactions.Record(ctx, &models.PaymentInteraction{
		ID:         uuid.NewString(),
		ChargeID:   charge.ID,
		MerchantID: charge.MerchantID,
		SessionID:  sessionID,
		Kind:       kind,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		// Audit trail is best-effort; losing an entry must not fail the
		// money path.
		s.log.Warn("Failed to record interaction",
			zap.String("charge_id", charge.ID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

func (s *IssuanceService) publishChargeEvent(ctx context.Context, charge *models.Charge, eventType string) {
	payload, err := json.Marshal(charge)
	if err != nil {
		s.log.Error("Failed to encode charge event", zap.Error(err))
		return
	}
	s.publish(ctx, charge.MerchantID, eventType, payload)
}

func (s *IssuanceService) publishSplitEvent(ctx context.Context, charge *models.Charge, split models.ChargeSplit) {
	payload, err := json.Marshal(split)
	if err != nil {
		s.log.Error("Failed to encode split event", zap.Error(err))
		return
	}
	s.publish(ctx, charge.MerchantID, models.EventChargeSplitCreated, payload)
}

func (s *IssuanceService) publish(ctx context.Context, merchantID, eventType string, payload json.RawMessage) {
	err := s.publisher.Publish(ctx, &models.PlatformEvent{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Type:       eventType,
		Timestamp:  s.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		s.log.Error("Failed to publish event",
			zap.String("type", eventType),
			zap.String("merchant_id", merchantID),
			zap.Error(err),
		)
	}
}
