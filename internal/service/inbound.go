package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/interfaces"
	"github.com/turbofy/charge-engine/internal/metrics"
	"github.com/turbofy/charge-engine/internal/models"
	"github.com/turbofy/charge-engine/internal/signing"
)

// retrySchedule is the backoff for the apply stage. Attempt index is data:
// the loop below is the whole retry state machine.
var retrySchedule = []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second, 300 * time.Second}

const dedupTTL = 24 * time.Hour

// InboundProcessor authenticates provider callbacks, matches them to local
// charges or settlements, and applies the resulting transition with bounded
// retry. Processing runs on a worker goroutine so retries never block the
// accept path.
type InboundProcessor struct {
	charges      interfaces.ChargeRepository
	settlements  interfaces.SettlementRepository
	events       interfaces.ProviderEventRepository
	configs      interfaces.ProviderConfigRepository
	interactions interfaces.InteractionRepository
	locker       interfaces.Locker
	alerter      interfaces.Alerter
	log          *zap.Logger
	sleep        func(time.Duration)
	now          func() time.Time
	matchWindow  time.Duration
	queue        chan *models.ProviderEvent
}

func NewInboundProcessor(
	charges interfaces.ChargeRepository,
	settlements interfaces.SettlementRepository,
	events interfaces.ProviderEventRepository,
	configs interfaces.ProviderConfigRepository,
	interactions interfaces.InteractionRepository,
	locker interfaces.Locker,
	alerter interfaces.Alerter,
	matchWindow time.Duration,
	log *zap.Logger,
) *InboundProcessor {
	return &InboundProcessor{
		charges:      charges,
		settlements:  settlements,
		events:       events,
		configs:      configs,
		interactions: interactions,
		locker:       locker,
		alerter:      alerter,
		log:          log,
		sleep:        time.Sleep,
		now:          time.Now,
		matchWindow:  matchWindow,
		queue:        make(chan *models.ProviderEvent, 256),
	}
}

// IsProbe reports whether a request looks like the provider's connectivity
// check rather than a real event: no signature at all, and either no usable
// body or the provider's test user-agent. A signed request is never a probe.
func IsProbe(sigHeader string, body []byte, userAgent string) bool {
	if strings.TrimSpace(sigHeader) != "" {
		return false
	}
	if len(body) == 0 || !json.Valid(body) {
		return true
	}
	return strings.Contains(strings.ToLower(userAgent), "webhook-test")
}

// Authenticate runs the UNVERIFIED -> VERIFIED | REJECTED stage: parse the
// envelope, resolve the registered subscription for the declared account,
// and verify the HMAC over "{timestamp}.{rawBody}" in constant time.
func (p *InboundProcessor) Authenticate(ctx context.Context, provider, sigHeader string, body []byte) (*models.InboundEnvelope, *models.ProviderConfig, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return nil, nil, &AuthError{Code: AuthCodeMissingSignature}
	}

	var env models.InboundEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.AccountID == "" {
		// Without an account id there is no secret to verify against.
		return nil, nil, &AuthError{Code: AuthCodeNotConfigured}
	}

	cfg, err := p.configs.GetByAccountID(ctx, provider, env.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, &AuthError{Code: AuthCodeNotConfigured}
		}
		return nil, nil, err
	}

	if err := signing.Verify(cfg.Secret, sigHeader, body); err != nil {
		p.log.Warn("Inbound signature verification failed",
			zap.String("provider", provider),
			zap.String("account_id", env.AccountID),
			zap.Error(err),
		)
		return nil, nil, &AuthError{Code: AuthCodeInvalidSignature}
	}

	return &env, cfg, nil
}

// Accept records an authenticated event and queues it for asynchronous
// processing. Duplicate provider deliveries short-circuit on the redis
// guard; the idempotent apply stage remains the correctness backstop.
func (p *InboundProcessor) Accept(ctx context.Context, provider string, env *models.InboundEnvelope, cfg *models.ProviderConfig, raw []byte) error {
	dedupKey := fmt.Sprintf("provider_event:%s:%s", provider, env.ID)
	fresh, err := p.locker.Acquire(ctx, dedupKey, dedupTTL)
	if err == nil && !fresh {
		p.log.Info("Duplicate provider delivery ignored",
			zap.String("provider", provider),
			zap.String("provider_event_id", env.ID),
		)
		metrics.InboundEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	event := &models.ProviderEvent{
		ID:              uuid.NewString(),
		Provider:        provider,
		ProviderEventID: env.ID,
		AccountID:       env.AccountID,
		Kind:            env.Object,
		RawBody:         raw,
		Status:          models.ProviderEventReceived,
		CreatedAt:       p.now().UTC(),
	}
	if err := p.events.Create(ctx, event); err != nil {
		return err
	}

	select {
	case p.queue <- event:
	default:
		// Queue full: process inline rather than drop. The provider already
		// got its 200; losing the event is not an option.
		go p.Process(context.WithoutCancel(ctx), event, cfg)
		return nil
	}
	return nil
}

// Run drains the accept queue. Started once from main.
func (p *InboundProcessor) Run(ctx context.Context) {
	p.log.Info("Inbound event worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			cfg, err := p.configs.GetByAccountID(ctx, event.Provider, event.AccountID)
			if err != nil {
				p.log.Error("Lost provider config for queued event",
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
				continue
			}
			p.Process(ctx, event, cfg)
		}
	}
}

// Process runs the matching and apply stages under the five-attempt retry
// schedule. Unmatched and ambiguous events are terminal UNRESOLVED outcomes,
// not retries: they need a human, not a backoff.
func (p *InboundProcessor) Process(ctx context.Context, event *models.ProviderEvent, cfg *models.ProviderConfig) {
	var env models.InboundEnvelope
	if err := json.Unmarshal(event.RawBody, &env); err != nil {
		p.markUnresolved(ctx, event, "", "undecodable event body")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= len(retrySchedule); attempt++ {
		if delay := retrySchedule[attempt-1]; delay > 0 {
			p.sleep(delay)
		}

		chargeID, err := p.apply(ctx, event, &env, cfg)
		if recordErr := p.events.RecordAttempt(ctx, event.ID, attempt, errString(err)); recordErr != nil {
			p.log.Warn("Failed to record processing attempt",
				zap.String("event_id", event.ID),
				zap.Error(recordErr),
			)
		}

		switch {
		case err == nil:
			if setErr := p.events.SetStatus(ctx, event.ID, models.ProviderEventProcessed, chargeID); setErr != nil {
				p.log.Warn("Failed to mark event processed", zap.String("event_id", event.ID), zap.Error(setErr))
			}
			metrics.InboundEvents.WithLabelValues("processed").Inc()
			return
		case errors.Is(err, errUnmatched), errors.Is(err, errAmbiguous):
			p.markUnresolved(ctx, event, chargeID, err.Error())
			return
		}

		lastErr = err
		p.log.Warn("Inbound event processing failed, will retry",
			zap.String("event_id", event.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	// All attempts exhausted: escalate to an operator. The provider already
	// received 200; retry ownership is ours, and it just ran out.
	if err := p.events.SetStatus(ctx, event.ID, models.ProviderEventFailed, ""); err != nil {
		p.log.Warn("Failed to mark event failed", zap.String("event_id", event.ID), zap.Error(err))
	}
	metrics.InboundEvents.WithLabelValues("failed").Inc()
	metrics.RetryExhausted.Inc()

	p.log.Error("Inbound event processing exhausted all attempts",
		zap.String("event_id", event.ID),
		zap.String("kind", event.Kind),
		zap.Error(lastErr),
	)
	if err := p.alerter.WebhookProcessingFailed(ctx, event, len(retrySchedule)); err != nil {
		p.log.Error("Failed to send operator alert", zap.String("event_id", event.ID), zap.Error(err))
	}
}

func (p *InboundProcessor) markUnresolved(ctx context.Context, event *models.ProviderEvent, chargeID, reason string) {
	p.log.Warn("Inbound event left unresolved for manual review",
		zap.String("event_id", event.ID),
		zap.String("kind", event.Kind),
		zap.String("reason", reason),
	)
	metrics.InboundEvents.WithLabelValues("unresolved").Inc()
	if err := p.events.SetStatus(ctx, event.ID, models.ProviderEventUnresolved, chargeID); err != nil {
		p.log.Warn("Failed to mark event unresolved", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// apply maps the provider event kind onto a local state transition. The
// corresponding platform event is committed to the outbox with the
// transition; the relay publishes it afterwards. Re-applying a terminal
// transition is a no-op with no duplicate event.
func (p *InboundProcessor) apply(ctx context.Context, event *models.ProviderEvent, env *models.InboundEnvelope, cfg *models.ProviderConfig) (string, error) {
	var data models.InboundPaymentData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return "", errUnmatched
		}
	}

	switch env.Object {
	case models.KindCashinReceived:
		return p.applyChargeTransition(ctx, cfg, &data, models.ChargePaid)
	case models.KindReceivableExpired:
		return p.applyChargeTransition(ctx, cfg, &data, models.ChargeExpired)
	case models.KindTransferCompleted:
		return "", p.applySettlementTransition(ctx, &data, models.SettlementCompleted)
	case models.KindTransferFailed:
		return "", p.applySettlementTransition(ctx, &data, models.SettlementFailed)
	default:
		p.log.Info("Ignoring unknown provider event kind",
			zap.String("event_id", event.ID),
			zap.String("kind", env.Object),
		)
		return "", nil
	}
}

func (p *InboundProcessor) applyChargeTransition(ctx context.Context, cfg *models.ProviderConfig, data *models.InboundPaymentData, to models.ChargeStatus) (string, error) {
	charge, err := p.matchCharge(ctx, cfg, data)
	if err != nil {
		return "", err
	}

	backfillTxID := ""
	if charge.ProviderTxID == "" && data.TransactionID != "" {
		// Fallback-matched charge: remember the transaction id so the next
		// callback matches exactly.
		backfillTxID = data.TransactionID
		charge.ProviderTxID = data.TransactionID
		if charge.Instrument != nil {
			charge.Instrument.ProviderTxID = data.TransactionID
		}
	}

	eventType := models.EventChargePaid
	interaction := models.InteractionChargePaid
	if to == models.ChargeExpired {
		eventType = models.EventChargeExpired
		interaction = models.InteractionChargeExpired
	}

	charge.Status = to
	payload, err := json.Marshal(charge)
	if err != nil {
		return charge.ID, err
	}
	event := &models.PlatformEvent{
		ID:         uuid.NewString(),
		MerchantID: charge.MerchantID,
		Type:       eventType,
		Timestamp:  p.now().UTC(),
		Payload:    payload,
	}

	rows, err := p.charges.Transition(ctx, charge.ID, models.ChargePending, to, event)
	if err != nil {
		return charge.ID, err
	}
	if rows == 0 {
		current, err := p.charges.GetByID(ctx, charge.ID)
		if err != nil {
			return charge.ID, err
		}
		if current.Terminal() {
			// Duplicate or late callback against a settled charge. No
			// mutation, no duplicate event.
			if current.Status != to {
				p.log.Warn("Conflicting terminal state on inbound transition",
					zap.String("charge_id", charge.ID),
					zap.String("current", string(current.Status)),
					zap.String("requested", string(to)),
				)
			}
			return charge.ID, nil
		}
		return charge.ID, fmt.Errorf("charge %s not transitionable from %s", charge.ID, current.Status)
	}

	if backfillTxID != "" {
		if err := p.charges.SetProviderTxID(ctx, charge.ID, backfillTxID); err != nil {
			// The transition is committed; losing the backfill only costs the
			// next callback its exact match.
			p.log.Warn("Failed to backfill provider transaction id",
				zap.String("charge_id", charge.ID),
				zap.Error(err),
			)
		}
	}

	if err := p.interactions.Record(ctx, &models.PaymentInteraction{
		ID:         uuid.NewString(),
		ChargeID:   charge.ID,
		MerchantID: charge.MerchantID,
		Kind:       interaction,
		CreatedAt:  p.now().UTC(),
	}); err != nil {
		p.log.Warn("Failed to record interaction", zap.String("charge_id", charge.ID), zap.Error(err))
	}

	p.log.Info("Applied charge transition from provider event",
		zap.String("charge_id", charge.ID),
		zap.String("status", string(to)),
	)
	return charge.ID, nil
}

func (p *InboundProcessor) applySettlementTransition(ctx context.Context, data *models.InboundPaymentData, to models.SettlementStatus) error {
	if data.TransactionID == "" {
		return errUnmatched
	}
	settlement, err := p.settlements.GetByProviderTxID(ctx, data.TransactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errUnmatched
		}
		return err
	}

	rows, err := p.settlements.Transition(ctx, settlement.ID, models.SettlementProcessing, to, data.FailureReason)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Already terminal. Idempotent no-op.
		return nil
	}

	p.log.Info("Applied settlement transition from provider event",
		zap.String("settlement_id", settlement.ID),
		zap.String("status", string(to)),
	)
	return nil
}

// matchCharge resolves the event to a local charge through the fallback
// chain: provider transaction id, then external reference, then a bounded
// search over recent PENDING charges of the same amount and method. The
// last step only matches a single candidate; amount collisions surface for
// manual review instead of being guessed.
func (p *InboundProcessor) matchCharge(ctx context.Context, cfg *models.ProviderConfig, data *models.InboundPaymentData) (*models.Charge, error) {
	if data.TransactionID != "" {
		charge, err := p.charges.GetByProviderTxID(ctx, data.TransactionID)
		if err == nil {
			return charge, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	if data.ExternalRef != "" {
		charge, err := p.charges.GetByExternalRef(ctx, data.ExternalRef)
		if err == nil {
			return charge, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	if data.AmountCents <= 0 || data.Method == "" {
		return nil, errUnmatched
	}
	since := p.now().Add(-p.matchWindow)
	candidates, err := p.charges.ListPendingByAmount(ctx, cfg.MerchantID, data.AmountCents, models.PaymentMethod(data.Method), since)
	if err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		return nil, errUnmatched
	case 1:
		return candidates[0], nil
	default:
		return nil, errAmbiguous
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
