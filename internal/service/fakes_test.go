package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/turbofy/charge-engine/internal/interfaces"
	"github.com/turbofy/charge-engine/internal/models"
)

// In-memory fakes for the engine's ports. They count calls so tests can
// assert exactly-once behavior.

type outboxRow struct {
	event     *models.PlatformEvent
	published bool
}

type fakeChargeRepo struct {
	mu            sync.Mutex
	charges       map[string]*models.Charge
	splits        map[string][]models.ChargeSplit
	fees          map[string][]models.Fee
	outbox        []*outboxRow
	createCalls   int
	createErr     error
	transitionErr error
}

func newFakeChargeRepo() *fakeChargeRepo {
	return &fakeChargeRepo{
		charges: make(map[string]*models.Charge),
		splits:  make(map[string][]models.ChargeSplit),
		fees:    make(map[string][]models.Fee),
	}
}

func (f *fakeChargeRepo) Create(_ context.Context, c *models.Charge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	cp := *c
	f.charges[c.ID] = &cp
	return nil
}

func (f *fakeChargeRepo) GetByID(_ context.Context, id string) (*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.charges[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeChargeRepo) GetByIdempotencyKey(_ context.Context, key string) (*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.charges {
		if c.IdempotencyKey == key {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeChargeRepo) GetByProviderTxID(_ context.Context, txID string) (*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.charges {
		if c.ProviderTxID == txID && txID != "" {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeChargeRepo) GetByExternalRef(_ context.Context, ref string) (*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.charges {
		if c.ExternalRef == ref && ref != "" {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeChargeRepo) ListPendingByAmount(_ context.Context, merchantID string, amountCents int64, method models.PaymentMethod, since time.Time) ([]*models.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Charge
	for _, c := range f.charges {
		if c.MerchantID == merchantID && c.Status == models.ChargePending &&
			c.AmountCents == amountCents && c.Method == method && !c.CreatedAt.Before(since) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeChargeRepo) AttachSplits(_ context.Context, chargeID string, splits []models.ChargeSplit, fees []models.Fee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.splits[chargeID] = splits
	f.fees[chargeID] = fees
	return nil
}

// UpdateInstrument mirrors the real repository: every instrument column is
// overwritten, and a read-back only surfaces an instrument when a payable
// artifact is present.
func (f *fakeChargeRepo) UpdateInstrument(_ context.Context, chargeID string, inst *models.PaymentInstrument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.charges[chargeID]; ok {
		c.ProviderTxID = inst.ProviderTxID
		if inst.CopyPaste != "" || inst.BoletoURL != "" {
			cp := *inst
			c.Instrument = &cp
		} else {
			c.Instrument = nil
		}
	}
	return nil
}

func (f *fakeChargeRepo) SetProviderTxID(_ context.Context, chargeID, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.charges[chargeID]; ok {
		c.ProviderTxID = txID
	}
	return nil
}

func (f *fakeChargeRepo) Transition(_ context.Context, chargeID string, from, to models.ChargeStatus, event *models.PlatformEvent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transitionErr != nil {
		return 0, f.transitionErr
	}
	c, ok := f.charges[chargeID]
	if !ok || c.Status != from {
		return 0, nil
	}
	c.Status = to
	if event != nil {
		f.outbox = append(f.outbox, &outboxRow{event: event})
	}
	return 1, nil
}

func (f *fakeChargeRepo) ListUnpublished(_ context.Context, limit int) ([]*models.PlatformEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PlatformEvent
	for _, row := range f.outbox {
		if row.published {
			continue
		}
		out = append(out, row.event)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeChargeRepo) MarkPublished(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.outbox {
		if row.event.ID == id {
			row.published = true
		}
	}
	return nil
}

func (f *fakeChargeRepo) ListSplits(_ context.Context, chargeID string) ([]models.ChargeSplit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.splits[chargeID], nil
}

type fakeRuleRepo struct {
	rules []models.CommissionRule
}

func (f *fakeRuleRepo) ListActiveByMerchant(context.Context, string) ([]models.CommissionRule, error) {
	return f.rules, nil
}

type fakeInteractionRepo struct {
	mu      sync.Mutex
	records []*models.PaymentInteraction
}

func (f *fakeInteractionRepo) Record(_ context.Context, i *models.PaymentInteraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, i)
	return nil
}

func (f *fakeInteractionRepo) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.records))
	for i, r := range f.records {
		out[i] = r.Kind
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.PlatformEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e *models.PlatformEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) ofType(eventType string) []*models.PlatformEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PlatformEvent
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	deny bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny || f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
}

type fakeIssuer struct {
	mu         sync.Mutex
	calls      int
	err        error
	instrument *models.PaymentInstrument
}

func (f *fakeIssuer) Issue(_ context.Context, charge *models.Charge) (*models.PaymentInstrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.instrument != nil {
		return f.instrument, nil
	}
	return &models.PaymentInstrument{
		Method:       charge.Method,
		ProviderTxID: "tx-" + charge.ID,
		CopyPaste:    "00020126pixcode",
	}, nil
}

type fakeProvider struct {
	issuer *fakeIssuer
}

func (f *fakeProvider) IssuerFor(method models.PaymentMethod) (interfaces.InstrumentIssuer, bool) {
	if method == models.MethodPix || method == models.MethodBoleto {
		return f.issuer, true
	}
	return nil, false
}

type fakeWebhookRepo struct {
	mu    sync.Mutex
	hooks []*models.Webhook
	logs  []*models.WebhookLog
}

func (f *fakeWebhookRepo) ListActiveByMerchantAndEvent(_ context.Context, merchantID, event string) ([]*models.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Webhook
	for _, w := range f.hooks {
		if w.MerchantID == merchantID && w.Status == models.WebhookActive && w.Subscribed(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) RecordDelivery(_ context.Context, log *models.WebhookLog, success bool, suspendThreshold int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	for _, w := range f.hooks {
		if w.ID == log.WebhookID {
			if success {
				w.FailureCount = 0
			} else {
				w.FailureCount++
				if w.FailureCount >= suspendThreshold {
					w.Status = models.WebhookSuspended
				}
			}
		}
	}
	return nil
}

type fakeConfigRepo struct {
	configs map[string]*models.ProviderConfig
}

func (f *fakeConfigRepo) GetByAccountID(_ context.Context, provider, accountID string) (*models.ProviderConfig, error) {
	if cfg, ok := f.configs[provider+"/"+accountID]; ok {
		return cfg, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSettlementRepo struct {
	mu          sync.Mutex
	settlements map[string]*models.Settlement
}

func (f *fakeSettlementRepo) GetByProviderTxID(_ context.Context, txID string) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.settlements {
		if s.ProviderTxID == txID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSettlementRepo) Transition(_ context.Context, id string, from, to models.SettlementStatus, reason string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settlements[id]
	if !ok || s.Status != from {
		return 0, nil
	}
	s.Status = to
	s.FailureReason = reason
	return 1, nil
}

type fakeEventRepo struct {
	mu       sync.Mutex
	events   map[string]*models.ProviderEvent
	attempts map[string]int
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:   make(map[string]*models.ProviderEvent),
		attempts: make(map[string]int),
	}
}

func (f *fakeEventRepo) Create(_ context.Context, e *models.ProviderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeEventRepo) RecordAttempt(_ context.Context, id string, attempt int, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[id] = attempt
	if e, ok := f.events[id]; ok {
		e.Attempts = attempt
		e.LastError = lastError
	}
	return nil
}

func (f *fakeEventRepo) SetStatus(_ context.Context, id string, status models.ProviderEventStatus, chargeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[id]; ok {
		e.Status = status
		if chargeID != "" {
			e.ChargeID = chargeID
		}
	}
	return nil
}

func (f *fakeEventRepo) statusOf(id string) models.ProviderEventStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[id]; ok {
		return e.Status
	}
	return ""
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls int
	last  *models.ProviderEvent
}

func (f *fakeAlerter) WebhookProcessingFailed(_ context.Context, e *models.ProviderEvent, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = e
	return nil
}
