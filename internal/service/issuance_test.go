package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
)

type issuanceFixture struct {
	svc          *IssuanceService
	charges      *fakeChargeRepo
	rules        *fakeRuleRepo
	interactions *fakeInteractionRepo
	issuer       *fakeIssuer
	publisher    *fakePublisher
	locker       *fakeLocker
}

func newIssuanceFixture() *issuanceFixture {
	f := &issuanceFixture{
		charges:      newFakeChargeRepo(),
		rules:        &fakeRuleRepo{},
		interactions: &fakeInteractionRepo{},
		issuer:       &fakeIssuer{},
		publisher:    &fakePublisher{},
		locker:       newFakeLocker(),
	}
	f.svc = NewIssuanceService(f.charges, f.rules, f.interactions,
		&fakeProvider{issuer: f.issuer}, f.publisher, f.locker, zap.NewNop())
	return f
}

func validInput() IssueChargeInput {
	return IssueChargeInput{
		IdempotencyKey: "k1",
		MerchantID:     "m1",
		AmountCents:    1000,
		Currency:       "BRL",
		Method:         models.MethodPix,
	}
}

func TestIssueCreatesPendingChargeWithInstrument(t *testing.T) {
	f := newIssuanceFixture()

	charge, err := f.svc.Issue(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, models.ChargePending, charge.Status)
	require.NotNil(t, charge.Instrument)
	assert.NotEmpty(t, charge.Instrument.CopyPaste)
	assert.Equal(t, 1, f.issuer.calls)
	assert.Len(t, f.publisher.ofType(models.EventChargeCreated), 1)
	assert.Contains(t, f.interactions.kinds(), models.InteractionChargeCreated)
	assert.Contains(t, f.interactions.kinds(), models.InteractionPixIssued)
}

func TestIssueIsIdempotent(t *testing.T) {
	f := newIssuanceFixture()

	first, err := f.svc.Issue(context.Background(), validInput())
	require.NoError(t, err)

	second, err := f.svc.Issue(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.AmountCents, second.AmountCents)
	assert.Equal(t, 1, f.charges.createCalls, "replay must not create a second charge")
	assert.Equal(t, 1, f.issuer.calls, "replay must not call the provider again")
	assert.Len(t, f.publisher.ofType(models.EventChargeCreated), 1, "replay must not duplicate the created event")
}

func TestIssueRejectsAmountBelowMinimum(t *testing.T) {
	f := newIssuanceFixture()

	in := validInput()
	in.AmountCents = 499
	_, err := f.svc.Issue(context.Background(), in)

	require.ErrorIs(t, err, ErrAmountBelowMinimum)
	assert.Zero(t, f.charges.createCalls, "validation failures reject before persistence")
}

func TestIssueRejectsSplitsExceedingAmount(t *testing.T) {
	f := newIssuanceFixture()

	in := validInput()
	in.Splits = []models.ChargeSplit{
		{RecipientID: "a", AmountCents: 700},
		{RecipientID: "b", AmountCents: 400},
	}
	_, err := f.svc.Issue(context.Background(), in)

	require.ErrorIs(t, err, ErrSplitExceedsTotal)
	assert.Zero(t, f.charges.createCalls)
	assert.Empty(t, f.publisher.events)
}

func TestIssueRejectsNegativeFeeMaskingOversizedSplit(t *testing.T) {
	f := newIssuanceFixture()

	in := validInput()
	in.Splits = []models.ChargeSplit{{RecipientID: "a", AmountCents: 2000}}
	in.Fees = []models.Fee{{Kind: "adjustment", AmountCents: -1500}}
	_, err := f.svc.Issue(context.Background(), in)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, f.charges.createCalls, "a negative fee must not cancel out an oversized split")
}

func TestIssueRejectsNonPositiveManualSplit(t *testing.T) {
	f := newIssuanceFixture()

	in := validInput()
	in.Splits = []models.ChargeSplit{{RecipientID: "a", AmountCents: 0}}
	_, err := f.svc.Issue(context.Background(), in)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, f.charges.createCalls)
}

func TestIssueManualFractionalPercentageSplit(t *testing.T) {
	f := newIssuanceFixture()

	in := validInput()
	in.AmountCents = 100000
	in.Splits = []models.ChargeSplit{{RecipientID: "iof", Percentage: 0.29}}
	charge, err := f.svc.Issue(context.Background(), in)

	require.NoError(t, err)
	splits, err := f.charges.ListSplits(context.Background(), charge.ID)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	// 0.29% of 100000 is exactly 290 cents.
	assert.Equal(t, int64(290), splits[0].ComputedCents)
}

func TestIssueComputesAutomaticSplits(t *testing.T) {
	f := newIssuanceFixture()
	f.rules.rules = []models.CommissionRule{
		{RecipientID: "aff-1", Type: models.RulePercentage, Value: 10, Active: true},
	}

	charge, err := f.svc.Issue(context.Background(), validInput())

	require.NoError(t, err)
	splits, err := f.charges.ListSplits(context.Background(), charge.ID)
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, int64(100), splits[0].ComputedCents)
	assert.Len(t, f.publisher.ofType(models.EventChargeSplitCreated), 1)
}

func TestIssueProviderFailureLeavesPendingWithoutInstrument(t *testing.T) {
	f := newIssuanceFixture()
	f.issuer.err = errors.New("provider timeout")

	charge, err := f.svc.Issue(context.Background(), validInput())

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	require.NotNil(t, charge)
	assert.Equal(t, models.ChargePending, charge.Status)
	assert.Nil(t, charge.Instrument)

	// Recovery goes through IssuePayment against the same charge id.
	f.issuer.err = nil
	recovered, err := f.svc.IssuePayment(context.Background(), charge.ID)
	require.NoError(t, err)
	require.NotNil(t, recovered.Instrument)
	assert.Equal(t, 1, f.charges.createCalls, "recovery never re-creates the charge")
}

func TestIssuePaymentIsNoOpWhenInstrumentExists(t *testing.T) {
	f := newIssuanceFixture()

	charge, err := f.svc.Issue(context.Background(), validInput())
	require.NoError(t, err)

	again, err := f.svc.IssuePayment(context.Background(), charge.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.issuer.calls)
	assert.NotNil(t, again.Instrument)
}

func TestIssuePaymentRejectsNonPendingCharge(t *testing.T) {
	f := newIssuanceFixture()

	charge, err := f.svc.Issue(context.Background(), validInput())
	require.NoError(t, err)

	_, err = f.charges.Transition(context.Background(), charge.ID, models.ChargePending, models.ChargePaid, nil)
	require.NoError(t, err)

	_, err = f.svc.IssuePayment(context.Background(), charge.ID)
	require.ErrorIs(t, err, ErrChargeNotPending)
}

func TestIssueLockContentionWithoutCommittedCharge(t *testing.T) {
	f := newIssuanceFixture()
	f.locker.deny = true

	_, err := f.svc.Issue(context.Background(), validInput())

	require.ErrorIs(t, err, ErrIssuanceInFlight)
}

func TestIssueCardChargeSkipsProvider(t *testing.T) {
	f := newIssuanceFixture()

	in := validInput()
	in.Method = models.MethodCard
	charge, err := f.svc.Issue(context.Background(), in)

	require.NoError(t, err)
	assert.Zero(t, f.issuer.calls)
	assert.Nil(t, charge.Instrument)
}
