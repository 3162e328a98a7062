package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbofy/charge-engine/internal/models"
)

func TestComputeSplitsFloorsPercentages(t *testing.T) {
	rules := []models.CommissionRule{
		{RecipientID: "aff-1", Type: models.RulePercentage, Value: 10, Active: true},
	}

	splits := ComputeSplits(999, rules)

	require.Len(t, splits, 1)
	// 10% of 999 is 99.9; the platform never rounds up outgoing money.
	assert.Equal(t, int64(99), splits[0].ComputedCents)
}

func TestComputeSplitsFractionalPercentageIsExact(t *testing.T) {
	rules := []models.CommissionRule{
		{RecipientID: "iof", Type: models.RulePercentage, Value: 0.29, Active: true},
	}

	// 0.29% of 100000 is exactly 290; fractional rates must not lose cents
	// to intermediate truncation.
	splits := ComputeSplits(100000, rules)
	require.Len(t, splits, 1)
	assert.Equal(t, int64(290), splits[0].ComputedCents)

	// 0.29% of 999 is 2.89something and floors to 2.
	splits = ComputeSplits(999, rules)
	require.Len(t, splits, 1)
	assert.Equal(t, int64(2), splits[0].ComputedCents)
}

func TestComputeSplitsFixedAndCap(t *testing.T) {
	rules := []models.CommissionRule{
		{RecipientID: "a", Type: models.RuleFixed, Value: 300, Active: true},
		{RecipientID: "b", Type: models.RulePercentage, Value: 50, CapCents: 120, Active: true},
	}

	splits := ComputeSplits(1000, rules)

	require.Len(t, splits, 2)
	assert.Equal(t, int64(300), splits[0].ComputedCents)
	assert.Equal(t, int64(120), splits[1].ComputedCents, "cap clamps the percentage result")
}

func TestComputeSplitsPriorityOrderIsStable(t *testing.T) {
	rules := []models.CommissionRule{
		{RecipientID: "low", Type: models.RuleFixed, Value: 10, Priority: 1, Active: true},
		{RecipientID: "high", Type: models.RuleFixed, Value: 20, Priority: 5, Active: true},
		{RecipientID: "tie-first", Type: models.RuleFixed, Value: 30, Priority: 5, Active: true},
	}

	splits := ComputeSplits(1000, rules)

	require.Len(t, splits, 3)
	assert.Equal(t, "high", splits[0].RecipientID)
	assert.Equal(t, "tie-first", splits[1].RecipientID, "equal priorities keep configured order")
	assert.Equal(t, "low", splits[2].RecipientID)
}

func TestComputeSplitsSkipsInactiveAndNonPositive(t *testing.T) {
	rules := []models.CommissionRule{
		{RecipientID: "inactive", Type: models.RuleFixed, Value: 100, Active: false},
		{RecipientID: "zero", Type: models.RulePercentage, Value: 0.01, Active: true},
		{RecipientID: "kept", Type: models.RuleFixed, Value: 50, Active: true},
	}

	// 0.01% of 900 floors to zero and is discarded.
	splits := ComputeSplits(900, rules)

	require.Len(t, splits, 1)
	assert.Equal(t, "kept", splits[0].RecipientID)
}

func TestSumSplitsAndFees(t *testing.T) {
	splits := []models.ChargeSplit{{ComputedCents: 100}, {ComputedCents: 250}}
	fees := []models.Fee{{AmountCents: 30}}

	assert.Equal(t, int64(380), SumSplitsAndFees(splits, fees))
}
