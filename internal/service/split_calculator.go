package service

import (
	"math"
	"sort"

	"github.com/turbofy/charge-engine/internal/models"
)

// ComputeSplits evaluates a merchant's standing commission rules against a
// charge amount and returns one split line per rule that yields a positive
// amount. Rules run in priority order, highest first; the sort is stable so
// equal priorities keep their configured order.
//
// Percentage amounts always round down. The platform must never allocate
// more outgoing money than it collected, so floor is the only acceptable
// rounding mode here.
func ComputeSplits(amountCents int64, rules []models.CommissionRule) []models.ChargeSplit {
	active := make([]models.CommissionRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	var splits []models.ChargeSplit
	for _, rule := range active {
		var computed int64
		switch rule.Type {
		case models.RulePercentage:
			computed = percentageFloor(amountCents, rule.Value)
		case models.RuleFixed:
			computed = int64(rule.Value)
		default:
			continue
		}

		if rule.CapCents > 0 && computed > rule.CapCents {
			computed = rule.CapCents
		}
		if computed <= 0 {
			continue
		}

		splits = append(splits, models.ChargeSplit{
			RecipientID:   rule.RecipientID,
			Percentage:    percentageOf(rule),
			ComputedCents: computed,
		})
	}
	return splits
}

// percentageFloor is floor(amountCents * pct / 100). The floor is applied to
// the full product, so exactly representable results like 0.29% of 100000
// come out whole; truncating the rate first would lose up to a basis point.
func percentageFloor(amountCents int64, pct float64) int64 {
	return int64(math.Floor(float64(amountCents) * pct / 100))
}

func percentageOf(rule models.CommissionRule) float64 {
	if rule.Type == models.RulePercentage {
		return rule.Value
	}
	return 0
}

// SumSplitsAndFees totals the money leaving a charge. The caller checks the
// aggregate invariant (total must not exceed the charge amount); keeping the
// check out of ComputeSplits keeps that function stateless.
func SumSplitsAndFees(splits []models.ChargeSplit, fees []models.Fee) int64 {
	var total int64
	for _, s := range splits {
		total += s.ComputedCents
	}
	for _, f := range fees {
		total += f.AmountCents
	}
	return total
}
