package repository

import (
	"context"
	"database/sql"

	"github.com/turbofy/charge-engine/internal/models"
)

type CommissionRuleRepository struct {
	db *sql.DB
}

func NewCommissionRuleRepository(db *sql.DB) *CommissionRuleRepository {
	return &CommissionRuleRepository{db: db}
}

func (r *CommissionRuleRepository) ListActiveByMerchant(ctx context.Context, merchantID string) ([]models.CommissionRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, merchant_id, recipient_id, rule_type, rule_value, cap_cents, priority, active
		FROM commission_rules
		WHERE merchant_id = $1 AND active = TRUE
		ORDER BY priority DESC, id
	`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.CommissionRule
	for rows.Next() {
		var rule models.CommissionRule
		if err := rows.Scan(&rule.ID, &rule.MerchantID, &rule.RecipientID, &rule.Type,
			&rule.Value, &rule.CapCents, &rule.Priority, &rule.Active); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
