package repository

import (
	"context"
	"database/sql"

	"github.com/turbofy/charge-engine/internal/models"
)

type SettlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) GetByProviderTxID(ctx context.Context, txID string) (*models.Settlement, error) {
	var (
		s             models.Settlement
		providerTxID  sql.NullString
		failureReason sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, amount_cents, status, provider_tx_id, failure_reason, created_at, updated_at
		FROM settlements WHERE provider_tx_id = $1
	`, txID).Scan(&s.ID, &s.MerchantID, &s.AmountCents, &s.Status, &providerTxID,
		&failureReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.ProviderTxID = providerTxID.String
	s.FailureReason = failureReason.String
	return &s, nil
}

// Transition moves a settlement out of PROCESSING. Terminal states never
// transition; a zero rows-affected result tells the caller the settlement
// was already final.
func (r *SettlementRepository) Transition(ctx context.Context, id string, from, to models.SettlementStatus, failureReason string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE settlements
		SET status = $1, failure_reason = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, to, failureReason, id, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
