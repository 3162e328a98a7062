package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/turbofy/charge-engine/internal/models"
)

type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) Record(ctx context.Context, i *models.PaymentInteraction) error {
	detail, err := json.Marshal(i.Detail)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payment_interactions (id, charge_id, merchant_id, session_id, kind, detail, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)
	`, i.ID, i.ChargeID, i.MerchantID, i.SessionID, i.Kind, detail, i.CreatedAt)
	return err
}
