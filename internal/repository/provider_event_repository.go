package repository

import (
	"context"
	"database/sql"

	"github.com/turbofy/charge-engine/internal/models"
)

type ProviderEventRepository struct {
	db *sql.DB
}

func NewProviderEventRepository(db *sql.DB) *ProviderEventRepository {
	return &ProviderEventRepository{db: db}
}

func (r *ProviderEventRepository) Create(ctx context.Context, e *models.ProviderEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO provider_events (id, provider, provider_event_id, account_id, kind, raw_body, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)
	`, e.ID, e.Provider, e.ProviderEventID, e.AccountID, e.Kind, e.RawBody, e.Status, e.CreatedAt)
	return err
}

func (r *ProviderEventRepository) RecordAttempt(ctx context.Context, id string, attempt int, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE provider_events
		SET attempts = $1, last_error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3
	`, attempt, lastError, id)
	return err
}

func (r *ProviderEventRepository) SetStatus(ctx context.Context, id string, status models.ProviderEventStatus, chargeID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE provider_events
		SET status = $1, charge_id = COALESCE(NULLIF($2, ''), charge_id), updated_at = NOW()
		WHERE id = $3
	`, status, chargeID, id)
	return err
}
