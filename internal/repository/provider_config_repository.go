package repository

import (
	"context"
	"database/sql"

	"github.com/turbofy/charge-engine/internal/models"
)

type ProviderConfigRepository struct {
	db *sql.DB
}

func NewProviderConfigRepository(db *sql.DB) *ProviderConfigRepository {
	return &ProviderConfigRepository{db: db}
}

func (r *ProviderConfigRepository) GetByAccountID(ctx context.Context, provider, accountID string) (*models.ProviderConfig, error) {
	var cfg models.ProviderConfig
	err := r.db.QueryRowContext(ctx, `
		SELECT id, provider, account_id, merchant_id, secret, active, created_at
		FROM provider_configs
		WHERE provider = $1 AND account_id = $2 AND active = TRUE
	`, provider, accountID).Scan(&cfg.ID, &cfg.Provider, &cfg.AccountID, &cfg.MerchantID,
		&cfg.Secret, &cfg.Active, &cfg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
