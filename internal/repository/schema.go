package repository

import "database/sql"

// InitDB creates the engine's tables if they do not exist yet. Uniqueness
// constraints here are load-bearing: the idempotency key constraint is what
// makes concurrent duplicate creations safe without a global lock.
func InitDB(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS charges (
			id VARCHAR(64) PRIMARY KEY,
			merchant_id VARCHAR(64) NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(16) NOT NULL,
			method VARCHAR(16),
			idempotency_key VARCHAR(255) NOT NULL UNIQUE,
			external_ref VARCHAR(255),
			provider_tx_id VARCHAR(255),
			pix_copy_paste TEXT,
			pix_qr_base64 TEXT,
			boleto_url TEXT,
			boleto_barcode TEXT,
			instrument_expires_at TIMESTAMP,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_charges_provider_tx ON charges(provider_tx_id)`,
		`CREATE INDEX IF NOT EXISTS idx_charges_external_ref ON charges(external_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_charges_pending_match ON charges(merchant_id, status, amount_cents)`,
		`CREATE TABLE IF NOT EXISTS charge_splits (
			id VARCHAR(64) PRIMARY KEY,
			charge_id VARCHAR(64) NOT NULL REFERENCES charges(id),
			recipient_id VARCHAR(64) NOT NULL,
			percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
			amount_cents BIGINT NOT NULL DEFAULT 0,
			computed_cents BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS charge_fees (
			id VARCHAR(64) PRIMARY KEY,
			charge_id VARCHAR(64) NOT NULL REFERENCES charges(id),
			kind VARCHAR(64) NOT NULL,
			amount_cents BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS commission_rules (
			id VARCHAR(64) PRIMARY KEY,
			merchant_id VARCHAR(64) NOT NULL,
			recipient_id VARCHAR(64) NOT NULL,
			rule_type VARCHAR(16) NOT NULL,
			rule_value DOUBLE PRECISION NOT NULL,
			cap_cents BIGINT NOT NULL DEFAULT 0,
			priority INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_commission_rules_merchant ON commission_rules(merchant_id, active)`,
		`CREATE TABLE IF NOT EXISTS webhooks (
			id VARCHAR(64) PRIMARY KEY,
			public_id VARCHAR(64) NOT NULL UNIQUE,
			merchant_id VARCHAR(64) NOT NULL,
			url TEXT NOT NULL,
			secret VARCHAR(255) NOT NULL,
			events TEXT[] NOT NULL DEFAULT '{}',
			status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			failure_count INT NOT NULL DEFAULT 0,
			last_success_at TIMESTAMP,
			last_failure_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhooks_merchant ON webhooks(merchant_id, status)`,
		`CREATE TABLE IF NOT EXISTS webhook_logs (
			id VARCHAR(64) PRIMARY KEY,
			webhook_id VARCHAR(64) NOT NULL,
			event VARCHAR(64) NOT NULL,
			payload TEXT NOT NULL,
			status_code INT NOT NULL DEFAULT 0,
			response_body TEXT,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			attempt INT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS provider_configs (
			id VARCHAR(64) PRIMARY KEY,
			provider VARCHAR(64) NOT NULL,
			account_id VARCHAR(128) NOT NULL,
			merchant_id VARCHAR(64) NOT NULL,
			secret VARCHAR(255) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, account_id)
		)`,
		`CREATE TABLE IF NOT EXISTS settlements (
			id VARCHAR(64) PRIMARY KEY,
			merchant_id VARCHAR(64) NOT NULL,
			amount_cents BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			provider_tx_id VARCHAR(255),
			failure_reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_provider_tx ON settlements(provider_tx_id)`,
		`CREATE TABLE IF NOT EXISTS payment_interactions (
			id VARCHAR(64) PRIMARY KEY,
			charge_id VARCHAR(64),
			merchant_id VARCHAR(64),
			session_id VARCHAR(64),
			kind VARCHAR(64) NOT NULL,
			detail JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS provider_events (
			id VARCHAR(64) PRIMARY KEY,
			provider VARCHAR(64) NOT NULL,
			provider_event_id VARCHAR(128) NOT NULL,
			account_id VARCHAR(128) NOT NULL,
			kind VARCHAR(64) NOT NULL,
			raw_body BYTEA,
			status VARCHAR(16) NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT,
			charge_id VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_provider_events_status ON provider_events(status)`,
		`CREATE TABLE IF NOT EXISTS event_outbox (
			id VARCHAR(64) PRIMARY KEY,
			merchant_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			published_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_outbox_pending ON event_outbox(created_at) WHERE published_at IS NULL`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
