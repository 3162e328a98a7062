package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/turbofy/charge-engine/internal/models"
)

// ErrDuplicateIdempotencyKey is returned when the unique constraint on the
// idempotency key rejects an insert. Callers re-read the existing charge.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

type ChargeRepository struct {
	db *sql.DB
}

func NewChargeRepository(db *sql.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

const chargeColumns = `id, merchant_id, amount_cents, currency, status, COALESCE(method, ''),
	idempotency_key, COALESCE(external_ref, ''), COALESCE(provider_tx_id, ''),
	COALESCE(pix_copy_paste, ''), COALESCE(pix_qr_base64, ''), COALESCE(boleto_url, ''),
	COALESCE(boleto_barcode, ''), instrument_expires_at, metadata, created_at, updated_at`

func (r *ChargeRepository) Create(ctx context.Context, c *models.Charge) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO charges (id, merchant_id, amount_cents, currency, status, method,
			idempotency_key, external_ref, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, $10)
	`, c.ID, c.MerchantID, c.AmountCents, c.Currency, c.Status, string(c.Method),
		c.IdempotencyKey, c.ExternalRef, metadata, c.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateIdempotencyKey
	}
	return err
}

func (r *ChargeRepository) GetByID(ctx context.Context, id string) (*models.Charge, error) {
	return r.queryOne(ctx, `SELECT `+chargeColumns+` FROM charges WHERE id = $1`, id)
}

func (r *ChargeRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Charge, error) {
	return r.queryOne(ctx, `SELECT `+chargeColumns+` FROM charges WHERE idempotency_key = $1`, key)
}

func (r *ChargeRepository) GetByProviderTxID(ctx context.Context, txID string) (*models.Charge, error) {
	return r.queryOne(ctx, `SELECT `+chargeColumns+` FROM charges WHERE provider_tx_id = $1`, txID)
}

func (r *ChargeRepository) GetByExternalRef(ctx context.Context, ref string) (*models.Charge, error) {
	return r.queryOne(ctx, `SELECT `+chargeColumns+` FROM charges WHERE external_ref = $1`, ref)
}

func (r *ChargeRepository) ListPendingByAmount(ctx context.Context, merchantID string, amountCents int64, method models.PaymentMethod, since time.Time) ([]*models.Charge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+chargeColumns+` FROM charges
		WHERE merchant_id = $1 AND status = $2 AND amount_cents = $3
			AND method = $4 AND created_at >= $5
		ORDER BY created_at
	`, merchantID, models.ChargePending, amountCents, string(method), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []*models.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

func (r *ChargeRepository) AttachSplits(ctx context.Context, chargeID string, splits []models.ChargeSplit, fees []models.Fee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range splits {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO charge_splits (id, charge_id, recipient_id, percentage, amount_cents, computed_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, chargeID, s.RecipientID, s.Percentage, s.AmountCents, s.ComputedCents); err != nil {
			return err
		}
	}

	for _, f := range fees {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO charge_fees (id, charge_id, kind, amount_cents)
			VALUES ($1, $2, $3, $4)
		`, f.ID, chargeID, f.Kind, f.AmountCents); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *ChargeRepository) UpdateInstrument(ctx context.Context, chargeID string, inst *models.PaymentInstrument) error {
	var expiresAt any
	if !inst.ExpiresAt.IsZero() {
		expiresAt = inst.ExpiresAt
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE charges
		SET provider_tx_id = NULLIF($1, ''), pix_copy_paste = NULLIF($2, ''),
			pix_qr_base64 = NULLIF($3, ''), boleto_url = NULLIF($4, ''),
			boleto_barcode = NULLIF($5, ''), instrument_expires_at = $6, updated_at = NOW()
		WHERE id = $7
	`, inst.ProviderTxID, inst.CopyPaste, inst.QRCodeBase64, inst.BoletoURL, inst.Barcode, expiresAt, chargeID)
	return err
}

// SetProviderTxID backfills the provider transaction id on a charge matched
// through a fallback path. It touches nothing else: the instrument columns
// stay as issued.
func (r *ChargeRepository) SetProviderTxID(ctx context.Context, chargeID, txID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE charges SET provider_tx_id = $1, updated_at = NOW()
		WHERE id = $2
	`, txID, chargeID)
	return err
}

// Transition applies a checked state change and reports affected rows. Zero
// rows means the charge was not in the expected source state. A non-nil
// event lands in the outbox in the same transaction, and only when the
// update actually applied.
func (r *ChargeRepository) Transition(ctx context.Context, chargeID string, from, to models.ChargeStatus, event *models.PlatformEvent) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE charges SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, chargeID, from)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if rows > 0 && event != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_outbox (id, merchant_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, event.ID, event.MerchantID, event.Type, []byte(event.Payload), event.Timestamp); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rows, nil
}

func (r *ChargeRepository) ListSplits(ctx context.Context, chargeID string) ([]models.ChargeSplit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, charge_id, recipient_id, percentage, amount_cents, computed_cents, created_at
		FROM charge_splits WHERE charge_id = $1 ORDER BY created_at
	`, chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []models.ChargeSplit
	for rows.Next() {
		var s models.ChargeSplit
		if err := rows.Scan(&s.ID, &s.ChargeID, &s.RecipientID, &s.Percentage, &s.AmountCents, &s.ComputedCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ChargeRepository) queryOne(ctx context.Context, query string, arg any) (*models.Charge, error) {
	c, err := scanCharge(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanCharge(row rowScanner) (*models.Charge, error) {
	var (
		c         models.Charge
		method    string
		inst      models.PaymentInstrument
		expiresAt sql.NullTime
		metadata  []byte
	)
	err := row.Scan(&c.ID, &c.MerchantID, &c.AmountCents, &c.Currency, &c.Status, &method,
		&c.IdempotencyKey, &c.ExternalRef, &c.ProviderTxID,
		&inst.CopyPaste, &inst.QRCodeBase64, &inst.BoletoURL, &inst.Barcode,
		&expiresAt, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.Method = models.PaymentMethod(method)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, err
		}
	}
	if inst.CopyPaste != "" || inst.BoletoURL != "" {
		inst.Method = c.Method
		inst.ProviderTxID = c.ProviderTxID
		if expiresAt.Valid {
			inst.ExpiresAt = expiresAt.Time
		}
		c.Instrument = &inst
	}
	return &c, nil
}
