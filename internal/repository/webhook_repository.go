package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/turbofy/charge-engine/internal/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) ListActiveByMerchantAndEvent(ctx context.Context, merchantID, event string) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, public_id, merchant_id, url, secret, events, status, failure_count,
			last_success_at, last_failure_at, created_at, updated_at
		FROM webhooks
		WHERE merchant_id = $1 AND status = $2
			AND (events = '{}' OR $3 = ANY(events))
	`, merchantID, models.WebhookActive, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hooks []*models.Webhook
	for rows.Next() {
		var (
			w                     models.Webhook
			lastSuccess, lastFail sql.NullTime
		)
		if err := rows.Scan(&w.ID, &w.PublicID, &w.MerchantID, &w.URL, &w.Secret,
			pq.Array(&w.Events), &w.Status, &w.FailureCount,
			&lastSuccess, &lastFail, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		if lastSuccess.Valid {
			t := lastSuccess.Time
			w.LastSuccessAt = &t
		}
		if lastFail.Valid {
			t := lastFail.Time
			w.LastFailureAt = &t
		}
		hooks = append(hooks, &w)
	}
	return hooks, rows.Err()
}

// RecordDelivery writes the immutable attempt row and applies the delivery
// outcome to the subscription's failure counter in the same transaction.
// Success resets the counter; a failure that crosses the threshold suspends
// the subscription.
func (r *WebhookRepository) RecordDelivery(ctx context.Context, log *models.WebhookLog, success bool, suspendThreshold int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO webhook_logs (id, webhook_id, event, payload, status_code, response_body, latency_ms, success, attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, log.ID, log.WebhookID, log.Event, log.Payload, log.StatusCode, log.ResponseBody,
		log.LatencyMS, log.Success, log.Attempt, log.CreatedAt); err != nil {
		return err
	}

	now := time.Now()
	if success {
		_, err = tx.ExecContext(ctx, `
			UPDATE webhooks
			SET failure_count = 0, last_success_at = $1, updated_at = $1
			WHERE id = $2
		`, now, log.WebhookID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE webhooks
			SET failure_count = failure_count + 1,
				last_failure_at = $1,
				updated_at = $1,
				status = CASE WHEN failure_count + 1 >= $2 THEN 'SUSPENDED' ELSE status END
			WHERE id = $3
		`, now, suspendThreshold, log.WebhookID)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}
