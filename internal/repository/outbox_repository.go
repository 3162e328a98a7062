package repository

import (
	"context"
	"database/sql"

	"github.com/turbofy/charge-engine/internal/models"
)

// OutboxRepository reads and retires event rows written by state
// transitions. Rows are inserted elsewhere, always inside the transaction
// that committed the state change they describe.
type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) ListUnpublished(ctx context.Context, limit int) ([]*models.PlatformEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, merchant_id, event_type, payload, created_at
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.PlatformEvent
	for rows.Next() {
		var (
			e       models.PlatformEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.MerchantID, &e.Type, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Payload = payload
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE event_outbox SET published_at = NOW() WHERE id = $1
	`, id)
	return err
}
