package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/models"
)

func seedOutbox(repo *fakeChargeRepo, ids ...string) {
	for _, id := range ids {
		repo.outbox = append(repo.outbox, &outboxRow{event: &models.PlatformEvent{
			ID:        id,
			Type:      models.EventChargePaid,
			Timestamp: time.Now().UTC(),
		}})
	}
}

func TestOutboxRelayPublishesInCommitOrder(t *testing.T) {
	repo := newFakeChargeRepo()
	pub := &fakePublisher{}
	seedOutbox(repo, "e1", "e2", "e3")

	NewOutboxRelay(repo, pub, time.Minute, zap.NewNop()).Drain(context.Background())

	require.Len(t, pub.events, 3)
	assert.Equal(t, "e1", pub.events[0].ID)
	assert.Equal(t, "e3", pub.events[2].ID)

	pending, err := repo.ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "published rows are retired")
}

func TestOutboxRelayStopsPassOnPublishFailure(t *testing.T) {
	repo := newFakeChargeRepo()
	pub := &fakePublisher{err: errors.New("broker down")}
	seedOutbox(repo, "e1", "e2")
	relay := NewOutboxRelay(repo, pub, time.Minute, zap.NewNop())

	relay.Drain(context.Background())
	assert.Empty(t, pub.events)

	pub.err = nil
	relay.Drain(context.Background())
	require.Len(t, pub.events, 2)
	assert.Equal(t, "e1", pub.events[0].ID, "ordering survives the failed pass")
}
