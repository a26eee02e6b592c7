package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/adapter/memory"
	"signage-ads/internal/core/domain"
)

func TestSeed_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, Seed(ctx, store, now, "2006-01-02 15:04:05"))
	require.NoError(t, Seed(ctx, store, now, "2006-01-02 15:04:05"))

	user, err := store.GetUser(ctx, seedUserID)
	require.NoError(t, err)
	require.NotEmpty(t, user.CurrentSubscriptionID)

	campaigns, err := store.ListUserCampaigns(ctx, seedUserID)
	require.NoError(t, err)
	assert.Len(t, campaigns, 3)

	feed, err := store.ListFeedCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, feed, 2, "the pending campaign is not a candidate")

	admin, err := store.GetUser(ctx, seedAdminID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
}
