package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/core/domain"
)

func TestAccountSync_WelcomesNewAccountsOnce(t *testing.T) {
	f := newFixture(t)
	accounts := NewAccountUseCase(f.store, f.events)

	u, created, err := accounts.Sync(f.ctx, domain.User{ID: "n1", Email: "new@example.com", Name: "New"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.Equal(t, []domain.EventKind{domain.EventWelcome}, f.events.kinds())

	_, created, err = accounts.Sync(f.ctx, domain.User{ID: "n1", Email: "new@example.com", Name: "New"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, f.events.kinds(), 1)
}

func TestAccountSync_KeepsSubscription(t *testing.T) {
	f := newFixture(t)
	_, sub := f.addUser("u1", 5)
	accounts := NewAccountUseCase(f.store, f.events)

	u, created, err := accounts.Sync(f.ctx, domain.User{ID: "u1", Email: "renamed@example.com", CurrentSubscriptionID: "forged"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "renamed@example.com", u.Email)
	assert.Equal(t, sub.ID, u.CurrentSubscriptionID)
}

func TestAccountSync_RequiresID(t *testing.T) {
	f := newFixture(t)
	_, _, err := NewAccountUseCase(f.store, f.events).Sync(f.ctx, domain.User{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
