package memory

import (
	"context"
	"fmt"
	"sync"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

type refLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds
// or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// WithSubscription serializes fn against every other unit for the same
// subscription. Writes are staged on the tx and applied under the store
// lock in one step after fn returns nil.
func (s *Store) WithSubscription(ctx context.Context, subscriptionID string, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	unlock := s.locks.lock(subscriptionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	sub, ok := s.subscriptions[subscriptionID]
	hook := s.commitHook
	s.mu.RUnlock()
	if !ok {
		return notFound("subscription", subscriptionID)
	}

	tx := &ledgerTx{
		store:     s,
		sub:       sub.Clone(),
		campaigns: make(map[string]domain.Campaign),
		playKeys:  make(map[string]struct{}),
		switches:  make(map[string]string),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if hook != nil {
		if err := hook(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrLedgerRetryable, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, subID := range tx.switches {
		if _, ok := s.subscriptions[subID]; !ok {
			return notFound("subscription", subID)
		}
		if _, ok := s.users[userID]; !ok {
			return notFound("user", userID)
		}
	}
	for userID, subID := range tx.switches {
		u := s.users[userID]
		u.CurrentSubscriptionID = subID
		s.users[userID] = u
	}
	if tx.savedSub != nil {
		s.subscriptions[tx.savedSub.ID] = *tx.savedSub
	}
	for id, c := range tx.campaigns {
		s.campaigns[id] = c
	}
	for _, p := range tx.plays {
		s.plays[p.CampaignID] = append(s.plays[p.CampaignID], p)
		s.playKeys[playKey(p)] = struct{}{}
	}
	return nil
}

type ledgerTx struct {
	store     *Store
	sub       *domain.Subscription
	savedSub  *domain.Subscription
	campaigns map[string]domain.Campaign
	plays     []domain.Play
	playKeys  map[string]struct{}
	switches  map[string]string
}

func playKey(p domain.Play) string { return p.CampaignID + "|" + p.DedupeKey }

func (tx *ledgerTx) Subscription() *domain.Subscription { return tx.sub }

func (tx *ledgerTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := tx.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if subID, ok := tx.switches[id]; ok {
		u.CurrentSubscriptionID = subID
	}
	return u, nil
}

func (tx *ledgerTx) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	if c, ok := tx.campaigns[id]; ok {
		c = c.Clone()
		return &c, nil
	}
	return tx.store.GetCampaign(ctx, id)
}

func (tx *ledgerTx) ListUserCampaigns(_ context.Context, userID string) ([]domain.Campaign, error) {
	tx.store.mu.RLock()
	out := tx.store.userCampaignsLocked(userID)
	tx.store.mu.RUnlock()
	for i := range out {
		if staged, ok := tx.campaigns[out[i].ID]; ok {
			out[i] = staged.Clone()
		}
	}
	return out, nil
}

func (tx *ledgerTx) AppendPlay(_ context.Context, p domain.Play) (bool, error) {
	key := playKey(p)
	if _, ok := tx.playKeys[key]; ok {
		return false, nil
	}
	tx.store.mu.RLock()
	_, dup := tx.store.playKeys[key]
	tx.store.mu.RUnlock()
	if dup {
		return false, nil
	}
	tx.playKeys[key] = struct{}{}
	tx.plays = append(tx.plays, p)
	return true, nil
}

func (tx *ledgerTx) SaveCampaign(_ context.Context, c *domain.Campaign) error {
	tx.campaigns[c.ID] = c.Clone()
	return nil
}

// UpdateCampaign stages the whole record; locations travel with it.
func (tx *ledgerTx) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	return tx.SaveCampaign(ctx, c)
}

func (tx *ledgerTx) SetCurrentSubscription(_ context.Context, userID, subscriptionID string) error {
	tx.switches[userID] = subscriptionID
	return nil
}

func (tx *ledgerTx) SaveSubscription(_ context.Context, sub *domain.Subscription) error {
	if sub.ID != tx.sub.ID {
		return fmt.Errorf("save subscription %q inside unit for %q", sub.ID, tx.sub.ID)
	}
	tx.savedSub = sub.Clone()
	return nil
}
