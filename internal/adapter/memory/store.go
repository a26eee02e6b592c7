// Package memory implements every storage port in process memory. It backs
// APP_STORAGE=memory and the use case tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

var _ port.Store = (*Store)(nil)

// Store keeps records in maps guarded by one RWMutex. Ledger units are
// serialized per subscription id and stage their writes until commit.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	subscriptions map[string]domain.Subscription
	campaigns     map[string]domain.Campaign
	campaignOrder []string
	locations     map[string]domain.Location
	locationOrder []string
	plays         map[string][]domain.Play
	playKeys      map[string]struct{}
	notifications []domain.Notification

	locks      keyedMutex
	commitHook func() error
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		subscriptions: make(map[string]domain.Subscription),
		campaigns:     make(map[string]domain.Campaign),
		locations:     make(map[string]domain.Location),
		plays:         make(map[string][]domain.Play),
		playKeys:      make(map[string]struct{}),
		locks:         keyedMutex{locks: make(map[string]*refLock)},
		now:           time.Now,
	}
}

// SetCommitHook installs fn to run right before a ledger unit is applied.
// A non-nil error aborts the commit as a retryable failure.
func (s *Store) SetCommitHook(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = fn
}

// PutUser inserts or replaces a user. Accounts are provisioned outside
// this service, so there is no port method for it.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) UpsertUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.users[u.ID]; ok && u.CurrentSubscriptionID == "" {
		u.CurrentSubscriptionID = old.CurrentSubscriptionID
	}
	s.users[u.ID] = *u
	return nil
}

// Plays returns the play history of a campaign.
func (s *Store) Plays(campaignID string) []domain.Play {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.plays[campaignID])
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, domain.ErrNotFound)
}

// ---- users ----

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (s *Store) SetCurrentSubscription(_ context.Context, userID, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	if _, ok = s.subscriptions[subscriptionID]; !ok {
		return notFound("subscription", subscriptionID)
	}
	u.CurrentSubscriptionID = subscriptionID
	s.users[userID] = u
	return nil
}

// ---- subscriptions ----

func (s *Store) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, notFound("subscription", id)
	}
	return sub.Clone(), nil
}

func (s *Store) CreateSubscription(_ context.Context, sub *domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.subscriptions[sub.ID] = *sub.Clone()
	return nil
}

// ---- locations ----

func (s *Store) GetLocations(_ context.Context, ids []string) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Location, 0, len(ids))
	for _, id := range ids {
		l, ok := s.locations[id]
		if !ok {
			return nil, notFound("location", id)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) ListUserLocations(_ context.Context, userID string) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Location
	for _, id := range s.locationOrder {
		if l := s.locations[id]; l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) CreateLocation(_ context.Context, l *domain.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = s.now()
	s.locations[l.ID] = *l
	s.locationOrder = append(s.locationOrder, l.ID)
	return nil
}

// ---- campaigns ----

func (s *Store) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, notFound("campaign", id)
	}
	c = c.Clone()
	return &c, nil
}

func (s *Store) ListUserCampaigns(_ context.Context, userID string) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userCampaignsLocked(userID), nil
}

func (s *Store) userCampaignsLocked(userID string) []domain.Campaign {
	var out []domain.Campaign
	for _, id := range s.campaignOrder {
		if c := s.campaigns[id]; c.UserID == userID {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (s *Store) ListCampaignsByStatus(_ context.Context, statuses ...domain.CampaignStatus) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Campaign
	for _, id := range s.campaignOrder {
		if c := s.campaigns[id]; slices.Contains(statuses, c.Status) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListFeedCandidates(_ context.Context) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Candidate
	for _, id := range s.campaignOrder {
		c := s.campaigns[id]
		if !c.ApprovalStatus.IsApproved || !c.Status.InFlight() {
			continue
		}
		cand := domain.Candidate{Campaign: c.Clone()}
		if u, ok := s.users[c.UserID]; ok && u.CurrentSubscriptionID != "" {
			if sub, ok := s.subscriptions[u.CurrentSubscriptionID]; ok {
				cand.Subscription = sub.Clone()
				cand.MaxRunCycleLimit = sub.RunCycleLimit
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

func (s *Store) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.campaigns[c.ID] = c.Clone()
	s.campaignOrder = append(s.campaignOrder, c.ID)
	return nil
}

func (s *Store) UpdateCampaign(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; !ok {
		return notFound("campaign", c.ID)
	}
	s.campaigns[c.ID] = c.Clone()
	return nil
}

// ---- notifications ----

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, role domain.Role) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if n := s.notifications[i]; addressedTo(n, userID, role) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, id, userID string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && addressedTo(s.notifications[i], userID, role) {
			s.notifications[i].Read = true
			return nil
		}
	}
	return notFound("notification", id)
}

func addressedTo(n domain.Notification, userID string, role domain.Role) bool {
	if n.RecipientID != "" {
		return n.RecipientID == userID
	}
	return role == domain.RoleAdmin && n.RecipientRole == domain.RoleAdmin
}

// ---- stats ----

func (s *Store) PlayStats(_ context.Context, req port.StatsReq) (*port.StatsResp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := &port.StatsResp{From: req.From, To: req.To}
	for _, id := range s.campaignOrder {
		c := s.campaigns[id]
		if c.UserID != req.UserID || (req.CampaignID != "" && id != req.CampaignID) {
			continue
		}
		var n int64
		for _, p := range s.plays[id] {
			if !p.PlayedAt.Before(req.From) && !p.PlayedAt.After(req.To) {
				n++
			}
		}
		if n > 0 {
			resp.ByCampaign = append(resp.ByCampaign, port.CampaignPlays{CampaignID: id, Plays: n})
			resp.Plays += n
		}
	}
	slices.SortFunc(resp.ByCampaign, func(a, b port.CampaignPlays) int {
		return strings.Compare(a.CampaignID, b.CampaignID)
	})
	return resp, nil
}
