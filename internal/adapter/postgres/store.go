package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

var _ port.Store = (*Store)(nil)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements every storage port on PostgreSQL using pgxpool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new store instance.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, domain.ErrNotFound)
	}
	return err
}

// inTx runs fn in a read-committed transaction and commits when it
// returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()
	return fn(tx)
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.pool, id)
}

func getUser(ctx context.Context, q querier, id string) (*domain.User, error) {
	var (
		u     domain.User
		subID *string
	)
	err := q.QueryRow(ctx, `SELECT id, email, name, role, current_subscription_id FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &subID)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	if subID != nil {
		u.CurrentSubscriptionID = *subID
	}
	return &u, nil
}

// UpsertUser inserts u or updates its profile fields. The current
// subscription is only changed when u carries one.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	var subID *string
	if u.CurrentSubscriptionID != "" {
		subID = &u.CurrentSubscriptionID
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, email, name, role, current_subscription_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    email = EXCLUDED.email,
    name = EXCLUDED.name,
    role = EXCLUDED.role,
    current_subscription_id = COALESCE(EXCLUDED.current_subscription_id, users.current_subscription_id)`,
		u.ID, u.Email, u.Name, u.Role, subID)
	return err
}

func (s *Store) SetCurrentSubscription(ctx context.Context, userID, subscriptionID string) error {
	return setCurrentSubscription(ctx, s.pool, userID, subscriptionID)
}

func setCurrentSubscription(ctx context.Context, q querier, userID, subscriptionID string) error {
	tag, err := q.Exec(ctx, `UPDATE users SET current_subscription_id = $1 WHERE id = $2`, subscriptionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("user", userID, pgx.ErrNoRows)
	}
	return nil
}

// ---- subscriptions ----

const subscriptionColumns = `id, name, price_id, run_cycle_limit, campaign_limit, location_limit, allowed_radius,
	ad_campaign_time_limit, current_cycles, is_completed, completed_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(&sub.ID, &sub.Name, &sub.PriceID, &sub.RunCycleLimit, &sub.CampaignLimit, &sub.LocationLimit,
		&sub.AllowedRadius, &sub.AdCampaignTimeLimit, &sub.CurrentCycles, &sub.IsCompleted, &sub.CompletedAt,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func getSubscription(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sub, err := scanSubscription(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound("subscription", id, err)
	}
	return sub, nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	return getSubscription(ctx, s.pool, id, false)
}

func (s *Store) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sub.ID, sub.Name, sub.PriceID, sub.RunCycleLimit, sub.CampaignLimit, sub.LocationLimit, sub.AllowedRadius,
		sub.AdCampaignTimeLimit, sub.CurrentCycles, sub.IsCompleted, sub.CompletedAt, sub.CreatedAt, sub.UpdatedAt)
	return err
}

func saveSubscription(ctx context.Context, q querier, sub *domain.Subscription) error {
	_, err := q.Exec(ctx, `UPDATE subscriptions
SET current_cycles = $1, is_completed = $2, completed_at = $3, updated_at = $4
WHERE id = $5`, sub.CurrentCycles, sub.IsCompleted, sub.CompletedAt, sub.UpdatedAt, sub.ID)
	return err
}

// ---- locations ----

const locationColumns = `id, user_id, name, latitude, longitude, radius, state, created_at`

func scanLocation(row pgx.Row) (domain.Location, error) {
	var l domain.Location
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Latitude, &l.Longitude, &l.Radius, &l.State, &l.CreatedAt)
	return l, err
}

// GetLocations returns the locations in the order of ids.
func (s *Store) GetLocations(ctx context.Context, ids []string) ([]domain.Location, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Location, error) {
		return scanLocation(row)
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Location, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	out := make([]domain.Location, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, notFound("location", id, pgx.ErrNoRows)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) ListUserLocations(ctx context.Context, userID string) ([]domain.Location, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Location, error) {
		return scanLocation(row)
	})
}

func (s *Store) CreateLocation(ctx context.Context, l *domain.Location) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `INSERT INTO locations (`+locationColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		l.ID, l.UserID, l.Name, l.Latitude, l.Longitude, l.Radius, l.State, l.CreatedAt)
	return err
}

// ---- notifications ----

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var (
		recipientID   *string
		recipientRole *string
	)
	if n.RecipientID != "" {
		recipientID = &n.RecipientID
	} else {
		role := string(n.RecipientRole)
		recipientRole = &role
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO notifications
(id, recipient_id, recipient_role, kind, title, message, payload, read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		n.ID, recipientID, recipientRole, n.Kind, n.Title, n.Message, payload, n.Read, n.CreatedAt)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, userID string, role domain.Role) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, COALESCE(recipient_id, ''), COALESCE(recipient_role, ''), kind, title, message, payload, read, created_at
        FROM notifications
        WHERE recipient_id = $1 OR ($2 = 'admin' AND recipient_role = 'admin')
        ORDER BY created_at DESC, id`, userID, string(role))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Notification, error) {
		var (
			n       domain.Notification
			payload []byte
		)
		if err := row.Scan(&n.ID, &n.RecipientID, &n.RecipientRole, &n.Kind, &n.Title, &n.Message, &payload, &n.Read, &n.CreatedAt); err != nil {
			return n, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return n, fmt.Errorf("decode payload of %s: %w", n.ID, err)
			}
		}
		return n, nil
	})
}

func (s *Store) MarkRead(ctx context.Context, id, userID string, role domain.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET read = TRUE
WHERE id = $1 AND (recipient_id = $2 OR ($3 = 'admin' AND recipient_role = 'admin'))`, id, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("notification", id, pgx.ErrNoRows)
	}
	return nil
}
