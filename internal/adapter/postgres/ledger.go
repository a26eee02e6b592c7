package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

// retryable reports whether err is a serialization failure or a deadlock.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// txErr classifies an error from a statement inside a ledger unit. Missing
// rows, constraint violations and cancellation keep their meaning; anything
// else left the transaction unusable and rolls it back, so the whole unit
// can be retried.
func txErr(err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrLedgerRetryable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrLedgerRetryable, err)
}

// WithSubscription opens a serializable transaction, locks the
// subscription row and runs fn on it. fn's writes commit together.
func (s *Store) WithSubscription(ctx context.Context, subscriptionID string, fn func(ctx context.Context, tx port.LedgerTx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrLedgerRetryable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	sub, err := getSubscription(ctx, tx, subscriptionID, true)
	if err != nil {
		return txErr(err)
	}

	if err = fn(ctx, &ledgerTx{tx: tx, sub: sub}); err != nil {
		return wrapRetryable(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrLedgerRetryable, err)
	}
	return nil
}

func wrapRetryable(err error) error {
	if retryable(err) && !errors.Is(err, domain.ErrLedgerRetryable) {
		return fmt.Errorf("%w: %v", domain.ErrLedgerRetryable, err)
	}
	return err
}

type ledgerTx struct {
	tx  pgx.Tx
	sub *domain.Subscription
}

func (t *ledgerTx) Subscription() *domain.Subscription {
	return t.sub
}

func (t *ledgerTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := getUser(ctx, t.tx, id)
	return u, txErr(err)
}

func (t *ledgerTx) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := getCampaign(ctx, t.tx, id, true)
	return c, txErr(err)
}

func (t *ledgerTx) ListUserCampaigns(ctx context.Context, userID string) ([]domain.Campaign, error) {
	list, err := listUserCampaigns(ctx, t.tx, userID, true)
	return list, txErr(err)
}

func (t *ledgerTx) AppendPlay(ctx context.Context, p domain.Play) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
        INSERT INTO plays (campaign_id, latitude, longitude, played_at, dedupe_key)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (campaign_id, dedupe_key) DO NOTHING`,
		p.CampaignID, p.Latitude, p.Longitude, p.PlayedAt, p.DedupeKey)
	if err != nil {
		return false, txErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveCampaign writes the row and leaves the location set alone.
func (t *ledgerTx) SaveCampaign(ctx context.Context, c *domain.Campaign) error {
	return txErr(saveCampaign(ctx, t.tx, c))
}

func (t *ledgerTx) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	if err := saveCampaign(ctx, t.tx, c); err != nil {
		return txErr(err)
	}
	return txErr(replaceLocations(ctx, t.tx, c))
}

func (t *ledgerTx) SetCurrentSubscription(ctx context.Context, userID, subscriptionID string) error {
	return txErr(setCurrentSubscription(ctx, t.tx, userID, subscriptionID))
}

func (t *ledgerTx) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID != t.sub.ID {
		return fmt.Errorf("save subscription %q inside unit for %q", sub.ID, t.sub.ID)
	}
	return txErr(saveSubscription(ctx, t.tx, sub))
}

// Plays returns a campaign's play history, oldest first.
func (s *Store) Plays(ctx context.Context, campaignID string) ([]domain.Play, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT campaign_id, latitude, longitude, played_at, dedupe_key
        FROM plays WHERE campaign_id = $1 ORDER BY id`, campaignID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Play, error) {
		var p domain.Play
		err := row.Scan(&p.CampaignID, &p.Latitude, &p.Longitude, &p.PlayedAt, &p.DedupeKey)
		return p, err
	})
}
