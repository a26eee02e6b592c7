package player

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"signage-ads/internal/core/domain"
)

// FeedFetcher loads the driver feed.
type FeedFetcher interface {
	Feed(ctx context.Context) ([]FeedItem, error)
}

// Kiosk keeps a session supplied with a fresh catalog and the device
// position.
type Kiosk struct {
	feed     FeedFetcher
	media    *MediaCache
	gps      PositionSource
	session  *Session
	interval time.Duration
	logger   *slog.Logger
}

// NewKiosk wires the pieces. media may be nil to play straight from URLs.
func NewKiosk(feed FeedFetcher, media *MediaCache, gps PositionSource, session *Session, interval time.Duration, logger *slog.Logger) *Kiosk {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Kiosk{feed: feed, media: media, gps: gps, session: session, interval: interval, logger: logger}
}

// Run blocks until ctx ends or the position source fails.
func (k *Kiosk) Run(ctx context.Context) error {
	k.session.Start(ctx)
	defer k.session.Close()

	positions := make(chan domain.Position, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return k.gps.Run(gctx, positions) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case p := <-positions:
				k.session.UpdatePosition(p)
			}
		}
	})
	g.Go(func() error {
		t := time.NewTicker(k.interval)
		defer t.Stop()
		for {
			k.refresh(gctx)
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
			}
		}
	})
	return g.Wait()
}

// refresh reloads the catalog. A failed fetch keeps the previous one so
// the kiosk keeps playing offline.
func (k *Kiosk) refresh(ctx context.Context) {
	feed, err := k.feed.Feed(ctx)
	if err != nil {
		if ctx.Err() == nil {
			k.logger.Warn("feed refresh failed", slog.Any("error", err))
		}
		return
	}
	var items []Item
	if k.media != nil {
		items = k.media.Items(ctx, feed)
	} else {
		items = make([]Item, 0, len(feed))
		for _, f := range feed {
			items = append(items, Item{Campaign: f.Campaign, MaxRunCycleLimit: f.MaxRunCycleLimit})
		}
	}
	k.logger.Debug("catalog refreshed", slog.Int("items", len(items)))
	k.session.SetCatalog(items)
}
