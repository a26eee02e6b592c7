package usecase

import (
	"context"
	"log/slog"
	"time"

	"signage-ads/internal/core/port"
)

// Option configures the collaborators every use case shares.
type Option func(*common)

func WithLogger(l *slog.Logger) Option { return func(c *common) { c.logger = l } }

func WithMetrics(m port.Metrics) Option { return func(c *common) { c.metrics = m } }

// WithFeedInvalidator makes state changes drop the cached driver feed.
func WithFeedInvalidator(f port.FeedInvalidator) Option { return func(c *common) { c.feed = f } }

// WithNow overrides the wall clock, for tests.
func WithNow(now func() time.Time) Option { return func(c *common) { c.now = now } }

type common struct {
	logger  *slog.Logger
	metrics port.Metrics
	feed    port.FeedInvalidator
	now     func() time.Time
}

func newCommon(component string, opts []Option) common {
	c := common{logger: slog.Default(), metrics: port.NopMetrics{}, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	c.logger = c.logger.With(slog.String("component", component))
	return c
}

func (c *common) invalidateFeed(ctx context.Context) {
	if c.feed == nil {
		return
	}
	if err := c.feed.InvalidateFeed(ctx); err != nil {
		c.logger.Warn("feed invalidation failed", slog.Any("error", err))
	}
}
