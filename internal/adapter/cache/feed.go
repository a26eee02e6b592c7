package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"signage-ads/internal/core/domain"
)

const (
	feedKey             = "signage:feed:candidates"
	invalidateChannel   = "signage:feed:invalidate"
	defaultFeedTTL      = 30 * time.Second
	defaultLoadTimeout  = 10 * time.Second
	redisCommandTimeout = 2 * time.Second
)

// Source loads feed candidates from storage.
type Source interface {
	ListFeedCandidates(ctx context.Context) ([]domain.Candidate, error)
}

// Feed is a two level cache of driver feed candidates: process memory in
// front of an optional Redis copy shared by every instance. Invalidations
// are broadcast on a Redis channel so peers drop their memory copy too.
type Feed struct {
	source Source
	redis  *redis.Client
	ttl         time.Duration
	loadTimeout time.Duration
	logger      *slog.Logger
	id          string

	group singleflight.Group

	mu      sync.RWMutex
	gen     uint64
	entries []domain.Candidate
	expires time.Time
	loaded  bool
}

// Option configures a Feed.
type Option func(*Feed)

// WithRedis shares the cache through client.
func WithRedis(client *redis.Client) Option {
	return func(f *Feed) { f.redis = client }
}

// WithTTL sets how long a loaded feed is served. Non-positive values keep
// the default.
func WithTTL(ttl time.Duration) Option {
	return func(f *Feed) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithLoadTimeout bounds one shared load. Non-positive values keep the
// default.
func WithLoadTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.loadTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) { f.logger = logger }
}

// NewFeed wraps source.
func NewFeed(source Source, opts ...Option) *Feed {
	f := &Feed{
		source:      source,
		ttl:         defaultFeedTTL,
		loadTimeout: defaultLoadTimeout,
		logger:      slog.Default(),
		id:          uuid.NewString(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(slog.String("component", "feed_cache"))
	return f
}

// ListFeedCandidates serves the cached feed, loading it once per
// generation when it is missing or expired. The load is shared by every
// waiting caller and outlives any one of them; a caller whose ctx ends
// stops waiting.
func (f *Feed) ListFeedCandidates(ctx context.Context) ([]domain.Candidate, error) {
	f.mu.RLock()
	if f.loaded && time.Now().Before(f.expires) {
		out := append([]domain.Candidate(nil), f.entries...)
		f.mu.RUnlock()
		return out, nil
	}
	gen := f.gen
	f.mu.RUnlock()

	ch := f.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.loadTimeout)
		defer cancel()
		return f.load(lctx, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.Candidate(nil), res.Val.([]domain.Candidate)...), nil
	}
}

func (f *Feed) load(ctx context.Context, gen uint64) ([]domain.Candidate, error) {
	if f.redis != nil {
		cands, err := f.getShared(ctx)
		switch {
		case err == nil:
			f.store(gen, cands)
			return cands, nil
		case !errors.Is(err, redis.Nil):
			f.logger.Warn("shared feed read failed", slog.Any("error", err))
		}
	}

	cands, err := f.source.ListFeedCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	if f.store(gen, cands) && f.redis != nil {
		if err := f.setShared(ctx, cands); err != nil {
			f.logger.Warn("shared feed write failed", slog.Any("error", err))
		}
	}
	return cands, nil
}

// store keeps cands unless an invalidation happened since gen was read.
func (f *Feed) store(gen uint64, cands []domain.Candidate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return false
	}
	f.entries = cands
	f.expires = time.Now().Add(f.ttl)
	f.loaded = true
	return true
}

func (f *Feed) dropLocal() {
	f.mu.Lock()
	f.gen++
	f.entries = nil
	f.loaded = false
	f.mu.Unlock()
}

func (f *Feed) getShared(ctx context.Context) ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()
	data, err := f.redis.Get(ctx, feedKey).Bytes()
	if err != nil {
		return nil, err
	}
	var cands []domain.Candidate
	if err := json.Unmarshal(data, &cands); err != nil {
		return nil, fmt.Errorf("decode shared feed: %w", err)
	}
	return cands, nil
}

func (f *Feed) setShared(ctx context.Context, cands []domain.Candidate) error {
	data, err := json.Marshal(cands)
	if err != nil {
		return fmt.Errorf("encode shared feed: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()
	return f.redis.Set(ctx, feedKey, data, f.ttl).Err()
}

// InvalidateFeed drops the local copy, deletes the shared one and tells
// peers to drop theirs.
func (f *Feed) InvalidateFeed(ctx context.Context) error {
	f.dropLocal()
	if f.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisCommandTimeout)
	defer cancel()
	if err := f.redis.Del(ctx, feedKey).Err(); err != nil {
		return fmt.Errorf("delete shared feed: %w", err)
	}
	if err := f.redis.Publish(ctx, invalidateChannel, f.id).Err(); err != nil {
		return fmt.Errorf("publish feed invalidation: %w", err)
	}
	return nil
}

// Run listens for invalidations from peers until ctx is done. Without
// Redis it just waits.
func (f *Feed) Run(ctx context.Context) error {
	if f.redis == nil {
		<-ctx.Done()
		return nil
	}
	pubsub := f.redis.Subscribe(ctx, invalidateChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == f.id {
				continue
			}
			f.logger.Debug("feed invalidated by peer", slog.String("peer", msg.Payload))
			f.dropLocal()
		}
	}
}
