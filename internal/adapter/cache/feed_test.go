package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/core/domain"
)

type countingSource struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	cands []domain.Candidate
}

func (s *countingSource) ListFeedCandidates(context.Context) ([]domain.Candidate, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.cands, s.err
}

func candidates(ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Candidate{Campaign: domain.Campaign{ID: id}})
	}
	return out
}

func TestFeed_ServesFromMemoryUntilInvalidated(t *testing.T) {
	src := &countingSource{cands: candidates("c1", "c2")}
	f := NewFeed(src, WithTTL(time.Minute))
	ctx := context.Background()

	for range 3 {
		got, err := f.ListFeedCandidates(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.EqualValues(t, 1, src.calls.Load())

	require.NoError(t, f.InvalidateFeed(ctx))
	src.cands = candidates("c3")
	got, err := f.ListFeedCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c3", got[0].Campaign.ID)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFeed_ExpiresAfterTTL(t *testing.T) {
	src := &countingSource{cands: candidates("c1")}
	f := NewFeed(src, WithTTL(10*time.Millisecond))
	ctx := context.Background()

	_, err := f.ListFeedCandidates(ctx)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = f.ListFeedCandidates(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestFeed_ConcurrentMissesLoadOnce(t *testing.T) {
	src := &countingSource{cands: candidates("c1"), delay: 20 * time.Millisecond}
	f := NewFeed(src)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.ListFeedCandidates(context.Background())
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestFeed_LoadRacingInvalidationIsNotKept(t *testing.T) {
	src := &countingSource{cands: candidates("stale"), delay: 30 * time.Millisecond}
	f := NewFeed(src, WithTTL(time.Minute))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.ListFeedCandidates(ctx)
	}()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.InvalidateFeed(ctx))
	<-done

	src.delay = 0
	src.cands = candidates("fresh")
	got, err := f.ListFeedCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Campaign.ID)
}

// gatedSource blocks until release is closed and records the ctx error it
// saw.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	ctxErr  atomic.Value
}

func (s *gatedSource) ListFeedCandidates(ctx context.Context) ([]domain.Candidate, error) {
	close(s.started)
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		s.ctxErr.Store(err)
		return nil, err
	}
	return candidates("c1"), nil
}

func TestFeed_CanceledCallerDoesNotFailSharedLoad(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	f := NewFeed(src, WithTTL(time.Minute))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.ListFeedCandidates(first)
		firstErr <- err
	}()
	<-src.started

	type result struct {
		cands []domain.Candidate
		err   error
	}
	second := make(chan result, 1)
	go func() {
		got, err := f.ListFeedCandidates(context.Background())
		second <- result{got, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	res := <-second
	require.NoError(t, res.err)
	require.Len(t, res.cands, 1)
	assert.Nil(t, src.ctxErr.Load())

	got, err := f.ListFeedCandidates(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFeed_LoadTimeout(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	f := NewFeed(src, WithLoadTimeout(20*time.Millisecond))

	_, err := f.ListFeedCandidates(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded, src.ctxErr.Load())
}

func TestFeed_SourceErrorIsNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	f := NewFeed(src)

	_, err := f.ListFeedCandidates(context.Background())
	require.Error(t, err)

	src.err = nil
	src.cands = candidates("c1")
	got, err := f.ListFeedCandidates(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFeed_RunWithoutRedisStopsOnCancel(t *testing.T) {
	f := NewFeed(&countingSource{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.Run(ctx) }()
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
