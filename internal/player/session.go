// Package player runs the kiosk playback loop: it keeps an ordered queue of
// the campaigns playable at the vehicle's position, plays them one after
// another and reports every completed playback to the server.
package player

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/eligibility"
	"signage-ads/internal/core/geofence"
	"signage-ads/internal/core/port"
)

// State is the session's transition state.
type State int32

const (
	// Idle accepts the next trigger.
	Idle State = iota
	// Transitioning is recording a cycle or switching media.
	Transitioning
)

func (s State) String() string {
	if s == Transitioning {
		return "TRANSITIONING"
	}
	return "IDLE"
}

const (
	defaultCycleTimeout  = 10 * time.Second
	defaultImageDuration = 10 * time.Second
	defaultRetryBackoff  = 5 * time.Second
	taskBacklog          = 64
)

// Item is one campaign the kiosk can play. Path is the cached media file;
// when empty the renderer plays the media URL.
type Item struct {
	Campaign         domain.Campaign
	MaxRunCycleLimit int
	Path             string
}

// Source returns what the renderer should open.
func (i Item) Source() string {
	if i.Path != "" {
		return i.Path
	}
	return i.Campaign.MediaURL
}

// Renderer shows media. Play must not block; done is called once with nil
// when a video ends or with the failure. Stop abandons the current media
// without calling done.
type Renderer interface {
	Play(ctx context.Context, item Item, done func(error))
	Stop()
}

// CycleRecorder reports a completed playback to the server.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, req port.CycleRequest) (*port.CycleResult, error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

func WithCycleTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.cycleTimeout = d
		}
	}
}

// WithImageDuration sets how long each image stays on screen.
func WithImageDuration(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.imageDuration = d
		}
	}
}

// WithRetryBackoff sets the pause before a queue whose every item failed
// is played again.
func WithRetryBackoff(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.retryBackoff = d
		}
	}
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// Session owns the playback queue. Every mutation runs on one goroutine
// fed by a task channel, so a position update arriving while a cycle is
// being recorded waits its turn.
type Session struct {
	evaluator     *eligibility.Evaluator
	renderer      Renderer
	recorder      CycleRecorder
	cycleTimeout  time.Duration
	imageDuration time.Duration
	retryBackoff  time.Duration
	logger        *slog.Logger
	now           func() time.Time

	tasks  chan func(context.Context)
	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once
	stop   sync.Once
	state  atomic.Int32

	// owned by the loop goroutine
	catalog  map[string]Item
	order    []string
	owners   map[string]*domain.Subscription
	position *domain.Position
	queue    []string
	index    int
	playing  string
	gen      uint64
	timer    *time.Timer
	failures int

	mu       sync.RWMutex
	errs     map[string]error
	snapshot []string
	current  string
}

func NewSession(evaluator *eligibility.Evaluator, renderer Renderer, recorder CycleRecorder, opts ...SessionOption) *Session {
	s := &Session{
		evaluator:     evaluator,
		renderer:      renderer,
		recorder:      recorder,
		cycleTimeout:  defaultCycleTimeout,
		imageDuration: defaultImageDuration,
		retryBackoff:  defaultRetryBackoff,
		logger:        slog.Default(),
		now:           time.Now,
		tasks:         make(chan func(context.Context), taskBacklog),
		done:          make(chan struct{}),
		catalog:       make(map[string]Item),
		owners:        make(map[string]*domain.Subscription),
		errs:          make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "player"))
	return s
}

// Start runs the task loop until ctx ends or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.start.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.loop(ctx)
	})
}

// Close stops playback and timers and waits for the loop to exit.
func (s *Session) Close() {
	s.stop.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	defer func() {
		s.stopTimer()
		s.renderer.Stop()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.tasks:
			task(ctx)
		}
	}
}

// enqueue hands task to the loop. It gives up once the session is closed.
func (s *Session) enqueue(task func(context.Context)) {
	select {
	case s.tasks <- task:
	case <-s.done:
	}
}

// State reports whether a transition is in progress.
func (s *Session) State() State { return State(s.state.Load()) }

// Queue returns the campaign ids in play order.
func (s *Session) Queue() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.snapshot...)
}

// NowPlaying returns the campaign on screen.
func (s *Session) NowPlaying() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != ""
}

// Errors returns the last playback failure per campaign id.
func (s *Session) Errors() map[string]error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.errs)
}

// SetCatalog replaces the locally cached campaign set. Items of one owner
// share a plan view so a completion reported for one drops them all.
func (s *Session) SetCatalog(items []Item) {
	s.enqueue(func(ctx context.Context) {
		s.catalog = make(map[string]Item, len(items))
		s.order = s.order[:0]
		s.owners = make(map[string]*domain.Subscription)
		for _, it := range items {
			id := it.Campaign.ID
			if _, dup := s.catalog[id]; dup {
				continue
			}
			s.catalog[id] = it
			s.order = append(s.order, id)
			if _, ok := s.owners[it.Campaign.UserID]; !ok {
				s.owners[it.Campaign.UserID] = &domain.Subscription{RunCycleLimit: it.MaxRunCycleLimit}
			}
		}
		s.failures = 0
		s.rebuild(ctx, true)
	})
}

// UpdatePosition re-evaluates the queue for p.
func (s *Session) UpdatePosition(p domain.Position) {
	s.enqueue(func(ctx context.Context) {
		s.position = &p
		s.rebuild(ctx, false)
	})
}

// rebuild recomputes the playable set. The queue is only replaced when the
// set of ids differs; the current media keeps playing if it survives.
func (s *Session) rebuild(ctx context.Context, catalogChanged bool) {
	ids := s.eligible()
	if sameSet(ids, s.queue) {
		if catalogChanged && s.playing == "" && len(s.queue) > 0 {
			s.play(ctx, s.index)
		}
		return
	}

	s.logger.Debug("queue rebuilt", slog.Int("items", len(ids)), slog.Int("previous", len(s.queue)))
	s.queue = ids
	s.failures = 0
	s.publish()

	if s.playing != "" {
		for i, id := range ids {
			if id == s.playing {
				s.index = i
				return
			}
		}
		s.halt()
	}
	s.index = 0
	if len(s.queue) > 0 {
		s.play(ctx, 0)
	}
}

func (s *Session) eligible() []string {
	if s.position == nil {
		return nil
	}
	now := s.now()
	cands := make([]domain.Candidate, 0, len(s.order))
	for _, id := range s.order {
		it := s.catalog[id]
		cands = append(cands, domain.Candidate{Campaign: it.Campaign, Subscription: s.owners[it.Campaign.UserID]})
	}
	cands = geofence.FilterByLocation(s.evaluator.Playable(cands, now), *s.position)
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.Campaign.ID)
	}
	return ids
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// play starts queue[i]. Completion and failure come back as tasks tagged
// with the current generation so late callbacks from replaced media are
// ignored.
func (s *Session) play(ctx context.Context, i int) {
	s.halt()
	s.gen++
	gen := s.gen
	s.index = i
	it := s.catalog[s.queue[i]]
	s.playing = it.Campaign.ID
	s.publish()

	s.logger.Info("playing", slog.String("campaign_id", it.Campaign.ID), slog.String("media", string(it.Campaign.MediaType)))
	s.renderer.Play(ctx, it, func(err error) {
		s.enqueue(func(ctx context.Context) { s.finished(ctx, gen, err) })
	})
	if it.Campaign.MediaType == domain.MediaImage {
		s.timer = time.AfterFunc(s.imageDuration, func() {
			s.enqueue(func(ctx context.Context) { s.finished(ctx, gen, nil) })
		})
	}
}

// halt stops whatever is on screen without reporting it.
func (s *Session) halt() {
	s.stopTimer()
	if s.playing != "" {
		s.renderer.Stop()
	}
	s.playing = ""
	s.gen++
	s.publish()
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// finished handles the end of a playback. Successful plays are recorded
// with a bounded wait; either way the queue moves on.
func (s *Session) finished(ctx context.Context, gen uint64, playErr error) {
	if gen != s.gen || s.playing == "" {
		return
	}
	s.state.Store(int32(Transitioning))
	defer s.state.Store(int32(Idle))

	id := s.playing
	it := s.catalog[id]
	s.stopTimer()
	s.renderer.Stop()
	s.playing = ""

	if playErr != nil {
		s.logger.Warn("playback failed", slog.String("campaign_id", id), slog.Any("error", playErr))
		s.setError(id, playErr)
		s.failures++
		if s.failures >= len(s.queue) {
			s.logger.Error("all queued media failed, pausing playback", slog.Duration("retry_in", s.retryBackoff))
			s.publish()
			s.scheduleRetry(s.gen)
			return
		}
		s.advance(ctx, false)
		return
	}
	s.failures = 0
	s.clearError(id)

	drop := s.record(ctx, it)
	s.advance(ctx, drop)
}

// scheduleRetry replays the queue after the backoff unless something else
// started playback first.
func (s *Session) scheduleRetry(gen uint64) {
	s.timer = time.AfterFunc(s.retryBackoff, func() {
		s.enqueue(func(ctx context.Context) {
			if gen != s.gen || s.playing != "" || len(s.queue) == 0 {
				return
			}
			s.failures = 0
			s.play(ctx, (s.index+1)%len(s.queue))
		})
	})
}

// record reports the play and tells whether the item must leave the queue.
func (s *Session) record(ctx context.Context, it Item) bool {
	req := port.CycleRequest{CampaignID: it.Campaign.ID, PlayedAt: s.now(), PlayID: uuid.NewString()}
	if s.position != nil {
		req.Position = *s.position
	}
	rctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	res, err := s.recorder.RecordCycle(rctx, req)
	switch {
	case errors.Is(err, domain.ErrSubscriptionCompleted):
		s.completeOwner(it.Campaign.UserID)
		return true
	case errors.Is(err, domain.ErrCampaignNotRunning), errors.Is(err, domain.ErrNotFound):
		s.markCompleted(it.Campaign.ID)
		return true
	case err != nil:
		s.logger.Warn("record cycle failed", slog.String("campaign_id", it.Campaign.ID), slog.Any("error", err))
		return false
	}
	if res.SubscriptionCompleted {
		s.completeOwner(it.Campaign.UserID)
		return true
	}
	if !res.CampaignStatus.InFlight() {
		s.markCompleted(it.Campaign.ID)
		return true
	}
	return false
}

// markCompleted keeps a campaign the server no longer runs out of later
// rebuilds.
func (s *Session) markCompleted(id string) {
	it := s.catalog[id]
	it.Campaign.Status = domain.StatusCompleted
	s.catalog[id] = it
}

// completeOwner marks the owner's plan used up locally so none of its
// campaigns are queued again until the next catalog.
func (s *Session) completeOwner(userID string) {
	if sub, ok := s.owners[userID]; ok {
		sub.IsCompleted = true
	}
	s.logger.Info("subscription completed", slog.String("user_id", userID))
}

// advance moves to the next queue position, wrapping to the start. When
// drop is set the finished item and any sibling whose plan completed are
// removed first.
func (s *Session) advance(ctx context.Context, drop bool) {
	next := s.index + 1
	if drop {
		kept := make([]string, 0, len(s.queue))
		for i, id := range s.queue {
			if i == s.index || s.ownerCompleted(id) {
				continue
			}
			kept = append(kept, id)
		}
		next = nextAfter(s.queue, kept, s.index)
		s.queue = kept
	}
	s.publish()
	if len(s.queue) == 0 {
		s.index = 0
		return
	}
	s.play(ctx, next%len(s.queue))
}

// nextAfter returns the position in kept of the first id that followed
// old[from], wrapping around.
func nextAfter(old, kept []string, from int) int {
	pos := make(map[string]int, len(kept))
	for i, id := range kept {
		pos[id] = i
	}
	for step := 1; step <= len(old); step++ {
		if i, ok := pos[old[(from+step)%len(old)]]; ok {
			return i
		}
	}
	return 0
}

func (s *Session) ownerCompleted(id string) bool {
	sub, ok := s.owners[s.catalog[id].Campaign.UserID]
	return ok && sub.IsCompleted
}

func (s *Session) setError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[id] = err
}

func (s *Session) clearError(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, id)
}

// publish copies loop state for the read accessors.
func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = append(s.snapshot[:0], s.queue...)
	s.current = s.playing
}
