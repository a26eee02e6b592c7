package eligibility

import (
	"log/slog"
	"time"

	"signage-ads/internal/core/domain"
)

// Outcome is the verdict for one campaign at one instant.
type Outcome string

const (
	Playable       Outcome = "PLAYABLE"
	NotYet         Outcome = "NOT_YET"
	Expired        Outcome = "EXPIRED"
	Unapproved     Outcome = "UNAPPROVED"
	NoSubscription Outcome = "NO_SUBSCRIPTION"
)

// Result carries the outcome and the cycle bound callers render as "x/y".
// MaxRunCycleLimit is set whenever a subscription is known, whatever the
// outcome.
type Result struct {
	Outcome          Outcome `json:"outcome"`
	MaxRunCycleLimit int     `json:"maxRunCycleLimit"`
}

// Evaluator decides whether a campaign should play right now. It is used by
// the driver feed, approval, the status refresh job and the kiosk player so
// the rule lives in one place.
type Evaluator struct {
	clock  *Clock
	logger *slog.Logger
}

func NewEvaluator(clock *Clock, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{clock: clock, logger: logger.With(slog.String("component", "eligibility"))}
}

// Clock returns the clock the evaluator compares against.
func (e *Evaluator) Clock() *Clock { return e.clock }

// Evaluate applies the rules in order; the first match wins. The result
// depends only on the arguments.
func (e *Evaluator) Evaluate(c domain.Campaign, s *domain.Subscription, now time.Time) Result {
	var res Result
	if s != nil {
		res.MaxRunCycleLimit = s.RunCycleLimit
	}
	res.Outcome = e.outcome(c, s, now)
	return res
}

func (e *Evaluator) outcome(c domain.Campaign, s *domain.Subscription, now time.Time) Outcome {
	if s == nil || s.IsCompleted {
		return NoSubscription
	}
	if !c.ApprovalStatus.IsApproved || !c.Status.InFlight() {
		return Unapproved
	}

	start, end, ok := e.window(c)
	if !ok {
		return Unapproved
	}

	today := e.clock.Date(now)
	if today.Before(e.clock.Date(start)) {
		return NotYet
	}
	if today.After(e.clock.Date(end)) {
		return Expired
	}

	// Daily time-of-day window. An overnight window (end before start)
	// never matches.
	nowMin := e.clock.MinutesOfDay(now)
	if nowMin < e.clock.MinutesOfDay(start) {
		return NotYet
	}
	if nowMin > e.clock.MinutesOfDay(end) {
		return Expired
	}
	return Playable
}

func (e *Evaluator) window(c domain.Campaign) (start, end time.Time, ok bool) {
	var err error
	if start, err = e.clock.Parse(c.StartDateTime); err != nil {
		e.logger.Warn("malformed campaign start", slog.String("campaign_id", c.ID), slog.Any("error", err))
		return start, end, false
	}
	if end, err = e.clock.Parse(c.EndDateTime); err != nil {
		e.logger.Warn("malformed campaign end", slog.String("campaign_id", c.ID), slog.Any("error", err))
		return start, end, false
	}
	return start, end, true
}

// Playable keeps the PLAYABLE candidates in input order and fills in
// MaxRunCycleLimit on each of them.
func (e *Evaluator) Playable(cands []domain.Candidate, now time.Time) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(cands))
	for _, cand := range cands {
		res := e.Evaluate(cand.Campaign, cand.Subscription, now)
		cand.MaxRunCycleLimit = res.MaxRunCycleLimit
		if res.Outcome != Playable {
			e.logger.Debug("campaign not playable",
				slog.String("campaign_id", cand.Campaign.ID),
				slog.String("outcome", string(res.Outcome)))
			continue
		}
		out = append(out, cand)
	}
	return out
}

// StatusAt picks the in-flight status a campaign should carry at now:
// scheduled before its window opens, active inside it and approved once it
// has passed.
func (e *Evaluator) StatusAt(c domain.Campaign, now time.Time) (domain.CampaignStatus, error) {
	start, err := e.clock.Parse(c.StartDateTime)
	if err != nil {
		return "", err
	}
	end, err := e.clock.Parse(c.EndDateTime)
	if err != nil {
		return "", err
	}
	switch {
	case now.Before(start):
		return domain.StatusScheduled, nil
	case now.After(end):
		return domain.StatusApproved, nil
	default:
		return domain.StatusActive, nil
	}
}
