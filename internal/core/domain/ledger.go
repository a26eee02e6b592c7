package domain

import "time"

// CycleOutcome describes what a single recorded cycle changed.
type CycleOutcome struct {
	// FirstCycle is true when the campaign just ran for the first time.
	FirstCycle bool
	// SubscriptionCompleted is true when this cycle exhausted the plan.
	SubscriptionCompleted bool
}

// ApplyCycle counts one playback against the campaign and its subscription
// and marks the subscription completed once the run cycle limit is reached.
// It never decreases either counter. The cascade over sibling campaigns is
// applied separately with CompleteInFlight so it can run against the full
// set of the owner's campaigns.
func ApplyCycle(c *Campaign, s *Subscription, now time.Time) CycleOutcome {
	c.RunCycleCount++
	s.CurrentCycles++
	c.UpdatedAt = now
	s.UpdatedAt = now

	out := CycleOutcome{FirstCycle: c.RunCycleCount == 1}
	if !s.IsCompleted && s.CurrentCycles >= s.RunCycleLimit {
		s.IsCompleted = true
		completedAt := now
		s.CompletedAt = &completedAt
		out.SubscriptionCompleted = true
	}
	return out
}

// CompleteInFlight moves every in-flight campaign to completed and returns
// the campaigns it changed, in input order.
func CompleteInFlight(campaigns []Campaign, now time.Time) []Campaign {
	var changed []Campaign
	for _, c := range campaigns {
		if !c.Status.InFlight() {
			continue
		}
		c.Status = StatusCompleted
		c.HasCompletedCycles = true
		c.UpdatedAt = now
		changed = append(changed, c)
	}
	return changed
}

// ResetSubscription rewinds the plan usage to zero.
func ResetSubscription(s *Subscription, now time.Time) {
	s.CurrentCycles = 0
	s.IsCompleted = false
	s.CompletedAt = nil
	s.UpdatedAt = now
}

// RearmCompleted is the mirror of CompleteInFlight: every completed campaign
// goes back to approved with its cycle count cleared. Campaigns in any other
// status are left alone. It returns the campaigns it changed.
func RearmCompleted(campaigns []Campaign, now time.Time) []Campaign {
	var changed []Campaign
	for _, c := range campaigns {
		if c.Status != StatusCompleted {
			continue
		}
		c.Status = StatusApproved
		c.ApprovalStatus.IsApproved = true
		c.RunCycleCount = 0
		c.HasCompletedCycles = false
		c.UpdatedAt = now
		changed = append(changed, c)
	}
	return changed
}
