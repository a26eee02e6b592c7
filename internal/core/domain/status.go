package domain

import (
	"fmt"
	"time"
)

// Approve moves a pending campaign to target, which must be one of the
// playable statuses chosen by the date window at approval time.
func (c *Campaign) Approve(target CampaignStatus, now time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: approve from %s", ErrInvalidTransition, c.Status)
	}
	if !target.InFlight() {
		return fmt.Errorf("%w: approve to %s", ErrInvalidTransition, target)
	}
	c.Status = target
	c.ApprovalStatus = ApprovalStatus{IsApproved: true, ReviewedAt: &now}
	c.UpdatedAt = now
	return nil
}

// Reject moves a pending campaign to rejected.
func (c *Campaign) Reject(reason string, now time.Time) error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: reject from %s", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusRejected
	c.ApprovalStatus = ApprovalStatus{IsApproved: false, ReviewedAt: &now, RejectionReason: reason}
	c.UpdatedAt = now
	return nil
}

// MarkEdited forces the campaign back into review. Allowed from any status.
func (c *Campaign) MarkEdited(now time.Time) {
	c.Status = StatusPending
	c.ApprovalStatus = ApprovalStatus{}
	c.UpdatedAt = now
}

// Refresh moves an in-flight campaign between approved, scheduled and
// active. It reports whether the status changed and refuses to leave the
// in-flight set.
func (c *Campaign) Refresh(target CampaignStatus, now time.Time) (bool, error) {
	if !c.Status.InFlight() || !target.InFlight() {
		return false, fmt.Errorf("%w: refresh %s to %s", ErrInvalidTransition, c.Status, target)
	}
	if c.Status == target {
		return false, nil
	}
	c.Status = target
	c.UpdatedAt = now
	return true, nil
}
