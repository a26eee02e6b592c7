package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignApprove(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		from    CampaignStatus
		target  CampaignStatus
		wantErr bool
	}{
		{name: "pending to active", from: StatusPending, target: StatusActive},
		{name: "pending to scheduled", from: StatusPending, target: StatusScheduled},
		{name: "pending to approved", from: StatusPending, target: StatusApproved},
		{name: "pending to completed", from: StatusPending, target: StatusCompleted, wantErr: true},
		{name: "rejected", from: StatusRejected, target: StatusActive, wantErr: true},
		{name: "already active", from: StatusActive, target: StatusActive, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Campaign{Status: tt.from}
			err := c.Approve(tt.target, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, c.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, c.Status)
			assert.True(t, c.ApprovalStatus.IsApproved)
		})
	}
}

func TestCampaignReject(t *testing.T) {
	c := &Campaign{Status: StatusPending}
	require.NoError(t, c.Reject("blurry video", time.Now()))
	assert.Equal(t, StatusRejected, c.Status)
	assert.False(t, c.ApprovalStatus.IsApproved)
	assert.Equal(t, "blurry video", c.ApprovalStatus.RejectionReason)

	assert.ErrorIs(t, c.Reject("again", time.Now()), ErrInvalidTransition)
}

func TestCampaignMarkEdited(t *testing.T) {
	for _, from := range []CampaignStatus{StatusRejected, StatusCompleted, StatusActive, StatusPaused} {
		c := &Campaign{Status: from, ApprovalStatus: ApprovalStatus{IsApproved: true}}
		c.MarkEdited(time.Now())
		assert.Equal(t, StatusPending, c.Status)
		assert.False(t, c.ApprovalStatus.IsApproved)
	}
}

func TestCampaignRefresh(t *testing.T) {
	c := &Campaign{Status: StatusScheduled}
	changed, err := c.Refresh(StatusActive, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Refresh(StatusActive, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	c.Status = StatusCompleted
	_, err = c.Refresh(StatusActive, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
