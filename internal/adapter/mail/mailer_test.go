package mail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/config/configs"
	"signage-ads/internal/core/domain"
)

var testCfg = configs.Mail{
	From:            "noreply@example.com",
	FromName:        "Signage Ads",
	BreakerTimeout:  time.Minute,
	BreakerFailures: 2,
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var owner = domain.User{ID: "u1", Email: "ana@example.com", Name: "Ana"}

func TestRender_CampaignStatus(t *testing.T) {
	m, err := NewWithSender(nil, testCfg, discard())
	require.NoError(t, err)

	subject, body, err := m.Render("campaign_status", owner, map[string]any{
		"kind": "campaign_rejected", "campaignName": "Spring sale", "reason": "logo too small",
	})
	require.NoError(t, err)
	assert.Equal(t, `Campaign "Spring sale" rejected`, subject)
	assert.Contains(t, body, "Hi Ana,")
	assert.Contains(t, body, "Reason: logo too small")

	subject, body, err = m.Render("campaign_status", owner, map[string]any{
		"kind": "campaign_approved", "campaignName": "Spring sale",
	})
	require.NoError(t, err)
	assert.Equal(t, `Campaign "Spring sale" approved`, subject)
	assert.NotContains(t, body, "Reason")
}

func TestRender_EveryRoutedTemplateExists(t *testing.T) {
	m, err := NewWithSender(nil, testCfg, discard())
	require.NoError(t, err)
	for _, name := range []string{
		"welcome", "otp", "password_reset", "chat_message_offline",
		"campaign_status", "cycle_started", "subscription_completed",
	} {
		subject, _, err := m.Render(name, owner, map[string]any{})
		require.NoError(t, err, name)
		assert.NotEmpty(t, subject, name)
	}

	_, _, err = m.Render("nope", owner, nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestSend_BuildsMailjetMessage(t *testing.T) {
	var got *mailjet.MessagesV31
	m, err := NewWithSender(func(msgs *mailjet.MessagesV31) error {
		got = msgs
		return nil
	}, testCfg, discard())
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), "subscription_completed", owner, map[string]any{"runCycleLimit": 3}))
	require.NotNil(t, got)
	require.Len(t, got.Info, 1)
	info := got.Info[0]
	assert.Equal(t, "noreply@example.com", info.From.Email)
	assert.Equal(t, "ana@example.com", (*info.To)[0].Email)
	assert.Contains(t, info.TextPart, "used all 3 run cycles")
}

func TestSend_WithoutKeysDrops(t *testing.T) {
	m, err := New(testCfg, discard())
	require.NoError(t, err)
	assert.NoError(t, m.Send(context.Background(), "welcome", owner, nil))
}

func TestSend_RequiresAddress(t *testing.T) {
	m, err := NewWithSender(nil, testCfg, discard())
	require.NoError(t, err)
	assert.Error(t, m.Send(context.Background(), "welcome", domain.User{ID: "u2"}, nil))
}

func TestSend_BreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	m, err := NewWithSender(func(*mailjet.MessagesV31) error {
		calls++
		return errors.New("503 from mailjet")
	}, testCfg, discard())
	require.NoError(t, err)

	for range 4 {
		assert.Error(t, m.Send(context.Background(), "welcome", owner, nil))
	}
	assert.Equal(t, 2, calls, "open breaker short-circuits")
}
