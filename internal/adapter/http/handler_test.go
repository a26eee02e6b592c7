package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signage-ads/internal/adapter/memory"
	"signage-ads/internal/adapter/usecase"
	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/eligibility"
)

const testSecret = "test-secret"

type nopEvents struct{}

func (nopEvents) Publish(context.Context, domain.Event) {}

type server struct {
	t        *testing.T
	store    *memory.Store
	verifier *Verifier
	handler  http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := time.Date(2024, 6, 5, 10, 0, 0, 0, loc)

	store := memory.NewStore()
	events := nopEvents{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []usecase.Option{usecase.WithNow(func() time.Time { return now }), usecase.WithLogger(logger)}
	evaluator := eligibility.NewEvaluator(eligibility.FixedClock(loc, "", now), logger)

	ledger := usecase.NewLedgerUseCase(store, store, store, events, opts...)
	verifier := NewVerifier(testSecret, "")
	h := NewHandler(Deps{
		Campaigns:     usecase.NewCampaignUseCase(store, nil, evaluator, events, opts...),
		Ledger:        ledger,
		Subscriptions: usecase.NewSubscriptionUseCase(store, store, ledger, events, opts...),
		Locations:     usecase.NewLocationUseCase(store, store, store, opts...),
		Inbox:         usecase.NewInboxUseCase(store),
		Accounts:      usecase.NewAccountUseCase(store, events, opts...),
		Stats:         usecase.NewStatsUseCase(store, store, opts...),
		Verifier:      verifier,
	}, logger)
	return &server{t: t, store: store, verifier: verifier, handler: h.Router()}
}

func (s *server) token(subject, role string) string {
	s.t.Helper()
	tok, err := s.verifier.Sign(subject, role, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// advertiser creates a user on a plan with limit cycles and one active
// campaign that is playable at the fixed clock.
func (s *server) advertiser(id string, limit int) *domain.Campaign {
	s.t.Helper()
	ctx := context.Background()
	sub := &domain.Subscription{Name: "plan", PriceID: "price", RunCycleLimit: limit, CampaignLimit: 5, LocationLimit: 5, AllowedRadius: 50}
	require.NoError(s.t, s.store.CreateSubscription(ctx, sub))
	s.store.PutUser(domain.User{ID: id, Email: id + "@example.com", Role: domain.RoleUser, CurrentSubscriptionID: sub.ID})
	c := &domain.Campaign{
		UserID:         id,
		Name:           "spring sale",
		StartDateTime:  "2024-06-01 08:00:00 CST",
		EndDateTime:    "2024-06-10 20:00:00 CST",
		ApprovalStatus: domain.ApprovalStatus{IsApproved: true},
		Status:         domain.StatusActive,
		MediaType:      domain.MediaImage,
		MediaURL:       "https://cdn.example.com/a.png",
		Locations:      []domain.Location{{ID: "loc-" + id, Latitude: 41.88, Longitude: -87.63, Radius: 5}},
	}
	require.NoError(s.t, s.store.CreateCampaign(ctx, c))
	return c
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate(t *testing.T) {
	s := newServer(t)
	other := NewVerifier("another-secret", "")
	forged, err := other.Sign("u1", "admin", time.Hour)
	require.NoError(t, err)
	expired, err := s.verifier.Sign("u1", "user", -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", forged, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"valid", s.token("u1", "user"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/api/v1/campaigns", tc.token, nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAuthenticate_QueryToken(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations?token="+s.token("u1", "user"), nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoles(t *testing.T) {
	s := newServer(t)
	user := s.token("u1", "user")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/driver/campaigns", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/admin/subscriptions", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/billing/payments", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/v1/campaigns/c1/cycles", user, nil).Code)
}

func TestDriverFeed(t *testing.T) {
	s := newServer(t)
	c := s.advertiser("adv", 10)

	rec := s.do(http.MethodGet, "/api/v1/driver/campaigns", s.token("kiosk-1", RoleDriver), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, c.ID, items[0]["id"])
	assert.EqualValues(t, 10, items[0]["maxRunCycleLimit"])
	assert.NotContains(t, items[0], "subscription")
}

func TestRecordCycle_CompletionThenConflict(t *testing.T) {
	s := newServer(t)
	c := s.advertiser("adv", 1)
	driver := s.token("kiosk-1", RoleDriver)
	path := "/api/v1/campaigns/" + c.ID + "/cycles"
	pos := map[string]any{"latitude": 41.88, "longitude": -87.63}

	rec := s.do(http.MethodPost, path, driver, map[string]any{"position": pos, "playId": "p1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, res["subscriptionCompleted"])
	assert.Equal(t, string(domain.StatusCompleted), res["campaignStatus"])

	rec = s.do(http.MethodPost, path, driver, map[string]any{"position": pos, "playId": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["duplicate"])

	rec = s.do(http.MethodPost, path, driver, map[string]any{"position": pos, "playId": "p2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "subscription_completed", decodeBody[errorBody](t, rec).Error)
}

func TestRecordCycle_RetryableIs503(t *testing.T) {
	s := newServer(t)
	c := s.advertiser("adv", 5)
	s.store.SetCommitHook(func() error { return errors.New("serialization failure") })

	rec := s.do(http.MethodPost, "/api/v1/campaigns/"+c.ID+"/cycles", s.token("kiosk-1", RoleDriver), map[string]any{"playId": "p1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRecordCycle_UnknownCampaign(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/api/v1/campaigns/missing/cycles", s.token("kiosk-1", RoleDriver), map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCampaign_ValidationFields(t *testing.T) {
	s := newServer(t)
	s.advertiser("adv", 5)

	rec := s.do(http.MethodPost, "/api/v1/campaigns", s.token("adv", "user"), map[string]any{"name": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "validation", body.Error)
	assert.NotEmpty(t, body.Fields)
}

func TestCreateCampaign_UnknownFieldRejected(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/api/v1/campaigns", s.token("adv", "user"), map[string]any{"status": "active"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminApproveFlow(t *testing.T) {
	s := newServer(t)
	c := s.advertiser("adv", 5)
	c.Status = domain.StatusPending
	c.ApprovalStatus = domain.ApprovalStatus{}
	require.NoError(t, s.store.UpdateCampaign(context.Background(), c))
	admin := s.token("root", "admin")

	rec := s.do(http.MethodGet, "/api/v1/admin/campaigns", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Campaign](t, rec), 1)

	rec = s.do(http.MethodPost, "/api/v1/admin/campaigns/"+c.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusActive, decodeBody[domain.Campaign](t, rec).Status)

	rec = s.do(http.MethodPost, "/api/v1/admin/campaigns/"+c.ID+"/reject", admin, map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/admin/campaigns?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncAccount(t *testing.T) {
	s := newServer(t)
	tok, err := s.verifier.Sign("new-user", "user", time.Hour)
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[syncResponse](t, rec).Created)

	rec = s.do(http.MethodPost, "/api/v1/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[syncResponse](t, rec).Created)
}

func TestReactivate_NoSubscription(t *testing.T) {
	s := newServer(t)
	s.store.PutUser(domain.User{ID: "bare", Role: domain.RoleUser})
	rec := s.do(http.MethodPost, "/api/v1/admin/users/bare/reactivate", s.token("root", "admin"), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_subscription", decodeBody[errorBody](t, rec).Error)
}

func TestStats(t *testing.T) {
	s := newServer(t)
	c := s.advertiser("adv", 10)
	driver := s.token("kiosk-1", RoleDriver)
	for _, id := range []string{"p1", "p2"} {
		rec := s.do(http.MethodPost, "/api/v1/campaigns/"+c.ID+"/cycles", driver, map[string]any{"playId": id})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	owner := s.token("adv", "user")

	rec := s.do(http.MethodGet, "/api/v1/stats?to=2024-06-06T00:00:00Z", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, rec)["plays"])

	rec = s.do(http.MethodGet, "/api/v1/stats?from=yesterday", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/stats?campaignId="+c.ID, s.token("someone", "user"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
