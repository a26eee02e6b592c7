package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"signage-ads/internal/core/domain"
	"signage-ads/internal/core/port"
)

const maxErrorBody = 4 << 10

// FeedItem is one entry of the driver feed.
type FeedItem struct {
	domain.Campaign
	MaxRunCycleLimit int `json:"maxRunCycleLimit"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the campaign API with a driver token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	// retryWait caps how long a 503 retry waits.
	retryWait time.Duration
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		http:      httpClient,
		retryWait: 2 * time.Second,
	}
}

// Feed fetches the campaigns playable right now.
func (c *Client) Feed(ctx context.Context) ([]FeedItem, error) {
	var items []FeedItem
	if err := c.do(ctx, http.MethodGet, "/api/v1/driver/campaigns", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// RecordCycle reports one playback. A busy ledger is retried once with the
// same play id, so the server counts it at most once.
func (c *Client) RecordCycle(ctx context.Context, req port.CycleRequest) (*port.CycleResult, error) {
	path := "/api/v1/campaigns/" + req.CampaignID + "/cycles"
	var res port.CycleResult
	err := c.do(ctx, http.MethodPost, path, req, &res)
	if retry, ok := err.(*retryAfter); ok {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(min(retry.wait, c.retryWait)):
		}
		err = c.do(ctx, http.MethodPost, path, req, &res)
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type retryAfter struct {
	wait time.Duration
	err  error
}

func (r *retryAfter) Error() string { return r.err.Error() }
func (r *retryAfter) Unwrap() error { return r.err }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// responseError maps the server's error codes back to domain errors.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body apiError
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Message = strings.TrimSpace(string(raw))
	}
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, body.Message)

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		wait := time.Second
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			wait = time.Duration(s) * time.Second
		}
		return &retryAfter{wait: wait, err: fmt.Errorf("%w: %s", domain.ErrLedgerRetryable, msg)}
	case body.Error == "subscription_completed":
		return fmt.Errorf("%w: %s", domain.ErrSubscriptionCompleted, msg)
	case body.Error == "campaign_not_running":
		return fmt.Errorf("%w: %s", domain.ErrCampaignNotRunning, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, msg)
	default:
		return fmt.Errorf("request failed with %s", msg)
	}
}
