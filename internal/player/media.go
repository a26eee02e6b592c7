package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MediaCache downloads campaign media into a directory so playback does
// not depend on the network. Files are named after the campaign id and
// re-downloaded only when missing.
type MediaCache struct {
	dir    string
	http   *http.Client
	logger *slog.Logger
}

func NewMediaCache(dir string, httpClient *http.Client, logger *slog.Logger) (*MediaCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MediaCache{dir: dir, http: httpClient, logger: logger.With(slog.String("component", "media_cache"))}, nil
}

func (m *MediaCache) fileName(campaignID, mediaURL string) string {
	ext := ""
	if u, err := url.Parse(mediaURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}
	return filepath.Join(m.dir, filepath.Base(campaignID)+ext)
}

// Fetch returns the local path of the campaign's media, downloading it on
// first use.
func (m *MediaCache) Fetch(ctx context.Context, campaignID, mediaURL string) (string, error) {
	dst := m.fileName(campaignID, mediaURL)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", mediaURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", mediaURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err = io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download %s: %w", mediaURL, err)
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	m.logger.Info("media cached", slog.String("campaign_id", campaignID), slog.String("path", dst))
	return dst, nil
}

// Prune deletes cached files whose campaign is not in keep.
func (m *MediaCache) Prune(keep map[string]struct{}) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := keep[id]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil {
			m.logger.Warn("prune media", slog.String("file", e.Name()), slog.Any("error", err))
		}
	}
	return nil
}

// Items downloads media for every feed entry. An entry whose download
// fails still plays from its URL.
func (m *MediaCache) Items(ctx context.Context, feed []FeedItem) []Item {
	items := make([]Item, 0, len(feed))
	keep := make(map[string]struct{}, len(feed))
	for _, f := range feed {
		it := Item{Campaign: f.Campaign, MaxRunCycleLimit: f.MaxRunCycleLimit}
		p, err := m.Fetch(ctx, f.ID, f.MediaURL)
		if err != nil {
			m.logger.Warn("media not cached", slog.String("campaign_id", f.ID), slog.Any("error", err))
		} else {
			it.Path = p
			keep[f.ID] = struct{}{}
		}
		items = append(items, it)
	}
	if err := m.Prune(keep); err != nil {
		m.logger.Warn("prune media dir", slog.Any("error", err))
	}
	return items
}
