package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"signage-ads/internal/core/domain"
)

// MPVRenderer plays media full screen in an mpv process, one at a time.
type MPVRenderer struct {
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
	gen uint64
}

func NewMPVRenderer(path string, logger *slog.Logger) *MPVRenderer {
	if path == "" {
		path = "mpv"
	}
	return &MPVRenderer{path: path, logger: logger.With(slog.String("component", "mpv"))}
}

func (r *MPVRenderer) args(item Item) []string {
	args := []string{"--fs", "--no-terminal", "--really-quiet", "--no-osc"}
	if item.Campaign.MediaType == domain.MediaImage {
		// the session's image timer decides when to move on
		args = append(args, "--image-display-duration=inf")
	}
	return append(args, item.Source())
}

func (r *MPVRenderer) Play(ctx context.Context, item Item, done func(error)) {
	r.Stop()

	cmd := exec.CommandContext(ctx, r.path, r.args(item)...)
	r.mu.Lock()
	r.gen++
	gen := r.gen
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		go done(fmt.Errorf("start %s: %w", r.path, err))
		return
	}
	r.cmd = cmd
	r.mu.Unlock()

	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		current := r.gen == gen
		if current {
			r.cmd = nil
		}
		r.mu.Unlock()
		if !current {
			return
		}
		if err != nil {
			var exit *exec.ExitError
			if errors.As(err, &exit) {
				err = fmt.Errorf("mpv exited with %d on %s", exit.ExitCode(), item.Source())
			}
		}
		done(err)
	}()
}

// Stop kills the running player, if any.
func (r *MPVRenderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cmd != nil && r.cmd.Process != nil {
		if err := r.cmd.Process.Kill(); err != nil {
			r.logger.Debug("kill mpv", slog.Any("error", err))
		}
	}
	r.cmd = nil
}

// LogRenderer only logs what would be shown. Videos "end" after their
// declared duration. It backs headless runs.
type LogRenderer struct {
	logger *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger.With(slog.String("component", "renderer"))}
}

func (r *LogRenderer) Play(_ context.Context, item Item, done func(error)) {
	r.Stop()
	r.logger.Info("showing",
		slog.String("campaign_id", item.Campaign.ID),
		slog.String("source", item.Source()),
		slog.Int("duration", item.Campaign.MediaDuration))
	if item.Campaign.MediaType != domain.MediaVideo {
		return
	}
	d := time.Duration(item.Campaign.MediaDuration) * time.Second
	r.mu.Lock()
	r.timer = time.AfterFunc(d, func() { done(nil) })
	r.mu.Unlock()
}

func (r *LogRenderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
