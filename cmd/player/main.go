package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"signage-ads/internal/config"
	"signage-ads/internal/core/eligibility"
	"signage-ads/internal/player"
)

// main runs the kiosk player: it polls the driver feed, caches media,
// follows the GPS and plays whatever is eligible where the vehicle is.
func main() {
	cfg, err := config.LoadPlayer()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := cfg.Log.New(os.Stdout)
	pc := cfg.Player

	if pc.Token == "" {
		logger.Error("PLAYER_TOKEN is required")
		os.Exit(1)
	}

	clock, err := eligibility.NewClock(cfg.App.Timezone, cfg.App.DateLayout)
	if err != nil {
		logger.Error("clock", slog.Any("error", err))
		os.Exit(1)
	}

	media, err := player.NewMediaCache(pc.MediaDir, nil, logger)
	if err != nil {
		logger.Error("media cache", slog.Any("error", err))
		os.Exit(1)
	}

	var renderer player.Renderer
	switch pc.Renderer {
	case "log":
		renderer = player.NewLogRenderer(logger)
	default:
		renderer = player.NewMPVRenderer(pc.MPVPath, logger)
	}

	var gps player.PositionSource = player.StaticPosition{Latitude: pc.StaticLatitude, Longitude: pc.StaticLongitude}
	if pc.GPSPort != "" {
		gps = player.NewSerialGPS(pc.GPSPort, pc.GPSBaud, logger)
	}

	api := player.NewClient(pc.APIURL, pc.Token, nil)
	session := player.NewSession(eligibility.NewEvaluator(clock, logger), renderer, api,
		player.WithLogger(logger),
		player.WithClock(clock.Now),
		player.WithCycleTimeout(pc.CycleTimeout),
		player.WithImageDuration(pc.ImageDuration),
		player.WithRetryBackoff(pc.RetryBackoff),
	)
	kiosk := player.NewKiosk(api, media, gps, session, pc.FeedInterval, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("player started", slog.String("api", pc.APIURL), slog.String("renderer", pc.Renderer))
	if err = kiosk.Run(ctx); err != nil {
		logger.Error("player stopped", slog.Any("error", err))
		cancel()
		os.Exit(1)
	}
	logger.Info("player stopped")
}
