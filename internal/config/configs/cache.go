package configs

import "time"

// Cache configures the driver feed cache.
type Cache struct {
	FeedTTL time.Duration `env:"FEED_TTL" envDefault:"30s"`
}
