package configs

import "time"

// Schedule configures the periodic campaign status refresh.
type Schedule struct {
	RefreshSpec    string        `env:"REFRESH_SPEC" envDefault:"@every 1m"`
	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"30s"`
}
