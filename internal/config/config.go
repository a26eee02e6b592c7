package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"signage-ads/internal/config/configs"
)

// Config aggregates the server's configuration sections. Nested structs are
// tagged with envPrefix so their fields are read with that prefix; see the
// configs package for variables and defaults.
type Config struct {
	// Env names the deployment environment (e.g. prod, dev). It is added to
	// every log line.
	Env string `env:"ENV" envDefault:"prod"`

	App      configs.App      `envPrefix:"APP_"`
	HTTP     configs.HTTP     `envPrefix:"HTTP_"`
	Log      configs.Logger   `envPrefix:"LOG_"`
	Psql     configs.Postgres `envPrefix:"PSQL_"`
	Redis    configs.Redis    `envPrefix:"REDIS_"`
	Mail     configs.Mail     `envPrefix:"MAIL_"`
	Auth     configs.Auth     `envPrefix:"AUTH_"`
	Schedule configs.Schedule `envPrefix:"SCHEDULE_"`
	Cache    configs.Cache    `envPrefix:"CACHE_"`
}

// PlayerConfig is the kiosk player's configuration.
type PlayerConfig struct {
	App    configs.App    `envPrefix:"APP_"`
	Log    configs.Logger `envPrefix:"LOG_"`
	Player configs.Player `envPrefix:"PLAYER_"`
}

// Load reads the server configuration from the environment. Variables in a
// .env file in the working directory are loaded first without overriding
// the real environment.
func Load() (Config, error) {
	var cfg Config
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadPlayer is Load for the player binary.
func LoadPlayer() (PlayerConfig, error) {
	var cfg PlayerConfig
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
