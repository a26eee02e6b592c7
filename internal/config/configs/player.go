package configs

import "time"

// Player configures the kiosk player binary.
type Player struct {
	// APIURL is the base URL of the signage API, without /api/v1.
	APIURL string `env:"API_URL" envDefault:"http://localhost:8080"`
	// Token is the bearer token the kiosk authenticates with.
	Token string `env:"TOKEN"`
	// MediaDir holds downloaded campaign media.
	MediaDir string `env:"MEDIA_DIR" envDefault:"./media"`

	// GPSPort is the serial device of an NMEA receiver. When empty the
	// player stays at StaticLatitude, StaticLongitude.
	GPSPort         string  `env:"GPS_PORT"`
	GPSBaud         int     `env:"GPS_BAUD" envDefault:"9600"`
	StaticLatitude  float64 `env:"STATIC_LATITUDE"`
	StaticLongitude float64 `env:"STATIC_LONGITUDE"`

	// Renderer is "mpv" or "log".
	Renderer string `env:"RENDERER" envDefault:"mpv"`
	MPVPath  string `env:"MPV_PATH" envDefault:"mpv"`

	FeedInterval  time.Duration `env:"FEED_INTERVAL" envDefault:"1m"`
	CycleTimeout  time.Duration `env:"CYCLE_TIMEOUT" envDefault:"10s"`
	ImageDuration time.Duration `env:"IMAGE_DURATION" envDefault:"10s"`
	// RetryBackoff is the pause before replaying a queue whose every item
	// failed.
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" envDefault:"5s"`
}
