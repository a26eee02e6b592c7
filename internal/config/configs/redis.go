package configs

// Redis configures the shared cache and the realtime relay. An empty Addr
// disables both; each instance then works alone.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Enabled reports whether a Redis address is configured.
func (c Redis) Enabled() bool {
	return c.Addr != ""
}
