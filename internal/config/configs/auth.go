package configs

// Auth configures verification of HS256 bearer tokens. Tokens are issued
// elsewhere.
type Auth struct {
	Secret string `env:"SECRET,notEmpty"`
	Issuer string `env:"ISSUER"`
}
