package configs

import "time"

// Mail configures the Mailjet sender. Without both keys mail is logged and
// dropped.
type Mail struct {
	PublicKey  string `env:"PUBLIC_KEY"`
	PrivateKey string `env:"PRIVATE_KEY"`
	From       string `env:"FROM" envDefault:"noreply@signage-ads.local"`
	FromName   string `env:"FROM_NAME" envDefault:"Signage Ads"`
	// BreakerFailures consecutive failures open the circuit for
	// BreakerTimeout.
	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerTimeout  time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
}
