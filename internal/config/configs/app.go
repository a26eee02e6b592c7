package configs

// App holds settings shared by the whole service.
type App struct {
	// Timezone is the IANA zone every campaign window is read in.
	Timezone string `env:"TIMEZONE" envDefault:"America/Chicago"`
	// DateLayout is the Go layout of campaign start and end strings.
	DateLayout string `env:"DATE_LAYOUT" envDefault:"2006-01-02 15:04:05"`
	// Storage selects the repository implementation: "postgres" or
	// "memory". Memory keeps everything in process and is meant for local
	// runs.
	Storage string `env:"STORAGE" envDefault:"postgres"`
	// Seed loads demo users, plans, locations and campaigns on startup.
	Seed bool `env:"SEED" envDefault:"false"`
}
