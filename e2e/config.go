package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// API_ADDR points at a running server, e.g. http://localhost:8080.
	// The scenarios skip when it is unset.
	APIAddr    string `envconfig:"API_ADDR"`
	AuthSecret string `envconfig:"AUTH_SECRET" default:"dev-secret"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
