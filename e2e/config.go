package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// GETFILE_ADDR is the host:port of a running "getfile serve". The suite is
	// skipped when it is empty.
	ServerAddr string `envconfig:"GETFILE_ADDR"`
	// E2E_EXISTING_PATH must be listed in the server's content index.
	ExistingPath string `envconfig:"E2E_EXISTING_PATH" default:"/a.txt"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
