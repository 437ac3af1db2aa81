package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays values from CONFIDE_* environment variables onto the
// config. Unset variables leave the current values alone.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
