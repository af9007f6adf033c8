package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from a .env file (when one exists in
// the working directory) and the process environment. A missing .env file
// is not an error.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("TOSHINOTE_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("TOSHINOTE_GEOCODE_ENDPOINT"); v != "" {
		cfg.GeocodeEndpoint = v
	}
	if v := os.Getenv("TOSHINOTE_GEOCODE_USER_AGENT"); v != "" {
		cfg.GeocodeUserAgent = v
	}
	if v := os.Getenv("TOSHINOTE_GEOCODE_LANGUAGE"); v != "" {
		cfg.GeocodeLanguage = v
	}
	if v := os.Getenv("TOSHINOTE_GEOCODE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.GeocodeTimeout = d
		}
	}
}
