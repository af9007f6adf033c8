// Package config loads runtime settings for the toshinote CLI.
//
// Sources are applied in order, later ones winning: built-in defaults, a
// .env file / environment variables, a JSON config file (-c/-config) and
// finally command-line flags.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - DatabasePath: location of the SQLite notebook database.
//   - GeocodeEndpoint: base URL of the Nominatim instance to query.
//   - GeocodeUserAgent: identifying User-Agent sent with geocode requests.
//   - GeocodeLanguage: Accept-Language for geocode results.
//   - GeocodeTimeout: per-request geocoding timeout.
type Config struct {
	DatabasePath     string
	GeocodeEndpoint  string
	GeocodeUserAgent string
	GeocodeLanguage  string
	GeocodeTimeout   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "toshinote.db"
	c.GeocodeEndpoint = "https://nominatim.openstreetmap.org"
	c.GeocodeUserAgent = "toshinote/1.0"
	c.GeocodeLanguage = "ja"
	c.GeocodeTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, JSON (if present) and command-line flags (if
// present). Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
