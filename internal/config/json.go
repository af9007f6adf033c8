package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/shimada839/toshinote/internal/flagx"
	"github.com/shimada839/toshinote/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "10s" or as integer nanoseconds.
type JsonConfig struct {
	DatabasePath     string         `json:"database_path"`
	GeocodeEndpoint  string         `json:"geocode_endpoint"`
	GeocodeUserAgent string         `json:"geocode_user_agent"`
	GeocodeLanguage  string         `json:"geocode_language"`
	GeocodeTimeout   timex.Duration `json:"geocode_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. When no file is given the function returns without
// changing anything.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}
	loadJSONFile(cfg, jsonConfigFile)
}

func loadJSONFile(cfg *Config, path string) {
	var jc JsonConfig

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.GeocodeEndpoint != "" {
		cfg.GeocodeEndpoint = jc.GeocodeEndpoint
	}
	if jc.GeocodeUserAgent != "" {
		cfg.GeocodeUserAgent = jc.GeocodeUserAgent
	}
	if jc.GeocodeLanguage != "" {
		cfg.GeocodeLanguage = jc.GeocodeLanguage
	}
	if jc.GeocodeTimeout.Duration != 0 {
		cfg.GeocodeTimeout = time.Duration(jc.GeocodeTimeout.Duration)
	}
}
