package config

import (
	"flag"
	"os"

	"github.com/shimada839/toshinote/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   path to the notebook database
//	-g string   base URL of the Nominatim endpoint
//
// The function filters os.Args to only include the flags it knows about, so
// it does not interfere with flags owned by other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-g"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the notebook database")
	fs.StringVar(&cfg.GeocodeEndpoint, "g", cfg.GeocodeEndpoint, "Nominatim endpoint for location attachments")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
