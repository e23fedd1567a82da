package config

import "github.com/spf13/pflag"

// AddFlags registers the flags Load reads on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default: ./leapquery.yaml, searched upward)")
	fs.StringP("dialect", "d", "", "SQL dialect to translate to")
	fs.StringP("mappings", "m", "", "entity mapping file")
	fs.String("state", "", "path to the query history database")
	fs.String("log-level", "", "log level (debug|info|warn|error)")
	fs.BoolP("verbose", "v", false, "verbose output (debug logging)")
	fs.StringP("output", "o", "", "output format (auto|text|markdown|json)")
	fs.Bool("no-cache", false, "disable the plan cache")
	fs.Bool("no-history", false, "do not record translations in the query history")
	fs.Int("max-iterations", 0, "optimizer iteration bound (0 uses the default)")
	fs.String("target", "", "executor type for run (postgres|duckdb|sqlite)")
	fs.String("dsn", "", "data source name for the executor")
}
