package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
)

type cfgKey struct{}

// configFrom returns the configuration resolved by the root command.
func configFrom(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func newRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:           "scraper",
		Short:         "scraper crawls MercadoLibre search results into a listings snapshot.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			logger.Init(logger.Options{Level: cfg.LogLevel, Verbose: cfg.Verbose})

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, cfgKey{}, cfg))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("settings", defaults.SettingsFile, "Settings store with query and max_pages")
	pf.String("base-url", defaults.BaseURL, "Listing site base URL")
	pf.String("query", defaults.Query, "Search query")
	pf.Int("pages", defaults.MaxPages, "Maximum result pages to fetch (1-20)")
	pf.Duration("timeout", defaults.Timeout, "Per-request timeout")
	pf.Duration("delay", defaults.Delay, "Delay between requests")
	pf.Duration("random-delay", defaults.RandomDelay, "Random jitter added to delay")
	pf.String("user-agent", defaults.UserAgent, "User-Agent header")
	pf.Bool("respect-robots", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	pf.String("raw-snapshot", defaults.RawSnapshotFile, "Raw snapshot file written by crawl")
	pf.String("sink", defaults.Sink, "Sink: sqlite, libsql, postgres, csv, json, or dual")
	pf.String("dsn", defaults.SinkDSN, "Database path or DSN for SQL sinks")
	pf.String("table", defaults.Table, "Snapshot table name")
	pf.String("output", defaults.OutputFile, "Output file for csv, json, and dual sinks")
	pf.String("api-base-url", defaults.APIBaseURL, "Catalog API base URL")
	pf.String("site", defaults.LookupSite, "Catalog site id")
	pf.String("memcache-addr", defaults.MemcacheAddr, "Memcached address for lookup caching")
	pf.String("redis-addr", defaults.RedisAddr, "Redis address for run notifications")
	pf.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	pf.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", defaults.Verbose, "Enable verbose logging")

	root.AddCommand(
		newCrawlCmd(),
		newTransformCmd(),
		newShowCmd(),
		newLookupCmd(),
	)
	return root
}

// loadConfig resolves configuration from defaults, .env and the environment,
// the settings store, then explicitly set flags, each overriding the last.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if fs.Changed("settings") {
		path, err := fs.GetString("settings")
		if err != nil {
			return nil, err
		}
		cfg.SettingsFile = path
	}
	if _, err := os.Stat(cfg.SettingsFile); err == nil {
		settings, err := config.LoadSettings(cfg.SettingsFile)
		if err != nil {
			return nil, err
		}
		cfg.ApplySettings(settings)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat settings: %w", err)
	}

	if err := applyFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetDuration(name)
		}
	}
	flag := func(name string, dst *bool) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetBool(name)
		}
	}

	str("base-url", &cfg.BaseURL)
	str("query", &cfg.Query)
	num("pages", &cfg.MaxPages)
	dur("timeout", &cfg.Timeout)
	dur("delay", &cfg.Delay)
	dur("random-delay", &cfg.RandomDelay)
	str("user-agent", &cfg.UserAgent)
	flag("respect-robots", &cfg.RespectRobotsTxt)
	str("raw-snapshot", &cfg.RawSnapshotFile)
	str("sink", &cfg.Sink)
	str("dsn", &cfg.SinkDSN)
	str("table", &cfg.Table)
	str("output", &cfg.OutputFile)
	str("api-base-url", &cfg.APIBaseURL)
	str("site", &cfg.LookupSite)
	str("memcache-addr", &cfg.MemcacheAddr)
	str("redis-addr", &cfg.RedisAddr)
	str("metrics-addr", &cfg.MetricsAddr)
	str("log-level", &cfg.LogLevel)
	flag("verbose", &cfg.Verbose)
	return err
}
