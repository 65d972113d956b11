package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-listings/query"
)

// Configuration validation errors.
var (
	ErrEmptyBaseURL      = errors.New("base URL cannot be empty")
	ErrBaseURLHost       = errors.New("base URL must include a host")
	ErrMaxPagesRange     = errors.New("max pages must be between 1 and 20")
	ErrPageSize          = errors.New("page size must be positive")
	ErrTimeout           = errors.New("timeout must be positive")
	ErrNegativeDelay     = errors.New("delay cannot be negative")
	ErrEmptyUserAgent    = errors.New("user agent cannot be empty")
	ErrUnknownSink       = errors.New("sink must be sqlite, libsql, postgres, csv, json, or dual")
	ErrEmptyDSN          = errors.New("sink DSN cannot be empty")
	ErrEmptyOutputFile   = errors.New("output file cannot be empty")
	ErrInvalidTable      = errors.New("table name must be a plain SQL identifier")
	ErrEmptyRawSnapshot  = errors.New("raw snapshot file cannot be empty")
	ErrLookupTimeout     = errors.New("lookup timeout must be positive")
	ErrEmptyLookupSite   = errors.New("lookup site cannot be empty")
	ErrNegativeCacheSize = errors.New("cache size cannot be negative")
)

// Sink kinds accepted by Config.Sink.
const (
	SinkSQLite   = "sqlite"
	SinkLibSQL   = "libsql"
	SinkPostgres = "postgres"
	SinkCSV      = "csv"
	SinkJSON     = "json"
	SinkDual     = "dual"
)

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	Query            string
	MaxPages         int
	PageSize         int
	Timeout          time.Duration
	Delay            time.Duration
	RandomDelay      time.Duration
	UserAgent        string
	RespectRobotsTxt bool

	SettingsFile    string
	RawSnapshotFile string

	Sink       string
	SinkDSN    string
	Table      string
	OutputFile string

	APIBaseURL    string
	LookupSite    string
	LookupTimeout time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	MemcacheAddr  string

	RedisAddr   string
	RedisDB     int
	RedisStream string

	MetricsAddr string
	Verbose     bool
	LogLevel    string
}

// DefaultConfig returns defaults for the public MercadoLibre Argentina listing.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://listado.mercadolibre.com.ar",
		Query:            query.DefaultQuery,
		MaxPages:         query.DefaultMaxPages,
		PageSize:         48,
		Timeout:          20 * time.Second,
		Delay:            0,
		RandomDelay:      0,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		RespectRobotsTxt: false,
		SettingsFile:     "config.json",
		RawSnapshotFile:  "data/data.json",
		Sink:             SinkSQLite,
		SinkDSN:          "data/database.db",
		Table:            "mercadolivre_items",
		OutputFile:       "output/items.csv",
		APIBaseURL:       "https://api.mercadolibre.com",
		LookupSite:       "MLA",
		LookupTimeout:    12 * time.Second,
		CacheSize:        256,
		CacheTTL:         time.Hour,
		RedisStream:      "listings",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrEmptyBaseURL
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return ErrBaseURLHost
	}

	if c.MaxPages < query.MinPages || c.MaxPages > query.MaxPages {
		return fmt.Errorf("%w: got %d", ErrMaxPagesRange, c.MaxPages)
	}
	if c.PageSize <= 0 {
		return ErrPageSize
	}
	if c.Timeout <= 0 {
		return ErrTimeout
	}
	if c.Delay < 0 || c.RandomDelay < 0 {
		return ErrNegativeDelay
	}
	if c.UserAgent == "" {
		return ErrEmptyUserAgent
	}
	if c.RawSnapshotFile == "" {
		return ErrEmptyRawSnapshot
	}

	switch c.Sink {
	case SinkSQLite, SinkLibSQL, SinkPostgres:
		if c.SinkDSN == "" {
			return ErrEmptyDSN
		}
		if !tablePattern.MatchString(c.Table) {
			return fmt.Errorf("%w: %q", ErrInvalidTable, c.Table)
		}
	case SinkCSV, SinkJSON, SinkDual:
		if c.OutputFile == "" {
			return ErrEmptyOutputFile
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSink, c.Sink)
	}

	if c.LookupTimeout <= 0 {
		return ErrLookupTimeout
	}
	if strings.TrimSpace(c.LookupSite) == "" {
		return ErrEmptyLookupSite
	}
	if c.CacheSize < 0 {
		return ErrNegativeCacheSize
	}

	return nil
}

// ListingURL returns the first results page for the configured query.
func (c *Config) ListingURL() string {
	return query.ListingURL(c.BaseURL, query.Normalize(c.Query))
}

// ValidTable reports whether name can be interpolated as a table identifier.
func ValidTable(name string) bool {
	return tablePattern.MatchString(name)
}
