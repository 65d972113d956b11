package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable the scraper reads.
const EnvPrefix = "LISTINGS_"

// LoadDotEnv loads .env files into the environment. Missing files are ignored;
// variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// EnvString returns the trimmed value of PREFIX+key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses PREFIX+key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, true, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return n, true, nil
}

// EnvDuration parses PREFIX+key as a Go duration ("15s") or as whole seconds.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, true, nil
	}
	secs, err := strconv.Atoi(value)
	if err != nil {
		return 0, true, fmt.Errorf("%s%s: invalid duration %q", EnvPrefix, key, value)
	}
	return time.Duration(secs) * time.Second, true, nil
}

// EnvBool parses PREFIX+key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, true, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return b, true, nil
}

// ApplyEnv overlays environment variables on c.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"BASE_URL":      &c.BaseURL,
		"QUERY":         &c.Query,
		"USER_AGENT":    &c.UserAgent,
		"SETTINGS":      &c.SettingsFile,
		"RAW_SNAPSHOT":  &c.RawSnapshotFile,
		"SINK":          &c.Sink,
		"DSN":           &c.SinkDSN,
		"TABLE":         &c.Table,
		"OUTPUT":        &c.OutputFile,
		"API_BASE_URL":  &c.APIBaseURL,
		"LOOKUP_SITE":   &c.LookupSite,
		"MEMCACHE_ADDR": &c.MemcacheAddr,
		"REDIS_ADDR":    &c.RedisAddr,
		"REDIS_STREAM":  &c.RedisStream,
		"METRICS_ADDR":  &c.MetricsAddr,
		"LOG_LEVEL":     &c.LogLevel,
	}
	for key, dst := range strs {
		if value, ok := EnvString(key); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"PAGES":      &c.MaxPages,
		"PAGE_SIZE":  &c.PageSize,
		"CACHE_SIZE": &c.CacheSize,
		"REDIS_DB":   &c.RedisDB,
	}
	for key, dst := range ints {
		value, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":        &c.Timeout,
		"DELAY":          &c.Delay,
		"RANDOM_DELAY":   &c.RandomDelay,
		"LOOKUP_TIMEOUT": &c.LookupTimeout,
		"CACHE_TTL":      &c.CacheTTL,
	}
	for key, dst := range durations {
		value, ok, err := EnvDuration(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	bools := map[string]*bool{
		"RESPECT_ROBOTS": &c.RespectRobotsTxt,
		"VERBOSE":        &c.Verbose,
	}
	for key, dst := range bools {
		value, ok, err := EnvBool(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	return nil
}
