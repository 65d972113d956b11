package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/aluiziolira/go-scrape-listings/query"
)

// Settings are the search preferences captured by the external form.
// The scraper reads them at run start and never writes them back.
type Settings struct {
	Query    string
	MaxPages int
}

// DefaultSettings mirrors what the form stores before first use.
func DefaultSettings() Settings {
	return Settings{Query: query.DefaultQuery, MaxPages: query.DefaultMaxPages}
}

// LoadSettings reads the settings store at path. YAML is used for .yaml/.yml
// files, JSON5 (a JSON superset) otherwise. A missing file yields defaults.
// The query is normalized and the page budget clamped.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("read settings %s: %w", path, err)
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json5.Unmarshal(data, &raw)
	}
	if err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}

	if q, ok := raw["query"].(string); ok && strings.TrimSpace(q) != "" {
		settings.Query = query.Normalize(q)
	}
	if v, ok := raw["max_pages"]; ok {
		settings.MaxPages = query.ClampPageBudget(v)
	}
	return settings, nil
}

// ApplySettings copies settings into the crawl configuration.
func (c *Config) ApplySettings(s Settings) {
	c.Query = s.Query
	c.MaxPages = s.MaxPages
}
