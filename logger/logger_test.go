package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	off := false
	Init(Options{Level: "info", Output: &buf, Console: &off})

	log := For("scraper")
	log.Info().Int("pages", 3).Msg("crawl finished")
	log.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "scraper", entry["component"])
	assert.Equal(t, "crawl finished", entry["message"])
	assert.EqualValues(t, 3, entry["pages"])
	assert.True(t, Initialized())
}

func TestResolveLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	assert.Equal(t, zerolog.DebugLevel, resolveLevel(Options{Verbose: true}))
	assert.Equal(t, zerolog.ErrorLevel, resolveLevel(Options{Level: "ERROR"}))
	assert.Equal(t, zerolog.WarnLevel, resolveLevel(Options{}))
	assert.Equal(t, zerolog.InfoLevel, resolveLevel(Options{Level: "nonsense"}))
}

func TestResolveOutputDefaultsToStderr(t *testing.T) {
	assert.Same(t, os.Stderr, resolveOutput(Options{}))

	var buf bytes.Buffer
	assert.Same(t, &buf, resolveOutput(Options{Output: &buf}))
}
