package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

func sampleItems() []models.Item {
	return parser.NormalizeAll([]models.RawItem{
		raw("MLA1", "Celular, 128GB", "1.234,50"),
		raw("MLA2", "Funda", ""),
	}, testProvenance(time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC)))
}

func TestCSVWriterReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "items.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("validate should fail before the first replace")
	}

	ctx := context.Background()
	if err := writer.Replace(ctx, sampleItems()); err != nil {
		t.Fatalf("replace csv: %v", err)
	}
	if err := writer.Replace(ctx, sampleItems()[:1]); err != nil {
		t.Fatalf("replace csv again: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2 (header plus the latest snapshot)", len(records))
	}
	if records[0][0] != "ml_item_id" || records[0][3] != "price" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][1] != "Celular, 128GB" || records[1][3] != "1234.5" {
		t.Fatalf("unexpected row: %v", records[1])
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "out", ".*.tmp"))
	assert.Empty(t, leftovers, "temp files are renamed or removed")
}

func TestJSONWriterReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.jsonl")

	writer, err := NewJSONWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.Replace(context.Background(), sampleItems()))
	require.NoError(t, writer.Validate())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		lines = append(lines, row)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)

	assert.Equal(t, "MLA1", lines[0]["ml_item_id"])
	assert.InDelta(t, 1234.5, lines[0]["price"], 1e-9)
	assert.Equal(t, "celular", lines[0]["_search_query"])
	assert.Equal(t, "2025-11-04T13:09:13Z", lines[0]["scrap_date"])
	assert.NotContains(t, lines[0], "PriceText")
}

func TestWriterReplaceCancelledKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.csv")
	writer, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.Replace(context.Background(), sampleItems()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, writer.Replace(ctx, nil), context.Canceled)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDualWriterReplace(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "items.csv")
	jsonPath := filepath.Join(dir, "items.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	require.NoError(t, err)
	require.NoError(t, writer.Replace(context.Background(), sampleItems()))
	require.NoError(t, writer.Validate())
	require.NoError(t, writer.Close())

	for _, p := range []string{csvPath, jsonPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestMultiWriterStopsOnFailure(t *testing.T) {
	failing := &mockWriter{err: os.ErrPermission}
	after := &mockWriter{}
	writer := NewMultiWriter(failing, after)

	err := writer.Replace(context.Background(), sampleItems())
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Nil(t, after.last())
}
