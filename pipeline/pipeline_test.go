package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

type mockWriter struct {
	mu        sync.Mutex
	snapshots [][]models.Item
	err       error
}

func (mw *mockWriter) Replace(_ context.Context, items []models.Item) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.err != nil {
		return mw.err
	}
	mw.snapshots = append(mw.snapshots, append([]models.Item(nil), items...))
	return nil
}

func (mw *mockWriter) Close() error {
	return nil
}

func (mw *mockWriter) Validate() error {
	return nil
}

func (mw *mockWriter) last() []models.Item {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if len(mw.snapshots) == 0 {
		return nil
	}
	return mw.snapshots[len(mw.snapshots)-1]
}

func strPtr(s string) *string { return &s }

func raw(id, name, price string) models.RawItem {
	r := models.RawItem{Name: strPtr(name), IsAd: models.FlagOf(false)}
	if id != "" {
		r.ItemID = strPtr(id)
	}
	if price != "" {
		r.PriceText = strPtr(price)
	}
	return r
}

func testProvenance(at time.Time) parser.Provenance {
	return parser.Provenance{
		SourceURL:   "https://listado.mercadolibre.com.ar/celular",
		SearchQuery: "celular",
		ScrapedAt:   at,
	}
}

func TestDedupByItemID(t *testing.T) {
	items := parser.NormalizeAll([]models.RawItem{
		raw("MLA1", "first", "10,00"),
		raw("MLA2", "second", "20,00"),
		raw("MLA1", "first again", "11,00"),
		raw("MLA3", "third", ""),
		raw("MLA2", "second again", ""),
	}, testProvenance(time.Now()))

	got := Dedup(items)
	require.Len(t, got, 3)
	assert.Equal(t, "first", *got[0].Name, "first occurrence wins")
	assert.Equal(t, "second", *got[1].Name)
	assert.Equal(t, "third", *got[2].Name)
}

func TestDedupStructuralFallback(t *testing.T) {
	items := parser.NormalizeAll([]models.RawItem{
		raw("MLA1", "with id", "10,00"),
		raw("", "no id", "10,00"),
		raw("", "no id", "10,00"),
		raw("", "no id", "12,00"),
		raw("MLA1", "with id", "10,00"),
	}, testProvenance(time.Now()))

	got := Dedup(items)
	require.Len(t, got, 3)
	assert.Equal(t, "with id", *got[0].Name)
	assert.Equal(t, "no id", *got[1].Name)
	assert.InDelta(t, 12.0, *got[2].Price, 1e-9)
}

func TestDedupProperties(t *testing.T) {
	items := parser.NormalizeAll([]models.RawItem{
		raw("", "a", "1"),
		raw("", "b", "2"),
		raw("", "a", "1"),
		raw("", "c", ""),
		raw("", "b", "2"),
	}, testProvenance(time.Now()))

	once := Dedup(items)
	assert.Equal(t, once, Dedup(once), "dedup is idempotent")
	assert.LessOrEqual(t, len(once), len(items))
	assert.Empty(t, Dedup(nil))
}

func TestPipelineRun(t *testing.T) {
	writer := &mockWriter{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := NewPipeline(writer, metrics)

	report, err := p.Run(context.Background(), []models.RawItem{
		raw("MLA1", "first", "1.234,50"),
		raw("MLA1", "dup", "1,00"),
		raw("MLA2", "second", ""),
	}, testProvenance(time.Now()))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Raw)
	assert.Equal(t, 2, report.Unique)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Persisted)

	stored := writer.last()
	require.Len(t, stored, 2)
	assert.InDelta(t, 1234.50, *stored[0].Price, 1e-9)
	assert.Equal(t, 0.0, *stored[1].Price)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DuplicatesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PersistedTotal))
}

func TestPipelineRunWriteFailure(t *testing.T) {
	writer := &mockWriter{err: errors.New("disk full")}
	metrics := NewMetrics(nil)
	p := NewPipeline(writer, metrics)

	report, err := p.Run(context.Background(), []models.RawItem{raw("MLA1", "x", "1")}, testProvenance(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, report.Persisted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FailuresTotal))
}

func TestPipelineRunWithoutWriter(t *testing.T) {
	_, err := NewPipeline(nil, nil).Run(context.Background(), nil, parser.Provenance{})
	assert.ErrorIs(t, err, ErrNoWriter)
}

func TestPipelineIdempotentOnSQLite(t *testing.T) {
	writer, err := OpenSQLWriter(DriverSQLite, filepath.Join(t.TempDir(), "db", "database.db"), DefaultTable)
	require.NoError(t, err)
	defer writer.Close()

	raws := []models.RawItem{
		raw("MLA1", "first", "1.234,50"),
		raw("MLA2", "second", "consultar"),
		raw("MLA1", "first", "1.234,50"),
		{ItemID: strPtr("MLA3"), Name: strPtr("third"), ReviewCount: strPtr("(7)"), IsAd: models.FlagText("Sí")},
	}
	p := NewPipeline(writer, nil)
	ctx := context.Background()

	_, err = p.Run(ctx, raws, testProvenance(time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	first, err := writer.Load(ctx)
	require.NoError(t, err)

	_, err = p.Run(ctx, raws, testProvenance(time.Date(2024, 5, 4, 11, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	second, err := writer.Load(ctx)
	require.NoError(t, err)

	require.Len(t, second, 3, "replace does not append")
	ignoreStamps := cmpopts.IgnoreFields(models.Item{}, "ScrapedAt", "ScrapDate")
	if diff := cmp.Diff(first, second, ignoreStamps); diff != "" {
		t.Fatalf("snapshot changed between identical runs (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first[0].ScrapedAt, second[0].ScrapedAt)

	assert.Nil(t, second[1].Price, "unparseable price is stored as NULL")
	assert.Equal(t, "7", second[2].ReviewCount)
	assert.Equal(t, 1, second[2].IsAd)
}
