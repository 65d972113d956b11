package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/publisher"
	"github.com/aluiziolira/go-scrape-listings/query"
	"github.com/aluiziolira/go-scrape-listings/scraper"
)

const runStreamMaxLen = 1000

func newCrawlCmd() *cobra.Command {
	var keepPartial bool
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured query and replaces the stored snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), configFrom(cmd), keepPartial, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&keepPartial, "keep-partial", false, "Persist records collected before a failed or cancelled crawl")
	return cmd
}

// runCrawl archives the previous raw snapshot, crawls, writes the new raw
// snapshot and replaces the persisted table. After a fetch failure the
// collected records are kept in the raw snapshot only; keepPartial also
// persists them, and those of a cancelled crawl.
func runCrawl(ctx context.Context, cfg *config.Config, keepPartial bool, out io.Writer) error {
	log := logger.For("crawl")
	start := time.Now()

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}
	pipelineMetrics := pipeline.NewMetrics(s.Metrics.Registry)
	stopMetrics := serveMetrics(cfg.MetricsAddr, s.Metrics.Registry)
	defer stopMetrics()

	writer, err := openWriter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", cfg.Sink, err)
	}
	p := pipeline.NewPipeline(writer, pipelineMetrics)
	defer func() {
		if err := p.Close(); err != nil {
			log.Error().Err(err).Msg("close sink")
		}
	}()

	if archived, err := pipeline.ArchiveRawSnapshot(cfg.RawSnapshotFile, start); err != nil {
		return err
	} else if archived != "" {
		log.Info().Str("path", archived).Msg("archived previous raw snapshot")
	}

	run := models.NewCrawlRun(query.Normalize(cfg.Query), query.ClampPageBudget(cfg.MaxPages), cfg.ListingURL())
	log.Info().
		Str("query", run.Query).
		Int("max_pages", run.MaxPages).
		Str("url", run.StartURL).
		Str("sink", cfg.Sink).
		Msg("starting crawl")

	result, crawlErr := s.Crawl(ctx, run)
	persistCtx := ctx
	if crawlErr != nil {
		var fetchErr *scraper.FetchError
		switch {
		case errors.As(crawlErr, &fetchErr):
		case errors.Is(crawlErr, context.Canceled) || errors.Is(crawlErr, context.DeadlineExceeded):
			if !keepPartial {
				return fmt.Errorf("crawl cancelled after %d pages, %d records discarded: %w", run.PagesFetched, len(run.Items), crawlErr)
			}
			persistCtx = context.WithoutCancel(ctx)
		default:
			return fmt.Errorf("crawl failed after %d pages: %w", run.PagesFetched, crawlErr)
		}
	}

	if err := pipeline.SaveRawSnapshot(persistCtx, cfg.RawSnapshotFile, run.Items); err != nil {
		return fmt.Errorf("save raw snapshot after %d pages: %w", run.PagesFetched, err)
	}
	if crawlErr != nil && !keepPartial {
		return fmt.Errorf("crawl stopped after %d pages, %d records saved to %s, stored snapshot unchanged: %w",
			run.PagesFetched, len(run.Items), cfg.RawSnapshotFile, crawlErr)
	}
	if crawlErr != nil {
		log.Warn().Int("pages_fetched", run.PagesFetched).Msg("persisting partial crawl")
	}

	report, err := p.Run(persistCtx, run.Items, parser.Provenance{
		SourceURL:   run.StartURL,
		SearchQuery: run.Query,
		ScrapedAt:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("persist after %d pages: %w", run.PagesFetched, err)
	}

	publish(persistCtx, cfg, publisher.RunSummary{
		Query:        run.Query,
		PagesFetched: run.PagesFetched,
		Raw:          report.Raw,
		Persisted:    report.Persisted,
		Duplicates:   report.Duplicates,
		StopReason:   string(result.StopReason),
		Sink:         cfg.Sink,
		StartedAt:    run.StartedAt,
		FinishedAt:   time.Now().UTC(),
	})

	renderSummary(out, summary{
		Query:      run.Query,
		Pages:      run.PagesFetched,
		StopReason: result.StopReason,
		Report:     report,
		Sink:       sinkTarget(cfg),
		Elapsed:    time.Since(start),
	})

	if crawlErr != nil {
		return fmt.Errorf("crawl stopped after %d pages: %w", run.PagesFetched, crawlErr)
	}
	return nil
}

// openWriter builds the sink selected by cfg.Sink.
func openWriter(ctx context.Context, cfg *config.Config) (pipeline.Writer, error) {
	switch cfg.Sink {
	case config.SinkSQLite, config.SinkLibSQL:
		driver := pipeline.DriverSQLite
		if cfg.Sink == config.SinkLibSQL {
			driver = pipeline.DriverLibSQL
		}
		w, err := pipeline.OpenSQLWriter(driver, cfg.SinkDSN, cfg.Table)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SinkPostgres:
		w, err := pipeline.NewPostgresWriter(ctx, cfg.SinkDSN, cfg.Table)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SinkCSV:
		w, err := pipeline.NewCSVWriter(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SinkJSON:
		w, err := pipeline.NewJSONWriter(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		return w, nil
	case config.SinkDual:
		w, err := pipeline.NewDualWriter(cfg.OutputFile, jsonCompanion(cfg.OutputFile))
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, config.ErrUnknownSink
	}
}

// jsonCompanion names the JSONL file written next to a dual sink's CSV.
func jsonCompanion(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".jsonl"
}

func sinkTarget(cfg *config.Config) string {
	switch cfg.Sink {
	case config.SinkSQLite, config.SinkLibSQL, config.SinkPostgres:
		return cfg.Sink + " " + cfg.Table
	case config.SinkDual:
		return cfg.OutputFile + " + " + jsonCompanion(cfg.OutputFile)
	default:
		return cfg.OutputFile
	}
}

// serveMetrics exposes reg on addr until the returned func is called. An
// empty addr disables the endpoint.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	if addr == "" || reg == nil {
		return func() {}
	}
	log := logger.For("metrics")
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics server enabled")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
}

func newPublisher(cfg *config.Config) publisher.Publisher {
	if cfg.RedisAddr == "" {
		return publisher.Nop{}
	}
	return publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, runStreamMaxLen)
}

// publish announces a persisted run. Failures are logged only.
func publish(ctx context.Context, cfg *config.Config, s publisher.RunSummary) {
	log := logger.For("publisher")
	pub := newPublisher(cfg)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Debug().Err(err).Msg("close publisher")
		}
	}()
	if err := pub.Publish(ctx, s); err != nil {
		log.Warn().Err(err).Msg("publish run summary failed")
	}
}
