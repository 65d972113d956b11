package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/parser"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/query"
)

func newTransformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform [raw.json]",
		Short: "Normalizes a stored raw snapshot and replaces the persisted table.",
		Long: "Normalizes a stored raw snapshot and replaces the persisted table.\n" +
			"Without an argument the configured raw snapshot file is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			path := cfg.RawSnapshotFile
			if len(args) == 1 {
				path = args[0]
			}
			return runTransform(cmd.Context(), cfg, path, cmd.OutOrStdout())
		},
	}
}

func runTransform(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	log := logger.For("transform")
	start := time.Now()
	raws, err := pipeline.LoadRawSnapshot(path)
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("records", len(raws)).Msg("loaded raw snapshot")

	writer, err := openWriter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s sink: %w", cfg.Sink, err)
	}
	p := pipeline.NewPipeline(writer, nil)
	defer p.Close()

	q := query.Normalize(cfg.Query)
	report, err := p.Run(ctx, raws, parser.Provenance{
		SourceURL:   cfg.ListingURL(),
		SearchQuery: q,
		ScrapedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	renderSummary(out, summary{
		Query:   q,
		Report:  report,
		Sink:    sinkTarget(cfg),
		Elapsed: time.Since(start),
	})
	return nil
}
