package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
)

var errShowSink = errors.New("show reads back sqlite and libsql sinks only")

func newShowCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show [--limit n]",
		Short: "Prints the persisted snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), configFrom(cmd), limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most n rows (0 shows all)")
	return cmd
}

func runShow(ctx context.Context, cfg *config.Config, limit int, out io.Writer) error {
	if cfg.Sink != config.SinkSQLite && cfg.Sink != config.SinkLibSQL {
		return errShowSink
	}
	writer, err := openWriter(ctx, cfg)
	if err != nil {
		return err
	}
	defer writer.Close()

	loader, ok := writer.(pipeline.Loader)
	if !ok {
		return errShowSink
	}
	items, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	renderItems(out, items)
	return nil
}
