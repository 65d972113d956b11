// Package pipeline normalizes, de-duplicates and persists crawled listings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/parser"
)

var tracer = otel.Tracer("github.com/aluiziolira/go-scrape-listings/pipeline")

// ErrNoWriter is returned by Run when the pipeline has no sink.
var ErrNoWriter = errors.New("pipeline: no writer configured")

// Writer persists a full snapshot. Replace must be all-or-nothing: on error
// the previous snapshot stays in place.
type Writer interface {
	Replace(ctx context.Context, items []models.Item) error
	Validate() error
	Close() error
}

// Report summarizes one pipeline run.
type Report struct {
	Raw        int
	Unique     int
	Duplicates int
	Persisted  int
	Duration   time.Duration
}

// Pipeline runs normalize, dedup and replace, in that order.
type Pipeline struct {
	writer  Writer
	metrics *Metrics
	log     zerolog.Logger
}

// NewPipeline builds a pipeline writing to writer. metrics may be nil.
func NewPipeline(writer Writer, metrics *Metrics) *Pipeline {
	return &Pipeline{
		writer:  writer,
		metrics: metrics,
		log:     logger.For("pipeline"),
	}
}

// Transform normalizes and de-duplicates raws without persisting them.
func Transform(raws []models.RawItem, prov parser.Provenance) []models.Item {
	return Dedup(parser.NormalizeAll(raws, prov))
}

// Run normalizes raws, drops duplicates and replaces the stored snapshot.
// A write failure is returned and leaves the previous snapshot untouched.
func (p *Pipeline) Run(ctx context.Context, raws []models.RawItem, prov parser.Provenance) (*Report, error) {
	if p.writer == nil {
		return nil, ErrNoWriter
	}

	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	start := time.Now()
	items := Transform(raws, prov)
	report := &Report{
		Raw:        len(raws),
		Unique:     len(items),
		Duplicates: len(raws) - len(items),
	}
	p.metrics.AddDuplicates(report.Duplicates)
	span.SetAttributes(
		attribute.Int("raw", report.Raw),
		attribute.Int("unique", report.Unique),
	)

	if err := p.writer.Replace(ctx, items); err != nil {
		p.metrics.IncFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.log.Error().Err(err).Int("items", len(items)).Msg("snapshot replace failed")
		return report, fmt.Errorf("replace snapshot: %w", err)
	}
	if err := p.writer.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("validate snapshot: %w", err)
	}

	report.Persisted = len(items)
	report.Duration = time.Since(start)
	p.metrics.ObserveSwap(report.Duration)
	p.metrics.AddPersisted(report.Persisted)

	p.log.Info().
		Int("raw", report.Raw).
		Int("unique", report.Unique).
		Int("duplicates", report.Duplicates).
		Dur("elapsed", report.Duration).
		Msg("snapshot replaced")

	return report, nil
}

// Close closes the underlying writer.
func (p *Pipeline) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
