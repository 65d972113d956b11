package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// PageFetcher fetches and extracts one results page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]models.RawItem, *Page, error)
}

// Scraper drives a crawl: one page at a time, the next page only after the
// previous one was parsed.
type Scraper struct {
	cfg       *config.Config
	fetcher   PageFetcher
	selectors Selectors
	Metrics   *Metrics
	log       zerolog.Logger
}

// NewScraper builds a scraper with the default selectors.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	return NewScraperWithSelectors(cfg, DefaultSelectors())
}

// NewScraperWithSelectors builds a scraper using custom extraction strategies.
func NewScraperWithSelectors(cfg *config.Config, selectors Selectors) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, selectors, metrics)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		selectors: selectors,
		Metrics:   metrics,
		log:       logger.For("scraper"),
	}, nil
}

// Fetcher returns the underlying page fetcher.
func (s *Scraper) Fetcher() PageFetcher { return s.fetcher }

// Crawl fetches pages for run until the budget is spent, no next page is
// found, a fetch fails or ctx is cancelled. Records accumulate on run.Items.
//
// A fetch failure returns a *FetchError; cancellation returns ctx.Err(). In
// both cases the result carries the partial run.
func (s *Scraper) Crawl(ctx context.Context, run *models.CrawlRun) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "scraper.Crawl")
	defer span.End()
	span.SetAttributes(
		attribute.String("query", run.Query),
		attribute.Int("max_pages", run.MaxPages),
	)

	result := &models.CrawlResult{
		Run:          run,
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	ctrl := NewController(run, s.cfg.PageSize, s.selectors.NextPage)

	var crawlErr error
	target := run.StartURL
	for ctrl.State() == StateFetching {
		if err := ctx.Err(); err != nil {
			ctrl.Stop(models.StopCancelled)
			crawlErr = err
			break
		}

		result.RequestCount++
		items, page, err := s.fetcher.FetchPage(ctx, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				ctrl.Stop(models.StopCancelled)
				crawlErr = ctxErr
				break
			}
			label := errorTypeLabel(err)
			result.ErrorCount++
			result.ErrorsByType[label]++
			result.FailedURL = target
			ctrl.Stop(models.StopFetchError)
			crawlErr = &FetchError{PagesFetched: run.PagesFetched, URL: target, Err: err}
			s.log.Error().
				Str("url", target).
				Str("category", label).
				Int("pages_fetched", run.PagesFetched).
				Err(err).
				Msg("page fetch failed, stopping")
			break
		}

		run.Items = append(run.Items, items...)
		next, ok := ctrl.Advance(page, len(items))
		s.log.Info().
			Str("url", target).
			Int("items", len(items)).
			Int("pages_fetched", run.PagesFetched).
			Bool("has_next", ok).
			Msg("page done")
		target = next
	}

	result.EndTime = time.Now()
	result.StopReason = ctrl.Reason()
	s.Metrics.IncStop(string(result.StopReason))

	span.SetAttributes(
		attribute.Int("pages_fetched", run.PagesFetched),
		attribute.Int("items", len(run.Items)),
		attribute.String("stop_reason", string(result.StopReason)),
	)
	if crawlErr != nil {
		span.RecordError(crawlErr)
		span.SetStatus(codes.Error, crawlErr.Error())
	}

	s.log.Info().
		Str("query", run.Query).
		Int("pages_fetched", run.PagesFetched).
		Int("items", len(run.Items)).
		Str("stop_reason", string(result.StopReason)).
		Dur("elapsed", result.EndTime.Sub(result.StartTime)).
		Msg("crawl finished")

	return result, crawlErr
}
