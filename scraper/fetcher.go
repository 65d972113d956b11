package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
)

var tracer = otel.Tracer("github.com/aluiziolira/go-scrape-listings/scraper")

const (
	ctxKeyStart    = "start"
	ctxKeyResponse = "response"
)

// Page is a fetched and parsed results page.
type Page struct {
	URL        *url.URL
	StatusCode int
	Body       []byte
	Doc        *goquery.Document
	// Containers is the number of listing nodes found.
	Containers int
}

// Fetcher issues one blocking request per results page and extracts the
// listing records it contains.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	selectors Selectors
	metrics   *Metrics
	log       zerolog.Logger
}

// NewFetcher builds a synchronous collector restricted to the listing host.
func NewFetcher(cfg *config.Config, selectors Selectors, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if cfg.Timeout <= 0 {
		return nil, config.ErrTimeout
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(allowedDomains(parsed)...),
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		selectors: selectors,
		metrics:   metrics,
		log:       logger.For("fetcher"),
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the HTTP transport, mainly for tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

func allowedDomains(u *url.URL) []string {
	host := strings.TrimPrefix(u.Hostname(), "www.")
	domains := []string{host, "www." + host}
	if u.Host != u.Hostname() {
		domains = append(domains, u.Host)
	}
	return domains
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxKeyStart, time.Now())
		f.metrics.IncRequest("started")
		f.log.Debug().Str("url", r.URL.String()).Msg("requesting page")
	})

	f.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Ctx.GetAny(ctxKeyStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
		f.metrics.IncRequest("completed")
		r.Ctx.Put(ctxKeyResponse, r)
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		f.metrics.IncRequest("failed")
		statusCode := 0
		target := ""
		if r != nil {
			statusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				target = r.Request.URL.String()
			}
		}
		f.log.Warn().
			Str("url", target).
			Int("status", statusCode).
			Err(err).
			Msg("request error")
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(ctxKeyResponse, r)
		}
	})
}

// FetchPage requests target and extracts its listing records. Any transport,
// timeout, non-2xx or parse failure returns a classified error and no records.
func (f *Fetcher) FetchPage(ctx context.Context, target string) ([]models.RawItem, *Page, error) {
	_, span := tracer.Start(ctx, "scraper.FetchPage", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("url", target))

	items, page, err := f.fetch(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(
		attribute.Int("containers", page.Containers),
		attribute.Int("items", len(items)),
	)
	return items, page, nil
}

func (f *Fetcher) fetch(ctx context.Context, target string) ([]models.RawItem, *Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	collyCtx := colly.NewContext()
	reqErr := f.collector.Request(http.MethodGet, target, nil, collyCtx, nil)
	resp, _ := collyCtx.GetAny(ctxKeyResponse).(*colly.Response)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	if reqErr != nil {
		classified := classifyError(reqErr, statusCode)
		f.metrics.IncError(errorTypeLabel(classified))
		return nil, nil, classified
	}
	if resp == nil {
		err := fmt.Errorf("no response for %s", target)
		f.metrics.IncError("other")
		return nil, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		f.metrics.IncError("parse")
		return nil, nil, fmt.Errorf("parse %s: %w", target, err)
	}

	page := &Page{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Doc:        doc,
	}
	doc.Url = page.URL

	nodes, matched := f.selectors.containers(doc)
	page.Containers = nodes.Length()
	items := Extract(doc, page.URL, f.selectors)

	f.metrics.IncPages()
	f.metrics.AddItems(len(items))
	f.log.Debug().
		Str("url", target).
		Str("container", matched).
		Int("items", len(items)).
		Msg("page parsed")

	return items, page, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if statusCode < 200 || statusCode >= 300 {
			return ErrHTTPStatus{StatusCode: statusCode, Err: wrapped}
		}
	}

	return err
}
