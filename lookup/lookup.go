// Package lookup queries the public MercadoLibre catalog API for domain
// suggestions and category attributes. Every lookup degrades to an empty
// result on failure.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aluiziolira/go-scrape-listings/cache"
	"github.com/aluiziolira/go-scrape-listings/logger"
	"github.com/aluiziolira/go-scrape-listings/models"
)

var tracer = otel.Tracer("github.com/aluiziolira/go-scrape-listings/lookup")

const (
	DefaultSite  = "MLA"
	DefaultLimit = 5
	// DefaultDelay spaces out batch attribute requests.
	DefaultDelay = 250 * time.Millisecond
)

// Client talks to the catalog API.
type Client struct {
	http     *resty.Client
	site     string
	cache    cache.Service
	cacheTTL time.Duration
	log      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.SetTransport(rt)
	}
}

// WithCache stores successful responses in svc for ttl.
func WithCache(svc cache.Service, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = svc
		c.cacheTTL = ttl
	}
}

// NewClient builds a client for baseURL (e.g. https://api.mercadolibre.com).
func NewClient(baseURL, site string, timeout time.Duration, opts ...Option) *Client {
	if site == "" {
		site = DefaultSite
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		site: site,
		log:  logger.For("lookup"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DomainDiscovery suggests catalog domains and categories for a free-text
// query. The API answers either with a list or with {"results": [...]}.
func (c *Client) DomainDiscovery(ctx context.Context, query string, limit int) []models.DomainMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.DomainMatch{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, span := tracer.Start(ctx, "lookup.DomainDiscovery")
	defer span.End()
	span.SetAttributes(attribute.String("query", query), attribute.Int("limit", limit))

	key := fmt.Sprintf("domains:%s:%s:%d", c.site, url.QueryEscape(query), limit)
	var matches []models.DomainMatch
	if c.cached(key, &matches) {
		return matches
	}

	body, ok := c.get(ctx, "/sites/"+url.PathEscape(c.site)+"/domain_discovery/search", map[string]string{
		"q":     query,
		"limit": strconv.Itoa(limit),
	})
	if !ok {
		return []models.DomainMatch{}
	}

	matches, ok = decodeDomainMatches(body)
	if !ok {
		c.log.Debug().Str("query", query).Msg("unexpected domain discovery payload")
		return []models.DomainMatch{}
	}
	c.store(key, matches)
	return matches
}

func decodeDomainMatches(body []byte) ([]models.DomainMatch, bool) {
	var list []models.DomainMatch
	if err := json.Unmarshal(body, &list); err == nil {
		if list == nil {
			list = []models.DomainMatch{}
		}
		return list, true
	}

	var wrapped struct {
		Results *[]models.DomainMatch `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Results == nil {
		return nil, false
	}
	return *wrapped.Results, true
}

// CategoryAttributes lists the attributes of one category.
func (c *Client) CategoryAttributes(ctx context.Context, categoryID string) []models.CategoryAttribute {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return []models.CategoryAttribute{}
	}

	ctx, span := tracer.Start(ctx, "lookup.CategoryAttributes")
	defer span.End()
	span.SetAttributes(attribute.String("category_id", categoryID))

	key := "attrs:" + url.QueryEscape(categoryID)
	var attrs []models.CategoryAttribute
	if c.cached(key, &attrs) {
		return attrs
	}

	body, ok := c.get(ctx, "/categories/"+url.PathEscape(categoryID)+"/attributes", nil)
	if !ok {
		return []models.CategoryAttribute{}
	}
	if err := json.Unmarshal(body, &attrs); err != nil || attrs == nil {
		c.log.Debug().Str("category_id", categoryID).Msg("unexpected attributes payload")
		return []models.CategoryAttribute{}
	}
	c.store(key, attrs)
	return attrs
}

// ManyCategoryAttributes fetches attributes for each distinct, non-empty id,
// one request at a time with delay between requests.
func (c *Client) ManyCategoryAttributes(ctx context.Context, ids []string, delay time.Duration) map[string][]models.CategoryAttribute {
	out := make(map[string][]models.CategoryAttribute)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		if len(out) > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(delay):
			}
		}
		out[id] = c.CategoryAttributes(ctx, id)
	}
	return out
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, bool) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("lookup request failed")
		return nil, false
	}
	if resp.IsError() {
		c.log.Debug().Int("status", resp.StatusCode()).Str("path", path).Msg("lookup returned error status")
		return nil, false
	}
	return resp.Body(), true
}

func (c *Client) cached(key string, dst any) bool {
	if c.cache == nil {
		return false
	}
	data, err := c.cache.Get(key)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (c *Client) store(key string, v any) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(key, data, c.cacheTTL); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}
