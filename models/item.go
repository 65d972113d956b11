// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// RawItem is one listing entry exactly as extracted from a results page.
// Nil pointers mean the field was not found in the markup.
type RawItem struct {
	ItemID      *string `json:"ml_item_id"`
	Name        *string `json:"name"`
	Seller      *string `json:"seller"`
	PriceText   *string `json:"price"`
	Permalink   *string `json:"permalink"`
	Rating      *string `json:"reviews_rating_number"`
	ReviewCount *string `json:"reviews_amount"`
	IsAd        Flag    `json:"is_ad"`
}

// Flag is an ad marker in its source form. The extractor produces booleans,
// older snapshots may carry text ("Sí", "1", "no") or nothing at all.
type Flag struct {
	Text  string
	Valid bool
}

// FlagOf wraps a detected boolean.
func FlagOf(b bool) Flag {
	return Flag{Text: strconv.FormatBool(b), Valid: true}
}

// FlagText wraps a free-text marker value.
func FlagText(s string) Flag {
	return Flag{Text: s, Valid: true}
}

// MarshalJSON keeps booleans as booleans so raw snapshots round-trip.
func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	if f.Text == "true" || f.Text == "false" {
		return []byte(f.Text), nil
	}
	return json.Marshal(f.Text)
}

// UnmarshalJSON accepts null, booleans, numbers and strings.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Flag{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlagText(s)
		return nil
	}
	*f = FlagText(string(data))
	return nil
}

// Item is a normalized listing row, ready for persistence.
type Item struct {
	ItemID      *string  `json:"ml_item_id"`
	Name        *string  `json:"name"`
	Seller      *string  `json:"seller"`
	PriceText   string   `json:"-"`
	Price       *float64 `json:"price"`
	Permalink   *string  `json:"permalink"`
	Rating      string   `json:"reviews_rating_number"`
	ReviewCount string   `json:"reviews_amount"`
	IsAd        int      `json:"is_ad"`
	Source      string   `json:"_source"`
	SearchQuery string   `json:"_search_query"`
	ScrapedAt   string   `json:"_scraped_at"`
	ScrapDate   string   `json:"scrap_date"`
}

// Columns is the persisted schema, in storage order.
var Columns = []string{
	"ml_item_id",
	"name",
	"seller",
	"price",
	"permalink",
	"reviews_rating_number",
	"reviews_amount",
	"is_ad",
	"_source",
	"_search_query",
	"_scraped_at",
	"scrap_date",
}

// Values returns the row in Columns order. Nil pointers become nil values.
func (i Item) Values() []any {
	return []any{
		strOrNil(i.ItemID),
		strOrNil(i.Name),
		strOrNil(i.Seller),
		floatOrNil(i.Price),
		strOrNil(i.Permalink),
		i.Rating,
		i.ReviewCount,
		i.IsAd,
		i.Source,
		i.SearchQuery,
		i.ScrapedAt,
		i.ScrapDate,
	}
}

// Strings returns the row in Columns order for text outputs.
func (i Item) Strings() []string {
	price := ""
	if i.Price != nil {
		price = strconv.FormatFloat(*i.Price, 'f', -1, 64)
	}
	return []string{
		deref(i.ItemID),
		deref(i.Name),
		deref(i.Seller),
		price,
		deref(i.Permalink),
		i.Rating,
		i.ReviewCount,
		strconv.Itoa(i.IsAd),
		i.Source,
		i.SearchQuery,
		i.ScrapedAt,
		i.ScrapDate,
	}
}

// CrawlRun is the state of one crawl, passed explicitly through each stage.
type CrawlRun struct {
	Query        string
	MaxPages     int
	StartURL     string
	PagesFetched int
	Items        []RawItem
	StartedAt    time.Time
}

// NewCrawlRun starts a run for an already normalized query.
func NewCrawlRun(query string, maxPages int, startURL string) *CrawlRun {
	return &CrawlRun{
		Query:     query,
		MaxPages:  maxPages,
		StartURL:  startURL,
		StartedAt: time.Now().UTC(),
	}
}

// StopReason tells why pagination ended.
type StopReason string

const (
	StopBudget       StopReason = "budget"
	StopEndOfResults StopReason = "end_of_results"
	StopFetchError   StopReason = "fetch_error"
	StopCancelled    StopReason = "cancelled"
)

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	Run          *CrawlRun
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ErrorCount   int
	ErrorsByType map[string]int
	FailedURL    string
	StopReason   StopReason
}

// DomainMatch is one domain-discovery suggestion for a free-text query.
type DomainMatch struct {
	DomainID     string  `json:"domain_id"`
	DomainName   string  `json:"domain_name"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Relevance    float64 `json:"relevance"`
}

// CategoryAttribute describes one attribute of a catalog category.
type CategoryAttribute struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	ValueType string           `json:"value_type"`
	Hierarchy string           `json:"hierarchy"`
	Relevance int              `json:"relevance"`
	Tags      map[string]any   `json:"tags"`
	Values    []AttributeValue `json:"values"`
}

// AttributeValue is an allowed value of a category attribute.
type AttributeValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
