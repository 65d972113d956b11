// Package parser turns raw listing records into normalized rows.
//
// Normalization is a fixed sequence of small total rules. None of them fail:
// malformed input is recovered locally (missing values get defaults,
// unparseable prices become nil).
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// Default values for fields the listing did not show.
const (
	DefaultPriceText   = "0"
	DefaultRating      = "0"
	DefaultReviewCount = "(0)"
)

// Provenance identifies where and when a batch of records was collected.
type Provenance struct {
	SourceURL   string
	SearchQuery string
	ScrapedAt   time.Time
}

// Normalize applies every rule to raw, in order.
func Normalize(raw models.RawItem, prov Provenance) models.Item {
	var item models.Item
	StampProvenance(&item, prov)

	raw = FillDefaults(raw)
	item.ItemID = clone(raw.ItemID)
	item.Name = clone(raw.Name)
	item.Seller = clone(raw.Seller)
	item.Permalink = clone(raw.Permalink)
	item.Rating = *raw.Rating

	item.IsAd = CoerceAdFlag(raw.IsAd)
	item.ReviewCount = StripParens(*raw.ReviewCount)

	item.PriceText = *raw.PriceText
	item.Price = ParsePrice(item.PriceText)
	return item
}

// NormalizeAll normalizes raws preserving order. All rows share one timestamp.
func NormalizeAll(raws []models.RawItem, prov Provenance) []models.Item {
	if prov.ScrapedAt.IsZero() {
		prov.ScrapedAt = time.Now()
	}
	items := make([]models.Item, len(raws))
	for i, raw := range raws {
		items[i] = Normalize(raw, prov)
	}
	return items
}

// StampProvenance sets the source, query and timestamps. ScrapDate mirrors
// ScrapedAt.
func StampProvenance(item *models.Item, prov Provenance) {
	at := prov.ScrapedAt
	if at.IsZero() {
		at = time.Now()
	}
	stamp := at.UTC().Format(time.RFC3339)
	item.Source = prov.SourceURL
	item.SearchQuery = prov.SearchQuery
	item.ScrapedAt = stamp
	item.ScrapDate = stamp
}

// FillDefaults returns raw with absent price, rating and review count
// replaced by their defaults. Other fields stay nil.
func FillDefaults(raw models.RawItem) models.RawItem {
	if raw.PriceText == nil {
		raw.PriceText = ptr(DefaultPriceText)
	}
	if raw.Rating == nil {
		raw.Rating = ptr(DefaultRating)
	}
	if raw.ReviewCount == nil {
		raw.ReviewCount = ptr(DefaultReviewCount)
	}
	return raw
}

var truthy = map[string]struct{}{
	"true": {},
	"1":    {},
	"yes":  {},
	"si":   {},
	"sí":   {},
}

// CoerceAdFlag maps any ad marker to 0 or 1. The trimmed, lowercased text
// form of v must be one of true, 1, yes, si or sí to count as an ad.
func CoerceAdFlag(v any) int {
	var text string
	switch t := v.(type) {
	case nil:
		return 0
	case models.Flag:
		if !t.Valid {
			return 0
		}
		text = t.Text
	case *models.Flag:
		if t == nil || !t.Valid {
			return 0
		}
		text = t.Text
	case bool:
		text = strconv.FormatBool(t)
	case string:
		text = t
	case *string:
		if t == nil {
			return 0
		}
		text = *t
	case int:
		text = strconv.Itoa(t)
	case int64:
		text = strconv.FormatInt(t, 10)
	case float64:
		text = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		text = fmt.Sprint(v)
	}

	if _, ok := truthy[strings.ToLower(strings.TrimSpace(text))]; ok {
		return 1
	}
	return 0
}

// StripParens removes surrounding parentheses: "(120)" becomes "120".
func StripParens(s string) string {
	return strings.Trim(s, "()")
}

// ParsePrice reads a locale price such as "1.234,50": dots are thousands
// separators, the comma is the decimal mark. It returns nil when the text is
// not a finite number.
func ParsePrice(text string) *float64 {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func ptr(s string) *string { return &s }

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
