package pipeline

import "github.com/aluiziolira/go-scrape-listings/models"

type optString struct {
	value string
	ok    bool
}

type optFloat struct {
	value float64
	ok    bool
}

// rowKey is a comparable flattening of models.Item.
type rowKey struct {
	itemID      optString
	name        optString
	seller      optString
	permalink   optString
	price       optFloat
	priceText   string
	rating      string
	reviewCount string
	isAd        int
	source      string
	searchQuery string
	scrapedAt   string
	scrapDate   string
}

func keyOf(item models.Item) rowKey {
	return rowKey{
		itemID:      optStr(item.ItemID),
		name:        optStr(item.Name),
		seller:      optStr(item.Seller),
		permalink:   optStr(item.Permalink),
		price:       optFl(item.Price),
		priceText:   item.PriceText,
		rating:      item.Rating,
		reviewCount: item.ReviewCount,
		isAd:        item.IsAd,
		source:      item.Source,
		searchQuery: item.SearchQuery,
		scrapedAt:   item.ScrapedAt,
		scrapDate:   item.ScrapDate,
	}
}

// Dedup drops repeated rows, keeping the first occurrence and the original
// order. Rows are keyed by ItemID when every row has one, by all fields
// otherwise.
func Dedup(items []models.Item) []models.Item {
	out := make([]models.Item, 0, len(items))
	if len(items) == 0 {
		return out
	}

	byID := true
	for _, item := range items {
		if item.ItemID == nil {
			byID = false
			break
		}
	}

	if byID {
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			if _, dup := seen[*item.ItemID]; dup {
				continue
			}
			seen[*item.ItemID] = struct{}{}
			out = append(out, item)
		}
		return out
	}

	seen := make(map[rowKey]struct{}, len(items))
	for _, item := range items {
		k := keyOf(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

func optStr(s *string) optString {
	if s == nil {
		return optString{}
	}
	return optString{value: *s, ok: true}
}

func optFl(f *float64) optFloat {
	if f == nil {
		return optFloat{}
	}
	return optFloat{value: *f, ok: true}
}
