// Package query turns user search preferences into listing request inputs.
package query

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultQuery is used when the search text is blank.
	DefaultQuery = "tu-busqueda"

	DefaultMaxPages = 5
	MinPages        = 1
	MaxPages        = 20
)

// Normalize trims the search text and joins words with hyphens so it can be
// used as a listing path segment.
func Normalize(raw string) string {
	sanitized := strings.TrimSpace(raw)
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	if sanitized == "" {
		return DefaultQuery
	}
	return sanitized
}

// ClampPageBudget coerces an arbitrary settings value into [MinPages, MaxPages].
// Non-numeric input yields DefaultMaxPages.
func ClampPageBudget(value any) int {
	n, ok := toInt(value)
	if !ok {
		return DefaultMaxPages
	}
	if n < MinPages {
		return MinPages
	}
	if n > MaxPages {
		return MaxPages
	}
	return n
}

// ListingURL joins the listing host URL and a normalized query.
func ListingURL(baseURL, normalized string) string {
	return strings.TrimRight(baseURL, "/") + "/" + normalized
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return clampInt64(v), true
	case uint:
		return clampUint64(uint64(v)), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return clampUint64(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		return stringToInt(v.String())
	case string:
		return stringToInt(v)
	default:
		return 0, false
	}
}

func stringToInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clampInt64(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	if math.IsInf(f, 1) || f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if math.IsInf(f, -1) || f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

func clampInt64(n int64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int(n)
}

func clampUint64(n uint64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
