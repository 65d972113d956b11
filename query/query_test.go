package query

import (
	"encoding/json"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "surrounding whitespace", input: "  zapatillas nike  ", expected: "zapatillas-nike"},
		{name: "single word", input: "notebook", expected: "notebook"},
		{name: "blank", input: "   ", expected: DefaultQuery},
		{name: "empty", input: "", expected: DefaultQuery},
		{name: "three words", input: "mouse gamer inalambrico", expected: "mouse-gamer-inalambrico"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClampPageBudget(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int
	}{
		{name: "in range", input: 7, expected: 7},
		{name: "zero", input: 0, expected: MinPages},
		{name: "negative", input: -3, expected: MinPages},
		{name: "too large", input: 99, expected: MaxPages},
		{name: "float", input: 3.9, expected: 3},
		{name: "numeric string", input: " 12 ", expected: 12},
		{name: "float string", input: "2.5", expected: 2},
		{name: "json number", input: json.Number("40"), expected: MaxPages},
		{name: "int64", input: int64(1 << 40), expected: MaxPages},
		{name: "words", input: "many", expected: DefaultMaxPages},
		{name: "nil", input: nil, expected: DefaultMaxPages},
		{name: "bool", input: true, expected: DefaultMaxPages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampPageBudget(tt.input); got != tt.expected {
				t.Errorf("ClampPageBudget(%v) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestListingURL(t *testing.T) {
	got := ListingURL("https://listado.mercadolibre.com.ar/", "zapatillas-nike")
	if got != "https://listado.mercadolibre.com.ar/zapatillas-nike" {
		t.Fatalf("ListingURL = %q", got)
	}
}
