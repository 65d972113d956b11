package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// MultiWriter fans a snapshot out to several writers. Each writer is atomic
// on its own; a failure stops the fan-out and is returned.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter combines writers in order.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// NewDualWriter writes the same snapshot as CSV and JSONL.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}
	return NewMultiWriter(csvWriter, jsonWriter), nil
}

func (mw *MultiWriter) Replace(ctx context.Context, items []models.Item) error {
	for i, w := range mw.writers {
		if err := w.Replace(ctx, items); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

func (mw *MultiWriter) Close() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("writer %d close failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("writer %d validation failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
