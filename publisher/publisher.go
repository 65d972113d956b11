// Package publisher announces finished crawl runs to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// RunSummary describes one persisted crawl.
type RunSummary struct {
	Query        string    `json:"query"`
	PagesFetched int       `json:"pages_fetched"`
	Raw          int       `json:"raw"`
	Persisted    int       `json:"persisted"`
	Duplicates   int       `json:"duplicates"`
	StopReason   string    `json:"stop_reason"`
	Sink         string    `json:"sink"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Publisher represents a service for publishing run summaries
type Publisher interface {
	// Publish appends a summary to the runs stream
	Publish(ctx context.Context, summary RunSummary) error

	// Close closes the publisher connection
	Close() error
}

// Nop discards every summary.
type Nop struct{}

func (Nop) Publish(context.Context, RunSummary) error { return nil }
func (Nop) Close() error                              { return nil }
