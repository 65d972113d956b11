package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	DuplicatesTotal prometheus.Counter
	PersistedTotal  prometheus.Counter
	FailuresTotal   prometheus.Counter
	SwapDuration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg, typically the
// scraper's registry so one endpoint serves both.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_duplicates_total",
			Help: "Records dropped as duplicates.",
		}),
		PersistedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_persisted_total",
			Help: "Rows written by snapshot replacements.",
		}),
		FailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_replace_failures_total",
			Help: "Snapshot replacements that failed and were rolled back.",
		}),
		SwapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_replace_duration_seconds",
			Help:    "Time spent normalizing and replacing a snapshot.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DuplicatesTotal, m.PersistedTotal, m.FailuresTotal, m.SwapDuration)
	}
	return m
}

func (m *Metrics) AddDuplicates(n int) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Add(float64(n))
}

func (m *Metrics) AddPersisted(n int) {
	if m == nil {
		return
	}
	m.PersistedTotal.Add(float64(n))
}

func (m *Metrics) IncFailure() {
	if m == nil {
		return
	}
	m.FailuresTotal.Inc()
}

func (m *Metrics) ObserveSwap(d time.Duration) {
	if m == nil {
		return
	}
	m.SwapDuration.Observe(d.Seconds())
}
