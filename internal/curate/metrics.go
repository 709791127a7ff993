// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package curate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Paper results recorded in paper_curator_papers_total.
const (
	ResultInserted     = "inserted"
	ResultExisting     = "existing"
	ResultReclassified = "reclassified"
	ResultRelevant     = "relevant"
	ResultFiled        = "filed"
	ResultFailed       = "failed"
)

// Metrics holds the counters of one curate run. Each Metrics owns its
// registry, so runs (and tests) never collide on registration.
//
// Metrics:
//   - paper_curator_entries_total{state} - digest entries by outcome
//   - paper_curator_papers_total{result} - papers by pipeline result
//   - paper_curator_run_duration_seconds - wall time of the last run
//   - paper_curator_last_run_timestamp_seconds - when the last run finished
type Metrics struct {
	Registry *prometheus.Registry

	EntriesTotal *prometheus.CounterVec
	PapersTotal  *prometheus.CounterVec
	RunDuration  prometheus.Gauge
	LastRun      prometheus.Gauge
}

// NewMetrics creates the counters in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		EntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paper_curator_entries_total",
				Help: "Digest entries seen, by recovery outcome",
			},
			[]string{"state"}, // "full", "salvaged", "rejected"
		),
		PapersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paper_curator_papers_total",
				Help: "Papers processed, by pipeline result",
			},
			[]string{"result"},
		),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paper_curator_run_duration_seconds",
			Help: "Wall time of the last curate run",
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paper_curator_last_run_timestamp_seconds",
			Help: "Unix time the last curate run finished",
		}),
	}
}

func (m *Metrics) entry(state string) {
	if m != nil {
		m.EntriesTotal.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) paper(result string) {
	if m != nil {
		m.PapersTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) finish(start, end time.Time) {
	if m != nil {
		m.RunDuration.Set(end.Sub(start).Seconds())
		m.LastRun.Set(float64(end.Unix()))
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
