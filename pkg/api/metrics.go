package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus metrics of the classification service
type Metrics struct {
	gatherer prometheus.Gatherer

	JobsTotal     *prometheus.CounterVec
	JobDurations  prometheus.Histogram
	JobsRunning   prometheus.Gauge
	LevelClusters *prometheus.GaugeVec
}

// NewMetrics registers the service metrics against reg, defaulting to the
// global Prometheus registry when nil
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pubclass_jobs_total",
			Help: "Total number of finished classification jobs, labeled by final status.",
		}, []string{"status"}),
		JobDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pubclass_job_duration_seconds",
			Help:    "Classification job run time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		JobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pubclass_jobs_running",
			Help: "Number of classification jobs currently running.",
		}),
		LevelClusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pubclass_level_clusters",
			Help: "Number of clusters per level in the most recently completed classification.",
		}, []string{"level"}),
	}

	for name, collector := range map[string]prometheus.Collector{
		"pubclass_jobs_total":           m.JobsTotal,
		"pubclass_job_duration_seconds": m.JobDurations,
		"pubclass_jobs_running":         m.JobsRunning,
		"pubclass_level_clusters":       m.LevelClusters,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("registering %s: %w", name, err)
		}
	}
	return m, nil
}

// Handler exposes the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
