// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablab_jobs_submitted_total",
		Help: "Jobs accepted for background execution.",
	})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablab_jobs_completed_total",
		Help: "Jobs reaching a terminal status.",
	}, []string{"status"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tablab_active_jobs",
		Help: "Jobs currently executing.",
	})

	BytesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablab_upload_bytes_total",
		Help: "Bytes written by the upload ingestor.",
	})

	SweepRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablab_sweep_removed_total",
		Help: "Result directories removed by retention sweeps.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
