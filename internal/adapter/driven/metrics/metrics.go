// Package metrics implements driven.MetricsRecorder with Prometheus collectors
// registered on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Recorder counts credential reveals and rotation outcomes.
type Recorder struct {
	registry *prometheus.Registry

	revealsTotal     *prometheus.CounterVec
	rotatedRowsTotal *prometheus.CounterVec
	rotationRuns     *prometheus.CounterVec
	rotationDuration prometheus.Histogram
}

// NewRecorder creates a Recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		revealsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infrapanel_credential_reveals_total",
				Help: "Total number of credential reveal attempts by secret type and outcome",
			},
			[]string{"type", "outcome"},
		),
		rotatedRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infrapanel_rotation_rows_total",
				Help: "Total number of rows visited by key rotation by secret type and outcome",
			},
			[]string{"type", "outcome"},
		),
		rotationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "infrapanel_rotation_runs_total",
				Help: "Total number of key rotation runs by outcome",
			},
			[]string{"outcome"},
		),
		rotationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "infrapanel_rotation_duration_seconds",
			Help:    "Duration of key rotation runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.revealsTotal,
		r.rotatedRowsTotal,
		r.rotationRuns,
		r.rotationDuration,
	)
	return r
}

// RecordReveal counts one reveal attempt.
func (r *Recorder) RecordReveal(t model.SecretType, outcome string) {
	r.revealsTotal.WithLabelValues(string(t), outcome).Inc()
}

// RecordRotatedRow counts one row visited by a rotation pass.
func (r *Recorder) RecordRotatedRow(t model.SecretType, outcome string) {
	r.rotatedRowsTotal.WithLabelValues(string(t), outcome).Inc()
}

// RecordRotationRun counts a finished rotation run and observes its duration.
func (r *Recorder) RecordRotationRun(outcome string, duration time.Duration) {
	r.rotationRuns.WithLabelValues(outcome).Inc()
	r.rotationDuration.Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
