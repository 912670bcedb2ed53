package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	chargesTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		chargesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrief_charges_total",
				Help: "Total charge units billed, by event name",
			},
			[]string{"event"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrief_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketbrief_runs_total",
				Help: "Total report runs, by result",
			},
			[]string{"result"},
		),
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketbrief_fetch_duration_seconds",
				Help:    "Duration of upstream fetches in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"source"},
		),
	}
}

// RecordCharge records billed charge units for an event.
func (r *Recorder) RecordCharge(event string, count int) {
	r.chargesTotal.WithLabelValues(event).Add(float64(count))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRun records a completed report run.
func (r *Recorder) RecordRun(result string) {
	r.runsTotal.WithLabelValues(result).Inc()
}

// RecordFetch records an upstream fetch duration in seconds.
func (r *Recorder) RecordFetch(source string, seconds float64) {
	r.fetchDuration.WithLabelValues(source).Observe(seconds)
}
