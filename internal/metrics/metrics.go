// Package metrics publishes Prometheus metrics for the engine's execution
// and comparison pipeline, following the same Recorder shape the teacher's
// internal/metrics.Recorder uses: a dedicated registry, CounterVec and
// HistogramVec instruments, and a promhttp handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes Prometheus metrics for one engine run.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	cellsTotal     *prometheus.CounterVec
	cellDuration   *prometheus.HistogramVec
	comparisons    *prometheus.CounterVec
	differences    *prometheus.CounterVec
	inFlight       prometheus.Gauge
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders (e.g. one per test)
// can coexist without conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	cellsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "httpdiff",
		Subsystem: "runner",
		Name:      "cells_total",
		Help:      "Total (route, environment, user) cells executed by the runner.",
	}, []string{"route", "environment", "outcome"})

	cellDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "httpdiff",
		Subsystem: "runner",
		Name:      "cell_duration_seconds",
		Help:      "Latency distribution for executed request cells.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"route", "environment"})

	comparisons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "httpdiff",
		Subsystem: "compare",
		Name:      "results_total",
		Help:      "Total per-(route,user) comparison results, by outcome.",
	}, []string{"route", "outcome"})

	differences := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "httpdiff",
		Subsystem: "compare",
		Name:      "differences_total",
		Help:      "Total structured differences emitted by the comparator, by kind.",
	}, []string{"route", "kind"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "httpdiff",
		Subsystem: "runner",
		Name:      "requests_in_flight",
		Help:      "Requests currently executing against the concurrency cap.",
	})

	reg.MustRegister(cellsTotal, cellDuration, comparisons, differences, inFlight)

	return &Recorder{
		gatherer:     reg,
		handler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		cellsTotal:   cellsTotal,
		cellDuration: cellDuration,
		comparisons:  comparisons,
		differences:  differences,
		inFlight:     inFlight,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and
// advanced integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveCell records one executed cell's outcome and duration.
func (r *Recorder) ObserveCell(route, environment, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.cellsTotal.WithLabelValues(route, environment, outcome).Inc()
	r.cellDuration.WithLabelValues(route, environment).Observe(duration.Seconds())
}

// ObserveComparison records one finished (route, user) comparison result.
func (r *Recorder) ObserveComparison(route, outcome string) {
	if r == nil {
		return
	}
	r.comparisons.WithLabelValues(route, outcome).Inc()
}

// ObserveDifference records one structured difference emitted by the
// comparator.
func (r *Recorder) ObserveDifference(route, kind string) {
	if r == nil {
		return
	}
	r.differences.WithLabelValues(route, kind).Inc()
}

// SetInFlight publishes the current number of requests executing against
// the concurrency cap.
func (r *Recorder) SetInFlight(n int) {
	if r == nil {
		return
	}
	r.inFlight.Set(float64(n))
}

// StatusLabel normalises an HTTP status code (0 for transport failures)
// into a metric label value.
func StatusLabel(status int) string {
	if status <= 0 {
		return "unknown"
	}
	return strconv.Itoa(status)
}
