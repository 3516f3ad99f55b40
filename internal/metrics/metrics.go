// Package metrics holds the Prometheus instruments of a rankflow process.
//
// A nil *Metrics is valid and records nothing, so components take one
// unconditionally and the CLI only creates it when the HTTP surface is on.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rankflow"

// Metrics holds Prometheus metrics for ingest and analytics.
type Metrics struct {
	// Ingest
	rowsReceived   prometheus.Counter
	rowsDiscarded  prometheus.Counter
	brokenPackages prometheus.Counter
	queueDepth     prometheus.Gauge
	sampleRate     prometheus.Gauge

	// Analytics
	windows      *prometheus.CounterVec // By backend
	published    *prometheus.CounterVec // By status (ok/error)
	channels     prometheus.Gauge
	stepDuration prometheus.Histogram
}

// New creates the metrics and registers them with reg.
// A nil registerer disables metrics and returns nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		rowsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_received_total",
			Help:      "Rows enqueued by the ingest worker",
		}),
		rowsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_discarded_total",
			Help:      "Rows dropped by overflow decimation",
		}),
		brokenPackages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "broken_packages_total",
			Help:      "Truncated data frames skipped by the ingest worker",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Rows waiting in the ingest queue when a window was taken",
		}),
		sampleRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "effective_sample_rate_hz",
			Help:      "Sample rate after overflow decimation",
		}),
		windows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "windows_total",
			Help:      "Windows turned into correlation results",
		}, []string{"backend"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "results_published_total",
			Help:      "Results handed to sinks",
		}, []string{"status"}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "channels",
			Help:      "Channel count of the current session",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one correlation step",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	for _, c := range []prometheus.Collector{
		m.rowsReceived, m.rowsDiscarded, m.brokenPackages, m.queueDepth, m.sampleRate,
		m.windows, m.published, m.channels, m.stepDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RowsReceived counts rows entering the ingest queue.
func (m *Metrics) RowsReceived(n int) {
	if m == nil {
		return
	}
	m.rowsReceived.Add(float64(n))
}

// RowsDiscarded counts rows dropped by decimation.
func (m *Metrics) RowsDiscarded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.rowsDiscarded.Add(float64(n))
}

// BrokenPackage counts one truncated frame.
func (m *Metrics) BrokenPackage() {
	if m == nil {
		return
	}
	m.brokenPackages.Inc()
}

// QueueDepth records the queue length seen by the consumer.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// SampleRate records the effective sample rate.
func (m *Metrics) SampleRate(hz float64) {
	if m == nil {
		return
	}
	m.sampleRate.Set(hz)
}

// Window records one completed step.
func (m *Metrics) Window(backend string, channels int, d time.Duration) {
	if m == nil {
		return
	}
	m.windows.WithLabelValues(backend).Inc()
	m.channels.Set(float64(channels))
	m.stepDuration.Observe(d.Seconds())
}

// Published records a sink publication.
func (m *Metrics) Published(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.published.WithLabelValues(status).Inc()
}
