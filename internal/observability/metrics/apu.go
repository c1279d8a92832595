// Package metrics provides Prometheus metrics for the audio system.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// APUMetrics contains Prometheus metrics for audio system operations
type APUMetrics struct {
	registry *prometheus.Registry

	// Slot pool metrics
	registeredClients    prometheus.Gauge
	registrationsTotal   *prometheus.CounterVec
	unregistrationsTotal prometheus.Counter

	// Dispatch worker metrics
	callbacksDispatched *prometheus.CounterVec
	sweepLength         prometheus.Histogram
	idleWakeups         prometheus.Counter
	dispatchErrors      *prometheus.CounterVec

	// Frame submission metrics
	framesSubmitted *prometheus.CounterVec
	submitErrors    *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewAPUMetrics creates and registers new audio system metrics
func NewAPUMetrics(registry *prometheus.Registry) (*APUMetrics, error) {
	m := &APUMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *APUMetrics) initMetrics() {
	m.registeredClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apu_registered_clients",
			Help: "Number of currently registered audio clients",
		},
	)

	m.registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apu_client_registrations_total",
			Help: "Total number of client registration attempts",
		},
		[]string{"status"},
	)

	m.unregistrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apu_client_unregistrations_total",
			Help: "Total number of client unregistrations",
		},
	)

	m.callbacksDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apu_callbacks_dispatched_total",
			Help: "Total number of guest callbacks pumped by the dispatch worker",
		},
		[]string{"slot"},
	)

	m.sweepLength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apu_dispatch_sweep_length",
			Help:    "Number of clients serviced per dispatch wakeup",
			Buckets: prometheus.LinearBuckets(0, 1, 9), // 0..8 slots
		},
	)

	m.idleWakeups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apu_idle_wakeups_total",
			Help: "Total number of worker wakeups that pumped no client",
		},
	)

	m.dispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apu_dispatch_errors_total",
			Help: "Total number of guest callback invocation errors",
		},
		[]string{"slot"},
	)

	m.framesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apu_frames_submitted_total",
			Help: "Total number of audio frames handed to drivers",
		},
		[]string{"slot"},
	)

	m.submitErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apu_frame_submit_errors_total",
			Help: "Total number of frame submissions rejected by drivers",
		},
		[]string{"slot"},
	)

	m.collectors = []prometheus.Collector{
		m.registeredClients,
		m.registrationsTotal,
		m.unregistrationsTotal,
		m.callbacksDispatched,
		m.sweepLength,
		m.idleWakeups,
		m.dispatchErrors,
		m.framesSubmitted,
		m.submitErrors,
	}
}

// Describe implements the Collector interface
func (m *APUMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *APUMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// UpdateRegisteredClients sets the registered client gauge. Nil-safe.
func (m *APUMetrics) UpdateRegisteredClients(count int) {
	if m == nil {
		return
	}
	m.registeredClients.Set(float64(count))
}

// RecordRegistration counts a registration attempt with its outcome.
func (m *APUMetrics) RecordRegistration(status string) {
	if m == nil {
		return
	}
	m.registrationsTotal.WithLabelValues(status).Inc()
}

// RecordUnregistration counts a client unregistration.
func (m *APUMetrics) RecordUnregistration() {
	if m == nil {
		return
	}
	m.unregistrationsTotal.Inc()
}

// RecordCallbackDispatched counts a pumped guest callback.
func (m *APUMetrics) RecordCallbackDispatched(slot string) {
	if m == nil {
		return
	}
	m.callbacksDispatched.WithLabelValues(slot).Inc()
}

// RecordSweepLength observes the number of clients serviced by one wakeup.
func (m *APUMetrics) RecordSweepLength(pumped int) {
	if m == nil {
		return
	}
	m.sweepLength.Observe(float64(pumped))
}

// RecordIdleWakeup counts a wakeup that serviced no client.
func (m *APUMetrics) RecordIdleWakeup() {
	if m == nil {
		return
	}
	m.idleWakeups.Inc()
}

// RecordDispatchError counts a failed guest callback invocation.
func (m *APUMetrics) RecordDispatchError(slot string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(slot).Inc()
}

// RecordFrameSubmitted counts a frame handed to a driver.
func (m *APUMetrics) RecordFrameSubmitted(slot string) {
	if m == nil {
		return
	}
	m.framesSubmitted.WithLabelValues(slot).Inc()
}

// RecordSubmitError counts a frame rejected by a driver.
func (m *APUMetrics) RecordSubmitError(slot string) {
	if m == nil {
		return
	}
	m.submitErrors.WithLabelValues(slot).Inc()
}
