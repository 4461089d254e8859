package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes booking and lifecycle counters. A nil *Metrics records nothing.
type Metrics struct {
	bookingTotal    *prometheus.CounterVec
	bookingLatency  *prometheus.HistogramVec
	transitionTotal *prometheus.CounterVec
	sweepTotal      *prometheus.CounterVec
	sweepLatency    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by outcome",
		}, []string{"op", "outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "operation_seconds",
			Help:      "Latency of booking operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		transitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Status transitions applied by the lifecycle sweep",
		}, []string{"from", "to"}),
		sweepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "lifecycle",
			Name:      "sweeps_total",
			Help:      "Lifecycle sweeps by outcome",
		}, []string{"outcome"}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "lifecycle",
			Name:      "sweep_seconds",
			Help:      "Duration of lifecycle sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.bookingLatency, m.transitionTotal, m.sweepTotal, m.sweepLatency)
	return m
}

func (m *Metrics) ObserveBooking(op, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(op, outcome).Inc()
	m.bookingLatency.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) ObserveTransitions(from, to string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.transitionTotal.WithLabelValues(from, to).Add(float64(n))
}

func (m *Metrics) ObserveSweep(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.sweepTotal.WithLabelValues(outcome).Inc()
	m.sweepLatency.Observe(took.Seconds())
}
