package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "goctap"
	subsystem = "ctap2"
)

// Label names for dispatcher metrics.
const (
	labelCommand = "command"
	labelStatus  = "status"
)

// Collector holds the Prometheus metrics the ctap2 dispatcher reports
// against through ObserveCall. Nothing in this module updates
// SessionsOpen.
type Collector struct {
	// Requests counts dispatcher calls per command.
	Requests *prometheus.CounterVec

	// Errors counts dispatcher calls that returned a non-success status,
	// labeled by command and the authenticator status byte.
	Errors *prometheus.CounterVec

	// Latency observes round-trip time per command, from Send to a
	// fully decoded reply.
	Latency *prometheus.HistogramVec

	// SessionsOpen tracks the number of currently open device sessions.
	SessionsOpen prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered against
// reg. A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Requests,
		c.Errors,
		c.Latency,
		c.SessionsOpen,
	)

	return c
}

func newMetrics() *Collector {
	commandLabels := []string{labelCommand}
	errorLabels := []string{labelCommand, labelStatus}

	return &Collector{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total CTAP2 commands dispatched, by command.",
		}, commandLabels),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total CTAP2 commands that returned a non-success status, by command and status.",
		}, errorLabels),

		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "CTAP2 command round-trip latency, by command.",
			Buckets:   prometheus.DefBuckets,
		}, commandLabels),

		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "sessions_open",
			Help:      "Number of currently open device sessions.",
		}),
	}
}

// ObserveCall records one dispatcher round trip. status is the raw CTAP2
// status byte formatted as "0xNN" for an authenticator error,
// "transport_error" for any other failure, and "" for success; err is the
// call's error, non-nil in both failure cases.
func (c *Collector) ObserveCall(command string, status string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(command).Inc()
	c.Latency.WithLabelValues(command).Observe(duration.Seconds())
	if err != nil || status != "" {
		c.Errors.WithLabelValues(command, status).Inc()
	}
}
