package osc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what Endpoints and Dispatchers put on the wire. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	DatagramsSent prometheus.Counter
	BytesSent     prometheus.Counter
	SendErrors    prometheus.Counter
	ShortWrites   prometheus.Counter
	Flushes       prometheus.Counter
	FlushEntries  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg, under the
// given namespace (default "osc").
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "osc"
	}
	factory := promauto.With(reg)
	return &Metrics{
		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Total number of OSC datagrams fully written.",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total number of OSC bytes written.",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total number of datagram writes that failed.",
		}),
		ShortWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_writes_total",
			Help:      "Total number of writes that transmitted less than the full datagram and were retried.",
		}),
		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Total number of dispatch cache flushes that sent a bundle.",
		}),
		FlushEntries: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_entries",
			Help:      "Number of messages in each flushed bundle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) sent(n int) {
	if m == nil {
		return
	}
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(n))
}

func (m *Metrics) sendError() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}

func (m *Metrics) shortWrite() {
	if m == nil {
		return
	}
	m.ShortWrites.Inc()
}

// Flushed records a flush that sent a bundle of n messages.
func (m *Metrics) Flushed(n int) {
	if m == nil {
		return
	}
	m.Flushes.Inc()
	m.FlushEntries.Observe(float64(n))
}
