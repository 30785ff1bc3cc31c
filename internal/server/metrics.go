package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics tracks acquisition outcomes for the /metrics endpoint. Each full
// spectrum acquisition is multiple request/response cycles on the wire, so
// the cycle histogram measures the whole composite operation.
type metrics struct {
	registry *prometheus.Registry

	acquisitions *prometheus.CounterVec
	cycleSeconds prometheus.Histogram
	wsClients    prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gm8050",
			Name:      "acquisitions_total",
			Help:      "Spectrum acquisitions by outcome.",
		}, []string{"outcome"}),
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gm8050",
			Name:      "acquisition_seconds",
			Help:      "Duration of a full spectrum acquisition (trigger + read).",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gm8050",
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	reg.MustRegister(m.acquisitions, m.cycleSeconds, m.wsClients)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
