// Package metrics exports the truncations performed by the mpo algorithms as Prometheus metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fumin/mpoalgs/mpo"
)

// Metrics is an mpo.Observer that records every decomposition.
type Metrics struct {
	decompositions *prometheus.CounterVec
	truncErr       *prometheus.HistogramVec
	bondDim        *prometheus.HistogramVec
	maxBondDim     *prometheus.GaugeVec

	mu   sync.Mutex
	peak map[string]int
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		decompositions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mpoalgs",
			Name:      "decompositions_total",
			Help:      "Truncated decompositions performed.",
		}, []string{"algorithm"}),
		truncErr: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mpoalgs",
			Name:      "truncation_error",
			Help:      "Discarded weight of a decomposition relative to its total weight.",
			Buckets:   prometheus.ExponentialBuckets(1e-16, 10, 16),
		}, []string{"algorithm"}),
		bondDim: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mpoalgs",
			Name:      "bond_dimension",
			Help:      "Bond dimension kept by a decomposition.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"algorithm"}),
		maxBondDim: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mpoalgs",
			Name:      "max_bond_dimension",
			Help:      "Largest bond dimension kept so far.",
		}, []string{"algorithm"}),
		peak: make(map[string]int),
	}
}

// Observe implements mpo.Observer.
func (m *Metrics) Observe(ev mpo.Event) {
	m.decompositions.WithLabelValues(ev.Algorithm).Inc()
	m.truncErr.WithLabelValues(ev.Algorithm).Observe(ev.Spectrum.TruncErr)
	dim := float64(ev.Spectrum.Dim())
	m.bondDim.WithLabelValues(ev.Algorithm).Observe(dim)

	m.mu.Lock()
	defer m.mu.Unlock()
	if d := ev.Spectrum.Dim(); d > m.peak[ev.Algorithm] {
		m.peak[ev.Algorithm] = d
		m.maxBondDim.WithLabelValues(ev.Algorithm).Set(float64(d))
	}
}
