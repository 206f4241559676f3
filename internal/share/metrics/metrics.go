// Package metrics exposes share manager counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the share manager collectors. A nil *Metrics disables
// collection.
type Metrics struct {
	created       *prometheus.CounterVec
	verifications *prometheus.CounterVec
	replays       prometheus.Counter
}

// New registers share metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_shares_created_total",
			Help: "Share packages created, by window preset.",
		}, []string{"window"}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_share_verifications_total",
			Help: "Shared proof verifications, by outcome.",
		}, []string{"outcome"}),
		replays: factory.NewCounter(prometheus.CounterOpts{
			Name: "privid_share_replays_total",
			Help: "Nullifier replays detected.",
		}),
	}
}

// IncCreated counts a created package.
func (m *Metrics) IncCreated(window string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(window).Inc()
}

// IncVerification counts one shared verification outcome.
func (m *Metrics) IncVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

// IncReplay counts a detected replay.
func (m *Metrics) IncReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}
