// Package metrics exposes proof engine counters and latencies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the proof engine collectors. A nil *Metrics disables
// collection.
type Metrics struct {
	generated        *prometheus.CounterVec
	generateFailures *prometheus.CounterVec
	verified         *prometheus.CounterVec
	generateSeconds  *prometheus.HistogramVec
	verifySeconds    *prometheus.HistogramVec
}

// New registers proof metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_proofs_generated_total",
			Help: "Proofs generated, by proof type.",
		}, []string{"type"}),
		generateFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_proof_generation_failures_total",
			Help: "Proof generation failures, by proof type and error code.",
		}, []string{"type", "code"}),
		verified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_proofs_verified_total",
			Help: "Proof verifications, by proof type and outcome.",
		}, []string{"type", "outcome"}),
		generateSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "privid_proof_generation_seconds",
			Help:    "Proof generation latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"type"}),
		verifySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "privid_proof_verification_seconds",
			Help:    "Proof verification latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"type"}),
	}
}

// ObserveGenerate records one successful generation.
func (m *Metrics) ObserveGenerate(proofType string, d time.Duration) {
	if m == nil {
		return
	}
	m.generated.WithLabelValues(proofType).Inc()
	m.generateSeconds.WithLabelValues(proofType).Observe(d.Seconds())
}

// IncGenerateFailure records a failed generation.
func (m *Metrics) IncGenerateFailure(proofType, code string) {
	if m == nil {
		return
	}
	m.generateFailures.WithLabelValues(proofType, code).Inc()
}

// ObserveVerify records one verification with its outcome.
func (m *Metrics) ObserveVerify(proofType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.verified.WithLabelValues(proofType, outcome).Inc()
	m.verifySeconds.WithLabelValues(proofType).Observe(d.Seconds())
}
