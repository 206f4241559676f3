// Package metrics exposes issuance counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the credential issuer collectors. A nil *Metrics disables
// collection.
type Metrics struct {
	issued        *prometheus.CounterVec
	issueFailures *prometheus.CounterVec
}

// New registers credential metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		issued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_credentials_issued_total",
			Help: "Credentials issued, by purpose type.",
		}, []string{"type"}),
		issueFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "privid_credential_issue_failures_total",
			Help: "Credential persistence failures, by purpose type.",
		}, []string{"type"}),
	}
}

// IncIssued counts a stored credential.
func (m *Metrics) IncIssued(credType string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(credType).Inc()
}

// IncIssueFailures counts a failed persistence attempt.
func (m *Metrics) IncIssueFailures(credType string) {
	if m == nil {
		return
	}
	m.issueFailures.WithLabelValues(credType).Inc()
}
