// Package metrics exposes identity registry counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the registry collectors. A nil *Metrics disables collection.
type Metrics struct {
	didsCreated    prometheus.Counter
	keyRotations   prometheus.Counter
	writeConflicts prometheus.Counter
}

// New registers identity metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		didsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "privid_dids_created_total",
			Help: "DIDs created.",
		}),
		keyRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "privid_did_key_rotations_total",
			Help: "Successful DID key rotations.",
		}),
		writeConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "privid_did_write_conflicts_total",
			Help: "Optimistic concurrency conflicts on DID documents.",
		}),
	}
}

// IncDIDsCreated counts a created DID.
func (m *Metrics) IncDIDsCreated() {
	if m == nil {
		return
	}
	m.didsCreated.Inc()
}

// IncKeyRotations counts a successful rotation.
func (m *Metrics) IncKeyRotations() {
	if m == nil {
		return
	}
	m.keyRotations.Inc()
}

// IncWriteConflicts counts a CAS conflict.
func (m *Metrics) IncWriteConflicts() {
	if m == nil {
		return
	}
	m.writeConflicts.Inc()
}
