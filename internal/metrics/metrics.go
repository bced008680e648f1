// Package metrics counts save, load, repair, and retry outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeCreated       = "created"
	OutcomeUpdated       = "updated"
	OutcomeError         = "error"
	OutcomeInvalidKey    = "invalid_key"
	OutcomeOK            = "ok"
	OutcomeRecovered     = "recovered"
	OutcomeNotFound      = "not_found"
	OutcomeRepaired      = "repaired"
	OutcomeUnrecoverable = "unrecoverable"
)

// Recorder holds the intake counters. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	saves   *prometheus.CounterVec
	loads   *prometheus.CounterVec
	repairs *prometheus.CounterVec
	retries *prometheus.CounterVec
}

// New registers the intake counters with reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_saves_total",
			Help: "Record saves by outcome",
		}, []string{"outcome"}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_loads_total",
			Help: "Record loads by outcome",
		}, []string{"outcome"}),
		repairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_repairs_total",
			Help: "Repair attempts by outcome",
		}, []string{"outcome"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_store_retries_total",
			Help: "Store operations retried after a transient failure",
		}, []string{"operation"}),
	}
}

// Save counts a save outcome.
func (r *Recorder) Save(outcome string) {
	if r == nil {
		return
	}
	r.saves.WithLabelValues(outcome).Inc()
}

// Load counts a load outcome.
func (r *Recorder) Load(outcome string) {
	if r == nil {
		return
	}
	r.loads.WithLabelValues(outcome).Inc()
}

// Repair counts a repair outcome.
func (r *Recorder) Repair(outcome string) {
	if r == nil {
		return
	}
	r.repairs.WithLabelValues(outcome).Inc()
}

// Retry counts one retried store operation.
func (r *Recorder) Retry(operation string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(operation).Inc()
}

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
