package paxos

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirrors the {Gauge, Lifespan}-style bundle
// Rain168-server/paxos/proposermanager.go attaches to its ProposerManager
// (there: open-proposal gauge + a Summary observing proposal lifespan).
// Here the bundle tracks the pipeline instead of a single txn's lifetime,
// since this proposer drives many concurrent slots rather than one.
type Metrics struct {
	OpenP1Instances prometheus.Gauge
	InstancesRetired prometheus.Counter
	PipelineDepth    prometheus.Gauge
	StaleAcksDropped prometheus.Counter
	ValueConflicts   prometheus.Counter
}

// NewMetrics registers the proposer's gauges/counters against reg. Pass a
// fresh prometheus.NewRegistry() in tests to avoid collisions with other
// proposer instances in the same process.
func NewMetrics(reg prometheus.Registerer, proposerID uint32) *Metrics {
	labels := prometheus.Labels{"proposer_id": strconv.Itoa(int(proposerID))}
	m := &Metrics{
		OpenP1Instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "paxos",
			Subsystem:   "proposer",
			Name:        "open_p1_instances",
			Help:        "Instances currently in p1_pending.",
			ConstLabels: labels,
		}),
		InstancesRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paxos",
			Subsystem:   "proposer",
			Name:        "instances_retired_total",
			Help:        "Instances retired after a chosen outcome was delivered.",
			ConstLabels: labels,
		}),
		PipelineDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "paxos",
			Subsystem:   "proposer",
			Name:        "pipeline_depth",
			Help:        "next_prepare_iid - next_accept_iid.",
			ConstLabels: labels,
		}),
		StaleAcksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paxos",
			Subsystem:   "proposer",
			Name:        "stale_acks_dropped_total",
			Help:        "Acks dropped because their iid was unknown, retired, or out of phase.",
			ConstLabels: labels,
		}),
		ValueConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paxos",
			Subsystem:   "proposer",
			Name:        "value_conflicts_total",
			Help:        "Retired instances where a different value was chosen than the one we proposed.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.OpenP1Instances, m.InstancesRetired, m.PipelineDepth, m.StaleAcksDropped, m.ValueConflicts)
	}
	return m
}
