package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/fieldserve/dispatch/core/metrics"
)

// PromSink records dispatch-board activity in Prometheus metrics.
type PromSink struct {
	events      *prometheus.CounterVec
	snapshots   *prometheus.HistogramVec
	commands    *prometheus.CounterVec
	connections *prometheus.CounterVec
}

// NewPromSink registers board metrics on the provided Prometheus registerer.
// If reg is nil, the default registerer is used. Collectors that are already
// registered are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_events_total",
		Help: "Push events received, by type and reducer outcome",
	}, []string{"type", "outcome"})
	snapshots := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_snapshot_seconds",
		Help:    "Snapshot load duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"view_mode", "partial"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_commands_total",
		Help: "Operator command round-trips, by command and outcome",
	}, []string{"command", "success"})
	connections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_connection_transitions_total",
		Help: "Live-feed connection state transitions",
	}, []string{"state"})

	if err := register(reg, &events); err != nil {
		return nil, err
	}
	if err := registerHist(reg, &snapshots); err != nil {
		return nil, err
	}
	if err := register(reg, &commands); err != nil {
		return nil, err
	}
	if err := register(reg, &connections); err != nil {
		return nil, err
	}

	return &PromSink{events: events, snapshots: snapshots, commands: commands, connections: connections}, nil
}

func register(reg prometheus.Registerer, vec **prometheus.CounterVec) error {
	if err := reg.Register(*vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*vec = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	return nil
}

func registerHist(reg prometheus.Registerer, vec **prometheus.HistogramVec) error {
	if err := reg.Register(*vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*vec = are.ExistingCollector.(*prometheus.HistogramVec)
			return nil
		}
		return err
	}
	return nil
}

// RecordEvent increments the event counter.
func (s *PromSink) RecordEvent(rec coremetrics.EventRecord) error {
	s.events.WithLabelValues(rec.Type, rec.Outcome).Inc()
	return nil
}

// RecordSnapshot observes the snapshot load duration.
func (s *PromSink) RecordSnapshot(rec coremetrics.SnapshotRecord) error {
	s.snapshots.WithLabelValues(string(rec.ViewMode), strconv.FormatBool(rec.Partial)).
		Observe(rec.Duration.Seconds())
	return nil
}

// RecordCommand increments the command counter.
func (s *PromSink) RecordCommand(rec coremetrics.CommandRecord) error {
	s.commands.WithLabelValues(rec.Command, strconv.FormatBool(rec.Success)).Inc()
	return nil
}

// RecordConnection increments the transition counter.
func (s *PromSink) RecordConnection(rec coremetrics.ConnectionRecord) error {
	s.connections.WithLabelValues(string(rec.State)).Inc()
	return nil
}
