package metrics

import (
	"time"

	"github.com/fieldserve/dispatch/core/model"
)

// EventRecord captures one push event applied to (or ignored by) the board.
type EventRecord struct {
	Type      string // wire discriminator
	Outcome   string // patched, ignored, reload
	TechID    string
	Time      time.Time
	Component string
}

// SnapshotRecord captures one completed snapshot load.
type SnapshotRecord struct {
	Date       string
	ViewMode   model.ViewMode
	Duration   time.Duration
	Partial    bool // at least one section failed
	Unassigned int
	Assigned   int
	Techs      int
	Time       time.Time
}

// CommandRecord captures the outcome of an operator command round-trip.
type CommandRecord struct {
	Command  string // assign, optimize, apply_route
	TechID   string
	JobID    string
	Success  bool
	Duration time.Duration
	Time     time.Time
}

// ConnectionRecord captures a connection-state transition of the live feed.
type ConnectionRecord struct {
	State   model.ConnectionState
	Attempt int // reconnect attempt number, 0 for the first connect
	Time    time.Time
}

// BoardSink records dispatch-board activity for observability purposes.
type BoardSink interface {
	RecordEvent(rec EventRecord) error
	RecordSnapshot(rec SnapshotRecord) error
	RecordCommand(rec CommandRecord) error
	RecordConnection(rec ConnectionRecord) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordEvent(EventRecord) error           { return nil }
func (NopSink) RecordSnapshot(SnapshotRecord) error     { return nil }
func (NopSink) RecordCommand(CommandRecord) error       { return nil }
func (NopSink) RecordConnection(ConnectionRecord) error { return nil }
