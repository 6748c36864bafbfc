package metrics

import (
	"errors"
	"testing"
)

type countSink struct {
	count int
	err   error
}

func (c *countSink) RecordEvent(EventRecord) error           { c.count++; return c.err }
func (c *countSink) RecordSnapshot(SnapshotRecord) error     { c.count++; return c.err }
func (c *countSink) RecordCommand(CommandRecord) error       { c.count++; return c.err }
func (c *countSink) RecordConnection(ConnectionRecord) error { c.count++; return c.err }

func TestMultiSink(t *testing.T) {
	s1 := &countSink{}
	s2 := &countSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordEvent(EventRecord{}); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if err := m.RecordSnapshot(SnapshotRecord{}); err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
	if err := m.RecordCommand(CommandRecord{}); err != nil {
		t.Fatalf("record command: %v", err)
	}
	if err := m.RecordConnection(ConnectionRecord{}); err != nil {
		t.Fatalf("record connection: %v", err)
	}
	if s1.count != 4 || s2.count != 4 {
		t.Fatalf("records not forwarded: %d/%d", s1.count, s2.count)
	}
}

func TestMultiSink_ContinuesPastErrors(t *testing.T) {
	boom := errors.New("sink down")
	s1 := &countSink{err: boom}
	s2 := &countSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordEvent(EventRecord{}); !errors.Is(err, boom) {
		t.Fatalf("expected first error back, got %v", err)
	}
	if s2.count != 1 {
		t.Fatal("second sink must still receive the record")
	}
}
