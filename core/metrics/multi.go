package metrics

// MultiSink fans records out to several sinks. The first error encountered is
// returned after all sinks have been attempted.
type MultiSink struct {
	sinks []BoardSink
}

// NewMultiSink combines the given sinks into one.
func NewMultiSink(sinks ...BoardSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordEvent(rec EventRecord) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordEvent(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordSnapshot(rec SnapshotRecord) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordSnapshot(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordCommand(rec CommandRecord) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordCommand(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordConnection(rec ConnectionRecord) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordConnection(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
