package board

import (
	"sync"

	"github.com/fieldserve/dispatch/core/events"
	"github.com/fieldserve/dispatch/core/logger"
	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/internal/eventbus"
)

// Outcome classifies what Apply did with a push event.
type Outcome int

const (
	// OutcomePatched means the event was applied in place.
	OutcomePatched Outcome = iota
	// OutcomeIgnored means the event referenced an unknown technician or was
	// a stale duplicate. Dropped, never an error.
	OutcomeIgnored
	// OutcomeReload means the event was structural: the caller must re-run
	// the snapshot loader instead of patching locally.
	OutcomeReload
)

func (o Outcome) String() string {
	switch o {
	case OutcomePatched:
		return "patched"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeReload:
		return "reload"
	}
	return "unknown"
}

// Change is published on the board's bus whenever state mutates, so multiple
// screens can observe one shared board.
type Change struct {
	Revision uint64
	Reason   string // snapshot, event
}

// SectionErrors carries per-section failures of a snapshot load. A failed
// section degrades that section only; the others still refresh.
type SectionErrors struct {
	Queue       error
	Technicians error
	Stats       error
	Week        error
}

// Any reports whether at least one section failed.
func (e SectionErrors) Any() bool {
	return e.Queue != nil || e.Technicians != nil || e.Stats != nil || e.Week != nil
}

// Snapshot is one complete REST pull of dispatch state. Sections whose error
// is set are skipped on apply.
type Snapshot struct {
	Date          string
	ViewMode      model.ViewMode
	Unassigned    []model.Job
	AssignedToday []model.Job
	Technicians   []model.Technician
	Stats         *model.DispatchStats
	Week          model.WeekSchedule
	Errs          SectionErrors
}

// Board is the canonical client-side dispatch state. All methods are safe for
// concurrent use, but events are expected to arrive from a single consumer
// loop in arrival order.
type Board struct {
	mu         sync.RWMutex
	unassigned []model.Job
	assigned   []model.Job
	techs      []model.Technician
	techIdx    map[string]int
	stats      *model.DispatchStats
	week       model.WeekSchedule
	lastSeq    uint64
	revision   uint64

	changes *eventbus.Bus[Change]
	log     logger.Logger
}

// New creates an empty board.
func New(log logger.Logger) *Board {
	return &Board{
		techIdx: make(map[string]int),
		changes: eventbus.New[Change](),
		log:     log,
	}
}

// Changes returns a subscription to board revision bumps.
func (b *Board) Changes() <-chan Change { return b.changes.Subscribe() }

// Close releases the change bus. The board itself stays readable.
func (b *Board) Close() { b.changes.Close() }

// ApplySnapshot replaces each successfully loaded section wholesale. Calls
// are idempotent: lists are replaced, never appended. When two loads race,
// apply order decides; the later-completing snapshot wins as a whole.
func (b *Board) ApplySnapshot(s Snapshot) {
	b.mu.Lock()
	if s.Errs.Queue == nil {
		b.unassigned = append([]model.Job(nil), s.Unassigned...)
		b.assigned = append([]model.Job(nil), s.AssignedToday...)
	}
	if s.Errs.Technicians == nil {
		b.techs = append([]model.Technician(nil), s.Technicians...)
		b.techIdx = make(map[string]int, len(b.techs))
		for i, t := range b.techs {
			b.techIdx[t.ID] = i
		}
	}
	if s.Errs.Stats == nil && s.Stats != nil {
		st := *s.Stats
		b.stats = &st
	}
	if s.ViewMode == model.ViewModeWeek && s.Errs.Week == nil {
		b.week = s.Week
	}
	b.revision++
	rev := b.revision
	b.mu.Unlock()

	if s.Errs.Any() {
		b.log.Warnf("snapshot applied partially: queue=%v techs=%v stats=%v week=%v",
			s.Errs.Queue, s.Errs.Technicians, s.Errs.Stats, s.Errs.Week)
	}
	b.changes.Publish(Change{Revision: rev, Reason: "snapshot"})
}

// Apply reduces one push event onto the board. Location and status events
// patch the matching technician by id, last-write-wins per field. Structural
// events return OutcomeReload without touching the lists. Events for unknown
// technicians and stale duplicates return OutcomeIgnored.
func (b *Board) Apply(ev events.Event) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Staleness is decided before anything else so a replayed structural
	// event after a reconnect does not re-trigger a reload.
	if seq := ev.Seq(); seq != 0 && seq <= b.lastSeq {
		b.log.Debugf("dropping stale event seq=%d last=%d", seq, b.lastSeq)
		return OutcomeIgnored
	}

	if events.Structural(ev) {
		if seq := ev.Seq(); seq > b.lastSeq {
			b.lastSeq = seq
		}
		return OutcomeReload
	}

	switch e := ev.(type) {
	case events.TechLocation:
		i, ok := b.techIdx[e.TechID]
		if !ok {
			b.log.Debugf("location event for unknown technician %s", e.TechID)
			return OutcomeIgnored
		}
		b.techs[i].Location = &model.Location{Latitude: e.Latitude, Longitude: e.Longitude}
		if e.Status != "" && e.Status.Valid() {
			b.setTechStatus(i, e.Status, b.techs[i].CurrentJobID)
		}
	case events.TechStatus:
		i, ok := b.techIdx[e.TechID]
		if !ok {
			b.log.Debugf("status event for unknown technician %s", e.TechID)
			return OutcomeIgnored
		}
		if !e.Status.Valid() {
			b.log.Warnf("invalid technician status %q for %s", e.Status, e.TechID)
			return OutcomeIgnored
		}
		b.setTechStatus(i, e.Status, e.JobID)
	default:
		return OutcomeIgnored
	}

	if seq := ev.Seq(); seq > b.lastSeq {
		b.lastSeq = seq
	}
	b.revision++
	b.changes.Publish(Change{Revision: b.revision, Reason: "event"})
	return OutcomePatched
}

// setTechStatus patches status and current job together so the invariant
// "CurrentJobID non-empty only while working" always holds.
func (b *Board) setTechStatus(i int, status model.TechStatus, jobID string) {
	b.techs[i].Status = status
	if status.Working() {
		if jobID != "" {
			b.techs[i].CurrentJobID = jobID
		}
	} else {
		b.techs[i].CurrentJobID = ""
	}
}

// Unassigned returns a copy of the unassigned job queue.
func (b *Board) Unassigned() []model.Job {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Job(nil), b.unassigned...)
}

// AssignedToday returns a copy of the assigned-today list.
func (b *Board) AssignedToday() []model.Job {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Job(nil), b.assigned...)
}

// Technicians returns a copy of the roster.
func (b *Board) Technicians() []model.Technician {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Technician(nil), b.techs...)
}

// Technician looks up one roster entry by id.
func (b *Board) Technician(id string) (model.Technician, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.techIdx[id]
	if !ok {
		return model.Technician{}, false
	}
	return b.techs[i], true
}

// Stats returns the last loaded daily stats, or nil.
func (b *Board) Stats() *model.DispatchStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stats == nil {
		return nil
	}
	st := *b.stats
	return &st
}

// Week returns the last loaded week schedule, or nil outside week view.
func (b *Board) Week() model.WeekSchedule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.week
}

// LastSeq returns the last event sequence applied.
func (b *Board) LastSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeq
}

// Revision returns the current state revision.
func (b *Board) Revision() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}
