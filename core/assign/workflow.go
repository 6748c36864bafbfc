package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldserve/dispatch/core/logger"
	"github.com/fieldserve/dispatch/core/metrics"
	"github.com/fieldserve/dispatch/core/model"
)

// State is the assignment workflow phase.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "suggestionsLoading"
	case StateReady:
		return "suggestionsReady"
	case StateCommitting:
		return "committing"
	}
	return "unknown"
}

var (
	// ErrStaleSelection is returned when a suggestions response arrives for a
	// job that is no longer the active selection. The response is discarded.
	ErrStaleSelection = errors.New("assign: selection changed while suggestions were in flight")
	// ErrNotReady is returned when Commit is called outside the ready state.
	ErrNotReady = errors.New("assign: no suggestion list is active")
)

// API is the backend surface the workflow needs.
type API interface {
	SuggestTechnicians(ctx context.Context, jobID, date string) ([]model.AssignmentSuggestion, error)
	AssignJob(ctx context.Context, req model.AssignRequest) error
}

// Workflow drives one assignment modal: select a job, fetch ranked
// suggestions, optionally pin a drag target, commit or cancel. Suggestions
// never outlive the selection that produced them.
type Workflow struct {
	mu          sync.Mutex
	state       State
	gen         uint64 // selection generation, guards late responses
	job         model.Job
	date        string
	suggestions []model.AssignmentSuggestion

	api    API
	log    logger.Logger
	sink   metrics.BoardSink
	reload func() // invoked after a committed assignment
}

// New creates a workflow. reload is called after every successful commit,
// because an assignment changes list membership and only a full snapshot
// reload restores consistency. A nil sink disables metrics.
func New(api API, reload func(), log logger.Logger, sink metrics.BoardSink) (*Workflow, error) {
	if api == nil || reload == nil {
		return nil, fmt.Errorf("assign: nil parameter provided to New")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Workflow{api: api, reload: reload, log: log, sink: sink}, nil
}

// Select starts a suggestion fetch for the given unassigned job. dragTarget,
// when non-empty, pins that technician to the top of the returned list. If
// another Select or Cancel happens while the fetch is in flight, the late
// response is discarded and ErrStaleSelection is returned.
func (w *Workflow) Select(ctx context.Context, job model.Job, date, dragTarget string) ([]model.AssignmentSuggestion, error) {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.state = StateLoading
	w.job = job
	w.date = date
	w.suggestions = nil
	w.mu.Unlock()

	suggs, err := w.api.SuggestTechnicians(ctx, job.ID, date)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		w.log.Debugf("discarding late suggestions for job %s", job.ID)
		return nil, ErrStaleSelection
	}
	if err != nil {
		w.state = StateIdle
		return nil, fmt.Errorf("fetch suggestions for job %s: %w", job.ID, err)
	}
	if dragTarget != "" {
		suggs = Rerank(suggs, dragTarget)
	}
	w.suggestions = suggs
	w.state = StateReady
	return append([]model.AssignmentSuggestion(nil), suggs...), nil
}

// Commit assigns the active job to the chosen technician. estimatedHours
// zero defaults to the job's own estimate. On success the modal closes (state
// returns to idle) and a snapshot reload is triggered. On failure the
// workflow stays in ready so the operator can correct and retry; the backend
// message is carried on the returned error. The job is never moved out of the
// unassigned queue before the server confirms.
func (w *Workflow) Commit(ctx context.Context, techID, startTime string, estimatedHours float64) error {
	w.mu.Lock()
	if w.state != StateReady {
		w.mu.Unlock()
		return ErrNotReady
	}
	w.state = StateCommitting
	req := model.AssignRequest{
		JobID:          w.job.ID,
		TechID:         techID,
		ScheduledDate:  w.date,
		StartTime:      startTime,
		EstimatedHours: estimatedHours,
	}
	if req.EstimatedHours == 0 {
		req.EstimatedHours = w.job.EstimatedHours
	}
	w.mu.Unlock()

	start := time.Now()
	err := w.api.AssignJob(ctx, req)
	if rerr := w.sink.RecordCommand(metrics.CommandRecord{
		Command:  "assign",
		TechID:   techID,
		JobID:    req.JobID,
		Success:  err == nil,
		Duration: time.Since(start),
		Time:     time.Now(),
	}); rerr != nil {
		w.log.Errorf("metrics error: %v", rerr)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = StateReady
		return fmt.Errorf("assign job %s to %s: %w", req.JobID, techID, err)
	}
	w.log.Infof("assigned job %s to technician %s on %s", req.JobID, techID, req.ScheduledDate)
	w.clearLocked()
	w.reload()
	return nil
}

// Cancel abandons the current selection with no side effects. Any in-flight
// suggestions response will be discarded when it arrives.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.clearLocked()
}

func (w *Workflow) clearLocked() {
	w.state = StateIdle
	w.job = model.Job{}
	w.date = ""
	w.suggestions = nil
}

// State returns the current workflow phase.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// ActiveJobID returns the id of the selected job, or empty when idle.
func (w *Workflow) ActiveJobID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job.ID
}

// Suggestions returns a copy of the active suggestion list.
func (w *Workflow) Suggestions() []model.AssignmentSuggestion {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.AssignmentSuggestion(nil), w.suggestions...)
}
