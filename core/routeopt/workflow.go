package routeopt

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

// State is the route optimization workflow phase.
type State int

const (
	StateViewing State = iota
	StateOptimizing
	StatePreview
	StateApplying
)

func (s State) String() string {
	switch s {
	case StateViewing:
		return "viewingRoute"
	case StateOptimizing:
		return "optimizing"
	case StatePreview:
		return "optimizedPreview"
	case StateApplying:
		return "applying"
	}
	return "unknown"
}

var (
	// ErrTooFewStops means the route has fewer than two stops. Optimizing is
	// a local no-op; no backend call is made.
	ErrTooFewStops = errors.New("routeopt: at least two stops are required")
	// ErrNoPreview is returned when Apply is called without a candidate.
	ErrNoPreview = errors.New("routeopt: no optimization preview is active")
	// ErrNotImproving means the candidate saves no time. Applying a
	// non-improving reorder is disallowed even if the backend returned one.
	ErrNotImproving = errors.New("routeopt: candidate order does not improve the route")
)

// API is the backend surface the workflow needs.
type API interface {
	FetchRoute(ctx context.Context, techID, date string) (model.RouteData, error)
	OptimizeRoute(ctx context.Context, techID, date string) (model.OptimizeResult, error)
	ApplyOptimizedRoute(ctx context.Context, techID, date string, order []string) error
}

// Workflow drives the route view for one technician/day: load the committed
// stop order, request a candidate reordering, preview the delta, and commit
// only on an explicit apply. Candidate orders are never cached past one
// preview cycle.
type Workflow struct {
	mu      sync.Mutex
	state   State
	techID  string
	date    string
	route   model.RouteData
	preview *model.OptimizeResult

	api  API
	log  logger.Logger
	sink metrics.BoardSink
}

// New creates a workflow. A nil sink disables metrics.
func New(api API, log logger.Logger, sink metrics.BoardSink) (*Workflow, error) {
	if api == nil {
		return nil, fmt.Errorf("routeopt: nil API provided to New")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Workflow{api: api, log: log, sink: sink}, nil
}

// Load fetches the committed route for the technician/day and discards any
// previous preview.
func (w *Workflow) Load(ctx context.Context, techID, date string) (model.RouteData, error) {
	route, err := w.api.FetchRoute(ctx, techID, date)
	if err != nil {
		return model.RouteData{}, fmt.Errorf("fetch route %s/%s: %w", techID, date, err)
	}
	if err := route.Validate(); err != nil {
		return model.RouteData{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.techID = techID
	w.date = date
	w.route = route
	w.preview = nil
	w.state = StateViewing
	return route, nil
}

// Optimize requests a candidate reordering from the backend. Routes with
// fewer than two stops are rejected locally. The returned candidate is a
// preview only; the committed order is untouched until Apply.
func (w *Workflow) Optimize(ctx context.Context) (model.OptimizeResult, error) {
	w.mu.Lock()
	if len(w.route.Stops) < 2 {
		w.mu.Unlock()
		return model.OptimizeResult{}, ErrTooFewStops
	}
	techID, date := w.techID, w.date
	w.state = StateOptimizing
	w.mu.Unlock()

	res, err := w.api.OptimizeRoute(ctx, techID, date)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = StateViewing
		return model.OptimizeResult{}, fmt.Errorf("optimize route %s/%s: %w", techID, date, err)
	}
	w.preview = &res
	w.state = StatePreview
	if !res.Improving() {
		w.log.Infof("route %s/%s already optimal (saved %.1f min)", techID, date, res.TimeSavedMinutes)
	}
	return res, nil
}

// CanApply reports whether an improving preview is active. Non-improving
// candidates are presented as "already optimal" with no apply action.
func (w *Workflow) CanApply() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StatePreview && w.preview != nil && w.preview.Improving()
}

// Apply commits the candidate order, then reloads the route (not the whole
// dispatch snapshot) and clears the preview. On failure the previously
// committed order stays fully intact and the preview is discarded: the
// operator must re-run optimization rather than retry a stale candidate.
func (w *Workflow) Apply(ctx context.Context) (model.RouteData, error) {
	w.mu.Lock()
	if w.state != StatePreview || w.preview == nil {
		w.mu.Unlock()
		return model.RouteData{}, ErrNoPreview
	}
	if !w.preview.Improving() {
		w.mu.Unlock()
		return model.RouteData{}, ErrNotImproving
	}
	techID, date := w.techID, w.date
	order := append([]string(nil), w.preview.OptimizedOrder...)
	w.state = StateApplying
	w.mu.Unlock()

	start := time.Now()
	err := w.api.ApplyOptimizedRoute(ctx, techID, date, order)
	if rerr := w.sink.RecordCommand(metrics.CommandRecord{
		Command:  "apply_route",
		TechID:   techID,
		Success:  err == nil,
		Duration: time.Since(start),
		Time:     time.Now(),
	}); rerr != nil {
		w.log.Errorf("metrics error: %v", rerr)
	}

	if err != nil {
		w.mu.Lock()
		w.preview = nil
		w.state = StateViewing
		route := w.route
		w.mu.Unlock()
		return route, fmt.Errorf("apply optimized route %s/%s: %w", techID, date, err)
	}

	route, err := w.api.FetchRoute(ctx, techID, date)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.preview = nil
	w.state = StateViewing
	if err != nil {
		// The commit succeeded; only the refresh failed. Keep the stale view
		// and let the next Load correct it.
		w.log.Errorf("route refresh after apply failed: %v", err)
		return w.route, nil
	}
	w.route = route
	w.log.Infof("applied optimized order for %s/%s (%d stops)", techID, date, len(route.Stops))
	return route, nil
}

// Discard drops the preview and returns to viewing.
func (w *Workflow) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.preview = nil
	if w.state == StatePreview {
		w.state = StateViewing
	}
}

// State returns the current workflow phase.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Route returns the committed stop order currently displayed.
func (w *Workflow) Route() model.RouteData {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.route
	r.Stops = append([]model.RouteEntry(nil), w.route.Stops...)
	return r
}

// Preview returns the active candidate, or nil.
func (w *Workflow) Preview() *model.OptimizeResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preview == nil {
		return nil
	}
	p := *w.preview
	return &p
}
