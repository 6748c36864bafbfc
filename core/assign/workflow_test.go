package assign

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/infra/logger"
)

type fakeAPI struct {
	mu        sync.Mutex
	suggs     map[string][]model.AssignmentSuggestion
	suggErr   error
	assignErr error
	assigned  []model.AssignRequest
	// block, when set, holds SuggestTechnicians until released; started is
	// signalled once a blocked call has begun
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAPI) SuggestTechnicians(ctx context.Context, jobID, date string) ([]model.AssignmentSuggestion, error) {
	f.mu.Lock()
	block, started := f.block, f.started
	f.mu.Unlock()
	if block != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-block
	}
	if f.suggErr != nil {
		return nil, f.suggErr
	}
	return f.suggs[jobID], nil
}

func (f *fakeAPI) AssignJob(ctx context.Context, req model.AssignRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned = append(f.assigned, req)
	return nil
}

func suggs(pairs ...any) []model.AssignmentSuggestion {
	var out []model.AssignmentSuggestion
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.AssignmentSuggestion{
			TechID: pairs[i].(string),
			Score:  pairs[i+1].(float64),
		})
	}
	return out
}

func TestRerank_PinnedTargetKeepsBackendOrder(t *testing.T) {
	// [B:80, A:60, C:40] with target C -> [C, B, A]: C moves to front while
	// B/A keep their backend-relative order.
	in := suggs("B", 80.0, "A", 60.0, "C", 40.0)
	out := Rerank(in, "C")

	ids := []string{out[0].TechID, out[1].TechID, out[2].TechID}
	assert.Equal(t, []string{"C", "B", "A"}, ids)
}

func TestRerank_UnsortedBackendFallsBackToScore(t *testing.T) {
	// backend order not score-descending: descending score kicks in for the
	// non-target entries
	in := suggs("A", 60.0, "B", 80.0, "C", 40.0)
	out := Rerank(in, "C")

	ids := []string{out[0].TechID, out[1].TechID, out[2].TechID}
	assert.Equal(t, []string{"C", "B", "A"}, ids)
}

func TestRerank_Stable(t *testing.T) {
	in := suggs("A", 50.0, "B", 50.0, "D", 50.0)
	out := Rerank(in, "B")
	ids := []string{out[0].TechID, out[1].TechID, out[2].TechID}
	assert.Equal(t, []string{"B", "A", "D"}, ids, "equal-score entries must not swap")
}

func TestSelect_ReturnsRankedSuggestions(t *testing.T) {
	api := &fakeAPI{suggs: map[string][]model.AssignmentSuggestion{
		"j1": suggs("B", 80.0, "A", 60.0),
	}}
	w, err := New(api, func() {}, logger.NopLogger{}, nil)
	require.NoError(t, err)

	got, err := w.Select(context.Background(), model.Job{ID: "j1"}, "2026-08-31", "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, StateReady, w.State())
	assert.Equal(t, "j1", w.ActiveJobID())
}

func TestSelect_StaleSelectionDiscarded(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	api := &fakeAPI{
		suggs: map[string][]model.AssignmentSuggestion{
			"j1": suggs("A", 90.0),
			"j2": suggs("B", 70.0),
		},
		block:   block,
		started: started,
	}
	w, err := New(api, func() {}, logger.NopLogger{}, nil)
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := w.Select(context.Background(), model.Job{ID: "j1"}, "2026-08-31", "")
		firstDone <- err
	}()
	<-started // first fetch is in flight

	// second selection supersedes the first
	api.mu.Lock()
	api.block = nil
	api.mu.Unlock()
	_, err = w.Select(context.Background(), model.Job{ID: "j2"}, "2026-08-31", "")
	require.NoError(t, err)

	close(block)
	if err := <-firstDone; !errors.Is(err, ErrStaleSelection) {
		t.Fatalf("expected ErrStaleSelection, got %v", err)
	}

	// final state reflects only the second selection
	assert.Equal(t, "j2", w.ActiveJobID())
	got := w.Suggestions()
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].TechID)
}

func TestCommit_SuccessClosesAndReloads(t *testing.T) {
	api := &fakeAPI{suggs: map[string][]model.AssignmentSuggestion{
		"j1": suggs("A", 90.0),
	}}
	reloads := 0
	w, err := New(api, func() { reloads++ }, logger.NopLogger{}, nil)
	require.NoError(t, err)

	_, err = w.Select(context.Background(), model.Job{ID: "j1", EstimatedHours: 2.5}, "2026-08-31", "")
	require.NoError(t, err)

	require.NoError(t, w.Commit(context.Background(), "A", "09:00", 0))
	assert.Equal(t, StateIdle, w.State())
	assert.Equal(t, 1, reloads, "a committed assignment must force a snapshot reload")

	require.Len(t, api.assigned, 1)
	req := api.assigned[0]
	assert.Equal(t, "j1", req.JobID)
	assert.Equal(t, "A", req.TechID)
	assert.Equal(t, 2.5, req.EstimatedHours, "zero hours defaults to the job estimate")
}

func TestCommit_FailureKeepsModalOpen(t *testing.T) {
	api := &fakeAPI{
		suggs:     map[string][]model.AssignmentSuggestion{"j1": suggs("A", 90.0)},
		assignErr: errors.New("technician is unavailable on this date"),
	}
	reloads := 0
	w, err := New(api, func() { reloads++ }, logger.NopLogger{}, nil)
	require.NoError(t, err)

	_, err = w.Select(context.Background(), model.Job{ID: "j1"}, "2026-08-31", "")
	require.NoError(t, err)

	err = w.Commit(context.Background(), "A", "09:00", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "technician is unavailable")
	assert.Equal(t, StateReady, w.State(), "failed commit stays in ready for retry")
	assert.Equal(t, 0, reloads, "no reload before the server confirms")
	assert.NotEmpty(t, w.Suggestions())
}

func TestCommit_WithoutSelection(t *testing.T) {
	w, err := New(&fakeAPI{}, func() {}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	if err := w.Commit(context.Background(), "A", "09:00", 1); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestCancel_DiscardsSelection(t *testing.T) {
	api := &fakeAPI{suggs: map[string][]model.AssignmentSuggestion{"j1": suggs("A", 90.0)}}
	w, err := New(api, func() {}, logger.NopLogger{}, nil)
	require.NoError(t, err)

	_, err = w.Select(context.Background(), model.Job{ID: "j1"}, "2026-08-31", "")
	require.NoError(t, err)

	w.Cancel()
	assert.Equal(t, StateIdle, w.State())
	assert.Empty(t, w.ActiveJobID())
	assert.Empty(t, w.Suggestions())
}
