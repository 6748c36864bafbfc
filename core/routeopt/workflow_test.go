package routeopt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/infra/logger"
)

func f64(v float64) *float64 { return &v }

type fakeRouteAPI struct {
	route        model.RouteData
	routeErr     error
	optimize     model.OptimizeResult
	optimizeErr  error
	applyErr     error
	optimizeHits int
	applyHits    int
	applied      []string
}

func (f *fakeRouteAPI) FetchRoute(ctx context.Context, techID, date string) (model.RouteData, error) {
	if f.routeErr != nil {
		return model.RouteData{}, f.routeErr
	}
	return f.route, nil
}

func (f *fakeRouteAPI) OptimizeRoute(ctx context.Context, techID, date string) (model.OptimizeResult, error) {
	f.optimizeHits++
	if f.optimizeErr != nil {
		return model.OptimizeResult{}, f.optimizeErr
	}
	return f.optimize, nil
}

func (f *fakeRouteAPI) ApplyOptimizedRoute(ctx context.Context, techID, date string, order []string) error {
	f.applyHits++
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = order
	return nil
}

func threeStops() model.RouteData {
	return model.RouteData{
		TechID: "t1",
		Date:   "2026-08-31",
		Stops: []model.RouteEntry{
			{ID: "s1", Position: 1, JobID: "j1", Latitude: f64(40.1), Longitude: f64(-74.1)},
			{ID: "s2", Position: 2, JobID: "j2", Latitude: f64(40.2), Longitude: f64(-74.2)},
			{ID: "s3", Position: 3, JobID: "j3"}, // no coordinates
		},
	}
}

func newViewing(t *testing.T, api *fakeRouteAPI) *Workflow {
	t.Helper()
	w, err := New(api, logger.NopLogger{}, nil)
	require.NoError(t, err)
	_, err = w.Load(context.Background(), "t1", "2026-08-31")
	require.NoError(t, err)
	return w
}

func TestOptimize_TooFewStopsIsLocalNoop(t *testing.T) {
	api := &fakeRouteAPI{route: model.RouteData{
		TechID: "t1", Date: "2026-08-31",
		Stops: []model.RouteEntry{{ID: "s1", Position: 1}},
	}}
	w := newViewing(t, api)

	_, err := w.Optimize(context.Background())
	if !errors.Is(err, ErrTooFewStops) {
		t.Fatalf("expected ErrTooFewStops, got %v", err)
	}
	if api.optimizeHits != 0 {
		t.Errorf("backend called for a single-stop route")
	}
}

func TestOptimize_NonImprovingNotApplicable(t *testing.T) {
	api := &fakeRouteAPI{
		route:    threeStops(),
		optimize: model.OptimizeResult{OptimizedOrder: []string{"s2", "s1", "s3"}, TimeSavedMinutes: 0},
	}
	w := newViewing(t, api)

	res, err := w.Optimize(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Improving())
	assert.False(t, w.CanApply(), "already-optimal routes offer no apply action")

	_, err = w.Apply(context.Background())
	if !errors.Is(err, ErrNotImproving) {
		t.Fatalf("expected ErrNotImproving, got %v", err)
	}
	if api.applyHits != 0 {
		t.Errorf("apply request sent for a non-improving candidate")
	}
}

func TestApply_CommitsOrderAndReloadsRoute(t *testing.T) {
	api := &fakeRouteAPI{
		route:    threeStops(),
		optimize: model.OptimizeResult{OptimizedOrder: []string{"s2", "s1", "s3"}, TimeSavedMinutes: 12},
	}
	w := newViewing(t, api)

	_, err := w.Optimize(context.Background())
	require.NoError(t, err)
	require.True(t, w.CanApply())

	_, err = w.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1", "s3"}, api.applied)
	assert.Equal(t, StateViewing, w.State())
	assert.Nil(t, w.Preview(), "preview cleared after apply")
}

func TestApply_FailureLeavesOrderIntact(t *testing.T) {
	api := &fakeRouteAPI{
		route:    threeStops(),
		optimize: model.OptimizeResult{OptimizedOrder: []string{"s3", "s2", "s1"}, TimeSavedMinutes: 9},
		applyErr: errors.New("route locked by another dispatcher"),
	}
	w := newViewing(t, api)
	before := w.Route()

	_, err := w.Optimize(context.Background())
	require.NoError(t, err)

	_, err = w.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route locked")

	// the previously committed order is completely unchanged and the stale
	// candidate cannot be retried
	assert.Equal(t, before.Stops, w.Route().Stops)
	assert.Nil(t, w.Preview())
	assert.Equal(t, StateViewing, w.State())
	_, err = w.Apply(context.Background())
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestDiscard_ReturnsToViewing(t *testing.T) {
	api := &fakeRouteAPI{
		route:    threeStops(),
		optimize: model.OptimizeResult{OptimizedOrder: []string{"s2", "s1", "s3"}, TimeSavedMinutes: 5},
	}
	w := newViewing(t, api)
	_, err := w.Optimize(context.Background())
	require.NoError(t, err)

	w.Discard()
	assert.Equal(t, StateViewing, w.State())
	assert.Nil(t, w.Preview())
	if api.applyHits != 0 {
		t.Errorf("discard must not reach the backend")
	}
}

func TestLoad_RejectsDuplicatePositions(t *testing.T) {
	api := &fakeRouteAPI{route: model.RouteData{
		TechID: "t1", Date: "2026-08-31",
		Stops: []model.RouteEntry{
			{ID: "s1", Position: 1},
			{ID: "s2", Position: 1},
		},
	}}
	w, err := New(api, logger.NopLogger{}, nil)
	require.NoError(t, err)
	_, err = w.Load(context.Background(), "t1", "2026-08-31")
	require.Error(t, err)
}

func TestFitViewport_SkipsStopsWithoutCoordinates(t *testing.T) {
	vp, ok := FitViewport(threeStops().Stops)
	require.True(t, ok)
	assert.Equal(t, 40.1, vp.MinLat)
	assert.Equal(t, 40.2, vp.MaxLat)
	assert.Equal(t, -74.2, vp.MinLng)
	assert.Equal(t, -74.1, vp.MaxLng)

	_, ok = FitViewport([]model.RouteEntry{{ID: "s1", Position: 1}})
	assert.False(t, ok, "no coordinates means no viewport")
}
