package board

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/infra/logger"
)

type fakeSnapshotAPI struct {
	queueErr error
	techErr  error
	statsErr error
	weekErr  error
	calls    map[string]int
}

func (f *fakeSnapshotAPI) bump(name string) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeSnapshotAPI) FetchQueue(ctx context.Context, date string) ([]model.Job, []model.Job, error) {
	f.bump("queue")
	if f.queueErr != nil {
		return nil, nil, f.queueErr
	}
	return []model.Job{{ID: "j1", Status: model.JobUnassigned}},
		[]model.Job{{ID: "j2", Status: model.JobAssigned}}, nil
}

func (f *fakeSnapshotAPI) FetchTechnicians(ctx context.Context, activeOnly bool) ([]model.Technician, error) {
	f.bump("techs")
	if f.techErr != nil {
		return nil, f.techErr
	}
	return []model.Technician{{ID: "t1", Status: model.TechAvailable}}, nil
}

func (f *fakeSnapshotAPI) FetchStats(ctx context.Context, date string) (model.DispatchStats, error) {
	f.bump("stats")
	if f.statsErr != nil {
		return model.DispatchStats{}, f.statsErr
	}
	return model.DispatchStats{Date: date, Unassigned: 1, Assigned: 1}, nil
}

func (f *fakeSnapshotAPI) FetchWeekSchedule(ctx context.Context, weekStart string) (model.WeekSchedule, error) {
	f.bump("week")
	if f.weekErr != nil {
		return nil, f.weekErr
	}
	return model.WeekSchedule{weekStart: nil}, nil
}

func TestLoader_DayViewSkipsWeekFetch(t *testing.T) {
	api := &fakeSnapshotAPI{}
	l := NewLoader(api, true, logger.NopLogger{}, nil)

	snap := l.Load(context.Background(), "2026-08-31", model.ViewModeDay)
	if snap.Errs.Any() {
		t.Fatalf("unexpected section errors: %+v", snap.Errs)
	}
	if api.calls["week"] != 0 {
		t.Errorf("week schedule fetched in day view")
	}
	if api.calls["queue"] != 1 || api.calls["techs"] != 1 || api.calls["stats"] != 1 {
		t.Errorf("unexpected fetch counts: %v", api.calls)
	}
	if snap.Stats == nil || snap.Stats.Unassigned != 1 {
		t.Errorf("stats missing: %+v", snap.Stats)
	}
}

func TestLoader_WeekViewFetchesSchedule(t *testing.T) {
	api := &fakeSnapshotAPI{}
	l := NewLoader(api, true, logger.NopLogger{}, nil)

	snap := l.Load(context.Background(), "2026-08-31", model.ViewModeWeek)
	if api.calls["week"] != 1 {
		t.Fatalf("week schedule not fetched")
	}
	if snap.Week == nil {
		t.Errorf("week section empty")
	}
}

func TestLoader_PartialFailureDegradesOneSection(t *testing.T) {
	api := &fakeSnapshotAPI{techErr: errors.New("roster down")}
	l := NewLoader(api, true, logger.NopLogger{}, nil)

	snap := l.Load(context.Background(), "2026-08-31", model.ViewModeDay)
	if snap.Errs.Technicians == nil {
		t.Fatal("expected technicians section error")
	}
	if snap.Errs.Queue != nil || snap.Errs.Stats != nil {
		t.Errorf("healthy sections errored: %+v", snap.Errs)
	}
	if len(snap.Unassigned) != 1 {
		t.Errorf("queue section missing despite roster failure")
	}
}

func TestLoader_ReloadIsIdempotent(t *testing.T) {
	api := &fakeSnapshotAPI{}
	l := NewLoader(api, true, logger.NopLogger{}, nil)

	a := l.Load(context.Background(), "2026-08-31", model.ViewModeDay)
	b := l.Load(context.Background(), "2026-08-31", model.ViewModeDay)
	assert.Equal(t, a.Unassigned, b.Unassigned)
	assert.Equal(t, a.AssignedToday, b.AssignedToday)
}

func TestWeekStart(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2026-08-31", "2026-08-30"}, // Monday -> previous Sunday
		{"2026-08-30", "2026-08-30"}, // Sunday anchors itself
		{"2026-09-05", "2026-08-30"}, // Saturday
		{"not-a-date", "not-a-date"},
	}
	for _, c := range cases {
		if got := WeekStart(c.in); got != c.want {
			t.Errorf("WeekStart(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}
