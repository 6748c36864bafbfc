package board

import (
	"context"
	"sync"
	"time"

	"github.com/fieldserve/dispatch/core/logger"
	"github.com/fieldserve/dispatch/core/metrics"
	"github.com/fieldserve/dispatch/core/model"
)

// SnapshotAPI is the REST surface the loader pulls from.
type SnapshotAPI interface {
	FetchQueue(ctx context.Context, date string) (unassigned, assignedToday []model.Job, err error)
	FetchTechnicians(ctx context.Context, activeOnly bool) ([]model.Technician, error)
	FetchStats(ctx context.Context, date string) (model.DispatchStats, error)
	FetchWeekSchedule(ctx context.Context, weekStart string) (model.WeekSchedule, error)
}

// Loader performs the full REST pull of dispatch state. Safe to invoke
// repeatedly: manual refresh, the periodic timer, and post-event
// reconciliation all share one code path. Results fully replace board
// sections; nothing is appended.
type Loader struct {
	api        SnapshotAPI
	activeOnly bool
	log        logger.Logger
	sink       metrics.BoardSink
}

// NewLoader creates a loader. activeOnly limits the roster fetch to active
// technicians. A nil sink disables metrics.
func NewLoader(api SnapshotAPI, activeOnly bool, log logger.Logger, sink metrics.BoardSink) *Loader {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Loader{api: api, activeOnly: activeOnly, log: log, sink: sink}
}

// Load runs the three (four, in week view) section fetches concurrently and
// assembles one Snapshot. A failing section is reported in Errs so the board
// keeps its previous data for that section only; the rest still refresh.
func (l *Loader) Load(ctx context.Context, date string, mode model.ViewMode) Snapshot {
	start := time.Now()
	snap := Snapshot{Date: date, ViewMode: mode}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		snap.Unassigned, snap.AssignedToday, snap.Errs.Queue = l.api.FetchQueue(ctx, date)
	}()
	go func() {
		defer wg.Done()
		snap.Technicians, snap.Errs.Technicians = l.api.FetchTechnicians(ctx, l.activeOnly)
	}()
	go func() {
		defer wg.Done()
		var stats model.DispatchStats
		stats, snap.Errs.Stats = l.api.FetchStats(ctx, date)
		if snap.Errs.Stats == nil {
			snap.Stats = &stats
		}
	}()
	if mode == model.ViewModeWeek {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap.Week, snap.Errs.Week = l.api.FetchWeekSchedule(ctx, WeekStart(date))
		}()
	}
	wg.Wait()

	if err := l.sink.RecordSnapshot(metrics.SnapshotRecord{
		Date:       date,
		ViewMode:   mode,
		Duration:   time.Since(start),
		Partial:    snap.Errs.Any(),
		Unassigned: len(snap.Unassigned),
		Assigned:   len(snap.AssignedToday),
		Techs:      len(snap.Technicians),
		Time:       time.Now(),
	}); err != nil {
		l.log.Errorf("metrics error: %v", err)
	}
	return snap
}

// WeekStart returns the Sunday on or before the given YYYY-MM-DD date, the
// backend's week anchor. Unparseable dates pass through unchanged and the
// backend reports the error.
func WeekStart(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	t = t.AddDate(0, 0, -int(t.Weekday()))
	return t.Format("2006-01-02")
}
