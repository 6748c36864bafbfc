package model

// DispatchStats aggregates job counts by status for one viewed day.
type DispatchStats struct {
	Date       string  `json:"date"`
	Unassigned int     `json:"unassigned"`
	Assigned   int     `json:"assigned"`
	InProgress int     `json:"in_progress"`
	Complete   int     `json:"complete"`
	Cancelled  int     `json:"cancelled"`
	Revenue    float64 `json:"revenue"`
}

// ViewMode selects between the single-day and week dispatch views.
type ViewMode string

const (
	ViewModeDay  ViewMode = "day"
	ViewModeWeek ViewMode = "week"
)

// WeekSchedule maps dates (YYYY-MM-DD) to that day's route entries across
// all technicians.
type WeekSchedule map[string][]RouteEntry
