package model

// AssignmentSuggestion is a backend-ranked candidate technician for an
// unassigned job. Suggestions are ephemeral: they live for one job selection
// and are never cached across selections.
type AssignmentSuggestion struct {
	TechID     string   `json:"tech_id"`
	TechName   string   `json:"tech_name"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons"`
	ETAMinutes *float64 `json:"eta_minutes,omitempty"`
}

// AssignRequest is the commit command for a chosen suggestion.
type AssignRequest struct {
	JobID          string  `json:"job_id"`
	TechID         string  `json:"tech_id"`
	ScheduledDate  string  `json:"scheduled_date"`
	StartTime      string  `json:"start_time"`
	EstimatedHours float64 `json:"estimated_hours"`
}
