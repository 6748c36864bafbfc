package model

// JobStatus is the lifecycle state of a dispatchable job.
type JobStatus string

const (
	JobUnassigned JobStatus = "unassigned"
	JobAssigned   JobStatus = "assigned"
	JobInProgress JobStatus = "in_progress"
	JobComplete   JobStatus = "complete"
	JobCancelled  JobStatus = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobUnassigned, JobAssigned, JobInProgress, JobComplete, JobCancelled:
		return true
	}
	return false
}

// Job is a dispatchable work item. The client holds a read-mostly projection;
// the backend owns the record.
type Job struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"` // install, service, ...
	CustomerName   string    `json:"customer_name"`
	Address        string    `json:"address"`
	EstimatedHours float64   `json:"estimated_hours"`
	Total          float64   `json:"total"`
	Status         JobStatus `json:"status"`
	ScheduledDate  string    `json:"scheduled_date,omitempty"` // YYYY-MM-DD
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the job carries a usable location.
func (j Job) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}
