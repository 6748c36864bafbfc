package model

// TechStatus is the live field status of a technician.
type TechStatus string

const (
	TechAvailable TechStatus = "available"
	TechAssigned  TechStatus = "assigned"
	TechEnroute   TechStatus = "enroute"
	TechOnSite    TechStatus = "on_site"
	TechComplete  TechStatus = "complete"
	TechOffDuty   TechStatus = "off_duty"
)

// Valid reports whether the status is a known technician state.
func (s TechStatus) Valid() bool {
	switch s {
	case TechAvailable, TechAssigned, TechEnroute, TechOnSite, TechComplete, TechOffDuty:
		return true
	}
	return false
}

// Working reports whether the status implies an active job. A technician's
// CurrentJobID may be non-empty only while Working is true.
func (s TechStatus) Working() bool {
	return s == TechAssigned || s == TechEnroute || s == TechOnSite
}

// Location is a live coordinate pair pushed over the feed.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Technician represents one member of the dispatch roster. Status and
// location are mutated only by push events or snapshot reloads; the client
// never invents a technician state locally.
type Technician struct {
	ID           string     `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Status       TechStatus `json:"status"`
	Color        string     `json:"color"`
	CurrentJobID string     `json:"current_job_id,omitempty"`
	Location     *Location  `json:"location,omitempty"`
}

// FullName returns the display name for roster entries.
func (t Technician) FullName() string {
	if t.FirstName == "" {
		return t.LastName
	}
	if t.LastName == "" {
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}
