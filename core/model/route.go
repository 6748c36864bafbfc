package model

import "fmt"

// RouteEntry is one scheduled stop within a technician's ordered daily route.
type RouteEntry struct {
	ID            string    `json:"id"`
	Position      int       `json:"position"` // 1..N within the day
	JobID         string    `json:"job_id"`
	CustomerName  string    `json:"customer_name"`
	Address       string    `json:"address"`
	ArrivalTime   string    `json:"arrival_time,omitempty"`
	DepartureTime string    `json:"departure_time,omitempty"`
	TravelMinutes float64   `json:"travel_minutes"` // from the previous stop
	Status        JobStatus `json:"status"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the stop can be placed on a map.
func (e RouteEntry) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// RouteData is a technician's full ordered stop list for one day. The list is
// the unit of consistency: partial reorderings are never applied.
type RouteData struct {
	TechID       string       `json:"tech_id"`
	Date         string       `json:"date"`
	Stops        []RouteEntry `json:"stops"`
	TotalMinutes float64      `json:"total_minutes"`
	TotalMiles   float64      `json:"total_miles"`
}

// Validate checks that the stop list forms a total order with no duplicate
// positions.
func (r RouteData) Validate() error {
	seen := make(map[int]struct{}, len(r.Stops))
	for _, s := range r.Stops {
		if s.Position < 1 || s.Position > len(r.Stops) {
			return fmt.Errorf("route %s/%s: stop %s has position %d out of range 1..%d",
				r.TechID, r.Date, s.ID, s.Position, len(r.Stops))
		}
		if _, dup := seen[s.Position]; dup {
			return fmt.Errorf("route %s/%s: duplicate position %d", r.TechID, r.Date, s.Position)
		}
		seen[s.Position] = struct{}{}
	}
	return nil
}

// OptimizeResult is the backend's candidate reordering for one route.
type OptimizeResult struct {
	TechID           string   `json:"tech_id"`
	Date             string   `json:"date"`
	OptimizedOrder   []string `json:"optimized_order"` // route entry ids
	TimeSavedMinutes float64  `json:"time_saved_minutes"`
}

// Improving reports whether applying the candidate order would save time.
// Non-improving candidates are never offered for apply.
func (o OptimizeResult) Improving() bool {
	return o.TimeSavedMinutes > 0
}
