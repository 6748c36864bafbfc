package events

import (
	"encoding/json"
	"fmt"

	"github.com/fieldserve/dispatch/core/model"
)

// Event is any message pushed over the live channel.
type Event interface {
	// Seq is the server-side sequence marker, monotonically increasing per
	// business. Used to detect and discard stale or duplicate pushes.
	Seq() uint64
}

// Wire type discriminators, one per message type.
const (
	TypeTechLocation = "tech_location"
	TypeTechStatus   = "tech_status"
	TypeJobAssigned  = "job_assigned"
	TypeJobStatus    = "job_status"
)

// TechLocation carries a live position update for one technician.
type TechLocation struct {
	Sequence  uint64           `json:"seq"`
	TechID    string           `json:"tech_id"`
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Status    model.TechStatus `json:"status,omitempty"`
}

func (e TechLocation) Seq() uint64 { return e.Sequence }

// TechStatus carries a status transition for one technician, optionally with
// the job it now relates to.
type TechStatus struct {
	Sequence uint64           `json:"seq"`
	TechID   string           `json:"tech_id"`
	Status   model.TechStatus `json:"status"`
	JobID    string           `json:"job_id,omitempty"`
}

func (e TechStatus) Seq() uint64 { return e.Sequence }

// JobAssigned signals that a job was assigned to a technician. Structural:
// the unassigned/assigned partition changed shape and the payload does not
// carry enough to re-derive membership locally.
type JobAssigned struct {
	Sequence uint64 `json:"seq"`
	JobID    string `json:"job_id"`
	TechID   string `json:"tech_id"`
}

func (e JobAssigned) Seq() uint64 { return e.Sequence }

// JobStatusChanged signals a job lifecycle transition. Structural, same as
// JobAssigned.
type JobStatusChanged struct {
	Sequence uint64          `json:"seq"`
	JobID    string          `json:"job_id"`
	Status   model.JobStatus `json:"status"`
}

func (e JobStatusChanged) Seq() uint64 { return e.Sequence }

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one wire message into its typed event.
func Decode(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeTechLocation:
		var e TechLocation
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e, nil
	case TypeTechStatus:
		var e TechStatus
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e, nil
	case TypeJobAssigned:
		var e JobAssigned
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e, nil
	case TypeJobStatus:
		var e JobStatusChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// TypeOf returns the wire discriminator for a typed event.
func TypeOf(e Event) string {
	switch e.(type) {
	case TechLocation:
		return TypeTechLocation
	case TechStatus:
		return TypeTechStatus
	case JobAssigned:
		return TypeJobAssigned
	case JobStatusChanged:
		return TypeJobStatus
	default:
		return "unknown"
	}
}

// Structural reports whether the event implies a list-membership change that
// cannot be patched locally.
func Structural(e Event) bool {
	switch e.(type) {
	case JobAssigned, JobStatusChanged:
		return true
	}
	return false
}
