package model

import "time"

type ActorKind string

const (
	ActorStaff  ActorKind = "staff"
	ActorSystem ActorKind = "system"
)

// AuditLogEntry records one accepted status transition. Entries are
// append-only: corrections are new entries, never updates.
type AuditLogEntry struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	Actor      ActorKind     `json:"actor"`
	FromStatus RequestStatus `json:"from_status"`
	ToStatus   RequestStatus `json:"to_status"`
	Action     string        `json:"action"`
	Timestamp  time.Time     `json:"timestamp"`
	Notes      string        `json:"notes,omitempty"`
}
