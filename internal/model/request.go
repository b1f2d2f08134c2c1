package model

import "time"

type RequestStatus string

const (
	StatusRequested    RequestStatus = "requested"     // new inbound submission
	StatusProposedTime RequestStatus = "proposed_time" // business suggested a time window
	StatusApproved     RequestStatus = "approved"
	StatusDeclined     RequestStatus = "declined"
	StatusCompleted    RequestStatus = "completed" // terminal
	StatusCanceled     RequestStatus = "canceled"  // terminal
)

// Valid reports whether s is a known status value.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusProposedTime, StatusApproved, StatusDeclined, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether s has no outbound transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// CustomerInfo is inert contact payload; the engine never interprets it.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
}

type BookingRequest struct {
	ID         string       `json:"id"`
	BusinessID string       `json:"business_id"`
	Customer   CustomerInfo `json:"customer"`

	OfferingID *string `json:"offering_id,omitempty"` // nil means "no preference"

	PreferredStart *time.Time `json:"preferred_start,omitempty"` // customer-suggested, not authoritative
	ProposedStart  *time.Time `json:"proposed_start,omitempty"`  // business-suggested/confirmed window
	ProposedEnd    *time.Time `json:"proposed_end,omitempty"`

	Status        RequestStatus `json:"status"`
	InternalNotes string        `json:"internal_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Filled for convenience on read paths, not persisted on the request row.
	Offering *Offering `json:"offering,omitempty"`
}

// HasProposedWindow reports whether both proposed bounds are set.
func (r *BookingRequest) HasProposedWindow() bool {
	return r.ProposedStart != nil && r.ProposedEnd != nil
}
