package model

import (
	"strings"
	"time"
)

// Time format constants shared by windows and exceptions.
const (
	ClockFormat = "15:04"      // HH:MM
	DateFormat  = "2006-01-02" // YYYY-MM-DD
)

// AvailabilityWindow is a recurring weekly open-hours rule.
// Windows are saved wholesale per business (replace-all, not patched).
type AvailabilityWindow struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	DayOfWeek  int       `json:"day_of_week"` // 0 = Sunday, matching time.Weekday
	StartTime  string    `json:"start_time"`  // HH:MM
	EndTime    string    `json:"end_time"`    // HH:MM
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

type ExceptionKind string

const (
	ExceptionClosed      ExceptionKind = "closed"
	ExceptionCustomHours ExceptionKind = "custom-hours"
)

// AvailabilityException overrides window-derived hours for a single date.
type AvailabilityException struct {
	ID         string        `json:"id"`
	BusinessID string        `json:"business_id"`
	Date       string        `json:"date"` // YYYY-MM-DD in the business timezone
	Kind       ExceptionKind `json:"kind"`
	StartTime  string        `json:"start_time,omitempty"` // HH:MM, custom-hours only
	EndTime    string        `json:"end_time,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

const (
	BusySourceManual         = "manual"
	busySourceCalendarPrefix = "calendar:"
)

// BusyBlock is an interval during which booking is disallowed regardless
// of window configuration.
type BusyBlock struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source"` // "manual" or "calendar:<provider>"
	CreatedAt  time.Time `json:"created_at"`
}

// CalendarOwned reports whether the block came from an external calendar
// sync and is therefore read-only for this engine.
func (b *BusyBlock) CalendarOwned() bool {
	return strings.HasPrefix(b.Source, busySourceCalendarPrefix)
}

// CalendarSource builds the source tag for a provider, e.g. "calendar:google".
func CalendarSource(provider string) string {
	return busySourceCalendarPrefix + provider
}

// BookingSettings are per-business knobs applied by the availability resolver.
type BookingSettings struct {
	BusinessID             string `json:"business_id"`
	BufferMinutes          int    `json:"buffer_minutes"`
	MinNoticeHours         int    `json:"min_notice_hours"`
	MaxDaysOut             int    `json:"max_days_out"`
	SlotGranularityMinutes int    `json:"slot_granularity_minutes"`
	Timezone               string `json:"timezone"` // IANA name
}

// DefaultSettings returns the knobs applied when a business saved none.
func DefaultSettings(businessID string) BookingSettings {
	return BookingSettings{
		BusinessID:             businessID,
		BufferMinutes:          0,
		MinNoticeHours:         0,
		MaxDaysOut:             60,
		SlotGranularityMinutes: 30,
		Timezone:               "UTC",
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (s BookingSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}
