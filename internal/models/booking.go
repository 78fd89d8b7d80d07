package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Priority ranks how urgently a booking must be seated.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the ordinal of the priority, 0 for unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Multiplier is the scoring factor applied to the base score.
func (p Priority) Multiplier() float64 {
	switch p {
	case PriorityUrgent:
		return 2.0
	case PriorityHigh:
		return 1.5
	case PriorityMedium:
		return 1.0
	case PriorityLow:
		return 0.5
	default:
		return 0
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return p.Rank() > 0 }

// Displaceable reports whether bookings of this priority may be moved to seat others.
func (p Priority) Displaceable() bool {
	return p == PriorityLow || p == PriorityMedium
}

// BookingStatus describes where a booking is in its lifecycle.
type BookingStatus string

const (
	BookingStatusRequested   BookingStatus = "requested"
	BookingStatusScheduled   BookingStatus = "scheduled"
	BookingStatusCompleted   BookingStatus = "completed"
	BookingStatusCancelled   BookingStatus = "cancelled"
	BookingStatusRescheduled BookingStatus = "rescheduled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusRequested: {BookingStatusScheduled, BookingStatusCancelled},
	BookingStatusScheduled: {BookingStatusCompleted, BookingStatusCancelled, BookingStatusRescheduled},
}

// CanTransition reports whether the status may move to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Window is a requester supplied time range used for scoring.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Windows persists as JSONB.
type Windows []Window

// Value implements driver.Valuer.
func (w Windows) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner.
func (w *Windows) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return fmt.Errorf("unsupported windows type %T", src)
	}
}

// Booking represents a reservation on a provider calendar.
type Booking struct {
	ID                 string         `db:"id" json:"id"`
	ProviderID         string         `db:"provider_id" json:"provider_id"`
	RequesterID        string         `db:"requester_id" json:"requester_id"`
	StartTime          time.Time      `db:"start_time" json:"start_time"`
	EndTime            time.Time      `db:"end_time" json:"end_time"`
	DurationMinutes    int            `db:"duration_minutes" json:"duration_minutes"`
	Priority           Priority       `db:"priority" json:"priority"`
	RequiredEquipment  pq.StringArray `db:"required_equipment" json:"required_equipment"`
	PreferredWindows   Windows        `db:"preferred_windows" json:"preferred_windows"`
	Status             BookingStatus  `db:"status" json:"status"`
	SchedulingScore    int            `db:"scheduling_score" json:"scheduling_score"`
	AppointmentType    string         `db:"appointment_type" json:"appointment_type,omitempty"`
	Notes              *string        `db:"notes" json:"notes,omitempty"`
	CancellationReason *string        `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RescheduledFromID  *string        `db:"rescheduled_from_id" json:"rescheduled_from_id,omitempty"`
	LastRescheduledAt  *time.Time     `db:"last_rescheduled_at" json:"last_rescheduled_at,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// Duration returns the booked length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	ProviderID string
	Status     []BookingStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
	SortOrder  string
}

// BookingEventType identifies transitions reported to the audit service.
type BookingEventType string

const (
	BookingEventRescheduled BookingEventType = "booking.rescheduled"
	BookingEventCancelled   BookingEventType = "booking.cancelled"
)

// BookingEvent is delivered to the audit and notification collaborator.
type BookingEvent struct {
	Type        BookingEventType `json:"type"`
	BookingID   string           `json:"booking_id"`
	ProviderID  string           `json:"provider_id"`
	RequesterID string           `json:"requester_id"`
	OldStart    time.Time        `json:"old_start"`
	OldEnd      time.Time        `json:"old_end"`
	NewStart    *time.Time       `json:"new_start,omitempty"`
	NewEnd      *time.Time       `json:"new_end,omitempty"`
	NewBooking  string           `json:"new_booking_id,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}
