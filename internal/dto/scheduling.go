package dto

import (
	"time"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

// OptimalSlotsRequest asks for the best free slots of a provider.
type OptimalSlotsRequest struct {
	ProviderID        string          `json:"providerId" validate:"required"`
	DurationMinutes   int             `json:"durationMinutes" validate:"required,min=1"`
	Priority          models.Priority `json:"priority" validate:"required,oneof=low medium high urgent"`
	RequiredEquipment []string        `json:"requiredEquipment" validate:"omitempty,dive,required"`
	PreferredWindows  []models.Window `json:"preferredWindows" validate:"omitempty,dive"`
	// From defaults to now; the search spans the configured number of days.
	From *time.Time `json:"from"`
}

// SlotResponse is one ranked candidate.
type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score int       `json:"score"`
}

// OptimalSlotsResponse lists candidates best first.
type OptimalSlotsResponse struct {
	ProviderID string         `json:"providerId"`
	Slots      []SlotResponse `json:"slots"`
}

// ScheduleRequest books a specific slot.
type ScheduleRequest struct {
	ProviderID        string          `json:"providerId" validate:"required"`
	RequesterID       string          `json:"requesterId" validate:"required"`
	StartTime         time.Time       `json:"startTime" validate:"required"`
	DurationMinutes   int             `json:"durationMinutes" validate:"required,min=1"`
	Priority          models.Priority `json:"priority" validate:"required,oneof=low medium high urgent"`
	RequiredEquipment []string        `json:"requiredEquipment" validate:"omitempty,dive,required"`
	PreferredWindows  []models.Window `json:"preferredWindows" validate:"omitempty,dive"`
	AppointmentType   string          `json:"appointmentType" validate:"omitempty,max=64"`
	Notes             *string         `json:"notes" validate:"omitempty,max=2000"`
}

// RescheduleRequest moves a booking to a new start.
type RescheduleRequest struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	Reason    string    `json:"reason" validate:"omitempty,max=500"`
}

// CancelRequest cancels a booking.
type CancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// BookingListQuery filters a provider's bookings.
type BookingListQuery struct {
	Status    []string `form:"status" validate:"omitempty,dive,oneof=requested scheduled completed cancelled rescheduled"`
	From      string   `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string   `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Page      int      `form:"page" validate:"omitempty,min=1"`
	PageSize  int      `form:"pageSize" validate:"omitempty,min=1,max=100"`
	SortOrder string   `form:"sortOrder" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// DateRangeQuery selects whole calendar days in the provider's timezone.
type DateRangeQuery struct {
	From string `form:"from" validate:"required,datetime=2006-01-02"`
	To   string `form:"to" validate:"required,datetime=2006-01-02"`
}

// ExportQuery selects the agenda range and document format.
type ExportQuery struct {
	DateRangeQuery
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// IntervalResponse is one open interval.
type IntervalResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TemplateDay is one weekday of a weekly template.
type TemplateDay struct {
	DayOfWeek         int     `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime         string  `json:"startTime" validate:"required_if=IsAvailable true"`
	EndTime           string  `json:"endTime" validate:"required_if=IsAvailable true"`
	BreakStart        *string `json:"breakStart"`
	BreakEnd          *string `json:"breakEnd"`
	IsAvailable       bool    `json:"isAvailable"`
	MaxBookingsPerDay *int    `json:"maxBookingsPerDay" validate:"omitempty,min=1"`
}

// ReplaceTemplatesRequest replaces a provider's whole weekly template.
type ReplaceTemplatesRequest struct {
	Days []TemplateDay `json:"days" validate:"max=7,dive"`
}

// UpsertExceptionRequest overrides the template for one date.
type UpsertExceptionRequest struct {
	IsAvailable       bool    `json:"isAvailable"`
	StartTime         *string `json:"startTime"`
	EndTime           *string `json:"endTime"`
	BreakStart        *string `json:"breakStart"`
	BreakEnd          *string `json:"breakEnd"`
	MaxBookingsPerDay *int    `json:"maxBookingsPerDay" validate:"omitempty,min=1"`
	Reason            *string `json:"reason" validate:"omitempty,max=500"`
}

// ProposalResponse is a stored optimization proposal.
type ProposalResponse struct {
	ProposalID  string    `json:"proposalId"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Proposal    any       `json:"proposal"`
}

// AppliedMove reports a move that landed.
type AppliedMove struct {
	BookingID    string    `json:"bookingId"`
	NewBookingID string    `json:"newBookingId"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Score        int       `json:"score"`
}

// SkippedMove reports a move that no longer applied.
type SkippedMove struct {
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason"`
}

// ApplyProposalResponse summarises an apply run.
type ApplyProposalResponse struct {
	ProposalID string        `json:"proposalId"`
	Applied    []AppliedMove `json:"applied"`
	Skipped    []SkippedMove `json:"skipped"`
}
