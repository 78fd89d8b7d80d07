package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Provider is the scheduler's view of a bookable resource from the provider directory.
type Provider struct {
	ID          string         `db:"id" json:"id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	Timezone    string         `db:"timezone" json:"timezone"`
	Equipment   pq.StringArray `db:"equipment" json:"equipment"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Location resolves the provider timezone, falling back when unset.
func (p *Provider) Location(fallback *time.Location) (*time.Location, error) {
	if p == nil || strings.TrimSpace(p.Timezone) == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load provider timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// AvailabilityTemplate is one weekday of a provider's recurring schedule.
type AvailabilityTemplate struct {
	ID                string    `db:"id" json:"id"`
	ProviderID        string    `db:"provider_id" json:"provider_id"`
	DayOfWeek         int       `db:"day_of_week" json:"day_of_week"`
	StartTime         string    `db:"start_time" json:"start_time"`
	EndTime           string    `db:"end_time" json:"end_time"`
	BreakStart        *string   `db:"break_start" json:"break_start,omitempty"`
	BreakEnd          *string   `db:"break_end" json:"break_end,omitempty"`
	IsAvailable       bool      `db:"is_available" json:"is_available"`
	MaxBookingsPerDay *int      `db:"max_bookings_per_day" json:"max_bookings_per_day,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// AvailabilityException overrides the weekly template for a single date.
type AvailabilityException struct {
	ID                string    `db:"id" json:"id"`
	ProviderID        string    `db:"provider_id" json:"provider_id"`
	Date              time.Time `db:"date" json:"date"`
	IsAvailable       bool      `db:"is_available" json:"is_available"`
	StartTime         *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime           *string   `db:"end_time" json:"end_time,omitempty"`
	BreakStart        *string   `db:"break_start" json:"break_start,omitempty"`
	BreakEnd          *string   `db:"break_end" json:"break_end,omitempty"`
	MaxBookingsPerDay *int      `db:"max_bookings_per_day" json:"max_bookings_per_day,omitempty"`
	Reason            *string   `db:"reason" json:"reason,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DateKey formats the exception date as YYYY-MM-DD.
func (e AvailabilityException) DateKey() string {
	return e.Date.Format("2006-01-02")
}
