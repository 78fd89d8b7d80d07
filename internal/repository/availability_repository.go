package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

// AvailabilityRepository stores weekly templates and dated exceptions.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListTemplates returns a provider's weekly template ordered by weekday.
func (r *AvailabilityRepository) ListTemplates(ctx context.Context, providerID string) ([]models.AvailabilityTemplate, error) {
	const query = `SELECT id, provider_id, day_of_week, start_time, end_time, break_start, break_end, is_available, max_bookings_per_day, updated_at
        FROM availability_templates WHERE provider_id = $1 ORDER BY day_of_week`
	var rows []models.AvailabilityTemplate
	if err := r.db.SelectContext(ctx, &rows, query, providerID); err != nil {
		return nil, fmt.Errorf("list availability templates: %w", err)
	}
	return rows, nil
}

// ReplaceTemplates swaps the whole weekly template of a provider in one transaction.
func (r *AvailabilityRepository) ReplaceTemplates(ctx context.Context, providerID string, rows []models.AvailabilityTemplate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace templates: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM availability_templates WHERE provider_id = $1`, providerID); err != nil {
		return fmt.Errorf("clear availability templates: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO availability_templates (id, provider_id, day_of_week, start_time, end_time, break_start, break_end, is_available, max_bookings_per_day, updated_at)
        VALUES (:id, :provider_id, :day_of_week, :start_time, :end_time, :break_start, :break_end, :is_available, :max_bookings_per_day, :updated_at)`
	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.ProviderID = providerID
		row.UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, insert, row); err != nil {
			return fmt.Errorf("insert availability template day %d: %w", row.DayOfWeek, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace templates: %w", err)
	}
	return nil
}

// ListExceptions returns the exceptions dated within [from, to].
func (r *AvailabilityRepository) ListExceptions(ctx context.Context, providerID string, from, to time.Time) ([]models.AvailabilityException, error) {
	query, args, err := psql.Select("id", "provider_id", "date", "is_available", "start_time", "end_time",
		"break_start", "break_end", "max_bookings_per_day", "reason", "updated_at").
		From("availability_exceptions").
		Where(sq.Eq{"provider_id": providerID}).
		Where(sq.GtOrEq{"date": from.Format("2006-01-02")}).
		Where(sq.LtOrEq{"date": to.Format("2006-01-02")}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list exceptions query: %w", err)
	}
	var rows []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	return rows, nil
}

// UpsertException creates or replaces the exception for a provider and date.
func (r *AvailabilityRepository) UpsertException(ctx context.Context, exception *models.AvailabilityException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	exception.UpdatedAt = time.Now().UTC()

	const query = `INSERT INTO availability_exceptions (id, provider_id, date, is_available, start_time, end_time, break_start, break_end, max_bookings_per_day, reason, updated_at)
        VALUES (:id, :provider_id, :date, :is_available, :start_time, :end_time, :break_start, :break_end, :max_bookings_per_day, :reason, :updated_at)
        ON CONFLICT (provider_id, date) DO UPDATE
        SET is_available = EXCLUDED.is_available,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            break_start = EXCLUDED.break_start,
            break_end = EXCLUDED.break_end,
            max_bookings_per_day = EXCLUDED.max_bookings_per_day,
            reason = EXCLUDED.reason,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		return fmt.Errorf("upsert availability exception: %w", err)
	}
	return nil
}
