package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
)

// ErrStaleBooking reports that a conditional status update matched no row.
var ErrStaleBooking = errors.New("booking status changed concurrently")

var bookingColumns = []string{
	"id", "provider_id", "requester_id", "start_time", "end_time", "duration_minutes", "priority",
	"required_equipment", "preferred_windows", "status", "scheduling_score", "appointment_type",
	"notes", "cancellation_reason", "rescheduled_from_id", "last_rescheduled_at", "created_at", "updated_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// BookingRepository persists bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const insertBooking = `INSERT INTO bookings (id, provider_id, requester_id, start_time, end_time, duration_minutes, priority,
        required_equipment, preferred_windows, status, scheduling_score, appointment_type, notes, cancellation_reason,
        rescheduled_from_id, last_rescheduled_at, created_at, updated_at)
        VALUES (:id, :provider_id, :requester_id, :start_time, :end_time, :duration_minutes, :priority,
        :required_equipment, :preferred_windows, :status, :scheduling_score, :appointment_type, :notes, :cancellation_reason,
        :rescheduled_from_id, :last_rescheduled_at, :created_at, :updated_at)`

func stampNew(b *models.Booking) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.RequiredEquipment == nil {
		b.RequiredEquipment = []string{}
	}
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	stampNew(b)
	if _, err := r.db.NamedExecContext(ctx, insertBooking, b); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID returns a booking or sql.ErrNoRows.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).From("bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find booking query: %w", err)
	}
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, args...); err != nil {
		return nil, err
	}
	return &booking, nil
}

func applyBookingFilter(b sq.SelectBuilder, filter models.BookingFilter) sq.SelectBuilder {
	if filter.ProviderID != "" {
		b = b.Where(sq.Eq{"provider_id": filter.ProviderID})
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	// intersection with [from, to)
	if filter.From != nil {
		b = b.Where(sq.Gt{"end_time": *filter.From})
	}
	if filter.To != nil {
		b = b.Where(sq.Lt{"start_time": *filter.To})
	}
	return b
}

// List returns one page of bookings and the total matching count.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query, args, err := applyBookingFilter(psql.Select(bookingColumns...).From("bookings"), filter).
		OrderBy("start_time "+order, "id").
		Limit(uint64(size)).
		Offset(uint64((page - 1) * size)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query: %w", err)
	}
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery, countArgs, err := applyBookingFilter(psql.Select("COUNT(*)").From("bookings"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count bookings query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// ListScheduledByProvider returns every scheduled booking of a provider ending after from, in start order.
func (r *BookingRepository) ListScheduledByProvider(ctx context.Context, providerID string, from *time.Time) ([]models.Booking, error) {
	filter := models.BookingFilter{ProviderID: providerID, Status: []models.BookingStatus{models.BookingStatusScheduled}, From: from}
	query, args, err := applyBookingFilter(psql.Select(bookingColumns...).From("bookings"), filter).
		OrderBy("start_time", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scheduled bookings query: %w", err)
	}
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list scheduled bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus moves a booking from one status to another, recording an optional reason.
// It returns ErrStaleBooking when the booking is no longer in the expected status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to models.BookingStatus, reason *string) error {
	update := psql.Update("bookings").
		Set("status", to).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "status": from})
	if reason != nil {
		update = update.Set("cancellation_reason", *reason)
	}
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update booking status query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking status rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleBooking
	}
	return nil
}

// Reschedule closes the previous booking as rescheduled and inserts its successor atomically.
func (r *BookingRepository) Reschedule(ctx context.Context, previousID string, next *models.Booking, note string) (err error) {
	stampNew(next)
	next.RescheduledFromID = &previousID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reschedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := psql.Update("bookings").
		Set("status", models.BookingStatusRescheduled).
		Set("last_rescheduled_at", next.CreatedAt).
		Set("cancellation_reason", note).
		Set("updated_at", next.CreatedAt).
		Where(sq.Eq{"id": previousID, "status": models.BookingStatusScheduled}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build close booking query: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("close rescheduled booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close rescheduled booking rows: %w", err)
	}
	if affected == 0 {
		err = ErrStaleBooking
		return err
	}
	if _, err = tx.NamedExecContext(ctx, insertBooking, next); err != nil {
		return fmt.Errorf("insert rescheduled booking: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reschedule: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
