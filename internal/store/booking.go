package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"consultlaw-api/internal/model"
)

const bookingColumns = `id, client_id, lawyer_id, date, time, duration_minutes, status,
	fee_minor, cancel_reason, cancelled_by, created_at, updated_at`

func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookings (id, client_id, lawyer_id, date, time, duration_minutes, status, fee_minor)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at, updated_at`,
		b.ID, b.ClientID, b.LawyerID, b.Date, pgTime(b.Time), b.DurationMinutes, string(b.Status), b.FeeMinor,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	return err
}

func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "booking")
	}
	return b, nil
}

// UpdateBookingStatus only moves the row when it is still in status from, so
// of two racing transitions exactly one wins.
func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, actorID, reason string) (*model.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := `UPDATE bookings SET status = $3, updated_at = now()`
	args := []any{id, string(from), string(to)}
	if to == model.StatusCancelled {
		q += `, cancel_reason = $4, cancelled_by = $5`
		args = append(args, reason, actorID)
	}
	q += ` WHERE id = $1 AND status = $2 RETURNING ` + bookingColumns

	b, err := scanBooking(tx.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&current)
		if err != nil {
			return nil, mapErr(err, "booking")
		}
		return nil, model.Errorf(model.ErrInvalidTransition, "booking is %s", current)
	}
	if err != nil {
		return nil, err
	}
	return b, tx.Commit(ctx)
}

func (s *Store) ListForClient(ctx context.Context, clientID string, f model.BookingFilter) ([]model.Booking, error) {
	return s.listFiltered(ctx, "client_id", clientID, f)
}

func (s *Store) ListForLawyer(ctx context.Context, lawyerID string, f model.BookingFilter) ([]model.Booking, error) {
	return s.listFiltered(ctx, "lawyer_id", lawyerID, f)
}

// column is one of the two fixed party columns, never user input.
func (s *Store) listFiltered(ctx context.Context, column, id string, f model.BookingFilter) ([]model.Booking, error) {
	q := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s = $1`, bookingColumns, column)
	args := []any{id}

	switch f.Scope {
	case model.ScopeUpcoming:
		args = append(args, f.Today)
		q += fmt.Sprintf(` AND date >= $%d`, len(args))
	case model.ScopePast:
		args = append(args, f.Today)
		q += fmt.Sprintf(` AND date < $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Ascending() {
		q += ` ORDER BY date, time, created_at`
	} else {
		q += ` ORDER BY date DESC, time DESC, created_at`
	}
	return s.queryBookings(ctx, q, args...)
}

func (s *Store) ListByLawyerAndStatus(ctx context.Context, lawyerID string, status model.BookingStatus) ([]model.Booking, error) {
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE lawyer_id = $1 AND status = $2
		 ORDER BY date, time, created_at`, lawyerID, string(status))
}

// ListElapsed returns bookings in status whose slot ended at or before now.
// Dates and times are stored as UTC wall clock.
func (s *Store) ListElapsed(ctx context.Context, status model.BookingStatus, now time.Time) ([]model.Booking, error) {
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status = $1
		   AND date + time + make_interval(mins => duration_minutes) <= $2::timestamp
		 ORDER BY date, time`, string(status), now.UTC())
}

func (s *Store) queryBookings(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b      model.Booking
		at     pgtype.Time
		status string
	)
	err := row.Scan(
		&b.ID, &b.ClientID, &b.LawyerID, &b.Date, &at, &b.DurationMinutes, &status,
		&b.FeeMinor, &b.CancelReason, &b.CancelledBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Time = model.TimeOfDayFromMicroseconds(at.Microseconds)
	b.Status = model.BookingStatus(status)
	b.Date = model.DateOf(b.Date)
	return &b, nil
}
