package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"consultlaw-api/internal/model"
)

func pgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Microseconds(), Valid: true}
}

func (s *Store) CreateWindow(ctx context.Context, w *model.Window) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO availability_windows (id, lawyer_id, day_of_week, start_time, end_time)
		 VALUES ($1,$2,$3,$4,$5)`,
		w.ID, w.LawyerID, int16(w.Day), pgTime(w.StartTime), pgTime(w.EndTime),
	)
	return err
}

func (s *Store) ListWindows(ctx context.Context, lawyerID string) ([]model.Window, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lawyer_id, day_of_week, start_time, end_time
		 FROM availability_windows
		 WHERE lawyer_id = $1
		 ORDER BY day_of_week, start_time`, lawyerID,
	)
	if err != nil {
		return nil, err
	}
	return scanWindows(rows)
}

func (s *Store) WindowsForDay(ctx context.Context, lawyerID string, day time.Weekday) ([]model.Window, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lawyer_id, day_of_week, start_time, end_time
		 FROM availability_windows
		 WHERE lawyer_id = $1 AND day_of_week = $2
		 ORDER BY start_time`, lawyerID, int16(day),
	)
	if err != nil {
		return nil, err
	}
	return scanWindows(rows)
}

func scanWindows(rows pgx.Rows) ([]model.Window, error) {
	defer rows.Close()
	var out []model.Window
	for rows.Next() {
		var (
			w          model.Window
			day        int16
			start, end pgtype.Time
		)
		if err := rows.Scan(&w.ID, &w.LawyerID, &day, &start, &end); err != nil {
			return nil, err
		}
		w.Day = time.Weekday(day)
		w.StartTime = model.TimeOfDayFromMicroseconds(start.Microseconds)
		w.EndTime = model.TimeOfDayFromMicroseconds(end.Microseconds)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWindow(ctx context.Context, id, lawyerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM availability_windows WHERE id = $1 AND lawyer_id = $2`, id, lawyerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
