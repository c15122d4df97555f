// Package availability holds each lawyer's recurring weekly open intervals
// and answers whether a given date and time falls inside one of them.
package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"consultlaw-api/internal/model"
)

// Repository persists windows. DeleteWindow returns model.ErrNotFound when no
// window with that id belongs to the lawyer.
type Repository interface {
	CreateWindow(ctx context.Context, w *model.Window) error
	ListWindows(ctx context.Context, lawyerID string) ([]model.Window, error)
	WindowsForDay(ctx context.Context, lawyerID string, day time.Weekday) ([]model.Window, error)
	DeleteWindow(ctx context.Context, id, lawyerID string) error
}

type Store struct {
	repo Repository
}

func New(repo Repository) *Store {
	return &Store{repo: repo}
}

// AddWindow publishes a new window for the acting lawyer. Overlapping and
// duplicate windows are accepted.
func (s *Store) AddWindow(ctx context.Context, actor model.Identity, day time.Weekday, start, end model.TimeOfDay) (*model.Window, error) {
	if actor.Role != model.RoleLawyer {
		return nil, model.Errorf(model.ErrRole, "only lawyers can set availability")
	}
	if start >= end {
		return nil, model.Errorf(model.ErrValidation, "start_time must be before end_time")
	}
	w := &model.Window{
		ID:        uuid.New().String(),
		LawyerID:  actor.ID,
		Day:       day,
		StartTime: start,
		EndTime:   end,
	}
	if err := s.repo.CreateWindow(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Store) ListWindows(ctx context.Context, lawyerID string) ([]model.Window, error) {
	if lawyerID == "" {
		return nil, nil
	}
	return s.repo.ListWindows(ctx, lawyerID)
}

// IsOpen reports whether some window of the lawyer on date's weekday contains
// t, boundaries included.
func (s *Store) IsOpen(ctx context.Context, lawyerID string, date time.Time, t model.TimeOfDay) (bool, error) {
	ws, err := s.repo.WindowsForDay(ctx, lawyerID, date.Weekday())
	if err != nil {
		return false, err
	}
	for _, w := range ws {
		if w.Contains(t) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteWindow(ctx context.Context, actor model.Identity, id string) error {
	if actor.Role != model.RoleLawyer {
		return model.Errorf(model.ErrRole, "only lawyers can remove availability")
	}
	return s.repo.DeleteWindow(ctx, id, actor.ID)
}
