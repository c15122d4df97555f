// Package memstore is a process-local implementation of every repository the
// service needs. It backs the unit tests and the STORE=memory dev mode.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"consultlaw-api/internal/model"
)

type Store struct {
	mu            sync.RWMutex
	users         map[string]model.User
	profiles      map[string]model.Profile
	windows       map[string]model.Window
	bookings      map[string]model.Booking
	messages      []model.Message
	notifications []model.Notification
}

func New() *Store {
	return &Store{
		users:    make(map[string]model.User),
		profiles: make(map[string]model.Profile),
		windows:  make(map[string]model.Window),
		bookings: make(map[string]model.Booking),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// ----- users -----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.Errorf(model.ErrConflict, "email already registered")
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

// ----- profiles -----

func (s *Store) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.LawyerID]; ok {
		return model.Errorf(model.ErrConflict, "profile already exists")
	}
	p.UpdatedAt = time.Now()
	s.profiles[p.LawyerID] = *p
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.LawyerID]; !ok {
		return model.Errorf(model.ErrNotFound, "profile")
	}
	p.UpdatedAt = time.Now()
	s.profiles[p.LawyerID] = *p
	return nil
}

func (s *Store) ProfileByLawyer(_ context.Context, lawyerID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[lawyerID]
	if !ok {
		return nil, model.Errorf(model.ErrNotFound, "profile")
	}
	return &p, nil
}

func (s *Store) SearchLawyers(_ context.Context, q model.LawyerQuery) ([]model.Lawyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Lawyer
	for id, p := range s.profiles {
		u, ok := s.users[id]
		if !ok || u.Role != model.RoleLawyer {
			continue
		}
		switch {
		case !containsFold(p.Specialties, q.Specialty),
			!containsFold(p.Languages, q.Language),
			q.MinFee != nil && p.FeeMinor < *q.MinFee,
			q.MaxFee != nil && p.FeeMinor > *q.MaxFee:
			continue
		}
		if q.Search != "" && !containsFold(u.FirstName, q.Search) &&
			!containsFold(u.LastName, q.Search) && !containsFold(p.Specialties, q.Search) {
			continue
		}
		out = append(out, model.Lawyer{User: u, Profile: p})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].User, out[j].User
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.ID < b.ID
	})
	return out, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ----- availability -----

func (s *Store) CreateWindow(_ context.Context, w *model.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[w.ID] = *w
	return nil
}

func (s *Store) ListWindows(_ context.Context, lawyerID string) ([]model.Window, error) {
	return s.windowsWhere(func(w model.Window) bool { return w.LawyerID == lawyerID }), nil
}

func (s *Store) WindowsForDay(_ context.Context, lawyerID string, day time.Weekday) ([]model.Window, error) {
	return s.windowsWhere(func(w model.Window) bool { return w.LawyerID == lawyerID && w.Day == day }), nil
}

func (s *Store) windowsWhere(keep func(model.Window) bool) []model.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Window
	for _, w := range s.windows {
		if keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (s *Store) DeleteWindow(_ context.Context, id, lawyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	if !ok || w.LawyerID != lawyerID {
		return model.ErrNotFound
	}
	delete(s.windows, id)
	return nil
}

// ----- bookings -----

func (s *Store) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.bookings[b.ID] = *b
	return nil
}

func (s *Store) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &b, nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id string, from, to model.BookingStatus, actorID, reason string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if b.Status != from {
		return nil, model.Errorf(model.ErrInvalidTransition, "booking is %s", b.Status)
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	if to == model.StatusCancelled {
		b.CancelReason = reason
		b.CancelledBy = actorID
	}
	s.bookings[id] = b
	return &b, nil
}

func (s *Store) ListForClient(_ context.Context, clientID string, f model.BookingFilter) ([]model.Booking, error) {
	return s.bookingsWhere(func(b *model.Booking) bool { return b.ClientID == clientID && f.Match(b) }, f.Ascending()), nil
}

func (s *Store) ListForLawyer(_ context.Context, lawyerID string, f model.BookingFilter) ([]model.Booking, error) {
	return s.bookingsWhere(func(b *model.Booking) bool { return b.LawyerID == lawyerID && f.Match(b) }, f.Ascending()), nil
}

func (s *Store) ListByLawyerAndStatus(_ context.Context, lawyerID string, status model.BookingStatus) ([]model.Booking, error) {
	return s.bookingsWhere(func(b *model.Booking) bool { return b.LawyerID == lawyerID && b.Status == status }, true), nil
}

func (s *Store) ListElapsed(_ context.Context, status model.BookingStatus, now time.Time) ([]model.Booking, error) {
	return s.bookingsWhere(func(b *model.Booking) bool { return b.Status == status && !b.End().After(now) }, true), nil
}

func (s *Store) bookingsWhere(keep func(*model.Booking) bool, asc bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if keep(&b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Start(), out[j].Start()
		if a.Equal(b) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if asc {
			return a.Before(b)
		}
		return a.After(b)
	})
	return out
}

// ----- messages -----

func (s *Store) CreateMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *Store) Conversation(_ context.Context, a, b string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id && s.messages[i].RecipientID == recipientID {
			s.messages[i].Read = true
			return nil
		}
	}
	return model.ErrNotFound
}

// MessageCount is a test hook.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ----- notifications -----

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notification
	// walk backwards so later inserts win timestamp ties
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return model.ErrNotFound
}

// NotificationCount is a test hook.
func (s *Store) NotificationCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, x := range s.notifications {
		if x.UserID == userID {
			n++
		}
	}
	return n
}
