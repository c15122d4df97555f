// Package booking validates booking requests against published availability
// and owns the booking status machine:
//
//	pending --confirm--> confirmed --elapse--> completed
//	pending|confirmed --cancel--> cancelled
//
// cancelled and completed are terminal. Creation takes no slot lock: two
// clients may book the same lawyer, date and time concurrently and both
// succeed.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/model"
)

const DefaultDurationMinutes = 30

// Repository persists bookings. UpdateBookingStatus is a compare-and-set: it
// fails with model.ErrInvalidTransition when the stored status is not from.
type Repository interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, actorID, reason string) (*model.Booking, error)
	ListForClient(ctx context.Context, clientID string, f model.BookingFilter) ([]model.Booking, error)
	ListForLawyer(ctx context.Context, lawyerID string, f model.BookingFilter) ([]model.Booking, error)
	ListByLawyerAndStatus(ctx context.Context, lawyerID string, status model.BookingStatus) ([]model.Booking, error)
	ListElapsed(ctx context.Context, status model.BookingStatus, now time.Time) ([]model.Booking, error)
}

type Directory interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type Availability interface {
	IsOpen(ctx context.Context, lawyerID string, date time.Time, t model.TimeOfDay) (bool, error)
}

type Request struct {
	LawyerID        string
	Date            time.Time
	Time            model.TimeOfDay
	DurationMinutes int
	FeeMinor        int64
}

type Engine struct {
	repo  Repository
	users Directory
	avail Availability
	log   logrus.FieldLogger
	now   func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now, used for "today" and elapsed checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(repo Repository, users Directory, avail Availability, log logrus.FieldLogger, opts ...Option) *Engine {
	e := &Engine{repo: repo, users: users, avail: avail, log: log, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Create(ctx context.Context, client model.Identity, req Request) (*model.Booking, error) {
	if client.Role != model.RoleClient {
		return nil, model.Errorf(model.ErrRole, "only clients can book")
	}
	if req.LawyerID == "" {
		return nil, model.Errorf(model.ErrValidation, "lawyer required")
	}
	if req.LawyerID == client.ID {
		return nil, model.Errorf(model.ErrValidation, "cannot book yourself")
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = DefaultDurationMinutes
	}
	if req.DurationMinutes < 0 {
		return nil, model.Errorf(model.ErrValidation, "duration must be positive")
	}
	if req.FeeMinor < 0 {
		return nil, model.Errorf(model.ErrValidation, "fee must not be negative")
	}

	lawyer, err := e.users.UserByID(ctx, req.LawyerID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.Errorf(model.ErrValidation, "lawyer does not exist")
	} else if err != nil {
		return nil, err
	}
	if lawyer.Role != model.RoleLawyer {
		return nil, model.Errorf(model.ErrRole, "you can only book a lawyer")
	}

	open, err := e.avail.IsOpen(ctx, lawyer.ID, req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, model.ErrUnavailable
	}

	b := &model.Booking{
		ID:              uuid.New().String(),
		ClientID:        client.ID,
		LawyerID:        lawyer.ID,
		Date:            model.DateOf(req.Date),
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Status:          model.StatusPending,
		FeeMinor:        req.FeeMinor,
	}
	if err := e.repo.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"booking": b.ID, "client": b.ClientID, "lawyer": b.LawyerID}).Info("booking created")
	return b, nil
}

// Get returns the booking only when actor is one of its parties; anything
// else is reported as not found to hide existence.
func (e *Engine) Get(ctx context.Context, actor model.Identity, id string) (*model.Booking, error) {
	b, err := e.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Involves(actor.ID) {
		return nil, model.ErrNotFound
	}
	return b, nil
}

func (e *Engine) Cancel(ctx context.Context, actor model.Identity, id, reason string) (*model.Booking, error) {
	b, err := e.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return e.transition(ctx, b, model.StatusCancelled, actor.ID, reason)
}

// Confirm is the lawyer accepting a pending request.
func (e *Engine) Confirm(ctx context.Context, actor model.Identity, id string) (*model.Booking, error) {
	b, err := e.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != b.LawyerID {
		return nil, model.Errorf(model.ErrRole, "only the lawyer can confirm")
	}
	return e.transition(ctx, b, model.StatusConfirmed, actor.ID, "")
}

// CompleteElapsed moves every confirmed booking whose slot has ended to
// completed and returns the ones it moved. A booking cancelled concurrently
// is skipped.
func (e *Engine) CompleteElapsed(ctx context.Context) ([]model.Booking, error) {
	due, err := e.repo.ListElapsed(ctx, model.StatusConfirmed, e.now().UTC())
	if err != nil {
		return nil, err
	}
	var done []model.Booking
	for i := range due {
		b, err := e.transition(ctx, &due[i], model.StatusCompleted, "", "")
		if errors.Is(err, model.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return done, err
		}
		done = append(done, *b)
	}
	return done, nil
}

func (e *Engine) transition(ctx context.Context, b *model.Booking, to model.BookingStatus, actorID, reason string) (*model.Booking, error) {
	if !b.Status.CanTransition(to) {
		return nil, model.Errorf(model.ErrInvalidTransition, "booking is %s", b.Status)
	}
	out, err := e.repo.UpdateBookingStatus(ctx, b.ID, b.Status, to, actorID, reason)
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"booking": b.ID, "from": b.Status, "to": to}).Info("booking status changed")
	return out, nil
}

// List returns the bookings the actor takes part in. Roles other than client
// and lawyer see nothing.
func (e *Engine) List(ctx context.Context, actor model.Identity, scope model.Scope) ([]model.Booking, error) {
	f := model.BookingFilter{Scope: scope, Today: model.DateOf(e.now().UTC())}
	switch actor.Role {
	case model.RoleClient:
		return e.repo.ListForClient(ctx, actor.ID, f)
	case model.RoleLawyer:
		return e.repo.ListForLawyer(ctx, actor.ID, f)
	}
	return nil, nil
}

// Dashboard lists a lawyer's confirmed bookings, earliest first.
func (e *Engine) Dashboard(ctx context.Context, actor model.Identity) ([]model.Booking, error) {
	if actor.Role != model.RoleLawyer {
		return nil, nil
	}
	return e.repo.ListByLawyerAndStatus(ctx, actor.ID, model.StatusConfirmed)
}
