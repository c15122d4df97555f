package model

import "time"

// Scope selects bookings relative to today.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeUpcoming Scope = "upcoming"
	ScopePast     Scope = "past"
)

// ParseScope maps an empty value to ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case "":
		return ScopeAll, nil
	case ScopeAll, ScopeUpcoming, ScopePast:
		return sc, nil
	}
	return "", Errorf(ErrValidation, "unknown filter %q", s)
}

// BookingFilter narrows a booking listing. Upcoming lists date >= Today
// ascending, Past lists date < Today descending, All lists everything by
// date descending. An empty Status matches every status.
type BookingFilter struct {
	Scope  Scope
	Status BookingStatus
	Today  time.Time
}

// Ascending reports the date ordering the filter asks for.
func (f BookingFilter) Ascending() bool {
	return f.Scope == ScopeUpcoming
}

// Match applies the scope and status parts of the filter to b.
func (f BookingFilter) Match(b *Booking) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	switch f.Scope {
	case ScopeUpcoming:
		return !b.Date.Before(f.Today)
	case ScopePast:
		return b.Date.Before(f.Today)
	}
	return true
}
