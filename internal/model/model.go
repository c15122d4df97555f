package model

import "time"

type Role string

const (
	RoleClient Role = "client"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts only the canonical lowercase role names.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleClient, RoleLawyer, RoleAdmin:
		return r, nil
	}
	return "", Errorf(ErrValidation, "unknown role %q", s)
}

// Identity is the authenticated principal attached to a request or session.
type Identity struct {
	ID   string
	Role Role
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Address      string
	Role         Role
	CreatedAt    time.Time
}

// DisplayName falls back to the email when no name was given.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// Profile is the public listing of a lawyer.
type Profile struct {
	LawyerID        string
	Bio             string
	Specialties     string
	ExperienceYears int
	Languages       string
	FeeMinor        int64
	UpdatedAt       time.Time
}

// Lawyer is one row of the public directory.
type Lawyer struct {
	User    User
	Profile Profile
}

// LawyerQuery filters the directory. Specialty and Language are
// case-insensitive substring matches; Search matches names and specialties.
// A nil fee bound is open.
type LawyerQuery struct {
	Specialty string
	Language  string
	MinFee    *int64
	MaxFee    *int64
	Search    string
}

type Window struct {
	ID        string
	LawyerID  string
	Day       time.Weekday
	StartTime TimeOfDay
	EndTime   TimeOfDay
}

// Contains reports whether t falls inside the window, both ends inclusive.
func (w Window) Contains(t TimeOfDay) bool {
	return w.StartTime <= t && t <= w.EndTime
}

type Booking struct {
	ID              string
	ClientID        string
	LawyerID        string
	Date            time.Time
	Time            TimeOfDay
	DurationMinutes int
	Status          BookingStatus
	FeeMinor        int64
	CancelReason    string
	CancelledBy     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Start is the absolute start instant of the booking in the date's location.
func (b *Booking) Start() time.Time {
	return b.Date.Add(b.Time.Duration())
}

// End is Start plus the booked duration.
func (b *Booking) End() time.Time {
	return b.Start().Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Counterparty returns the other side of the booking relative to actorID.
func (b *Booking) Counterparty(actorID string) string {
	if actorID == b.ClientID {
		return b.LawyerID
	}
	return b.ClientID
}

// Involves reports whether id is the client or the lawyer of the booking.
func (b *Booking) Involves(id string) bool {
	return id == b.ClientID || id == b.LawyerID
}

type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender"`
	RecipientID string    `json:"recipient"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}
