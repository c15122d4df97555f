package handler

import (
	"time"

	"consultlaw-api/internal/model"
)

type userJSON struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func toUserJSON(u *model.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Address:   u.Address,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type profileJSON struct {
	LawyerID        string    `json:"user"`
	Bio             string    `json:"bio"`
	Specialties     string    `json:"specialties"`
	ExperienceYears int       `json:"experience_years"`
	Languages       string    `json:"languages"`
	Fee             string    `json:"fee"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toProfileJSON(p *model.Profile) profileJSON {
	return profileJSON{
		LawyerID:        p.LawyerID,
		Bio:             p.Bio,
		Specialties:     p.Specialties,
		ExperienceYears: p.ExperienceYears,
		Languages:       p.Languages,
		Fee:             model.FormatFee(p.FeeMinor),
		UpdatedAt:       p.UpdatedAt,
	}
}

// lawyerJSON omits contact details; the directory is public.
type lawyerJSON struct {
	ID        string      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      model.Role  `json:"role"`
	Profile   profileJSON `json:"lawyer_profile"`
}

func toLawyersJSON(ls []model.Lawyer) []lawyerJSON {
	out := make([]lawyerJSON, 0, len(ls))
	for i := range ls {
		l := &ls[i]
		out = append(out, lawyerJSON{
			ID:        l.User.ID,
			FirstName: l.User.FirstName,
			LastName:  l.User.LastName,
			Role:      l.User.Role,
			Profile:   toProfileJSON(&l.Profile),
		})
	}
	return out
}

type windowJSON struct {
	ID        string `json:"id"`
	LawyerID  string `json:"lawyer"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toWindowJSON(w *model.Window) windowJSON {
	return windowJSON{
		ID:        w.ID,
		LawyerID:  w.LawyerID,
		Day:       w.Day.String(),
		StartTime: w.StartTime.String(),
		EndTime:   w.EndTime.String(),
	}
}

type bookingJSON struct {
	ID              string              `json:"id"`
	ClientID        string              `json:"client"`
	LawyerID        string              `json:"lawyer"`
	Date            string              `json:"date"`
	Time            string              `json:"time"`
	DurationMinutes int                 `json:"duration_minutes"`
	Status          model.BookingStatus `json:"status"`
	Fee             string              `json:"fee"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	CancelledBy     string              `json:"cancelled_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toBookingJSON(b *model.Booking) bookingJSON {
	return bookingJSON{
		ID:              b.ID,
		ClientID:        b.ClientID,
		LawyerID:        b.LawyerID,
		Date:            model.FormatDate(b.Date),
		Time:            b.Time.String(),
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		Fee:             model.FormatFee(b.FeeMinor),
		CancelReason:    b.CancelReason,
		CancelledBy:     b.CancelledBy,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookingsJSON(bs []model.Booking) []bookingJSON {
	out := make([]bookingJSON, 0, len(bs))
	for i := range bs {
		out = append(out, toBookingJSON(&bs[i]))
	}
	return out
}
