package handler

import (
	"encoding/json"
	"net/http"

	"consultlaw-api/internal/booking"
	"consultlaw-api/internal/model"
)

type createBookingRequest struct {
	LawyerID        string      `json:"lawyer"`
	Date            string      `json:"date"`
	Time            string      `json:"time"`
	DurationMinutes int         `json:"duration_minutes"`
	Fee             json.Number `json:"fee"`
}

func (req createBookingRequest) parse() (booking.Request, error) {
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return booking.Request{}, err
	}
	at, err := model.ParseTimeOfDay(req.Time)
	if err != nil {
		return booking.Request{}, err
	}
	var fee int64
	if req.Fee != "" {
		if fee, err = model.ParseFee(req.Fee.String()); err != nil {
			return booking.Request{}, err
		}
	}
	return booking.Request{
		LawyerID:        req.LawyerID,
		Date:            date,
		Time:            at,
		DurationMinutes: req.DurationMinutes,
		FeeMinor:        fee,
	}, nil
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	br, err := req.parse()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.CreateBookingRequest(r.Context(), principal(r), br)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingJSON(b))
}

type bookingActionRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingActionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.CancelBookingRequest(r.Context(), principal(r), req.BookingID, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingJSON(b))
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingActionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.ConfirmBookingRequest(r.Context(), principal(r), req.BookingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingJSON(b))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	scope, err := model.ParseScope(r.URL.Query().Get("filter"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bs, err := h.svc.Bookings().List(r.Context(), principal(r), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingsJSON(bs))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Bookings().Get(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingJSON(b))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	who := principal(r)
	if who.Role != model.RoleLawyer {
		h.fail(w, r, model.Errorf(model.ErrRole, "lawyers only"))
		return
	}
	bs, err := h.svc.Bookings().Dashboard(r.Context(), who)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingsJSON(bs))
}
