package handler

import (
	"net/http"

	"consultlaw-api/internal/model"
)

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.SendMessage(r.Context(), principal(r), req.Recipient, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Conversation(r.Context(), principal(r), r.URL.Query().Get("user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkMessageRead(r.Context(), principal(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.notifier.List(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifier.MarkRead(r.Context(), principal(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentIntentRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	intent, err := h.svc.CreatePaymentIntent(r.Context(), principal(r), req.BookingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"client_secret": intent.ClientSecret,
		"booking_id":    req.BookingID,
		"amount":        model.FormatFee(intent.AmountMinor),
		"currency":      intent.Currency,
	})
}

type triageRequest struct {
	Description string `json:"description"`
}

func (h *Handler) Triage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Triage(req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
