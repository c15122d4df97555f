package handler

import (
	"net/http"

	"consultlaw-api/internal/model"
)

type windowRequest struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *Handler) AddWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	day, err := model.ParseWeekday(req.Day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	start, err := model.ParseTimeOfDay(req.StartTime)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	end, err := model.ParseTimeOfDay(req.EndTime)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	win, err := h.avail.AddWindow(r.Context(), principal(r), day, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowJSON(win))
}

// ListWindows is public; without ?lawyer= the list is empty.
func (h *Handler) ListWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.avail.ListWindows(r.Context(), r.URL.Query().Get("lawyer"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]windowJSON, 0, len(windows))
	for i := range windows {
		out = append(out, toWindowJSON(&windows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteWindow(w http.ResponseWriter, r *http.Request) {
	if err := h.avail.DeleteWindow(r.Context(), principal(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
