package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"consultlaw-api/internal/model"
	"consultlaw-api/internal/profile"
)

type profileRequest struct {
	Bio             string      `json:"bio"`
	Specialties     string      `json:"specialties"`
	ExperienceYears int         `json:"experience_years"`
	Languages       string      `json:"languages"`
	Fee             json.Number `json:"fee"`
}

func (req profileRequest) input() (profile.Input, error) {
	if req.Fee == "" {
		return profile.Input{}, model.Errorf(model.ErrValidation, "fee is required")
	}
	fee, err := model.ParseFee(req.Fee.String())
	if err != nil {
		return profile.Input{}, err
	}
	return profile.Input{
		Bio:             req.Bio,
		Specialties:     req.Specialties,
		ExperienceYears: req.ExperienceYears,
		Languages:       req.Languages,
		FeeMinor:        fee,
	}, nil
}

func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, http.StatusCreated, h.profiles.Create)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, http.StatusOK, h.profiles.Update)
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request, code int,
	save func(ctx context.Context, actor model.Identity, in profile.Input) (*model.Profile, error)) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := save(r.Context(), principal(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, code, toProfileJSON(p))
}

func (h *Handler) MyProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Mine(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}

// ListLawyers is the public directory:
// ?specialty=&language=&min_fee=&max_fee=&search=
func (h *Handler) ListLawyers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.LawyerQuery{
		Specialty: q.Get("specialty"),
		Language:  q.Get("language"),
		Search:    q.Get("search"),
	}
	var err error
	if query.MinFee, err = feeParam(q.Get("min_fee")); err != nil {
		h.fail(w, r, err)
		return
	}
	if query.MaxFee, err = feeParam(q.Get("max_fee")); err != nil {
		h.fail(w, r, err)
		return
	}
	lawyers, err := h.profiles.Search(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLawyersJSON(lawyers))
}

func feeParam(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	fee, err := model.ParseFee(s)
	if err != nil {
		return nil, model.Errorf(model.ErrValidation, "invalid fee filter %q", s)
	}
	return &fee, nil
}
