package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"consultlaw-api/internal/auth"
	"consultlaw-api/internal/model"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Role      string `json:"role"`
}

type tokenResponse struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		h.fail(w, r, model.Errorf(model.ErrValidation, "email and password required"))
		return
	}
	if len(req.Phone) > 20 {
		h.fail(w, r, model.Errorf(model.ErrValidation, "phone too long"))
		return
	}
	if len(req.Password) < 8 {
		h.fail(w, r, model.Errorf(model.ErrValidation, "password too short"))
		return
	}
	role := model.RoleClient
	if req.Role != "" {
		parsed, err := model.ParseRole(req.Role)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		role = parsed
	}
	// admins are provisioned out of band
	if role == model.RoleAdmin {
		h.fail(w, r, model.Errorf(model.ErrValidation, "cannot self-register as admin"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Role:         role,
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			// don't reveal which email is taken
			writeJSON(w, http.StatusConflict, map[string]string{"error": "registration failed"})
			return
		}
		h.fail(w, r, err)
		return
	}

	tok, err := auth.MakeToken(model.Identity{ID: u.ID, Role: u.Role}, h.secret)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithField("user", u.ID).WithField("role", u.Role).Info("user registered")
	writeJSON(w, http.StatusCreated, tokenResponse{Token: tok, User: toUserJSON(u)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.fail(w, r, model.Errorf(model.ErrValidation, "email and password required"))
		return
	}

	u, err := h.users.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		h.fail(w, r, err)
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	tok, err := auth.MakeToken(model.Identity{ID: u.ID, Role: u.Role}, h.secret)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, User: toUserJSON(u)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.UserByID(r.Context(), principal(r).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(u))
}
