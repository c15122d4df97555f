package store

import (
	"context"

	"consultlaw-api/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, phone, address, role)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Address, string(u.Role),
	).Scan(&u.CreatedAt)
	if err != nil {
		return mapErr(err, "email "+u.Email)
	}
	return nil
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, address, role, created_at`

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.user(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) user(ctx context.Context, q string, arg string) (*model.User, error) {
	u := &model.User{}
	var role string
	err := s.pool.QueryRow(ctx, q, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Address, &role, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "user")
	}
	u.Role = model.Role(role)
	return u, nil
}
