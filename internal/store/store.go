// Package store is the Postgres implementation of the repositories, written
// as plain SQL over a pgx connection pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"consultlaw-api/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the schema file at path. The schema is idempotent.
func (s *Store) Migrate(ctx context.Context, path string) error {
	migration, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(migration)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

// mapErr turns driver errors that carry domain meaning into model errors.
func mapErr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Errorf(model.ErrNotFound, "%s", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.Errorf(model.ErrConflict, "%s", what)
	}
	return err
}
