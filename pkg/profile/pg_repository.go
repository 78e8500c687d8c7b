package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/fintrack/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PGRepository.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGRepository stores profiles in the profiles table.
type PGRepository struct {
	db DB
}

func NewPGRepository(db DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.db.QueryRow(ctx,
		`SELECT user_id, display_name, created_at, updated_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &p, nil
}

func (r *PGRepository) Create(ctx context.Context, p *Profile) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO profiles (user_id, display_name) VALUES ($1, $2) RETURNING created_at, updated_at`,
		p.UserID, p.DisplayName,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(ErrAlreadyExists, err)
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *PGRepository) UpdateDisplayName(ctx context.Context, userID uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET display_name = $2, updated_at = now() WHERE user_id = $1`,
		userID, name,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
