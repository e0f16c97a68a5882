package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a user lookup finds no matching record.
var ErrNotFound = errors.New("user not found")

// Repository provides persistence for users against PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, handle, email, rank, rating, max_rank, max_rating, created_at, updated_at`

// UpsertByHandle inserts u or, if the handle already exists, refreshes its
// rank and ratings. The stored email is kept. On return u carries the durable
// record, including the stored email.
func (r *Repository) UpsertByHandle(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, handle, email, rank, rating, max_rank, max_rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (handle) DO UPDATE SET
			rank       = EXCLUDED.rank,
			rating     = EXCLUDED.rating,
			max_rank   = EXCLUDED.max_rank,
			max_rating = EXCLUDED.max_rating,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		uuid.New(), u.Handle, u.Email, u.Rank, u.Rating, u.MaxRank, u.MaxRating, now,
	).Scan(&u.ID, &u.Handle, &u.Email, &u.Rank, &u.Rating, &u.MaxRank, &u.MaxRating, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their internal UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByHandle retrieves a user by Codeforces handle.
func (r *Repository) GetByHandle(ctx context.Context, handle string) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE handle = $1`, handle)
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx, q, args...).
		Scan(&u.ID, &u.Handle, &u.Email, &u.Rank, &u.Rating, &u.MaxRank, &u.MaxRating, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
