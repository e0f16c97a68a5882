package contests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Repository provides persistence for contests against PostgreSQL.
//
// A contest is stored across three tables: contests, contest_problems
// (ordered by insertion) and contest_participants (one row per user).
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const contestColumns = `id, name, slug, host, start_time, end_time, created_at, updated_at`

// Create inserts a new contest. A duplicate slug yields ErrSlugTaken.
func (r *Repository) Create(ctx context.Context, c *Contest) error {
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO contests (`+contestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.Slug, c.Host, c.StartTime, c.EndTime, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert contest: %w", err)
	}
	return nil
}

// List returns contests ordered by start time, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Contest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+contestColumns+` FROM contests
		ORDER BY start_time DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	defer rows.Close()

	var out []*Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range out {
		if err := r.loadChildren(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Count returns the total number of contests.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contests: %w", err)
	}
	return n, nil
}

// GetBySlug retrieves a contest with its problems and participants.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Contest, error) {
	return r.getOne(ctx, `SELECT `+contestColumns+` FROM contests WHERE slug = $1`, slug)
}

// GetByID retrieves a contest with its problems and participants.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Contest, error) {
	return r.getOne(ctx, `SELECT `+contestColumns+` FROM contests WHERE id = $1`, id)
}

// AddParticipant records that userID joined the contest. It reports false
// when the user had already joined.
func (r *Repository) AddParticipant(ctx context.Context, contestID, userID uuid.UUID, handle string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO contest_participants (contest_id, user_id, handle, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contest_id, user_id) DO NOTHING`,
		contestID, userID, handle, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert participant: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddProblems appends problems to the contest in order.
func (r *Repository) AddProblems(ctx context.Context, contestID uuid.UUID, problems []Problem) error {
	if len(problems) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range problems {
		batch.Queue(`
			INSERT INTO contest_problems (contest_id, problem_id, cf_contest_id, problem_index, name, rating)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			contestID, p.ProblemID, p.ContestID, p.Index, p.Name, p.Rating,
		)
	}
	batch.Queue(`UPDATE contests SET updated_at = $2 WHERE id = $1`, contestID, time.Now().UTC())

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert problems: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *Repository) getOne(ctx context.Context, q string, args ...any) (*Contest, error) {
	c, err := scanContest(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) loadChildren(ctx context.Context, c *Contest) error {
	rows, err := r.db.Query(ctx, `
		SELECT problem_id, cf_contest_id, problem_index, name, rating
		FROM contest_problems
		WHERE contest_id = $1
		ORDER BY id`, c.ID)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}
	c.Problems, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Problem, error) {
		var p Problem
		err := row.Scan(&p.ProblemID, &p.ContestID, &p.Index, &p.Name, &p.Rating)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("scan problems: %w", err)
	}

	// Ratings come from the user record so the leaderboard reflects the
	// rating refreshed at each login.
	rows, err = r.db.Query(ctx, `
		SELECT p.user_id, p.handle, u.rating, p.joined_at
		FROM contest_participants p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.contest_id = $1
		ORDER BY p.joined_at, p.handle`, c.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	c.Participants, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Participant, error) {
		var p Participant
		err := row.Scan(&p.UserID, &p.Handle, &p.Rating, &p.JoinedAt)
		return p, err
	})
	if err != nil {
		return fmt.Errorf("scan participants: %w", err)
	}
	return nil
}

func scanContest(row pgx.Row) (*Contest, error) {
	c := &Contest{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Host, &c.StartTime, &c.EndTime, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan contest: %w", err)
	}
	return c, nil
}
