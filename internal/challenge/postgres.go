package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists challenges in the challenges table. The handle
// column is the primary key, so Put is a single conditional upsert and two
// concurrent creations for one handle cannot leave two rows behind.
type PostgresStore struct {
	db  *pgxpool.Pool
	ttl time.Duration

	// Now returns the current time. Tests replace it with a fake clock.
	Now func() time.Time
}

// NewPostgresStore creates a PostgresStore whose challenges live for ttl.
func NewPostgresStore(db *pgxpool.Pool, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{db: db, ttl: ttl, Now: time.Now}
}

func (s *PostgresStore) Put(ctx context.Context, ch *Challenge) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO challenges (handle, contest_id, problem_index, problem_name, problem_url, token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (handle) DO UPDATE SET
		   contest_id    = EXCLUDED.contest_id,
		   problem_index = EXCLUDED.problem_index,
		   problem_name  = EXCLUDED.problem_name,
		   problem_url   = EXCLUDED.problem_url,
		   token         = EXCLUDED.token,
		   created_at    = EXCLUDED.created_at`,
		ch.Handle, ch.ContestID, ch.ProblemIndex, ch.ProblemName, ch.ProblemURL, ch.Token, ch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, handle string) (*Challenge, error) {
	cutoff := s.Now().Add(-s.ttl)
	ch := &Challenge{}
	err := s.db.QueryRow(ctx,
		`SELECT handle, contest_id, problem_index, problem_name, problem_url, token, created_at
		 FROM challenges WHERE handle = $1 AND created_at >= $2`, handle, cutoff,
	).Scan(&ch.Handle, &ch.ContestID, &ch.ProblemIndex, &ch.ProblemName, &ch.ProblemURL, &ch.Token, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return ch, nil
}

func (s *PostgresStore) Delete(ctx context.Context, handle string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM challenges WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM challenges WHERE created_at < $1`, s.Now().Add(-s.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}
