//go:build integration

package challenge_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/codedojo/codedojo/internal/challenge"
	"github.com/jackc/pgx/v5/pgxpool"
)

func connectPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func newPostgresStore(t *testing.T, now func() time.Time) *challenge.PostgresStore {
	t.Helper()
	db := connectPostgres(t)
	db.Exec(context.Background(), "DELETE FROM challenges")
	s := challenge.NewPostgresStore(db, challenge.DefaultTTL)
	s.Now = now
	return s
}

func TestPostgresStore_contract(t *testing.T) {
	storeContract(t, func(t *testing.T, now func() time.Time) challenge.Store {
		return newPostgresStore(t, now)
	})
}

func TestPostgresStore_lifecycle(t *testing.T) {
	clock := time.Now().UTC().Truncate(time.Microsecond)
	now := &clock
	s := newPostgresStore(t, func() time.Time { return clock })
	ctx := context.Background()

	first := &challenge.Challenge{Handle: "alice", ContestID: 4, ProblemIndex: "A", ProblemName: "Watermelon",
		ProblemURL: "https://codeforces.com/problemset/problem/4/A", Token: "aa", CreatedAt: *now}
	second := *first
	second.ContestID, second.Token = 71, "bb"

	if err := s.Put(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContestID != 71 || got.Token != "bb" {
		t.Errorf("expected the replacement, got %+v", got)
	}

	*now = now.Add(challenge.DefaultTTL + time.Second)
	if _, err := s.Get(ctx, "alice"); !errors.Is(err, challenge.ErrChallengeNotFound) {
		t.Errorf("expired challenge: got %v", err)
	}

	n, err := s.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpired: %d, %v", n, err)
	}
	if err := s.Delete(ctx, "alice"); err != nil {
		t.Errorf("deleting nothing: %v", err)
	}
}
