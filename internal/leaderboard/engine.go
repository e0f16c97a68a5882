// Package leaderboard computes ranked contest standings from participants'
// Codeforces submission histories.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codedojo/codedojo/internal/cache"
	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/contests"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrContestNotFound is returned when no contest has the requested slug.
var ErrContestNotFound = errors.New("contest not found")

// ContestSource loads a contest with its problems and participants.
// *contests.Service satisfies this interface.
type ContestSource interface {
	GetBySlug(ctx context.Context, slug string) (*contests.Contest, error)
}

// SubmissionSource fetches a handle's recent submissions.
// *codeforces.Client satisfies this interface.
type SubmissionSource interface {
	UserSubmissions(ctx context.Context, handle string, from, count int) ([]codeforces.Submission, error)
}

// Config tunes the engine.
type Config struct {
	CacheTTL        time.Duration // how long a computed leaderboard is served
	BatchSize       int           // participants fetched concurrently
	BatchPause      time.Duration // minimum spacing between batches
	SubmissionCount int           // recent submissions fetched per participant
	ComputeTimeout  time.Duration // upper bound on one shared computation
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        60 * time.Second,
		BatchSize:       5,
		BatchPause:      500 * time.Millisecond,
		SubmissionCount: 100,
		ComputeTimeout:  2 * time.Minute,
	}
}

// MetricsRecordFunc is an optional callback recording cache lookups as
// "hit" or "miss".
type MetricsRecordFunc func(result string)

// Engine computes and caches leaderboards.
type Engine struct {
	contests ContestSource
	oracle   SubmissionSource
	cfg      Config
	cache    *cache.TTL[[]Entry]
	pacer    *pacer
	group    singleflight.Group
	onCache  MetricsRecordFunc
	logger   *zap.Logger
}

// NewEngine creates an Engine. Zero fields in cfg take DefaultConfig values.
func NewEngine(contestSrc ContestSource, oracle SubmissionSource, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.SubmissionCount <= 0 {
		cfg.SubmissionCount = def.SubmissionCount
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = def.ComputeTimeout
	}
	return &Engine{
		contests: contestSrc,
		oracle:   oracle,
		cfg:      cfg,
		cache:    cache.New[[]Entry](cfg.CacheTTL),
		pacer:    newPacer(cfg.BatchSize, cfg.BatchPause),
		logger:   logger,
	}
}

// SetMetricsRecord configures the cache metrics callback.
func (e *Engine) SetMetricsRecord(fn MetricsRecordFunc) {
	e.onCache = fn
}

// Cache exposes the result cache so callers can run its eviction loop or
// swap its clock in tests.
func (e *Engine) Cache() *cache.TTL[[]Entry] {
	return e.cache
}

// Compute returns the ranked leaderboard for slug. A result computed less
// than CacheTTL ago is returned as is, without contacting the oracle.
//
// A participant whose submissions cannot be fetched appears with Error set
// and zero score; that never fails the whole computation.
//
// Concurrent callers for the same slug share one computation. It runs
// detached from any caller's context, bounded by ComputeTimeout, so a caller
// going away only ends its own wait.
func (e *Engine) Compute(ctx context.Context, slug string) ([]Entry, error) {
	if entries, ok := e.cache.Get(slug); ok {
		e.record("hit")
		return entries, nil
	}
	e.record("miss")

	ch := e.group.DoChan(slug, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ComputeTimeout)
		defer cancel()
		return e.compute(cctx, slug)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached leaderboard for slug.
func (e *Engine) Invalidate(slug string) {
	e.cache.Delete(slug)
	e.logger.Debug("leaderboard invalidated", zap.String("slug", slug))
}

func (e *Engine) compute(ctx context.Context, slug string) ([]Entry, error) {
	c, err := e.contests.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, contests.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("load contest: %w", err)
	}

	started := time.Now()
	entries := make([]Entry, len(c.Participants))
	err = e.pacer.run(ctx, len(c.Participants), func(ctx context.Context, i int) {
		entries[i] = e.scoreParticipant(ctx, c, c.Participants[i])
	})
	// Rows fetched after ctx ended are failures of this run, not of the
	// participants, so nothing is cached.
	if err != nil {
		return nil, fmt.Errorf("compute leaderboard: %w", err)
	}

	Rank(entries)
	e.cache.Set(slug, entries)

	e.logger.Info("leaderboard computed",
		zap.String("slug", slug),
		zap.Int("participants", len(entries)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return entries, nil
}

func (e *Engine) scoreParticipant(ctx context.Context, c *contests.Contest, p contests.Participant) Entry {
	entry := Entry{Handle: p.Handle, Rating: p.Rating}
	subs, err := e.oracle.UserSubmissions(ctx, p.Handle, 1, e.cfg.SubmissionCount)
	if err != nil {
		e.logger.Warn("fetch participant submissions",
			zap.String("slug", c.Slug),
			zap.String("handle", p.Handle),
			zap.Error(err),
		)
		entry.Error = true
		return entry
	}
	entry.Score, entry.Penalty = Score(c, subs)
	return entry
}

func (e *Engine) record(result string) {
	if e.onCache != nil {
		e.onCache(result)
	}
}
