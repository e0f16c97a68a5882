// Package contests manages user-hosted contests: creation, listing, joining
// and problem selection from the Codeforces problem set.
package contests

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sentinel errors for contest operations.
var (
	ErrNotFound        = errors.New("contest not found")
	ErrSlugTaken       = errors.New("a contest with this name already exists")
	ErrInvalidName     = errors.New("contest name is required")
	ErrInvalidWindow   = errors.New("contest must end after it starts")
	ErrContestEnded    = errors.New("contest has already ended")
	ErrAlreadyJoined   = errors.New("you have already joined this contest")
	ErrBadProblemURL   = errors.New("invalid Codeforces problem URL format")
	ErrProblemNotFound = errors.New("problem not found on Codeforces")
	ErrInvalidCount    = errors.New("problem count must be positive")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	upstreamOrigin  = "Codeforces"
)

// contestRepo is the persistence interface for the contest service.
// *Repository satisfies this interface.
type contestRepo interface {
	Create(ctx context.Context, c *Contest) error
	List(ctx context.Context, limit, offset int) ([]*Contest, error)
	Count(ctx context.Context) (int, error)
	GetBySlug(ctx context.Context, slug string) (*Contest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Contest, error)
	AddParticipant(ctx context.Context, contestID, userID uuid.UUID, handle string) (bool, error)
	AddProblems(ctx context.Context, contestID uuid.UUID, problems []Problem) error
}

// problemOracle is the subset of *codeforces.Client the service needs.
type problemOracle interface {
	ProblemSet(ctx context.Context) ([]codeforces.Problem, error)
	ContestList(ctx context.Context, gym bool) ([]codeforces.Contest, error)
}

// Service implements contest business logic.
type Service struct {
	repo    contestRepo
	oracle  problemOracle
	onJoin  func(slug string)
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
	logger  *zap.Logger
}

// NewService creates a new contest Service.
func NewService(repo contestRepo, oracle problemOracle, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		oracle:  oracle,
		now:     time.Now,
		shuffle: rand.Shuffle,
		logger:  logger,
	}
}

// SetOnJoin registers a hook called with the contest slug after a user joins.
// The server wires this to leaderboard invalidation.
func (s *Service) SetOnJoin(fn func(slug string)) {
	s.onJoin = fn
}

// SetClock replaces the clock used to decide whether a contest has ended.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetShuffle replaces the random permutation used to pick problems.
func (s *Service) SetShuffle(fn func(n int, swap func(i, j int))) {
	s.shuffle = fn
}

// Create validates and persists a new contest hosted by host.
func (s *Service) Create(ctx context.Context, name, host string, start, end time.Time) (*Contest, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if slug == "" {
		return nil, ErrInvalidName
	}
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}

	c := &Contest{
		Name:         name,
		Slug:         slug,
		Host:         host,
		StartTime:    start.UTC(),
		EndTime:      end.UTC(),
		Problems:     []Problem{},
		Participants: []Participant{},
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create contest: %w", err)
	}

	s.logger.Info("contest created",
		zap.String("slug", c.Slug),
		zap.String("host", host),
		zap.Time("start", c.StartTime),
	)
	return c, nil
}

// List returns one page of contests, newest start time first. page is
// 1-based; out-of-range values fall back to the first page of 10.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	list, err := s.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Contest{}
	}
	return &Page{
		Contests:    list,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}, nil
}

// GetBySlug returns the contest with the given slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Contest, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// Join adds the user to the contest's participants. Joining an ended contest
// or joining twice is rejected. On success the join hook runs.
func (s *Service) Join(ctx context.Context, slug string, userID uuid.UUID, handle string) error {
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if c.Ended(s.now()) {
		return ErrContestEnded
	}

	added, err := s.repo.AddParticipant(ctx, c.ID, userID, handle)
	if err != nil {
		return fmt.Errorf("join contest: %w", err)
	}
	if !added {
		return ErrAlreadyJoined
	}

	if s.onJoin != nil {
		s.onJoin(slug)
	}
	s.logger.Info("contest joined", zap.String("slug", slug), zap.String("handle", handle))
	return nil
}

// AddRandomProblems appends up to count problems of exactly the given rating,
// chosen uniformly at random among problems whose name is not already in the
// contest. Fewer are added when the pool runs short.
func (s *Service) AddRandomProblems(ctx context.Context, contestID uuid.UUID, rating, count int) (*Contest, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	c, err := s.repo.GetByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	all, err := s.oracle.ProblemSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load problem set: %w", err)
	}

	var pool []codeforces.Problem
	for _, p := range all {
		if p.Rating != nil && *p.Rating == rating && !c.HasProblemNamed(p.Name) {
			pool = append(pool, p)
		}
	}
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > count {
		pool = pool[:count]
	}

	picked := make([]Problem, 0, len(pool))
	for _, p := range pool {
		picked = append(picked, problemFrom(p))
	}
	return s.appendProblems(ctx, c, picked)
}

// AddProblemByURL appends the problem referenced by a Codeforces link.
func (s *Service) AddProblemByURL(ctx context.Context, contestID uuid.UUID, rawURL string) (*Contest, error) {
	cfContestID, index, err := ParseProblemURL(rawURL)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	all, err := s.oracle.ProblemSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load problem set: %w", err)
	}
	for _, p := range all {
		if p.ContestID == cfContestID && p.Index == index {
			return s.appendProblems(ctx, c, []Problem{problemFrom(p)})
		}
	}
	return nil, ErrProblemNotFound
}

func (s *Service) appendProblems(ctx context.Context, c *Contest, problems []Problem) (*Contest, error) {
	if err := s.repo.AddProblems(ctx, c.ID, problems); err != nil {
		return nil, fmt.Errorf("add problems: %w", err)
	}
	c.Problems = append(c.Problems, problems...)
	s.logger.Info("contest problems added", zap.String("slug", c.Slug), zap.Int("count", len(problems)))
	return c, nil
}

// Upcoming lists upstream contests that have not started yet.
func (s *Service) Upcoming(ctx context.Context) ([]External, error) {
	all, err := s.oracle.ContestList(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("load contest list: %w", err)
	}

	out := []External{}
	for _, c := range all {
		if c.Phase != codeforces.PhaseBefore {
			continue
		}
		out = append(out, External{
			ID:        c.ID,
			Name:      c.Name,
			StartTime: time.Unix(c.StartTimeSeconds, 0).UTC(),
			EndTime:   time.Unix(c.StartTimeSeconds+c.DurationSeconds, 0).UTC(),
			Origin:    upstreamOrigin,
			Link:      fmt.Sprintf("https://codeforces.com/contest/%d", c.ID),
		})
	}
	return out, nil
}
