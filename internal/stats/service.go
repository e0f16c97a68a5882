package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/codedojo/codedojo/internal/cache"
	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statsTTL   = 10 * time.Minute
	profileTTL = 5 * time.Minute

	historySize        = 1000
	recentSize         = 20
	recommendationSize = 10
)

// Profile is a handle's public profile with its latest submissions.
type Profile struct {
	Info        *codeforces.User        `json:"info"`
	Submissions []codeforces.Submission `json:"submissions"`
}

// oracle is the subset of *codeforces.Client the service needs.
type oracle interface {
	ProblemSet(ctx context.Context) ([]codeforces.Problem, error)
	UserSubmissions(ctx context.Context, handle string, from, count int) ([]codeforces.Submission, error)
	UserInfo(ctx context.Context, handle string) (*codeforces.User, error)
}

// userLookup is satisfied by *users.Repository.
type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Service serves per-handle statistics, caching each view by handle.
type Service struct {
	oracle    oracle
	users     userLookup
	summaries *cache.TTL[*Summary]
	heatmaps  *cache.TTL[[]Day]
	profiles  *cache.TTL[*Profile]
	logger    *zap.Logger
}

// NewService creates a stats Service.
func NewService(oracle oracle, users userLookup, logger *zap.Logger) *Service {
	return &Service{
		oracle:    oracle,
		users:     users,
		summaries: cache.New[*Summary](statsTTL),
		heatmaps:  cache.New[[]Day](statsTTL),
		profiles:  cache.New[*Profile](profileTTL),
		logger:    logger,
	}
}

// Run evicts expired entries from every cache until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	go s.heatmaps.Run(ctx, interval)
	go s.profiles.Run(ctx, interval)
	s.summaries.Run(ctx, interval)
}

// Summary returns the verdict, tag and difficulty breakdown for handle.
func (s *Service) Summary(ctx context.Context, handle string) (*Summary, error) {
	if v, ok := s.summaries.Get(handle); ok {
		return v, nil
	}
	subs, err := s.oracle.UserSubmissions(ctx, handle, 1, historySize)
	if err != nil {
		return nil, err
	}
	v := Summarize(subs)
	s.summaries.Set(handle, v)
	return v, nil
}

// Heatmap returns daily submission counts for handle.
func (s *Service) Heatmap(ctx context.Context, handle string) ([]Day, error) {
	if v, ok := s.heatmaps.Get(handle); ok {
		return v, nil
	}
	subs, err := s.oracle.UserSubmissions(ctx, handle, 1, historySize)
	if err != nil {
		return nil, err
	}
	v := Heatmap(subs)
	s.heatmaps.Set(handle, v)
	return v, nil
}

// Profile returns the upstream profile of handle and its most recent
// submissions.
func (s *Service) Profile(ctx context.Context, handle string) (*Profile, error) {
	if v, ok := s.profiles.Get(handle); ok {
		return v, nil
	}
	info, err := s.oracle.UserInfo(ctx, handle)
	if err != nil {
		return nil, err
	}
	subs, err := s.oracle.UserSubmissions(ctx, handle, 1, recentSize)
	if err != nil {
		return nil, err
	}
	v := &Profile{Info: info, Submissions: subs}
	s.profiles.Set(handle, v)
	return v, nil
}

// Recommendations suggests unsolved problems for the signed-in user, based on
// the rating stored at their last login. Not cached: the result depends on
// problems solved moments ago.
func (s *Service) Recommendations(ctx context.Context, userID uuid.UUID) ([]codeforces.Problem, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	subs, err := s.oracle.UserSubmissions(ctx, u.Handle, 1, historySize)
	if err != nil {
		return nil, err
	}
	problems, err := s.oracle.ProblemSet(ctx)
	if err != nil {
		return nil, err
	}
	recs := Recommend(problems, subs, u.Rating, recommendationSize)
	s.logger.Debug("recommendations computed", zap.String("handle", u.Handle), zap.Int("count", len(recs)))
	return recs, nil
}
