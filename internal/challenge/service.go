// Package challenge implements login by proof of control over a Codeforces
// handle.
//
// The server picks a random problem and asks the user to submit to it (the UI
// asks for a deliberately non-compiling submission). Verification then checks
// that the handle's most recent submission targets that problem.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/users"
	"go.uber.org/zap"
)

// Sentinel errors for the challenge protocol.
var (
	ErrInvalidHandle       = errors.New("codeforces handle is required")
	ErrNoRecentSubmissions = errors.New("no recent submissions found")
	ErrProblemMismatch     = errors.New("verification failed: incorrect problem")
)

// oracle is the subset of *codeforces.Client the protocol needs.
type oracle interface {
	ProblemSet(ctx context.Context) ([]codeforces.Problem, error)
	UserSubmissions(ctx context.Context, handle string, from, count int) ([]codeforces.Submission, error)
	UserInfo(ctx context.Context, handle string) (*codeforces.User, error)
}

// userUpserter is satisfied by *users.Repository.
type userUpserter interface {
	UpsertByHandle(ctx context.Context, u *users.User) error
}

// sessionIssuer is satisfied by *identity.SessionIssuer.
type sessionIssuer interface {
	Issue(userID, handle string) (string, error)
}

// MetricsRecordFunc is an optional callback recording protocol outcomes:
// "issued", "verified", or "failed".
type MetricsRecordFunc func(outcome string)

// Service issues and verifies handle challenges.
type Service struct {
	store       Store
	oracle      oracle
	users       userUpserter
	sessions    sessionIssuer
	emailDomain string
	pick        func(n int) int
	now         func() time.Time
	onOutcome   MetricsRecordFunc
	logger      *zap.Logger
}

// NewService creates a Service.
func NewService(store Store, oracle oracle, users userUpserter, sessions sessionIssuer, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		oracle:      oracle,
		users:       users,
		sessions:    sessions,
		emailDomain: "codedojo.io",
		pick:        mrand.IntN,
		now:         time.Now,
		logger:      logger,
	}
}

// SetEmailDomain sets the domain of the placeholder email given to users
// whose Codeforces profile hides their address.
func (s *Service) SetEmailDomain(domain string) {
	s.emailDomain = domain
}

// SetPicker replaces the uniform random problem picker. pick(n) must return
// a value in [0, n).
func (s *Service) SetPicker(pick func(n int) int) {
	s.pick = pick
}

// SetClock replaces the clock used to stamp new challenges.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetMetricsRecord configures the outcome metrics callback.
func (s *Service) SetMetricsRecord(fn MetricsRecordFunc) {
	s.onOutcome = fn
}

// Create issues a new challenge for handle, abandoning any previous one.
func (s *Service) Create(ctx context.Context, handle string) (*Issued, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrInvalidHandle
	}

	// A one-submission probe is the cheapest way to learn whether the handle exists.
	if _, err := s.oracle.UserSubmissions(ctx, handle, 1, 1); err != nil {
		return nil, fmt.Errorf("probe handle: %w", err)
	}

	problems, err := s.oracle.ProblemSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load problem set: %w", err)
	}
	if len(problems) == 0 {
		return nil, fmt.Errorf("%w: empty problem set", codeforces.ErrUnavailable)
	}
	p := problems[s.pick(len(problems))]

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	ch := &Challenge{
		Handle:       handle,
		ContestID:    p.ContestID,
		ProblemIndex: p.Index,
		ProblemName:  p.Name,
		ProblemURL:   p.URL(),
		Token:        token,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Put(ctx, ch); err != nil {
		return nil, fmt.Errorf("persist challenge: %w", err)
	}

	s.record("issued")
	s.logger.Info("challenge issued",
		zap.String("handle", handle),
		zap.String("problem", p.ID()),
	)
	return &Issued{ProblemName: ch.ProblemName, ProblemURL: ch.ProblemURL, Token: ch.Token}, nil
}

// Verify checks that handle's most recent submission targets the problem of
// its live challenge. On success the user record is upserted, a session
// token is issued, and the challenge is consumed.
//
// Only the problem identity is compared. An accepted submission to the right
// problem passes just like the compile error the UI asks for, and the
// challenge token is not part of the check.
func (s *Service) Verify(ctx context.Context, handle string) (*Login, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrInvalidHandle
	}

	ch, err := s.store.Get(ctx, handle)
	if err != nil {
		return nil, err
	}

	subs, err := s.oracle.UserSubmissions(ctx, handle, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch latest submission: %w", err)
	}
	latest, ok := latestSubmission(subs)
	if !ok {
		s.record("failed")
		return nil, ErrNoRecentSubmissions
	}
	if !ch.Matches(latest) {
		s.record("failed")
		s.logger.Info("challenge verification failed",
			zap.String("handle", handle),
			zap.String("expected", codeforces.ProblemID(ch.ContestID, ch.ProblemIndex)),
			zap.String("got", latest.Problem.ID()),
		)
		return nil, fmt.Errorf("%w: latest submission is for %s", ErrProblemMismatch, latest.Problem.ID())
	}

	info, err := s.oracle.UserInfo(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	u := &users.User{
		Handle:    info.Handle,
		Email:     info.Email,
		Rank:      info.Rank,
		Rating:    info.Rating,
		MaxRank:   info.MaxRank,
		MaxRating: info.MaxRating,
	}
	if u.Handle == "" {
		u.Handle = handle
	}
	if u.Email == "" {
		u.Email = u.Handle + "@" + s.emailDomain
	}
	if err := s.users.UpsertByHandle(ctx, u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	token, err := s.sessions.Issue(u.ID.String(), u.Handle)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	if err := s.store.Delete(ctx, handle); err != nil {
		// The challenge expires on its own; the login already succeeded.
		s.logger.Warn("delete consumed challenge", zap.String("handle", handle), zap.Error(err))
	}

	s.record("verified")
	s.logger.Info("challenge verified", zap.String("handle", u.Handle), zap.String("user_id", u.ID.String()))
	return &Login{
		UserID:       u.ID.String(),
		Handle:       u.Handle,
		Email:        u.Email,
		Rating:       u.Rating,
		SessionToken: token,
	}, nil
}

// SweepExpired removes expired challenges from the store. Safe to call from a
// background goroutine.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned expired challenges", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) record(outcome string) {
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
}

// latestSubmission returns the submission with the greatest creation time
// instead of trusting the upstream ordering.
func latestSubmission(subs []codeforces.Submission) (codeforces.Submission, bool) {
	if len(subs) == 0 {
		return codeforces.Submission{}, false
	}
	latest := subs[0]
	for _, sub := range subs[1:] {
		if sub.CreationTimeSeconds > latest.CreationTimeSeconds {
			latest = sub
		}
	}
	return latest, true
}

// newToken returns 16 random bytes, hex-encoded.
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
