package contests_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/contests"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubRepo struct {
	mu     sync.Mutex
	bySlug map[string]*contests.Contest
}

func newStubRepo() *stubRepo {
	return &stubRepo{bySlug: make(map[string]*contests.Contest)}
}

func (r *stubRepo) Create(_ context.Context, c *contests.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySlug[c.Slug]; ok {
		return contests.ErrSlugTaken
	}
	c.ID = uuid.New()
	r.bySlug[c.Slug] = c
	return nil
}

func (r *stubRepo) List(_ context.Context, limit, offset int) ([]*contests.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*contests.Contest
	for _, c := range r.bySlug {
		all = append(all, c)
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *stubRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySlug), nil
}

func (r *stubRepo) GetBySlug(_ context.Context, slug string) (*contests.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySlug[slug]
	if !ok {
		return nil, contests.ErrNotFound
	}
	return c, nil
}

func (r *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*contests.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.bySlug {
		if c.ID == id {
			cp := *c
			cp.Problems = append([]contests.Problem(nil), c.Problems...)
			return &cp, nil
		}
	}
	return nil, contests.ErrNotFound
}

func (r *stubRepo) AddParticipant(_ context.Context, contestID, userID uuid.UUID, handle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.bySlug {
		if c.ID != contestID {
			continue
		}
		for _, p := range c.Participants {
			if p.UserID == userID {
				return false, nil
			}
		}
		c.Participants = append(c.Participants, contests.Participant{UserID: userID, Handle: handle})
		return true, nil
	}
	return false, contests.ErrNotFound
}

func (r *stubRepo) AddProblems(_ context.Context, contestID uuid.UUID, problems []contests.Problem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.bySlug {
		if c.ID == contestID {
			c.Problems = append(c.Problems, problems...)
			return nil
		}
	}
	return contests.ErrNotFound
}

type stubOracle struct {
	problems []codeforces.Problem
	contests []codeforces.Contest
	err      error
}

func (o *stubOracle) ProblemSet(context.Context) ([]codeforces.Problem, error) {
	return o.problems, o.err
}

func (o *stubOracle) ContestList(_ context.Context, gym bool) ([]codeforces.Contest, error) {
	if gym {
		return nil, errors.New("unexpected gym request")
	}
	return o.contests, o.err
}

func intPtr(v int) *int { return &v }

// ── Helpers ──────────────────────────────────────────────────────────────

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*contests.Service, *stubRepo, *stubOracle) {
	t.Helper()
	repo := newStubRepo()
	oracle := &stubOracle{
		problems: []codeforces.Problem{
			{ContestID: 1, Index: "A", Name: "Alpha", Rating: intPtr(800)},
			{ContestID: 2, Index: "A", Name: "Bravo", Rating: intPtr(800)},
			{ContestID: 3, Index: "B", Name: "Charlie", Rating: intPtr(800)},
			{ContestID: 4, Index: "C", Name: "Delta", Rating: intPtr(1200)},
			{ContestID: 5, Index: "D", Name: "Echo"},
		},
	}
	svc := contests.NewService(repo, oracle, zap.NewNop())
	svc.SetClock(func() time.Time { return t0 })
	return svc, repo, oracle
}

func mustCreate(t *testing.T, svc *contests.Service, name string) *contests.Contest {
	t.Helper()
	c, err := svc.Create(context.Background(), name, "host", t0.Add(-time.Hour), t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Create(%q): %v", name, err)
	}
	return c
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCreate(t *testing.T) {
	svc, _, _ := newTestService(t)

	c := mustCreate(t, svc, "Spring Open 2024")
	if c.Slug != "spring-open-2024" {
		t.Errorf("Slug: got %q", c.Slug)
	}
	if c.Host != "host" || c.ID == uuid.Nil {
		t.Errorf("unexpected contest: %+v", c)
	}
}

func TestCreate_validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "  ", "h", t0, t0.Add(time.Hour)); !errors.Is(err, contests.ErrInvalidName) {
		t.Errorf("blank name: expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Create(ctx, "Backwards", "h", t0, t0); !errors.Is(err, contests.ErrInvalidWindow) {
		t.Errorf("empty window: expected ErrInvalidWindow, got %v", err)
	}

	mustCreate(t, svc, "Dup")
	if _, err := svc.Create(ctx, "dup", "h", t0, t0.Add(time.Hour)); !errors.Is(err, contests.ErrSlugTaken) {
		t.Errorf("duplicate slug: expected ErrSlugTaken, got %v", err)
	}
}

func TestList_pagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, n := range []string{"a", "b", "c"} {
		mustCreate(t, svc, n)
	}

	page, err := svc.List(context.Background(), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalPages != 2 || page.CurrentPage != 2 || len(page.Contests) != 1 {
		t.Errorf("unexpected page: total=%d current=%d len=%d", page.TotalPages, page.CurrentPage, len(page.Contests))
	}

	page, err = svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.CurrentPage != 1 || page.TotalPages != 1 {
		t.Errorf("defaults: got page %d of %d", page.CurrentPage, page.TotalPages)
	}
}

func TestJoin(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := mustCreate(t, svc, "Joinable")

	var invalidated []string
	svc.SetOnJoin(func(slug string) { invalidated = append(invalidated, slug) })

	user := uuid.New()
	if err := svc.Join(context.Background(), c.Slug, user, "alice"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if len(invalidated) != 1 || invalidated[0] != c.Slug {
		t.Errorf("join hook: got %v", invalidated)
	}

	err := svc.Join(context.Background(), c.Slug, user, "alice")
	if !errors.Is(err, contests.ErrAlreadyJoined) {
		t.Errorf("second join: expected ErrAlreadyJoined, got %v", err)
	}
	if len(invalidated) != 1 {
		t.Error("a rejected join must not invalidate")
	}
}

func TestJoin_endedContest(t *testing.T) {
	svc, _, _ := newTestService(t)
	c, err := svc.Create(context.Background(), "Past", "h", t0.Add(-2*time.Hour), t0.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Join(context.Background(), c.Slug, uuid.New(), "bob"); !errors.Is(err, contests.ErrContestEnded) {
		t.Errorf("expected ErrContestEnded, got %v", err)
	}
}

func TestJoin_unknownSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.Join(context.Background(), "nope", uuid.New(), "bob"); !errors.Is(err, contests.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRandomProblems(t *testing.T) {
	svc, repo, _ := newTestService(t)
	c := mustCreate(t, svc, "Random")
	svc.SetShuffle(func(int, func(i, j int)) {})

	got, err := svc.AddRandomProblems(context.Background(), c.ID, 800, 2)
	if err != nil {
		t.Fatalf("AddRandomProblems: %v", err)
	}
	if len(got.Problems) != 2 || got.Problems[0].ProblemID != "1A" || got.Problems[1].ProblemID != "2A" {
		t.Errorf("unexpected problems: %+v", got.Problems)
	}

	// Names already present are excluded; only one 800 problem is left.
	got, err = svc.AddRandomProblems(context.Background(), c.ID, 800, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Problems) != 3 || got.Problems[2].Name != "Charlie" {
		t.Errorf("unexpected problems after second add: %+v", got.Problems)
	}
	if len(repo.bySlug[c.Slug].Problems) != 3 {
		t.Error("problems not persisted")
	}
}

func TestAddRandomProblems_invalidCount(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := mustCreate(t, svc, "Zero")
	if _, err := svc.AddRandomProblems(context.Background(), c.ID, 800, 0); !errors.Is(err, contests.ErrInvalidCount) {
		t.Errorf("expected ErrInvalidCount, got %v", err)
	}
}

func TestAddProblemByURL(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := mustCreate(t, svc, "Manual")
	ctx := context.Background()

	got, err := svc.AddProblemByURL(ctx, c.ID, "https://codeforces.com/contest/4/problem/c")
	if err != nil {
		t.Fatalf("AddProblemByURL: %v", err)
	}
	if len(got.Problems) != 1 || got.Problems[0].Name != "Delta" {
		t.Errorf("unexpected problems: %+v", got.Problems)
	}

	if _, err := svc.AddProblemByURL(ctx, c.ID, "https://codeforces.com/problemset/problem/9/Z"); !errors.Is(err, contests.ErrProblemNotFound) {
		t.Errorf("expected ErrProblemNotFound, got %v", err)
	}
	if _, err := svc.AddProblemByURL(ctx, c.ID, "not a url"); !errors.Is(err, contests.ErrBadProblemURL) {
		t.Errorf("expected ErrBadProblemURL, got %v", err)
	}
	if _, err := svc.AddProblemByURL(ctx, uuid.New(), "https://codeforces.com/contest/4/problem/C"); !errors.Is(err, contests.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpcoming(t *testing.T) {
	svc, _, oracle := newTestService(t)
	oracle.contests = []codeforces.Contest{
		{ID: 2000, Name: "Round 2000", Phase: "BEFORE", StartTimeSeconds: 1_800_000_000, DurationSeconds: 7200},
		{ID: 1999, Name: "Round 1999", Phase: "FINISHED", StartTimeSeconds: 1_700_000_000, DurationSeconds: 7200},
	}

	got, err := svc.Upcoming(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 upcoming contest, got %d", len(got))
	}
	up := got[0]
	if up.Origin != "Codeforces" || up.Link != "https://codeforces.com/contest/2000" {
		t.Errorf("unexpected external contest: %+v", up)
	}
	if up.EndTime.Sub(up.StartTime) != 2*time.Hour {
		t.Errorf("window: got %v", up.EndTime.Sub(up.StartTime))
	}
}

func TestUpcoming_oracleError(t *testing.T) {
	svc, _, oracle := newTestService(t)
	oracle.err = codeforces.ErrUnavailable
	if _, err := svc.Upcoming(context.Background()); !errors.Is(err, codeforces.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
