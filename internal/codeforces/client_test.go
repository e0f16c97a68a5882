package codeforces_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
)

// ── Stub upstream ────────────────────────────────────────────────────────

type stubUpstream struct {
	srv   *httptest.Server
	calls map[string]*atomic.Int32
}

func newStubUpstream(t *testing.T, routes map[string]http.HandlerFunc) *stubUpstream {
	t.Helper()
	s := &stubUpstream{calls: make(map[string]*atomic.Int32)}
	mux := http.NewServeMux()
	for path, h := range routes {
		counter := &atomic.Int32{}
		s.calls[path] = counter
		handler := h
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			counter.Add(1)
			handler(w, r)
		})
	}
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubUpstream) count(path string) int {
	return int(s.calls[path].Load())
}

func okJSON(result string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"OK","result":%s}`, result)
	}
}

func failed(code int, comment string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":"FAILED","comment":%q}`, comment)
	}
}

const problemSetJSON = `{"problems":[
	{"contestId":1850,"index":"A","name":"To My Critics","rating":800,"tags":["implementation"]},
	{"contestId":4,"index":"A","name":"Watermelon","rating":800,"tags":["math","brute force"]}
],"problemStatistics":[]}`

// ── Tests ────────────────────────────────────────────────────────────────

func TestProblemSet_cachedForAnHour(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/problemset.problems": okJSON(problemSetJSON),
	})
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := codeforces.NewClient(up.srv.URL, codeforces.WithClock(func() time.Time { return now }))

	ps, err := c.ProblemSet(context.Background())
	if err != nil {
		t.Fatalf("ProblemSet: %v", err)
	}
	if len(ps) != 2 || ps[1].ID() != "4A" {
		t.Fatalf("unexpected problems: %+v", ps)
	}
	if ps[0].Rating == nil || *ps[0].Rating != 800 {
		t.Errorf("rating not decoded: %+v", ps[0])
	}

	now = now.Add(59 * time.Minute)
	if _, err := c.ProblemSet(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := up.count("/problemset.problems"); n != 1 {
		t.Errorf("upstream calls within TTL: got %d, want 1", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.ProblemSet(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := up.count("/problemset.problems"); n != 2 {
		t.Errorf("upstream calls after TTL: got %d, want 2", n)
	}
}

func TestProblemSet_concurrentMissesShareOneCall(t *testing.T) {
	release := make(chan struct{})
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/problemset.problems": func(w http.ResponseWriter, r *http.Request) {
			<-release
			okJSON(problemSetJSON)(w, r)
		},
	})
	c := codeforces.NewClient(up.srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ProblemSet(context.Background()); err != nil {
				t.Errorf("ProblemSet: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := up.count("/problemset.problems"); n != 1 {
		t.Errorf("upstream calls: got %d, want 1", n)
	}
}

func TestProblemSet_cancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/problemset.problems": func(w http.ResponseWriter, r *http.Request) {
			<-release
			okJSON(problemSetJSON)(w, r)
		},
	})
	c := codeforces.NewClient(up.srv.URL)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.ProblemSet(leaderCtx)
		leaderErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	followerErr := make(chan error, 1)
	go func() {
		ps, err := c.ProblemSet(context.Background())
		if err == nil && len(ps) != 2 {
			err = fmt.Errorf("got %d problems", len(ps))
		}
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: expected context.Canceled, got %v", err)
	}

	close(release)
	if err := <-followerErr; err != nil {
		t.Errorf("waiting caller must get the shared result: %v", err)
	}
	if n := up.count("/problemset.problems"); n != 1 {
		t.Errorf("upstream calls: got %d, want 1", n)
	}
	if _, err := c.ProblemSet(context.Background()); err != nil {
		t.Errorf("result must be cached after the shared fetch: %v", err)
	}
	if n := up.count("/problemset.problems"); n != 1 {
		t.Errorf("upstream calls after cache fill: got %d, want 1", n)
	}
}

func TestProblemSet_failedStatusIsUnavailable(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/problemset.problems": failed(http.StatusServiceUnavailable, "Call limit exceeded"),
	})
	c := codeforces.NewClient(up.srv.URL)

	_, err := c.ProblemSet(context.Background())
	if !errors.Is(err, codeforces.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUserSubmissions_queryAndDecode(t *testing.T) {
	var gotQuery string
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/user.status": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			okJSON(`[{"id":7,"creationTimeSeconds":1700000000,"verdict":"WRONG_ANSWER",
				"problem":{"contestId":1850,"index":"A","name":"To My Critics","tags":[]}}]`)(w, r)
		},
	})
	c := codeforces.NewClient(up.srv.URL)

	subs, err := c.UserSubmissions(context.Background(), "tourist", 1, 100)
	if err != nil {
		t.Fatalf("UserSubmissions: %v", err)
	}
	if gotQuery != "count=100&from=1&handle=tourist" {
		t.Errorf("query: got %q", gotQuery)
	}
	if len(subs) != 1 || subs[0].Problem.ID() != "1850A" || subs[0].Accepted() {
		t.Errorf("unexpected submissions: %+v", subs)
	}

	// Not cached: a second call hits upstream again.
	if _, err := c.UserSubmissions(context.Background(), "tourist", 1, 100); err != nil {
		t.Fatal(err)
	}
	if n := up.count("/user.status"); n != 2 {
		t.Errorf("upstream calls: got %d, want 2", n)
	}
}

func TestUserSubmissions_handleNotFound(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/user.status": failed(http.StatusBadRequest, "handle: User with handle nobody_xyz not found"),
	})
	c := codeforces.NewClient(up.srv.URL)

	_, err := c.UserSubmissions(context.Background(), "nobody_xyz", 1, 1)
	if !errors.Is(err, codeforces.ErrHandleNotFound) {
		t.Fatalf("expected ErrHandleNotFound, got %v", err)
	}
	if errors.Is(err, codeforces.ErrUnavailable) {
		t.Error("not-found must be distinguishable from unavailable")
	}
}

func TestUserSubmissions_invalidArguments(t *testing.T) {
	c := codeforces.NewClient("http://127.0.0.1:0")
	cases := []struct {
		name        string
		handle      string
		from, count int
	}{
		{"empty handle", "", 1, 1},
		{"from zero", "tourist", 0, 1},
		{"count zero", "tourist", 1, 0},
		{"count too large", "tourist", 1, 10001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.UserSubmissions(context.Background(), tc.handle, tc.from, tc.count)
			if !errors.Is(err, codeforces.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestUserSubmissions_timeoutIsUnavailable(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/user.status": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		},
	})
	c := codeforces.NewClient(up.srv.URL, codeforces.WithTimeout(20*time.Millisecond))

	_, err := c.UserSubmissions(context.Background(), "tourist", 1, 1)
	if !errors.Is(err, codeforces.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
}

func TestUserSubmissions_garbageBodyIsUnavailable(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/user.status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>bad gateway</html>"))
		},
	})
	c := codeforces.NewClient(up.srv.URL)

	_, err := c.UserSubmissions(context.Background(), "tourist", 1, 1)
	if !errors.Is(err, codeforces.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUserInfo(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/user.info": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("handles") != "tourist" {
				t.Errorf("handles param: %q", r.URL.Query().Get("handles"))
			}
			okJSON(`[{"handle":"tourist","rating":3800,"maxRating":4000,"rank":"legendary grandmaster","maxRank":"legendary grandmaster"}]`)(w, r)
		},
	})
	c := codeforces.NewClient(up.srv.URL)

	u, err := c.UserInfo(context.Background(), "tourist")
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	if u.Rating == nil || *u.Rating != 3800 || u.MaxRating == nil || *u.MaxRating != 4000 || u.Rank != "legendary grandmaster" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestContestList_cachedPerGymFlag(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/contest.list": okJSON(`[{"id":2000,"name":"Codeforces Round","phase":"BEFORE","durationSeconds":7200,"startTimeSeconds":1900000000}]`),
	})
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := codeforces.NewClient(up.srv.URL, codeforces.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.ContestList(ctx, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.ContestList(ctx, true); err != nil {
		t.Fatal(err)
	}
	if n := up.count("/contest.list"); n != 2 {
		t.Errorf("upstream calls: got %d, want 2 (one per gym flag)", n)
	}

	now = now.Add(6 * time.Minute)
	if _, err := c.ContestList(ctx, false); err != nil {
		t.Fatal(err)
	}
	if n := up.count("/contest.list"); n != 3 {
		t.Errorf("upstream calls after TTL: got %d, want 3", n)
	}
}

func TestPing(t *testing.T) {
	var query string
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/problemset.recentStatus": func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			okJSON(`[]`)(w, r)
		},
	})
	c := codeforces.NewClient(up.srv.URL)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if query != "count=1" {
		t.Errorf("query: got %q, want count=1", query)
	}
}

func TestPing_failedStatusIsUnavailable(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/problemset.recentStatus": failed(http.StatusServiceUnavailable, "Codeforces is temporarily unavailable"),
	})
	c := codeforces.NewClient(up.srv.URL)

	if err := c.Ping(context.Background()); !errors.Is(err, codeforces.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMetricsCallback(t *testing.T) {
	up := newStubUpstream(t, map[string]http.HandlerFunc{
		"/user.info":   failed(http.StatusBadRequest, "handles: User with handle x not found"),
		"/user.status": okJSON(`[]`),
	})
	var mu sync.Mutex
	got := map[string]string{}
	c := codeforces.NewClient(up.srv.URL, codeforces.WithMetrics(func(method, result string) {
		mu.Lock()
		got[method] = result
		mu.Unlock()
	}))

	c.UserInfo(context.Background(), "x")
	c.UserSubmissions(context.Background(), "x", 1, 1)

	if got["user.info"] != "not_found" || got["user.status"] != "ok" {
		t.Errorf("metrics: got %v", got)
	}
}
