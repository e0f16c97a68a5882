// Package codeforces is the single gateway to the Codeforces read API.
//
// Every other component learns about problems, users, and submissions through
// Client. It normalises the upstream envelope, enforces a request timeout and
// a token-bucket rate limit, and caches the slow-changing catalogs.
package codeforces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codedojo/codedojo/internal/cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Codeforces API root.
const DefaultBaseURL = "https://codeforces.com/api"

const (
	problemSetTTL  = time.Hour
	contestListTTL = 5 * time.Minute

	// maxSubmissionCount mirrors the upper bound Codeforces accepts for user.status.
	maxSubmissionCount = 10000
	maxResponseBytes   = 64 << 20
)

// Sentinel errors. Callers use errors.Is to tell a typo'd handle apart from
// a transient upstream failure.
var (
	ErrUnavailable     = errors.New("codeforces unavailable")
	ErrHandleNotFound  = errors.New("codeforces handle not found")
	ErrInvalidArgument = errors.New("invalid codeforces request")
)

// MetricsRecordFunc is an optional callback invoked once per upstream call.
// result is "ok", "not_found", or "error".
type MetricsRecordFunc func(method, result string)

// envelope is the common response wrapper of every Codeforces method.
type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

// Client talks to the Codeforces API.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	problems *cache.TTL[[]Problem]
	contests *cache.TTL[[]Contest]
	flight   singleflight.Group
	onCall   MetricsRecordFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (and its timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps upstream calls to rps per second with a burst of rps.
// Zero or negative disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithClock sets the clock used by the catalog caches.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.problems.Now = now
		c.contests.Now = now
	}
}

// WithMetrics registers a per-call metrics callback.
func WithMetrics(fn MetricsRecordFunc) Option {
	return func(c *Client) { c.onCall = fn }
}

// NewClient creates a Client targeting baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		problems: cache.New[[]Problem](problemSetTTL),
		contests: cache.New[[]Contest](contestListTTL),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ProblemSet returns the full problem catalog. The result is cached for an
// hour and concurrent misses share a single upstream request.
func (c *Client) ProblemSet(ctx context.Context) ([]Problem, error) {
	const key = "problemset"
	if ps, ok := c.problems.Get(key); ok {
		return ps, nil
	}

	return share(ctx, &c.flight, key, func(ctx context.Context) ([]Problem, error) {
		if ps, ok := c.problems.Get(key); ok {
			return ps, nil
		}
		var result struct {
			Problems []Problem `json:"problems"`
		}
		if err := c.call(ctx, "problemset.problems", nil, &result); err != nil {
			return nil, err
		}
		c.problems.Set(key, result.Problems)
		return result.Problems, nil
	})
}

// UserSubmissions returns up to count submissions of handle starting at the
// 1-based position from, in the order Codeforces returns them. Never cached.
func (c *Client) UserSubmissions(ctx context.Context, handle string, from, count int) ([]Submission, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrInvalidArgument)
	}
	if from < 1 {
		return nil, fmt.Errorf("%w: from must be >= 1, got %d", ErrInvalidArgument, from)
	}
	if count < 1 || count > maxSubmissionCount {
		return nil, fmt.Errorf("%w: count must be in [1, %d], got %d", ErrInvalidArgument, maxSubmissionCount, count)
	}

	params := url.Values{}
	params.Set("handle", handle)
	params.Set("from", strconv.Itoa(from))
	params.Set("count", strconv.Itoa(count))

	var subs []Submission
	if err := c.call(ctx, "user.status", params, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// UserInfo returns rating and rank metadata for handle.
func (c *Client) UserInfo(ctx context.Context, handle string) (*User, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrInvalidArgument)
	}
	params := url.Values{}
	params.Set("handles", handle)

	var users []User
	if err := c.call(ctx, "user.info", params, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrHandleNotFound, handle)
	}
	return &users[0], nil
}

// ContestList returns upstream contests, cached for five minutes per gym flag.
func (c *Client) ContestList(ctx context.Context, gym bool) ([]Contest, error) {
	key := "contests_" + strconv.FormatBool(gym)
	if cs, ok := c.contests.Get(key); ok {
		return cs, nil
	}

	return share(ctx, &c.flight, key, func(ctx context.Context) ([]Contest, error) {
		if cs, ok := c.contests.Get(key); ok {
			return cs, nil
		}
		params := url.Values{}
		params.Set("gym", strconv.FormatBool(gym))
		var cs []Contest
		if err := c.call(ctx, "contest.list", params, &cs); err != nil {
			return nil, err
		}
		c.contests.Set(key, cs)
		return cs, nil
	})
}

// Ping performs the cheapest upstream call there is, one recent submission,
// through the same rate limiter as every other call.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("count", "1")
	var subs []Submission
	return c.call(ctx, "problemset.recentStatus", params, &subs)
}

// share collapses concurrent fills of key into one fetch. The fetch runs
// detached from the callers' contexts, so it is bounded only by the HTTP
// client timeout; a caller whose ctx ends stops waiting without failing the
// others.
func share[T any](ctx context.Context, g *singleflight.Group, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	ch := g.DoChan(key, func() (any, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}

// call performs one GET against method and decodes the result payload into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) (err error) {
	defer func() { c.record(method, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: rate limiter: %w", ErrUnavailable, method, err)
		}
	}

	u := c.baseURL + "/" + method
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, method, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrUnavailable, method, err)
	}

	// Codeforces answers FAILED calls with a 400 and a JSON envelope, so the
	// envelope is decoded regardless of the HTTP status.
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %s returned status %d with undecodable body", ErrUnavailable, method, resp.StatusCode)
	}
	if env.Status != "OK" {
		if strings.Contains(strings.ToLower(env.Comment), "not found") {
			return fmt.Errorf("%w: %s", ErrHandleNotFound, env.Comment)
		}
		return fmt.Errorf("%w: %s: status %q: %s", ErrUnavailable, method, env.Status, env.Comment)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %w", ErrUnavailable, method, err)
	}
	return nil
}

func (c *Client) record(method string, err error) {
	if c.onCall == nil {
		return
	}
	switch {
	case err == nil:
		c.onCall(method, "ok")
	case errors.Is(err, ErrHandleNotFound):
		c.onCall(method, "not_found")
	default:
		c.onCall(method, "error")
	}
}
