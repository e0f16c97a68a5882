package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codedojo: HTTP %d: %s", e.Status, e.Message)
}

// Challenge is the problem a user must submit to in order to log in.
type Challenge struct {
	ProblemName  string `json:"problemName"`
	ProblemURL   string `json:"problemUrl"`
	UniqueString string `json:"uniqueString"`
}

// Login is returned by a successful VerifyChallenge.
type Login struct {
	ID     string `json:"_id"`
	Handle string `json:"handle"`
	Email  string `json:"email"`
	Rating *int   `json:"rating"`
	Token  string `json:"token"`
}

// Problem is a contest problem.
type Problem struct {
	ProblemID string `json:"problemId"`
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
	Rating    *int   `json:"rating,omitempty"`
}

// Participant is a user who joined a contest.
type Participant struct {
	UserID   string    `json:"userId"`
	Handle   string    `json:"handle"`
	Rating   *int      `json:"rating,omitempty"`
	JoinedAt time.Time `json:"joinTime"`
}

// Contest is a user-hosted contest.
type Contest struct {
	ID           string        `json:"_id"`
	Name         string        `json:"name"`
	Slug         string        `json:"slug"`
	Host         string        `json:"host"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Problems     []Problem     `json:"problems"`
	Participants []Participant `json:"participants"`
}

// ContestPage is one page of ListContests.
type ContestPage struct {
	Contests    []Contest `json:"contests"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
}

// ExternalContest is an upcoming Codeforces round.
type ExternalContest struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Origin    string    `json:"origin"`
	Link      string    `json:"link"`
}

// Standing is one leaderboard row. Error is set when the participant's
// submissions could not be fetched.
type Standing struct {
	Handle  string `json:"handle"`
	Rating  *int   `json:"rating,omitempty"`
	Score   int    `json:"score"`
	Penalty int    `json:"penalty"`
	Error   bool   `json:"error,omitempty"`
}

// Client talks to a CodeDojo server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *boardCache

	mu    sync.RWMutex
	token string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithToken attaches a session token to every request.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithCacheTTL enables in-memory leaderboard caching with the given TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl <= 0 {
			return fmt.Errorf("cache TTL must be positive, got %s", ttl)
		}
		c.cache = newBoardCache(ttl)
		return nil
	}
}

// New creates a Client for the server at baseURL, e.g.
// "https://codedojo.example.com". The /api/v1 prefix is added per call.
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetToken replaces the session token sent with authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// CreateChallenge starts a login for handle.
func (c *Client) CreateChallenge(ctx context.Context, handle string) (*Challenge, error) {
	var out Challenge
	if err := c.call(ctx, http.MethodPost, "/auth/challenge", map[string]string{"handle": handle}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyChallenge completes the login for handle. The returned token is not
// stored; call SetToken to use it.
func (c *Client) VerifyChallenge(ctx context.Context, handle string) (*Login, error) {
	var out Login
	if err := c.call(ctx, http.MethodPost, "/auth/verify", map[string]string{"handle": handle}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListContests returns one page of contests, newest first.
func (c *Client) ListContests(ctx context.Context, page, limit int) (*ContestPage, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))

	var out ContestPage
	if err := c.call(ctx, http.MethodGet, "/contests?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContest fetches a contest by slug.
func (c *Client) GetContest(ctx context.Context, slug string) (*Contest, error) {
	var out Contest
	if err := c.call(ctx, http.MethodGet, "/contests/slug/"+url.PathEscape(slug), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinContest registers the signed-in user for a contest.
func (c *Client) JoinContest(ctx context.Context, slug string) error {
	return c.call(ctx, http.MethodPost, "/contests/slug/"+url.PathEscape(slug)+"/join", nil, nil)
}

// Leaderboard returns the ranked standings of a contest.
func (c *Client) Leaderboard(ctx context.Context, slug string) ([]Standing, error) {
	if c.cache != nil {
		if rows, ok := c.cache.get(slug); ok {
			return rows, nil
		}
	}

	var out []Standing
	if err := c.call(ctx, http.MethodGet, "/contests/slug/"+url.PathEscape(slug)+"/leaderboard", nil, &out); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.set(slug, out)
	}
	return out, nil
}

// UpcomingContests lists Codeforces rounds that have not started.
func (c *Client) UpcomingContests(ctx context.Context) ([]ExternalContest, error) {
	var out []ExternalContest
	if err := c.call(ctx, http.MethodGet, "/contests/external", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call sends a JSON request to /api/v1+path and decodes the response into
// out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBytes)
	}

	if out != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// --- simple in-memory leaderboard cache ---

type cacheEntry struct {
	rows      []Standing
	expiresAt time.Time
}

type boardCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newBoardCache(ttl time.Duration) *boardCache {
	return &boardCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (bc *boardCache) get(slug string) ([]Standing, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	e, ok := bc.entries[slug]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.rows, true
}

func (bc *boardCache) set(slug string, rows []Standing) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.entries[slug] = &cacheEntry{rows: rows, expiresAt: time.Now().Add(bc.ttl)}
}
