package challenge

import (
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
)

// DefaultTTL is how long an issued challenge stays usable.
const DefaultTTL = 10 * time.Minute

// Challenge is a pending proof-of-handle-ownership attempt. At most one live
// challenge exists per handle.
type Challenge struct {
	Handle       string    `json:"handle"`
	ContestID    int       `json:"contest_id"`
	ProblemIndex string    `json:"problem_index"`
	ProblemName  string    `json:"problem_name"`
	ProblemURL   string    `json:"problem_url"`
	Token        string    `json:"token"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExpiresAt returns the instant after which the challenge is unusable.
func (c *Challenge) ExpiresAt(ttl time.Duration) time.Time {
	return c.CreatedAt.Add(ttl)
}

// Expired reports whether the challenge is past its lifetime at now.
func (c *Challenge) Expired(now time.Time, ttl time.Duration) bool {
	return now.After(c.ExpiresAt(ttl))
}

// Matches reports whether sub was made to the challenge's problem.
// The verdict is deliberately not considered.
func (c *Challenge) Matches(sub codeforces.Submission) bool {
	return sub.Problem.ContestID == c.ContestID && sub.Problem.Index == c.ProblemIndex
}

// Issued is what the caller shows the user after creating a challenge.
type Issued struct {
	ProblemName string `json:"problemName"`
	ProblemURL  string `json:"problemUrl"`
	Token       string `json:"uniqueString"`
}

// Login is the result of a successful verification.
type Login struct {
	UserID       string `json:"_id"`
	Handle       string `json:"handle"`
	Email        string `json:"email"`
	Rating       *int   `json:"rating"`
	SessionToken string `json:"token"`
}
