package contests

import (
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/google/uuid"
)

// Contest is a user-hosted contest over a fixed set of Codeforces problems.
type Contest struct {
	ID           uuid.UUID     `json:"_id"`
	Name         string        `json:"name"`
	Slug         string        `json:"slug"`
	Host         string        `json:"host"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Problems     []Problem     `json:"problems"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Ended reports whether the contest window closed before now.
func (c *Contest) Ended(now time.Time) bool {
	return now.After(c.EndTime)
}

// HasProblemNamed reports whether a problem with the given name is already
// part of the contest.
func (c *Contest) HasProblemNamed(name string) bool {
	for _, p := range c.Problems {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Problem is a contest problem, identified upstream by ContestID+Index.
type Problem struct {
	ProblemID string `json:"problemId"`
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
	Name      string `json:"name"`
	Rating    *int   `json:"rating,omitempty"`
}

// problemFrom copies an upstream problem into a contest problem.
func problemFrom(p codeforces.Problem) Problem {
	return Problem{
		ProblemID: p.ID(),
		ContestID: p.ContestID,
		Index:     p.Index,
		Name:      p.Name,
		Rating:    p.Rating,
	}
}

// Participant is a user who joined a contest. Rating is the user's current
// rating, read from the user record.
type Participant struct {
	UserID   uuid.UUID `json:"userId"`
	Handle   string    `json:"handle"`
	Rating   *int      `json:"rating,omitempty"`
	JoinedAt time.Time `json:"joinTime"`
}

// Page is one page of the contest listing.
type Page struct {
	Contests    []*Contest `json:"contests"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
}

// External is an upcoming contest announced upstream.
type External struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Origin    string    `json:"origin"`
	Link      string    `json:"link"`
}
