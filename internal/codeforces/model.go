package codeforces

import (
	"fmt"
	"strconv"
)

// VerdictOK is the verdict Codeforces reports for an accepted submission.
const VerdictOK = "OK"

// Problem is a problem from the global Codeforces catalog.
type Problem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating,omitempty"`
	Tags      []string `json:"tags"`
}

// ID returns the problem's identity key: contest ID followed by index, e.g. "1850A".
func (p Problem) ID() string {
	return ProblemID(p.ContestID, p.Index)
}

// URL returns the canonical problemset URL for the problem.
func (p Problem) URL() string {
	return ProblemURL(p.ContestID, p.Index)
}

// ProblemID builds the contestId+index identity key.
func ProblemID(contestID int, index string) string {
	return strconv.Itoa(contestID) + index
}

// ProblemURL builds the canonical problemset URL.
func ProblemURL(contestID int, index string) string {
	return fmt.Sprintf("https://codeforces.com/problemset/problem/%d/%s", contestID, index)
}

// Submission is a single judged submission from a handle's history.
type Submission struct {
	ID                  int64   `json:"id"`
	ContestID           int     `json:"contestId,omitempty"`
	CreationTimeSeconds int64   `json:"creationTimeSeconds"`
	Problem             Problem `json:"problem"`
	Verdict             string  `json:"verdict,omitempty"`
}

// Accepted reports whether the submission was judged OK.
func (s Submission) Accepted() bool {
	return s.Verdict == VerdictOK
}

// User is the subset of user.info that the application keeps. Unrated
// handles carry no rating fields.
type User struct {
	Handle    string `json:"handle"`
	Email     string `json:"email,omitempty"`
	Rating    *int   `json:"rating,omitempty"`
	MaxRating *int   `json:"maxRating,omitempty"`
	Rank      string `json:"rank,omitempty"`
	MaxRank   string `json:"maxRank,omitempty"`
}

// Contest is an upstream contest from contest.list.
type Contest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Phase            string `json:"phase"`
	DurationSeconds  int64  `json:"durationSeconds"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
}

// PhaseBefore marks a contest that has not started yet.
const PhaseBefore = "BEFORE"
