package leaderboard

import (
	"cmp"
	"slices"
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/contests"
)

// WrongAttemptPenalty is charged for every rejected submission on a problem
// that is later solved.
const WrongAttemptPenalty = 20

// Entry is one row of a contest leaderboard.
type Entry struct {
	Handle  string `json:"handle"`
	Rating  *int   `json:"rating,omitempty"`
	Score   int    `json:"score"`
	Penalty int    `json:"penalty"`
	Error   bool   `json:"error,omitempty"`
}

// Score computes the ICPC-style score and penalty of one participant.
//
// Only submissions created inside [StartTime, EndTime] and aimed at one of
// the contest's problems count. A problem is solved by its first accepted
// submission; later submissions to it are ignored. Solving adds the whole
// minutes elapsed since the start plus WrongAttemptPenalty for every earlier
// rejected attempt on that problem. Unsolved problems add nothing.
func Score(c *contests.Contest, subs []codeforces.Submission) (score, penalty int) {
	inContest := make(map[string]bool, len(c.Problems))
	for _, p := range c.Problems {
		inContest[codeforces.ProblemID(p.ContestID, p.Index)] = true
	}

	window := make([]codeforces.Submission, 0, len(subs))
	for _, sub := range subs {
		at := time.Unix(sub.CreationTimeSeconds, 0)
		if at.Before(c.StartTime) || at.After(c.EndTime) {
			continue
		}
		if !inContest[sub.Problem.ID()] {
			continue
		}
		window = append(window, sub)
	}
	slices.SortStableFunc(window, func(a, b codeforces.Submission) int {
		return cmp.Compare(a.CreationTimeSeconds, b.CreationTimeSeconds)
	})

	solved := make(map[string]bool)
	wrong := make(map[string]int)
	for _, sub := range window {
		id := sub.Problem.ID()
		if solved[id] {
			continue
		}
		if !sub.Accepted() {
			wrong[id]++
			continue
		}
		solved[id] = true
		score++
		elapsed := time.Unix(sub.CreationTimeSeconds, 0).Sub(c.StartTime)
		penalty += int(elapsed/time.Minute) + WrongAttemptPenalty*wrong[id]
	}
	return score, penalty
}

// Rank orders entries by score descending, then penalty ascending. Entries
// that tie on both keep their relative order.
func Rank(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Penalty, b.Penalty)
	})
}
