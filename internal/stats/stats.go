// Package stats derives personal practice statistics from a handle's
// Codeforces submission history.
package stats

import (
	"cmp"
	"slices"
	"time"

	"github.com/codedojo/codedojo/internal/codeforces"
)

// DefaultRating is assumed for unrated users when recommending problems.
const DefaultRating = 1400

// RecommendationBand is the width of the rating window above the user's
// rating that recommendations are drawn from.
const RecommendationBand = 200

const unknownVerdict = "UNKNOWN"

// Summary aggregates a submission history.
type Summary struct {
	// Verdicts counts every submission by verdict.
	Verdicts map[string]int `json:"verdicts"`
	// Tags and Difficulty count distinct solved problems only.
	Tags       map[string]int `json:"tags"`
	Difficulty map[int]int    `json:"difficulty"`
}

// Day is one heatmap cell.
type Day struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summarize counts verdicts over all submissions, and tags and ratings over
// the distinct problems that were solved.
func Summarize(subs []codeforces.Submission) *Summary {
	s := &Summary{
		Verdicts:   make(map[string]int),
		Tags:       make(map[string]int),
		Difficulty: make(map[int]int),
	}
	solved := make(map[string]bool)
	for _, sub := range subs {
		verdict := sub.Verdict
		if verdict == "" {
			verdict = unknownVerdict
		}
		s.Verdicts[verdict]++

		if !sub.Accepted() || solved[sub.Problem.ID()] {
			continue
		}
		solved[sub.Problem.ID()] = true
		for _, tag := range sub.Problem.Tags {
			s.Tags[tag]++
		}
		if sub.Problem.Rating != nil {
			s.Difficulty[*sub.Problem.Rating]++
		}
	}
	return s
}

// Heatmap counts submissions per UTC calendar date, oldest first.
func Heatmap(subs []codeforces.Submission) []Day {
	counts := make(map[string]int)
	for _, sub := range subs {
		counts[time.Unix(sub.CreationTimeSeconds, 0).UTC().Format(time.DateOnly)]++
	}

	days := make([]Day, 0, len(counts))
	for date, n := range counts {
		days = append(days, Day{Date: date, Count: n})
	}
	slices.SortFunc(days, func(a, b Day) int { return cmp.Compare(a.Date, b.Date) })
	return days
}

// Recommend picks up to limit unsolved problems rated within
// [rating, rating+RecommendationBand]. Problems whose tags the user has
// practised least come first, steering practice toward weaker topics.
// A nil rating means DefaultRating.
func Recommend(problems []codeforces.Problem, subs []codeforces.Submission, rating *int, limit int) []codeforces.Problem {
	r := DefaultRating
	if rating != nil && *rating > 0 {
		r = *rating
	}

	solved := make(map[string]bool)
	affinity := make(map[string]int)
	for _, sub := range subs {
		if !sub.Accepted() {
			continue
		}
		solved[sub.Problem.ID()] = true
		for _, tag := range sub.Problem.Tags {
			affinity[tag]++
		}
	}

	type scored struct {
		p     codeforces.Problem
		score int
	}
	var candidates []scored
	for _, p := range problems {
		if p.Rating == nil || *p.Rating < r || *p.Rating > r+RecommendationBand || solved[p.ID()] {
			continue
		}
		score := 0
		for _, tag := range p.Tags {
			score += affinity[tag]
		}
		candidates = append(candidates, scored{p: p, score: score})
	}
	slices.SortStableFunc(candidates, func(a, b scored) int { return cmp.Compare(a.score, b.score) })

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]codeforces.Problem, len(candidates))
	for i, c := range candidates {
		out[i] = c.p
	}
	return out
}
