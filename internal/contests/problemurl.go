package contests

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	problemsetURLRe = regexp.MustCompile(`(?i)problemset/problem/(\d+)/([A-Z0-9]+)`)
	contestURLRe    = regexp.MustCompile(`(?i)contest/(\d+)/problem/([A-Z0-9]+)`)
)

// ParseProblemURL extracts the upstream contest ID and problem index from a
// Codeforces problem link. Accepted shapes are
//
//	.../problemset/problem/{contestId}/{index}
//	.../contest/{contestId}/problem/{index}
//	.../{contestId}/{index}
//
// The returned index is upper-cased.
func ParseProblemURL(raw string) (contestID int, index string, err error) {
	var idStr string
	if m := problemsetURLRe.FindStringSubmatch(raw); m != nil {
		idStr, index = m[1], m[2]
	} else if m := contestURLRe.FindStringSubmatch(raw); m != nil {
		idStr, index = m[1], m[2]
	} else {
		parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' })
		if len(parts) >= 2 {
			idStr, index = parts[len(parts)-2], parts[len(parts)-1]
		}
	}

	contestID, convErr := strconv.Atoi(idStr)
	if convErr != nil || contestID <= 0 || index == "" {
		return 0, "", ErrBadProblemURL
	}
	return contestID, strings.ToUpper(index), nil
}
