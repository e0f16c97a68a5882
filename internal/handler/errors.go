package handler

import (
	"errors"
	"net/http"

	"github.com/codedojo/codedojo/internal/challenge"
	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/contests"
	"github.com/codedojo/codedojo/internal/leaderboard"
	"github.com/codedojo/codedojo/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// classify maps a domain error to its HTTP status and user-facing message.
// Each failure gets its own message so the frontend can tell a mistyped
// handle from an upstream outage from a failed verification. A zero status
// means the error is unexpected.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, codeforces.ErrHandleNotFound):
		return http.StatusNotFound, "Codeforces user not found"
	case errors.Is(err, codeforces.ErrUnavailable):
		return http.StatusBadGateway, "Codeforces is unavailable, try again later"
	case errors.Is(err, challenge.ErrInvalidHandle):
		return http.StatusBadRequest, "Codeforces handle is required"
	case errors.Is(err, challenge.ErrChallengeNotFound):
		return http.StatusNotFound, "No active challenge found"
	case errors.Is(err, challenge.ErrNoRecentSubmissions):
		return http.StatusBadRequest, "No recent submissions found"
	case errors.Is(err, challenge.ErrProblemMismatch):
		return http.StatusBadRequest, "Verification failed: incorrect problem"
	case errors.Is(err, contests.ErrNotFound), errors.Is(err, leaderboard.ErrContestNotFound):
		return http.StatusNotFound, "Contest not found"
	case errors.Is(err, contests.ErrAlreadyJoined):
		return http.StatusConflict, "You have already joined this contest"
	case errors.Is(err, contests.ErrContestEnded):
		return http.StatusBadRequest, "Contest has already ended"
	case errors.Is(err, contests.ErrSlugTaken):
		return http.StatusConflict, "A contest with this name already exists"
	case errors.Is(err, contests.ErrInvalidName):
		return http.StatusBadRequest, "Contest name is required"
	case errors.Is(err, contests.ErrInvalidWindow):
		return http.StatusBadRequest, "Contest must end after it starts"
	case errors.Is(err, contests.ErrInvalidCount):
		return http.StatusBadRequest, "Problem count must be positive"
	case errors.Is(err, contests.ErrBadProblemURL):
		return http.StatusBadRequest, "Invalid Codeforces problem URL format"
	case errors.Is(err, contests.ErrProblemNotFound):
		return http.StatusNotFound, "Problem not found on Codeforces"
	case errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, "User not found"
	}
	return 0, ""
}

// writeError renders err as a JSON error body. Unexpected errors are logged
// and reported as 500 with the fallback message.
func writeError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	if status, msg := classify(err); status != 0 {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	logger.Error(fallback, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
