package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codedojo/codedojo/internal/contests"
	"github.com/codedojo/codedojo/internal/identity"
	"github.com/codedojo/codedojo/internal/leaderboard"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// contestSvc is satisfied by *contests.Service.
type contestSvc interface {
	Create(ctx context.Context, name, host string, start, end time.Time) (*contests.Contest, error)
	List(ctx context.Context, page, limit int) (*contests.Page, error)
	GetBySlug(ctx context.Context, slug string) (*contests.Contest, error)
	Join(ctx context.Context, slug string, userID uuid.UUID, handle string) error
	AddRandomProblems(ctx context.Context, contestID uuid.UUID, rating, count int) (*contests.Contest, error)
	AddProblemByURL(ctx context.Context, contestID uuid.UUID, rawURL string) (*contests.Contest, error)
	Upcoming(ctx context.Context) ([]contests.External, error)
}

// leaderboardSvc is satisfied by *leaderboard.Engine.
type leaderboardSvc interface {
	Compute(ctx context.Context, slug string) ([]leaderboard.Entry, error)
}

// ContestHandler handles contest routes.
type ContestHandler struct {
	contests contestSvc
	board    leaderboardSvc
	sessions *identity.SessionIssuer
	logger   *zap.Logger
}

// NewContestHandler creates a ContestHandler.
func NewContestHandler(contestSvc contestSvc, board leaderboardSvc, sessions *identity.SessionIssuer, logger *zap.Logger) *ContestHandler {
	return &ContestHandler{contests: contestSvc, board: board, sessions: sessions, logger: logger}
}

// Register mounts the contest routes on the provided router group.
func (h *ContestHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/contests")
	{
		g.GET("", h.ListContests)
		g.GET("/external", h.ExternalContests)
		g.GET("/slug/:slug", h.GetContest)
		g.GET("/slug/:slug/leaderboard", h.Leaderboard)

		auth := identity.RequireSession(h.sessions)
		g.POST("/create", auth, h.CreateContest)
		g.POST("/slug/:slug/join", auth, h.JoinContest)
		g.POST("/:contestId/add-random", auth, h.AddRandomProblems)
		g.POST("/:contestId/add-manual", auth, h.AddManualProblem)
	}
}

type createContestRequest struct {
	Name      string    `json:"name" binding:"required"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type addRandomRequest struct {
	Rating int `json:"rating" binding:"required"`
	Count  int `json:"count" binding:"required"`
}

type addManualRequest struct {
	ProblemURL string `json:"problemUrl" binding:"required"`
}

// ListContests handles GET /contests?page=&limit= — newest contests first.
func (h *ContestHandler) ListContests(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.contests.List(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch contests")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExternalContests handles GET /contests/external — upcoming Codeforces rounds.
func (h *ContestHandler) ExternalContests(c *gin.Context) {
	upcoming, err := h.contests.Upcoming(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch external contests")
		return
	}
	c.JSON(http.StatusOK, upcoming)
}

// GetContest handles GET /contests/slug/:slug.
func (h *ContestHandler) GetContest(c *gin.Context) {
	contest, err := h.contests.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch contest")
		return
	}
	c.JSON(http.StatusOK, contest)
}

// Leaderboard handles GET /contests/slug/:slug/leaderboard.
func (h *ContestHandler) Leaderboard(c *gin.Context) {
	entries, err := h.board.Compute(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, h.logger, err, "failed to calculate leaderboard")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// CreateContest handles POST /contests/create — the caller becomes the host.
func (h *ContestHandler) CreateContest(c *gin.Context) {
	var req createContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, startTime and endTime are required"})
		return
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, startTime and endTime are required"})
		return
	}

	session := identity.SessionFromCtx(c)
	contest, err := h.contests.Create(c.Request.Context(), strings.TrimSpace(req.Name), session.Handle, req.StartTime, req.EndTime)
	if err != nil {
		writeError(c, h.logger, err, "failed to create contest")
		return
	}
	c.JSON(http.StatusCreated, contest)
}

// JoinContest handles POST /contests/slug/:slug/join.
func (h *ContestHandler) JoinContest(c *gin.Context) {
	session := identity.SessionFromCtx(c)
	userID, err := uuid.Parse(session.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user ID in session"})
		return
	}

	if err := h.contests.Join(c.Request.Context(), c.Param("slug"), userID, session.Handle); err != nil {
		writeError(c, h.logger, err, "server error while joining contest")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully joined the contest"})
}

// AddRandomProblems handles POST /contests/:contestId/add-random.
func (h *ContestHandler) AddRandomProblems(c *gin.Context) {
	id, ok := contestIDParam(c)
	if !ok {
		return
	}
	var req addRandomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating and count are required"})
		return
	}

	contest, err := h.contests.AddRandomProblems(c.Request.Context(), id, req.Rating, req.Count)
	if err != nil {
		writeError(c, h.logger, err, "failed to add random problems")
		return
	}
	c.JSON(http.StatusOK, contest)
}

// AddManualProblem handles POST /contests/:contestId/add-manual.
func (h *ContestHandler) AddManualProblem(c *gin.Context) {
	id, ok := contestIDParam(c)
	if !ok {
		return
	}
	var req addManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Problem URL is required"})
		return
	}

	contest, err := h.contests.AddProblemByURL(c.Request.Context(), id, req.ProblemURL)
	if err != nil {
		writeError(c, h.logger, err, "failed to add problem")
		return
	}
	c.JSON(http.StatusOK, contest)
}

func contestIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("contestId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contest ID"})
		return uuid.Nil, false
	}
	return id, true
}
