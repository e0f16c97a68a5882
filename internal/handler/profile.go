package handler

import (
	"context"
	"net/http"

	"github.com/codedojo/codedojo/internal/codeforces"
	"github.com/codedojo/codedojo/internal/identity"
	"github.com/codedojo/codedojo/internal/stats"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statsSvc is satisfied by *stats.Service.
type statsSvc interface {
	Summary(ctx context.Context, handle string) (*stats.Summary, error)
	Heatmap(ctx context.Context, handle string) ([]stats.Day, error)
	Profile(ctx context.Context, handle string) (*stats.Profile, error)
	Recommendations(ctx context.Context, userID uuid.UUID) ([]codeforces.Problem, error)
}

// ProfileHandler serves per-handle statistics.
type ProfileHandler struct {
	stats    statsSvc
	sessions *identity.SessionIssuer
	logger   *zap.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(stats statsSvc, sessions *identity.SessionIssuer, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{stats: stats, sessions: sessions, logger: logger}
}

// Register mounts the profile routes on the provided router group.
func (h *ProfileHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/profile")
	{
		g.GET("/stats/:handle", h.Stats)
		g.GET("/heatmap/:handle", h.Heatmap)
		g.GET("/submissions/:handle", h.Heatmap)
		g.GET("/info/:handle", h.Info)
		g.GET("/recommendations", identity.RequireSession(h.sessions), h.Recommendations)
	}
}

// Stats handles GET /profile/stats/:handle.
func (h *ProfileHandler) Stats(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch stats")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Heatmap handles GET /profile/heatmap/:handle.
func (h *ProfileHandler) Heatmap(c *gin.Context) {
	days, err := h.stats.Heatmap(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch submission stats")
		return
	}
	c.JSON(http.StatusOK, days)
}

// Info handles GET /profile/info/:handle.
func (h *ProfileHandler) Info(c *gin.Context) {
	profile, err := h.stats.Profile(c.Request.Context(), c.Param("handle"))
	if err != nil {
		writeError(c, h.logger, err, "failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Recommendations handles GET /profile/recommendations for the signed-in user.
func (h *ProfileHandler) Recommendations(c *gin.Context) {
	userID, err := uuid.Parse(identity.SessionFromCtx(c).UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user ID in session"})
		return
	}

	problems, err := h.stats.Recommendations(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err, "failed to compute recommendations")
		return
	}
	if problems == nil {
		problems = []codeforces.Problem{}
	}
	c.JSON(http.StatusOK, problems)
}
