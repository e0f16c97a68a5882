package handler

import (
	"context"
	"net/http"

	"github.com/codedojo/codedojo/internal/challenge"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// challengeSvc is satisfied by *challenge.Service.
type challengeSvc interface {
	Create(ctx context.Context, handle string) (*challenge.Issued, error)
	Verify(ctx context.Context, handle string) (*challenge.Login, error)
}

// AuthHandler serves the handle-challenge login flow.
type AuthHandler struct {
	challenges challengeSvc
	logger     *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(challenges challengeSvc, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{challenges: challenges, logger: logger}
}

// Register mounts the auth routes on the provided router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/challenge", h.CreateChallenge)
		auth.POST("/verify", h.VerifyChallenge)
	}
}

type handleRequest struct {
	Handle string `json:"handle" binding:"required"`
}

// CreateChallenge handles POST /auth/challenge — picks a problem the caller
// must submit to from their handle.
func (h *AuthHandler) CreateChallenge(c *gin.Context) {
	var req handleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Codeforces handle is required"})
		return
	}

	issued, err := h.challenges.Create(c.Request.Context(), req.Handle)
	if err != nil {
		writeError(c, h.logger, err, "failed to create challenge")
		return
	}
	c.JSON(http.StatusOK, issued)
}

// VerifyChallenge handles POST /auth/verify — checks the submission and
// returns a session on success.
func (h *AuthHandler) VerifyChallenge(c *gin.Context) {
	var req handleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Codeforces handle is required"})
		return
	}

	login, err := h.challenges.Verify(c.Request.Context(), req.Handle)
	if err != nil {
		writeError(c, h.logger, err, "failed to verify challenge")
		return
	}
	c.JSON(http.StatusOK, login)
}
