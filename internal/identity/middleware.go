package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxSessionClaims = "codedojo_session_claims"

// RequireSession returns a Gin middleware that enforces a valid session
// Bearer token.
//
// On success it injects the *SessionClaims into the context under the
// "codedojo_session_claims" key.
func RequireSession(sessions *SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer session token required",
			})
			return
		}

		claims, err := sessions.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token",
			})
			return
		}

		c.Set(ctxSessionClaims, claims)
		c.Next()
	}
}

// SessionFromCtx retrieves the claims injected by RequireSession.
// Returns nil if the route is not protected.
func SessionFromCtx(c *gin.Context) *SessionClaims {
	v, _ := c.Get(ctxSessionClaims)
	claims, _ := v.(*SessionClaims)
	return claims
}
