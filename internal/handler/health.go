package handler

import (
	"net/http"

	"github.com/codedojo/codedojo/internal/health"
	"github.com/gin-gonic/gin"
)

// dependencyReporter is satisfied by *health.Checker.
type dependencyReporter interface {
	Snapshot() (map[string]health.Report, bool)
}

// Healthz returns a handler reporting 200 while every dependency is usable
// and 503 once any of them is degraded.
func Healthz(checker dependencyReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, ok := checker.Snapshot()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": reports})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": reports})
	}
}
