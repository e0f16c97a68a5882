package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/codedojo/codedojo/internal/handler"
	"github.com/gin-gonic/gin"
)

func TestMetricsEndpoint(t *testing.T) {
	r := gin.New()
	r.Use(handler.PrometheusMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", handler.MetricsHandler())

	doJSON(t, r, http.MethodGet, "/ping", nil, "")
	doJSON(t, r, http.MethodGet, "/no-such-route", nil, "")
	handler.RecordOracleCall("user.status", "ok")
	handler.RecordLeaderboardCache("hit")
	handler.RecordChallenge("issued")
	handler.RecordHealthCheck("redis", false)

	w := doJSON(t, r, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`codedojo_requests_total{method="GET",path="/ping",status="200"}`,
		`path="unmatched"`,
		`codedojo_oracle_calls_total{method="user.status",result="ok"}`,
		`codedojo_leaderboard_cache_total{result="hit"}`,
		`codedojo_challenges_total{outcome="issued"}`,
		`codedojo_dependency_checks_total{dependency="redis",result="failure"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
