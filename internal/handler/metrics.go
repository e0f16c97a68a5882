package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codedojo_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codedojo_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	oracleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codedojo_oracle_calls_total",
		Help: "Total Codeforces API calls by method and result.",
	}, []string{"method", "result"})

	leaderboardCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codedojo_leaderboard_cache_total",
		Help: "Leaderboard cache lookups by result.",
	}, []string{"result"})

	challengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codedojo_challenges_total",
		Help: "Handle challenges by outcome.",
	}, []string{"outcome"})

	dependencyChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codedojo_dependency_checks_total",
		Help: "Dependency health probes by dependency and result.",
	}, []string{"dependency", "result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordOracleCall records one Codeforces API call.
func RecordOracleCall(method, result string) {
	oracleCallsTotal.WithLabelValues(method, result).Inc()
}

// RecordLeaderboardCache records a leaderboard cache hit or miss.
func RecordLeaderboardCache(result string) {
	leaderboardCacheTotal.WithLabelValues(result).Inc()
}

// RecordChallenge records a challenge protocol outcome.
func RecordChallenge(outcome string) {
	challengesTotal.WithLabelValues(outcome).Inc()
}

// RecordHealthCheck records a dependency probe result.
func RecordHealthCheck(dependency string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	dependencyChecksTotal.WithLabelValues(dependency, result).Inc()
}
