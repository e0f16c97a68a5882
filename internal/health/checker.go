// Package health tracks the reachability of the server's dependencies.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status values reported per dependency.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Probe checks one dependency and returns nil when it is reachable.
type Probe func(ctx context.Context) error

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, success bool)

// Report is a point-in-time view of one dependency.
type Report struct {
	Status    string    `json:"status"`
	FailCount int       `json:"fail_count"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Checker runs the registered probes periodically. A dependency is degraded
// after FailThreshold consecutive failures and healthy again after one
// success.
type Checker struct {
	mu        sync.Mutex
	probes    map[string]Probe
	reports   map[string]Report
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a Checker with no probes.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		probes:  make(map[string]Probe),
		reports: make(map[string]Report),
		cfg:     cfg,
		logger:  logger,
	}
}

// Register adds a named probe. Its status is unknown until the first check.
func (h *Checker) Register(name string, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = p
	h.reports[name] = Report{Status: StatusUnknown}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Start checks every dependency immediately and then every CheckInterval
// until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	h.CheckAll(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every probe concurrently, each bounded by ProbeTimeout.
func (h *Checker) CheckAll(ctx context.Context) {
	h.mu.Lock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
			err := probe(pctx)
			cancel()
			h.observe(name, err)
		}()
	}
	wg.Wait()
}

func (h *Checker) observe(name string, err error) {
	if h.onMetrics != nil {
		h.onMetrics(name, err == nil)
	}

	h.mu.Lock()
	prev := h.reports[name]
	next := Report{Status: prev.Status, CheckedAt: time.Now().UTC()}
	if err == nil {
		next.Status = StatusHealthy
	} else {
		next.FailCount = prev.FailCount + 1
		next.LastError = err.Error()
		if next.FailCount >= h.cfg.FailThreshold {
			next.Status = StatusDegraded
		}
	}
	h.reports[name] = next
	h.mu.Unlock()

	switch {
	case err == nil && prev.Status == StatusDegraded:
		h.logger.Info("health: recovered", zap.String("dependency", name))
	case err != nil && next.FailCount == h.cfg.FailThreshold:
		h.logger.Warn("health: degraded",
			zap.String("dependency", name),
			zap.Int("fail_count", next.FailCount),
			zap.Error(err),
		)
	}
}

// Snapshot returns the current report of every dependency and whether all
// of them are usable. Unknown dependencies do not count as failures.
func (h *Checker) Snapshot() (map[string]Report, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]Report, len(h.reports))
	ok := true
	for name, r := range h.reports {
		out[name] = r
		if r.Status == StatusDegraded {
			ok = false
		}
	}
	return out, ok
}

// HTTPProbe returns a Probe that succeeds when url answers a HEAD or, failing
// that, a GET with any 2xx status.
func HTTPProbe(client *http.Client, url string) Probe {
	return func(ctx context.Context) error {
		if err := httpStatus(ctx, client, http.MethodHead, url); err == nil {
			return nil
		}
		return httpStatus(ctx, client, http.MethodGet, url)
	}
}

func httpStatus(ctx context.Context, client *http.Client, method, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// StatusError reports a non-2xx probe response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status " + http.StatusText(e.Code)
}
