package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPProbe_success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := HTTPProbe(srv.Client(), srv.URL)(context.Background()); err != nil {
		t.Errorf("expected probe to succeed: %v", err)
	}
}

func TestHTTPProbe_fallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := HTTPProbe(srv.Client(), srv.URL)(context.Background()); err != nil {
		t.Errorf("expected GET fallback to succeed: %v", err)
	}
}

func TestHTTPProbe_failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := HTTPProbe(srv.Client(), srv.URL)(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Errorf("expected StatusError 500, got %v", err)
	}
}

func TestCheckAll_degradesAfterThreshold(t *testing.T) {
	checker := New(Config{ProbeTimeout: time.Second, FailThreshold: 3}, zap.NewNop())
	checker.Register("postgres", func(context.Context) error { return errors.New("connection refused") })

	for i := 0; i < 2; i++ {
		checker.CheckAll(context.Background())
	}
	if _, ok := checker.Snapshot(); !ok {
		t.Fatal("must not degrade before the threshold")
	}

	checker.CheckAll(context.Background())
	reports, ok := checker.Snapshot()
	if ok || reports["postgres"].Status != StatusDegraded {
		t.Errorf("expected degraded, got %+v", reports["postgres"])
	}
	if reports["postgres"].LastError != "connection refused" {
		t.Errorf("LastError: got %q", reports["postgres"].LastError)
	}
}

func TestCheckAll_recoversOnSuccess(t *testing.T) {
	failures := 3
	checker := New(Config{ProbeTimeout: time.Second, FailThreshold: 3}, zap.NewNop())
	checker.Register("redis", func(context.Context) error {
		if failures > 0 {
			failures--
			return errors.New("timeout")
		}
		return nil
	})

	var results []bool
	checker.SetMetricsRecord(func(name string, success bool) { results = append(results, success) })

	for i := 0; i < 4; i++ {
		checker.CheckAll(context.Background())
	}

	reports, ok := checker.Snapshot()
	if !ok || reports["redis"].Status != StatusHealthy || reports["redis"].FailCount != 0 {
		t.Errorf("expected healthy after recovery, got %+v", reports["redis"])
	}
	if len(results) != 4 || results[3] != true {
		t.Errorf("metrics: got %v", results)
	}
}

func TestSnapshot_unknownBeforeFirstCheck(t *testing.T) {
	checker := New(Config{}, zap.NewNop())
	checker.Register("codeforces", func(context.Context) error { return nil })

	reports, ok := checker.Snapshot()
	if !ok || reports["codeforces"].Status != StatusUnknown {
		t.Errorf("expected unknown and ok, got %+v ok=%v", reports["codeforces"], ok)
	}
}

func TestCheckAll_probeTimeout(t *testing.T) {
	checker := New(Config{ProbeTimeout: 10 * time.Millisecond, FailThreshold: 1}, zap.NewNop())
	checker.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	checker.CheckAll(context.Background())
	if reports, _ := checker.Snapshot(); reports["slow"].Status != StatusDegraded {
		t.Errorf("expected degraded after timeout, got %+v", reports["slow"])
	}
}
