package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greonxpert/console/pkg/pubsub"
)

func ok(context.Context) error { return nil }

func TestChecker_AllPass(t *testing.T) {
	hc := New("1.2.0")
	hc.Register(Check{Name: "a", Run: ok})
	hc.Register(Check{Name: "b", Run: ok, Critical: true})

	report := hc.Run(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Errorf("got %d checks, want 2", len(report.Checks))
	}
	if report.Version != "1.2.0" {
		t.Errorf("Version = %q", report.Version)
	}
}

func TestChecker_NonCriticalFailureDegrades(t *testing.T) {
	hc := New("")
	hc.Register(Check{Name: "ok", Run: ok})
	hc.Register(Check{Name: "flaky", Run: func(context.Context) error { return errors.New("slow upstream") }})

	report := hc.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", report.Status)
	}
	if got := report.Checks["flaky"]; got.Status != StatusUnhealthy || got.Error != "slow upstream" {
		t.Errorf("flaky = %+v", got)
	}
}

func TestChecker_CriticalFailureIsUnhealthy(t *testing.T) {
	hc := New("")
	hc.Register(Check{Name: "flaky", Run: func(context.Context) error { return errors.New("x") }})
	hc.Register(Check{Name: "core", Critical: true, Run: func(context.Context) error { return errors.New("down") }})

	if s := hc.Run(context.Background()).Status; s != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", s)
	}
}

func TestChecker_Timeout(t *testing.T) {
	hc := New("")
	hc.Register(Check{
		Name:     "slow",
		Timeout:  20 * time.Millisecond,
		Critical: true,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	start := time.Now()
	report := hc.Run(context.Background())
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
	if report.Checks["slow"].Error != context.DeadlineExceeded.Error() {
		t.Errorf("Error = %q", report.Checks["slow"].Error)
	}
}

func TestChecker_RegisterReplacesByName(t *testing.T) {
	hc := New("")
	hc.Register(Check{Name: "x", Critical: true, Run: func(context.Context) error { return errors.New("old") }})
	hc.Register(Check{Name: "x", Run: ok})

	if s := hc.Run(context.Background()).Status; s != StatusHealthy {
		t.Errorf("Status = %s", s)
	}
}

func TestHandler(t *testing.T) {
	ps := pubsub.NewMemoryPubSub(nil)
	hc := New("dev")
	hc.Register(PubSubCheck(ps))

	get := func(target string) (*httptest.ResponseRecorder, map[string]any) {
		rec := httptest.NewRecorder()
		hc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return rec, body
	}

	rec, body := get("/healthz")
	if rec.Code != http.StatusOK || body["status"] != string(StatusHealthy) {
		t.Errorf("healthy: %d %v", rec.Code, body)
	}

	ps.Close()

	rec, body = get("/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("closed pubsub: code %d, want 503", rec.Code)
	}
	checks := body["checks"].(map[string]any)
	if checks["pubsub"].(map[string]any)["error"] != pubsub.ErrPubSubClosed.Error() {
		t.Errorf("pubsub check = %v", checks["pubsub"])
	}

	rec, body = get("/healthz?probe=live")
	if rec.Code != http.StatusOK || body["status"] != "alive" {
		t.Errorf("liveness: %d %v", rec.Code, body)
	}
}

func TestCapacityCheck(t *testing.T) {
	n := 3
	c := CapacityCheck("connections", func() int { return n }, 3)

	r := run(context.Background(), c)
	if r.Status != StatusUnhealthy {
		t.Fatalf("at capacity: %s", r.Status)
	}
	if r.Details["max"] != 3 || r.Details["current"] != 3 {
		t.Errorf("Details = %v", r.Details)
	}

	n = 2
	if r := run(context.Background(), c); r.Status != StatusHealthy {
		t.Errorf("below capacity: %s", r.Status)
	}
}
