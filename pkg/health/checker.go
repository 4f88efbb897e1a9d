// Package health serves the relay's liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greonxpert/console/pkg/pubsub"
)

// Status is the outcome of a check or of the whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// DefaultTimeout bounds a check that sets none.
const DefaultTimeout = 2 * time.Second

// Result is the outcome of one check.
type Result struct {
	Status    Status         `json:"status"`
	LatencyMS int64          `json:"latency_ms"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Report aggregates every check.
type Report struct {
	Status  Status            `json:"status"`
	Checks  map[string]Result `json:"checks"`
	Time    time.Time         `json:"time"`
	Version string            `json:"version,omitempty"`
}

// Check is one named probe. A failing critical check makes the report
// unhealthy; any other failure only degrades it.
type Check struct {
	Name     string
	Run      func(ctx context.Context) error
	Timeout  time.Duration
	Critical bool
}

// DetailError is a check failure that carries structured details.
type DetailError struct {
	Message string
	Details map[string]any
}

func (e *DetailError) Error() string { return e.Message }

// Checker runs registered checks.
type Checker struct {
	version string
	checks  []Check
	mu      sync.RWMutex
}

// New returns a checker reporting version.
func New(version string) *Checker {
	return &Checker{version: version}
}

// Register adds c. Registering a name twice replaces the earlier check.
func (hc *Checker) Register(c Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for i := range hc.checks {
		if hc.checks[i].Name == c.Name {
			hc.checks[i] = c
			return
		}
	}
	hc.checks = append(hc.checks, c)
}

// Run executes every check concurrently.
func (hc *Checker) Run(ctx context.Context) Report {
	hc.mu.RLock()
	checks := append([]Check(nil), hc.checks...)
	hc.mu.RUnlock()

	report := Report{
		Status:  StatusHealthy,
		Checks:  make(map[string]Result, len(checks)),
		Time:    time.Now().UTC(),
		Version: hc.version,
	}

	results := make([]Result, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = run(ctx, c)
			return nil
		})
	}
	g.Wait()

	for i, c := range checks {
		r := results[i]
		report.Checks[c.Name] = r
		if r.Status == StatusHealthy {
			continue
		}
		if c.Critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func run(ctx context.Context, c Check) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := c.Run(ctx)
	r := Result{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err == nil {
		return r
	}

	r.Status = StatusUnhealthy
	r.Error = err.Error()
	var de *DetailError
	if errors.As(err, &de) {
		r.Details = de.Details
	}
	return r
}

// Handler serves the report. With ?probe=live it only confirms the
// process is up. Otherwise it answers 503 when the report is unhealthy.
func (hc *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		if r.URL.Query().Get("probe") == "live" {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]any{"status": "alive", "version": hc.version})
			return
		}

		report := hc.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	})
}

// PubSubCheck pings the relay's fan-out backend. The relay cannot deliver
// anything without it, so the check is critical.
func PubSubCheck(ps pubsub.PubSub) Check {
	return Check{
		Name:     "pubsub",
		Run:      ps.Ping,
		Critical: true,
	}
}

// CapacityCheck degrades the report once count reaches max.
func CapacityCheck(name string, count func() int, max int) Check {
	return Check{
		Name: name,
		Run: func(context.Context) error {
			n := count()
			if max > 0 && n >= max {
				return &DetailError{
					Message: fmt.Sprintf("%s at capacity", name),
					Details: map[string]any{"current": n, "max": max},
				}
			}
			return nil
		},
	}
}
