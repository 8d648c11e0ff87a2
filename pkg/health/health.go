// Package health runs dependency probes for the /health endpoints. Probes
// run in parallel, each under its own deadline, and the worst result decides
// the service status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// DefaultCheckTimeout bounds a single probe.
const DefaultCheckTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Service    string                     `json:"service"`
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type Checker struct {
	service      string
	checkTimeout time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker(service string) *Checker {
	return &Checker{
		service:      service,
		checkTimeout: DefaultCheckTimeout,
		logger:       slog.Default().With("component", "health", "service", service),
		checks:       make(map[string]Check),
	}
}

// Optional reports a failing or missing probe as degraded. Use it for
// dependencies the service can run without.
func Optional(probe func(ctx context.Context) error) Check {
	return probeCheck(probe, StatusDegraded)
}

// Required reports a failing or missing probe as down, which takes the
// service out of rotation.
func Required(probe func(ctx context.Context) error) Check {
	return probeCheck(probe, StatusDown)
}

func probeCheck(probe func(ctx context.Context) error, onFailure Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if probe == nil {
			return ComponentHealth{Status: onFailure, Message: "not configured"}
		}
		if err := probe(ctx); err != nil {
			return ComponentHealth{Status: onFailure, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	c.checks[name] = check
	c.mu.Unlock()
}

// Run probes every registered dependency, each bounded by the check
// timeout. A probe that panics is reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			results[i] = c.probe(ctx, names[i], checks[i])
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Service:    c.service,
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, name := range names {
		res := results[i]
		report.Components[name] = res
		if res.Status.rank() > report.Status.rank() {
			report.Status = res.Status
		}
		if res.Status != StatusUp {
			c.logger.Warn("health check not up", "check", name, "status", res.Status, "message", res.Message)
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, name string, check Check) (res ComponentHealth) {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("check %s panicked: %v", name, r)}
		}
		res.Latency = time.Since(start).Round(time.Millisecond).String()
	}()

	res = check(ctx)
	if res.Status == "" {
		res.Status = StatusDown
		res.Message = "check reported no status"
	}
	return res
}

// LiveHandler answers 200 while the process is serving.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"service": c.service, "status": "alive"})
	}
}

// ReadyHandler answers 503 only when some dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
