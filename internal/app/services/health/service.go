// Package health reports process liveness and dependency readiness.
package health

import (
	"context"
	"sync"
	"time"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Service aggregates readiness checks.
type Service struct {
	mu      sync.RWMutex
	started time.Time
	checks  map[string]Checker
}

// NewService creates a health service.
func NewService() *Service {
	return &Service{started: time.Now().UTC(), checks: make(map[string]Checker)}
}

// Register adds a named readiness check.
func (s *Service) Register(name string, check Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Status is a liveness report.
type Status struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Live always succeeds while the process runs.
func (s *Service) Live() Status {
	return Status{Status: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
}

// Ready runs all registered checks and reports per-dependency results.
func (s *Service) Ready(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ready := true
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			ready = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return ready, results
}
