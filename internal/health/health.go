// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness probes for the daemon.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checker is one registered component check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager serves liveness and readiness over HTTP.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a health manager.
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a readiness checker.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// ServeHealth is the liveness probe: a static OK whenever the process runs.
func (m *Manager) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type readinessResponse struct {
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ServeReady is the readiness probe: 200 when every checker passes.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := readinessResponse{
		Ready:     true,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult, len(m.checkers))
		for _, c := range m.checkers {
			result := c.Check(r.Context())
			resp.Checks[c.Name()] = result
			if result.Status != StatusHealthy {
				resp.Ready = false
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// DirChecker verifies a directory exists and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for a writable directory.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string {
	return c.name
}

func (c *DirChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory"}
	}
	probe, err := os.CreateTemp(c.path, ".ready-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "not writable"}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}
