/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package health runs the readiness checks behind the HTTP health endpoints.

ENDPOINTS (served by internal/server):
======================================

	GET /health/live  - Liveness check (is the process running?)
	GET /health/ready - Readiness check (can evaluations be served?)

STATUS VALUES:
==============
  - healthy: All checks pass
  - degraded: Some non-critical checks fail (e.g. no dataset imported yet)
  - unhealthy: Critical checks fail (e.g. the catalog cannot be read)
*/
package health

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"raedu/internal/logging"
)

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check.
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms"`
}

// Response is the body of a health endpoint response.
type Response struct {
	Status    Status        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

// Check is a function that performs a health check.
type Check func() CheckResult

// Checker manages health checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	version string
	logger  *logging.Logger
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		version: version,
		logger:  logging.NewLogger("health"),
	}
}

// Version returns the version reported in responses.
func (c *Checker) Version() string { return c.version }

// RegisterCheck registers a health check, replacing one with the same name.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Live returns a healthy response without running any check.
func (c *Checker) Live() Response {
	return Response{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// RunChecks runs all registered health checks in name order.
func (c *Checker) RunChecks() Response {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()
	sort.Strings(names)

	response := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
		Checks:    make([]CheckResult, 0, len(names)),
	}

	for _, name := range names {
		start := time.Now()
		result := checks[name]()
		result.Name = name
		result.Latency = time.Since(start).Milliseconds()
		response.Checks = append(response.Checks, result)

		if result.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if result.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
		if result.Status != StatusHealthy {
			c.logger.Debug("Health check not passing", "check", name, "status", result.Status, "message", result.Message)
		}
	}

	return response
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	return c.RunChecks().Status == StatusHealthy
}

// Common health checks

// CatalogCheck reports unhealthy when listing databases fails, and
// degraded when none has been imported.
func CatalogCheck(countFn func() (int, error)) Check {
	return func() CheckResult {
		n, err := countFn()
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
		}
		if n == 0 {
			return CheckResult{Status: StatusDegraded, Message: "no databases imported"}
		}
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d databases", n)}
	}
}

// DirCheck reports degraded when path is not a readable directory.
func DirCheck(path string) Check {
	return func() CheckResult {
		info, err := os.Stat(path)
		if err != nil {
			return CheckResult{Status: StatusDegraded, Message: err.Error()}
		}
		if !info.IsDir() {
			return CheckResult{Status: StatusDegraded, Message: path + " is not a directory"}
		}
		return CheckResult{Status: StatusHealthy}
	}
}
