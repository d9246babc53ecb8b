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

package health

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRunChecksAggregates(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"none", nil, StatusHealthy},
		{"all healthy", map[string]Check{
			"a": CatalogCheck(func() (int, error) { return 2, nil }),
		}, StatusHealthy},
		{"degraded", map[string]Check{
			"a": CatalogCheck(func() (int, error) { return 0, nil }),
			"b": DirCheck(t.TempDir()),
		}, StatusDegraded},
		{"unhealthy wins", map[string]Check{
			"a": CatalogCheck(func() (int, error) { return 0, errors.New("boom") }),
			"b": DirCheck(filepath.Join(t.TempDir(), "missing")),
		}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("1.0")
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}
			resp := c.RunChecks()
			if resp.Status != tt.want {
				t.Errorf("Expected %s, got %s (%+v)", tt.want, resp.Status, resp.Checks)
			}
			if len(resp.Checks) != len(tt.checks) || resp.Version != "1.0" {
				t.Errorf("Unexpected response %+v", resp)
			}
			if c.IsHealthy() != (tt.want == StatusHealthy) {
				t.Error("IsHealthy disagrees with RunChecks")
			}
		})
	}
}

func TestRunChecksOrderedByName(t *testing.T) {
	c := NewChecker("")
	for _, name := range []string{"zeta", "alpha", "mid"} {
		c.RegisterCheck(name, DirCheck(t.TempDir()))
	}
	resp := c.RunChecks()
	want := []string{"alpha", "mid", "zeta"}
	for i, r := range resp.Checks {
		if r.Name != want[i] {
			t.Errorf("check %d = %s, want %s", i, r.Name, want[i])
		}
	}
}

func TestDirCheckRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if r := DirCheck(path)(); r.Status != StatusDegraded {
		t.Errorf("Expected degraded for a file, got %+v", r)
	}
}

func TestLive(t *testing.T) {
	c := NewChecker("2.0")
	c.RegisterCheck("bad", CatalogCheck(func() (int, error) { return 0, errors.New("down") }))
	if r := c.Live(); r.Status != StatusHealthy || len(r.Checks) != 0 {
		t.Errorf("Liveness must not run checks, got %+v", r)
	}
}
