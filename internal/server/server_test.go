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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"raedu/internal/config"
	"raedu/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testCatalog = `{"questions": [
  {"id": "q1", "title": "Names", "solution": {"relational_algebra": "π{name}(people)"}},
  {"id": "q2", "title": "Open"}
]}`

func setupTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "demo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"people.csv":   "id,name\n1,Ann\n2,Bo\n",
		"catalog.json": testCatalog,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.DataDir = root
	cfg.CatalogPath = filepath.Join(t.TempDir(), "catalog.db")
	svc, err := service.New(cfg)
	if err != nil {
		t.Fatalf("service.New failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	if _, err := svc.Import(context.Background(), ""); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if opts.Version == "" {
		opts.Version = "test"
	}
	return New(svc, opts).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func errorField(body map[string]any, key string) any {
	e, _ := body["error"].(map[string]any)
	return e[key]
}

func TestHealth(t *testing.T) {
	h := setupTestServer(t, Options{})
	rec, body := do(t, h, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" || body["databases"] != float64(1) || body["version"] != "test" {
		t.Errorf("Unexpected health body %v", body)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request ID")
	}
}

func TestHealthLiveAndReady(t *testing.T) {
	h := setupTestServer(t, Options{})

	rec, body := do(t, h, "GET", "/health/live", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("Unexpected liveness response %d %v", rec.Code, body)
	}

	rec, body = do(t, h, "GET", "/health/ready", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("Unexpected readiness response %d %v", rec.Code, body)
	}
	checks, _ := body["checks"].([]any)
	if len(checks) != 2 {
		t.Fatalf("Expected two checks, got %v", body["checks"])
	}
	first, _ := checks[0].(map[string]any)
	if first["name"] != "catalog" || first["message"] != "1 databases" {
		t.Errorf("Unexpected catalog check %v", first)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := setupTestServer(t, Options{})
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("Expected echoed request ID, got %q", got)
	}
}

func TestDatabasesAndSchema(t *testing.T) {
	h := setupTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/databases", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var dbs []databaseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &dbs); err != nil {
		t.Fatal(err)
	}
	if len(dbs) != 1 || dbs[0].Name != "demo" || dbs[0].TableCount != 1 {
		t.Errorf("Unexpected databases %+v", dbs)
	}

	rec, body := do(t, h, "GET", "/api/databases/demo/schema", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	tables, _ := body["tables"].([]any)
	if len(tables) != 1 {
		t.Errorf("Expected one table, got %v", body)
	}

	rec, body = do(t, h, "GET", "/api/databases/nope/schema", "")
	if rec.Code != http.StatusNotFound || errorField(body, "kind") != "DatabaseNotFound" {
		t.Errorf("Expected 404 DatabaseNotFound, got %d %v", rec.Code, body)
	}
}

func TestEvaluate(t *testing.T) {
	h := setupTestServer(t, Options{})

	rec, body := do(t, h, "POST", "/api/evaluate", `{"expression": "π{name}(people)"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if body["final_rows"] != float64(2) || body["database"] != "demo" {
		t.Errorf("Unexpected trace %v", body)
	}
	steps, _ := body["steps"].([]any)
	if len(steps) != 2 {
		t.Errorf("Expected 2 steps, got %d", len(steps))
	}

	rec, body = do(t, h, "POST", "/api/evaluate", `{"expression": "people", "preview_limit": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if preview, _ := body["preview"].([]any); len(preview) != 1 {
		t.Errorf("Expected 1 preview row, got %v", body["preview"])
	}
}

func TestEvaluateErrorMapping(t *testing.T) {
	h := setupTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"syntax", `{"expression": "π{name(people)"}`, http.StatusBadRequest, "UnterminatedBrace"},
		{"semantic", `{"expression": "π{age}(people)"}`, http.StatusUnprocessableEntity, "UnknownAttribute"},
		{"unknown database", `{"database": "zoo", "expression": "people"}`, http.StatusNotFound, "DatabaseNotFound"},
		{"bad json", `{"expression": `, http.StatusBadRequest, "VALIDATION"},
		{"preview too large", `{"expression": "people", "preview_limit": 100000}`, http.StatusBadRequest, "ValueOutOfRange"},
		{"negative preview", `{"expression": "people", "preview_limit": -1}`, http.StatusBadRequest, "ValueOutOfRange"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, "POST", "/api/evaluate", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
			if got := errorField(body, "kind"); got != tt.kind {
				t.Errorf("Expected kind %s, got %v", tt.kind, got)
			}
		})
	}

	_, body := do(t, h, "POST", "/api/evaluate", `{"expression": "π{name(people)"}`)
	pos, _ := errorField(body, "position").(map[string]any)
	if pos["line"] != float64(1) || pos["column"] == nil {
		t.Errorf("Expected a position, got %v", errorField(body, "position"))
	}
}

func TestExercisesAndGrade(t *testing.T) {
	h := setupTestServer(t, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/databases/demo/exercises", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"q1"`) {
		t.Fatalf("Unexpected exercises response %d %s", rec.Code, rec.Body)
	}

	rec, body := do(t, h, "GET", "/api/databases/demo/exercises/q1", "")
	if rec.Code != http.StatusOK || body["title"] != "Names" {
		t.Errorf("Unexpected exercise %d %v", rec.Code, body)
	}
	rec, _ = do(t, h, "GET", "/api/databases/demo/exercises/q9", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	rec, body = do(t, h, "POST", "/api/grade", `{"exercise_id": "q1", "expression": "π{name}(σ{id > 0}(people))"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	diff, _ := body["diff"].(map[string]any)
	if diff["matches"] != true {
		t.Errorf("Expected a match, got %v", diff)
	}

	rec, _ = do(t, h, "POST", "/api/grade", `{"exercise_id": "q2", "expression": "people"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for an exercise without solution, got %d", rec.Code)
	}
	rec, _ = do(t, h, "POST", "/api/grade", `{"expression": "people"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without exercise_id, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := setupTestServer(t, Options{RateLimit: 4})
	// burst of 1 for 4 per minute
	rec, _ := do(t, h, "POST", "/api/evaluate", `{"expression": "people"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", rec.Code)
	}
	rec, body := do(t, h, "POST", "/api/evaluate", `{"expression": "people"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if errorField(body, "message") != "rate limit exceeded" {
		t.Errorf("Unexpected body %v", body)
	}
	// Reads are not limited.
	if rec, _ := do(t, h, "GET", "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected health to bypass the limiter, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := setupTestServer(t, Options{CORSOrigin: "http://localhost:5173"})
	rec, _ := do(t, h, "OPTIONS", "/api/evaluate", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Unexpected origin header %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupTestServer(t, Options{})
	do(t, h, "GET", "/api/databases", "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `raedu_http_requests_total{method="GET",path="/api/databases",status="200"}`) {
		t.Error("Expected request counter in /metrics output")
	}
}

func TestListenServeStop(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = root
	svc, err := service.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	srv := New(svc, Options{Addr: "127.0.0.1:0"})
	addr, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
