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

package exercise

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	rerrors "raedu/internal/errors"
)

const sampleCatalog = `{
  "questions": [
    {
      "id": "q1",
      "title": "CS students",
      "difficulty": "easy",
      "tags": ["selection"],
      "prompt": "Names of CS students",
      "solution": {"relational_algebra": "π{name}(σ{major = 'CS'}(students))", "sql": null},
      "expected_result": {"schema": ["name"], "rows": [{"name": "Ann"}]}
    },
    {"id": "q2", "solution": {}}
  ]
}`

func newTestStore(t *testing.T, catalogs map[string]string) *Store {
	t.Helper()
	root := t.TempDir()
	for db, content := range catalogs {
		dir := filepath.Join(root, db)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if content == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, CatalogFilename), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return NewStore(root)
}

func TestParseDefaults(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog), "test")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	q2, ok := cat.Find("q2")
	if !ok {
		t.Fatal("Expected q2")
	}
	if q2.Title != "q2" || q2.Tags == nil || q2.Hints == nil {
		t.Errorf("Expected defaults applied, got %+v", q2)
	}
	q1, _ := cat.Find("q1")
	if q1.Solution.SQL != "" || q1.Expected == nil || q1.Expected.Schema[0] != "name" {
		t.Errorf("Unexpected q1 %+v", q1)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `{"questions": [`, ""},
		{"missing questions", `{}`, "questions"},
		{"missing id", `{"questions": [{"title": "x"}]}`, "id"},
		{"wrong tag type", `{"questions": [{"id": "a", "tags": [1]}]}`, ""},
		{"duplicate id", `{"questions": [{"id": "a"}, {"id": "a"}]}`, "duplicate question id a"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.doc), "catalog.json")
		if !rerrors.HasCode(err, rerrors.ErrCodeInvalidCatalog) {
			t.Errorf("%s: expected InvalidCatalog, got %v", tt.name, err)
			continue
		}
		if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected %q in %v", tt.name, tt.want, err)
		}
	}
}

func TestStoreListAndGet(t *testing.T) {
	s := newTestStore(t, map[string]string{"school": sampleCatalog})

	list, err := s.List("school")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "q1" || list[0].Difficulty != "easy" {
		t.Errorf("Unexpected summaries %+v", list)
	}

	q, err := s.Get("school", "q1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.HasPrefix(q.Solution.RelationalAlgebra, "π{name}") {
		t.Errorf("Unexpected solution %q", q.Solution.RelationalAlgebra)
	}

	if _, err := s.Get("school", "q9"); !rerrors.HasCode(err, rerrors.ErrCodeExerciseNotFound) {
		t.Errorf("Expected ExerciseNotFound, got %v", err)
	}
}

func TestStoreErrors(t *testing.T) {
	s := newTestStore(t, map[string]string{"school": sampleCatalog, "bare": ""})

	_, err := s.List("zoo")
	if !rerrors.HasCode(err, rerrors.ErrCodeDatabaseNotFound) {
		t.Fatalf("Expected DatabaseNotFound, got %v", err)
	}
	if e, _ := rerrors.As(err); e.Hint != "Available databases: bare, school" {
		t.Errorf("Unexpected hint %q", e.Hint)
	}
	if _, err := s.List("bare"); !rerrors.IsNotFound(err) {
		t.Errorf("Expected not found for a database without catalog, got %v", err)
	}
	if _, err := s.List("../school"); !rerrors.HasCode(err, rerrors.ErrCodeDatabaseNotFound) {
		t.Errorf("Expected path traversal to be rejected, got %v", err)
	}
}

func TestStoreMatchesDirectoryCaseInsensitively(t *testing.T) {
	s := newTestStore(t, map[string]string{"School": sampleCatalog})
	for _, name := range []string{"school", "School", "SCHOOL"} {
		if _, err := s.Get(name, "q1"); err != nil {
			t.Errorf("Get(%q) failed: %v", name, err)
		}
	}
	_, err := s.List("zoo")
	if e, _ := rerrors.As(err); e == nil || e.Hint != "Available databases: school" {
		t.Errorf("Expected normalized names in the hint, got %v", err)
	}
}

func TestStoreCachesUntilInvalidated(t *testing.T) {
	s := newTestStore(t, map[string]string{"school": sampleCatalog})
	if _, err := s.List("school"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(s.root, "school", CatalogFilename)
	if err := os.WriteFile(path, []byte(`{"questions": [{"id": "only"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	list, _ := s.List("school")
	if len(list) != 2 {
		t.Errorf("Expected cached catalog, got %d questions", len(list))
	}
	s.Invalidate("school")
	list, _ = s.List("school")
	if len(list) != 1 || list[0].ID != "only" {
		t.Errorf("Expected reloaded catalog, got %+v", list)
	}
}
