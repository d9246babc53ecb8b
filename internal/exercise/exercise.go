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
Package exercise loads the exercise catalogs that ship with datasets.

Each database directory may hold a catalog.json:

	{
	  "questions": [
	    {
	      "id": "q1",
	      "title": "Students taking every required course",
	      "difficulty": "hard",
	      "tags": ["division"],
	      "prompt": "List the students ...",
	      "hints": ["Think about ÷"],
	      "solution": {"relational_algebra": "enrolled ÷ required", "sql": "..."},
	      "expected_result": {"schema": ["student"], "rows": [{"student": "Ann"}]}
	    }
	  ]
	}

Catalogs are validated against an embedded JSON Schema before decoding
and cached per database until invalidated.
*/
package exercise

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	rerrors "raedu/internal/errors"
	"raedu/internal/logging"
	"raedu/internal/ra"
)

// CatalogFilename is the catalog file name inside a database directory.
const CatalogFilename = "catalog.json"

const catalogSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "difficulty": {"type": ["string", "null"]},
          "tags": {"type": "array", "items": {"type": "string"}},
          "prompt": {"type": "string"},
          "hints": {"type": "array", "items": {"type": "string"}},
          "solution": {
            "type": "object",
            "properties": {
              "relational_algebra": {"type": ["string", "null"]},
              "sql": {"type": ["string", "null"]}
            }
          },
          "expected_result": {
            "type": "object",
            "properties": {
              "schema": {"type": "array", "items": {"type": "string"}},
              "rows": {"type": "array", "items": {"type": "object"}}
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = mustCompile(catalogSchema)

func mustCompile(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("exercise: invalid catalog schema: %v", err))
	}
	return schema
}

// Solution holds the reference answers of a question.
type Solution struct {
	RelationalAlgebra string `json:"relational_algebra,omitempty"`
	SQL               string `json:"sql,omitempty"`
}

// ExpectedResult is an optional published answer.
type ExpectedResult struct {
	Schema []string         `json:"schema,omitempty"`
	Rows   []map[string]any `json:"rows,omitempty"`
}

// Summary is the list view of a question.
type Summary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty,omitempty"`
	Tags       []string `json:"tags"`
}

// Question is one exercise.
type Question struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Difficulty string          `json:"difficulty,omitempty"`
	Tags       []string        `json:"tags"`
	Prompt     string          `json:"prompt"`
	Hints      []string        `json:"hints"`
	Solution   Solution        `json:"solution"`
	Expected   *ExpectedResult `json:"expected_result,omitempty"`
}

// Summary returns the list view of q.
func (q *Question) Summary() Summary {
	return Summary{ID: q.ID, Title: q.Title, Difficulty: q.Difficulty, Tags: q.Tags}
}

// Catalog is the decoded catalog of one database.
type Catalog struct {
	Questions []Question `json:"questions"`
}

// Parse validates and decodes a catalog document. source names the
// document in errors.
func Parse(data []byte, source string) (*Catalog, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, rerrors.InvalidCatalog(source, err.Error()).WithCause(err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, rerrors.InvalidCatalog(source, strings.Join(errs, "; "))
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, rerrors.InvalidCatalog(source, err.Error()).WithCause(err)
	}

	seen := make(map[string]bool, len(cat.Questions))
	for i := range cat.Questions {
		q := &cat.Questions[i]
		if seen[q.ID] {
			return nil, rerrors.InvalidCatalog(source, "duplicate question id "+q.ID)
		}
		seen[q.ID] = true
		if q.Title == "" {
			q.Title = q.ID
		}
		if q.Tags == nil {
			q.Tags = []string{}
		}
		if q.Hints == nil {
			q.Hints = []string{}
		}
	}
	return &cat, nil
}

// Find returns the question with id.
func (c *Catalog) Find(id string) (*Question, bool) {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return &c.Questions[i], true
		}
	}
	return nil, false
}

// Store reads catalogs from the dataset directory tree.
type Store struct {
	root   string
	mu     sync.RWMutex
	cache  map[string]*Catalog
	logger *logging.Logger
}

// NewStore creates a store over root, whose subdirectories are databases.
func NewStore(root string) *Store {
	return &Store{
		root:   root,
		cache:  make(map[string]*Catalog),
		logger: logging.NewLogger("exercise"),
	}
}

// Load returns the catalog of database, reading it on first use.
func (s *Store) Load(database string) (*Catalog, error) {
	database = ra.NormalizeName(database)
	s.mu.RLock()
	cat, ok := s.cache[database]
	s.mu.RUnlock()
	if ok {
		return cat, nil
	}

	if database == "" || strings.ContainsAny(database, `/\`) {
		return nil, rerrors.DatabaseNotFound(database, s.databases())
	}
	dir, ok := s.dirFor(database)
	if !ok {
		return nil, rerrors.DatabaseNotFound(database, s.databases())
	}
	path := filepath.Join(dir, CatalogFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, rerrors.CatalogNotFound(database, CatalogFilename)
	}
	if err != nil {
		return nil, rerrors.NewStorageError("failed to read " + path).WithCause(err)
	}
	cat, err = Parse(data, path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[database] = cat
	s.mu.Unlock()
	s.logger.Debug("Loaded exercise catalog", "database", database, "questions", len(cat.Questions))
	return cat, nil
}

// Invalidate drops the cached catalog of database.
func (s *Store) Invalidate(database string) {
	database = ra.NormalizeName(database)
	s.mu.Lock()
	delete(s.cache, database)
	s.mu.Unlock()
}

// List returns the summaries of database's questions in catalog order.
func (s *Store) List(database string) ([]Summary, error) {
	cat, err := s.Load(database)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(cat.Questions))
	for i := range cat.Questions {
		out[i] = cat.Questions[i].Summary()
	}
	return out, nil
}

// Get returns one question.
func (s *Store) Get(database, id string) (*Question, error) {
	cat, err := s.Load(database)
	if err != nil {
		return nil, err
	}
	q, ok := cat.Find(id)
	if !ok {
		return nil, rerrors.ExerciseNotFound(database, id)
	}
	return q, nil
}

// dirFor finds the dataset directory of database. Directory names match
// case-insensitively, the way imported database names are normalized.
func (s *Store) dirFor(database string) (string, bool) {
	if dir := filepath.Join(s.root, database); isDir(dir) {
		return dir, true
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() && ra.NormalizeName(e.Name()) == database {
			return filepath.Join(s.root, e.Name()), true
		}
	}
	return "", false
}

func (s *Store) databases() []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, ra.NormalizeName(e.Name()))
		}
	}
	sort.Strings(names)
	return names
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
