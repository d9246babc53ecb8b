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
Package service ties the raedu components together.

A Service owns the dataset catalog, the exercise store and the trace
cache, and exposes the operations shared by the CLI, the shell and the
HTTP server:

	Evaluate      parse and trace an expression against a database
	Grade         compare an expression with an exercise's reference solution
	Databases     list imported databases
	Schema        describe the tables of a database
	Exercises     list the exercises of a database
	Exercise      fetch one exercise
	Import        load CSV datasets into the catalog
	ImportArchive load a zipped CSV dataset as one database
	DropDatabase  remove a database from the catalog

Database Selection:
===================

Operations that take a database name accept "" when exactly one database
has been imported; that database is used. Otherwise a DATASET error
lists the available names.
*/
package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"raedu/internal/cache"
	"raedu/internal/config"
	rerrors "raedu/internal/errors"
	"raedu/internal/exercise"
	"raedu/internal/grading"
	"raedu/internal/logging"
	"raedu/internal/metrics"
	"raedu/internal/ra"
	"raedu/internal/storage"
)

// Service is the application facade. It is safe for concurrent use.
type Service struct {
	catalog      *storage.Catalog
	importer     *storage.Importer
	exercises    *exercise.Store
	traces       *cache.TraceCache
	collator     storage.Collator
	previewLimit int
	dataDir      string
	logger       *logging.Logger
}

// New opens the catalog named by cfg and builds a Service.
func New(cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	collator, err := storage.CollatorFor(cfg.Collation)
	if err != nil {
		return nil, err
	}
	catalog, err := storage.Open(cfg.CatalogFile())
	if err != nil {
		return nil, err
	}

	s := &Service{
		catalog:   catalog,
		importer:  storage.NewImporter(catalog, storage.CSVOptions{}),
		exercises: exercise.NewStore(cfg.DataDir),
		traces: cache.New(cache.Config{
			MaxEntries: cfg.CacheMaxEntries,
			TTL:        cfg.CacheTTL,
			Enabled:    cfg.CacheEnabled,
		}),
		collator:     collator,
		previewLimit: cfg.PreviewLimit,
		dataDir:      cfg.DataDir,
		logger:       logging.NewLogger("service"),
	}
	s.logger.Debug("Service ready", "catalog", catalog.Path(), "collation", collator.Name())
	return s, nil
}

// Close releases the catalog and stops the trace cache.
func (s *Service) Close() error {
	s.traces.Close()
	return s.catalog.Close()
}

// DataDir returns the dataset root.
func (s *Service) DataDir() string { return s.dataDir }

// PreviewLimit returns the default preview size.
func (s *Service) PreviewLimit() int { return s.previewLimit }

// CacheStats returns the trace cache statistics.
func (s *Service) CacheStats() cache.Stats { return s.traces.Stats() }

// EvalOption adjusts a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	previewLimit int
}

// WithPreview overrides the preview size for one evaluation. Evaluate
// rejects values outside 0..config.MaxPreviewLimit.
func WithPreview(n int) EvalOption {
	return func(o *evalOptions) {
		o.previewLimit = n
	}
}

// Evaluate parses expression and traces it against database. The
// returned trace may be shared with other callers and must not be
// modified.
func (s *Service) Evaluate(ctx context.Context, database, expression string, opts ...EvalOption) (*ra.Trace, error) {
	start := time.Now()
	trace, err := s.evaluate(ctx, database, expression, opts)
	steps := 0
	if trace != nil {
		steps = len(trace.Steps)
	}
	metrics.RecordEvaluation(err, time.Since(start), steps)
	return trace, err
}

func (s *Service) evaluate(ctx context.Context, database, expression string, opts []EvalOption) (*ra.Trace, error) {
	o := evalOptions{previewLimit: s.previewLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.previewLimit < 0 || o.previewLimit > config.MaxPreviewLimit {
		return nil, rerrors.ValueOutOfRange("preview_limit", o.previewLimit, 0, config.MaxPreviewLimit)
	}

	node, err := ra.Parse(expression)
	if err != nil {
		return nil, err
	}
	database, err = s.resolve(database)
	if err != nil {
		return nil, err
	}

	key := cache.Key{
		Database:     database,
		Expression:   node.String(),
		PreviewLimit: o.previewLimit,
		Collation:    s.collator.Name(),
	}
	if cached, ok := s.traces.Get(key); ok {
		metrics.RecordCacheLookup(true)
		t := *cached
		t.Expression = expression
		return &t, nil
	}
	metrics.RecordCacheLookup(false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store, err := s.catalog.LoadDatabase(database)
	if err != nil {
		return nil, err
	}
	trace, err := ra.Run(node, store, ra.WithCollator(s.collator), ra.WithPreviewLimit(o.previewLimit))
	if err != nil {
		return nil, err
	}
	trace.Database = database
	s.traces.Set(key, trace)
	s.logger.Debug("Evaluated expression", "database", database,
		"relations", strings.Join(ra.Relations(node), ","), "steps", len(trace.Steps))

	t := *trace
	t.Expression = expression
	return &t, nil
}

// Databases lists the imported databases.
func (s *Service) Databases() ([]storage.DatabaseSummary, error) {
	return s.catalog.ListDatabases()
}

// Schema describes the tables of database with a preview of their rows.
func (s *Service) Schema(database string) (*storage.DatabaseSchema, error) {
	database, err := s.resolve(database)
	if err != nil {
		return nil, err
	}
	return s.catalog.DescribeDatabase(database, s.previewLimit)
}

// Exercises lists the exercises of database.
func (s *Service) Exercises(database string) ([]exercise.Summary, error) {
	database, err := s.resolve(database)
	if err != nil {
		return nil, err
	}
	return s.exercises.List(database)
}

// Exercise returns one exercise of database.
func (s *Service) Exercise(database, id string) (*exercise.Question, error) {
	database, err := s.resolve(database)
	if err != nil {
		return nil, err
	}
	return s.exercises.Get(database, id)
}

// GradeResult is the outcome of grading one submission.
type GradeResult struct {
	Database   string       `json:"database"`
	ExerciseID string       `json:"exercise_id"`
	Expression string       `json:"expression"`
	Diff       grading.Diff `json:"diff"`
	Trace      *ra.Trace    `json:"trace"`
}

// Grade evaluates expression and compares its result with the result of
// the exercise's relational algebra solution.
func (s *Service) Grade(ctx context.Context, database, id, expression string) (*GradeResult, error) {
	database, err := s.resolve(database)
	if err != nil {
		return nil, err
	}
	q, err := s.exercises.Get(database, id)
	if err != nil {
		return nil, err
	}
	if q.Solution.RelationalAlgebra == "" {
		return nil, rerrors.NoSolution(id)
	}

	student, err := s.Evaluate(ctx, database, expression)
	if err != nil {
		return nil, err
	}
	solution, err := s.Evaluate(ctx, database, q.Solution.RelationalAlgebra)
	if err != nil {
		return nil, rerrors.InvalidCatalog(filepath.Join(database, exercise.CatalogFilename),
			"solution of "+id+" does not evaluate").WithCause(err)
	}

	diff := grading.Compare(student.Result(), solution.Result())
	metrics.RecordGrade(diff.Matches, diff.SchemaEqual)
	s.logger.Debug("Graded submission", "database", database, "exercise", id, "matches", diff.Matches)
	return &GradeResult{
		Database:   database,
		ExerciseID: id,
		Expression: expression,
		Diff:       diff,
		Trace:      student,
	}, nil
}

// Import loads every database directory under dir. An empty dir imports
// the configured data directory. Cached traces and exercise catalogs of
// the touched databases are dropped.
func (s *Service) Import(ctx context.Context, dir string) ([]storage.ImportResult, error) {
	if dir == "" {
		dir = s.dataDir
	}
	results, err := s.importer.ImportDir(ctx, dir)
	s.afterImport(results, err)
	return results, err
}

// ImportDatabase loads the CSV files of dir as database name.
func (s *Service) ImportDatabase(ctx context.Context, name, dir string) ([]storage.ImportResult, error) {
	results, err := s.importer.ImportDatabase(ctx, name, dir)
	// Pruned tables leave no result behind.
	s.afterImport(results, err, ra.NormalizeName(name))
	return results, err
}

// ImportArchive loads the CSV files of a zip archive as database name.
func (s *Service) ImportArchive(ctx context.Context, name, archive string) ([]storage.ImportResult, error) {
	results, err := s.importer.ImportArchive(ctx, name, archive)
	s.afterImport(results, err, ra.NormalizeName(name))
	return results, err
}

// DropDatabase removes database from the catalog together with its cached
// traces and exercise catalog. The dataset directory is left in place, so
// a later import restores the database.
func (s *Service) DropDatabase(database string) error {
	database = ra.NormalizeName(database)
	if database == "" {
		return rerrors.MissingRequired("database")
	}
	if err := s.catalog.DropDatabase(database); err != nil {
		return err
	}
	s.traces.Invalidate(database)
	s.exercises.Invalidate(database)
	s.logger.Info("Dropped database", "database", database)
	return nil
}

func (s *Service) afterImport(results []storage.ImportResult, err error, databases ...string) {
	touched := make(map[string]bool)
	for _, db := range databases {
		touched[db] = true
	}
	for _, r := range results {
		metrics.RecordImport(r.Changed, nil)
		touched[r.Database] = true
	}
	if err != nil {
		metrics.RecordImport(false, err)
	}
	for db := range touched {
		s.traces.Invalidate(db)
		s.exercises.Invalidate(db)
	}
	if err != nil {
		s.logger.Warn("Import failed", "error", err)
		return
	}
	s.logger.Info("Import finished", "tables", len(results), "databases", len(touched))
}

// resolve returns the database to use for name.
func (s *Service) resolve(name string) (string, error) {
	if name = ra.NormalizeName(name); name != "" {
		return name, nil
	}
	names, err := s.catalog.DatabaseNames()
	if err != nil {
		return "", err
	}
	if len(names) == 1 {
		return names[0], nil
	}
	return "", rerrors.NoDatabaseSelected(names)
}
