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

package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	rerrors "raedu/internal/errors"
	"raedu/internal/logging"
	"raedu/internal/ra"
)

// ImportResult reports what happened to one dataset file.
type ImportResult struct {
	Database string `json:"database"`
	Table    string `json:"table"`
	Source   string `json:"source"`
	Rows     int    `json:"rows"`
	Changed  bool   `json:"changed"`
}

// Importer loads dataset directories into a Catalog.
type Importer struct {
	catalog     *Catalog
	opts        CSVOptions
	concurrency int
	logger      *logging.Logger
}

// NewImporter creates an importer that parses files with opts.
func NewImporter(catalog *Catalog, opts CSVOptions) *Importer {
	return &Importer{
		catalog:     catalog,
		opts:        opts,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      logging.NewLogger("importer"),
	}
}

// SetConcurrency bounds the number of files parsed at once.
func (im *Importer) SetConcurrency(n int) {
	if n > 0 {
		im.concurrency = n
	}
}

// ImportDir imports every subdirectory of root as a database named after
// the directory. Subdirectories without CSV files are skipped.
func (im *Importer) ImportDir(ctx context.Context, root string) ([]ImportResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, rerrors.NewStorageError("failed to read dataset directory " + root).WithCause(err)
	}

	var results []ImportResult
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := csvFiles(dir)
		if err != nil {
			return results, err
		}
		if len(files) == 0 {
			im.logger.Warn("Skipping directory without CSV files", "dir", dir)
			continue
		}
		res, err := im.importFiles(ctx, e.Name(), fileSources(files))
		results = append(results, res...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// ImportDatabase imports the CSV files of dir as database name. Tables
// stored under name whose files are gone are dropped.
func (im *Importer) ImportDatabase(ctx context.Context, name, dir string) ([]ImportResult, error) {
	files, err := csvFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, rerrors.InvalidDataset(dir, "directory does not contain any CSV files")
	}
	return im.importFiles(ctx, name, fileSources(files))
}

// maxArchiveEntry bounds the uncompressed size of one archived CSV file.
const maxArchiveEntry = 256 << 20

// ImportArchive imports the CSV files of a zip archive as database name.
// Directories inside the archive are flattened; entries under dot
// directories (e.g. __MACOSX) are ignored.
func (im *Importer) ImportArchive(ctx context.Context, name, archive string) ([]ImportResult, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, rerrors.InvalidDataset(archive, "not a readable zip archive").WithCause(err)
	}
	defer zr.Close()

	var sources []source
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".csv") || hiddenEntry(f.Name) {
			continue
		}
		if f.UncompressedSize64 > maxArchiveEntry {
			return nil, rerrors.InvalidDataset(archive, f.Name+" is too large")
		}
		sources = append(sources, source{
			path: filepath.Join(archive, filepath.FromSlash(f.Name)),
			read: func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return io.ReadAll(io.LimitReader(rc, maxArchiveEntry))
			},
		})
	}
	if len(sources) == 0 {
		return nil, rerrors.InvalidDataset(archive, "archive does not contain any CSV files")
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].path < sources[j].path })
	return im.importFiles(ctx, name, sources)
}

func hiddenEntry(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") || part == "__MACOSX" {
			return true
		}
	}
	return false
}

// source is one CSV document to import. path names it in results and
// errors and determines the table name.
type source struct {
	path string
	read func() ([]byte, error)
}

func fileSources(files []string) []source {
	out := make([]source, len(files))
	for i, f := range files {
		out[i] = source{path: f, read: func() ([]byte, error) { return os.ReadFile(f) }}
	}
	return out
}

type parsedFile struct {
	path   string
	table  *Table
	digest string
}

func (im *Importer) importFiles(ctx context.Context, database string, files []source) ([]ImportResult, error) {
	database = ra.NormalizeName(database)
	if database == "" {
		return nil, rerrors.MissingRequired("database")
	}
	parsed := make([]parsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, src := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := src.read()
			if err != nil {
				return rerrors.NewStorageError("failed to read " + src.path).WithCause(err)
			}
			t, err := ReadCSV(bytes.NewReader(data), im.opts)
			if err != nil {
				if e, ok := rerrors.As(err); ok && e.Code == rerrors.ErrCodeInvalidDataset {
					return rerrors.InvalidDataset(src.path, e.Detail).WithCause(err)
				}
				return err
			}
			t.Name = TableName(src.path)
			parsed[i] = parsedFile{path: src.path, table: t, digest: Digest(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// bolt allows one writer; store sequentially in file order.
	results := make([]ImportResult, 0, len(parsed))
	keep := make(map[string]bool, len(parsed))
	for _, p := range parsed {
		if keep[p.table.Name] {
			return results, rerrors.InvalidDataset(p.path, "another file already defines table "+p.table.Name)
		}
		keep[p.table.Name] = true
		changed, err := im.catalog.PutTable(database, p.table, p.path, p.digest)
		if err != nil {
			return results, err
		}
		results = append(results, ImportResult{
			Database: database,
			Table:    p.table.Name,
			Source:   p.path,
			Rows:     len(p.table.Rows),
			Changed:  changed,
		})
	}

	if err := im.pruneTables(database, keep); err != nil {
		return results, err
	}
	im.logger.Info("Imported database", "database", database, "tables", len(results))
	return results, nil
}

func (im *Importer) pruneTables(database string, keep map[string]bool) error {
	dbs, err := im.catalog.ListDatabases()
	if err != nil {
		return err
	}
	for _, d := range dbs {
		if d.Name != database {
			continue
		}
		for _, table := range d.Tables {
			if keep[table] {
				continue
			}
			if err := im.catalog.DropTable(database, table); err != nil {
				return err
			}
			im.logger.Info("Dropped stale table", "database", database, "table", table)
		}
	}
	return nil
}

// csvFiles lists *.csv files (any case) in dir, sorted by name.
func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rerrors.NewStorageError("failed to read dataset directory " + dir).WithCause(err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
