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
Package storage holds raedu's datasets.

Datasets are directories of CSV files: each directory is a database and
each file a table. The Importer parses them and the Catalog persists the
result in a single bolt file so that evaluation never re-reads CSV.

Catalog Layout:

	databases/                 root bucket
	  <database>/              one bucket per database
	    <table>/               one bucket per table
	      meta                 msgpack TableMeta
	      rows/                ordered(uint64 seq) -> msgpack []any

Row keys are order-preserving encodings of the bucket sequence, so a
cursor walks rows in file order. TableMeta carries a BLAKE2b-256 digest
of the source file; importing an unchanged file is a no-op.
*/
package storage

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openkvlab/boltdb"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
	"rsc.io/ordered"

	rerrors "raedu/internal/errors"
	"raedu/internal/logging"
	"raedu/internal/ra"
)

var (
	bucketDatabases = []byte("databases")
	bucketRows      = []byte("rows")
	keyMeta         = []byte("meta")
)

// TableMeta describes a stored table.
type TableMeta struct {
	Name       string    `msgpack:"name" json:"name"`
	Columns    []Column  `msgpack:"columns" json:"columns"`
	RowCount   int       `msgpack:"row_count" json:"row_count"`
	Digest     string    `msgpack:"digest" json:"digest"`
	Source     string    `msgpack:"source" json:"source,omitempty"`
	ImportedAt time.Time `msgpack:"imported_at" json:"imported_at"`
}

// DatabaseSummary lists the tables of one database.
type DatabaseSummary struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

// TableSchema is the schema view of a table with a sample of its rows.
type TableSchema struct {
	Name       string           `json:"name"`
	Columns    []Column         `json:"columns"`
	RowCount   int              `json:"row_count"`
	SampleRows []map[string]any `json:"sample_rows"`
}

// DatabaseSchema is the schema view of a database.
type DatabaseSchema struct {
	Name   string         `json:"name"`
	Tables []*TableSchema `json:"tables"`
}

// Digest returns the hex BLAKE2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Catalog is the persistent store of imported datasets.
type Catalog struct {
	db     *boltdb.DB
	path   string
	logger *logging.Logger
}

// Open opens or creates the catalog file at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, rerrors.NewStorageError("failed to create catalog directory").WithCause(err)
	}
	db, err := boltdb.Open(path, 0600, &boltdb.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, rerrors.NewStorageError(fmt.Sprintf("failed to open catalog %s", path)).
			WithCause(err).
			WithHint("Another raedu process may hold the catalog open")
	}
	err = db.Update(func(tx *boltdb.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDatabases)
		return err
	})
	if err != nil {
		db.Close()
		return nil, rerrors.NewStorageError("failed to initialize catalog").WithCause(err)
	}
	return &Catalog{db: db, path: path, logger: logging.NewLogger("catalog")}, nil
}

// Close closes the catalog file.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the catalog file path.
func (c *Catalog) Path() string { return c.path }

// PutTable stores t under database, replacing any table of the same name.
// When the stored digest equals digest the table is left untouched and
// PutTable reports false.
func (c *Catalog) PutTable(database string, t *Table, source, digest string) (bool, error) {
	database = ra.NormalizeName(database)
	if database == "" {
		return false, rerrors.MissingRequired("database")
	}
	name := ra.NormalizeName(t.Name)
	if name == "" {
		return false, rerrors.MissingRequired("table name")
	}

	changed := true
	err := c.db.Update(func(tx *boltdb.Tx) error {
		dbBucket, err := tx.Bucket(bucketDatabases).CreateBucketIfNotExists([]byte(database))
		if err != nil {
			return err
		}

		if existing := dbBucket.Bucket([]byte(name)); existing != nil {
			var meta TableMeta
			if raw := existing.Get(keyMeta); raw != nil && msgpack.Unmarshal(raw, &meta) == nil {
				if digest != "" && meta.Digest == digest {
					changed = false
					return nil
				}
			}
			if err := dbBucket.DeleteBucket([]byte(name)); err != nil {
				return err
			}
		}

		tb, err := dbBucket.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		meta := TableMeta{
			Name:       name,
			Columns:    t.Columns,
			RowCount:   len(t.Rows),
			Digest:     digest,
			Source:     source,
			ImportedAt: time.Now().UTC(),
		}
		rawMeta, err := msgpack.Marshal(&meta)
		if err != nil {
			return err
		}
		if err := tb.Put(keyMeta, rawMeta); err != nil {
			return err
		}

		rows, err := tb.CreateBucket(bucketRows)
		if err != nil {
			return err
		}
		for _, row := range t.Rows {
			seq, err := rows.NextSequence()
			if err != nil {
				return err
			}
			raw, err := msgpack.Marshal(row)
			if err != nil {
				return err
			}
			if err := rows.Put(ordered.Encode(seq), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, rerrors.NewStorageError(fmt.Sprintf("failed to store %s.%s", database, name)).WithCause(err)
	}
	if changed {
		c.logger.Info("Stored table", "database", database, "table", name, "rows", len(t.Rows))
	} else {
		c.logger.Debug("Table unchanged", "database", database, "table", name)
	}
	return changed, nil
}

// DropTable removes a table.
func (c *Catalog) DropTable(database, table string) error {
	database = ra.NormalizeName(database)
	table = ra.NormalizeName(table)
	return c.update(func(root *boltdb.Bucket) error {
		dbBucket := root.Bucket([]byte(database))
		if dbBucket == nil {
			return rerrors.DatabaseNotFound(database, nil)
		}
		if dbBucket.Bucket([]byte(table)) == nil {
			return rerrors.TableNotFound(database, table)
		}
		return dbBucket.DeleteBucket([]byte(table))
	})
}

// DropDatabase removes a database and all of its tables.
func (c *Catalog) DropDatabase(database string) error {
	database = ra.NormalizeName(database)
	return c.update(func(root *boltdb.Bucket) error {
		if _, err := c.dbBucket(root, database); err != nil {
			return err
		}
		return root.DeleteBucket([]byte(database))
	})
}

// ListDatabases returns every database with its table names, sorted.
func (c *Catalog) ListDatabases() ([]DatabaseSummary, error) {
	var out []DatabaseSummary
	err := c.view(func(root *boltdb.Bucket) error {
		cur := root.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if v != nil {
				continue
			}
			out = append(out, DatabaseSummary{Name: string(k), Tables: tableNames(root.Bucket(k))})
		}
		return nil
	})
	return out, err
}

// DatabaseNames returns the sorted database names.
func (c *Catalog) DatabaseNames() ([]string, error) {
	dbs, err := c.ListDatabases()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(dbs))
	for i, d := range dbs {
		names[i] = d.Name
	}
	return names, nil
}

func tableNames(dbBucket *boltdb.Bucket) []string {
	names := []string{}
	cur := dbBucket.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		if v == nil {
			names = append(names, string(k))
		}
	}
	return names
}

// TableMeta returns the metadata of a stored table.
func (c *Catalog) TableMeta(database, table string) (*TableMeta, error) {
	database = ra.NormalizeName(database)
	var meta *TableMeta
	err := c.view(func(root *boltdb.Bucket) error {
		tb, err := c.tableBucket(root, database, table)
		if err != nil {
			return err
		}
		meta, err = readMeta(tb, database, table)
		return err
	})
	return meta, err
}

// TableDigest returns the stored source digest of a table, or false when
// the table does not exist.
func (c *Catalog) TableDigest(database, table string) (string, bool, error) {
	database = ra.NormalizeName(database)
	meta, err := c.TableMeta(database, table)
	if rerrors.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return meta.Digest, true, nil
}

// LoadDatabase returns every table of database as relations.
func (c *Catalog) LoadDatabase(database string) (ra.MapStore, error) {
	database = ra.NormalizeName(database)
	store := make(ra.MapStore)
	err := c.view(func(root *boltdb.Bucket) error {
		dbBucket, err := c.dbBucket(root, database)
		if err != nil {
			return err
		}
		names := tableNames(dbBucket)
		if len(names) == 0 {
			return rerrors.InvalidDataset(database, "database does not contain any tables")
		}
		for _, name := range names {
			tb := dbBucket.Bucket([]byte(name))
			meta, err := readMeta(tb, database, name)
			if err != nil {
				return err
			}
			rows, err := readRows(tb, database, name, -1)
			if err != nil {
				return err
			}
			rel, err := ra.NewRelationFromTuples(columnNames(meta.Columns), rows)
			if err != nil {
				return err
			}
			store[name] = rel
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// LoadTable returns one table as a relation.
func (c *Catalog) LoadTable(database, table string) (*ra.Relation, error) {
	database = ra.NormalizeName(database)
	var rel *ra.Relation
	err := c.view(func(root *boltdb.Bucket) error {
		tb, err := c.tableBucket(root, database, table)
		if err != nil {
			return err
		}
		meta, err := readMeta(tb, database, table)
		if err != nil {
			return err
		}
		rows, err := readRows(tb, database, table, -1)
		if err != nil {
			return err
		}
		rel, err = ra.NewRelationFromTuples(columnNames(meta.Columns), rows)
		return err
	})
	return rel, err
}

// DescribeDatabase returns the schema of every table with up to
// sampleRows rows each.
func (c *Catalog) DescribeDatabase(database string, sampleRows int) (*DatabaseSchema, error) {
	database = ra.NormalizeName(database)
	schema := &DatabaseSchema{Name: database}
	err := c.view(func(root *boltdb.Bucket) error {
		dbBucket, err := c.dbBucket(root, database)
		if err != nil {
			return err
		}
		for _, name := range tableNames(dbBucket) {
			ts, err := describe(dbBucket.Bucket([]byte(name)), database, name, sampleRows)
			if err != nil {
				return err
			}
			schema.Tables = append(schema.Tables, ts)
		}
		if len(schema.Tables) == 0 {
			return rerrors.InvalidDataset(database, "database does not contain any tables")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// DescribeTable returns the schema of one table.
func (c *Catalog) DescribeTable(database, table string, sampleRows int) (*TableSchema, error) {
	database = ra.NormalizeName(database)
	var ts *TableSchema
	err := c.view(func(root *boltdb.Bucket) error {
		tb, err := c.tableBucket(root, database, table)
		if err != nil {
			return err
		}
		ts, err = describe(tb, database, ra.NormalizeName(table), sampleRows)
		return err
	})
	return ts, err
}

func describe(tb *boltdb.Bucket, database, table string, sampleRows int) (*TableSchema, error) {
	meta, err := readMeta(tb, database, table)
	if err != nil {
		return nil, err
	}
	rows, err := readRows(tb, database, table, sampleRows)
	if err != nil {
		return nil, err
	}
	sample := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(meta.Columns))
		for j, col := range meta.Columns {
			m[col.Name] = row[j]
		}
		sample[i] = m
	}
	return &TableSchema{Name: meta.Name, Columns: meta.Columns, RowCount: meta.RowCount, SampleRows: sample}, nil
}

func (c *Catalog) view(fn func(root *boltdb.Bucket) error) error {
	return c.db.View(func(tx *boltdb.Tx) error {
		return fn(tx.Bucket(bucketDatabases))
	})
}

func (c *Catalog) update(fn func(root *boltdb.Bucket) error) error {
	return c.db.Update(func(tx *boltdb.Tx) error {
		return fn(tx.Bucket(bucketDatabases))
	})
}

func (c *Catalog) dbBucket(root *boltdb.Bucket, database string) (*boltdb.Bucket, error) {
	b := root.Bucket([]byte(database))
	if b == nil {
		var available []string
		cur := root.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if v == nil {
				available = append(available, string(k))
			}
		}
		return nil, rerrors.DatabaseNotFound(database, available)
	}
	return b, nil
}

func (c *Catalog) tableBucket(root *boltdb.Bucket, database, table string) (*boltdb.Bucket, error) {
	dbBucket, err := c.dbBucket(root, database)
	if err != nil {
		return nil, err
	}
	tb := dbBucket.Bucket([]byte(ra.NormalizeName(table)))
	if tb == nil {
		return nil, rerrors.TableNotFound(database, ra.NormalizeName(table))
	}
	return tb, nil
}

func readMeta(tb *boltdb.Bucket, database, table string) (*TableMeta, error) {
	raw := tb.Get(keyMeta)
	if raw == nil {
		return nil, rerrors.CorruptRecord(database + "." + table + "/meta")
	}
	var meta TableMeta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return nil, rerrors.CorruptRecord(database + "." + table + "/meta").WithCause(err)
	}
	return &meta, nil
}

// readRows decodes up to limit rows in insertion order; limit < 0 reads all.
func readRows(tb *boltdb.Bucket, database, table string, limit int) ([][]any, error) {
	rb := tb.Bucket(bucketRows)
	if rb == nil {
		return nil, rerrors.CorruptRecord(database + "." + table + "/rows")
	}
	var rows [][]any
	cur := rb.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		if limit >= 0 && len(rows) >= limit {
			break
		}
		var row []any
		if err := msgpack.Unmarshal(v, &row); err != nil {
			var seq uint64
			_ = ordered.Decode(k, &seq)
			return nil, rerrors.CorruptRecord(fmt.Sprintf("%s.%s/rows/%d", database, table, seq)).WithCause(err)
		}
		for i, cell := range row {
			if val, err := ra.ValueOf(cell); err == nil {
				row[i] = val.Interface()
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
