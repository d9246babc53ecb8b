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
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	rerrors "raedu/internal/errors"
	"raedu/internal/ra"
)

// ColumnType is the inferred type of a dataset column.
type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
	TypeString ColumnType = "string"
)

// Column describes one column of a table.
type Column struct {
	Name string     `msgpack:"name" json:"name"`
	Type ColumnType `msgpack:"type" json:"type"`
}

// Table is a parsed dataset file. Rows hold int64, float64, bool, string
// or nil (empty cell) values in column order.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Schema returns the column names.
func (t *Table) Schema() []string {
	return columnNames(t.Columns)
}

// Relation converts the table into a relation. Duplicate rows collapse.
func (t *Table) Relation() (*ra.Relation, error) {
	return ra.NewRelationFromTuples(t.Schema(), t.Rows)
}

// CSVOptions controls how dataset files are read.
type CSVOptions struct {
	Encoding CharacterEncoding
	Comma    rune // 0 means ','
}

// TableName derives a relation name from a file path: the lower-cased
// base name without extension.
func TableName(path string) string {
	base := filepath.Base(path)
	return ra.NormalizeName(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ReadCSV parses a CSV document. The header row becomes the schema
// (lower-cased); each column's type is the narrowest of int, float, bool
// and string that fits every non-empty cell. Empty cells become NULL.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, rerrors.NewStorageError("failed to read dataset").WithCause(err)
	}
	data, err := DecodeText(raw, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, rerrors.InvalidDataset("csv", err.Error()).WithCause(err)
	}
	if len(records) == 0 {
		return nil, rerrors.InvalidDataset("csv", "missing header row")
	}

	header := records[0]
	seen := make(map[string]bool, len(header))
	columns := make([]Column, len(header))
	for i, h := range header {
		name := ra.NormalizeName(h)
		if name == "" {
			return nil, rerrors.InvalidDataset("csv", fmt.Sprintf("column %d has an empty name", i+1))
		}
		if seen[name] {
			return nil, rerrors.InvalidDataset("csv", "duplicate column "+name)
		}
		seen[name] = true
		columns[i] = Column{Name: name}
	}

	body := records[1:]
	for i := range columns {
		columns[i].Type = inferType(body, i)
	}

	rows := make([][]any, len(body))
	for r, rec := range body {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = convertCell(rec[i], col.Type)
		}
		rows[r] = row
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

func inferType(records [][]string, col int) ColumnType {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, rec := range records {
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFloat(cell); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(cell); !ok {
				isBool = false
			}
		}
	}
	switch {
	case !seen:
		return TypeString
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	case isBool:
		return TypeBool
	}
	return TypeString
}

func convertCell(cell string, typ ColumnType) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	switch typ {
	case TypeInt:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return n
	case TypeFloat:
		f, _ := parseFloat(trimmed)
		return f
	case TypeBool:
		b, _ := parseBool(trimmed)
		return b
	}
	return cell
}

// parseFloat rejects NaN and infinities.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
