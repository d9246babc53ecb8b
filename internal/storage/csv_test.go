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
	"strings"
	"testing"

	rerrors "raedu/internal/errors"
)

func TestReadCSVInfersTypes(t *testing.T) {
	doc := "ID,Name,GPA,Active,Note\n1,Ann,3.5,true,\n2,Bo,4,FALSE,x\n3,Cy,,true,7\n"
	table, err := ReadCSV(strings.NewReader(doc), CSVOptions{})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	want := []Column{
		{"id", TypeInt}, {"name", TypeString}, {"gpa", TypeFloat}, {"active", TypeBool}, {"note", TypeString},
	}
	for i, c := range want {
		if table.Columns[i] != c {
			t.Errorf("Column %d: expected %+v, got %+v", i, c, table.Columns[i])
		}
	}
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	if table.Rows[0][0] != int64(1) || table.Rows[1][2] != float64(4) || table.Rows[1][3] != false {
		t.Errorf("Unexpected converted values %v", table.Rows[:2])
	}
	if table.Rows[2][2] != nil || table.Rows[0][4] != nil {
		t.Error("Expected empty cells to be NULL")
	}
	if table.Rows[2][4] != "7" {
		t.Errorf("Expected string column to keep text, got %#v", table.Rows[2][4])
	}
}

func TestReadCSVAllEmptyColumnIsString(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("a,b\n1,\n2,\n"), CSVOptions{})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if table.Columns[1].Type != TypeString {
		t.Errorf("Expected string for an all-empty column, got %s", table.Columns[1].Type)
	}
}

func TestReadCSVRejectsNaN(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("x\n1.5\nNaN\n"), CSVOptions{})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if table.Columns[0].Type != TypeString {
		t.Errorf("Expected NaN to force a string column, got %s", table.Columns[0].Type)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"blank header", "a,\n1,2\n"},
		{"duplicate header", "a,A\n1,2\n"},
		{"ragged row", "a,b\n1\n"},
	}
	for _, tt := range tests {
		_, err := ReadCSV(strings.NewReader(tt.doc), CSVOptions{})
		if !rerrors.HasCode(err, rerrors.ErrCodeInvalidDataset) {
			t.Errorf("%s: expected InvalidDataset, got %v", tt.name, err)
		}
	}
}

func TestReadCSVEncodings(t *testing.T) {
	latin1 := []byte("name\nJos\xe9\n")
	table, err := ReadCSV(bytes.NewReader(latin1), CSVOptions{Encoding: EncodingLatin1})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if table.Rows[0][0] != "José" {
		t.Errorf("Expected José, got %q", table.Rows[0][0])
	}

	if _, err := ReadCSV(bytes.NewReader(latin1), CSVOptions{}); !rerrors.IsValidationError(err) {
		t.Errorf("Expected invalid UTF-8 to be rejected, got %v", err)
	}

	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id\n1\n")...)
	table, err = ReadCSV(bytes.NewReader(bom), CSVOptions{})
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if table.Columns[0].Name != "id" {
		t.Errorf("Expected BOM stripped from header, got %q", table.Columns[0].Name)
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]CharacterEncoding{
		"": EncodingUTF8, "UTF8": EncodingUTF8, "ISO-8859-1": EncodingLatin1, "cp1252": EncodingWindows1252,
	} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("ebcdic"); err == nil {
		t.Error("Expected error for an unsupported encoding")
	}
}

func TestTableName(t *testing.T) {
	if got := TableName("/data/school/Students.CSV"); got != "students" {
		t.Errorf("Expected students, got %s", got)
	}
}
