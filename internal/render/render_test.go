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

package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	rerrors "raedu/internal/errors"
	"raedu/internal/grading"
	"raedu/internal/ra"
)

func sampleTrace(t *testing.T, expr string) *ra.Trace {
	t.Helper()
	store := ra.NewMapStore(map[string]*ra.Relation{
		"students": ra.MustRelation([]string{"id", "name", "age"},
			[]any{1, "Ann", 21},
			[]any{2, "Bo", 34},
			[]any{3, "Cy", nil},
		),
	})
	node, err := ra.Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", expr, err)
	}
	trace, err := ra.Run(node, store)
	if err != nil {
		t.Fatalf("Run(%q) failed: %v", expr, err)
	}
	trace.Database = "school"
	return trace
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" msgpack ", FormatMsgpack, false},
		{"html", FormatHTML, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !rerrors.IsValidationError(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	trace := sampleTrace(t, "π{name}(students)")
	out := Text(trace)

	for _, want := range []string{"Expression", "π{name}(students)", "school", "Step 1", "Step 2", ra.OpProjection, "Result", "3 rows", "Ann", "Cy"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected text output to contain %q:\n%s", want, out)
		}
	}
}

func TestTextEmptyResult(t *testing.T) {
	trace := sampleTrace(t, "σ{age > 100}(students)")
	out := Result(trace)
	if !strings.Contains(out, "0 rows") || !strings.Contains(out, "(no rows)") {
		t.Errorf("Unexpected empty result rendering:\n%s", out)
	}
}

func TestTableShowsNull(t *testing.T) {
	rel := ra.MustRelation([]string{"id", "age"}, []any{1, nil})
	out := Table(rel.Schema(), rel.Rows(-1))
	for _, want := range []string{"id", "age", "NULL"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected table to contain %q:\n%s", want, out)
		}
	}
}

func TestEncodeJSON(t *testing.T) {
	trace := sampleTrace(t, "π{name}(students)")
	var buf bytes.Buffer
	if err := Encode(&buf, trace, FormatJSON); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var doc struct {
		Expression  string           `json:"expression"`
		Database    string           `json:"database"`
		FinalSchema []string         `json:"final_schema"`
		FinalRows   int              `json:"final_rows"`
		Steps       []map[string]any `json:"steps"`
		Preview     []map[string]any `json:"preview"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if doc.Expression != trace.Expression || doc.Database != "school" || doc.FinalRows != 3 {
		t.Errorf("Unexpected document %+v", doc)
	}
	if len(doc.Steps) != 2 || len(doc.Preview) != 3 || doc.Preview[0]["name"] != "Ann" {
		t.Errorf("Unexpected steps or preview: %+v", doc)
	}
}

func TestEncodeMsgpack(t *testing.T) {
	trace := sampleTrace(t, "σ{age < 30}(students)")
	var buf bytes.Buffer
	if err := Encode(&buf, trace, FormatMsgpack); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var doc struct {
		Expression  string   `msgpack:"expression"`
		FinalSchema []string `msgpack:"final_schema"`
		FinalRows   int      `msgpack:"final_rows"`
		Steps       []struct {
			Op     string `msgpack:"op"`
			Rows   int    `msgpack:"rows"`
			Detail *struct {
				Cond string `msgpack:"cond"`
			} `msgpack:"detail"`
		} `msgpack:"steps"`
		Preview []map[string]any `msgpack:"preview"`
	}
	if err := msgpack.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Invalid msgpack: %v", err)
	}
	if doc.Expression != trace.Expression || doc.FinalRows != 1 {
		t.Errorf("Unexpected document %+v", doc)
	}
	if len(doc.FinalSchema) != 3 || doc.FinalSchema[1] != "name" {
		t.Errorf("Unexpected schema %v", doc.FinalSchema)
	}
	if len(doc.Steps) != 2 || doc.Steps[1].Op != ra.OpSelection || doc.Steps[1].Detail == nil || doc.Steps[1].Detail.Cond == "" {
		t.Errorf("Unexpected steps %+v", doc.Steps)
	}
	if len(doc.Preview) != 1 || doc.Preview[0]["name"] != "Ann" {
		t.Errorf("Unexpected preview %v", doc.Preview)
	}
}

func TestEncodeHTML(t *testing.T) {
	trace := sampleTrace(t, "σ{age < 30}(students)")
	var buf bytes.Buffer
	if err := Encode(&buf, trace, FormatHTML); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Errorf("Expected a full HTML page, got %.40q", out)
	}
	if strings.Contains(out, "age < 30") || !strings.Contains(out, "age &lt; 30") {
		t.Error("Expected the expression to be escaped")
	}
	for _, want := range []string{"Step 1:", "Step 2:", "<th>name</th>", "<td>Ann</td>", "1 rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected HTML to contain %q", want)
		}
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	trace := sampleTrace(t, "students")
	if err := Encode(&bytes.Buffer{}, trace, Format("pdf")); !rerrors.IsValidationError(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestDiff(t *testing.T) {
	solution := ra.MustRelation([]string{"name"}, []any{"Ann"}, []any{"Cy"})

	tests := []struct {
		name    string
		student *ra.Relation
		want    []string
	}{
		{"match", ra.MustRelation([]string{"name"}, []any{"Cy"}, []any{"Ann"}), []string{"Correct"}},
		{"missing", ra.MustRelation([]string{"name"}, []any{"Ann"}), []string{"Incorrect", "1 missing row", "Cy"}},
		{"extra", ra.MustRelation([]string{"name"}, []any{"Ann"}, []any{"Cy"}, []any{"Bo"}), []string{"Incorrect", "1 unexpected row", "Bo"}},
		{"schema", ra.MustRelation([]string{"id"}, []any{1}), []string{"Incorrect", "your schema:", "(id)", "(name)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Diff(grading.Compare(tt.student, solution))
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Expected diff to contain %q:\n%s", want, out)
				}
			}
		})
	}
}
