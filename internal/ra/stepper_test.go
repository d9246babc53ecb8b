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

package ra

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func numbers(n int) *Relation {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i, i % 2 == 0}
	}
	r, err := NewRelationFromTuples([]string{"n", "even"}, rows)
	if err != nil {
		panic(err)
	}
	return r
}

func TestPreviewIsBounded(t *testing.T) {
	rels := map[string]*Relation{"nums": numbers(25)}
	trace := mustEval(t, "σ{even}(nums)", rels)
	if trace.FinalRows != 13 {
		t.Errorf("Expected the true count 13, got %d", trace.FinalRows)
	}
	if len(trace.Preview) != DefaultPreviewLimit {
		t.Errorf("Expected %d preview rows, got %d", DefaultPreviewLimit, len(trace.Preview))
	}
	if trace.Steps[0].Rows != 25 || len(trace.Steps[0].Preview) != DefaultPreviewLimit {
		t.Errorf("Unexpected base step %d rows, %d previewed", trace.Steps[0].Rows, len(trace.Steps[0].Preview))
	}
	if v, _ := trace.Preview[0].Get("n"); v.String() != "0" {
		t.Errorf("Expected preview to start with the first row, got %v", v)
	}

	small := mustEval(t, "nums", rels, WithPreviewLimit(3))
	if len(small.Preview) != 3 {
		t.Errorf("Expected 3 preview rows, got %d", len(small.Preview))
	}
}

func TestStepsFollowEvaluationOrder(t *testing.T) {
	trace := mustEval(t, "π{student}(enrolled ÷ required) ∪ π{student}(ρ{name->student}(π{name}(students)))", studentsDB())
	var ops []string
	for _, s := range trace.Steps {
		ops = append(ops, s.Op)
	}
	want := "rel rel ÷ π rel π ρ π ∪"
	if got := strings.Join(ops, " "); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if trace.FinalRows != 4 {
		t.Errorf("Expected 4 students, got %d", trace.FinalRows)
	}
}

func TestSelectionDelta(t *testing.T) {
	trace := mustEval(t, "σ{major = 'CS'}(students)", studentsDB())
	d := trace.Steps[1].Delta
	if d == nil {
		t.Fatal("Expected a delta")
	}
	if d.RowsBefore != 2 || d.RowsAfter != 1 {
		t.Errorf("Expected 2 -> 1 rows, got %d -> %d", d.RowsBefore, d.RowsAfter)
	}
	if len(d.RemovedRows) != 1 || len(d.AddedRows) != 0 {
		t.Fatalf("Expected one removed row, got %d removed %d added", len(d.RemovedRows), len(d.AddedRows))
	}
	if v, _ := d.RemovedRows[0].Get("name"); v.String() != "Bo" {
		t.Errorf("Expected Bo removed, got %v", v)
	}
	if trace.Steps[0].Delta != nil {
		t.Error("Expected no delta on a base relation step")
	}
}

func TestUnionDeltaShowsAddedRows(t *testing.T) {
	rels := map[string]*Relation{
		"a": MustRelation([]string{"x"}, []any{1}),
		"b": MustRelation([]string{"x"}, []any{2}, []any{1}),
	}
	d := mustEval(t, "a ∪ b", rels).Steps[2].Delta
	if len(d.AddedRows) != 1 || len(d.RemovedRows) != 0 {
		t.Errorf("Expected one added row, got %+v", d)
	}
}

func TestEmptyOperandNote(t *testing.T) {
	trace := mustEval(t, "required ∪ nothing", studentsDB())
	if !strings.Contains(trace.Steps[1].Note, "relation nothing is empty") {
		t.Errorf("Expected empty relation note, got %q", trace.Steps[1].Note)
	}
	if !strings.Contains(trace.Steps[2].Note, "right operand is empty") {
		t.Errorf("Expected empty operand note, got %q", trace.Steps[2].Note)
	}
}

func TestTraceJSONShape(t *testing.T) {
	trace := mustEval(t, "π{name}(students)", studentsDB())
	trace.Database = "school"
	b, err := json.Marshal(trace)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"expression", "database", "steps", "final_schema", "final_rows", "preview"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Missing key %s in %s", key, b)
		}
	}
	steps := decoded["steps"].([]any)
	proj := steps[1].(map[string]any)
	for _, key := range []string{"op", "detail", "input_schema", "output_schema", "rows", "preview", "delta"} {
		if _, ok := proj[key]; !ok {
			t.Errorf("Missing step key %s", key)
		}
	}
	if !strings.Contains(string(b), `"preview":[{"name":"Ann"},{"name":"Bo"}]`) {
		t.Errorf("Unexpected preview encoding in %s", b)
	}
}

func TestRunUsesCanonicalExpression(t *testing.T) {
	node := mustParse(t, "PI{Name}(Students)")
	trace, err := Run(node, NewMapStore(studentsDB()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if trace.Expression != "π{name}(students)" {
		t.Errorf("Unexpected expression %q", trace.Expression)
	}
}

func ExampleEvaluateExpression() {
	trace, err := EvaluateExpression("π{name}(σ{major = 'CS'}(students))", map[string]*Relation{
		"students": MustRelation([]string{"id", "name", "major"},
			[]any{1, "Ann", "CS"},
			[]any{2, "Bo", "EE"},
		),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, s := range trace.Steps {
		fmt.Println(s.Op, s.OutputSchema, s.Rows)
	}
	b, _ := json.Marshal(trace.Preview)
	fmt.Println(string(b))
	// Output:
	// rel [id name major] 2
	// σ [id name major] 1
	// π [name] 1
	// [{"name":"Ann"}]
}
