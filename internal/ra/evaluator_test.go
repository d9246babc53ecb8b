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
	"strings"
	"testing"

	rerrors "raedu/internal/errors"
)

func studentsDB() map[string]*Relation {
	return map[string]*Relation{
		"students": MustRelation([]string{"id", "name", "major"},
			[]any{1, "Ann", "CS"},
			[]any{2, "Bo", "EE"},
		),
		"enrolled": MustRelation([]string{"student", "course"},
			[]any{"ann", "db"}, []any{"ann", "os"},
			[]any{"bo", "db"},
			[]any{"cy", "os"}, []any{"cy", "db"}, []any{"cy", "ai"},
		),
		"required": MustRelation([]string{"course"}, []any{"db"}, []any{"os"}),
		"nothing":  MustRelation([]string{"course"}),
	}
}

func mustEval(t *testing.T, expr string, rels map[string]*Relation, opts ...Option) *Trace {
	t.Helper()
	trace, err := EvaluateExpression(expr, rels, opts...)
	if err != nil {
		t.Fatalf("EvaluateExpression(%q) failed: %v", expr, err)
	}
	return trace
}

func schemaString(s []string) string { return strings.Join(s, ",") }

func previewJSON(t *testing.T, rows []Row) string {
	t.Helper()
	b, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("marshal preview: %v", err)
	}
	return string(b)
}

func TestScenarioProjectSelect(t *testing.T) {
	trace := mustEval(t, "π{name}(σ{major = 'CS'}(students))", studentsDB())
	if schemaString(trace.FinalSchema) != "name" {
		t.Errorf("Expected schema [name], got %v", trace.FinalSchema)
	}
	if got := previewJSON(t, trace.Preview); got != `[{"name":"Ann"}]` {
		t.Errorf("Unexpected rows %s", got)
	}
	if len(trace.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(trace.Steps))
	}
	for i, op := range []string{OpRelation, OpSelection, OpProjection} {
		if trace.Steps[i].Op != op {
			t.Errorf("step %d: expected %s, got %s", i, op, trace.Steps[i].Op)
		}
	}
}

func TestScenarioNaturalJoin(t *testing.T) {
	rels := map[string]*Relation{
		"a": MustRelation([]string{"x", "y"}, []any{1, 2}),
		"b": MustRelation([]string{"y", "z"}, []any{2, 3}),
	}
	trace := mustEval(t, "a ⋈ b", rels)
	if schemaString(trace.FinalSchema) != "x,y,z" {
		t.Errorf("Expected schema [x y z], got %v", trace.FinalSchema)
	}
	if got := previewJSON(t, trace.Preview); got != `[{"x":1,"y":2,"z":3}]` {
		t.Errorf("Unexpected rows %s", got)
	}
	join := trace.Steps[2]
	if len(join.InputSchema) != 2 || schemaString(join.InputSchema[1]) != "y,z" {
		t.Errorf("Expected both input schemas, got %v", join.InputSchema)
	}
	if join.Detail == nil || schemaString(join.Detail.OnCommon) != "y" {
		t.Errorf("Expected join on y, got %+v", join.Detail)
	}
}

func TestScenarioDifferenceIntersection(t *testing.T) {
	rels := map[string]*Relation{
		"a": MustRelation([]string{"x"}, []any{1}, []any{2}),
		"b": MustRelation([]string{"x"}, []any{2}, []any{3}),
	}
	if got := previewJSON(t, mustEval(t, "a − b", rels).Preview); got != `[{"x":1}]` {
		t.Errorf("a − b: unexpected rows %s", got)
	}
	if got := previewJSON(t, mustEval(t, "a ∩ b", rels).Preview); got != `[{"x":2}]` {
		t.Errorf("a ∩ b: unexpected rows %s", got)
	}
}

func TestScenarioSchemaMismatch(t *testing.T) {
	rels := map[string]*Relation{
		"a": MustRelation([]string{"x", "y"}, []any{1, 2}),
		"b": MustRelation([]string{"x"}, []any{1}),
	}
	trace, err := EvaluateExpression("a ∪ b", rels)
	if err == nil {
		t.Fatal("Expected SchemaMismatch")
	}
	if trace != nil {
		t.Error("Expected no partial trace")
	}
	if !rerrors.HasCode(err, rerrors.ErrCodeSchemaMismatch) {
		t.Errorf("Expected SchemaMismatch, got %v", err)
	}
	if !rerrors.IsSemanticError(err) {
		t.Errorf("Expected semantic category, got %v", err)
	}
}

func TestSetOperationsKeepLeftAttributeOrder(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"x", "y"}, []any{1, "a"}, []any{2, "b"}, []any{3, "c"}),
		"s": MustRelation([]string{"y", "x"}, []any{"b", 2}, []any{"d", 4}),
	}
	union := mustEval(t, "r ∪ s", rels)
	inter := mustEval(t, "r ∩ s", rels)
	diff := mustEval(t, "r − s", rels)
	for _, tr := range []*Trace{union, inter, diff} {
		if schemaString(tr.FinalSchema) != "x,y" {
			t.Errorf("%s: expected schema [x y], got %v", tr.Expression, tr.FinalSchema)
		}
	}
	if union.FinalRows != 3+2-inter.FinalRows {
		t.Errorf("|R ∪ S| = %d, expected %d", union.FinalRows, 3+2-inter.FinalRows)
	}
	if inter.FinalRows != 1 || diff.FinalRows != 2 {
		t.Errorf("Expected 1 common and 2 left-only rows, got %d and %d", inter.FinalRows, diff.FinalRows)
	}
	if got := previewJSON(t, union.Preview); got != `[{"x":1,"y":"a"},{"x":2,"y":"b"},{"x":3,"y":"c"},{"x":4,"y":"d"}]` {
		t.Errorf("Unexpected union rows %s", got)
	}
}

func TestProjectionIsIdempotent(t *testing.T) {
	rels := studentsDB()
	once := mustEval(t, "π{major}(students)", rels)
	twice := mustEval(t, "π{major}(π{major}(students))", rels)
	if !once.Result().Equal(twice.Result()) {
		t.Errorf("Expected equal results, got %s and %s", previewJSON(t, once.Preview), previewJSON(t, twice.Preview))
	}
}

func TestProjectionRemovesDuplicates(t *testing.T) {
	trace := mustEval(t, "π{course}(enrolled)", studentsDB())
	if trace.FinalRows != 3 {
		t.Errorf("Expected 3 distinct courses, got %d", trace.FinalRows)
	}
	step := trace.Steps[1]
	if !strings.Contains(step.Note, "removed 3 duplicate") {
		t.Errorf("Expected a duplicate note, got %q", step.Note)
	}
	if schemaString(step.Delta.AttributesRemoved) != "student" {
		t.Errorf("Expected student removed, got %v", step.Delta.AttributesRemoved)
	}
}

func TestNaturalJoinIsCommutativeInRows(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"id", "v"}, []any{1, "a"}, []any{2, "b"}, []any{3, "c"}),
		"s": MustRelation([]string{"w", "id"}, []any{"x", 1}, []any{"y", 1}, []any{"z", 3}),
	}
	rs := mustEval(t, "r ⋈ s", rels)
	sr := mustEval(t, "s ⋈ r", rels)
	if schemaString(rs.FinalSchema) != "id,v,w" || schemaString(sr.FinalSchema) != "w,id,v" {
		t.Errorf("Unexpected schemas %v and %v", rs.FinalSchema, sr.FinalSchema)
	}
	if rs.FinalRows != 3 || !rs.Result().Equal(sr.Result()) {
		t.Errorf("Expected equal row content, got %d rows", rs.FinalRows)
	}
}

func TestNaturalJoinWithoutCommonAttributes(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"a"}, []any{1}, []any{2}),
		"s": MustRelation([]string{"b"}, []any{"x"}, []any{"y"}, []any{"z"}),
	}
	trace := mustEval(t, "r ⋈ s", rels)
	if trace.FinalRows != 6 || schemaString(trace.FinalSchema) != "a,b" {
		t.Errorf("Expected 6 rows over [a b], got %d over %v", trace.FinalRows, trace.FinalSchema)
	}
	if !strings.Contains(trace.Steps[2].Note, "Cartesian product") {
		t.Errorf("Expected a degenerate join note, got %q", trace.Steps[2].Note)
	}
}

func TestNaturalJoinMatchesNullOnlyWithNull(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"k", "v"}, []any{nil, 1}, []any{1, 2}),
		"s": MustRelation([]string{"k", "w"}, []any{nil, "n"}, []any{1.0, "one"}),
	}
	trace := mustEval(t, "r ⋈ s", rels)
	if got := previewJSON(t, trace.Preview); got != `[{"k":null,"v":1,"w":"n"},{"k":1,"v":2,"w":"one"}]` {
		t.Errorf("Unexpected rows %s", got)
	}
}

func TestSelection(t *testing.T) {
	rels := studentsDB()
	all := mustEval(t, "σ{1 = 1}(students)", rels)
	if all.FinalRows != 2 {
		t.Errorf("Expected all rows for 1 = 1, got %d", all.FinalRows)
	}

	_, err := EvaluateExpression("σ{gpa > 3}(students)", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeUnknownAttribute) {
		t.Errorf("Expected UnknownAttribute, got %v", err)
	}

	_, err = EvaluateExpression("σ{gpa > 3}(nothing)", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeUnknownAttribute) {
		t.Errorf("Expected UnknownAttribute on an empty relation, got %v", err)
	}

	trace := mustEval(t, "σ{id >= 2 or name = 'Ann' and not major = 'CS'}(students)", rels)
	if got := previewJSON(t, trace.Preview); got != `[{"id":2,"name":"Bo","major":"EE"}]` {
		t.Errorf("Unexpected rows %s", got)
	}
}

func TestSelectionNullAndTypeMismatchAreFalse(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"x"}, []any{1}, []any{nil}, []any{"a"}),
	}
	trace := mustEval(t, "σ{x != 1}(r)", rels)
	if trace.FinalRows != 0 {
		t.Errorf("Expected no rows, got %s", previewJSON(t, trace.Preview))
	}
	note := trace.Steps[1].Note
	if !strings.Contains(note, "NULL") || !strings.Contains(note, "warning") {
		t.Errorf("Expected NULL and type warnings, got %q", note)
	}

	trace = mustEval(t, "σ{not x = 1}(r)", rels)
	if trace.FinalRows != 2 {
		t.Errorf("Expected negation of false comparisons to keep 2 rows, got %d", trace.FinalRows)
	}
}

func TestSelectionOnBooleans(t *testing.T) {
	rels := map[string]*Relation{
		"flags": MustRelation([]string{"name", "active"}, []any{"a", true}, []any{"b", false}, []any{"c", nil}),
	}
	if tr := mustEval(t, "σ{active}(flags)", rels); tr.FinalRows != 1 {
		t.Errorf("Expected one active row, got %d", tr.FinalRows)
	}
	if tr := mustEval(t, "σ{active > false}(flags)", rels); tr.FinalRows != 1 {
		t.Errorf("Expected true > false, got %d rows", tr.FinalRows)
	}
	if tr := mustEval(t, "σ{active = null}(flags)", rels); tr.FinalRows != 0 {
		t.Errorf("Expected comparison with NULL to be false, got %d rows", tr.FinalRows)
	}
}

func TestRename(t *testing.T) {
	rels := studentsDB()
	trace := mustEval(t, "ρ{name->student, id->sid}(students)", rels)
	if schemaString(trace.FinalSchema) != "sid,student,major" {
		t.Errorf("Unexpected schema %v", trace.FinalSchema)
	}
	swap := mustEval(t, "ρ{id->major, major->id}(students)", rels)
	if schemaString(swap.FinalSchema) != "major,name,id" {
		t.Errorf("Expected simultaneous rename, got %v", swap.FinalSchema)
	}

	_, err := EvaluateExpression("ρ{gpa->score}(students)", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeUnknownAttribute) {
		t.Errorf("Expected UnknownAttribute, got %v", err)
	}
	_, err = EvaluateExpression("ρ{id->name}(students)", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeDuplicateAttribute) {
		t.Errorf("Expected DuplicateAttribute, got %v", err)
	}
}

func TestProductQualifiesCollidingNames(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"id", "name"}, []any{1, "a"}, []any{2, "b"}),
		"s": MustRelation([]string{"id", "title"}, []any{1, "x"}),
	}
	trace := mustEval(t, "r × s", rels)
	if schemaString(trace.FinalSchema) != "r.id,name,s.id,title" {
		t.Errorf("Unexpected schema %v", trace.FinalSchema)
	}
	if trace.FinalRows != 2 {
		t.Errorf("Expected 2 rows, got %d", trace.FinalRows)
	}

	renamed := mustEval(t, "r × ρ{id->id2, name->name2}(r)", rels)
	if renamed.FinalRows != 4 {
		t.Errorf("Expected 4 rows, got %d", renamed.FinalRows)
	}

	_, err := EvaluateExpression("σ{id = 1}(r × s)", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeAmbiguousAttribute) {
		t.Errorf("Expected AmbiguousAttribute, got %v", err)
	}
	ok := mustEval(t, "σ{r.id = s.id}(r × s)", rels)
	if ok.FinalRows != 1 {
		t.Errorf("Expected one matching pair, got %d", ok.FinalRows)
	}
	single := mustEval(t, "σ{title = 'x' and name = 'b'}(r × s)", rels)
	if single.FinalRows != 1 {
		t.Errorf("Expected unqualified unique names to resolve, got %d rows", single.FinalRows)
	}
}

func TestSelfProduct(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"x"}, []any{1}, []any{2}),
	}
	tests := []struct {
		expr   string
		schema string
		rows   int
	}{
		{"r × r", "left.x,right.x", 4},
		{"σ{x = 1}(r) × r", "left.x,right.x", 2},
		{"r ⋈{left.x < right.x} r", "left.x,right.x", 1},
		{"σ{left.x = right.x}(r × r)", "left.x,right.x", 2},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			trace := mustEval(t, tt.expr, rels)
			if schemaString(trace.FinalSchema) != tt.schema || trace.FinalRows != tt.rows {
				t.Errorf("Got %d rows over %v, want %d over %s",
					trace.FinalRows, trace.FinalSchema, tt.rows, tt.schema)
			}
		})
	}

	_, err := EvaluateExpression("σ{x = 1}(r × r)", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeAmbiguousAttribute) {
		t.Errorf("Expected AmbiguousAttribute, got %v", err)
	}
}

func TestQualifiedReferences(t *testing.T) {
	rels := map[string]*Relation{
		"r": MustRelation([]string{"id", "name"}, []any{1, "a"}, []any{2, "b"}),
		"s": MustRelation([]string{"id", "title"}, []any{1, "x"}),
	}
	tests := []struct {
		expr string
		rows int
	}{
		{"σ{r.id = 1}(r)", 1},
		{"σ{r.name = 'b'}(π{id, name}(r))", 1},
		{"σ{s.title = 'x'}(r × s)", 2},
		{"r ⋈{r.id = s.id and s.title = 'x'} s", 1},
	}
	for _, tt := range tests {
		if trace := mustEval(t, tt.expr, rels); trace.FinalRows != tt.rows {
			t.Errorf("%s: expected %d rows, got %d", tt.expr, tt.rows, trace.FinalRows)
		}
	}

	for _, expr := range []string{"σ{bogus.id = 1}(r)", "σ{q.title = 'x'}(r × s)"} {
		_, err := EvaluateExpression(expr, rels)
		if !rerrors.HasCode(err, rerrors.ErrCodeUnknownAttribute) {
			t.Errorf("%s: expected UnknownAttribute, got %v", expr, err)
		}
	}
}

func TestThetaJoin(t *testing.T) {
	rels := map[string]*Relation{
		"emp":  MustRelation([]string{"eid", "dept"}, []any{1, 10}, []any{2, 20}, []any{3, 10}),
		"dept": MustRelation([]string{"id", "dname"}, []any{10, "eng"}, []any{20, "ops"}),
	}
	trace := mustEval(t, "emp ⋈{dept = id} dept", rels)
	last := trace.Steps[len(trace.Steps)-1]
	if last.Op != OpThetaJoin {
		t.Errorf("Expected ⋈_θ step, got %s", last.Op)
	}
	if last.Detail == nil || last.Detail.Cond != "dept = id" {
		t.Errorf("Expected condition detail, got %+v", last.Detail)
	}
	if trace.FinalRows != 3 || schemaString(trace.FinalSchema) != "eid,dept,id,dname" {
		t.Errorf("Unexpected result %d rows over %v", trace.FinalRows, trace.FinalSchema)
	}
}

func TestDivision(t *testing.T) {
	rels := studentsDB()
	trace := mustEval(t, "enrolled ÷ required", rels)
	if schemaString(trace.FinalSchema) != "student" {
		t.Errorf("Expected schema [student], got %v", trace.FinalSchema)
	}
	if got := previewJSON(t, trace.Preview); got != `[{"student":"ann"},{"student":"cy"}]` {
		t.Errorf("Unexpected quotient %s", got)
	}

	// Every quotient tuple combined with every divisor tuple is in the dividend.
	enrolled, required := rels["enrolled"], rels["required"]
	res := trace.Result()
	for i := 0; i < res.Len(); i++ {
		for j := 0; j < required.Len(); j++ {
			combo := Tuple{res.Tuple(i)[0], required.Tuple(j)[0]}
			if !enrolled.Contains(combo) {
				t.Errorf("Missing %v in dividend", combo)
			}
		}
	}
}

func TestDivisionByEmptyDivisor(t *testing.T) {
	trace := mustEval(t, "enrolled ÷ nothing", studentsDB())
	if trace.FinalRows != 3 {
		t.Errorf("Expected every distinct student, got %d", trace.FinalRows)
	}
	if !strings.Contains(trace.Steps[2].Note, "divisor is empty") {
		t.Errorf("Expected an empty divisor note, got %q", trace.Steps[2].Note)
	}
}

func TestDivisionSchemaErrors(t *testing.T) {
	rels := studentsDB()
	_, err := EvaluateExpression("required ÷ enrolled", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeSchemaMismatch) {
		t.Errorf("Expected SchemaMismatch, got %v", err)
	}
	_, err = EvaluateExpression("required ÷ required", rels)
	if !rerrors.HasCode(err, rerrors.ErrCodeSchemaMismatch) {
		t.Errorf("Expected SchemaMismatch for an empty quotient, got %v", err)
	}
}

func TestUnknownRelationListsAvailable(t *testing.T) {
	trace, err := EvaluateExpression("π{name}(studnets)", studentsDB())
	if trace != nil {
		t.Error("Expected no trace")
	}
	e, ok := rerrors.As(err)
	if !ok || e.Code != rerrors.ErrCodeUnknownRelation {
		t.Fatalf("Expected UnknownRelation, got %v", err)
	}
	if !strings.Contains(e.Hint, "students") {
		t.Errorf("Expected hint to list relations, got %q", e.Hint)
	}
}

func TestEvaluatorReusesTree(t *testing.T) {
	node := mustParse(t, "π{name}(students ⋈ ρ{student->name}(enrolled))")
	store := NewMapStore(studentsDB())
	ev := NewEvaluator(store)
	first, err := ev.Evaluate(node, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	second, err := ev.Evaluate(node, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !first.Output.Equal(second.Output) {
		t.Error("Expected repeated evaluation to give the same result")
	}
	if store["students"].Len() != 2 {
		t.Error("Store was mutated")
	}
}

type foldCollator struct{}

func (foldCollator) Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func TestWithCollator(t *testing.T) {
	rels := studentsDB()
	if tr := mustEval(t, "σ{major = 'cs'}(students)", rels); tr.FinalRows != 0 {
		t.Errorf("Expected binary comparison to be case-sensitive, got %d rows", tr.FinalRows)
	}
	if tr := mustEval(t, "σ{major = 'cs'}(students)", rels, WithCollator(foldCollator{})); tr.FinalRows != 1 {
		t.Errorf("Expected folded comparison to match, got %d rows", tr.FinalRows)
	}
}
