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

// Package grading compares a student's result relation with the result of
// an exercise's reference solution.
package grading

import (
	"raedu/internal/ra"
)

// Diff is the outcome of a comparison. Schemas compare as attribute sets;
// rows compare as sets aligned by attribute name. MissingRows are in the
// solution but not the student result, ExtraRows the reverse. Both are
// empty when the schemas differ.
type Diff struct {
	Matches        bool     `json:"matches"`
	SchemaEqual    bool     `json:"schema_equal"`
	StudentSchema  []string `json:"student_schema"`
	SolutionSchema []string `json:"solution_schema"`
	MissingRows    []ra.Row `json:"missing_rows"`
	ExtraRows      []ra.Row `json:"extra_rows"`
}

// Compare compares student with solution.
func Compare(student, solution *ra.Relation) Diff {
	d := Diff{
		StudentSchema:  student.Schema(),
		SolutionSchema: solution.Schema(),
		MissingRows:    []ra.Row{},
		ExtraRows:      []ra.Row{},
	}
	aligned, err := student.Reorder(solution.Schema())
	if err != nil {
		return d
	}
	d.SchemaEqual = true

	d.MissingRows = difference(solution, aligned)
	d.ExtraRows = difference(aligned, solution)
	d.Matches = len(d.MissingRows) == 0 && len(d.ExtraRows) == 0
	return d
}

// difference returns the rows of a absent from b in sorted order.
// a and b share a schema.
func difference(a, b *ra.Relation) []ra.Row {
	out := []ra.Row{}
	for _, row := range a.SortedRows() {
		if !b.Contains(ra.Tuple(row.Values())) {
			out = append(out, row)
		}
	}
	return out
}
