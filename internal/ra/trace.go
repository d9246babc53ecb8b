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

// Delta describes how a step's output differs from its first operand.
// Row samples are present only when both share the same attribute set.
type Delta struct {
	RowsBefore        int      `json:"rows_before"`
	RowsAfter         int      `json:"rows_after"`
	AttributesAdded   []string `json:"attributes_added,omitempty"`
	AttributesRemoved []string `json:"attributes_removed,omitempty"`
	RemovedRows       []Row    `json:"removed_rows,omitempty"`
	AddedRows         []Row    `json:"added_rows,omitempty"`
}

// Step records one operator application.
type Step struct {
	Op           string     `json:"op"`
	Detail       *Detail    `json:"detail,omitempty"`
	InputSchema  [][]string `json:"input_schema,omitempty"`
	OutputSchema []string   `json:"output_schema"`
	Rows         int        `json:"rows"`
	Preview      []Row      `json:"preview"`
	Delta        *Delta     `json:"delta,omitempty"`
	Note         string     `json:"note,omitempty"`
}

// Trace is the full record of one evaluation.
type Trace struct {
	Expression  string   `json:"expression"`
	Database    string   `json:"database,omitempty"`
	Steps       []Step   `json:"steps"`
	FinalSchema []string `json:"final_schema"`
	FinalRows   int      `json:"final_rows"`
	Preview     []Row    `json:"preview"`

	result *Relation
}

// Result returns the complete root relation. It is nil for traces that
// were decoded rather than produced by Run.
func (t *Trace) Result() *Relation {
	return t.result
}
