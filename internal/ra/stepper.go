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
Stepper Overview:
=================

The Stepper drives the Evaluator and turns each NodeResult into a Step:
operator symbol, parameters, input and output schemas, the true row
count, a preview of the first rows and a delta against the first
operand. It is the only component that truncates rows.

	trace, err := ra.EvaluateExpression("a ⋈ b", map[string]*ra.Relation{
	    "a": ra.MustRelation([]string{"x", "y"}, []any{1, 2}),
	    "b": ra.MustRelation([]string{"y", "z"}, []any{2, 3}),
	})

Steps appear in evaluation order: rel a, rel b, ⋈. Any error aborts the
run and no trace is returned. Preview size bounds the output, not the
cost of evaluation; callers with untrusted input bound that themselves.
*/
package ra

import (
	"strings"
)

// Run evaluates node over store and records every step.
func Run(node Node, store RelationStore, opts ...Option) (*Trace, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ev := NewEvaluator(store, WithCollator(o.collator))

	var steps []Step
	root, err := ev.Evaluate(node, func(res NodeResult) {
		steps = append(steps, makeStep(res, o.previewLimit))
	})
	if err != nil {
		return nil, err
	}

	out := root.Output
	return &Trace{
		Expression:  node.String(),
		Steps:       steps,
		FinalSchema: out.Schema(),
		FinalRows:   out.Len(),
		Preview:     out.Rows(o.previewLimit),
		result:      out,
	}, nil
}

// EvaluateExpression parses expression and runs it over relations.
// Relation names are normalized, so callers need not lower-case them.
func EvaluateExpression(expression string, relations map[string]*Relation, opts ...Option) (*Trace, error) {
	node, err := Parse(expression)
	if err != nil {
		return nil, err
	}
	trace, err := Run(node, NewMapStore(relations), opts...)
	if err != nil {
		return nil, err
	}
	trace.Expression = expression
	return trace, nil
}

func makeStep(res NodeResult, limit int) Step {
	step := Step{
		Op:           res.Op,
		Detail:       res.Detail,
		OutputSchema: res.Output.Schema(),
		Rows:         res.Output.Len(),
		Preview:      res.Output.Rows(limit),
		Note:         strings.Join(res.Notes, "; "),
	}
	for _, in := range res.Inputs {
		step.InputSchema = append(step.InputSchema, in.Schema())
	}
	if len(res.Inputs) > 0 {
		step.Delta = computeDelta(res.Inputs[0], res.Output, limit)
	}
	return step
}

func computeDelta(before, after *Relation, limit int) *Delta {
	d := &Delta{RowsBefore: before.Len(), RowsAfter: after.Len()}
	for _, a := range after.schema {
		if !before.Has(a) {
			d.AttributesAdded = append(d.AttributesAdded, a)
		}
	}
	for _, a := range before.schema {
		if !after.Has(a) {
			d.AttributesRemoved = append(d.AttributesRemoved, a)
		}
	}
	if !sameAttributeSet(before.schema, after.schema) {
		return d
	}
	aligned, err := before.Reorder(after.schema)
	if err != nil {
		return d
	}
	d.RemovedRows = sampleMissing(aligned, after, limit)
	d.AddedRows = sampleMissing(after, aligned, limit)
	return d
}

// sampleMissing returns up to limit rows of from that are absent in other.
func sampleMissing(from, other *Relation, limit int) []Row {
	var rows []Row
	for i, t := range from.tuples {
		if limit >= 0 && len(rows) >= limit {
			break
		}
		if !other.Contains(t) {
			rows = append(rows, from.Row(i))
		}
	}
	return rows
}
