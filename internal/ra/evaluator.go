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
Evaluator Overview:
===================

The Evaluator executes an AST against a RelationStore. It evaluates
operands first (post-order) and then applies the operator, so a parent
always sees fully materialized inputs. Each node yields a NodeResult
carrying its inputs, its full output and any notes. The evaluator
never truncates; previews are the Stepper's job.

Operator Semantics:
===================

	rel   schema and rows of the named relation
	π     listed attributes in the given order, duplicates removed
	σ     rows where the condition holds, schema unchanged
	ρ     attributes renamed in place, rows unchanged
	⋈     equality on shared names; product when none are shared
	⋈_θ   σ{cond}(L × R)
	×     all pairs; colliding names qualified with the operand alias
	∪ − ∩ set operations on operands with the same attribute set,
	      output in the left operand's attribute order
	÷     left tuples over (left − right) attributes paired with
	      every right tuple

A failing operator aborts evaluation; no operator is applied partially.
*/
package ra

import (
	"fmt"
	"strings"

	rerrors "raedu/internal/errors"
)

// Detail holds an operator's parameters as recorded in a trace step.
type Detail struct {
	Relation      string      `json:"relation,omitempty"`
	Attrs         []string    `json:"attrs,omitempty"`
	Cond          string      `json:"cond,omitempty"`
	Renames       [][2]string `json:"renames,omitempty"`
	OnCommon      []string    `json:"on_common,omitempty"`
	Qualified     []string    `json:"qualified,omitempty"`
	QuotientAttrs []string    `json:"quotient_attrs,omitempty"`
	DivisorAttrs  []string    `json:"divisor_attrs,omitempty"`
}

func (d *Detail) String() string {
	if d == nil {
		return ""
	}
	var parts []string
	if d.Relation != "" {
		parts = append(parts, d.Relation)
	}
	if len(d.Attrs) > 0 {
		parts = append(parts, "attrs: "+strings.Join(d.Attrs, ", "))
	}
	if d.Cond != "" {
		parts = append(parts, "cond: "+d.Cond)
	}
	if len(d.Renames) > 0 {
		rs := make([]string, len(d.Renames))
		for i, r := range d.Renames {
			rs[i] = r[0] + "->" + r[1]
		}
		parts = append(parts, "renames: "+strings.Join(rs, ", "))
	}
	if len(d.OnCommon) > 0 {
		parts = append(parts, "on: "+strings.Join(d.OnCommon, ", "))
	}
	if len(d.Qualified) > 0 {
		parts = append(parts, "qualified: "+strings.Join(d.Qualified, ", "))
	}
	if len(d.QuotientAttrs) > 0 {
		parts = append(parts, "quotient: "+strings.Join(d.QuotientAttrs, ", "))
	}
	if len(d.DivisorAttrs) > 0 {
		parts = append(parts, "divisor: "+strings.Join(d.DivisorAttrs, ", "))
	}
	return strings.Join(parts, "; ")
}

// NodeResult is the outcome of evaluating one AST node.
type NodeResult struct {
	Node   Node
	Op     string
	Detail *Detail
	Inputs []*Relation
	Output *Relation
	Notes  []string
}

// Option configures evaluation and tracing.
type Option func(*options)

type options struct {
	collator     Collator
	previewLimit int
}

// DefaultPreviewLimit is the number of rows kept in step and final previews.
const DefaultPreviewLimit = 10

func defaultOptions() options {
	return options{collator: BinaryCollator, previewLimit: DefaultPreviewLimit}
}

// WithCollator sets the string ordering used by comparisons.
func WithCollator(c Collator) Option {
	return func(o *options) {
		if c != nil {
			o.collator = c
		}
	}
}

// WithPreviewLimit sets how many rows each preview keeps. Values below
// zero are ignored.
func WithPreviewLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.previewLimit = n
		}
	}
}

// Evaluator executes expressions against a read-only RelationStore.
// It holds no per-evaluation state and may be reused.
type Evaluator struct {
	store    RelationStore
	collator Collator
}

// NewEvaluator creates an evaluator over store.
func NewEvaluator(store RelationStore, opts ...Option) *Evaluator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Evaluator{store: store, collator: o.collator}
}

// Evaluate executes n and returns the root's result. onStep, if not nil,
// is called once per node in evaluation order, operands first.
func (e *Evaluator) Evaluate(n Node, onStep func(NodeResult)) (NodeResult, error) {
	var inputs []*Relation
	for _, child := range Children(n) {
		res, err := e.Evaluate(child, onStep)
		if err != nil {
			return NodeResult{}, err
		}
		inputs = append(inputs, res.Output)
	}

	res, err := e.apply(n, inputs)
	if err != nil {
		return NodeResult{}, err
	}
	res.Node = n
	res.Op = OpSymbol(n)
	res.Inputs = inputs
	res.Notes = append(emptyOperandNotes(inputs), res.Notes...)
	if onStep != nil {
		onStep(res)
	}
	return res, nil
}

func emptyOperandNotes(inputs []*Relation) []string {
	var notes []string
	for i, in := range inputs {
		if in.Len() > 0 {
			continue
		}
		switch {
		case len(inputs) == 1:
			notes = append(notes, "operand is empty")
		case i == 0:
			notes = append(notes, "left operand is empty")
		default:
			notes = append(notes, "right operand is empty")
		}
	}
	return notes
}

func (e *Evaluator) apply(n Node, in []*Relation) (NodeResult, error) {
	switch n := n.(type) {
	case *RelationRef:
		return e.relation(n)
	case *Projection:
		return project(n, in[0])
	case *Selection:
		return e.selection(n, in[0])
	case *Rename:
		return rename(n, in[0])
	case *NaturalJoin:
		return naturalJoin(in[0], in[1])
	case *ThetaJoin:
		return e.thetaJoin(n, in[0], in[1])
	case *Product:
		lalias, ralias := productAliases(n.Left, n.Right)
		out, qualified, err := product(in[0], in[1], lalias, ralias)
		if err != nil {
			return NodeResult{}, err
		}
		res := NodeResult{Output: out}
		if len(qualified) > 0 {
			res.Detail = &Detail{Qualified: qualified}
		}
		return res, nil
	case *Union:
		return setOp(OpUnion, in[0], in[1])
	case *Difference:
		return setOp(OpDifference, in[0], in[1])
	case *Intersection:
		return setOp(OpIntersection, in[0], in[1])
	case *Division:
		return divide(in[0], in[1])
	}
	return NodeResult{}, rerrors.NewSemanticError(fmt.Sprintf("unsupported node %T", n))
}

func (e *Evaluator) relation(n *RelationRef) (NodeResult, error) {
	rel, ok := e.store.Relation(n.Name)
	if !ok {
		return NodeResult{}, rerrors.UnknownRelation(n.Name, e.store.Names())
	}
	res := NodeResult{Output: rel, Detail: &Detail{Relation: n.Name}}
	if rel.Len() == 0 {
		res.Notes = []string{fmt.Sprintf("relation %s is empty", n.Name)}
	}
	return res, nil
}

func project(n *Projection, in *Relation) (NodeResult, error) {
	for _, a := range n.Attrs {
		if !in.Has(a) {
			return NodeResult{}, rerrors.UnknownAttribute(a, in.schema)
		}
	}
	pos := in.positions(n.Attrs)
	out := newRelation(append([]string(nil), n.Attrs...))
	for _, t := range in.tuples {
		out.add(t.pick(pos))
	}
	res := NodeResult{Output: out, Detail: &Detail{Attrs: n.Attrs}}
	if dropped := in.Len() - out.Len(); dropped > 0 {
		res.Notes = []string{fmt.Sprintf("projection removed %d duplicate row(s)", dropped)}
	}
	return res, nil
}

func (e *Evaluator) selection(n *Selection, in *Relation) (NodeResult, error) {
	out, notes, err := e.filter(n.Cond, in, aliasOf(n.Input, ""))
	if err != nil {
		return NodeResult{}, err
	}
	return NodeResult{Output: out, Detail: &Detail{Cond: n.Cond.String()}, Notes: notes}, nil
}

func (e *Evaluator) filter(cond Condition, in *Relation, aliases ...string) (*Relation, []string, error) {
	var stats compareStats
	pred, err := compileCondition(cond, in.schema, aliases, e.collator, &stats)
	if err != nil {
		return nil, nil, err
	}
	out := newRelation(in.schema)
	for _, t := range in.tuples {
		if pred(t) {
			out.add(t)
		}
	}
	return out, stats.notes(), nil
}

func rename(n *Rename, in *Relation) (NodeResult, error) {
	schema := in.Schema()
	renames := make([][2]string, len(n.Pairs))
	for i, p := range n.Pairs {
		pos, ok := in.index[p.Old]
		if !ok {
			return NodeResult{}, rerrors.UnknownAttribute(p.Old, in.schema)
		}
		schema[pos] = p.New
		renames[i] = [2]string{p.Old, p.New}
	}
	seen := make(map[string]bool, len(schema))
	for _, a := range schema {
		if seen[a] {
			return NodeResult{}, rerrors.DuplicateAttribute(a).
				WithDetail(fmt.Sprintf("renaming produces (%s)", strings.Join(schema, ", ")))
		}
		seen[a] = true
	}
	return NodeResult{Output: in.withSchema(schema), Detail: &Detail{Renames: renames}}, nil
}

// withSchema shares r's tuples under new attribute names.
func (r *Relation) withSchema(schema []string) *Relation {
	out := newRelation(schema)
	out.tuples = r.tuples
	out.keys = r.keys
	return out
}

func naturalJoin(left, right *Relation) (NodeResult, error) {
	var common []string
	for _, a := range left.schema {
		if right.Has(a) {
			common = append(common, a)
		}
	}
	if len(common) == 0 {
		out, _, err := product(left, right, "left", "right")
		if err != nil {
			return NodeResult{}, err
		}
		return NodeResult{
			Output: out,
			Notes:  []string{"no common attributes; natural join computed the Cartesian product"},
		}, nil
	}

	var extra []string
	for _, a := range right.schema {
		if !left.Has(a) {
			extra = append(extra, a)
		}
	}
	schema := append(append([]string(nil), left.schema...), extra...)
	lpos := left.positions(common)
	rpos := right.positions(common)
	xpos := right.positions(extra)

	buckets := make(map[string][]Tuple)
	for _, t := range right.tuples {
		k := t.pick(rpos).key()
		buckets[k] = append(buckets[k], t)
	}
	out := newRelation(schema)
	for _, lt := range left.tuples {
		for _, rt := range buckets[lt.pick(lpos).key()] {
			joined := make(Tuple, 0, len(schema))
			joined = append(joined, lt...)
			joined = append(joined, rt.pick(xpos)...)
			out.add(joined)
		}
	}
	return NodeResult{Output: out, Detail: &Detail{OnCommon: common}}, nil
}

func (e *Evaluator) thetaJoin(n *ThetaJoin, left, right *Relation) (NodeResult, error) {
	lalias, ralias := productAliases(n.Left, n.Right)
	prod, qualified, err := product(left, right, lalias, ralias)
	if err != nil {
		return NodeResult{}, err
	}
	out, notes, err := e.filter(n.Cond, prod, lalias, ralias)
	if err != nil {
		return NodeResult{}, err
	}
	return NodeResult{
		Output: out,
		Detail: &Detail{Cond: n.Cond.String(), Qualified: qualified},
		Notes:  notes,
	}, nil
}

// aliasOf names an operand for qualifying product attributes: the base
// relation reached through unary operators, or fallback.
func aliasOf(n Node, fallback string) string {
	for {
		switch v := n.(type) {
		case *RelationRef:
			return v.Name
		case *Projection:
			n = v.Input
		case *Selection:
			n = v.Input
		case *Rename:
			n = v.Input
		default:
			return fallback
		}
	}
}

// productAliases picks the qualifiers of a product's operands. Operands
// over the same relation, as in r × r, are told apart as left and right.
func productAliases(l, r Node) (string, string) {
	lalias, ralias := aliasOf(l, "left"), aliasOf(r, "right")
	if lalias == ralias {
		return "left", "right"
	}
	return lalias, ralias
}

// product concatenates every pair of tuples. Only names present on both
// sides are qualified, as alias.attr.
func product(left, right *Relation, lalias, ralias string) (*Relation, []string, error) {
	schema := make([]string, 0, len(left.schema)+len(right.schema))
	var qualified []string
	for _, a := range left.schema {
		if right.Has(a) {
			a = lalias + "." + a
			qualified = append(qualified, a)
		}
		schema = append(schema, a)
	}
	for _, a := range right.schema {
		if left.Has(a) {
			a = ralias + "." + a
			qualified = append(qualified, a)
		}
		schema = append(schema, a)
	}
	seen := make(map[string]bool, len(schema))
	for _, a := range schema {
		if seen[a] {
			return nil, nil, rerrors.DuplicateAttribute(a).
				WithDetail("qualified names of the product operands collide").
				WithHint("Rename the attributes of one operand with ρ")
		}
		seen[a] = true
	}

	out := newRelation(schema)
	for _, lt := range left.tuples {
		for _, rt := range right.tuples {
			t := make(Tuple, 0, len(schema))
			t = append(t, lt...)
			t = append(t, rt...)
			out.add(t)
		}
	}
	return out, qualified, nil
}

func setOp(op string, left, right *Relation) (NodeResult, error) {
	if !sameAttributeSet(left.schema, right.schema) {
		return NodeResult{}, rerrors.SchemaMismatch(op, left.schema, right.schema).
			WithHint("Union, difference and intersection need operands with the same attributes")
	}
	aligned, err := right.Reorder(left.schema)
	if err != nil {
		return NodeResult{}, err
	}
	out := newRelation(left.schema)
	switch op {
	case OpUnion:
		for _, t := range left.tuples {
			out.add(t)
		}
		for _, t := range aligned.tuples {
			out.add(t)
		}
	case OpDifference:
		for _, t := range left.tuples {
			if !aligned.Contains(t) {
				out.add(t)
			}
		}
	case OpIntersection:
		for _, t := range left.tuples {
			if aligned.Contains(t) {
				out.add(t)
			}
		}
	}
	return NodeResult{Output: out}, nil
}

func divide(left, right *Relation) (NodeResult, error) {
	for _, a := range right.schema {
		if !left.Has(a) {
			return NodeResult{}, rerrors.SchemaMismatch(OpDivision, left.schema, right.schema).
				WithDetail(fmt.Sprintf("divisor attribute %s is not in the dividend", a))
		}
	}
	var quotient []string
	for _, a := range left.schema {
		if !right.Has(a) {
			quotient = append(quotient, a)
		}
	}
	if len(quotient) == 0 {
		return NodeResult{}, rerrors.SchemaMismatch(OpDivision, left.schema, right.schema).
			WithDetail("the quotient would have no attributes")
	}

	detail := &Detail{QuotientAttrs: quotient, DivisorAttrs: right.Schema()}
	qpos := left.positions(quotient)
	dpos := left.positions(right.schema)
	out := newRelation(quotient)

	if right.Len() == 0 {
		for _, t := range left.tuples {
			out.add(t.pick(qpos))
		}
		return NodeResult{
			Output: out,
			Detail: detail,
			Notes:  []string{"divisor is empty; every quotient tuple qualifies vacuously"},
		}, nil
	}

	var order []Tuple
	covered := make(map[string]map[string]bool)
	for _, t := range left.tuples {
		q := t.pick(qpos)
		d := t.pick(dpos)
		if !right.Contains(d) {
			continue
		}
		qk := q.key()
		set, ok := covered[qk]
		if !ok {
			set = make(map[string]bool)
			covered[qk] = set
			order = append(order, q)
		}
		set[d.key()] = true
	}
	for _, q := range order {
		if len(covered[q.key()]) == right.Len() {
			out.add(q)
		}
	}
	return NodeResult{Output: out, Detail: detail}, nil
}
