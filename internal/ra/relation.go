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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	rerrors "raedu/internal/errors"
)

// NormalizeName is the canonical form of relation and attribute names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Tuple is a row stored positionally, aligned with its relation's schema.
type Tuple []Value

func (t Tuple) key() string {
	var enc []byte
	for _, v := range t {
		enc = v.appendKey(enc)
	}
	return string(enc)
}

// Relation is an immutable set of tuples over an ordered schema.
// Duplicate tuples are removed when the relation is built.
type Relation struct {
	schema []string
	index  map[string]int
	tuples []Tuple
	keys   map[string]struct{}
}

// newRelation returns an empty relation. The schema must already be
// normalized and unique.
func newRelation(schema []string) *Relation {
	idx := make(map[string]int, len(schema))
	for i, a := range schema {
		idx[a] = i
	}
	return &Relation{
		schema: schema,
		index:  idx,
		keys:   make(map[string]struct{}),
	}
}

// add appends t unless an equal tuple is already present.
func (r *Relation) add(t Tuple) bool {
	k := t.key()
	if _, dup := r.keys[k]; dup {
		return false
	}
	r.keys[k] = struct{}{}
	r.tuples = append(r.tuples, t)
	return true
}

func normalizeSchema(attrs []string) ([]string, error) {
	schema := make([]string, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for i, a := range attrs {
		n := NormalizeName(a)
		if n == "" {
			return nil, rerrors.InvalidValue("schema", fmt.Sprintf("attribute %d has an empty name", i+1))
		}
		if seen[n] {
			return nil, rerrors.DuplicateAttribute(n)
		}
		seen[n] = true
		schema[i] = n
	}
	return schema, nil
}

// NewRelation builds a relation from rows keyed by attribute name.
// Names are lower-cased, every row must carry exactly the schema's
// attributes, and duplicate rows are dropped.
func NewRelation(attrs []string, rows []map[string]any) (*Relation, error) {
	schema, err := normalizeSchema(attrs)
	if err != nil {
		return nil, err
	}
	r := newRelation(schema)
	for i, row := range rows {
		if len(row) != len(schema) {
			return nil, rowShapeError(i, schema, row)
		}
		t := make(Tuple, len(schema))
		filled := make([]bool, len(schema))
		for k, x := range row {
			pos, ok := r.index[NormalizeName(k)]
			if !ok || filled[pos] {
				return nil, rowShapeError(i, schema, row)
			}
			filled[pos] = true
			v, err := ValueOf(x)
			if err != nil {
				return nil, rerrors.InvalidValue(fmt.Sprintf("row %d attribute %s", i+1, k), err.Error())
			}
			t[pos] = v
		}
		r.add(t)
	}
	return r, nil
}

// NewRelationFromTuples builds a relation from positional rows.
func NewRelationFromTuples(attrs []string, rows [][]any) (*Relation, error) {
	schema, err := normalizeSchema(attrs)
	if err != nil {
		return nil, err
	}
	r := newRelation(schema)
	for i, row := range rows {
		if len(row) != len(schema) {
			return nil, rerrors.SchemaMismatch("row", schema, []string{fmt.Sprintf("%d values in row %d", len(row), i+1)})
		}
		t := make(Tuple, len(row))
		for j, x := range row {
			v, err := ValueOf(x)
			if err != nil {
				return nil, rerrors.InvalidValue(fmt.Sprintf("row %d attribute %s", i+1, schema[j]), err.Error())
			}
			t[j] = v
		}
		r.add(t)
	}
	return r, nil
}

// MustRelation is NewRelationFromTuples for fixtures; it panics on error.
func MustRelation(attrs []string, rows ...[]any) *Relation {
	r, err := NewRelationFromTuples(attrs, rows)
	if err != nil {
		panic(err)
	}
	return r
}

func rowShapeError(i int, schema []string, row map[string]any) error {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, NormalizeName(k))
	}
	sort.Strings(keys)
	return rerrors.SchemaMismatch(fmt.Sprintf("row %d", i+1), schema, keys)
}

// Schema returns a copy of the attribute names in order.
func (r *Relation) Schema() []string {
	return append([]string(nil), r.schema...)
}

// Degree is the number of attributes.
func (r *Relation) Degree() int { return len(r.schema) }

// Len is the number of tuples.
func (r *Relation) Len() int { return len(r.tuples) }

// Has reports whether attr is in the schema.
func (r *Relation) Has(attr string) bool {
	_, ok := r.index[attr]
	return ok
}

// Tuple returns the i-th tuple in insertion order.
func (r *Relation) Tuple(i int) Tuple { return r.tuples[i] }

// Contains reports whether an equal tuple is present.
func (r *Relation) Contains(t Tuple) bool {
	_, ok := r.keys[t.key()]
	return ok
}

// Row returns the i-th tuple bound to the schema.
func (r *Relation) Row(i int) Row {
	return Row{schema: r.schema, values: r.tuples[i]}
}

// Rows returns up to limit rows in insertion order; limit < 0 means all.
func (r *Relation) Rows(limit int) []Row {
	n := len(r.tuples)
	if limit >= 0 && limit < n {
		n = limit
	}
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = r.Row(i)
	}
	return rows
}

// SortedRows returns every row ordered by value, giving a stable
// presentation independent of evaluation order.
func (r *Relation) SortedRows() []Row {
	type keyed struct {
		k string
		t Tuple
	}
	ks := make([]keyed, len(r.tuples))
	for i, t := range r.tuples {
		ks[i] = keyed{t.key(), t}
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].k < ks[j].k })
	rows := make([]Row, len(ks))
	for i, k := range ks {
		rows[i] = Row{schema: r.schema, values: k.t}
	}
	return rows
}

// Reorder returns r with its columns rearranged into schema, which must
// name the same attribute set.
func (r *Relation) Reorder(schema []string) (*Relation, error) {
	if !sameAttributeSet(r.schema, schema) {
		return nil, rerrors.SchemaMismatch("reorder", r.schema, schema)
	}
	pos := r.positions(schema)
	out := newRelation(append([]string(nil), schema...))
	for _, t := range r.tuples {
		out.add(t.pick(pos))
	}
	return out, nil
}

// Equal reports whether both relations hold the same attribute set and
// the same tuples, ignoring column and row order.
func (r *Relation) Equal(o *Relation) bool {
	if r.Len() != o.Len() {
		return false
	}
	aligned, err := o.Reorder(r.schema)
	if err != nil {
		return false
	}
	for _, t := range r.tuples {
		if !aligned.Contains(t) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the relation as {"schema": [...], "rows": [...]}.
func (r *Relation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Schema []string `json:"schema"`
		Rows   []Row    `json:"rows"`
	}{r.schema, r.Rows(-1)})
}

func (r *Relation) positions(attrs []string) []int {
	pos := make([]int, len(attrs))
	for i, a := range attrs {
		pos[i] = r.index[a]
	}
	return pos
}

func (t Tuple) pick(pos []int) Tuple {
	out := make(Tuple, len(pos))
	for i, p := range pos {
		out[i] = t[p]
	}
	return out
}

func sameAttributeSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if !set[x] {
			return false
		}
	}
	return true
}

// Row is a tuple bound to its schema. It serializes as a JSON object
// whose keys follow schema order.
type Row struct {
	schema []string
	values Tuple
}

// Schema returns the row's attribute names.
func (r Row) Schema() []string { return r.schema }

// Values returns the row's values in schema order.
func (r Row) Values() []Value { return r.values }

// Get returns the value of attr.
func (r Row) Get(attr string) (Value, bool) {
	for i, a := range r.schema {
		if a == attr {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Map returns the row as attribute name to Go scalar.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.schema))
	for i, a := range r.schema {
		m[a] = r.values[i].Interface()
	}
	return m
}

func (r Row) String() string {
	parts := make([]string, len(r.schema))
	for i, a := range r.schema {
		parts[i] = a + "=" + r.values[i].Literal()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// MarshalJSON encodes the row as an object in schema order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range r.schema {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		v, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RelationStore supplies named base relations. Evaluation only reads it.
type RelationStore interface {
	Relation(name string) (*Relation, bool)
	Names() []string
}

// MapStore is an in-memory RelationStore keyed by normalized name.
type MapStore map[string]*Relation

// NewMapStore copies rels into a MapStore, normalizing the names.
func NewMapStore(rels map[string]*Relation) MapStore {
	m := make(MapStore, len(rels))
	for name, r := range rels {
		m[NormalizeName(name)] = r
	}
	return m
}

// Relation returns the relation registered under name.
func (m MapStore) Relation(name string) (*Relation, bool) {
	r, ok := m[NormalizeName(name)]
	return r, ok
}

// Names returns the registered names in sorted order.
func (m MapStore) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
