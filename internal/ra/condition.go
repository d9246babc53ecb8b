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
	"fmt"
	"sort"
	"strings"

	rerrors "raedu/internal/errors"
)

// Collator orders strings inside comparisons.
type Collator interface {
	Compare(a, b string) int
}

type binaryCollator struct{}

func (binaryCollator) Compare(a, b string) int { return strings.Compare(a, b) }

// BinaryCollator compares strings byte by byte.
var BinaryCollator Collator = binaryCollator{}

// resolveAttribute finds the schema position a condition name refers to.
// aliases are the relation names the condition's input is known by.
//
// Resolution order:
//  1. exact match
//  2. a qualified name "q.a" falls back to the unqualified "a" when q is
//     one of aliases or qualifies some attribute of schema
//  3. an unqualified "a" matches the single qualified "*.a"
func resolveAttribute(name string, schema, aliases []string) (int, error) {
	for i, a := range schema {
		if a == name {
			return i, nil
		}
	}
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		if !knownQualifier(name[:dot], schema, aliases) {
			return -1, rerrors.UnknownAttribute(name, schema)
		}
		base := name[dot+1:]
		for i, a := range schema {
			if a == base {
				return i, nil
			}
		}
		return -1, rerrors.UnknownAttribute(name, schema)
	}
	var matches []int
	for i, a := range schema {
		if strings.HasSuffix(a, "."+name) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return -1, rerrors.UnknownAttribute(name, schema)
	case 1:
		return matches[0], nil
	}
	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = schema[m]
	}
	return -1, rerrors.AmbiguousAttribute(name, candidates)
}

func knownQualifier(q string, schema, aliases []string) bool {
	for _, a := range aliases {
		if a == q {
			return true
		}
	}
	for _, a := range schema {
		if strings.HasPrefix(a, q+".") {
			return true
		}
	}
	return false
}

// compareStats counts comparisons that were forced to false.
type compareStats struct {
	nulls      int
	mismatched int
	kinds      map[string]bool
}

func (s *compareStats) notes() []string {
	var notes []string
	if s.nulls > 0 {
		notes = append(notes, fmt.Sprintf("%d comparison(s) involved NULL and evaluated to false", s.nulls))
	}
	if s.mismatched > 0 {
		pairs := make([]string, 0, len(s.kinds))
		for k := range s.kinds {
			pairs = append(pairs, k)
		}
		sort.Strings(pairs)
		notes = append(notes, fmt.Sprintf("warning: %d comparison(s) between incompatible types (%s) evaluated to false",
			s.mismatched, strings.Join(pairs, ", ")))
	}
	return notes
}

// predicate reports whether a tuple satisfies a compiled condition.
type predicate func(t Tuple) bool

type compiler struct {
	schema   []string
	aliases  []string
	collator Collator
	stats    *compareStats
}

// compileCondition resolves every attribute reference against schema and
// returns the predicate. Unknown attributes fail here, before any row is
// examined.
func compileCondition(c Condition, schema, aliases []string, coll Collator, stats *compareStats) (predicate, error) {
	comp := &compiler{schema: schema, aliases: aliases, collator: coll, stats: stats}
	return comp.compile(c)
}

func (c *compiler) compile(cond Condition) (predicate, error) {
	switch cond := cond.(type) {
	case *Comparison:
		left, err := c.operand(cond.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.operand(cond.Right)
		if err != nil {
			return nil, err
		}
		op := cond.Op
		return func(t Tuple) bool {
			return c.compare(left(t), op, right(t))
		}, nil
	case *Truth:
		val, err := c.operand(cond.Operand)
		if err != nil {
			return nil, err
		}
		return func(t Tuple) bool {
			b, ok := val(t).Bool()
			return ok && b
		}, nil
	case *And:
		l, r, err := c.pair(cond.Left, cond.Right)
		if err != nil {
			return nil, err
		}
		return func(t Tuple) bool { return l(t) && r(t) }, nil
	case *Or:
		l, r, err := c.pair(cond.Left, cond.Right)
		if err != nil {
			return nil, err
		}
		return func(t Tuple) bool { return l(t) || r(t) }, nil
	case *Not:
		inner, err := c.compile(cond.Cond)
		if err != nil {
			return nil, err
		}
		return func(t Tuple) bool { return !inner(t) }, nil
	}
	return nil, rerrors.NewSemanticError(fmt.Sprintf("unsupported condition %T", cond))
}

func (c *compiler) pair(a, b Condition) (predicate, predicate, error) {
	l, err := c.compile(a)
	if err != nil {
		return nil, nil, err
	}
	r, err := c.compile(b)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (c *compiler) operand(o Operand) (func(Tuple) Value, error) {
	switch o := o.(type) {
	case *Literal:
		v := o.Value
		return func(Tuple) Value { return v }, nil
	case *AttrRef:
		pos, err := resolveAttribute(o.Name, c.schema, c.aliases)
		if err != nil {
			return nil, err
		}
		return func(t Tuple) Value { return t[pos] }, nil
	}
	return nil, rerrors.NewSemanticError(fmt.Sprintf("unsupported operand %T", o))
}

// compare applies op. NULL operands and operands of different kinds
// make every operator false, != included.
func (c *compiler) compare(a Value, op CompareOp, b Value) bool {
	if a.IsNull() || b.IsNull() {
		c.stats.nulls++
		return false
	}
	if a.kind != b.kind {
		c.stats.mismatched++
		if c.stats.kinds == nil {
			c.stats.kinds = make(map[string]bool)
		}
		k1, k2 := a.kind.String(), b.kind.String()
		if k1 > k2 {
			k1, k2 = k2, k1
		}
		c.stats.kinds[k1+" vs "+k2] = true
		return false
	}
	var cmp int
	switch a.kind {
	case KindNumber:
		switch {
		case a.n < b.n:
			cmp = -1
		case a.n > b.n:
			cmp = 1
		}
	case KindString:
		cmp = c.collator.Compare(a.s, b.s)
	case KindBool:
		switch {
		case a.b == b.b:
		case !a.b:
			cmp = -1
		default:
			cmp = 1
		}
	}
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}
