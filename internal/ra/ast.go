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
AST Overview:
=============

The AST is the typed tree produced by the Parser and consumed by the
Evaluator. All operator nodes implement Node; the unexported node()
method seals the set so the evaluator's type switch is exhaustive.

AST Node Hierarchy:
===================

	Node (interface)
	├── RelationRef        students
	├── Projection         π{a,b}(E)
	├── Selection          σ{cond}(E)
	├── Rename             ρ{a->b}(E)
	├── NaturalJoin        E ⋈ F
	├── ThetaJoin          E ⋈{cond} F
	├── Product            E × F
	├── Union              E ∪ F
	├── Difference         E − F
	├── Intersection       E ∩ F
	└── Division           E ÷ F

	Condition (interface)
	├── Comparison         a = 'x'
	├── Truth              a            (true only when a is boolean true)
	├── And / Or / Not

Nodes are immutable once built and may be evaluated any number of
times. String() renders the canonical lower-case form, which parses
back to an equal tree.
*/
package ra

import (
	"fmt"
	"strings"
)

// Node is a relational algebra expression.
type Node interface {
	fmt.Stringer
	node()
}

// RelationRef names a base relation in the store.
type RelationRef struct {
	Name string
}

// Projection keeps Attrs, in the order given, and removes duplicates.
type Projection struct {
	Attrs []string
	Input Node
}

// Selection keeps the rows for which Cond holds.
type Selection struct {
	Cond  Condition
	Input Node
}

// RenamePair renames attribute Old to New.
type RenamePair struct {
	Old string
	New string
}

// Rename applies Pairs to the schema of Input.
type Rename struct {
	Pairs []RenamePair
	Input Node
}

// NaturalJoin joins on every attribute name the operands share.
type NaturalJoin struct {
	Left, Right Node
}

// ThetaJoin is the product of its operands filtered by Cond.
type ThetaJoin struct {
	Left, Right Node
	Cond        Condition
}

// Product is the Cartesian product.
type Product struct {
	Left, Right Node
}

// Union is the set union of union-compatible operands.
type Union struct {
	Left, Right Node
}

// Difference keeps the left rows absent from the right.
type Difference struct {
	Left, Right Node
}

// Intersection keeps the rows present in both operands.
type Intersection struct {
	Left, Right Node
}

// Division returns the left tuples, over the attributes the right lacks,
// that pair with every right tuple.
type Division struct {
	Left, Right Node
}

func (*RelationRef) node()  {}
func (*Projection) node()   {}
func (*Selection) node()    {}
func (*Rename) node()       {}
func (*NaturalJoin) node()  {}
func (*ThetaJoin) node()    {}
func (*Product) node()      {}
func (*Union) node()        {}
func (*Difference) node()   {}
func (*Intersection) node() {}
func (*Division) node()     {}

// NewProjection validates that attrs is non-empty and free of repeats.
func NewProjection(attrs []string, input Node) (*Projection, error) {
	if len(attrs) == 0 {
		return nil, fmt.Errorf("projection needs at least one attribute")
	}
	seen := make(map[string]bool, len(attrs))
	out := make([]string, len(attrs))
	for i, a := range attrs {
		a = NormalizeName(a)
		if seen[a] {
			return nil, fmt.Errorf("attribute %s listed twice in projection", a)
		}
		seen[a] = true
		out[i] = a
	}
	return &Projection{Attrs: out, Input: input}, nil
}

// NewRename validates that pairs is non-empty and renames each source once.
func NewRename(pairs []RenamePair, input Node) (*Rename, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("rename needs at least one pair")
	}
	seen := make(map[string]bool, len(pairs))
	out := make([]RenamePair, len(pairs))
	for i, p := range pairs {
		p = RenamePair{Old: NormalizeName(p.Old), New: NormalizeName(p.New)}
		if seen[p.Old] {
			return nil, fmt.Errorf("attribute %s renamed twice", p.Old)
		}
		seen[p.Old] = true
		out[i] = p
	}
	return &Rename{Pairs: out, Input: input}, nil
}

// Op symbols used in trace steps.
const (
	OpRelation     = "rel"
	OpProjection   = "π"
	OpSelection    = "σ"
	OpRename       = "ρ"
	OpNaturalJoin  = "⋈"
	OpThetaJoin    = "⋈_θ"
	OpProduct      = "×"
	OpUnion        = "∪"
	OpDifference   = "−"
	OpIntersection = "∩"
	OpDivision     = "÷"
)

// OpSymbol returns the trace symbol of n's operator.
func OpSymbol(n Node) string {
	switch n.(type) {
	case *RelationRef:
		return OpRelation
	case *Projection:
		return OpProjection
	case *Selection:
		return OpSelection
	case *Rename:
		return OpRename
	case *NaturalJoin:
		return OpNaturalJoin
	case *ThetaJoin:
		return OpThetaJoin
	case *Product:
		return OpProduct
	case *Union:
		return OpUnion
	case *Difference:
		return OpDifference
	case *Intersection:
		return OpIntersection
	case *Division:
		return OpDivision
	}
	return "?"
}

// Children returns n's operands, left first.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Projection:
		return []Node{n.Input}
	case *Selection:
		return []Node{n.Input}
	case *Rename:
		return []Node{n.Input}
	case *NaturalJoin:
		return []Node{n.Left, n.Right}
	case *ThetaJoin:
		return []Node{n.Left, n.Right}
	case *Product:
		return []Node{n.Left, n.Right}
	case *Union:
		return []Node{n.Left, n.Right}
	case *Difference:
		return []Node{n.Left, n.Right}
	case *Intersection:
		return []Node{n.Left, n.Right}
	case *Division:
		return []Node{n.Left, n.Right}
	}
	return nil
}

// Walk calls fn for every node of the tree, operands before operators.
func Walk(n Node, fn func(Node)) {
	for _, c := range Children(n) {
		Walk(c, fn)
	}
	fn(n)
}

// Relations returns the distinct base relation names n references.
func Relations(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(n, func(n Node) {
		if r, ok := n.(*RelationRef); ok && !seen[r.Name] {
			seen[r.Name] = true
			names = append(names, r.Name)
		}
	})
	return names
}

func (n *RelationRef) String() string { return n.Name }

func (n *Projection) String() string {
	return "π{" + strings.Join(n.Attrs, ", ") + "}(" + n.Input.String() + ")"
}

func (n *Selection) String() string {
	return "σ{" + n.Cond.String() + "}(" + n.Input.String() + ")"
}

func (n *Rename) String() string {
	return "ρ{" + renameList(n.Pairs) + "}(" + n.Input.String() + ")"
}

func renameList(pairs []RenamePair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.Old + "->" + p.New
	}
	return strings.Join(parts, ", ")
}

// infix renders a left-associative binary operator; a binary right
// operand needs parentheses to keep its grouping.
func infix(left Node, op string, right Node) string {
	r := right.String()
	if isBinary(right) {
		r = "(" + r + ")"
	}
	return left.String() + " " + op + " " + r
}

func isBinary(n Node) bool {
	return len(Children(n)) == 2
}

func (n *NaturalJoin) String() string  { return infix(n.Left, "⋈", n.Right) }
func (n *ThetaJoin) String() string    { return infix(n.Left, "⋈{"+n.Cond.String()+"}", n.Right) }
func (n *Product) String() string      { return infix(n.Left, "×", n.Right) }
func (n *Union) String() string        { return infix(n.Left, "∪", n.Right) }
func (n *Difference) String() string   { return infix(n.Left, "−", n.Right) }
func (n *Intersection) String() string { return infix(n.Left, "∩", n.Right) }
func (n *Division) String() string     { return infix(n.Left, "÷", n.Right) }

// ============================================================================
// Conditions
// ============================================================================

// Condition is a boolean predicate over one row.
type Condition interface {
	fmt.Stringer
	condition()
	precedence() int
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return "?"
}

// Operand is an attribute reference or a literal.
type Operand interface {
	fmt.Stringer
	operand()
}

// AttrRef names an attribute of the row under test.
type AttrRef struct {
	Name string
}

// Literal is a constant.
type Literal struct {
	Value Value
}

func (*AttrRef) operand() {}
func (*Literal) operand() {}

func (a *AttrRef) String() string { return a.Name }
func (l *Literal) String() string { return l.Value.Literal() }

// Comparison compares two operands.
type Comparison struct {
	Left  Operand
	Op    CompareOp
	Right Operand
}

// Truth is a bare operand used as a condition.
type Truth struct {
	Operand Operand
}

// And holds when both sides hold.
type And struct {
	Left, Right Condition
}

// Or holds when either side holds.
type Or struct {
	Left, Right Condition
}

// Not negates Cond.
type Not struct {
	Cond Condition
}

func (*Comparison) condition() {}
func (*Truth) condition()      {}
func (*And) condition()        {}
func (*Or) condition()         {}
func (*Not) condition()        {}

func (*Or) precedence() int         { return 1 }
func (*And) precedence() int        { return 2 }
func (*Not) precedence() int        { return 3 }
func (*Comparison) precedence() int { return 4 }
func (*Truth) precedence() int      { return 4 }

func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Op.String() + " " + c.Right.String()
}

func (c *Truth) String() string { return c.Operand.String() }

func (c *And) String() string { return logical(c, c.Left, "and", c.Right) }
func (c *Or) String() string  { return logical(c, c.Left, "or", c.Right) }

func (c *Not) String() string {
	return "not " + wrap(c.Cond, c.Cond.precedence() < c.precedence())
}

func logical(self, left Condition, op string, right Condition) string {
	p := self.precedence()
	return wrap(left, left.precedence() < p) + " " + op + " " + wrap(right, right.precedence() <= p)
}

func wrap(c Condition, paren bool) string {
	if paren {
		return "(" + c.String() + ")"
	}
	return c.String()
}

// Attributes returns every attribute name referenced by c, in order of
// first appearance.
func Attributes(c Condition) []string {
	var out []string
	seen := make(map[string]bool)
	var visit func(Condition)
	add := func(o Operand) {
		if a, ok := o.(*AttrRef); ok && !seen[a.Name] {
			seen[a.Name] = true
			out = append(out, a.Name)
		}
	}
	visit = func(c Condition) {
		switch c := c.(type) {
		case *Comparison:
			add(c.Left)
			add(c.Right)
		case *Truth:
			add(c.Operand)
		case *And:
			visit(c.Left)
			visit(c.Right)
		case *Or:
			visit(c.Left)
			visit(c.Right)
		case *Not:
			visit(c.Cond)
		}
	}
	visit(c)
	return out
}
