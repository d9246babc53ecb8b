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
Parser Overview:
================

The Parser is a recursive descent parser with one token of lookahead.
It consumes tokens from the Lexer and builds the AST directly.

Grammar:
========

	expression := term { binop term }
	binop      := join [ '{' condition '}' ] | product | union
	            | minus | intersect | div
	term       := '(' expression ')'
	            | pi    '{' ident { ',' ident } '}' '(' expression ')'
	            | sigma '{' condition '}' '(' expression ')'
	            | rho   '{' ident arrow ident { ',' ident arrow ident } '}' '(' expression ')'
	            | ident

	condition  := conj { or conj }
	conj       := neg { and neg }
	neg        := not neg | atom
	atom       := '(' condition ')' [ cmpop operand ] | operand [ cmpop operand ]
	operand    := ident | string | [ '-' ] number | true | false | null
	            | '(' operand ')'

A grouped condition may be followed by a comparison only when it holds a
single operand, so "(x) = 1" compares x while "(x = 1) = 2" is an error.

Binary operators share one precedence level and associate left to
right, so "a ∪ b − c" means "(a ∪ b) − c". Parentheses always win.
Inside conditions NOT binds tighter than AND, which binds tighter than
OR.

Errors:
=======

Every error is an *errors.Error in the SYNTAX category whose Position
points at the offending token:

	π{name(R)        UnterminatedBrace at '(' (offset 7, column 7)
	(a ∪ b           UnbalancedParen at end of input
	σ{x = 'CS}(r)    UnterminatedString at the opening quote
	a ? b            UnknownOperator at '?'

Usage Example:
==============

	node, err := ra.Parse("π{name}(σ{major = 'CS'}(students))")
	if err != nil {
	    return err
	}
	fmt.Println(node) // π{name}(σ{major = 'CS'}(students))
*/
package ra

import (
	"fmt"
	"strconv"
	"strings"

	rerrors "raedu/internal/errors"
)

// maxNesting bounds recursion on pathological inputs.
const maxNesting = 256

// Parser builds an AST from a token stream.
type Parser struct {
	lexer *Lexer // The lexer providing tokens
	cur   Token  // Current token
	peek  Token  // Next token (lookahead)
	depth int
}

// NewParser creates a parser reading from lexer.
func NewParser(lexer *Lexer) *Parser {
	p := &Parser{lexer: lexer}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

// Parse parses a complete expression.
func Parse(expression string) (Node, error) {
	return NewParser(NewLexer(expression)).Parse()
}

// ParseCondition parses a standalone selection or join condition.
func ParseCondition(text string) (Condition, error) {
	p := NewParser(NewLexer(text))
	if p.cur.Type == TokenEOF {
		return nil, rerrors.EmptyExpression()
	}
	c, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TokenEOF {
		return nil, p.unexpected("end of condition")
	}
	return c, nil
}

// Parse parses the whole input as one expression.
func (p *Parser) Parse() (Node, error) {
	if p.cur.Type == TokenEOF {
		return nil, rerrors.EmptyExpression()
	}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	switch p.cur.Type {
	case TokenEOF:
		return node, nil
	case TokenRParen:
		return nil, rerrors.UnbalancedParen("')'", p.cur.Pos).WithDetail("no matching '('")
	case TokenIllegal:
		return nil, p.illegal()
	case TokenIdent, TokenLParen, TokenProject, TokenSelect, TokenRename:
		return nil, rerrors.UnknownOperator(p.cur.Value, p.cur.Pos).
			WithDetail("two operands with no binary operator between them")
	}
	return nil, p.unexpected("binary operator or end of input")
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxNesting {
		return rerrors.NewSyntaxError(rerrors.ErrCodeSyntax, "expression nested too deeply", p.cur.Pos)
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func (p *Parser) unexpected(expected string) *rerrors.Error {
	if p.cur.Type == TokenIllegal {
		return p.illegal()
	}
	return rerrors.UnexpectedToken(expected, p.cur.describe(), p.cur.Pos)
}

func (p *Parser) illegal() *rerrors.Error {
	if strings.HasPrefix(p.cur.Value, "'") || strings.HasPrefix(p.cur.Value, "\"") {
		return rerrors.UnterminatedString(p.cur.Pos)
	}
	return rerrors.UnknownOperator(p.cur.Value, p.cur.Pos)
}

// parseExpression parses a left-associative chain of binary operators.
func (p *Parser) parseExpression() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur
		switch op.Type {
		case TokenJoin, TokenProduct, TokenUnion, TokenMinus, TokenIntersect, TokenDivide:
		default:
			return left, nil
		}
		p.nextToken()

		var cond Condition
		if op.Type == TokenJoin && p.cur.Type == TokenLBrace {
			p.nextToken()
			if cond, err = p.parseCondition(); err != nil {
				return nil, err
			}
			if err := p.expectRBrace(); err != nil {
				return nil, err
			}
		}

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		switch op.Type {
		case TokenJoin:
			if cond != nil {
				left = &ThetaJoin{Left: left, Right: right, Cond: cond}
			} else {
				left = &NaturalJoin{Left: left, Right: right}
			}
		case TokenProduct:
			left = &Product{Left: left, Right: right}
		case TokenUnion:
			left = &Union{Left: left, Right: right}
		case TokenMinus:
			left = &Difference{Left: left, Right: right}
		case TokenIntersect:
			left = &Intersection{Left: left, Right: right}
		case TokenDivide:
			left = &Division{Left: left, Right: right}
		}
	}
}

func (p *Parser) parseTerm() (Node, error) {
	switch p.cur.Type {
	case TokenLParen:
		open := p.cur
		p.nextToken()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TokenRParen {
			if p.cur.Type == TokenIllegal {
				return nil, p.illegal()
			}
			return nil, rerrors.UnbalancedParen(p.cur.describe(), p.cur.Pos).
				WithDetail(fmt.Sprintf("'(' opened at %s is never closed", open.Pos))
		}
		p.nextToken()
		return inner, nil
	case TokenIdent:
		name := p.cur.Value
		p.nextToken()
		return &RelationRef{Name: name}, nil
	case TokenProject:
		return p.parseProjection()
	case TokenSelect:
		return p.parseSelection()
	case TokenRename:
		return p.parseRename()
	case TokenRParen:
		return nil, rerrors.UnbalancedParen("')'", p.cur.Pos).WithDetail("expected an operand")
	case TokenIllegal:
		return nil, p.illegal()
	}
	return nil, p.unexpected("relation name, '(' or unary operator")
}

func (p *Parser) expect(t TokenType) error {
	if p.cur.Type != t {
		return p.unexpected(t.String())
	}
	p.nextToken()
	return nil
}

func (p *Parser) expectRBrace() error {
	switch p.cur.Type {
	case TokenRBrace:
		p.nextToken()
		return nil
	case TokenIllegal:
		return p.illegal()
	}
	return rerrors.UnterminatedBrace(p.cur.describe(), p.cur.Pos)
}

// parseOperand parses the parenthesized sub-expression of a unary operator.
func (p *Parser) parseOperand() (Node, error) {
	if p.cur.Type != TokenLParen {
		return nil, p.unexpected("'('")
	}
	return p.parseTerm()
}

func (p *Parser) parseIdent() (string, error) {
	if p.cur.Type != TokenIdent {
		return "", p.unexpected("attribute name")
	}
	name := p.cur.Value
	p.nextToken()
	return name, nil
}

func (p *Parser) parseProjection() (Node, error) {
	start := p.cur.Pos
	p.nextToken() // π
	if err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	var attrs []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, name)
		if p.cur.Type != TokenComma {
			break
		}
		p.nextToken()
	}
	if err := p.expectRBrace(); err != nil {
		return nil, err
	}
	input, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	n, err := NewProjection(attrs, input)
	if err != nil {
		return nil, rerrors.NewSyntaxError(rerrors.ErrCodeSyntax, err.Error(), start)
	}
	return n, nil
}

func (p *Parser) parseSelection() (Node, error) {
	p.nextToken() // σ
	if err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if err := p.expectRBrace(); err != nil {
		return nil, err
	}
	input, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Selection{Cond: cond, Input: input}, nil
}

func (p *Parser) parseRename() (Node, error) {
	start := p.cur.Pos
	p.nextToken() // ρ
	if err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	var pairs []RenamePair
	for {
		from, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenArrow); err != nil {
			return nil, err
		}
		to, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, RenamePair{Old: from, New: to})
		if p.cur.Type != TokenComma {
			break
		}
		p.nextToken()
	}
	if err := p.expectRBrace(); err != nil {
		return nil, err
	}
	input, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	n, err := NewRename(pairs, input)
	if err != nil {
		return nil, rerrors.NewSyntaxError(rerrors.ErrCodeSyntax, err.Error(), start)
	}
	return n, nil
}

// ============================================================================
// Conditions
// ============================================================================

func (p *Parser) parseCondition() (Condition, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseConjunction()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TokenOr {
		p.nextToken()
		right, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseConjunction() (Condition, error) {
	left, err := p.parseNegation()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == TokenAnd {
		p.nextToken()
		right, err := p.parseNegation()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNegation() (Condition, error) {
	if p.cur.Type != TokenNot {
		return p.parseAtom()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.nextToken()
	inner, err := p.parseNegation()
	if err != nil {
		return nil, err
	}
	return &Not{Cond: inner}, nil
}

func (p *Parser) parseAtom() (Condition, error) {
	if p.cur.Type == TokenLParen {
		p.nextToken()
		inner, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TokenRParen {
			if p.cur.Type == TokenIllegal {
				return nil, p.illegal()
			}
			return nil, rerrors.UnbalancedParen(p.cur.describe(), p.cur.Pos)
		}
		p.nextToken()
		// (x) = 1: a grouped bare operand may still be compared.
		if truth, ok := inner.(*Truth); ok {
			if _, isCmp := compareOps[p.cur.Type]; isCmp {
				return p.parseComparison(truth.Operand)
			}
		}
		return inner, nil
	}

	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, ok := compareOps[p.cur.Type]; !ok {
		return &Truth{Operand: left}, nil
	}
	return p.parseComparison(left)
}

// parseComparison parses the operator and right operand of a comparison
// whose left operand has been read.
func (p *Parser) parseComparison(left Operand) (Condition, error) {
	op := compareOps[p.cur.Type]
	p.nextToken()
	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Comparison{Left: left, Op: op, Right: right}, nil
}

var compareOps = map[TokenType]CompareOp{
	TokenEq: OpEq,
	TokenNe: OpNe,
	TokenLt: OpLt,
	TokenLe: OpLe,
	TokenGt: OpGt,
	TokenGe: OpGe,
}

func (p *Parser) parseValue() (Operand, error) {
	tok := p.cur
	switch tok.Type {
	case TokenIdent:
		p.nextToken()
		return &AttrRef{Name: tok.Value}, nil
	case TokenString:
		p.nextToken()
		return &Literal{Value: StringValue(tok.Value)}, nil
	case TokenNumber:
		p.nextToken()
		return p.number(tok, false)
	case TokenMinus:
		if p.peek.Type != TokenNumber {
			break
		}
		p.nextToken()
		num := p.cur
		p.nextToken()
		return p.number(num, true)
	case TokenTrue:
		p.nextToken()
		return &Literal{Value: BoolValue(true)}, nil
	case TokenFalse:
		p.nextToken()
		return &Literal{Value: BoolValue(false)}, nil
	case TokenNull:
		p.nextToken()
		return &Literal{Value: NullValue()}, nil
	case TokenLParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		p.nextToken()
		inner, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != TokenRParen {
			return nil, rerrors.UnbalancedParen(p.cur.describe(), p.cur.Pos)
		}
		p.nextToken()
		return inner, nil
	}
	return nil, p.unexpected("attribute, literal or '('")
}

func (p *Parser) number(tok Token, negative bool) (Operand, error) {
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, rerrors.NewSyntaxError(rerrors.ErrCodeInvalidLiteral,
			fmt.Sprintf("invalid number %s", tok.Value), tok.Pos).WithCause(err)
	}
	if negative {
		f = -f
	}
	return &Literal{Value: NumberValue(f)}, nil
}
