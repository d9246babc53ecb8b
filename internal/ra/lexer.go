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
Package ra implements the relational algebra engine: lexer, parser,
AST, evaluator and the stepper that records an execution trace.

Lexer Overview:
===============

The Lexer is the first stage of the pipeline. It turns an expression
string into a stream of tokens for the Parser. Operators may be written
with their mathematical symbol or an ASCII keyword:

	Input: "π{name}(σ{major = 'CS'}(students))"

	Output Tokens:
	  1. {TokenProject, "π"}
	  2. {TokenLBrace, "{"}
	  3. {TokenIdent, "name"}
	  4. {TokenRBrace, "}"}
	  5. {TokenLParen, "("}
	  6. {TokenSelect, "σ"}
	  ...

Operator Aliases:
=================

	π  pi          σ  sigma        ρ  rho
	⋈  join        ×  product      ∪  union
	−  - minus difference          ∩  intersect
	÷  div         ∧  and          ∨  or        ¬  not

Keywords, symbols and identifiers are matched case-insensitively and
lower-cased, so "PI", "Pi" and "Π" all produce TokenProject and the
identifier "Students" arrives at the parser as "students".

Identifier Rules:
=================

Identifiers start with a letter or underscore and may contain letters,
digits, underscores and dots. Dots allow qualified attribute names
such as "s.id" produced by a Cartesian product.

String Literals:
================

String literals use single or double quotes. A backslash escapes the
next character. An unterminated literal produces TokenIllegal whose
position points at the opening quote.

Positions:
==========

Every token records where it starts: a byte offset plus a 1-based line
and a 1-based column counted in runes.
*/
package ra

import (
	"strings"
	"unicode"
	"unicode/utf8"

	rerrors "raedu/internal/errors"
)

// Position locates a token in the expression text.
type Position = rerrors.Position

// TokenType represents the type of a lexical token.
type TokenType int

// Token type constants.
const (
	TokenEOF     TokenType = iota // End of input
	TokenIllegal                  // Unrecognized character or unterminated literal
	TokenIdent                    // Relation or attribute name
	TokenString                   // String literal ('CS')
	TokenNumber                   // Numeric literal (42, 3.5)
	TokenLBrace                   // {
	TokenRBrace                   // }
	TokenLParen                   // (
	TokenRParen                   // )
	TokenComma                    // ,
	TokenArrow                    // -> or →
	TokenMinus                    // - − minus difference

	TokenEq // = ==
	TokenNe // != <> ≠
	TokenLt // <
	TokenLe // <= ≤
	TokenGt // >
	TokenGe // >= ≥

	TokenProject   // π pi
	TokenSelect    // σ sigma
	TokenRename    // ρ rho
	TokenJoin      // ⋈ ⨝ join
	TokenProduct   // × product
	TokenUnion     // ∪ union
	TokenIntersect // ∩ intersect
	TokenDivide    // ÷ div

	TokenAnd   // ∧ and
	TokenOr    // ∨ or
	TokenNot   // ¬ not
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // null
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "end of input",
	TokenIllegal:   "illegal token",
	TokenIdent:     "identifier",
	TokenString:    "string",
	TokenNumber:    "number",
	TokenLBrace:    "'{'",
	TokenRBrace:    "'}'",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
	TokenComma:     "','",
	TokenArrow:     "'->'",
	TokenMinus:     "'−'",
	TokenEq:        "'='",
	TokenNe:        "'!='",
	TokenLt:        "'<'",
	TokenLe:        "'<='",
	TokenGt:        "'>'",
	TokenGe:        "'>='",
	TokenProject:   "'π'",
	TokenSelect:    "'σ'",
	TokenRename:    "'ρ'",
	TokenJoin:      "'⋈'",
	TokenProduct:   "'×'",
	TokenUnion:     "'∪'",
	TokenIntersect: "'∩'",
	TokenDivide:    "'÷'",
	TokenAnd:       "AND",
	TokenOr:        "OR",
	TokenNot:       "NOT",
	TokenTrue:      "TRUE",
	TokenFalse:     "FALSE",
	TokenNull:      "NULL",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown token"
}

// keywords maps lower-cased words and symbols to their token type.
var keywords = map[string]TokenType{
	"pi":         TokenProject,
	"π":          TokenProject,
	"sigma":      TokenSelect,
	"σ":          TokenSelect,
	"rho":        TokenRename,
	"ρ":          TokenRename,
	"join":       TokenJoin,
	"⋈":          TokenJoin,
	"⨝":          TokenJoin,
	"product":    TokenProduct,
	"×":          TokenProduct,
	"union":      TokenUnion,
	"∪":          TokenUnion,
	"difference": TokenMinus,
	"minus":      TokenMinus,
	"−":          TokenMinus,
	"intersect":  TokenIntersect,
	"∩":          TokenIntersect,
	"div":        TokenDivide,
	"÷":          TokenDivide,
	"and":        TokenAnd,
	"∧":          TokenAnd,
	"or":         TokenOr,
	"∨":          TokenOr,
	"not":        TokenNot,
	"¬":          TokenNot,
	"true":       TokenTrue,
	"false":      TokenFalse,
	"null":       TokenNull,
	"→":          TokenArrow,
	"≠":          TokenNe,
	"≤":          TokenLe,
	"≥":          TokenGe,
}

// Token represents a single lexical unit from the input.
type Token struct {
	Type  TokenType // The category of this token
	Value string    // Canonical text; the decoded payload for strings
	Pos   Position  // Where the token starts
}

func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdent, TokenNumber:
		return "'" + t.Value + "'"
	case TokenString:
		return quoteLiteral(t.Value)
	}
	if t.Value != "" {
		return "'" + t.Value + "'"
	}
	return t.Type.String()
}

// Lexer transforms an input string into a stream of tokens.
// Each call to NextToken advances through the input.
type Lexer struct {
	input string
	pos   int // byte offset of the next rune
	line  int
	col   int
}

// NewLexer creates a new Lexer for the given input string.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Tokenize returns every token up to and including TokenEOF, stopping
// early at the first TokenIllegal.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		t := l.NextToken()
		toks = append(toks, t)
		if t.Type == TokenEOF || t.Type == TokenIllegal {
			return toks
		}
	}
}

func (l *Lexer) here() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) peekRune() (rune, int) {
	if l.pos >= len(l.input) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.input[l.pos:])
}

func (l *Lexer) advance() rune {
	r, w := l.peekRune()
	l.pos += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for {
		r, w := l.peekRune()
		if w == 0 || !unicode.IsSpace(r) {
			return
		}
		l.advance()
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

// NextToken advances the lexer and returns the next token.
//
// Recognition order:
//  1. End of input
//  2. Operator symbols and Greek letters
//  3. Identifiers and keywords
//  4. Numbers
//  5. String literals
//  6. Punctuation and comparison operators
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	start := l.here()

	r, w := l.peekRune()
	if w == 0 {
		return Token{Type: TokenEOF, Pos: start}
	}

	// Single-rune symbols such as π, ⋈, ≤ and their upper-case forms.
	if r >= utf8.RuneSelf {
		lower := strings.ToLower(string(r))
		if tt, ok := keywords[lower]; ok {
			l.advance()
			return Token{Type: tt, Value: lower, Pos: start}
		}
	}

	if isIdentStart(r) {
		for {
			r, w := l.peekRune()
			if w == 0 || !isIdentPart(r) {
				break
			}
			l.advance()
		}
		lit := strings.ToLower(l.input[start.Offset:l.pos])
		if tt, ok := keywords[lit]; ok {
			return Token{Type: tt, Value: lit, Pos: start}
		}
		return Token{Type: TokenIdent, Value: lit, Pos: start}
	}

	if isDigit(r) {
		return l.readNumber(start)
	}

	if r == '\'' || r == '"' {
		return l.readString(start, r)
	}

	l.advance()
	switch r {
	case '{':
		return Token{Type: TokenLBrace, Value: "{", Pos: start}
	case '}':
		return Token{Type: TokenRBrace, Value: "}", Pos: start}
	case '(':
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ')':
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case ',':
		return Token{Type: TokenComma, Value: ",", Pos: start}
	case '-':
		if l.match('>') {
			return Token{Type: TokenArrow, Value: "->", Pos: start}
		}
		return Token{Type: TokenMinus, Value: "-", Pos: start}
	case '=':
		if l.match('=') {
			return Token{Type: TokenEq, Value: "==", Pos: start}
		}
		return Token{Type: TokenEq, Value: "=", Pos: start}
	case '!':
		if l.match('=') {
			return Token{Type: TokenNe, Value: "!=", Pos: start}
		}
	case '<':
		if l.match('=') {
			return Token{Type: TokenLe, Value: "<=", Pos: start}
		}
		if l.match('>') {
			return Token{Type: TokenNe, Value: "<>", Pos: start}
		}
		return Token{Type: TokenLt, Value: "<", Pos: start}
	case '>':
		if l.match('=') {
			return Token{Type: TokenGe, Value: ">=", Pos: start}
		}
		return Token{Type: TokenGt, Value: ">", Pos: start}
	}

	return Token{Type: TokenIllegal, Value: l.input[start.Offset:l.pos], Pos: start}
}

func (l *Lexer) match(want rune) bool {
	r, w := l.peekRune()
	if w == 0 || r != want {
		return false
	}
	l.advance()
	return true
}

// readNumber consumes digits with an optional fractional part.
// A dot must be followed by a digit to belong to the number.
func (l *Lexer) readNumber(start Position) Token {
	for {
		r, w := l.peekRune()
		if w == 0 || !isDigit(r) {
			break
		}
		l.advance()
	}
	if l.pos+1 < len(l.input) && l.input[l.pos] == '.' && isDigit(rune(l.input[l.pos+1])) {
		l.advance()
		for {
			r, w := l.peekRune()
			if w == 0 || !isDigit(r) {
				break
			}
			l.advance()
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start.Offset:l.pos], Pos: start}
}

func (l *Lexer) readString(start Position, quote rune) Token {
	l.advance() // opening quote
	var b strings.Builder
	for {
		r, w := l.peekRune()
		if w == 0 {
			return Token{Type: TokenIllegal, Value: l.input[start.Offset:], Pos: start}
		}
		l.advance()
		switch r {
		case quote:
			return Token{Type: TokenString, Value: b.String(), Pos: start}
		case '\\':
			esc, w := l.peekRune()
			if w == 0 {
				return Token{Type: TokenIllegal, Value: l.input[start.Offset:], Pos: start}
			}
			l.advance()
			b.WriteRune(esc)
		default:
			b.WriteRune(r)
		}
	}
}
