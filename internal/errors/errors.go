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
Package errors provides structured error handling for raedu.

Every failure surfaced by the engine, the dataset catalog, the exercise
store and the HTTP layer is an *Error carrying:
  - a numeric code for programmatic handling
  - a category (Syntax, Semantic, Dataset, Exercise, Validation, Storage)
  - a user-facing message with optional detail and hint
  - the offending text position for syntax errors
  - an optional wrapped cause

Error Categories:
  - SYNTAX: the expression text could not be parsed
  - SEMANTIC: the expression parsed but cannot be applied to the relations
  - DATASET: a database or table is missing or malformed
  - EXERCISE: an exercise catalog or question is missing or malformed
  - VALIDATION: invalid input such as configuration values
  - STORAGE: the on-disk catalog failed
*/
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Syntax errors (1000-1999)
	ErrCodeSyntax             ErrorCode = 1000
	ErrCodeUnexpectedToken    ErrorCode = 1001
	ErrCodeUnterminatedBrace  ErrorCode = 1002
	ErrCodeUnbalancedParen    ErrorCode = 1003
	ErrCodeUnterminatedString ErrorCode = 1004
	ErrCodeUnknownOperator    ErrorCode = 1005
	ErrCodeEmptyExpression    ErrorCode = 1006
	ErrCodeInvalidLiteral     ErrorCode = 1007

	// Semantic errors (2000-2999)
	ErrCodeSemantic           ErrorCode = 2000
	ErrCodeUnknownRelation    ErrorCode = 2001
	ErrCodeUnknownAttribute   ErrorCode = 2002
	ErrCodeAmbiguousAttribute ErrorCode = 2003
	ErrCodeSchemaMismatch     ErrorCode = 2004
	ErrCodeDuplicateAttribute ErrorCode = 2005
	ErrCodeTypeMismatch       ErrorCode = 2006

	// Dataset errors (3000-3999)
	ErrCodeDataset          ErrorCode = 3000
	ErrCodeDatabaseNotFound ErrorCode = 3001
	ErrCodeTableNotFound    ErrorCode = 3002
	ErrCodeInvalidDataset   ErrorCode = 3003
	ErrCodeNoDatabase       ErrorCode = 3004

	// Exercise errors (4000-4999)
	ErrCodeExercise         ErrorCode = 4000
	ErrCodeExerciseNotFound ErrorCode = 4001
	ErrCodeInvalidCatalog   ErrorCode = 4002
	ErrCodeNoSolution       ErrorCode = 4003

	// Storage errors (5000-5999)
	ErrCodeStorage ErrorCode = 5000
	ErrCodeIOError ErrorCode = 5001
	ErrCodeCorrupt ErrorCode = 5002

	// Validation errors (6000-6999)
	ErrCodeValidation      ErrorCode = 6000
	ErrCodeInvalidValue    ErrorCode = 6001
	ErrCodeValueOutOfRange ErrorCode = 6002
	ErrCodeMissingRequired ErrorCode = 6004
)

// Category represents the error category.
type Category string

const (
	CategorySyntax     Category = "SYNTAX"
	CategorySemantic   Category = "SEMANTIC"
	CategoryDataset    Category = "DATASET"
	CategoryExercise   Category = "EXERCISE"
	CategoryStorage    Category = "STORAGE"
	CategoryValidation Category = "VALIDATION"
)

// Position locates a token in the expression text.
// Offset is a byte offset; Line and Column are 1-based, Column counts runes.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Error represents a structured error in raedu.
type Error struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Position *Position
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ERROR %d (%s): %s", e.Code, e.Category, e.Message)
	if e.Position != nil {
		fmt.Fprintf(&b, " at %s", e.Position)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " - %s", e.Detail)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Kind returns the short name of the error code, e.g. "UnknownAttribute".
func (e *Error) Kind() string {
	if name, ok := codeNames[e.Code]; ok {
		return name
	}
	return string(e.Category)
}

// UserMessage returns a user-friendly error message.
func (e *Error) UserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)
	if e.Position != nil {
		msg += fmt.Sprintf(" at %s", e.Position)
	}
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return msg
}

// WithDetail adds detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithPosition attaches the offending text position.
func (e *Error) WithPosition(pos Position) *Error {
	e.Position = &pos
	return e
}

var codeNames = map[ErrorCode]string{
	ErrCodeSyntax:             "SyntaxError",
	ErrCodeUnexpectedToken:    "UnexpectedToken",
	ErrCodeUnterminatedBrace:  "UnterminatedBrace",
	ErrCodeUnbalancedParen:    "UnbalancedParen",
	ErrCodeUnterminatedString: "UnterminatedString",
	ErrCodeUnknownOperator:    "UnknownOperator",
	ErrCodeEmptyExpression:    "EmptyExpression",
	ErrCodeInvalidLiteral:     "InvalidLiteral",
	ErrCodeSemantic:           "SemanticError",
	ErrCodeUnknownRelation:    "UnknownRelation",
	ErrCodeUnknownAttribute:   "UnknownAttribute",
	ErrCodeAmbiguousAttribute: "AmbiguousAttribute",
	ErrCodeSchemaMismatch:     "SchemaMismatch",
	ErrCodeDuplicateAttribute: "DuplicateAttribute",
	ErrCodeTypeMismatch:       "TypeMismatch",
	ErrCodeDatabaseNotFound:   "DatabaseNotFound",
	ErrCodeTableNotFound:      "TableNotFound",
	ErrCodeInvalidDataset:     "InvalidDataset",
	ErrCodeNoDatabase:         "NoDatabase",
	ErrCodeExerciseNotFound:   "ExerciseNotFound",
	ErrCodeInvalidCatalog:     "InvalidCatalog",
	ErrCodeNoSolution:         "NoSolution",
	ErrCodeIOError:            "IOError",
	ErrCodeCorrupt:            "Corrupt",
	ErrCodeInvalidValue:       "InvalidValue",
	ErrCodeValueOutOfRange:    "ValueOutOfRange",
	ErrCodeMissingRequired:    "MissingRequired",
}

// ============================================================================
// Syntax Error Constructors
// ============================================================================

// NewSyntaxError creates a new syntax error at pos.
func NewSyntaxError(code ErrorCode, message string, pos Position) *Error {
	return &Error{
		Code:     code,
		Category: CategorySyntax,
		Message:  message,
		Position: &pos,
	}
}

// UnexpectedToken creates an error for unexpected tokens.
func UnexpectedToken(expected, got string, pos Position) *Error {
	return NewSyntaxError(ErrCodeUnexpectedToken,
		fmt.Sprintf("unexpected token: expected %s, got %s", expected, got), pos)
}

// UnterminatedBrace creates an error for a '{' that is never closed.
func UnterminatedBrace(got string, pos Position) *Error {
	return NewSyntaxError(ErrCodeUnterminatedBrace,
		fmt.Sprintf("unterminated brace: expected '}', got %s", got), pos).
		WithHint("Close the parameter list with '}'")
}

// UnbalancedParen creates an error for a missing or stray parenthesis.
func UnbalancedParen(got string, pos Position) *Error {
	return NewSyntaxError(ErrCodeUnbalancedParen,
		fmt.Sprintf("unbalanced parenthesis near %s", got), pos)
}

// UnterminatedString creates an error for a string literal without a closing quote.
func UnterminatedString(pos Position) *Error {
	return NewSyntaxError(ErrCodeUnterminatedString, "unterminated string literal", pos).
		WithHint("Close the literal with the same quote it was opened with")
}

// UnknownOperator creates an error for text that is not an operator.
func UnknownOperator(text string, pos Position) *Error {
	return NewSyntaxError(ErrCodeUnknownOperator,
		fmt.Sprintf("unknown operator: %s", text), pos).
		WithHint("Binary operators: ⋈ join, × product, ∪ union, − minus, ∩ intersect, ÷ div")
}

// EmptyExpression creates an error for blank input.
func EmptyExpression() *Error {
	return NewSyntaxError(ErrCodeEmptyExpression, "empty expression", Position{Offset: 0, Line: 1, Column: 1})
}

// ============================================================================
// Semantic Error Constructors
// ============================================================================

// NewSemanticError creates a new semantic error.
func NewSemanticError(message string) *Error {
	return &Error{
		Code:     ErrCodeSemantic,
		Category: CategorySemantic,
		Message:  message,
	}
}

// UnknownRelation creates an error for a relation missing from the store.
func UnknownRelation(name string, available []string) *Error {
	e := &Error{
		Code:     ErrCodeUnknownRelation,
		Category: CategorySemantic,
		Message:  fmt.Sprintf("unknown relation: %s", name),
	}
	if len(available) > 0 {
		e.Hint = "Available relations: " + strings.Join(available, ", ")
	} else {
		e.Hint = "No relations are loaded"
	}
	return e
}

// UnknownAttribute creates an error for an attribute missing from a schema.
func UnknownAttribute(attr string, schema []string) *Error {
	return &Error{
		Code:     ErrCodeUnknownAttribute,
		Category: CategorySemantic,
		Message:  fmt.Sprintf("unknown attribute: %s", attr),
		Detail:   fmt.Sprintf("schema is (%s)", strings.Join(schema, ", ")),
	}
}

// AmbiguousAttribute creates an error for a name matching several qualified attributes.
func AmbiguousAttribute(attr string, candidates []string) *Error {
	return &Error{
		Code:     ErrCodeAmbiguousAttribute,
		Category: CategorySemantic,
		Message:  fmt.Sprintf("ambiguous attribute: %s", attr),
		Detail:   fmt.Sprintf("candidates: %s", strings.Join(candidates, ", ")),
		Hint:     "Qualify the attribute name or rename one side first",
	}
}

// SchemaMismatch creates an error for operands with incompatible schemas.
func SchemaMismatch(op string, left, right []string) *Error {
	return &Error{
		Code:     ErrCodeSchemaMismatch,
		Category: CategorySemantic,
		Message:  fmt.Sprintf("schema mismatch for %s", op),
		Detail:   fmt.Sprintf("left (%s), right (%s)", strings.Join(left, ", "), strings.Join(right, ", ")),
	}
}

// DuplicateAttribute creates an error for a schema with a repeated name.
func DuplicateAttribute(attr string) *Error {
	return &Error{
		Code:     ErrCodeDuplicateAttribute,
		Category: CategorySemantic,
		Message:  fmt.Sprintf("duplicate attribute: %s", attr),
		Hint:     "Use ρ to rename one of the attributes",
	}
}

// ============================================================================
// Dataset and Exercise Error Constructors
// ============================================================================

// DatabaseNotFound creates an error for a missing database.
func DatabaseNotFound(name string, available []string) *Error {
	e := &Error{
		Code:     ErrCodeDatabaseNotFound,
		Category: CategoryDataset,
		Message:  fmt.Sprintf("database not found: %s", name),
	}
	if len(available) > 0 {
		e.Hint = "Available databases: " + strings.Join(available, ", ")
	}
	return e
}

// NoDatabaseSelected creates an error when no default database can be picked.
func NoDatabaseSelected(available []string) *Error {
	e := &Error{
		Code:     ErrCodeNoDatabase,
		Category: CategoryDataset,
		Message:  "no database selected",
	}
	if len(available) == 0 {
		e.Hint = "Import a dataset first"
	} else {
		e.Hint = "Choose one of: " + strings.Join(available, ", ")
	}
	return e
}

// TableNotFound creates an error for a missing table.
func TableNotFound(database, table string) *Error {
	return &Error{
		Code:     ErrCodeTableNotFound,
		Category: CategoryDataset,
		Message:  fmt.Sprintf("table not found: %s.%s", database, table),
	}
}

// InvalidDataset creates an error for a malformed dataset file.
func InvalidDataset(source, reason string) *Error {
	return &Error{
		Code:     ErrCodeInvalidDataset,
		Category: CategoryDataset,
		Message:  fmt.Sprintf("invalid dataset %s", source),
		Detail:   reason,
	}
}

// ExerciseNotFound creates an error for a missing exercise.
func ExerciseNotFound(database, id string) *Error {
	return &Error{
		Code:     ErrCodeExerciseNotFound,
		Category: CategoryExercise,
		Message:  fmt.Sprintf("exercise not found: %s/%s", database, id),
	}
}

// CatalogNotFound creates an error for a database without an exercise catalog.
func CatalogNotFound(database, file string) *Error {
	return &Error{
		Code:     ErrCodeExerciseNotFound,
		Category: CategoryExercise,
		Message:  fmt.Sprintf("no exercises for database %s", database),
		Detail:   fmt.Sprintf("%s not found", file),
	}
}

// InvalidCatalog creates an error for a malformed exercise catalog.
func InvalidCatalog(source, reason string) *Error {
	return &Error{
		Code:     ErrCodeInvalidCatalog,
		Category: CategoryExercise,
		Message:  fmt.Sprintf("invalid exercise catalog %s", source),
		Detail:   reason,
	}
}

// NoSolution creates an error for an exercise without a relational algebra solution.
func NoSolution(id string) *Error {
	return &Error{
		Code:     ErrCodeNoSolution,
		Category: CategoryExercise,
		Message:  fmt.Sprintf("exercise %s has no relational algebra solution", id),
	}
}

// ============================================================================
// Storage and Validation Error Constructors
// ============================================================================

// NewStorageError creates a new storage error.
func NewStorageError(message string) *Error {
	return &Error{
		Code:     ErrCodeStorage,
		Category: CategoryStorage,
		Message:  message,
	}
}

// CorruptRecord creates an error for a record that cannot be decoded.
func CorruptRecord(key string) *Error {
	return &Error{
		Code:     ErrCodeCorrupt,
		Category: CategoryStorage,
		Message:  fmt.Sprintf("corrupt record: %s", key),
		Hint:     "Re-import the dataset",
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Code:     ErrCodeValidation,
		Category: CategoryValidation,
		Message:  message,
	}
}

// InvalidValue creates an error for invalid values.
func InvalidValue(field, reason string) *Error {
	return &Error{
		Code:     ErrCodeInvalidValue,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("invalid value for %s", field),
		Detail:   reason,
	}
}

// ValueOutOfRange creates an error for numeric settings outside their range.
func ValueOutOfRange(field string, value, min, max int) *Error {
	return &Error{
		Code:     ErrCodeValueOutOfRange,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("%s out of range: %d", field, value),
		Detail:   fmt.Sprintf("must be between %d and %d", min, max),
	}
}

// MissingRequired creates an error for missing required fields.
func MissingRequired(field string) *Error {
	return &Error{
		Code:     ErrCodeMissingRequired,
		Category: CategoryValidation,
		Message:  fmt.Sprintf("missing required field: %s", field),
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func isCategory(err error, c Category) bool {
	if e, ok := As(err); ok {
		return e.Category == c
	}
	return false
}

// IsSyntaxError checks if an error is a syntax error.
func IsSyntaxError(err error) bool {
	return isCategory(err, CategorySyntax)
}

// IsSemanticError checks if an error is a semantic error.
func IsSemanticError(err error) bool {
	return isCategory(err, CategorySemantic)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return isCategory(err, CategoryValidation)
}

// IsNotFound reports whether err names a missing database, table or exercise.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case ErrCodeDatabaseNotFound, ErrCodeTableNotFound, ErrCodeExerciseNotFound:
		return true
	}
	return false
}

// GetCode returns the error code if err is an *Error, or 0 otherwise.
func GetCode(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.Code
	}
	return 0
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	if e, ok := As(err); ok {
		return e.UserMessage()
	}
	return fmt.Sprintf("ERROR: %v", err)
}
