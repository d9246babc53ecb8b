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
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"rsc.io/ordered"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	}
	return "unknown"
}

// Value is a scalar cell: null, boolean, number or string.
// Numbers are held as float64 so that 1 and 1.0 are the same value.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// NullValue returns the SQL-style NULL.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberValue wraps a float. Negative zero is folded into zero.
func NumberValue(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{kind: KindNumber, n: f}
}

// IntValue wraps an integer.
func IntValue(i int64) Value { return NumberValue(float64(i)) }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ValueOf converts a Go scalar into a Value. It accepts nil, bool,
// every integer and float kind, string, json.Number and Value itself.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int8:
		return IntValue(int64(x)), nil
	case int16:
		return IntValue(int64(x)), nil
	case int32:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint:
		return NumberValue(float64(x)), nil
	case uint8:
		return NumberValue(float64(x)), nil
	case uint16:
		return NumberValue(float64(x)), nil
	case uint32:
		return NumberValue(float64(x)), nil
	case uint64:
		return NumberValue(float64(x)), nil
	case float32:
		return NumberValue(float64(x)), nil
	case float64:
		return NumberValue(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return NumberValue(f), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", x)
}

// MustValue is ValueOf for literals known to be valid; it panics otherwise.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Kind returns the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) { return v.n, v.kind == KindNumber }

// Text returns the string payload.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindString }

// Equal is structural equality: NULL equals only NULL and values
// of different kinds are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	}
	return true
}

// Interface returns the Go representation: nil, bool, int64 for
// integral numbers, float64 otherwise, or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if isIntegral(v.n) {
			return int64(v.n)
		}
		return v.n
	case KindString:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	}
	return "NULL"
}

// Literal renders v as it would be written in a condition.
func (v Value) Literal() string {
	switch v.kind {
	case KindString:
		return quoteLiteral(v.s)
	case KindNull:
		return "null"
	}
	return v.String()
}

// MarshalJSON encodes v as a native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return json.Marshal(v.String())
		}
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON scalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	nv, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = nv
	return nil
}

// appendKey appends an order-preserving encoding of v to enc.
func (v Value) appendKey(enc []byte) []byte {
	switch v.kind {
	case KindBool:
		var b uint8
		if v.b {
			b = 1
		}
		return ordered.Append(enc, uint8(KindBool), b)
	case KindNumber:
		return ordered.Append(enc, uint8(KindNumber), v.n)
	case KindString:
		return ordered.Append(enc, uint8(KindString), v.s)
	}
	return ordered.Append(enc, uint8(KindNull))
}

func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<53
}

func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
