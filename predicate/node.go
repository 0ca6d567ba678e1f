/*
 * Copyright 2025 tomoncle.
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

package predicate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/znxmin/data-jpa/types"
)

// Operator is a comparison operator of a Comparison node.
type Operator int

const (
	OpEquals Operator = iota
	OpGreaterThan
	OpGreaterThanEqual
	OpLessThan
	OpLessThanEqual
	OpLike
	OpIn
	OpIsNull
)

var operatorSymbols = []string{"=", ">", ">=", "<", "<=", "LIKE", "IN", "IS NULL"}

var operatorNames = []string{"equals", "greaterThan", "greaterThanEqual", "lessThan", "lessThanEqual", "like", "in", "isNull"}

func (o Operator) IsValid() bool { return o >= OpEquals && o <= OpIsNull }

func (o Operator) Number() int {
	if !o.IsValid() {
		return types.IllegalValue
	}
	return int(o)
}

func (o Operator) Name() string {
	if !o.IsValid() {
		return types.IllegalName
	}
	return operatorNames[o]
}

// String returns the SQL symbol of the operator.
func (o Operator) String() string {
	if !o.IsValid() {
		return types.IllegalName
	}
	return operatorSymbols[o]
}

func (o Operator) Desc() string { return o.Name() + " comparison" }

// Unary reports whether the operator takes no value.
func (o Operator) Unary() bool { return o == OpIsNull }

// Node is a predicate tree node: Comparison, And, Or or Not.
type Node interface {
	fmt.Stringer
	isNode()
}

// Comparison compares the field at Field (dotted through to-one
// relations) with Value.
type Comparison struct {
	Field string
	Op    Operator
	Value interface{}
}

type And struct {
	Left, Right Node
}

type Or struct {
	Left, Right Node
}

type Not struct {
	Inner Node
}

func (Comparison) isNode() {}
func (And) isNode()        {}
func (Or) isNode()         {}
func (Not) isNode()        {}

func (c Comparison) String() string {
	if c.Op.Unary() {
		return c.Field + " " + c.Op.String()
	}
	return c.Field + " " + c.Op.String() + " " + formatValue(c.Value)
}

func (n And) String() string { return "(" + n.Left.String() + " AND " + n.Right.String() + ")" }

func (n Or) String() string { return "(" + n.Left.String() + " OR " + n.Right.String() + ")" }

func (n Not) String() string { return "NOT " + n.Inner.String() }

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case Param:
		return t.String()
	case string:
		return fmt.Sprintf("%q", t)
	case Pattern:
		return fmt.Sprintf("%q", string(t))
	case nil:
		return "NULL"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatValue(rv.Index(i).Interface())
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("%v", v)
}

// Wildcard controls how a bound LIKE argument is wrapped in '%'.
type Wildcard int

const (
	WildcardNone Wildcard = iota
	WildcardPrefix
	WildcardSuffix
	WildcardBoth
)

// LikeEscape escapes '%', '_' and itself inside a Pattern.
const LikeEscape = '\\'

// Pattern is a LIKE pattern built from a literal: the literal's own '%',
// '_' and LikeEscape characters are escaped, so only the wildcards added
// around it match. Compilers render it with ESCAPE.
type Pattern string

// EscapeLike escapes s for use inside a Pattern.
func EscapeLike(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '%' || r == '_' || r == LikeEscape {
			sb.WriteRune(LikeEscape)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Apply escapes s and wraps it for the wildcard mode: Prefix yields "s%",
// Suffix "%s".
func (w Wildcard) Apply(s string) Pattern {
	e := EscapeLike(s)
	switch w {
	case WildcardPrefix:
		return Pattern(e + "%")
	case WildcardSuffix:
		return Pattern("%" + e)
	case WildcardBoth:
		return Pattern("%" + e + "%")
	}
	return Pattern(e)
}

// Param is a positional placeholder inside a derived predicate template.
type Param struct {
	Index    int
	Wildcard Wildcard
}

func (p Param) String() string { return fmt.Sprintf("?%d", p.Index) }

// Equals builds field = value.
func Equals(field string, value interface{}) Node {
	return Comparison{Field: field, Op: OpEquals, Value: value}
}

func GreaterThan(field string, value interface{}) Node {
	return Comparison{Field: field, Op: OpGreaterThan, Value: value}
}

func GreaterThanEqual(field string, value interface{}) Node {
	return Comparison{Field: field, Op: OpGreaterThanEqual, Value: value}
}

func LessThan(field string, value interface{}) Node {
	return Comparison{Field: field, Op: OpLessThan, Value: value}
}

func LessThanEqual(field string, value interface{}) Node {
	return Comparison{Field: field, Op: OpLessThanEqual, Value: value}
}

// Like builds field LIKE pattern. A plain string uses SQL '%' and '_'
// wildcards as written; a Pattern carries its own escaping.
func Like(field string, pattern interface{}) Node {
	return Comparison{Field: field, Op: OpLike, Value: pattern}
}

// In builds field IN (values...). values must be a slice.
func In(field string, values interface{}) Node {
	return Comparison{Field: field, Op: OpIn, Value: values}
}

func IsNull(field string) Node {
	return Comparison{Field: field, Op: OpIsNull}
}

func IsNotNull(field string) Node {
	return Not{Inner: IsNull(field)}
}

// AndOf joins left and right with AND. A nil operand is skipped; both nil
// yields nil, which means "all rows".
func AndOf(left, right Node) Node {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return And{Left: left, Right: right}
}

// OrOf joins left and right with OR, skipping nil operands.
func OrOf(left, right Node) Node {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return Or{Left: left, Right: right}
}

// NotOf negates n; the negation of nil is nil.
func NotOf(n Node) Node {
	if n == nil {
		return nil
	}
	return Not{Inner: n}
}

// AllOf folds nodes left to right with AND.
func AllOf(nodes ...Node) Node {
	var out Node
	for _, n := range nodes {
		out = AndOf(out, n)
	}
	return out
}

// AnyOf folds nodes left to right with OR.
func AnyOf(nodes ...Node) Node {
	var out Node
	for _, n := range nodes {
		out = OrOf(out, n)
	}
	return out
}
