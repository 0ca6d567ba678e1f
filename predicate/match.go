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
	"regexp"
	"strings"
	"time"

	"github.com/znxmin/data-jpa/types"
)

// Matches evaluates n against an in-memory row the way SQL would: a
// comparison against a missing or NULL value is unknown, NOT of unknown
// stays unknown, and only a known true matches. Equals with a nil value
// is IS NULL. A nil node matches every row.
func Matches(n Node, row types.Row) bool {
	return eval(n, row) == truth
}

type tristate int

const (
	falsity tristate = iota
	truth
	unknown
)

func known(b bool) tristate {
	if b {
		return truth
	}
	return falsity
}

func eval(n Node, row types.Row) tristate {
	switch t := n.(type) {
	case nil:
		return truth
	case Comparison:
		v, ok := row.Get(t.Field)
		null := !ok || v == nil
		switch {
		case t.Op == OpIsNull, t.Op == OpEquals && t.Value == nil:
			return known(null)
		case t.Op == OpIn:
			return in(v, null, t.Value)
		case null:
			return unknown
		}
		return known(compare(v, t.Op, t.Value))
	case And:
		l, r := eval(t.Left, row), eval(t.Right, row)
		if l == falsity || r == falsity {
			return falsity
		}
		if l == truth && r == truth {
			return truth
		}
		return unknown
	case Or:
		l, r := eval(t.Left, row), eval(t.Right, row)
		if l == truth || r == truth {
			return truth
		}
		if l == falsity && r == falsity {
			return falsity
		}
		return unknown
	case Not:
		switch eval(t.Inner, row) {
		case truth:
			return falsity
		case falsity:
			return truth
		}
		return unknown
	}
	return falsity
}

// in follows SQL: an empty list is false, a NULL operand or a NULL list
// element without a match is unknown.
func in(actual interface{}, null bool, list interface{}) tristate {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return falsity
	}
	if rv.Len() == 0 {
		return falsity
	}
	if null {
		return unknown
	}
	result := falsity
	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i).Interface()
		if e == nil {
			result = unknown
			continue
		}
		if compareValues(actual, e) == 0 {
			return truth
		}
	}
	return result
}

func compare(actual interface{}, op Operator, expected interface{}) bool {
	switch op {
	case OpEquals:
		return compareValues(actual, expected) == 0
	case OpGreaterThan:
		return compareValues(actual, expected) > 0
	case OpGreaterThanEqual:
		return compareValues(actual, expected) >= 0
	case OpLessThan:
		return compareValues(actual, expected) < 0
	case OpLessThanEqual:
		return compareValues(actual, expected) <= 0
	case OpLike:
		switch p := expected.(type) {
		case string:
			return likeRegexp(p, false).MatchString(toString(actual))
		case Pattern:
			return likeRegexp(string(p), true).MatchString(toString(actual))
		}
	}
	return false
}

// CompareValues returns -1, 0 or 1. Numbers compare numerically, times
// chronologically, everything else by its string form.
func CompareValues(a, b interface{}) int {
	return compareValues(a, b)
}

func compareValues(a, b interface{}) int {
	if f1, ok1 := toFloat(a); ok1 {
		if f2, ok2 := toFloat(b); ok2 {
			switch {
			case f1 > f2:
				return 1
			case f1 < f2:
				return -1
			}
			return 0
		}
	}
	if t1, ok1 := a.(time.Time); ok1 {
		if t2, ok2 := b.(time.Time); ok2 {
			return t1.Compare(t2)
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	}
	return fmt.Sprintf("%v", v)
}

func toFloat(v interface{}) (float64, bool) {
	switch i := v.(type) {
	case float64:
		return i, true
	case float32:
		return float64(i), true
	case int:
		return float64(i), true
	case int8:
		return float64(i), true
	case int16:
		return float64(i), true
	case int32:
		return float64(i), true
	case int64:
		return float64(i), true
	case uint:
		return float64(i), true
	case uint32:
		return float64(i), true
	case uint64:
		return float64(i), true
	}
	return 0, false
}

// likeRegexp translates a SQL LIKE pattern into an anchored regexp. With
// escaped set, LikeEscape makes the next character literal.
func likeRegexp(pattern string, escaped bool) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	literal := false
	for _, r := range pattern {
		switch {
		case literal:
			sb.WriteString(regexp.QuoteMeta(string(r)))
			literal = false
		case escaped && r == LikeEscape:
			literal = true
		case r == '%':
			sb.WriteString(".*")
		case r == '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}
