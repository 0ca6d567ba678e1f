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

package projection

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Open expressions:
//
//	target.username + ' ' + target.age
//	team.name
//	'fixed'
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'[^']*'|"[^"]*"`},
	{Name: "Number", Pattern: `\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[.+]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type expression struct {
	Terms []*term `parser:"@@ ( '+' @@ )*"`
}

type term struct {
	String *string  `parser:"  @String"`
	Number *float64 `parser:"| @Number"`
	Path   []string `parser:"| @Ident ( '.' @Ident )*"`
}

var exprParser = participle.MustBuild[expression](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
)

var exprCache sync.Map

// parseExpr parses src once and caches the tree.
func parseExpr(src string) (*expression, error) {
	if cached, ok := exprCache.Load(src); ok {
		return cached.(*expression), nil
	}
	expr, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	for _, t := range expr.Terms {
		if len(t.Path) > 1 && t.Path[0] == "target" {
			t.Path = t.Path[1:]
		}
		if t.String != nil {
			unquoted := (*t.String)[1 : len(*t.String)-1]
			t.String = &unquoted
		}
	}
	exprCache.Store(src, expr)
	return expr, nil
}

// Validate reports whether src parses as an open expression.
func Validate(src string) error {
	if _, err := parseExpr(src); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrExpression, src, err)
	}
	return nil
}

func (e *expression) eval(resolve func(path []string) (interface{}, error)) (interface{}, error) {
	var acc interface{}
	for i, t := range e.Terms {
		var v interface{}
		switch {
		case t.String != nil:
			v = *t.String
		case t.Number != nil:
			v = *t.Number
		default:
			var err error
			if v, err = resolve(t.Path); err != nil {
				return nil, err
			}
		}
		if i == 0 {
			acc = v
			continue
		}
		acc = plus(acc, v)
	}
	return acc, nil
}

// plus adds numbers and concatenates everything else.
func plus(a, b interface{}) interface{} {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x + y
		}
	}
	return text(a) + text(b)
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
