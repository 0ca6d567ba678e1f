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
)

// Walk visits every Comparison of n in written order.
func Walk(n Node, fn func(Comparison)) {
	switch t := n.(type) {
	case Comparison:
		fn(t)
	case And:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case Or:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case Not:
		Walk(t.Inner, fn)
	}
}

// Equal reports whether a and b are structurally identical trees.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Comparison:
		y, ok := b.(Comparison)
		return ok && x.Field == y.Field && x.Op == y.Op && reflect.DeepEqual(x.Value, y.Value)
	case And:
		y, ok := b.(And)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case Or:
		y, ok := b.(Or)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case Not:
		y, ok := b.(Not)
		return ok && Equal(x.Inner, y.Inner)
	}
	return false
}

// Fields lists the distinct field paths referenced by n.
func Fields(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	Walk(n, func(c Comparison) {
		if !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
	})
	return out
}

// Params lists the placeholders of n in written order.
func Params(n Node) []Param {
	var out []Param
	Walk(n, func(c Comparison) {
		if p, ok := c.Value.(Param); ok {
			out = append(out, p)
		}
	})
	return out
}

// Substitute returns a copy of n with every Param replaced by fn's result.
func Substitute(n Node, fn func(Param) (interface{}, error)) (Node, error) {
	switch t := n.(type) {
	case nil:
		return nil, nil
	case Comparison:
		p, ok := t.Value.(Param)
		if !ok {
			return t, nil
		}
		v, err := fn(p)
		if err != nil {
			return nil, err
		}
		t.Value = v
		return t, nil
	case And:
		l, err := Substitute(t.Left, fn)
		if err != nil {
			return nil, err
		}
		r, err := Substitute(t.Right, fn)
		if err != nil {
			return nil, err
		}
		return And{Left: l, Right: r}, nil
	case Or:
		l, err := Substitute(t.Left, fn)
		if err != nil {
			return nil, err
		}
		r, err := Substitute(t.Right, fn)
		if err != nil {
			return nil, err
		}
		return Or{Left: l, Right: r}, nil
	case Not:
		in, err := Substitute(t.Inner, fn)
		if err != nil {
			return nil, err
		}
		return Not{Inner: in}, nil
	}
	return nil, fmt.Errorf("unknown predicate node %T", n)
}
