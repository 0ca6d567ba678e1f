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

package query

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

var subjects = []struct {
	prefix string
	kind   Kind
}{
	{"exists", KindExists},
	{"count", KindCount},
	{"delete", KindDelete},
	{"remove", KindDelete},
	{"stream", KindFind},
	{"search", KindFind},
	{"query", KindFind},
	{"find", KindFind},
	{"read", KindFind},
	{"get", KindFind},
}

// limitPattern only applies at the start of the subject words, after an
// optional Distinct.
var limitPattern = regexp.MustCompile(`^(?:Distinct)?(First|Top)(\d*)(?:\p{Lu}|$)`)

// operator is a clause suffix and the node template it produces.
type operator struct {
	keyword string
	build   func(field string, next func(predicate.Wildcard) predicate.Param) predicate.Node
}

func eq(field string, next func(predicate.Wildcard) predicate.Param) predicate.Node {
	return predicate.Equals(field, next(predicate.WildcardNone))
}

func like(w predicate.Wildcard) func(string, func(predicate.Wildcard) predicate.Param) predicate.Node {
	return func(field string, next func(predicate.Wildcard) predicate.Param) predicate.Node {
		return predicate.Comparison{Field: field, Op: predicate.OpLike, Value: next(w)}
	}
}

func compare(op predicate.Operator) func(string, func(predicate.Wildcard) predicate.Param) predicate.Node {
	return func(field string, next func(predicate.Wildcard) predicate.Param) predicate.Node {
		return predicate.Comparison{Field: field, Op: op, Value: next(predicate.WildcardNone)}
	}
}

func negate(build func(string, func(predicate.Wildcard) predicate.Param) predicate.Node) func(string, func(predicate.Wildcard) predicate.Param) predicate.Node {
	return func(field string, next func(predicate.Wildcard) predicate.Param) predicate.Node {
		return predicate.Not{Inner: build(field, next)}
	}
}

func constant(v interface{}) func(string, func(predicate.Wildcard) predicate.Param) predicate.Node {
	return func(field string, _ func(predicate.Wildcard) predicate.Param) predicate.Node {
		return predicate.Equals(field, v)
	}
}

func isNull(field string, _ func(predicate.Wildcard) predicate.Param) predicate.Node {
	return predicate.IsNull(field)
}

// operators is sorted longest keyword first so that GreaterThanEqual wins
// over GreaterThan and IsNotNull over IsNot.
var operators = func() []operator {
	ops := []operator{
		{"Equals", eq},
		{"Is", eq},
		{"IsEquals", eq},
		{"GreaterThanEqual", compare(predicate.OpGreaterThanEqual)},
		{"IsGreaterThanEqual", compare(predicate.OpGreaterThanEqual)},
		{"GreaterThan", compare(predicate.OpGreaterThan)},
		{"IsGreaterThan", compare(predicate.OpGreaterThan)},
		{"After", compare(predicate.OpGreaterThan)},
		{"LessThanEqual", compare(predicate.OpLessThanEqual)},
		{"IsLessThanEqual", compare(predicate.OpLessThanEqual)},
		{"LessThan", compare(predicate.OpLessThan)},
		{"IsLessThan", compare(predicate.OpLessThan)},
		{"Before", compare(predicate.OpLessThan)},
		{"Like", like(predicate.WildcardNone)},
		{"IsLike", like(predicate.WildcardNone)},
		{"NotLike", negate(like(predicate.WildcardNone))},
		{"StartingWith", like(predicate.WildcardPrefix)},
		{"StartsWith", like(predicate.WildcardPrefix)},
		{"EndingWith", like(predicate.WildcardSuffix)},
		{"EndsWith", like(predicate.WildcardSuffix)},
		{"Containing", like(predicate.WildcardBoth)},
		{"Contains", like(predicate.WildcardBoth)},
		{"In", compare(predicate.OpIn)},
		{"IsIn", compare(predicate.OpIn)},
		{"NotIn", negate(compare(predicate.OpIn))},
		{"IsNotIn", negate(compare(predicate.OpIn))},
		{"Null", isNull},
		{"IsNull", isNull},
		{"NotNull", negate(isNull)},
		{"IsNotNull", negate(isNull)},
		{"Not", negate(eq)},
		{"IsNot", negate(eq)},
		{"True", constant(true)},
		{"IsTrue", constant(true)},
		{"False", constant(false)},
		{"IsFalse", constant(false)},
	}
	sort.SliceStable(ops, func(i, j int) bool { return len(ops[i].keyword) > len(ops[j].keyword) })
	return ops
}()

// Method is a parsed derived-query descriptor. Its template holds one
// predicate.Param per argument; Bind substitutes them.
type Method struct {
	Name     string
	Entity   string
	template Descriptor
	arity    int
}

// Option adjusts the template of a derived method, the way annotations
// on a repository method would.
type Option func(*Descriptor)

// WithLock requests row locking for every bound query.
func WithLock(mode LockMode) Option {
	return func(d *Descriptor) { d.Lock = mode }
}

// ReadOnly marks loaded rows as never flushed.
func ReadOnly() Option {
	return func(d *Descriptor) { d.ReadOnly = true }
}

// Fetch eagerly loads the named relations.
func Fetch(relations ...string) Option {
	return func(d *Descriptor) { d.FetchHints = append(d.FetchHints, relations...) }
}

// Arity is the number of arguments Bind expects.
func (m *Method) Arity() int { return m.arity }

// Template returns the unbound descriptor.
func (m *Method) Template() Descriptor { return m.template }

// Bind substitutes args, in order, for the method's placeholders.
func (m *Method) Bind(args ...interface{}) (Descriptor, error) {
	if len(args) != m.arity {
		return Descriptor{}, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidArguments, m.Name, m.arity, len(args))
	}
	where, err := predicate.Substitute(m.template.Where, func(p predicate.Param) (interface{}, error) {
		v := args[p.Index]
		if p.Wildcard != predicate.WildcardNone {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s argument %d must be a string", ErrInvalidArguments, m.Name, p.Index)
			}
			return p.Wildcard.Apply(s), nil
		}
		return v, nil
	})
	if err != nil {
		return Descriptor{}, err
	}
	if err := checkInArguments(m.Name, where); err != nil {
		return Descriptor{}, err
	}
	d := m.template
	d.Where = where
	d.Sort = append([]types.Order(nil), m.template.Sort...)
	d.FetchHints = append([]string(nil), m.template.FetchHints...)
	return d, nil
}

func checkInArguments(name string, n predicate.Node) error {
	var err error
	predicate.Walk(n, func(c predicate.Comparison) {
		if c.Op != predicate.OpIn || err != nil {
			return
		}
		k := reflect.ValueOf(c.Value).Kind()
		if k != reflect.Slice && k != reflect.Array {
			err = fmt.Errorf("%w: %s: IN on %s needs a slice, got %T", ErrInvalidArguments, name, c.Field, c.Value)
		}
	})
	return err
}

// Derive parses a method-name descriptor such as
// "findByUsernameAndAgeGreaterThan" against the named entity.
//
// Clauses combine strictly left to right: "AAndBOrC" is (A AND B) OR C.
func Derive(reg *registry.Registry, entity string, name string, opts ...Option) (*Method, error) {
	ent, err := reg.Resolve(entity)
	if err != nil {
		return nil, err
	}

	m := &Method{Name: name, Entity: ent.Name()}
	m.template.Entity = ent.Name()

	rest := ""
	found := false
	for _, s := range subjects {
		// the subject ends at a word boundary: "countryBy" is not a count
		if tail, ok := strings.CutPrefix(name, s.prefix); ok && (tail == "" || isUpper(tail[0])) {
			m.template.Kind = s.kind
			rest = tail
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s: unknown subject", ErrInvalidDescriptor, name)
	}

	subject, body, hasBy := cutKeyword(rest, "By")
	if _, _, distinct := cutKeyword(subject, "Distinct"); distinct {
		m.template.Distinct = true
	}
	if match := limitPattern.FindStringSubmatch(subject); match != nil {
		m.template.MaxResults = 1
		if match[2] != "" {
			n, _ := strconv.Atoi(match[2])
			if n <= 0 {
				return nil, fmt.Errorf("%w: %s: result limit must be positive", ErrInvalidDescriptor, name)
			}
			m.template.MaxResults = n
		}
	}

	if hasBy {
		var orderBy string
		var hasOrder bool
		if strings.HasPrefix(body, "OrderBy") {
			orderBy, hasOrder = body[len("OrderBy"):], true
			body = ""
		} else {
			body, orderBy, hasOrder = cutKeyword(body, "OrderBy")
		}
		if body == "" && !hasOrder {
			return nil, fmt.Errorf("%w: %s: empty predicate", ErrInvalidDescriptor, name)
		}
		if body != "" {
			where, arity, err := parsePredicate(reg, ent, name, body)
			if err != nil {
				return nil, err
			}
			m.template.Where = where
			m.arity = arity
		}
		if hasOrder {
			orders, err := parseOrder(reg, ent, name, orderBy)
			if err != nil {
				return nil, err
			}
			m.template.Sort = orders
		}
	}

	for _, opt := range opts {
		opt(&m.template)
	}
	return m, nil
}

// cutKeyword splits s around the first kw that starts a new word.
func cutKeyword(s, kw string) (before, after string, found bool) {
	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i:i+len(kw)] != kw {
			continue
		}
		if j := i + len(kw); j == len(s) || isUpper(s[j]) {
			return s[:i], s[j:], true
		}
	}
	return s, "", false
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func startsWord(s, kw string) bool {
	return strings.HasPrefix(s, kw) && (len(s) == len(kw) || isUpper(s[len(kw)]))
}

func parsePredicate(reg *registry.Registry, ent *registry.EntityDescriptor, name, body string) (predicate.Node, int, error) {
	var (
		tree  predicate.Node
		arity int
		conn  string
	)
	next := func(w predicate.Wildcard) predicate.Param {
		p := predicate.Param{Index: arity, Wildcard: w}
		arity++
		return p
	}

	rest := body
	for {
		if rest == "" {
			return nil, 0, fmt.Errorf("%w: %s: empty clause", ErrInvalidDescriptor, name)
		}
		path, n := matchField(reg, ent, rest)
		if n == 0 {
			if startsWord(rest, "And") || startsWord(rest, "Or") {
				return nil, 0, fmt.Errorf("%w: %s: empty clause", ErrInvalidDescriptor, name)
			}
			return nil, 0, fmt.Errorf("%w: %s: no field matches %q of %s", ErrUnknownField, name, rest, ent.Name())
		}
		rest = rest[n:]

		var op operator
		matched := false
		for _, candidate := range operators {
			if startsWord(rest, candidate.keyword) {
				op, matched = candidate, true
				break
			}
		}
		var clause predicate.Node
		if matched {
			rest = rest[len(op.keyword):]
			clause = op.build(path, next)
		} else {
			clause = eq(path, next)
		}

		switch conn {
		case "":
			tree = clause
		case "And":
			tree = predicate.And{Left: tree, Right: clause}
		case "Or":
			tree = predicate.Or{Left: tree, Right: clause}
		}

		switch {
		case rest == "":
			return tree, arity, nil
		case startsWord(rest, "And"):
			conn, rest = "And", rest[len("And"):]
		case startsWord(rest, "Or"):
			conn, rest = "Or", rest[len("Or"):]
		default:
			return nil, 0, fmt.Errorf("%w: %s: %q", ErrUnsupportedOperator, name, rest)
		}
	}
}

func parseOrder(reg *registry.Registry, ent *registry.EntityDescriptor, name, body string) ([]types.Order, error) {
	var out []types.Order
	rest := body
	for rest != "" {
		path, n := matchField(reg, ent, rest)
		if n == 0 {
			return nil, fmt.Errorf("%w: %s: no field matches %q of %s", ErrUnknownField, name, rest, ent.Name())
		}
		rest = rest[n:]
		o := types.Asc(path)
		switch {
		case startsWord(rest, "Desc"):
			o.Direction = types.Descending
			rest = rest[len("Desc"):]
		case startsWord(rest, "Asc"):
			rest = rest[len("Asc"):]
		case rest != "" && !isUpper(rest[0]):
			return nil, fmt.Errorf("%w: %s: bad order clause %q", ErrInvalidDescriptor, name, rest)
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s: empty order clause", ErrInvalidDescriptor, name)
	}
	return out, nil
}

// matchField finds the longest field token at the start of s. Direct
// fields win ties against relation traversals. It returns the dotted path
// and the number of bytes consumed.
func matchField(reg *registry.Registry, ent *registry.EntityDescriptor, s string) (string, int) {
	best, bestLen := "", 0
	for _, f := range ent.Fields() {
		token := upperFirst(f.Name)
		if len(token) > bestLen && startsWord(s, token) {
			best, bestLen = f.Name, len(token)
		}
	}
	for _, rel := range ent.Relations() {
		if rel.Cardinality != registry.One {
			continue
		}
		token := upperFirst(rel.Name)
		if !strings.HasPrefix(s, token) {
			continue
		}
		target, err := reg.Resolve(rel.Target)
		if err != nil {
			continue
		}
		tail := s[len(token):]
		for _, f := range target.Fields() {
			ft := upperFirst(f.Name)
			if n := len(token) + len(ft); n > bestLen && startsWord(tail, ft) {
				best, bestLen = rel.Name+"."+f.Name, n
			}
		}
	}
	return best, bestLen
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
