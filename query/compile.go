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
	"strings"

	"github.com/uptrace/bun"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

// Column is a resolved field path.
type Column struct {
	Alias    string
	Field    registry.Field
	Relation string
}

// Expr returns the "?.?" fragment and its identifier arguments.
func (c Column) Expr() (string, []interface{}) {
	return "?.?", []interface{}{bun.Ident(c.Alias), bun.Ident(c.Field.Column)}
}

// Join is a to-one relation that must be LEFT JOINed, aliased by the
// relation name.
type Join struct {
	Relation registry.Relation
	Target   *registry.EntityDescriptor
}

// Expr renders the join against the base alias.
func (j Join) Expr(baseAlias string) (string, []interface{}) {
	return "LEFT JOIN ? AS ? ON ?.? = ?.?", []interface{}{
		bun.Ident(j.Target.Table()), bun.Ident(j.Relation.Name),
		bun.Ident(j.Relation.Name), bun.Ident(j.Relation.ForeignColumn),
		bun.Ident(baseAlias), bun.Ident(j.Relation.LocalColumn),
	}
}

// Compiler resolves field paths against an entity and turns predicate
// trees into bun WHERE fragments. It collects the joins those paths need.
type Compiler struct {
	reg   *registry.Registry
	ent   *registry.EntityDescriptor
	joins []Join
}

func NewCompiler(reg *registry.Registry, ent *registry.EntityDescriptor) *Compiler {
	return &Compiler{reg: reg, ent: ent}
}

// Joins returns the relations referenced so far, in first-use order.
func (c *Compiler) Joins() []Join {
	out := make([]Join, len(c.joins))
	copy(out, c.joins)
	return out
}

// Column resolves "field" or "relation.field".
func (c *Compiler) Column(path string) (Column, error) {
	head, tail, nested := strings.Cut(path, ".")
	if !nested {
		f, ok := c.ent.Field(path)
		if !ok {
			return Column{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.ent.Name(), path)
		}
		return Column{Alias: c.ent.Alias(), Field: f}, nil
	}
	rel, target, err := c.reg.Target(c.ent, head)
	if err != nil || rel.Cardinality != registry.One || strings.Contains(tail, ".") {
		return Column{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.ent.Name(), path)
	}
	f, ok := target.Field(tail)
	if !ok {
		return Column{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.ent.Name(), path)
	}
	c.addJoin(Join{Relation: rel, Target: target})
	return Column{Alias: rel.Name, Field: f, Relation: rel.Name}, nil
}

func (c *Compiler) addJoin(j Join) {
	for _, existing := range c.joins {
		if existing.Relation.Name == j.Relation.Name {
			return
		}
	}
	c.joins = append(c.joins, j)
}

// Where renders n. A nil node renders as an empty string.
func (c *Compiler) Where(n predicate.Node) (string, []interface{}, error) {
	var sb strings.Builder
	var args []interface{}
	if n == nil {
		return "", nil, nil
	}
	if err := c.where(&sb, &args, n); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (c *Compiler) where(sb *strings.Builder, args *[]interface{}, n predicate.Node) error {
	switch t := n.(type) {
	case predicate.Comparison:
		return c.comparison(sb, args, t)
	case predicate.And:
		return c.binary(sb, args, t.Left, " AND ", t.Right)
	case predicate.Or:
		return c.binary(sb, args, t.Left, " OR ", t.Right)
	case predicate.Not:
		sb.WriteString("NOT (")
		if err := c.where(sb, args, t.Inner); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	}
	return fmt.Errorf("%w: unknown node %T", ErrInvalidDescriptor, n)
}

func (c *Compiler) binary(sb *strings.Builder, args *[]interface{}, l predicate.Node, op string, r predicate.Node) error {
	sb.WriteString("(")
	if err := c.where(sb, args, l); err != nil {
		return err
	}
	sb.WriteString(op)
	if err := c.where(sb, args, r); err != nil {
		return err
	}
	sb.WriteString(")")
	return nil
}

func (c *Compiler) comparison(sb *strings.Builder, args *[]interface{}, cmp predicate.Comparison) error {
	if _, ok := cmp.Value.(predicate.Param); ok {
		return fmt.Errorf("%w: unbound parameter on %s", ErrInvalidArguments, cmp.Field)
	}
	col, err := c.Column(cmp.Field)
	if err != nil {
		return err
	}
	if cmp.Op == predicate.OpIn && emptyList(cmp.Value) {
		// IN () is a syntax error outside SQLite.
		sb.WriteString("1 = 0")
		return nil
	}
	expr, identArgs := col.Expr()
	sb.WriteString(expr)
	*args = append(*args, identArgs...)

	switch {
	case cmp.Op == predicate.OpIsNull, cmp.Op == predicate.OpEquals && cmp.Value == nil:
		sb.WriteString(" IS NULL")
	case cmp.Op == predicate.OpIn:
		sb.WriteString(" IN (?)")
		*args = append(*args, bun.In(cmp.Value))
	case cmp.Op == predicate.OpLike:
		if p, ok := cmp.Value.(predicate.Pattern); ok {
			sb.WriteString(" LIKE ? ESCAPE ?")
			*args = append(*args, string(p), string(predicate.LikeEscape))
			return nil
		}
		sb.WriteString(" LIKE ?")
		*args = append(*args, cmp.Value)
	case cmp.Op.IsValid():
		sb.WriteString(" " + cmp.Op.String() + " ?")
		*args = append(*args, cmp.Value)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedOperator, cmp.Op)
	}
	return nil
}

func emptyList(v interface{}) bool {
	rv := reflect.ValueOf(v)
	return (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 0
}

// OrderBy renders each order as "?.? ASC|DESC" with its arguments.
func (c *Compiler) OrderBy(orders []types.Order) ([]string, [][]interface{}, error) {
	exprs := make([]string, len(orders))
	args := make([][]interface{}, len(orders))
	for i, o := range orders {
		col, err := c.Column(o.Field)
		if err != nil {
			return nil, nil, err
		}
		expr, a := col.Expr()
		exprs[i] = expr + " " + o.Direction.Name()
		args[i] = a
	}
	return exprs, args, nil
}

// Clause is a compiled WHERE fragment.
type Clause struct {
	SQL   string
	Args  []interface{}
	Joins []Join
}

// Compile renders a predicate against the named entity.
func Compile(reg *registry.Registry, entity string, n predicate.Node) (*Clause, error) {
	ent, err := reg.Resolve(entity)
	if err != nil {
		return nil, err
	}
	c := NewCompiler(reg, ent)
	sql, args, err := c.Where(n)
	if err != nil {
		return nil, err
	}
	return &Clause{SQL: sql, Args: args, Joins: c.Joins()}, nil
}
