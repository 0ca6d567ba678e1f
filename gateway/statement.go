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

package gateway

import (
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

// nestedSep joins a relation name and a target field in column aliases of
// LEFT JOINed relations: "team__name".
const nestedSep = "__"

type fetchHint struct {
	rel    registry.Relation
	target *registry.EntityDescriptor
}

// plan is one SELECT statement over an entity plus the relations that
// have to be split out of, or loaded after, its rows.
type plan struct {
	ent    *registry.EntityDescriptor
	sel    *bun.SelectQuery
	toOne  []fetchHint
	toMany []fetchHint
}

type planOptions struct {
	fields  []string
	columns bool
	order   bool
}

// compile turns q into a SELECT. With columns unset the statement has no
// column list, for count and exists wrappers.
func (s *Session) compile(q query.Descriptor, opts planOptions) (*plan, error) {
	ent, err := s.reg.Resolve(q.Entity)
	if err != nil {
		return nil, err
	}
	c := query.NewCompiler(s.reg, ent)
	p := &plan{
		ent: ent,
		sel: s.idb.NewSelect().TableExpr("? AS ?", bun.Ident(ent.Table()), bun.Ident(ent.Alias())),
	}

	if opts.columns {
		fields := opts.fields
		if fields == nil {
			for _, f := range ent.Fields() {
				fields = append(fields, f.Name)
			}
		}
		for _, name := range fields {
			if err := p.column(c, name, name); err != nil {
				return nil, err
			}
		}
		for _, name := range q.FetchHints {
			rel, target, err := s.reg.Target(ent, name)
			if err != nil {
				return nil, fmt.Errorf("%w: fetch %s: %v", query.ErrUnknownField, name, err)
			}
			hint := fetchHint{rel: rel, target: target}
			if rel.Cardinality == registry.Many {
				p.toMany = append(p.toMany, hint)
				continue
			}
			for _, f := range target.Fields() {
				if err := p.column(c, name+"."+f.Name, name+nestedSep+f.Name); err != nil {
					return nil, err
				}
			}
			p.toOne = append(p.toOne, hint)
		}
	}

	where, args, err := c.Where(q.Where)
	if err != nil {
		return nil, err
	}
	if where != "" {
		p.sel.Where(where, args...)
	}

	if opts.order {
		exprs, orderArgs, err := c.OrderBy(q.Sort)
		if err != nil {
			return nil, err
		}
		for i, expr := range exprs {
			p.sel.OrderExpr(expr, orderArgs[i]...)
		}
	}

	for _, j := range c.Joins() {
		expr, joinArgs := j.Expr(ent.Alias())
		p.sel.Join(expr, joinArgs...)
	}

	if q.Distinct {
		p.sel.Distinct()
	}
	if q.Lock == query.LockPessimisticWrite && opts.columns {
		switch s.idb.Dialect().Name() {
		case dialect.PG:
			p.sel.For("UPDATE OF ?", bun.Ident(ent.Alias()))
		case dialect.MySQL:
			p.sel.For("UPDATE")
		}
	}
	return p, nil
}

func (p *plan) column(c *query.Compiler, path, alias string) error {
	col, err := c.Column(path)
	if err != nil {
		return err
	}
	expr, args := col.Expr()
	p.sel.ColumnExpr(expr+" AS ?", append(args, bun.Ident(alias))...)
	return nil
}

// split moves the "rel__field" columns of each LEFT JOINed relation into a
// nested row. A relation whose identity came back NULL is stored as nil.
func (p *plan) split(row types.Row, attach func(*registry.EntityDescriptor, types.Row) types.Row) {
	for _, h := range p.toOne {
		nested := make(types.Row, len(h.target.Fields()))
		for _, f := range h.target.Fields() {
			k := h.rel.Name + nestedSep + f.Name
			nested[f.Name] = row[k]
			delete(row, k)
		}
		if nested[h.target.Identity().Name] == nil {
			row[h.rel.Name] = nil
			continue
		}
		row[h.rel.Name] = attach(h.target, nested)
	}
}

func normalize(raw map[string]interface{}) types.Row {
	row := make(types.Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[k] = v
	}
	return row
}
