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

package repository

import (
	"context"
	"fmt"
	"sort"
	"unicode"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/example"
	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/pagination"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/projection"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

func (r *baseRepositoryImpl[T]) Declare(method string, opts ...query.Option) error {
	ent, err := r.Entity()
	if err != nil {
		return err
	}
	m, err := query.Derive(r.reg, ent.Name(), method, opts...)
	if err != nil {
		return err
	}
	r.methods.Store(method, m)
	return nil
}

func (r *baseRepositoryImpl[T]) bind(method string, args ...interface{}) (query.Descriptor, error) {
	cached, ok := r.methods.Load(method)
	if !ok {
		if err := r.Declare(method); err != nil {
			return query.Descriptor{}, err
		}
		cached, _ = r.methods.Load(method)
	}
	return cached.(*query.Method).Bind(args...)
}

func (r *baseRepositoryImpl[T]) FindBy(ctx context.Context, method string, args ...interface{}) ([]*T, error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return nil, err
	}
	if q.Kind != query.KindFind {
		return nil, fmt.Errorf("%w: %s is a %s query", query.ErrInvalidDescriptor, method, q.Kind)
	}
	return r.fetch(ctx, q, 0, q.MaxResults)
}

func (r *baseRepositoryImpl[T]) FindOneBy(ctx context.Context, method string, args ...interface{}) (*T, error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return nil, err
	}
	limit := 2
	if q.MaxResults == 1 {
		limit = 1
	}
	entities, err := r.fetch(ctx, q, 0, limit)
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, nil
	case 1:
		return entities[0], nil
	}
	return nil, fmt.Errorf("%w: %s", query.ErrAmbiguousResult, method)
}

func (r *baseRepositoryImpl[T]) CountBy(ctx context.Context, method string, args ...interface{}) (int, error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, q)
}

func (r *baseRepositoryImpl[T]) ExistsBy(ctx context.Context, method string, args ...interface{}) (bool, error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return false, err
	}
	q.FetchHints = nil
	sel := r.db.NewSelect().Model((*T)(nil))
	if err := r.apply(sel, q, false); err != nil {
		return false, err
	}
	ok, err := sel.Exists(ctx)
	return ok, database.Classify(err)
}

// DeleteBy loads the matching entities and deletes them by primary key.
func (r *baseRepositoryImpl[T]) DeleteBy(ctx context.Context, method string, args ...interface{}) (int, error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return 0, err
	}
	q.FetchHints = nil
	entities, err := r.fetch(ctx, q, 0, q.MaxResults)
	if err != nil || len(entities) == 0 {
		return 0, err
	}
	res, err := r.db.NewDelete().Model(&entities).WherePK().Exec(ctx)
	if err != nil {
		return 0, database.Classify(err)
	}
	n, err := res.RowsAffected()
	return int(n), database.Classify(err)
}

func (r *baseRepositoryImpl[T]) FindAll(ctx context.Context, spec predicate.Node, sort ...types.Order) ([]*T, error) {
	ent, err := r.Entity()
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, query.New(ent.Name(), spec, sort...), 0, 0)
}

func (r *baseRepositoryImpl[T]) FindByExample(ctx context.Context, sample types.Row, matcher example.Matcher, sort ...types.Order) ([]*T, error) {
	return r.FindAll(ctx, example.Of(sample, matcher), sort...)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, req *types.PageRequest) (*types.Page[T], error) {
	return r.PageAll(ctx, nil, req)
}

func (r *baseRepositoryImpl[T]) PageAll(ctx context.Context, spec predicate.Node, req *types.PageRequest) (*types.Page[T], error) {
	ent, err := r.Entity()
	if err != nil {
		return nil, err
	}
	return r.page(ctx, query.New(ent.Name(), spec), req)
}

func (r *baseRepositoryImpl[T]) PageBy(ctx context.Context, method string, req *types.PageRequest, args ...interface{}) (*types.Page[T], error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return nil, err
	}
	return r.page(ctx, q, req)
}

func (r *baseRepositoryImpl[T]) page(ctx context.Context, q query.Descriptor, req *types.PageRequest) (*types.Page[T], error) {
	src := pagination.SourceFuncs[*T]{FetchFunc: r.fetch, CountFunc: r.count}
	page, err := pagination.Paginate[*T](ctx, r.reg, src, q, req)
	if err != nil {
		return nil, err
	}
	return types.MapPage(page, func(e *T) T { return *e }), nil
}

func (r *baseRepositoryImpl[T]) BulkUpdate(ctx context.Context, spec predicate.Node, set map[string]interface{}) (int, error) {
	ent, err := r.Entity()
	if err != nil {
		return 0, err
	}
	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	assignments := make([]gateway.Assignment, len(fields))
	for i, f := range fields {
		assignments[i] = gateway.Set(f, set[f])
	}
	var n int
	err = r.gw.WithSession(ctx, func(ctx context.Context, s *gateway.Session) error {
		var err error
		n, err = s.ExecuteUpdate(ctx, query.New(ent.Name(), spec), assignments, gateway.UpdateOptions{})
		return err
	})
	return n, err
}

func (r *baseRepositoryImpl[T]) FindProjectedBy(ctx context.Context, method string, spec projection.Spec, args ...interface{}) ([]types.Row, error) {
	q, err := r.bind(method, args...)
	if err != nil {
		return nil, err
	}
	var views []types.Row
	err = r.gw.WithSession(ctx, func(ctx context.Context, s *gateway.Session) error {
		var err error
		views, err = s.ExecuteProjected(ctx, q, spec)
		return err
	})
	return views, err
}

func (r *baseRepositoryImpl[T]) fetch(ctx context.Context, q query.Descriptor, offset, limit int) ([]*T, error) {
	var entities []*T
	sel := r.db.NewSelect().Model(&entities)
	if err := r.apply(sel, q, true); err != nil {
		return nil, err
	}
	if offset > 0 {
		sel.Offset(offset)
	}
	if limit > 0 {
		sel.Limit(limit)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, database.Classify(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) count(ctx context.Context, q query.Descriptor) (int, error) {
	q.FetchHints = nil
	sel := r.db.NewSelect().Model((*T)(nil))
	if err := r.apply(sel, q, false); err != nil {
		return 0, err
	}
	if !q.Distinct {
		n, err := sel.Count(ctx)
		return n, database.Classify(err)
	}
	var n int
	err := r.db.NewSelect().
		ColumnExpr("count(*)").
		TableExpr("(?) AS ?", sel, bun.Ident("datajpa_distinct")).
		Scan(ctx, &n)
	return n, database.Classify(err)
}

// apply renders q onto a model query. Fetch hints become bun relations;
// a relation both hinted and filtered on is joined once, by bun.
func (r *baseRepositoryImpl[T]) apply(sel *bun.SelectQuery, q query.Descriptor, order bool) error {
	ent, err := r.Entity()
	if err != nil {
		return err
	}
	if q.Entity != ent.Name() {
		return fmt.Errorf("%w: %s query on %s repository", query.ErrInvalidDescriptor, q.Entity, ent.Name())
	}
	c := query.NewCompiler(r.reg, ent)
	where, args, err := c.Where(q.Where)
	if err != nil {
		return err
	}
	if where != "" {
		sel.Where(where, args...)
	}
	if order {
		exprs, orderArgs, err := c.OrderBy(q.Sort)
		if err != nil {
			return err
		}
		for i, expr := range exprs {
			sel.OrderExpr(expr, orderArgs[i]...)
		}
	}

	joinedByBun := make(map[string]bool)
	for _, name := range q.FetchHints {
		rel, ok := ent.Relation(name)
		if !ok {
			return fmt.Errorf("%w: fetch %s.%s", registry.ErrUnresolvedRelation, ent.Name(), name)
		}
		sel.Relation(upperFirst(name))
		if rel.Cardinality == registry.One {
			joinedByBun[name] = true
		}
	}
	for _, j := range c.Joins() {
		if joinedByBun[j.Relation.Name] {
			continue
		}
		expr, joinArgs := j.Expr(ent.Alias())
		sel.Join(expr, joinArgs...)
	}

	if q.Distinct {
		sel.Distinct()
	}
	if q.Lock == query.LockPessimisticWrite {
		switch r.db.Dialect().Name() {
		case dialect.PG:
			sel.For("UPDATE OF ?TableAlias")
		case dialect.MySQL:
			sel.For("UPDATE")
		}
	}
	return nil
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	rs := []rune(s)
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
