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
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/pagination"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/projection"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

// Session runs queries on one connection or transaction and owns the
// arena of rows it fetched. A Session must not be shared between
// goroutines.
type Session struct {
	id      string
	idb     bun.IDB
	reg     *registry.Registry
	logger  database.Logger
	arena   *arena
	release func() error
}

var (
	_ pagination.Source[types.Row] = (*Session)(nil)
	_ projection.Loader            = (*Session)(nil)
)

func (s *Session) ID() string { return s.id }

// IDB exposes the connection or transaction the session runs on.
func (s *Session) IDB() bun.IDB { return s.idb }

// Close drops the arena and returns the connection to the pool.
func (s *Session) Close() error {
	s.arena.clear()
	if s.release == nil {
		return nil
	}
	release := s.release
	s.release = nil
	s.logger.Debug("session closed", "session", s.id)
	return release()
}

// Execute runs a find descriptor and returns managed rows.
func (s *Session) Execute(ctx context.Context, q query.Descriptor) ([]types.Row, error) {
	return s.fetch(ctx, q, 0, q.MaxResults, nil, true)
}

// Fetch runs the window [offset, offset+limit) of q.
func (s *Session) Fetch(ctx context.Context, q query.Descriptor, offset, limit int) ([]types.Row, error) {
	return s.fetch(ctx, q, offset, limit, nil, true)
}

// FindOne returns the single row matching q, nil when nothing matches and
// query.ErrAmbiguousResult when more than one row does. First and Top1
// queries take the first row.
func (s *Session) FindOne(ctx context.Context, q query.Descriptor) (types.Row, error) {
	limit := 2
	if q.MaxResults == 1 {
		limit = 1
	}
	rows, err := s.fetch(ctx, q, 0, limit, nil, true)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}
	return nil, fmt.Errorf("%w: %s", query.ErrAmbiguousResult, q)
}

func (s *Session) Count(ctx context.Context, q query.Descriptor) (int, error) {
	p, err := s.compile(q, planOptions{columns: q.Distinct})
	if err != nil {
		return 0, err
	}
	if !q.Distinct {
		n, err := p.sel.Count(ctx)
		return n, database.Classify(err)
	}
	var n int
	err = s.idb.NewSelect().
		ColumnExpr("count(*)").
		TableExpr("(?) AS ?", p.sel, bun.Ident("datajpa_distinct")).
		Scan(ctx, &n)
	return n, database.Classify(err)
}

func (s *Session) Exists(ctx context.Context, q query.Descriptor) (bool, error) {
	p, err := s.compile(q, planOptions{})
	if err != nil {
		return false, err
	}
	ok, err := p.sel.ColumnExpr("1").Exists(ctx)
	return ok, database.Classify(err)
}

// Run executes q according to its kind: []types.Row for find, int for
// count, bool for exists and the number of deleted rows for delete.
func (s *Session) Run(ctx context.Context, q query.Descriptor) (interface{}, error) {
	switch q.Kind {
	case query.KindCount:
		return s.Count(ctx, q)
	case query.KindExists:
		return s.Exists(ctx, q)
	case query.KindDelete:
		return s.ExecuteDelete(ctx, q)
	case query.KindFind:
		return s.Execute(ctx, q)
	}
	return nil, fmt.Errorf("%w: kind %d", query.ErrInvalidDescriptor, q.Kind)
}

// FindByID returns the arena copy of a row when there is one and queries
// storage otherwise. A missing row is nil, not an error.
func (s *Session) FindByID(ctx context.Context, entity string, id interface{}) (types.Row, error) {
	ent, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}
	if e, ok := s.arena.get(ent.Name(), id); ok {
		return e.row, nil
	}
	return s.FindOne(ctx, query.New(entity, predicate.Equals(ent.Identity().Name, id)))
}

// Page runs q windowed by req; see pagination.Paginate.
func (s *Session) Page(ctx context.Context, q query.Descriptor, req *types.PageRequest) (*types.Page[types.Row], error) {
	return pagination.Paginate[types.Row](ctx, s.reg, s, q, req)
}

// ExecuteProjected runs q and shapes each row through spec. Closed
// projections select only the fields they read and join the relations they
// read through; the rows are not managed. Open projections read managed
// rows and may load relations lazily.
func (s *Session) ExecuteProjected(ctx context.Context, q query.Descriptor, spec projection.Spec) ([]types.Row, error) {
	rows, err := s.projectedRows(ctx, q, spec, 0, q.MaxResults)
	if err != nil {
		return nil, err
	}
	return projection.ProjectAll(ctx, rows, spec, s)
}

// PageProjected is Page followed by projection of the content.
func (s *Session) PageProjected(ctx context.Context, q query.Descriptor, req *types.PageRequest, spec projection.Spec) (*types.Page[types.Row], error) {
	src := pagination.SourceFuncs[types.Row]{
		FetchFunc: func(ctx context.Context, q query.Descriptor, offset, limit int) ([]types.Row, error) {
			return s.projectedRows(ctx, q, spec, offset, limit)
		},
		CountFunc: s.Count,
	}
	page, err := pagination.Paginate[types.Row](ctx, s.reg, src, q, req)
	if err != nil {
		return nil, err
	}
	return projection.ProjectPage(ctx, page, spec, s)
}

func (s *Session) projectedRows(ctx context.Context, q query.Descriptor, spec projection.Spec, offset, limit int) ([]types.Row, error) {
	if spec.Entity != "" && spec.Entity != q.Entity {
		return nil, fmt.Errorf("%w: projection %s is over %s, not %s", query.ErrInvalidDescriptor, spec.Name, spec.Entity, q.Entity)
	}
	if spec.Kind != projection.Closed {
		return s.fetch(ctx, q, offset, limit, nil, true)
	}
	ent, err := s.reg.Resolve(q.Entity)
	if err != nil {
		return nil, err
	}
	fields := []string{ent.Identity().Name}
	for _, f := range spec.Fields() {
		if f != fields[0] {
			fields = append(fields, f)
		}
	}
	for _, rel := range spec.Relations() {
		if r, ok := ent.Relation(rel); ok && r.Cardinality == registry.Many {
			if local, ok := ent.FieldByColumn(r.LocalColumn); ok && local.Name != fields[0] {
				fields = append(fields, local.Name)
			}
		}
	}
	return s.fetch(ctx, q.WithFetch(spec.Relations()...), offset, limit, fields, false)
}

// fetch runs the SELECT of q. managed rows go through the arena; narrowed
// projection rows do not.
func (s *Session) fetch(ctx context.Context, q query.Descriptor, offset, limit int, fields []string, managed bool) ([]types.Row, error) {
	p, err := s.compile(q, planOptions{fields: fields, columns: true, order: true})
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		p.sel.Offset(offset)
	}
	if limit > 0 {
		p.sel.Limit(limit)
	}

	var raw []map[string]interface{}
	if err := p.sel.Scan(ctx, &raw); err != nil {
		return nil, database.Classify(err)
	}

	attach := func(ent *registry.EntityDescriptor, row types.Row) types.Row {
		if !managed {
			return row
		}
		return s.arena.attach(ent.Name(), row[ent.Identity().Name], row, q.ReadOnly)
	}
	rows := make([]types.Row, len(raw))
	for i, r := range raw {
		row := normalize(r)
		p.split(row, attach)
		rows[i] = attach(p.ent, row)
	}
	for _, h := range p.toMany {
		if err := s.loadMany(ctx, p.ent, h, rows, q.ReadOnly); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
