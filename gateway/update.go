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
	"reflect"

	"github.com/uptrace/bun"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

// Assignment is one SET item of a bulk update.
type Assignment struct {
	Field     string
	Value     interface{}
	Increment bool
}

// Set assigns value to field.
func Set(field string, value interface{}) Assignment {
	return Assignment{Field: field, Value: value}
}

// Increment adds delta to the current value of field.
func Increment(field string, delta interface{}) Assignment {
	return Assignment{Field: field, Value: delta, Increment: true}
}

type UpdateOptions struct {
	// FlushAutomatically writes pending arena changes before the update.
	FlushAutomatically bool
	// ClearAutomatically empties the arena after the update, so later
	// reads see the new values.
	ClearAutomatically bool
}

// ExecuteUpdate runs one UPDATE over every row matching q and returns the
// number of rows changed. Rows already in the arena are not refreshed:
// reads keep returning the old values until Clear, Detach or
// ClearAutomatically.
func (s *Session) ExecuteUpdate(ctx context.Context, q query.Descriptor, assignments []Assignment, opts UpdateOptions) (int, error) {
	if len(assignments) == 0 {
		return 0, fmt.Errorf("%w: update of %s without assignments", query.ErrInvalidArguments, q.Entity)
	}
	ent, err := s.reg.Resolve(q.Entity)
	if err != nil {
		return 0, err
	}
	if opts.FlushAutomatically {
		if _, err := s.Flush(ctx); err != nil {
			return 0, err
		}
	}

	upd := s.idb.NewUpdate().TableExpr("? AS ?", bun.Ident(ent.Table()), bun.Ident(ent.Alias()))
	for _, a := range assignments {
		f, ok := ent.Field(a.Field)
		if !ok {
			return 0, fmt.Errorf("%w: %s.%s", query.ErrUnknownField, ent.Name(), a.Field)
		}
		if a.Increment {
			upd.Set("? = ? + ?", bun.Ident(f.Column), bun.Ident(f.Column), a.Value)
		} else {
			upd.Set("? = ?", bun.Ident(f.Column), a.Value)
		}
	}
	if err := s.restrict(ent, q, func(where string, args ...interface{}) { upd.Where(where, args...) }); err != nil {
		return 0, err
	}

	res, err := upd.Exec(ctx)
	if err != nil {
		return 0, database.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.Classify(err)
	}
	s.logger.Debug("bulk update", "session", s.id, "entity", ent.Name(), "rows", n)
	if opts.ClearAutomatically {
		s.Clear()
	}
	return int(n), nil
}

// restrict adds the WHERE clause of q to an UPDATE. Predicates that reach
// through relations become an identity subquery, since UPDATE cannot
// LEFT JOIN portably.
func (s *Session) restrict(ent *registry.EntityDescriptor, q query.Descriptor, where func(string, ...interface{})) error {
	c := query.NewCompiler(s.reg, ent)
	clause, args, err := c.Where(q.Where)
	if err != nil {
		return err
	}
	switch {
	case clause == "":
		where("1 = 1")
	case len(c.Joins()) == 0:
		where(clause, args...)
	default:
		id := ent.Identity()
		sub, err := s.compile(query.Descriptor{Entity: ent.Name(), Where: q.Where}, planOptions{fields: []string{id.Name}, columns: true})
		if err != nil {
			return err
		}
		where("?.? IN (SELECT ?.? FROM (?) AS ?)",
			bun.Ident(ent.Alias()), bun.Ident(id.Column),
			bun.Ident("datajpa_ids"), bun.Ident(id.Name),
			sub.sel, bun.Ident("datajpa_ids"))
	}
	return nil
}

// ExecuteDelete removes every row matching q and evicts it from the arena.
func (s *Session) ExecuteDelete(ctx context.Context, q query.Descriptor) (int, error) {
	ent, err := s.reg.Resolve(q.Entity)
	if err != nil {
		return 0, err
	}
	id := ent.Identity()
	p, err := s.compile(query.Descriptor{Entity: ent.Name(), Where: q.Where, Lock: q.Lock}, planOptions{fields: []string{id.Name}, columns: true})
	if err != nil {
		return 0, err
	}
	var raw []map[string]interface{}
	if err := p.sel.Scan(ctx, &raw); err != nil {
		return 0, database.Classify(err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	ids := make([]interface{}, len(raw))
	for i, r := range raw {
		ids[i] = normalize(r)[id.Name]
	}

	res, err := s.idb.NewDelete().
		TableExpr("?", bun.Ident(ent.Table())).
		Where("? IN (?)", bun.Ident(id.Column), bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, database.Classify(err)
	}
	for _, v := range ids {
		s.arena.detach(ent.Name(), v)
	}
	n, err := res.RowsAffected()
	return int(n), database.Classify(err)
}

// Flush writes the changed fields of every managed row back to storage and
// returns how many rows it updated. Rows loaded read-only are skipped.
func (s *Session) Flush(ctx context.Context) (int, error) {
	written := 0
	for _, e := range s.arena.sorted() {
		if !e.dirty() {
			continue
		}
		ent, err := s.reg.Resolve(e.entity)
		if err != nil {
			return written, err
		}
		id := ent.Identity()
		upd := s.idb.NewUpdate().TableExpr("?", bun.Ident(ent.Table()))
		changed := 0
		for _, f := range ent.Fields() {
			if f.Name == id.Name {
				continue
			}
			v, ok := e.row[f.Name]
			if !ok || reflect.DeepEqual(v, e.snapshot[f.Name]) {
				continue
			}
			upd.Set("? = ?", bun.Ident(f.Column), v)
			changed++
		}
		if changed == 0 {
			continue
		}
		if _, err := upd.Where("? = ?", bun.Ident(id.Column), e.snapshot[id.Name]).Exec(ctx); err != nil {
			return written, database.Classify(err)
		}
		e.snapshot = e.row.Clone()
		written++
	}
	if written > 0 {
		s.logger.Debug("flushed rows", "session", s.id, "rows", written)
	}
	return written, nil
}

// Clear detaches every row. Rows already handed out stay valid but are no
// longer tracked.
func (s *Session) Clear() { s.arena.clear() }

// Detach stops tracking row. It reports whether the row was managed.
func (s *Session) Detach(entity string, row types.Row) bool {
	ent, err := s.reg.Resolve(entity)
	if err != nil || row == nil {
		return false
	}
	return s.arena.detach(ent.Name(), row[ent.Identity().Name])
}

// Contains reports whether the arena holds entity id.
func (s *Session) Contains(entity string, id interface{}) bool {
	_, ok := s.arena.get(entity, id)
	return ok
}

// Managed is the number of rows in the arena.
func (s *Session) Managed() int { return s.arena.len() }
