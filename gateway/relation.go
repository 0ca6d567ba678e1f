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

	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

func joinFields(ent *registry.EntityDescriptor, h fetchHint) (local, foreign registry.Field, err error) {
	local, ok := ent.FieldByColumn(h.rel.LocalColumn)
	if !ok {
		return local, foreign, fmt.Errorf("%w: %s.%s local column %s", registry.ErrUnresolvedRelation, ent.Name(), h.rel.Name, h.rel.LocalColumn)
	}
	foreign, ok = h.target.FieldByColumn(h.rel.ForeignColumn)
	if !ok {
		return local, foreign, fmt.Errorf("%w: %s.%s foreign column %s", registry.ErrUnresolvedRelation, ent.Name(), h.rel.Name, h.rel.ForeignColumn)
	}
	return local, foreign, nil
}

// loadMany fills a to-many relation on every row that has not loaded it
// yet, with one IN query for all of them.
func (s *Session) loadMany(ctx context.Context, ent *registry.EntityDescriptor, h fetchHint, rows []types.Row, readOnly bool) error {
	local, foreign, err := joinFields(ent, h)
	if err != nil {
		return err
	}
	var pending []types.Row
	var keys []interface{}
	seen := make(map[string]bool)
	for _, row := range rows {
		if _, loaded := row[h.rel.Name]; loaded {
			continue
		}
		pending = append(pending, row)
		v := row[local.Name]
		if v == nil || seen[fmt.Sprint(v)] {
			continue
		}
		seen[fmt.Sprint(v)] = true
		keys = append(keys, v)
	}
	if len(pending) == 0 {
		return nil
	}

	groups := make(map[string][]types.Row)
	if len(keys) > 0 {
		children, err := s.fetch(ctx, query.Descriptor{
			Entity:   h.target.Name(),
			Where:    predicate.In(foreign.Name, keys),
			Sort:     []types.Order{types.Asc(h.target.Identity().Name)},
			ReadOnly: readOnly,
		}, 0, 0, nil, true)
		if err != nil {
			return err
		}
		for _, child := range children {
			k := fmt.Sprint(child[foreign.Name])
			groups[k] = append(groups[k], child)
		}
	}
	for _, row := range pending {
		children := groups[fmt.Sprint(row[local.Name])]
		if children == nil {
			children = []types.Row{}
		}
		row[h.rel.Name] = children
	}
	return nil
}

// LoadRelation fetches one relation of row on demand: a types.Row or nil
// for a to-one, a []types.Row for a to-many. Every call is a separate
// statement unless the target is already in the arena; use fetch hints to
// load a relation for many rows at once. The caller decides whether to
// store the result on row.
func (s *Session) LoadRelation(ctx context.Context, entity string, row types.Row, relation string) (interface{}, error) {
	ent, err := s.reg.Resolve(entity)
	if err != nil {
		return nil, err
	}
	rel, target, err := s.reg.Target(ent, relation)
	if err != nil {
		return nil, err
	}
	local, foreign, err := joinFields(ent, fetchHint{rel: rel, target: target})
	if err != nil {
		return nil, err
	}
	v, ok := row[local.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s not loaded", query.ErrUnknownField, ent.Name(), local.Name)
	}

	if rel.Cardinality == registry.Many {
		if v == nil {
			return []types.Row{}, nil
		}
		return s.fetch(ctx, query.New(target.Name(), predicate.Equals(foreign.Name, v), types.Asc(target.Identity().Name)), 0, 0, nil, true)
	}

	if v == nil {
		return nil, nil
	}
	var found types.Row
	if foreign.Name == target.Identity().Name {
		found, err = s.FindByID(ctx, target.Name(), v)
	} else {
		found, err = s.FindOne(ctx, query.New(target.Name(), predicate.Equals(foreign.Name, v)))
	}
	if err != nil || found == nil {
		return nil, err
	}
	return found, nil
}
