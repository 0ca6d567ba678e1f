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

// Package projection reshapes entity rows into views: closed projections
// copy fields, open projections evaluate expressions, and Into decodes a
// view into a DTO struct.
package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/znxmin/data-jpa/types"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrExpression   = errors.New("projection expression failed")
)

// Loader fetches a relation that was not materialised with the row. It
// returns a types.Row (nil for a null to-one) or a []types.Row.
type Loader interface {
	LoadRelation(ctx context.Context, entity string, row types.Row, relation string) (interface{}, error)
}

// Project shapes row according to spec. Open expressions that touch an
// unloaded relation call loader once per row; pass a fetch hint on the
// query to avoid that.
func Project(ctx context.Context, row types.Row, spec Spec, loader Loader) (types.Row, error) {
	if !spec.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %s: invalid kind", ErrExpression, spec.Name)
	}
	view := make(types.Row, len(spec.Mappings))
	for _, m := range spec.Mappings {
		if m.Expr == "" {
			v, err := closedValue(row, m.Source)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", spec.Name, err)
			}
			view[m.Target] = v
			continue
		}
		if spec.Kind != Open {
			return nil, fmt.Errorf("%w: %s: expression %q in closed projection", ErrExpression, spec.Name, m.Expr)
		}
		expr, err := parseExpr(m.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q: %v", ErrExpression, spec.Name, m.Expr, err)
		}
		v, err := expr.eval(func(path []string) (interface{}, error) {
			return openValue(ctx, row, spec.Entity, path, loader)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrExpression, spec.Name, m.Target, err)
		}
		view[m.Target] = v
	}
	return view, nil
}

// ProjectAll projects every row.
func ProjectAll(ctx context.Context, rows []types.Row, spec Spec, loader Loader) ([]types.Row, error) {
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		view, err := Project(ctx, row, spec, loader)
		if err != nil {
			return nil, err
		}
		out[i] = view
	}
	return out, nil
}

// ProjectPage projects the content of a page; paging metadata is kept.
func ProjectPage(ctx context.Context, page *types.Page[types.Row], spec Spec, loader Loader) (*types.Page[types.Row], error) {
	content, err := ProjectAll(ctx, page.Content, spec, loader)
	if err != nil {
		return nil, err
	}
	return &types.Page[types.Row]{Content: content, Total: page.Total, Offset: page.Offset, Limit: page.Limit}, nil
}

// closedValue reads a materialised path. A null to-one relation yields
// nil; a relation that was never loaded is a missing field.
func closedValue(row types.Row, path string) (interface{}, error) {
	cur := row
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, path)
		}
		if i == len(parts)-1 {
			return v, nil
		}
		if v == nil {
			return nil, nil
		}
		next, ok := v.(types.Row)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a to-one relation", ErrMissingField, strings.Join(parts[:i+1], "."))
		}
		cur = next
	}
	return nil, fmt.Errorf("%w: empty path", ErrMissingField)
}

func openValue(ctx context.Context, row types.Row, entity string, path []string, loader Loader) (interface{}, error) {
	cur := row
	for i, part := range path {
		v, ok := cur[part]
		last := i == len(path)-1
		if !ok {
			if last || i > 0 || loader == nil {
				return nil, fmt.Errorf("unknown field %s", strings.Join(path[:i+1], "."))
			}
			loaded, err := loader.LoadRelation(ctx, entity, cur, part)
			if err != nil {
				return nil, err
			}
			cur[part] = loaded
			v = loaded
		}
		if last {
			return v, nil
		}
		switch rel := v.(type) {
		case nil:
			return nil, fmt.Errorf("null relation %s", strings.Join(path[:i+1], "."))
		case types.Row:
			if rel == nil {
				return nil, fmt.Errorf("null relation %s", strings.Join(path[:i+1], "."))
			}
			cur = rel
		default:
			return nil, fmt.Errorf("%s is not a to-one relation", strings.Join(path[:i+1], "."))
		}
	}
	return nil, fmt.Errorf("empty path")
}
