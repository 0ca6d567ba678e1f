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

// Package pagination turns a query descriptor into a window fetch plus a
// total count.
package pagination

import (
	"context"

	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

// Source executes the two statements a page needs.
type Source[T any] interface {
	Fetch(ctx context.Context, q query.Descriptor, offset, limit int) ([]T, error)
	Count(ctx context.Context, q query.Descriptor) (int, error)
}

// SourceFuncs adapts two functions to a Source.
type SourceFuncs[T any] struct {
	FetchFunc func(ctx context.Context, q query.Descriptor, offset, limit int) ([]T, error)
	CountFunc func(ctx context.Context, q query.Descriptor) (int, error)
}

func (s SourceFuncs[T]) Fetch(ctx context.Context, q query.Descriptor, offset, limit int) ([]T, error) {
	return s.FetchFunc(ctx, q, offset, limit)
}

func (s SourceFuncs[T]) Count(ctx context.Context, q query.Descriptor) (int, error) {
	return s.CountFunc(ctx, q)
}

// Ordering returns the effective sort of a paged query: the descriptor's
// own order, then the request's, then identity ascending unless identity
// is already sorted on. The tie-breaker keeps windows stable when sort
// keys repeat.
func Ordering(ent *registry.EntityDescriptor, q query.Descriptor, req *types.PageRequest) []types.Order {
	out := make([]types.Order, 0, len(q.Sort)+len(req.GetSort())+1)
	seen := make(map[string]bool)
	for _, o := range append(append([]types.Order(nil), q.Sort...), req.GetSort()...) {
		if seen[o.Field] {
			continue
		}
		seen[o.Field] = true
		out = append(out, o)
	}
	if id := ent.Identity().Name; !seen[id] {
		out = append(out, types.Asc(id))
	}
	return out
}

// Paginate fetches the window described by req and computes the total.
//
// The count statement is skipped when the window itself proves the total:
// a first page shorter than the limit, or any non-empty page shorter than
// the limit (total = offset + rows).
func Paginate[T any](ctx context.Context, reg *registry.Registry, src Source[T], q query.Descriptor, req *types.PageRequest) (*types.Page[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ent, err := reg.Resolve(q.Entity)
	if err != nil {
		return nil, err
	}

	windowed := q.WithSort(Ordering(ent, q, req)...)
	windowed.Kind = query.KindFind
	windowed.MaxResults = 0

	content, err := src.Fetch(ctx, windowed, req.GetOffset(), req.GetLimit())
	if err != nil {
		return nil, err
	}

	rows := len(content)
	var total int
	switch {
	case req.GetOffset() == 0 && rows < req.GetLimit():
		total = rows
	case rows > 0 && rows < req.GetLimit():
		total = req.GetOffset() + rows
	default:
		counted := q
		counted.Sort = nil
		counted.Kind = query.KindCount
		if total, err = src.Count(ctx, counted); err != nil {
			return nil, err
		}
	}
	return types.NewPage(content, req, total), nil
}

// Each walks every page of q in order, starting at the first page of the
// given size, until fn returns an error or the last page is reached.
func Each[T any](ctx context.Context, reg *registry.Registry, src Source[T], q query.Descriptor, size int, sort []types.Order, fn func(*types.Page[T]) error) error {
	req := types.NewPageRequest(0, size, sort...)
	for {
		page, err := Paginate(ctx, reg, src, q, req)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if page.IsLast() || !page.HasContent() {
			return nil
		}
		req = req.Next()
	}
}
