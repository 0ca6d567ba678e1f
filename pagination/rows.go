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

package pagination

import (
	"context"
	"sort"

	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/types"
)

// Rows is a Source over rows already in memory. Filtering follows the SQL
// the gateway would run for the same descriptor, NULLs included.
type Rows []types.Row

var _ Source[types.Row] = Rows(nil)

func (r Rows) filter(q query.Descriptor) []types.Row {
	var out []types.Row
	for _, row := range r {
		if predicate.Matches(q.Where, row) {
			out = append(out, row)
		}
	}
	return out
}

// Fetch sorts the matching rows by q.Sort and returns the window
// [offset, offset+limit). A limit of zero or less means no limit.
func (r Rows) Fetch(_ context.Context, q query.Descriptor, offset, limit int) ([]types.Row, error) {
	rows := r.filter(q)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range q.Sort {
			a, _ := rows[i].Get(o.Field)
			b, _ := rows[j].Get(o.Field)
			c := predicate.CompareValues(a, b)
			if c == 0 {
				continue
			}
			if o.Direction == types.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if offset >= len(rows) {
		return nil, nil
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end], nil
}

func (r Rows) Count(_ context.Context, q query.Descriptor) (int, error) {
	return len(r.filter(q)), nil
}
