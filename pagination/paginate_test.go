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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

type countingSource struct {
	rows    Rows
	fetches int
	counts  int
	lastQ   query.Descriptor
}

func (s *countingSource) Fetch(ctx context.Context, q query.Descriptor, offset, limit int) ([]types.Row, error) {
	s.fetches++
	s.lastQ = q
	return s.rows.Fetch(ctx, q, offset, limit)
}

func (s *countingSource) Count(ctx context.Context, q query.Descriptor) (int, error) {
	s.counts++
	return s.rows.Count(ctx, q)
}

func fixture(t *testing.T) (*registry.Registry, *countingSource) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.NewEntity("Member").
		Identity("id", registry.TypeInt).
		Field("username", registry.TypeString).
		Field("age", registry.TypeInt).
		MustBuild()))
	src := &countingSource{}
	for i := 1; i <= 5; i++ {
		src.rows = append(src.rows, types.Row{"id": i, "username": fmt.Sprintf("member%d", i), "age": 10})
	}
	return reg, src
}

func TestPaginateFirstPage(t *testing.T) {
	reg, src := fixture(t)
	q := query.New("Member", predicate.Equals("age", 10))

	page, err := Paginate[types.Row](context.Background(), reg, src, q, types.NewPageRequest(0, 3, types.Desc("username")))
	require.NoError(t, err)

	assert.Len(t, page.Content, 3)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.Equal(t, 0, page.Number())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())
	assert.Equal(t, "member5", page.Content[0]["username"])
	assert.Equal(t, 1, src.counts)
	assert.Equal(t, []types.Order{types.Desc("username"), types.Asc("id")}, src.lastQ.Sort)
}

func TestPaginateSkipsCount(t *testing.T) {
	reg, src := fixture(t)
	q := query.New("Member", nil)

	page, err := Paginate[types.Row](context.Background(), reg, src, q, types.NewPageRequest(0, 10))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 0, src.counts)

	page, err = Paginate[types.Row](context.Background(), reg, src, q, types.NewPageRequest(1, 3))
	require.NoError(t, err)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.IsLast())
	assert.Equal(t, 0, src.counts)
}

func TestPaginateBeyondTotal(t *testing.T) {
	reg, src := fixture(t)
	q := query.New("Member", nil)

	page, err := Paginate[types.Row](context.Background(), reg, src, q, types.NewOffsetRequest(10, 3))
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.NotNil(t, page.Content)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.Equal(t, 1, src.counts)
}

func TestPaginateEmpty(t *testing.T) {
	reg, src := fixture(t)
	q := query.New("Member", predicate.Equals("age", 99))

	page, err := Paginate[types.Row](context.Background(), reg, src, q, types.NewPageRequest(0, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages())
}

func TestPaginateInvalidRequest(t *testing.T) {
	reg, src := fixture(t)
	q := query.New("Member", nil)

	_, err := Paginate[types.Row](context.Background(), reg, src, q, types.NewPageRequest(0, 0))
	assert.ErrorIs(t, err, types.ErrInvalidPageRequest)
	_, err = Paginate[types.Row](context.Background(), reg, src, q, types.NewOffsetRequest(-1, 3))
	assert.ErrorIs(t, err, types.ErrInvalidPageRequest)
	assert.Equal(t, 0, src.fetches)

	_, err = Paginate[types.Row](context.Background(), reg, src, query.New("Nope", nil), types.NewPageRequest(0, 3))
	assert.ErrorIs(t, err, registry.ErrUnknownEntity)
}

func TestEachSumsToTotal(t *testing.T) {
	reg, src := fixture(t)
	q := query.New("Member", nil)

	seen := 0
	pages := 0
	err := Each[types.Row](context.Background(), reg, src, q, 2, nil, func(p *types.Page[types.Row]) error {
		assert.LessOrEqual(t, len(p.Content), 2)
		seen += len(p.Content)
		pages++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, seen)
	assert.Equal(t, 3, pages)
}

func TestOrderingKeepsIdentity(t *testing.T) {
	reg, _ := fixture(t)
	ent, err := reg.Resolve("Member")
	require.NoError(t, err)

	q := query.New("Member", nil, types.Desc("id"))
	assert.Equal(t, []types.Order{types.Desc("id")}, Ordering(ent, q, types.NewPageRequest(0, 1)))

	q = query.New("Member", nil, types.Asc("age"))
	assert.Equal(t, []types.Order{types.Asc("age"), types.Desc("username"), types.Asc("id")},
		Ordering(ent, q, types.NewPageRequest(0, 1, types.Desc("username"), types.Desc("age"))))
}

func TestRowsFollowNullSemantics(t *testing.T) {
	rows := Rows{
		{"id": 1, "username": "a_c", "teamId": 1},
		{"id": 2, "username": "abc", "teamId": 2},
		{"id": 3, "username": "axc", "teamId": nil},
	}
	ctx := context.Background()

	n, err := rows.Count(ctx, query.New("Member", predicate.Not{Inner: predicate.Equals("teamId", 1)}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = rows.Count(ctx, query.New("Member", predicate.Equals("teamId", nil)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = rows.Count(ctx, query.New("Member", predicate.In("teamId", []int{})))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := rows.Fetch(ctx, query.New("Member", predicate.Like("username", predicate.WildcardPrefix.Apply("a_"))), 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0]["id"])

	got, err = rows.Fetch(ctx, query.New("Member", nil, types.Desc("id")), 1, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0]["id"])
}
