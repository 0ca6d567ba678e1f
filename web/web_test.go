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

package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/domain"
)

type pageBody[T any] struct {
	Content       []T  `json:"content"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Number        int  `json:"number"`
	Size          int  `json:"size"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

func setup(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	db.AddQueryHook(database.NewMetricsHook())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	reg, err := domain.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, database.NewMigrationManager(db, nil, domain.MigrationOptions(reg)...).RunMigrations(ctx))

	members, err := domain.NewMemberRepository(db, reg)
	require.NoError(t, err)
	teamA := &domain.Team{Name: "teamA"}
	_, err = db.NewInsert().Model(teamA).Exec(ctx)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		var team *domain.Team
		if i < 3 {
			team = teamA
		}
		require.NoError(t, members.Save(ctx, domain.NewMember(fmt.Sprintf("user%d", i), i, team)))
	}

	s := NewServer(members)
	var buf bytes.Buffer
	s.logger.SetOutput(&buf)
	return s, &buf
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestFindMember(t *testing.T) {
	s, logs := setup(t)

	rec := get(t, s, "/members/1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user0", rec.Body.String())
	assert.Contains(t, logs.String(), "req_uri=/members/1")
	assert.Contains(t, logs.String(), "status_code=200")

	rec = get(t, s, "/members/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s, "/members/abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMembersDefaults(t *testing.T) {
	s, _ := setup(t)

	rec := get(t, s, "/members-old")
	require.Equal(t, http.StatusOK, rec.Code)
	var page pageBody[domain.Member]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))

	names := make([]string, len(page.Content))
	for i, m := range page.Content {
		names[i] = m.Username
	}
	assert.Equal(t, []string{"user9", "user8", "user7", "user6", "user5"}, names)
	assert.Equal(t, 12, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 5, page.Size)
	assert.True(t, page.First)
}

func TestListMemberDto(t *testing.T) {
	s, _ := setup(t)

	rec := get(t, s, "/members?page=0&size=4&sort=id,asc")
	require.Equal(t, http.StatusOK, rec.Code)
	var page pageBody[domain.MemberDto]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Content, 4)
	assert.Equal(t, domain.MemberDto{ID: 1, Username: "user0", TeamName: "teamA"}, page.Content[0])
	assert.Equal(t, domain.MemberDto{ID: 4, Username: "user3"}, page.Content[3])
	assert.Equal(t, 12, page.TotalElements)

	rec = get(t, s, "/members?page=2&size=5&sort=id")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Content, 2)
	assert.True(t, page.Last)
}

func TestBadPageParameters(t *testing.T) {
	s, logs := setup(t)

	for _, target := range []string{
		"/members?size=abc",
		"/members?page=-1",
		"/members?sort=nickname,desc",
		"/members-old?sort=username,sideways",
		"/members?page=9223372036854775807&size=20",
		"/members-old?page=4611686018427387904&size=2",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Contains(t, logs.String(), "status_code=400")
}

func TestMetrics(t *testing.T) {
	s, _ := setup(t)
	get(t, s, "/members/1")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "datajpa_queries_total")

	rec = get(t, s, "/health")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
