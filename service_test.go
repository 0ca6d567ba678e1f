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

package datajpa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/domain"
	"github.com/znxmin/data-jpa/example"
	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/repository"
	"github.com/znxmin/data-jpa/types"
)

func initDB(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := domain.NewRegistry()
	require.NoError(t, err)

	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.DSN = "file:service_test?mode=memory&cache=shared"
	cfg.ConnectionConfig.EnableReconnect = false
	cfg.DataInitConfig.AutoInitOnStartup = true
	cfg.DataInitConfig.Environment = "test"

	_, err = database.InitDB(context.Background(), cfg, domain.MigrationOptions(reg)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
	return reg
}

func TestServiceOverGlobalDB(t *testing.T) {
	reg := initDB(t)
	ctx := context.Background()
	svc := NewService[domain.Member](repository.WithRegistry(reg))

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	result, err := svc.FindBy(ctx, "findByUsernameAndAgeGreaterThan", "AAA", 15)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 20, result[0].Age)

	_, err = svc.FindOneBy(ctx, "findByUsername", "AAA")
	assert.ErrorIs(t, err, query.ErrAmbiguousResult)

	require.NoError(t, svc.Save(ctx,
		domain.NewMember("member3", 30, nil),
		domain.NewMember("member4", 40, nil),
		domain.NewMember("member5", 50, nil),
	))
	page, err := svc.Page(ctx, types.NewPageRequest(0, 3, types.Desc("username")))
	require.NoError(t, err)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.True(t, page.HasNext())

	n, err := svc.CountBy(ctx, "countByTeamName", "teamA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := svc.ExistsBy(ctx, "existsByTeamIdIsNull")
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := svc.FindAll(ctx, predicate.AllOf(
		predicate.Equals("username", "AAA"),
		predicate.Equals("team.name", "teamB"),
	))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 20, found[0].Age)

	found, err = svc.FindByExample(ctx, types.Row{"username": "AAA", "age": 0}, example.Matching().WithIgnorePaths("age"))
	require.NoError(t, err)
	assert.Len(t, found, 2)

	updated, err := svc.BulkUpdate(ctx, predicate.GreaterThanEqual("age", 40), map[string]interface{}{"age": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	deleted, err := svc.DeleteBy(ctx, "deleteByAge", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	err = database.GetDB().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return svc.DeleteWithTx(ctx, &tx, all[0].ID)
	})
	require.NoError(t, err)
	left, err := svc.Query(ctx, "username = ?", "AAA")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestGatewayOverGlobalDB(t *testing.T) {
	reg := initDB(t)
	ctx := context.Background()
	gw := gateway.New(database.GetDB(), reg)

	err := gw.WithTx(ctx, func(ctx context.Context, s *gateway.Session) error {
		rows, err := s.Execute(ctx, query.New("Member", predicate.Equals("username", "AAA"), types.Asc("age")).WithFetch("team"))
		if err != nil {
			return err
		}
		require.Len(t, rows, 2)
		assert.Equal(t, "teamA", rows[0]["team"].(types.Row)["name"])
		rows[0]["age"] = int64(11)
		return nil
	})
	require.NoError(t, err)

	svc := NewService[domain.Member](repository.WithRegistry(reg))
	members, err := svc.FindBy(ctx, "findByAge", 11)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	assert.NotNil(t, NewGateway().DB())
}
