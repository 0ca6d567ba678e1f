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

package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/domain"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
)

func TestDeriveRendersSQL(t *testing.T) {
	var out bytes.Buffer
	err := runDerive(&out, "pg", "Member", "findByUsernameAndAgeGreaterThan", []string{"AAA", "15"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "arguments:  2\n")
	assert.Contains(t, out.String(),
		`sql:        SELECT "m".* FROM "members" AS "m" WHERE ("m"."username" = 'AAA' AND "m"."age" > 15)`)

	out.Reset()
	err = runDerive(&out, "mysql", "Member", "findTop3ByTeamNameOrderByAgeDesc", []string{"teamA"}, query.Fetch("team"))
	require.NoError(t, err)
	assert.Contains(t, out.String(),
		"LEFT JOIN `teams` AS `team` ON `team`.`id` = `m`.`team_id` WHERE `team`.`name` = 'teamA' ORDER BY `m`.`age` DESC LIMIT 3")
	assert.Contains(t, out.String(), "fetch:      team\n")

	out.Reset()
	require.NoError(t, runDerive(&out, "pg", "Member", "findByUsername", nil))
	assert.NotContains(t, out.String(), "sql:")

	assert.ErrorIs(t, runDerive(&out, "pg", "Member", "findByNickname", nil), query.ErrUnknownField)
	assert.ErrorIs(t, runDerive(&out, "pg", "Robot", "findAll", nil), registry.ErrUnknownEntity)
	assert.Error(t, runDerive(&out, "oracle", "Member", "findAll", nil))
}

func TestParseArg(t *testing.T) {
	assert.Equal(t, int64(15), parseArg("15"))
	assert.Equal(t, 1.5, parseArg("1.5"))
	assert.Equal(t, true, parseArg("true"))
	assert.Equal(t, "AAA", parseArg("AAA"))
	assert.Equal(t, []interface{}{"a", int64(2)}, parseArg("a, 2"))
}

func TestMigrateExportsForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign_keys.yaml")
	var out bytes.Buffer
	require.NoError(t, runMigrate(context.Background(), &out, false, path))
	assert.Contains(t, out.String(), "exported 1 foreign keys")

	loaded, err := database.LoadForeignKeyConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "members", loaded[0].Table)
}

func TestMigrateAndSeed(t *testing.T) {
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_DSN", "file:cli_migrate?mode=memory&cache=shared")
	t.Setenv("DB_INIT_ENV", "development")
	t.Setenv("DB_ENABLE_RECONNECT", "false")

	var out bytes.Buffer
	require.NoError(t, runMigrate(context.Background(), &out, true, ""))
	assert.Contains(t, out.String(), "001  create_base_tables")
	assert.Contains(t, out.String(), "Member: table members ok")
	assert.Contains(t, out.String(), "Item: table items ok")
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entities:
  - name: Book
    identity: id
    fields:
      - {name: id, type: int}
      - {name: title, type: string}
`), 0o644))
	entitiesPath = path
	t.Cleanup(func() { entitiesPath = "" })

	reg, err := loadRegistry()
	require.NoError(t, err)
	ent, err := reg.Resolve("Book")
	require.NoError(t, err)
	assert.Equal(t, "books", ent.Table())
	assert.Equal(t, "b", ent.Alias())
}

func TestSeedMembers(t *testing.T) {
	sqlDB, err := sql.Open(sqliteshim.ShimName, "file:cli_seed?mode=memory&cache=shared")
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	reg, err := domain.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, database.NewMigrationManager(db, nil, domain.MigrationOptions(reg)...).RunMigrations(ctx))
	members, err := domain.NewMemberRepository(db, reg)
	require.NoError(t, err)

	require.NoError(t, seedMembers(ctx, members, 3))
	require.NoError(t, seedMembers(ctx, members, 3))
	n, err := members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	last, err := members.FindMembers(ctx, "user2")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Age)
}
