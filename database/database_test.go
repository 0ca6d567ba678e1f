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

package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/znxmin/data-jpa/registry"
)

type testTeam struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type testMember struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Username string `bun:"username,notnull"`
	Age      int    `bun:"age"`
	TeamID   *int64 `bun:"team_id"`
}

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterAll(
		registry.NewEntity("Member").
			Identity("id", registry.TypeInt).
			Field("username", registry.TypeString).
			Field("age", registry.TypeInt).
			Nullable("teamId", registry.TypeInt).
			ToOne("team", "Team", "team_id=id").
			MustBuild(),
		registry.NewEntity("Team").
			Identity("id", registry.TypeInt).
			Field("name", registry.TypeString).
			ToMany("members", "Member", "id=team_id").
			MustBuild(),
	))
	return reg
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"pq unique", &pq.Error{Code: "23505"}, ErrStorageConstraintViolation},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, ErrStorageConstraintViolation},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, ErrStorageConstraintViolation},
		{"sqlite not null", errors.New("NOT NULL constraint failed: members.username"), ErrStorageConstraintViolation},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), ErrStorageUnavailable},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrStorageUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.ErrorIs(t, got, tc.want)
			assert.ErrorIs(t, got, tc.err)
		})
	}

	plain := errors.New("syntax error")
	assert.Same(t, plain, Classify(plain))
	assert.Equal(t, context.Canceled, Classify(context.Canceled))
	assert.Equal(t, sql.ErrNoRows, Classify(sql.ErrNoRows))
	assert.NoError(t, Classify(nil))

	once := Classify(&pq.Error{Code: "23505"})
	assert.Same(t, once, Classify(once))
}

func TestIsSqlError(t *testing.T) {
	is, class := IsSqlError(&mysql.MySQLError{Number: 1146})
	assert.True(t, is)
	assert.Equal(t, NoTableErr, class)

	is, class = IsSqlError(errors.New("no such column: nickname"))
	assert.True(t, is)
	assert.Equal(t, NoColumnErr, class)
	assert.False(t, class.IsConstraint())

	is, _ = IsSqlError(errors.New("boom"))
	assert.False(t, is)
}

func TestBuildDSN(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Type, cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBName = "postgres", "db", 5432, "u", "p", "app"
	name, dsn, err := BuildDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)
	assert.Equal(t, "postgres://u:p@db:5432/app?connect_timeout=10&sslmode=disable", dsn)

	cfg.Type = "pgx"
	name, _, err = BuildDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "pgx", name)

	cfg.Type, cfg.Port = "mysql", 3306
	name, dsn, err = BuildDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mysql", name)
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/app?")
	assert.Contains(t, dsn, "parseTime=true")

	cfg.Type = "sqlite"
	_, dsn, _ = BuildDSN(cfg)
	assert.Equal(t, "app.db", dsn)
	cfg.DSN = "file:test?mode=memory"
	name, dsn, _ = BuildDSN(cfg)
	assert.Equal(t, sqliteshim.ShimName, name)
	assert.Equal(t, "file:test?mode=memory", dsn)

	cfg.Type = "oracle"
	_, _, err = BuildDSN(cfg)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection_config:
  type: postgres
  host: filehost
  port: 5433
  slow_query_time: 500ms
data_init_config:
  environment: test
`), 0o644))
	t.Setenv("DB_HOST", "envhost")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.ConnectionConfig.Type)
	assert.Equal(t, "envhost", cfg.ConnectionConfig.Host)
	assert.Equal(t, 5433, cfg.ConnectionConfig.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectionConfig.SlowQueryTime)
	assert.Equal(t, 100, cfg.ConnectionConfig.MaxOpenConns)
	assert.Equal(t, "test", cfg.DataInitConfig.Environment)
	assert.True(t, cfg.DataMigrateConfig.EnableMigrateOnStartup)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConstraintsFromRegistry(t *testing.T) {
	fks := ConstraintsFromRegistry(testRegistry(t))
	require.Len(t, fks, 1)
	assert.Equal(t, ForeignKeyConstraint{
		Table:           "members",
		Column:          "team_id",
		ReferenceTable:  "teams",
		ReferenceColumn: "id",
		OnDelete:        "SET NULL",
	}, fks[0])
	assert.Equal(t, "fk_members_team_id", fks[0].GenerateConstraintName())

	clause, args := fks[0].Clause()
	assert.Equal(t, "(?) REFERENCES ? (?) ON DELETE SET NULL", clause)
	assert.Len(t, args, 3)

	bad := NewForeignKeyManager(nil, ForeignKeyConstraint{Table: "members", Column: "team_id", OnDelete: "EXPLODE"})
	assert.Error(t, bad.ValidateConstraints())
}

func TestForeignKeyConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fk", "foreign_keys.yaml")
	fks := ConstraintsFromRegistry(testRegistry(t))
	require.NoError(t, ExportForeignKeyConfig(path, fks))

	loaded, err := LoadForeignKeyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, fks, loaded)
}

func TestMigrationsCreateTablesAndSeed(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	seed := fstest.MapFS{
		"common/010_teams.sql":               {Data: []byte("-- teams\nINSERT INTO teams (id, name) VALUES (1, 'teamA');\nINSERT INTO teams (id, name) VALUES (2, 'teamB');\n")},
		"environments/test/020_members.sql":  {Data: []byte("INSERT INTO members (username, age, team_id)\nVALUES ('{{.ENVIRONMENT}}-member', 10, 1);\n")},
		"environments/other/020_members.sql": {Data: []byte("INSERT INTO members (username, age) VALUES ('other', 1);\n")},
		"environments/test/readme.txt":       {Data: []byte("ignored")},
	}
	mm := NewMigrationManager(db, nil,
		WithModels(Models((*testTeam)(nil), (*testMember)(nil))...),
		WithForeignKeys(ConstraintsFromRegistry(testRegistry(t))...),
		WithSeedFS(seed),
		WithEnvironment("test"),
		WithSeedOnMigration(true),
	)
	require.NoError(t, mm.RunMigrations(ctx))
	require.NoError(t, mm.RunMigrations(ctx))

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "create_base_tables", applied[0].Name)

	teams, err := db.NewSelect().Model((*testTeam)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, teams)

	var members []testMember
	require.NoError(t, db.NewSelect().Model(&members).Scan(ctx))
	require.Len(t, members, 1)
	assert.Equal(t, "test-member", members[0].Username)
}

func TestSQLInitManagerMissingDirs(t *testing.T) {
	db := openSQLite(t)
	s := NewSQLInitManager(db, "prod")
	s.SetFS(fstest.MapFS{})
	files, err := s.GetSQLFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.NoError(t, s.ExecuteInitialization(context.Background()))
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements("-- comment\nINSERT INTO a\nVALUES (1);\n\nDELETE FROM b;\nSELECT 1")
	assert.Equal(t, []string{"INSERT INTO a VALUES (1);", "DELETE FROM b;", "SELECT 1"}, stmts)
	assert.Equal(t, 10, parseFileOrder("010_teams.sql"))
	assert.Equal(t, 999, parseFileOrder("teams.sql"))
}

func TestCountingAndMetricsHooks(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	counter := NewCountingHook()
	db.AddQueryHook(counter)
	db.AddQueryHook(NewMetricsHook())

	before := testutil.ToFloat64(queriesTotal.WithLabelValues("select"))
	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(ctx, &n))
	require.NoError(t, db.NewSelect().ColumnExpr("2").Scan(ctx, &n))
	_, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	assert.Equal(t, 2, counter.Count("select"))
	assert.Equal(t, 3, counter.Count(""))
	assert.Len(t, counter.Queries(), 3)
	assert.Equal(t, before+2, testutil.ToFloat64(queriesTotal.WithLabelValues("select")))

	counter.Reset()
	assert.Zero(t, counter.Count(""))
}

func TestManagerConnectSQLite(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.DSN = "file:manager_test?mode=memory&cache=shared"
	cfg.HealthCheckInterval = 0
	manager := NewDatabaseManager(cfg)
	counter := NewCountingHook()
	manager.AddQueryHook(counter)

	ctx := context.Background()
	require.NoError(t, manager.Connect(ctx))
	defer manager.Disconnect()

	assert.NoError(t, manager.Ping(ctx))
	status := manager.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 100, manager.GetStats().MaxOpenConns)

	manager.SetMigrationOptions(WithModels(Models((*testTeam)(nil))...), WithSeedFS(fstest.MapFS{}))
	require.NoError(t, manager.RunMigrations(ctx))
	assert.Positive(t, counter.Count(""))

	require.NoError(t, manager.Disconnect())
	assert.ErrorIs(t, manager.Ping(ctx), ErrStorageUnavailable)
}

func TestMigrationsUseRegisteredModels(t *testing.T) {
	RegisteredModel(NewModelAdapter((*testMember)(nil), 1))
	RegisteredModel(NewModelAdapter((*testTeam)(nil), 0))
	RegisteredModel(NewModelAdapter((*testTeam)(nil), 5))

	models := GetRegisteredModels()
	require.Len(t, models, 2)
	assert.Equal(t, 0, models[0].Priority())

	db := openSQLite(t)
	mm := NewMigrationManager(db, nil)
	require.NoError(t, mm.RunMigrations(context.Background()))

	_, err := db.NewInsert().Model(&testTeam{Name: "teamA"}).Exec(context.Background())
	assert.NoError(t, err)
}

func TestCheckSchema(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	mm := NewMigrationManager(db, nil, WithModels(Models((*testTeam)(nil), (*testMember)(nil))...))
	require.NoError(t, mm.RunMigrations(ctx))

	drift, err := CheckSchema(ctx, db, testRegistry(t))
	require.NoError(t, err)
	require.Len(t, drift, 2)
	for _, d := range drift {
		assert.True(t, d.OK(), d.String())
		assert.Empty(t, d.Extra, d.String())
	}

	reg := registry.New()
	require.NoError(t, reg.RegisterAll(
		registry.NewEntity("Member").
			Identity("id", registry.TypeInt).
			Nullable("username", registry.TypeString).
			Field("email", registry.TypeString).
			MustBuild(),
		registry.NewEntity("Ghost").
			Identity("id", registry.TypeInt).
			MustBuild(),
	))
	drift, err = CheckSchema(ctx, db, reg)
	require.NoError(t, err)
	byEntity := map[string]TableDrift{}
	for _, d := range drift {
		byEntity[d.Entity] = d
	}

	member := byEntity["Member"]
	assert.False(t, member.OK())
	assert.Equal(t, []string{"email"}, member.Missing)
	assert.Equal(t, []string{"username"}, member.NotNull)
	assert.Equal(t, []string{"age", "team_id"}, member.Extra)
	assert.Contains(t, member.String(), "missing columns email")

	ghost := byEntity["Ghost"]
	assert.True(t, ghost.Absent)
	assert.False(t, ghost.OK())
	assert.Equal(t, "Ghost: table ghosts does not exist", ghost.String())
}
