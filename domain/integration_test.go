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

//go:build integration

package domain

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/types"
)

type backend struct {
	name  string
	image string
	port  string
	env   map[string]string
	wait  wait.Strategy
	dsn   func(host, port string) string
}

var backends = []backend{
	{
		name:  "pgx",
		image: "postgres:16-alpine",
		port:  "5432/tcp",
		env: map[string]string{
			"POSTGRES_DB":       "datajpa",
			"POSTGRES_USER":     "datajpa",
			"POSTGRES_PASSWORD": "datajpa",
		},
		wait: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		dsn: func(host, port string) string {
			return fmt.Sprintf("postgres://datajpa:datajpa@%s:%s/datajpa?sslmode=disable", host, port)
		},
	},
	{
		name:  "mysql",
		image: "mysql:8.4",
		port:  "3306/tcp",
		env: map[string]string{
			"MYSQL_DATABASE":      "datajpa",
			"MYSQL_USER":          "datajpa",
			"MYSQL_PASSWORD":      "datajpa",
			"MYSQL_ROOT_PASSWORD": "datajpa",
		},
		wait: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(120 * time.Second),
		dsn: func(host, port string) string {
			return fmt.Sprintf("datajpa:datajpa@tcp(%s:%s)/datajpa?parseTime=true", host, port)
		},
	},
}

func startBackend(t *testing.T, b backend) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        b.image,
			ExposedPorts: []string{b.port},
			Env:          b.env,
			WaitingFor:   b.wait,
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(endpoint)
	require.NoError(t, err)

	cfg := database.DefaultConnectionConfig()
	cfg.Type = b.name
	cfg.DSN = b.dsn(host, port)
	cfg.EnableReconnect = false

	manager := database.NewDatabaseManager(cfg)
	require.NoError(t, manager.Connect(ctx))
	t.Cleanup(func() { _ = manager.Disconnect() })

	reg, err := NewRegistry()
	require.NoError(t, err)
	manager.SetMigrationOptions(append(MigrationOptions(reg), database.WithEnvironment("test"))...)
	require.NoError(t, manager.RunMigrations(ctx))
	require.NoError(t, manager.InitData(ctx))
	return manager.GetDB()
}

func TestBackends(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			db := startBackend(t, b)
			ctx := context.Background()
			reg, err := NewRegistry()
			require.NoError(t, err)
			members, err := NewMemberRepository(db, reg)
			require.NoError(t, err)

			result, err := members.FindByUsernameAndAgeGreaterThan(ctx, "AAA", 15)
			require.NoError(t, err)
			require.Len(t, result, 1)
			assert.Equal(t, 20, result[0].Age)

			page, err := members.FindByAge(ctx, 10, types.NewPageRequest(0, 1))
			require.NoError(t, err)
			assert.Equal(t, 1, page.Total)

			dtos, err := members.FindMemberDto(ctx)
			require.NoError(t, err)
			require.Len(t, dtos, 2)
			assert.Equal(t, "teamA", dtos[0].TeamName)

			err = members.Gateway().WithTx(ctx, func(ctx context.Context, s *gateway.Session) error {
				rows, err := members.FindLockByUsername(ctx, s, "AAA")
				if err != nil {
					return err
				}
				assert.Len(t, rows, 2)
				return nil
			})
			require.NoError(t, err)

			n, err := members.BulkAgePlus(ctx, 20)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}
