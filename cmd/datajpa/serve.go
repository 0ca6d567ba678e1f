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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/domain"
	"github.com/znxmin/data-jpa/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate, seed and serve the sample members over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		seed, _ := cmd.Flags().GetInt("seed-members")
		return runServe(cmd.Context(), addr, seed)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().Int("seed-members", 100, "Members to create when the table is empty")
}

func runServe(ctx context.Context, addr string, seed int) error {
	cfg, err := database.LoadConfig(configPath)
	if err != nil {
		return err
	}
	reg, err := domain.NewRegistry()
	if err != nil {
		return err
	}
	db, err := database.InitDB(ctx, cfg, domain.MigrationOptions(reg)...)
	if err != nil {
		return err
	}
	defer func() { _ = database.CloseDB() }()

	members, err := domain.NewMemberRepository(db, reg)
	if err != nil {
		return err
	}
	if err := seedMembers(ctx, members, seed); err != nil {
		return err
	}
	return web.NewServer(members).ListenAndServe(ctx, addr)
}

// seedMembers creates user0..user<n-1> unless members already exist.
func seedMembers(ctx context.Context, members *domain.MemberRepository, n int) error {
	if n <= 0 {
		return nil
	}
	count, err := members.Count(ctx)
	if err != nil || count > 0 {
		return err
	}
	batch := make([]*domain.Member, n)
	for i := range batch {
		batch[i] = domain.NewMember(fmt.Sprintf("user%d", i), i, nil)
	}
	if err := members.Create(ctx, batch...); err != nil {
		return err
	}
	database.GetLogger().Info("Seeded members", "count", n)
	return nil
}
