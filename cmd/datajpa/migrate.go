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
	"io"

	"github.com/spf13/cobra"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/domain"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the sample tables and optionally seed them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		seed, _ := cmd.Flags().GetBool("seed")
		exportFK, _ := cmd.Flags().GetString("export-fk")
		return runMigrate(cmd.Context(), cmd.OutOrStdout(), seed, exportFK)
	},
}

func init() {
	migrateCmd.Flags().Bool("seed", false, "Run the seed SQL after migrating")
	migrateCmd.Flags().String("export-fk", "", "Write the foreign keys derived from the entities to this YAML file and exit")
}

func runMigrate(ctx context.Context, w io.Writer, seed bool, exportFK string) error {
	if exportFK != "" {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		constraints := database.ConstraintsFromRegistry(reg)
		if err := database.ExportForeignKeyConfig(exportFK, constraints); err != nil {
			return err
		}
		fmt.Fprintf(w, "exported %d foreign keys to %s\n", len(constraints), exportFK)
		return nil
	}

	cfg, err := database.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.DataMigrateConfig.EnableMigrateOnStartup = true
	cfg.DataInitConfig.AutoInitOnStartup = seed

	reg, err := domain.NewRegistry()
	if err != nil {
		return err
	}
	db, err := database.InitDB(ctx, cfg, domain.MigrationOptions(reg)...)
	if err != nil {
		return err
	}
	defer func() { _ = database.CloseDB() }()

	applied, err := database.NewMigrationManager(db, nil).GetAppliedMigrations(ctx)
	if err != nil {
		return database.Classify(err)
	}
	for _, m := range applied {
		fmt.Fprintf(w, "%s  %-20s %s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}

	drift, err := database.CheckSchema(ctx, db, reg)
	if err != nil {
		return err
	}
	for _, d := range drift {
		if !d.OK() {
			database.GetLogger().Warn("schema drift", "table", d.Table, "detail", d.String())
		}
		fmt.Fprintln(w, d.String())
	}
	return nil
}
