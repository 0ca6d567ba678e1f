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
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// MigrationManager coordinates schema migrations and data initialization.
type MigrationManager struct {
	db              *bun.DB
	logger          Logger
	environment     string
	models          []SQLModel
	foreignKeys     *ForeignKeyManager
	seedFS          fs.FS
	seedOnMigration bool
	extra           []MigrationItem
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

type MigrationOption func(*MigrationManager)

// WithModels replaces the models of the default model registry.
func WithModels(models ...SQLModel) MigrationOption {
	return func(mm *MigrationManager) { mm.models = models }
}

// WithForeignKeys attaches constraints to the tables they belong to.
func WithForeignKeys(constraints ...ForeignKeyConstraint) MigrationOption {
	return func(mm *MigrationManager) {
		mm.foreignKeys = NewForeignKeyManager(mm.logger, append(mm.foreignKeys.ListAllConstraints(), constraints...)...)
	}
}

// WithSeedFS reads seed SQL from fsys (common/ and environments/<env>/).
func WithSeedFS(fsys fs.FS) MigrationOption {
	return func(mm *MigrationManager) { mm.seedFS = fsys }
}

// WithSeedDir reads seed SQL from a directory on disk.
func WithSeedDir(path string) MigrationOption {
	return func(mm *MigrationManager) { mm.seedFS = os.DirFS(path) }
}

func WithEnvironment(env string) MigrationOption {
	return func(mm *MigrationManager) {
		if env != "" {
			mm.environment = env
		}
	}
}

// WithSeedOnMigration seeds data as part of the migration run.
func WithSeedOnMigration(on bool) MigrationOption {
	return func(mm *MigrationManager) { mm.seedOnMigration = on }
}

// WithMigrations adds application migrations. Versions sort as strings
// after the built-in ones when they start with a higher number.
func WithMigrations(items ...MigrationItem) MigrationOption {
	return func(mm *MigrationManager) { mm.extra = append(mm.extra, items...) }
}

// NewMigrationManager constructs a MigrationManager. The default environment
// is "development" and seed SQL is read from configs/sql.
func NewMigrationManager(db *bun.DB, logger Logger, opts ...MigrationOption) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	mm := &MigrationManager{
		db:          db,
		logger:      logger,
		environment: "development",
		seedFS:      os.DirFS("configs/sql"),
	}
	mm.foreignKeys = NewForeignKeyManager(logger)
	for _, opt := range opts {
		opt(mm)
	}
	return mm
}

// RunMigrations creates the tracking table if needed and executes every
// pending migration in ascending version order, each in its own transaction.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("%w: database not initialized", ErrStorageUnavailable)
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}
	if err := mm.foreignKeys.ValidateConstraints(); err != nil {
		return fmt.Errorf("foreign key constraint validation failed: %w", err)
	}
	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", Classify(err))
	}

	migrations := mm.getAllMigrations()
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, Classify(err))
		}
	}

	mm.logger.Info("Database migrations completed!", "count", len(migrations))
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     "001",
			Name:        "create_base_tables",
			Description: "Create base table structure",
			Up:          mm.createBaseTables,
		},
	}
	if mm.seedOnMigration {
		migrations = append(migrations, MigrationItem{
			Version:     "002",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up:          mm.seedInitialData,
		})
	}
	return append(migrations, mm.extra...)
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

func (mm *MigrationManager) modelInstances() []interface{} {
	if mm.models == nil {
		return RegisteredModelInstances()
	}
	reg := NewModelRegistry()
	for _, m := range mm.models {
		reg.Register(m)
	}
	return reg.Instances()
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	for _, model := range mm.modelInstances() {
		typ := reflect.TypeOf(model)
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		table := mm.db.Table(typ).Name
		q := db.NewCreateTable().Model(model).IfNotExists()
		q = mm.foreignKeys.ApplyTo(q, table)
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

// InitData seeds data outside of the migration run.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("%w: database not initialized", ErrStorageUnavailable)
	}
	return mm.seedInitialData(ctx, mm.db)
}

func (mm *MigrationManager) seedInitialData(ctx context.Context, db bun.IDB) error {
	sqlManager := NewSQLInitManager(db, mm.environment)
	sqlManager.SetFS(mm.seedFS)
	sqlManager.SetLogger(mm.logger)

	mm.logger.Info("Starting data initialization using SQL files", "environment", mm.environment)
	if err := sqlManager.ExecuteInitialization(ctx); err != nil {
		return fmt.Errorf("SQL file initialization failed: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
