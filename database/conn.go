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
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
	globalConfig  *Config
)

// GetDB returns the global bun database, or nil before InitDB.
func GetDB() *bun.DB {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetDB()
}

// GetDatabaseManager returns the global database manager.
func GetDatabaseManager() AbstractDatabaseManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory == nil {
		return nil
	}
	return globalFactory.GetManager()
}

// MigrationOptionsFromConfig translates the migrate and data-init sections.
func MigrationOptionsFromConfig(cfg *Config) ([]MigrationOption, error) {
	opts := []MigrationOption{
		WithEnvironment(cfg.DataInitConfig.Environment),
		WithSeedOnMigration(cfg.DataInitConfig.AutoInitOnMigration),
	}
	if cfg.DataInitConfig.Filepath != "" {
		opts = append(opts, WithSeedDir(cfg.DataInitConfig.Filepath))
	}
	if cfg.DataMigrateConfig.EnableForeignKey && cfg.DataMigrateConfig.ForeignKeyFile != "" {
		constraints, err := LoadForeignKeyConfig(cfg.DataMigrateConfig.ForeignKeyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithForeignKeys(constraints...))
	}
	return opts, nil
}

// InitDB connects the global database described by cfg. Extra options are
// applied after those derived from cfg.
func InitDB(ctx context.Context, cfg *Config, opts ...MigrationOption) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	derived, err := MigrationOptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	manager.SetMigrationOptions(append(derived, opts...)...)

	if err := factory.InitializeDatabase(ctx, cfg.DataMigrateConfig.EnableMigrateOnStartup); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.DataInitConfig.AutoInitOnStartup {
		if err := manager.InitData(ctx); err != nil {
			return nil, err
		}
	}

	globalMu.Lock()
	if globalFactory != nil {
		_ = globalFactory.Close()
	}
	globalFactory, globalConfig = factory, cfg
	globalMu.Unlock()
	return manager.GetDB(), nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalFactory == nil {
		return nil
	}
	err := globalFactory.Close()
	globalFactory, globalConfig = nil, nil
	return err
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	globalMu.RLock()
	factory := globalFactory
	globalMu.RUnlock()
	if factory == nil {
		return &HealthStatus{LastError: "Database not initialized"}
	}
	return factory.GetHealthStatus(ctx)
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	globalMu.RLock()
	factory := globalFactory
	globalMu.RUnlock()
	if factory == nil {
		return &DBStats{}
	}
	return factory.GetStats()
}

// InitData seeds data for the configured environment.
func InitData(ctx context.Context) error {
	globalMu.RLock()
	factory, cfg := globalFactory, globalConfig
	globalMu.RUnlock()
	if factory == nil || cfg == nil {
		return fmt.Errorf("%w: database not initialized", ErrStorageUnavailable)
	}
	return factory.GetManager().InitData(ctx)
}
