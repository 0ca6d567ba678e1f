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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/domain"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/utils"
)

var (
	configPath   string
	entitiesPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "datajpa",
	Short: "Derived queries, paging and projections over bun",
	Long: `datajpa runs the member/team sample: it migrates and seeds the database,
serves members over HTTP and prints the predicate and SQL derived from
repository method names.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(logLevel)
	},
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		utils.EnvDefaultString("DATAJPA_CONFIG", ""), "Database config file (YAML or JSON); DB_* variables override it")
	rootCmd.PersistentFlags().StringVar(&entitiesPath, "entities", "", "Entity descriptor YAML (default: the member/team sample)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// setupLogging routes library logs through zap and sets the level of the
// logrus loggers.
func setupLogging(level string) error {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	database.InitLogger(database.NewZapLogger(logger))
	utils.ConfigureLogLevel(level)
	return nil
}

// loadRegistry reads entitiesPath, or the sample descriptors without it.
func loadRegistry() (*registry.Registry, error) {
	if entitiesPath == "" {
		return domain.NewRegistry()
	}
	ds, err := registry.LoadYAML(entitiesPath)
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	if err := reg.RegisterAll(ds...); err != nil {
		return nil, err
	}
	return reg, reg.Validate()
}
