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
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ConnectionConfig describes how to connect to a database and tune its pool.
// Every field can be overridden by the environment variable in its env tag.
type ConnectionConfig struct {
	Type                string        `yaml:"type" json:"type" env:"DB_TYPE"` // postgres, pgx, mysql, sqlite
	Host                string        `yaml:"host" json:"host" env:"DB_HOST"`
	Port                int           `yaml:"port" json:"port" env:"DB_PORT"`
	Username            string        `yaml:"username" json:"username" env:"DB_USERNAME"`
	Password            string        `yaml:"password" json:"password" env:"DB_PASSWORD"`
	DBName              string        `yaml:"dbname" json:"dbname" env:"DB_NAME"`
	SSLMode             string        `yaml:"sslmode" json:"sslmode" env:"DB_SSLMODE"`
	DSN                 string        `yaml:"dsn" json:"dsn" env:"DB_DSN"` // wins over the discrete fields
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns        int           `yaml:"max_open_conns" json:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout" json:"connect_timeout" env:"DB_CONNECT_TIMEOUT"`
	ReadTimeout         time.Duration `yaml:"read_timeout" json:"read_timeout" env:"DB_READ_TIMEOUT"`
	WriteTimeout        time.Duration `yaml:"write_timeout" json:"write_timeout" env:"DB_WRITE_TIMEOUT"`
	EnableReconnect     bool          `yaml:"enable_reconnect" json:"enable_reconnect" env:"DB_ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" json:"reconnect_interval" env:"DB_RECONNECT_INTERVAL"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries" json:"max_reconnect_tries" env:"DB_MAX_RECONNECT_TRIES"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval" env:"DB_HEALTH_CHECK_INTERVAL"`
	EnableQueryLog      bool          `yaml:"enable_query_log" json:"enable_query_log" env:"DB_ENABLE_QUERY_LOG"`
	QueryLogStyle       string        `yaml:"query_log_style" json:"query_log_style" env:"DB_QUERY_LOG_STYLE"` // color or bundebug
	SlowQueryTime       time.Duration `yaml:"slow_query_time" json:"slow_query_time" env:"DB_SLOW_QUERY_TIME"`
	EnableMetrics       bool          `yaml:"enable_metrics" json:"enable_metrics" env:"DB_ENABLE_METRICS"`
}

// DataMigrateConfig controls schema migration on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `yaml:"enable_migrate_on_startup" json:"enable_migrate_on_startup" env:"DB_MIGRATE_ON_STARTUP"`
	EnableForeignKey       bool   `yaml:"enable_foreign_key" json:"enable_foreign_key" env:"DB_ENABLE_FOREIGN_KEY"`
	ForeignKeyFile         string `yaml:"foreign_key_file" json:"foreign_key_file" env:"DB_FOREIGN_KEY_FILE"`
}

// DataInitConfig controls data seeding and environment selection.
type DataInitConfig struct {
	AutoInitOnStartup   bool   `yaml:"auto_init_on_startup" json:"auto_init_on_startup" env:"DB_INIT_ON_STARTUP"`
	AutoInitOnMigration bool   `yaml:"auto_init_on_migration" json:"auto_init_on_migration" env:"DB_INIT_ON_MIGRATION"`
	Filepath            string `yaml:"filepath" json:"filepath" env:"DB_INIT_PATH"`
	Environment         string `yaml:"environment" json:"environment" env:"DB_INIT_ENV"`
}

// Config aggregates connection, migration, and data initialization settings.
type Config struct {
	ConnectionConfig  ConnectionConfig  `yaml:"connection_config" json:"connection_config"`
	DataMigrateConfig DataMigrateConfig `yaml:"data_migrate_config" json:"data_migrate_config"`
	DataInitConfig    DataInitConfig    `yaml:"data_init_config" json:"data_init_config"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                "sqlite",
		DBName:              "datajpa",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultConfig returns defaults for every section.
func DefaultConfig() *Config {
	return &Config{
		ConnectionConfig: *DefaultConnectionConfig(),
		DataMigrateConfig: DataMigrateConfig{
			EnableMigrateOnStartup: true,
			EnableForeignKey:       true,
		},
		DataInitConfig: DataInitConfig{
			Filepath:    "configs/sql",
			Environment: "prod",
		},
	}
}

// LoadConfig reads a YAML or JSON file on top of DefaultConfig and then
// applies environment overrides. An empty path reads the environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read database config from environment: %w", err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read database config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from the DB_* environment variables.
func ApplyEnv(cfg *ConnectionConfig) error {
	return cleanenv.ReadEnv(cfg)
}
