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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"github.com/znxmin/data-jpa/registry"
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// Clause renders the constraint for CreateTableQuery.ForeignKey.
func (fk *ForeignKeyConstraint) Clause() (string, []interface{}) {
	query := "(?) REFERENCES ? (?)"
	if fk.OnDelete != "" {
		query += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		query += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return query, []interface{}{bun.Ident(fk.Column), bun.Ident(fk.ReferenceTable), bun.Ident(fk.ReferenceColumn)}
}

// ConstraintsFromRegistry derives one constraint per to-one relation. A
// nullable local field gets ON DELETE SET NULL.
func ConstraintsFromRegistry(reg *registry.Registry) []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, ent := range reg.Entities() {
		for _, rel := range ent.Relations() {
			if rel.Cardinality != registry.One {
				continue
			}
			_, target, err := reg.Target(ent, rel.Name)
			if err != nil {
				continue
			}
			fk := ForeignKeyConstraint{
				Table:           ent.Table(),
				Column:          rel.LocalColumn,
				ReferenceTable:  target.Table(),
				ReferenceColumn: rel.ForeignColumn,
			}
			if f, ok := ent.FieldByColumn(rel.LocalColumn); ok && f.Nullable {
				fk.OnDelete = "SET NULL"
			}
			out = append(out, fk)
		}
	}
	return out
}

var validActions = []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

// ForeignKeyManager holds the constraints migrations apply.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

func NewForeignKeyManager(logger Logger, constraints ...ForeignKeyConstraint) *ForeignKeyManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &ForeignKeyManager{constraints: constraints, logger: logger}
}

// GetConstraintsByTable returns the constraints defined for a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.Table, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return append([]ForeignKeyConstraint(nil), fkm.constraints...)
}

// ApplyTo adds the constraints of table to a CREATE TABLE query.
func (fkm *ForeignKeyManager) ApplyTo(q *bun.CreateTableQuery, table string) *bun.CreateTableQuery {
	for _, fk := range fkm.GetConstraintsByTable(table) {
		clause, args := fk.Clause()
		q = q.ForeignKey(clause, args...)
		fkm.logger.Debug("Foreign key attached", "constraint", fk.GenerateConstraintName())
	}
	return q
}

// ValidateConstraints checks the configured constraints for common issues.
func (fkm *ForeignKeyManager) ValidateConstraints() error {
	var errs []error
	for _, c := range fkm.constraints {
		name := c.GenerateConstraintName()
		if c.Table == "" || c.Column == "" || c.ReferenceTable == "" || c.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("incomplete foreign key %s: %s.%s -> %s.%s", name, c.Table, c.Column, c.ReferenceTable, c.ReferenceColumn))
		}
		for _, action := range []string{c.OnDelete, c.OnUpdate} {
			if action != "" && !validAction(action) {
				errs = append(errs, fmt.Errorf("invalid referential action %q on %s", action, name))
			}
		}
	}
	return errors.Join(errs...)
}

func validAction(action string) bool {
	for _, a := range validActions {
		if strings.EqualFold(a, action) {
			return true
		}
	}
	return false
}

// ForeignKeyConfig is the YAML structure that lists foreign key constraints.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraintConfig `yaml:"foreign_keys"`
}

// ForeignKeyConstraintConfig describes a single foreign key in configuration.
type ForeignKeyConstraintConfig struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
}

func (fkc *ForeignKeyConstraintConfig) ToForeignKeyConstraint() ForeignKeyConstraint {
	return ForeignKeyConstraint{
		Table:           fkc.Table,
		Column:          fkc.Column,
		ReferenceTable:  fkc.ReferenceTable,
		ReferenceColumn: fkc.ReferenceColumn,
		OnDelete:        fkc.OnDelete,
		OnUpdate:        fkc.OnUpdate,
		ConstraintName:  fkc.ConstraintName,
	}
}

// LoadForeignKeyConfig reads constraints from a YAML file.
func LoadForeignKeyConfig(path string) ([]ForeignKeyConstraint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var config ForeignKeyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file %s: %w", path, err)
	}
	constraints := make([]ForeignKeyConstraint, 0, len(config.ForeignKeys))
	for _, fkConfig := range config.ForeignKeys {
		constraints = append(constraints, fkConfig.ToForeignKeyConstraint())
	}
	return constraints, nil
}

// ExportForeignKeyConfig writes constraints as YAML, creating directories
// as needed.
func ExportForeignKeyConfig(outputPath string, constraints []ForeignKeyConstraint) error {
	config := ForeignKeyConfig{ForeignKeys: make([]ForeignKeyConstraintConfig, 0, len(constraints))}
	for _, c := range constraints {
		config.ForeignKeys = append(config.ForeignKeys, ForeignKeyConstraintConfig{
			Table:           c.Table,
			Column:          c.Column,
			ReferenceTable:  c.ReferenceTable,
			ReferenceColumn: c.ReferenceColumn,
			OnDelete:        c.OnDelete,
			OnUpdate:        c.OnUpdate,
			ConstraintName:  c.ConstraintName,
			Description:     fmt.Sprintf("%s.%s -> %s.%s", c.Table, c.Column, c.ReferenceTable, c.ReferenceColumn),
		})
	}
	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
