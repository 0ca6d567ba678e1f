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

package domain

import (
	"embed"
	"io/fs"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/registry"
)

//go:embed entities.yaml
var entitiesYAML []byte

//go:embed sql
var seedFiles embed.FS

// Descriptors parses the embedded entity descriptors.
func Descriptors() ([]*registry.EntityDescriptor, error) {
	return registry.ParseYAML(entitiesYAML)
}

// Register adds Team, Member and Item to reg and validates the relations.
func Register(reg *registry.Registry) error {
	ds, err := Descriptors()
	if err != nil {
		return err
	}
	if err := reg.RegisterAll(ds...); err != nil {
		return err
	}
	return reg.Validate()
}

// NewRegistry returns a registry holding only the sample entities.
func NewRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Models lists the bun models in table creation order.
func Models() []database.SQLModel {
	return database.Models((*Team)(nil), (*Member)(nil), (*Item)(nil))
}

// SeedFS is the embedded seed SQL tree (common/ and environments/<env>/).
func SeedFS() fs.FS {
	sub, err := fs.Sub(seedFiles, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// MigrationOptions creates the sample tables with foreign keys derived from
// reg and seeds them from SeedFS.
func MigrationOptions(reg *registry.Registry) []database.MigrationOption {
	return []database.MigrationOption{
		database.WithModels(Models()...),
		database.WithForeignKeys(database.ConstraintsFromRegistry(reg)...),
		database.WithSeedFS(SeedFS()),
	}
}
