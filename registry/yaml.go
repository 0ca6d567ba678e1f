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

package registry

import (
	"fmt"
	"os"

	"github.com/znxmin/data-jpa/types"
	"gopkg.in/yaml.v3"
)

// EntitiesFile is the YAML layout of a descriptor document:
//
//	entities:
//	  - name: Member
//	    identity: id
//	    fields:
//	      - {name: id, type: int}
//	      - {name: username, type: string}
//	    relations:
//	      - {name: team, target: Team, cardinality: one, join: team_id=id}
type EntitiesFile struct {
	Entities []EntitySpec `yaml:"entities"`
}

type EntitySpec struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	Alias     string         `yaml:"alias"`
	Identity  string         `yaml:"identity"`
	Fields    []FieldSpec    `yaml:"fields"`
	Relations []RelationSpec `yaml:"relations"`
}

type FieldSpec struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

type RelationSpec struct {
	Name        string `yaml:"name"`
	Target      string `yaml:"target"`
	Cardinality string `yaml:"cardinality"`
	Join        string `yaml:"join"`
}

// LoadYAML reads descriptors from a YAML file.
func LoadYAML(path string) ([]*EntityDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds descriptors from a YAML document, in document order.
func ParseYAML(data []byte) ([]*EntityDescriptor, error) {
	var file EntitiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse entity file: %w", err)
	}
	result := make([]*EntityDescriptor, 0, len(file.Entities))
	for _, spec := range file.Entities {
		d, err := spec.Build()
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// Build converts the YAML form into a descriptor.
func (s EntitySpec) Build() (*EntityDescriptor, error) {
	b := NewEntity(s.Name).Table(s.Table).Alias(s.Alias)
	for _, f := range s.Fields {
		typ, ok := types.ParseEnum(f.Type, FieldTypes()...)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s: unknown type %q", ErrInvalidDescriptor, s.Name, f.Name, f.Type)
		}
		switch {
		case f.Name == s.Identity:
			b.Identity(f.Name, typ)
		case f.Nullable:
			b.Nullable(f.Name, typ)
		default:
			b.Field(f.Name, typ)
		}
		if f.Column != "" {
			b.Column(f.Name, f.Column)
		}
	}
	for _, r := range s.Relations {
		card := One
		if r.Cardinality != "" {
			c, ok := types.ParseEnum(r.Cardinality, One, Many)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s: unknown cardinality %q", ErrInvalidDescriptor, s.Name, r.Name, r.Cardinality)
			}
			card = c
		}
		b.relation(r.Name, r.Target, card, r.Join)
	}
	return b.Build()
}
