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
	"github.com/znxmin/data-jpa/types"
)

// FieldType is the semantic type of an entity field.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeJSON
)

var fieldTypeNames = []string{"string", "int", "float", "bool", "time", "json"}

// FieldTypes lists every semantic type.
func FieldTypes() []FieldType {
	return []FieldType{TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeJSON}
}

func (t FieldType) IsValid() bool { return t >= TypeString && t <= TypeJSON }

func (t FieldType) Number() int {
	if !t.IsValid() {
		return types.IllegalValue
	}
	return int(t)
}

func (t FieldType) Name() string {
	if !t.IsValid() {
		return types.IllegalName
	}
	return fieldTypeNames[t]
}

func (t FieldType) String() string { return t.Name() }

func (t FieldType) Desc() string { return t.Name() + " field" }

// Cardinality tells whether a relation points at one or many rows.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

func (c Cardinality) IsValid() bool { return c == One || c == Many }

func (c Cardinality) Number() int {
	if !c.IsValid() {
		return types.IllegalValue
	}
	return int(c)
}

func (c Cardinality) Name() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return types.IllegalName
	}
}

func (c Cardinality) String() string { return c.Name() }

func (c Cardinality) Desc() string {
	switch c {
	case One:
		return "to-one relation"
	case Many:
		return "to-many relation"
	default:
		return types.IllegalDesc
	}
}

// Field describes one queryable column of an entity.
type Field struct {
	Name     string
	Column   string
	Type     FieldType
	Nullable bool
}

// Relation links an entity to another registered entity.
// LocalColumn lives on the owning entity, ForeignColumn on the target.
type Relation struct {
	Name          string
	Target        string
	Cardinality   Cardinality
	LocalColumn   string
	ForeignColumn string
}

// EntityDescriptor is the immutable metadata of a logical entity type.
// Accessors return copies, so a registered descriptor cannot be mutated.
type EntityDescriptor struct {
	name      string
	table     string
	alias     string
	identity  string
	fields    []Field
	relations []Relation
}

func (d *EntityDescriptor) Name() string { return d.name }

func (d *EntityDescriptor) Table() string { return d.table }

func (d *EntityDescriptor) Alias() string { return d.alias }

// Identity returns the identity field.
func (d *EntityDescriptor) Identity() Field {
	f, _ := d.Field(d.identity)
	return f
}

// Fields returns the ordered field list.
func (d *EntityDescriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d *EntityDescriptor) Field(name string) (Field, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (d *EntityDescriptor) FieldByColumn(column string) (Field, bool) {
	for _, f := range d.fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the column names in field order.
func (d *EntityDescriptor) Columns() []string {
	out := make([]string, len(d.fields))
	for i, f := range d.fields {
		out[i] = f.Column
	}
	return out
}

func (d *EntityDescriptor) Relations() []Relation {
	out := make([]Relation, len(d.relations))
	copy(out, d.relations)
	return out
}

func (d *EntityDescriptor) Relation(name string) (Relation, bool) {
	for _, r := range d.relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}
