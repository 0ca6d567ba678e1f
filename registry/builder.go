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
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Builder assembles an EntityDescriptor field by field.
//
//	member, err := registry.NewEntity("Member").
//		Identity("id", registry.TypeInt).
//		Field("username", registry.TypeString).
//		Nullable("teamId", registry.TypeInt).
//		ToOne("team", "Team", "team_id=id").
//		Build()
type Builder struct {
	d   EntityDescriptor
	err error
}

func NewEntity(name string) *Builder {
	return &Builder{d: EntityDescriptor{name: name}}
}

func (b *Builder) Table(table string) *Builder {
	b.d.table = table
	return b
}

func (b *Builder) Alias(alias string) *Builder {
	b.d.alias = alias
	return b
}

// Identity adds the identity field.
func (b *Builder) Identity(name string, typ FieldType) *Builder {
	if b.d.identity != "" {
		b.fail("identity already set to %s", b.d.identity)
		return b
	}
	b.d.identity = name
	return b.add(Field{Name: name, Type: typ})
}

func (b *Builder) Field(name string, typ FieldType) *Builder {
	return b.add(Field{Name: name, Type: typ})
}

func (b *Builder) Nullable(name string, typ FieldType) *Builder {
	return b.add(Field{Name: name, Type: typ, Nullable: true})
}

// Column overrides the column name of an already added field.
func (b *Builder) Column(field, column string) *Builder {
	for i := range b.d.fields {
		if b.d.fields[i].Name == field {
			b.d.fields[i].Column = column
			return b
		}
	}
	b.fail("column override for unknown field %s", field)
	return b
}

// ToOne adds a to-one relation. join has bun's "local=foreign" form.
func (b *Builder) ToOne(name, target, join string) *Builder {
	return b.relation(name, target, One, join)
}

// ToMany adds a to-many relation. join has bun's "local=foreign" form,
// usually "id=<owner>_id".
func (b *Builder) ToMany(name, target, join string) *Builder {
	return b.relation(name, target, Many, join)
}

func (b *Builder) relation(name, target string, card Cardinality, join string) *Builder {
	local, foreign, ok := strings.Cut(join, "=")
	if !ok || local == "" || foreign == "" {
		b.fail("relation %s: malformed join %q", name, join)
		return b
	}
	b.d.relations = append(b.d.relations, Relation{
		Name:          name,
		Target:        target,
		Cardinality:   card,
		LocalColumn:   strings.TrimSpace(local),
		ForeignColumn: strings.TrimSpace(foreign),
	})
	return b
}

func (b *Builder) add(f Field) *Builder {
	if f.Name == "" {
		b.fail("empty field name")
		return b
	}
	if !f.Type.IsValid() {
		b.fail("field %s: invalid type", f.Name)
		return b
	}
	b.d.fields = append(b.d.fields, f)
	return b
}

func (b *Builder) fail(format string, args ...interface{}) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s: %s", ErrInvalidDescriptor, b.d.name, fmt.Sprintf(format, args...))
	}
}

// Build validates the descriptor and fills in defaults for table, alias
// and column names.
func (b *Builder) Build() (*EntityDescriptor, error) {
	if b.err != nil {
		return nil, b.err
	}
	d := b.d
	if d.name == "" {
		return nil, fmt.Errorf("%w: missing entity name", ErrInvalidDescriptor)
	}
	if d.identity == "" {
		return nil, fmt.Errorf("%w: %s: missing identity field", ErrInvalidDescriptor, d.name)
	}
	if d.table == "" {
		d.table = inflection.Plural(Underscore(d.name))
	}
	if d.alias == "" {
		d.alias = strings.ToLower(d.name[:1])
	}

	d.fields = append([]Field(nil), d.fields...)
	seen := make(map[string]bool, len(d.fields))
	for i := range d.fields {
		f := &d.fields[i]
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: %s: duplicate field %s", ErrInvalidDescriptor, d.name, f.Name)
		}
		seen[f.Name] = true
		if f.Column == "" {
			f.Column = Underscore(f.Name)
		}
	}
	d.relations = append([]Relation(nil), d.relations...)
	for _, rel := range d.relations {
		if seen[rel.Name] {
			return nil, fmt.Errorf("%w: %s: relation %s shadows a field", ErrInvalidDescriptor, d.name, rel.Name)
		}
		seen[rel.Name] = true
	}
	return &d, nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *EntityDescriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// Underscore converts "teamName" or "TeamName" to "team_name".
func Underscore(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
