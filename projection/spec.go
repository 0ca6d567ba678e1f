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

package projection

import (
	"strings"

	"github.com/znxmin/data-jpa/types"
)

// Kind separates closed projections (field copies) from open ones
// (computed expressions).
type Kind int

const (
	Closed Kind = iota
	Open
)

func (k Kind) IsValid() bool { return k == Closed || k == Open }

func (k Kind) Number() int {
	if !k.IsValid() {
		return types.IllegalValue
	}
	return int(k)
}

func (k Kind) Name() string {
	switch k {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return types.IllegalName
	}
}

func (k Kind) String() string { return k.Name() }

func (k Kind) Desc() string { return k.Name() + " projection" }

// Mapping copies Source into Target, or evaluates Expr into Target.
type Mapping struct {
	Source string
	Target string
	Expr   string
}

// Field maps a path onto a target of the same name. For a dotted path the
// target is the path itself ("team.name").
func Field(path string) Mapping { return Mapping{Source: path, Target: path} }

// As maps path onto target.
func As(path, target string) Mapping { return Mapping{Source: path, Target: target} }

// Expr maps an open expression onto target.
func Expr(target, expr string) Mapping { return Mapping{Target: target, Expr: expr} }

// Spec is a projection shape over rows of Entity.
type Spec struct {
	Name     string
	Entity   string
	Kind     Kind
	Mappings []Mapping
}

// NewClosed builds a closed projection.
func NewClosed(name, entity string, mappings ...Mapping) Spec {
	return Spec{Name: name, Entity: entity, Kind: Closed, Mappings: mappings}
}

// NewOpen builds an open projection. Plain field mappings may be mixed with
// expressions.
func NewOpen(name, entity string, mappings ...Mapping) Spec {
	return Spec{Name: name, Entity: entity, Kind: Open, Mappings: mappings}
}

// Targets lists the target names in mapping order.
func (s Spec) Targets() []string {
	out := make([]string, len(s.Mappings))
	for i, m := range s.Mappings {
		out[i] = m.Target
	}
	return out
}

// Fields lists the base fields a closed projection reads. Open projections
// return nil since their expressions may touch any field.
func (s Spec) Fields() []string {
	if s.Kind != Closed {
		return nil
	}
	var out []string
	for _, m := range s.Mappings {
		if !strings.Contains(m.Source, ".") {
			out = append(out, m.Source)
		}
	}
	return out
}

// Relations lists the relations a closed projection reads through.
func (s Spec) Relations() []string {
	if s.Kind != Closed {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.Mappings {
		if head, _, ok := strings.Cut(m.Source, "."); ok && !seen[head] {
			seen[head] = true
			out = append(out, head)
		}
	}
	return out
}
