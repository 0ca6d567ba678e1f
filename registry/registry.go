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
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrDuplicateEntity    = errors.New("duplicate entity")
	ErrInvalidDescriptor  = errors.New("invalid entity descriptor")
	ErrUnresolvedRelation = errors.New("unresolved relation")
)

var defaultRegistry = New()

// Registry maps entity names to their descriptors.
// It is safe for concurrent registration and lookup.
type Registry struct {
	entities map[string]*EntityDescriptor
	mutex    sync.RWMutex
}

func New() *Registry {
	return &Registry{entities: make(map[string]*EntityDescriptor)}
}

// Register adds a descriptor. Names are unique per registry.
func (r *Registry) Register(d *EntityDescriptor) error {
	if d == nil || d.name == "" {
		return fmt.Errorf("%w: missing entity name", ErrInvalidDescriptor)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.entities[d.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, d.name)
	}
	r.entities[d.name] = d
	return nil
}

// RegisterAll registers descriptors in order and stops at the first failure.
func (r *Registry) RegisterAll(ds ...*EntityDescriptor) error {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register for package initialisation; it panics on error.
func (r *Registry) MustRegister(d *EntityDescriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func (r *Registry) Resolve(name string) (*EntityDescriptor, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	d, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return d, nil
}

// Target resolves the entity a relation of d points at.
func (r *Registry) Target(d *EntityDescriptor, relation string) (Relation, *EntityDescriptor, error) {
	rel, ok := d.Relation(relation)
	if !ok {
		return Relation{}, nil, fmt.Errorf("%w: %s.%s", ErrUnresolvedRelation, d.name, relation)
	}
	target, err := r.Resolve(rel.Target)
	if err != nil {
		return Relation{}, nil, fmt.Errorf("%w: %s.%s -> %s", ErrUnresolvedRelation, d.name, relation, rel.Target)
	}
	return rel, target, nil
}

// Entities returns all descriptors sorted by name.
func (r *Registry) Entities() []*EntityDescriptor {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*EntityDescriptor, 0, len(r.entities))
	for _, d := range r.entities {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// Validate checks that every relation points at a registered entity and
// that the join columns exist on both sides.
func (r *Registry) Validate() error {
	var errs []error
	for _, d := range r.Entities() {
		for _, rel := range d.relations {
			target, err := r.Resolve(rel.Target)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s.%s -> %s", ErrUnresolvedRelation, d.name, rel.Name, rel.Target))
				continue
			}
			if _, ok := d.FieldByColumn(rel.LocalColumn); !ok {
				errs = append(errs, fmt.Errorf("%w: %s.%s local column %s", ErrUnresolvedRelation, d.name, rel.Name, rel.LocalColumn))
			}
			if _, ok := target.FieldByColumn(rel.ForeignColumn); !ok {
				errs = append(errs, fmt.Errorf("%w: %s.%s foreign column %s", ErrUnresolvedRelation, d.name, rel.Name, rel.ForeignColumn))
			}
		}
	}
	return errors.Join(errs...)
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a descriptor to the default registry.
func Register(d *EntityDescriptor) error {
	return defaultRegistry.Register(d)
}

// Resolve looks a descriptor up in the default registry.
func Resolve(name string) (*EntityDescriptor, error) {
	return defaultRegistry.Resolve(name)
}
