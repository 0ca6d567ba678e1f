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

package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

type options struct {
	reg    *registry.Registry
	entity string
}

type Option func(*options)

// WithRegistry resolves entities against reg instead of registry.Default().
func WithRegistry(reg *registry.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.reg = reg
		}
	}
}

// WithEntity names the registered entity T maps to. Without it the entity
// is looked up by the model's table name.
func WithEntity(name string) Option {
	return func(o *options) { o.entity = name }
}

type baseRepositoryImpl[T any] struct {
	db      *bun.DB
	reg     *registry.Registry
	gw      *gateway.Gateway
	entity  string
	once    sync.Once
	ent     *registry.EntityDescriptor
	entErr  error
	methods sync.Map
}

// NewRepository returns a generic repository backed by the provided Bun DB.
func NewRepository[T any](db *bun.DB, opts ...Option) Repository[T] {
	o := options{reg: registry.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &baseRepositoryImpl[T]{
		db:     db,
		reg:    o.reg,
		gw:     gateway.New(db, o.reg),
		entity: o.entity,
	}
}

// Entity resolves the registered descriptor of T. Its alias must equal the
// bun model alias, since derived predicates are rendered against it.
func (r *baseRepositoryImpl[T]) Entity() (*registry.EntityDescriptor, error) {
	r.once.Do(func() {
		table := r.db.Table(reflect.TypeFor[T]())
		if r.entity != "" {
			r.ent, r.entErr = r.reg.Resolve(r.entity)
		} else {
			for _, d := range r.reg.Entities() {
				if d.Table() == table.Name {
					r.ent = d
					break
				}
			}
			if r.ent == nil {
				r.entErr = fmt.Errorf("%w: no entity maps table %s", registry.ErrUnknownEntity, table.Name)
			}
		}
		if r.entErr == nil && r.ent.Alias() != table.Alias {
			r.entErr = fmt.Errorf("%w: %s: alias %q differs from model alias %q",
				registry.ErrInvalidDescriptor, r.ent.Name(), r.ent.Alias(), table.Alias)
		}
	})
	return r.ent, r.entErr
}

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) ValsToSlice(entity ...*T) []*T {
	entities := make([]*T, len(entity))
	copy(entities, entity)
	return entities
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, error) {
	var entity T
	err := r.db.NewSelect().Model(&entity).Where("?PKs = ?", id).Scan(ctx)
	if err != nil {
		return nil, database.Classify(err)
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).Scan(ctx)
	return entities, database.Classify(err)
}

func (r *baseRepositoryImpl[T]) FindByIDs(ctx context.Context, ids ...any) ([]*T, error) {
	entities := make([]*T, 0, len(ids))
	if len(ids) == 0 {
		return entities, nil
	}
	err := r.db.NewSelect().Model(&entities).Where("?PKs IN (?)", bun.In(ids)).Scan(ctx)
	return entities, database.Classify(err)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*T)(nil)).Count(ctx)
	return n, database.Classify(err)
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	var entities []*T
	query := r.db.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	err := query.Scan(ctx)
	if err != nil {
		return nil, database.Classify(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	var entities []*T
	err := r.db.NewSelect().Model(&entities).Where(query, args...).Scan(ctx)
	return entities, database.Classify(err)
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	entities := r.ValsToSlice(entity...)
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) Save(ctx context.Context, entity *T) error {
	var err error
	if r.isNew(entity) {
		_, err = r.db.NewInsert().Model(entity).Exec(ctx)
	} else {
		_, err = r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	}
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) isNew(entity *T) bool {
	if p, ok := any(entity).(Persistable); ok {
		return p.IsNew()
	}
	v := reflect.ValueOf(entity).Elem()
	for _, pk := range r.db.Table(v.Type()).PKs {
		if !pk.HasZeroValue(v) {
			return false
		}
	}
	return true
}

// pkColumn is the unqualified primary key column; DELETE has no table
// alias on every dialect.
func (r *baseRepositoryImpl[T]) pkColumn() bun.Ident {
	if pks := r.db.Table(reflect.TypeFor[T]()).PKs; len(pks) > 0 {
		return bun.Ident(pks[0].Name)
	}
	return bun.Ident("id")
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	return r.multipleUpsert(ctx, nil, fields, duplicateKeys, entity...)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	_, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	_, err := r.db.NewDelete().Model((*T)(nil)).Where("? = ?", r.pkColumn(), id).Exec(ctx)
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) CreateWithTx(ctx context.Context, tx *bun.Tx, entity ...*T) error {
	entities := r.ValsToSlice(entity...)
	_, err := tx.NewInsert().Model(&entities).Exec(ctx)
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) UpsertWithTx(ctx context.Context, tx *bun.Tx, fields []string, duplicateKeys []string, entity ...*T) error {
	return r.multipleUpsert(ctx, tx, fields, duplicateKeys, entity...)
}

func (r *baseRepositoryImpl[T]) UpdateWithTx(ctx context.Context, tx *bun.Tx, entity *T) error {
	_, err := tx.NewUpdate().Model(entity).WherePK().Exec(ctx)
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) DeleteWithTx(ctx context.Context, tx *bun.Tx, id any) error {
	_, err := tx.NewDelete().Model((*T)(nil)).Where("? = ?", r.pkColumn(), id).Exec(ctx)
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) multipleUpsert(ctx context.Context, tx *bun.Tx, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}

	var idb bun.IDB = r.db
	if tx != nil {
		idb = tx
	}
	insertQuery := idb.NewInsert()
	entities := r.ValsToSlice(entity...)

	var err error
	switch {
	case r.db.HasFeature(feature.InsertOnConflict):
		err = r.upsertOnConflict(ctx, insertQuery, fields, duplicateKeys, entities)
	case r.db.HasFeature(feature.InsertOnDuplicateKey):
		err = r.upsertOnDuplicateKey(ctx, insertQuery, fields, entities)
	default:
		err = r.upsertFallback(ctx, idb, entities)
	}
	return database.Classify(err)
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, entities []*T) error {
	queryArgs := make([]string, 0, len(fields))
	args := make([]interface{}, 0, 2*len(fields))
	for _, field := range fields {
		queryArgs = append(queryArgs, "? = VALUES(?)")
		args = append(args, bun.Ident(field), bun.Ident(field))
	}
	_, err := insertQuery.
		Model(&entities).
		On("DUPLICATE KEY UPDATE "+strings.Join(queryArgs, ", "), args...).
		Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, insertQuery *bun.InsertQuery, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{"id"}
	}
	keys := make([]interface{}, len(duplicateKeys))
	for i, k := range duplicateKeys {
		keys[i] = bun.Ident(k)
	}
	insertQuery = insertQuery.
		Model(&entities).
		On("CONFLICT (?) DO UPDATE", bun.In(keys))
	for _, field := range fields {
		insertQuery = insertQuery.Set("? = EXCLUDED.?", bun.Ident(field), bun.Ident(field))
	}
	_, err := insertQuery.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, idb bun.IDB, entities []*T) error {
	for _, entity := range entities {
		_, err := idb.NewInsert().Model(entity).Exec(ctx)
		if err != nil {
			_, updateErr := idb.NewUpdate().Model(entity).WherePK().Exec(ctx)
			if updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %w, update error: %v", err, updateErr)
			}
		}
	}
	return nil
}
