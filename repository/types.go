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

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/znxmin/data-jpa/example"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/projection"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/types"
)

// Persistable lets a model with an assigned identity tell Save whether it
// still has to be inserted.
type Persistable interface {
	IsNew() bool
}

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, error)

	GetAll(ctx context.Context) ([]*T, error)

	FindByIDs(ctx context.Context, ids ...any) ([]*T, error)

	Count(ctx context.Context) (int, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	Create(ctx context.Context, entity ...*T) error

	// Save inserts a new entity and updates an existing one. New means
	// IsNew() for a Persistable and a zero primary key otherwise.
	Save(ctx context.Context, entity *T) error

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error

	Update(ctx context.Context, entity *T) error

	Delete(ctx context.Context, id any) error
}

// TransactionRepository defines CRUD operations executed within a transaction.
type TransactionRepository[T any] interface {
	CreateWithTx(ctx context.Context, tx *bun.Tx, entity ...*T) error
	UpsertWithTx(ctx context.Context, tx *bun.Tx, fields []string, duplicateKeys []string, entity ...*T) error
	UpdateWithTx(ctx context.Context, tx *bun.Tx, entity *T) error
	DeleteWithTx(ctx context.Context, tx *bun.Tx, id any) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, req *types.PageRequest) (*types.Page[T], error)
	PageAll(ctx context.Context, spec predicate.Node, req *types.PageRequest) (*types.Page[T], error)
	PageBy(ctx context.Context, method string, req *types.PageRequest, args ...interface{}) (*types.Page[T], error)
}

// DerivedQueryRepository runs queries derived from method names such as
// "findByUsernameAndAgeGreaterThan" and specifications built with the
// predicate package.
type DerivedQueryRepository[T any] interface {
	// Declare derives method once with options (fetch hints, lock,
	// read-only), the way annotations on a repository method would.
	Declare(method string, opts ...query.Option) error
	FindBy(ctx context.Context, method string, args ...interface{}) ([]*T, error)
	// FindOneBy returns nil when nothing matches and
	// query.ErrAmbiguousResult when more than one row does.
	FindOneBy(ctx context.Context, method string, args ...interface{}) (*T, error)
	CountBy(ctx context.Context, method string, args ...interface{}) (int, error)
	ExistsBy(ctx context.Context, method string, args ...interface{}) (bool, error)
	DeleteBy(ctx context.Context, method string, args ...interface{}) (int, error)
	FindAll(ctx context.Context, spec predicate.Node, sort ...types.Order) ([]*T, error)
	FindByExample(ctx context.Context, sample types.Row, matcher example.Matcher, sort ...types.Order) ([]*T, error)
	// BulkUpdate sets fields on every row matching spec in one statement.
	BulkUpdate(ctx context.Context, spec predicate.Node, set map[string]interface{}) (int, error)
	// FindProjectedBy runs a derived find and shapes the rows through spec.
	FindProjectedBy(ctx context.Context, method string, spec projection.Spec, args ...interface{}) ([]types.Row, error)
}

// Repository combines CRUD, pagination, derived and transactional
// operations and exposes Bun query builders for advanced use cases.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	DerivedQueryRepository[T]
	TransactionRepository[T]
	Entity() (*registry.EntityDescriptor, error)
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}
