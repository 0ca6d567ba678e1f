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
	"context"

	"github.com/uptrace/bun"

	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/projection"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/repository"
	"github.com/znxmin/data-jpa/types"
)

const (
	findMemberEntityGraph     = "findMemberEntityGraph"
	findEntityGraphByUsername = "findEntityGraphByUsername"
	findReadOnlyByUsername    = "findReadOnlyByUsername"
	findLockByUsername        = "findLockByUsername"
	findAllOrderedByID        = "findAllByOrderByIdAsc"
)

// MemberRepository is the typed member repository. Queries that depend on
// a persistence context (read-only and lock hints) run on a gateway session.
type MemberRepository struct {
	repository.Repository[Member]
	gw       *gateway.Gateway
	readOnly *query.Method
	lock     *query.Method
}

func NewMemberRepository(db *bun.DB, reg *registry.Registry) (*MemberRepository, error) {
	repo := repository.NewRepository[Member](db, repository.WithRegistry(reg))
	if err := repo.Declare(findMemberEntityGraph, query.Fetch("team")); err != nil {
		return nil, err
	}
	if err := repo.Declare(findEntityGraphByUsername, query.Fetch("team")); err != nil {
		return nil, err
	}
	readOnly, err := query.Derive(reg, "Member", findReadOnlyByUsername, query.ReadOnly())
	if err != nil {
		return nil, err
	}
	lock, err := query.Derive(reg, "Member", findLockByUsername, query.WithLock(query.LockPessimisticWrite))
	if err != nil {
		return nil, err
	}
	return &MemberRepository{
		Repository: repo,
		gw:         gateway.New(db, reg),
		readOnly:   readOnly,
		lock:       lock,
	}, nil
}

func (r *MemberRepository) Gateway() *gateway.Gateway { return r.gw }

func (r *MemberRepository) FindByUsernameAndAgeGreaterThan(ctx context.Context, username string, age int) ([]*Member, error) {
	return r.FindBy(ctx, "findByUsernameAndAgeGreaterThan", username, age)
}

func (r *MemberRepository) FindByUsername(ctx context.Context, username string) ([]*Member, error) {
	return r.FindBy(ctx, "findByUsername", username)
}

// FindUser matches username and age exactly, built as a specification
// rather than derived from a method name.
func (r *MemberRepository) FindUser(ctx context.Context, username string, age int) ([]*Member, error) {
	return r.FindAll(ctx, predicate.AllOf(
		predicate.Equals("username", username),
		predicate.Equals("age", age),
	), types.Asc("id"))
}

func (r *MemberRepository) FindUsernameList(ctx context.Context) ([]string, error) {
	views, err := r.FindProjectedBy(ctx, findAllOrderedByID, UsernameOnly)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(views))
	for i, v := range views {
		names[i], _ = v["username"].(string)
	}
	return names, nil
}

func (r *MemberRepository) FindMemberDto(ctx context.Context) ([]MemberDto, error) {
	views, err := r.FindProjectedBy(ctx, findAllOrderedByID, MemberDtoView)
	if err != nil {
		return nil, err
	}
	return projection.IntoAll[MemberDto](views)
}

// FindMembers returns the single member called username, or nil.
func (r *MemberRepository) FindMembers(ctx context.Context, username string) (*Member, error) {
	return r.FindOneBy(ctx, "findMembersByUsername", username)
}

func (r *MemberRepository) FindByNames(ctx context.Context, names []string) ([]*Member, error) {
	return r.FindBy(ctx, "findByUsernameIn", names)
}

// FindOptionalByUsername fails with query.ErrAmbiguousResult when the name
// is not unique.
func (r *MemberRepository) FindOptionalByUsername(ctx context.Context, username string) (*Member, error) {
	return r.FindOneBy(ctx, "findOptionalByUsername", username)
}

func (r *MemberRepository) FindByAge(ctx context.Context, age int, req *types.PageRequest) (*types.Page[Member], error) {
	return r.PageBy(ctx, "findByAge", req, age)
}

// BulkAgePlus adds one to the age of every member at least age years old
// and clears the session it ran in.
func (r *MemberRepository) BulkAgePlus(ctx context.Context, age int) (int, error) {
	var n int
	err := r.gw.WithSession(ctx, func(ctx context.Context, s *gateway.Session) error {
		var err error
		n, err = s.ExecuteUpdate(ctx,
			query.New("Member", predicate.GreaterThanEqual("age", age)),
			[]gateway.Assignment{gateway.Increment("age", 1)},
			gateway.UpdateOptions{ClearAutomatically: true},
		)
		return err
	})
	return n, err
}

// FindMemberEntityGraph loads every member with its team in one statement.
func (r *MemberRepository) FindMemberEntityGraph(ctx context.Context) ([]*Member, error) {
	return r.FindBy(ctx, findMemberEntityGraph)
}

func (r *MemberRepository) FindEntityGraphByUsername(ctx context.Context, username string) ([]*Member, error) {
	return r.FindBy(ctx, findEntityGraphByUsername, username)
}

// FindReadOnlyByUsername loads the member into s without a snapshot;
// changes to the row are never flushed.
func (r *MemberRepository) FindReadOnlyByUsername(ctx context.Context, s *gateway.Session, username string) (types.Row, error) {
	q, err := r.readOnly.Bind(username)
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, q)
}

// FindLockByUsername locks the matching rows for the rest of the
// transaction s runs in.
func (r *MemberRepository) FindLockByUsername(ctx context.Context, s *gateway.Session, username string) ([]types.Row, error) {
	q, err := r.lock.Bind(username)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, q)
}
