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
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/gateway"
	"github.com/znxmin/data-jpa/query"
	"github.com/znxmin/data-jpa/registry"
	"github.com/znxmin/data-jpa/repository"
	"github.com/znxmin/data-jpa/types"
)

type fixture struct {
	db      *bun.DB
	reg     *registry.Registry
	mm      *database.MigrationManager
	members *MemberRepository
	teams   repository.Repository[Team]
}

func setup(t *testing.T) *fixture {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	reg, err := NewRegistry()
	require.NoError(t, err)

	opts := append(MigrationOptions(reg), database.WithEnvironment("test"))
	mm := database.NewMigrationManager(db, nil, opts...)
	require.NoError(t, mm.RunMigrations(context.Background()))

	members, err := NewMemberRepository(db, reg)
	require.NoError(t, err)
	return &fixture{
		db:      db,
		reg:     reg,
		mm:      mm,
		members: members,
		teams:   repository.NewRepository[Team](db, repository.WithRegistry(reg)),
	}
}

func (f *fixture) team(t *testing.T, name string) *Team {
	t.Helper()
	team := &Team{Name: name}
	require.NoError(t, f.teams.Save(context.Background(), team))
	require.NotZero(t, team.ID)
	return team
}

func (f *fixture) member(t *testing.T, username string, age int, team *Team) *Member {
	t.Helper()
	m := NewMember(username, age, team)
	require.NoError(t, f.members.Save(context.Background(), m))
	return m
}

func TestDescriptorsMatchModels(t *testing.T) {
	f := setup(t)
	ent, err := f.members.Entity()
	require.NoError(t, err)
	assert.Equal(t, "Member", ent.Name())
	assert.Equal(t, "m", ent.Alias())

	for _, repoEntity := range []func() (*registry.EntityDescriptor, error){
		f.teams.Entity,
		repository.NewRepository[Item](f.db, repository.WithRegistry(f.reg)).Entity,
	} {
		_, err := repoEntity()
		assert.NoError(t, err)
	}

	fks := database.ConstraintsFromRegistry(f.reg)
	require.Len(t, fks, 1)
	assert.Equal(t, "members", fks[0].Table)
	assert.Equal(t, "team_id", fks[0].Column)
	assert.Equal(t, "teams", fks[0].ReferenceTable)
	assert.Equal(t, "SET NULL", fks[0].OnDelete)
}

func TestSeedData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.mm.InitData(ctx))

	n, err := f.teams.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	result, err := f.members.FindByUsernameAndAgeGreaterThan(ctx, "AAA", 15)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "AAA", result[0].Username)
	assert.Equal(t, 20, result[0].Age)

	_, err = f.members.FindOptionalByUsername(ctx, "AAA")
	assert.ErrorIs(t, err, query.ErrAmbiguousResult)
}

func TestBasicCRUD(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	member1 := f.member(t, "member1", 10, nil)
	member2 := f.member(t, "member2", 20, nil)

	found, err := f.members.GetOne(ctx, member1.ID)
	require.NoError(t, err)
	assert.Equal(t, "member1", found.Username)

	byIDs, err := f.members.FindByIDs(ctx, member1.ID, member2.ID)
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	member1.Username = "member!"
	require.NoError(t, f.members.Save(ctx, member1))
	found, err = f.members.GetOne(ctx, member1.ID)
	require.NoError(t, err)
	assert.Equal(t, "member!", found.Username)

	n, err := f.members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, f.members.Delete(ctx, member1.ID))
	require.NoError(t, f.members.Delete(ctx, member2.ID))
	n, err = f.members.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFindByUsernameVariants(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.member(t, "minjeong", 10, nil)
	f.member(t, "minjeong", 20, nil)
	f.member(t, "memberA", 30, nil)

	result, err := f.members.FindByUsername(ctx, "minjeong")
	require.NoError(t, err)
	assert.Len(t, result, 2)

	result, err = f.members.FindUser(ctx, "minjeong", 20)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 20, result[0].Age)

	names, err := f.members.FindUsernameList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"minjeong", "minjeong", "memberA"}, names)

	result, err = f.members.FindByNames(ctx, []string{"memberA", "nobody"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "memberA", result[0].Username)

	one, err := f.members.FindMembers(ctx, "memberA")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, 30, one.Age)

	one, err = f.members.FindMembers(ctx, "limminjeong")
	require.NoError(t, err)
	assert.Nil(t, one)

	_, err = f.members.FindOptionalByUsername(ctx, "minjeong")
	assert.ErrorIs(t, err, query.ErrAmbiguousResult)
}

func TestFindMemberDto(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	teamA := f.team(t, "teamA")
	m := f.member(t, "AAA", 10, teamA)
	f.member(t, "solo", 20, nil)

	dtos, err := f.members.FindMemberDto(ctx)
	require.NoError(t, err)
	assert.Equal(t, []MemberDto{
		{ID: m.ID, Username: "AAA", TeamName: "teamA"},
		{ID: m.ID + 1, Username: "solo"},
	}, dtos)
	assert.Equal(t, MemberDto{ID: m.ID, Username: "AAA", TeamName: "teamA"}, NewMemberDto(m))
}

func TestOpenUsernameOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.member(t, "member1", 10, f.team(t, "teamA"))

	views, err := f.members.FindProjectedBy(ctx, "findByUsername", UsernameOnlyOpen, "member1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "member1 10 teamA", views[0]["username"])
}

func TestFindByAgePage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	teamA := f.team(t, "teamA")
	for i := 1; i <= 5; i++ {
		f.member(t, fmt.Sprintf("member%d", i), 10, teamA)
	}

	page, err := f.members.FindByAge(ctx, 10, types.NewPageRequest(0, 3, types.Desc("username")))
	require.NoError(t, err)
	require.Len(t, page.Content, 3)
	assert.Equal(t, "member5", page.Content[0].Username)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	assert.Equal(t, 0, page.Number())
	assert.True(t, page.IsFirst())
	assert.True(t, page.HasNext())
}

func TestBulkAgePlus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.member(t, "member1", 10, nil)
	f.member(t, "member2", 19, nil)
	f.member(t, "member3", 20, nil)
	f.member(t, "member4", 21, nil)
	f.member(t, "member5", 40, nil)

	n, err := f.members.BulkAgePlus(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	member5, err := f.members.FindMembers(ctx, "member5")
	require.NoError(t, err)
	assert.Equal(t, 41, member5.Age)
}

func TestFindMemberEntityGraph(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.member(t, "memberA", 10, f.team(t, "teamA"))
	f.member(t, "memberB", 10, f.team(t, "teamB"))

	lazy, err := f.members.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, lazy, 2)
	assert.Nil(t, lazy[0].Team)

	members, err := f.members.FindMemberEntityGraph(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	names := []string{members[0].Team.Name, members[1].Team.Name}
	assert.ElementsMatch(t, []string{"teamA", "teamB"}, names)

	members, err = f.members.FindEntityGraphByUsername(ctx, "memberA")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "teamA", members[0].Team.Name)
}

func TestReadOnlyHint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.member(t, "member1", 10, nil)

	err := f.members.Gateway().WithTx(ctx, func(ctx context.Context, s *gateway.Session) error {
		row, err := f.members.FindReadOnlyByUsername(ctx, s, "member1")
		if err != nil {
			return err
		}
		row["username"] = "member2"
		return nil
	})
	require.NoError(t, err)

	missing, err := f.members.FindMembers(ctx, "member2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLockHint(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.member(t, "member1", 10, nil)

	var rows []types.Row
	err := f.members.Gateway().WithTx(ctx, func(ctx context.Context, s *gateway.Session) error {
		var err error
		rows, err = f.members.FindLockByUsername(ctx, s, "member1")
		return err
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "member1", rows[0]["username"])
}

func TestItemSave(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	items := repository.NewRepository[Item](f.db, repository.WithRegistry(f.reg))

	item := NewItem("A")
	assert.True(t, item.IsNew())
	require.NoError(t, items.Save(ctx, item))
	assert.False(t, item.IsNew())

	require.NoError(t, items.Save(ctx, item))
	n, err := items.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
