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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znxmin/data-jpa/types"
)

type countingLoader struct {
	teams map[interface{}]types.Row
	calls int
}

func (l *countingLoader) LoadRelation(_ context.Context, entity string, row types.Row, relation string) (interface{}, error) {
	l.calls++
	if team, ok := l.teams[row["teamId"]]; ok {
		return team, nil
	}
	return types.Row(nil), nil
}

func memberRow() types.Row {
	return types.Row{"id": int64(1), "username": "memberA", "age": int64(10), "teamId": int64(7)}
}

func TestClosedProjectionRoundTrip(t *testing.T) {
	row := memberRow()
	spec := NewClosed("All", "Member", Field("id"), Field("username"), Field("age"), Field("teamId"))

	view, err := Project(context.Background(), row, spec, nil)
	require.NoError(t, err)
	assert.Equal(t, row, view)
	assert.Equal(t, []string{"id", "username", "age", "teamId"}, spec.Fields())
	assert.Empty(t, spec.Relations())
}

func TestClosedProjectionRelations(t *testing.T) {
	spec := NewClosed("MemberDto", "Member", Field("id"), Field("username"), As("team.name", "teamName"))
	assert.Equal(t, []string{"team"}, spec.Relations())

	row := memberRow()
	row["team"] = types.Row{"id": int64(7), "name": "teamA"}
	view, err := Project(context.Background(), row, spec, nil)
	require.NoError(t, err)
	assert.Equal(t, "teamA", view["teamName"])

	row["team"] = nil
	view, err = Project(context.Background(), row, spec, nil)
	require.NoError(t, err)
	assert.Nil(t, view["teamName"])

	delete(row, "team")
	_, err = Project(context.Background(), row, spec, nil)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestClosedProjectionMissingField(t *testing.T) {
	spec := NewClosed("Nick", "Member", Field("nickname"))
	_, err := Project(context.Background(), memberRow(), spec, nil)
	assert.ErrorIs(t, err, ErrMissingField)

	withExpr := NewClosed("Bad", "Member", Expr("x", "username"))
	_, err = Project(context.Background(), memberRow(), withExpr, nil)
	assert.ErrorIs(t, err, ErrExpression)
}

func TestOpenProjection(t *testing.T) {
	spec := NewOpen("UsernameOnly", "Member",
		Expr("username", "target.username + ' ' + target.age"),
		Expr("label", "'#' + id"),
		Expr("sum", "age + 5"),
	)
	view, err := Project(context.Background(), memberRow(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, "memberA 10", view["username"])
	assert.Equal(t, "#1", view["label"])
	assert.Equal(t, float64(15), view["sum"])
}

func TestOpenProjectionLoadsRelationPerRow(t *testing.T) {
	loader := &countingLoader{teams: map[interface{}]types.Row{int64(7): {"id": int64(7), "name": "teamA"}}}
	spec := NewOpen("TeamLabel", "Member", Expr("teamName", "target.team.name"))

	rows := []types.Row{memberRow(), memberRow(), memberRow()}
	views, err := ProjectAll(context.Background(), rows, spec, loader)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.calls)
	for _, v := range views {
		assert.Equal(t, "teamA", v["teamName"])
	}

	// materialised relations are not reloaded
	_, err = ProjectAll(context.Background(), rows, spec, loader)
	require.NoError(t, err)
	assert.Equal(t, 3, loader.calls)
}

func TestOpenProjectionErrors(t *testing.T) {
	loader := &countingLoader{}
	ctx := context.Background()

	_, err := Project(ctx, memberRow(), NewOpen("Null", "Member", Expr("n", "team.name")), loader)
	assert.ErrorIs(t, err, ErrExpression)

	_, err = Project(ctx, memberRow(), NewOpen("Unknown", "Member", Expr("n", "nickname")), loader)
	assert.ErrorIs(t, err, ErrExpression)

	_, err = Project(ctx, memberRow(), NewOpen("Syntax", "Member", Expr("n", "username +")), loader)
	assert.ErrorIs(t, err, ErrExpression)

	assert.ErrorIs(t, Validate("a.b +"), ErrExpression)
	assert.NoError(t, Validate(`"x" + a.b + 1.5`))
}

type memberDto struct {
	ID       int64  `mapstructure:"id"`
	Username string `mapstructure:"username"`
	TeamName string `mapstructure:"teamName"`
}

func TestInto(t *testing.T) {
	dto, err := Into[memberDto](types.Row{"id": int64(3), "username": "memberA", "teamName": "teamA"})
	require.NoError(t, err)
	assert.Equal(t, memberDto{ID: 3, Username: "memberA", TeamName: "teamA"}, dto)

	page := types.NewPage([]types.Row{{"id": 1, "username": "a"}}, types.NewPageRequest(0, 1), 4)
	dtos, err := IntoPage[memberDto](page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dtos.Content[0].ID)
	assert.Equal(t, 4, dtos.TotalPages())
}
