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

package predicate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znxmin/data-jpa/types"
)

func TestCombinatorsSkipNil(t *testing.T) {
	a := Equals("username", "memberA")
	assert.Nil(t, AllOf())
	assert.Nil(t, AndOf(nil, nil))
	assert.True(t, Equal(a, AndOf(nil, a)))
	assert.True(t, Equal(a, OrOf(a, nil)))
	assert.Nil(t, NotOf(nil))

	b := Equals("team.name", "teamA")
	c := GreaterThan("age", 10)
	assert.True(t, Equal(And{Left: And{Left: a, Right: b}, Right: c}, AllOf(a, b, c)))
	assert.True(t, Equal(Or{Left: Or{Left: a, Right: b}, Right: c}, AnyOf(a, nil, b, c)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(In("age", []int{1, 2}), In("age", []int{1, 2})))
	assert.False(t, Equal(In("age", []int{1, 2}), In("age", []int{2, 1})))
	assert.False(t, Equal(Equals("age", 1), GreaterThan("age", 1)))
	assert.False(t, Equal(Not{Inner: IsNull("age")}, IsNull("age")))
	assert.True(t, Equal(nil, nil))
}

func TestString(t *testing.T) {
	n := AllOf(Equals("username", "AAA"), GreaterThan("age", Param{Index: 1}), IsNotNull("team.name"))
	assert.Equal(t, `((username = "AAA" AND age > ?1) AND NOT team.name IS NULL)`, n.String())
	assert.Equal(t, `age IN (1, 2)`, In("age", []int{1, 2}).String())
}

func TestFieldsAndParams(t *testing.T) {
	n := AllOf(Equals("username", Param{Index: 0}), Equals("username", "x"), Like("team.name", "t%"))
	assert.Equal(t, []string{"username", "team.name"}, Fields(n))
	assert.Equal(t, []Param{{Index: 0}}, Params(n))
}

func TestSubstitute(t *testing.T) {
	tmpl := AndOf(Equals("username", Param{Index: 0}), Like("username", Param{Index: 1, Wildcard: WildcardPrefix}))
	out, err := Substitute(tmpl, func(p Param) (interface{}, error) {
		if p.Index == 0 {
			return "AAA", nil
		}
		return p.Wildcard.Apply("A"), nil
	})
	require.NoError(t, err)
	assert.True(t, Equal(AndOf(Equals("username", "AAA"), Like("username", Pattern("A%"))), out))
	assert.Len(t, Params(tmpl), 2)

	boom := errors.New("boom")
	_, err = Substitute(tmpl, func(Param) (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestMatches(t *testing.T) {
	row := types.Row{
		"username": "memberA",
		"age":      int64(20),
		"team":     types.Row{"name": "teamA"},
		"nick":     nil,
	}

	cases := []struct {
		node Node
		want bool
	}{
		{Equals("username", "memberA"), true},
		{Equals("age", 20), true},
		{GreaterThan("age", 15), true},
		{GreaterThanEqual("age", 20), true},
		{LessThan("age", 20), false},
		{LessThanEqual("age", 20.0), true},
		{Like("username", "mem%"), true},
		{Like("username", "%B"), false},
		{Like("username", "member_"), true},
		{In("age", []int{10, 20}), true},
		{In("age", []int{10}), false},
		{IsNull("nick"), true},
		{IsNull("missing"), true},
		{IsNotNull("username"), true},
		{Equals("nick", "x"), false},
		{Equals("team.name", "teamA"), true},
		{AndOf(Equals("username", "memberA"), Equals("team.name", "teamB")), false},
		{OrOf(Equals("username", "memberB"), Equals("team.name", "teamA")), true},
		{Like("username", Pattern(`mem\_%`)), false},
		{Like("username", Pattern("%mberA")), true},
		{Not{Inner: Equals("nick", "x")}, false},
		{Not{Inner: GreaterThan("nick", 1)}, false},
		{Equals("nick", nil), true},
		{In("age", []int{}), false},
		{Not{Inner: In("age", []int{})}, true},
		{In("nick", []int{1}), false},
		{Not{Inner: In("nick", []int{1})}, false},
		{Not{Inner: In("age", []interface{}{10, nil})}, false},
		{OrOf(Equals("nick", "x"), Equals("age", 20)), true},
		{Not{Inner: AndOf(Equals("nick", "x"), Equals("age", 10))}, true},
		{nil, true},
	}
	for _, tc := range cases {
		name := "all"
		if tc.node != nil {
			name = tc.node.String()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.node, row))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\`, EscapeLike(`a_b%c\`))
	assert.Equal(t, Pattern(`a\_%`), WildcardPrefix.Apply("a_"))
	assert.Equal(t, Pattern(`%a\_`), WildcardSuffix.Apply("a_"))
	assert.Equal(t, Pattern(`%a\_%`), WildcardBoth.Apply("a_"))

	row := types.Row{"username": "abc"}
	assert.False(t, Matches(Like("username", WildcardPrefix.Apply("a_")), row))
	assert.True(t, Matches(Like("username", WildcardPrefix.Apply("ab")), row))
	assert.True(t, Matches(Like("username", WildcardPrefix.Apply("a_")), types.Row{"username": "a_c"}))
}

func TestOperatorEnum(t *testing.T) {
	op, ok := types.ParseEnum("greaterThanEqual", OpEquals, OpGreaterThan, OpGreaterThanEqual)
	require.True(t, ok)
	assert.Equal(t, OpGreaterThanEqual, op)
	assert.Equal(t, ">=", op.String())
	assert.False(t, Operator(99).IsValid())
	assert.Equal(t, types.IllegalValue, Operator(99).Number())
}
