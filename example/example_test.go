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

package example

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/types"
)

func sample() types.Row {
	return types.Row{
		"username": "m1",
		"age":      0,
		"team":     types.Row{"name": "teamA", "id": nil},
	}
}

func TestOfIgnoresPaths(t *testing.T) {
	got := Of(sample(), Matching().WithIgnorePaths("age"))
	want := predicate.AllOf(
		predicate.Equals("team.name", "teamA"),
		predicate.Equals("username", "m1"),
	)
	assert.True(t, predicate.Equal(want, got), got.String())

	members := []types.Row{
		{"username": "m1", "age": 10, "team": types.Row{"name": "teamA"}},
		{"username": "m2", "age": 0, "team": types.Row{"name": "teamA"}},
		{"username": "m1", "age": 0, "team": nil},
	}
	var matched []types.Row
	for _, m := range members {
		if predicate.Matches(got, m) {
			matched = append(matched, m)
		}
	}
	assert.Equal(t, members[:1], matched)
}

func TestOfWithoutIgnoreKeepsZeroValues(t *testing.T) {
	got := Of(sample(), Matching())
	assert.Equal(t, []string{"age", "team.name", "username"}, predicate.Fields(got))
}

func TestIgnoringRelationSkipsNestedFields(t *testing.T) {
	got := Of(sample(), Matching().WithIgnorePaths("team", "age"))
	assert.True(t, predicate.Equal(predicate.Equals("username", "m1"), got))
	assert.True(t, Matching().WithIgnorePaths("team").IsIgnored("team.name"))
	assert.False(t, Matching().WithIgnorePaths("team").IsIgnored("teamName"))
}

func TestStringMatchers(t *testing.T) {
	cases := map[StringMatcher]string{
		StartsWith: "m1%",
		Contains:   "%m1%",
		EndsWith:   "%m1",
	}
	for sm, pattern := range cases {
		t.Run(sm.Name(), func(t *testing.T) {
			got := Of(types.Row{"username": "m1"}, Matching().WithStringMatcher(sm))
			assert.True(t, predicate.Equal(predicate.Like("username", predicate.Pattern(pattern)), got))
		})
	}
	assert.Equal(t, types.IllegalName, StringMatcher(9).Name())
}

func TestMatchAny(t *testing.T) {
	got := Of(types.Row{"username": "m1", "age": 20}, MatchingAny())
	want := predicate.AnyOf(predicate.Equals("age", 20), predicate.Equals("username", "m1"))
	assert.True(t, predicate.Equal(want, got))
	assert.True(t, predicate.Equal(want, Of(types.Row{"username": "m1", "age": 20}, Matching().MatchAny())))
}

func TestEmptySampleSelectsAll(t *testing.T) {
	assert.Nil(t, Of(types.Row{}, Matching()))
	assert.Nil(t, Of(types.Row{"age": 3}, Matching().WithIgnorePaths("age")))
}
