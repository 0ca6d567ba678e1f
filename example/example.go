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

// Package example builds predicates from sample rows: every non-nil value of
// the sample becomes a condition on the field of the same name.
package example

import (
	"sort"
	"strings"

	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/types"
)

// StringMatcher selects how string sample values are compared.
type StringMatcher int

const (
	Exact StringMatcher = iota
	StartsWith
	Contains
	EndsWith
)

var stringMatcherNames = []string{"exact", "starts_with", "contains", "ends_with"}

func (s StringMatcher) IsValid() bool { return s >= Exact && s <= EndsWith }

func (s StringMatcher) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s StringMatcher) Name() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return stringMatcherNames[s]
}

func (s StringMatcher) String() string { return s.Name() }

func (s StringMatcher) Desc() string { return s.Name() + " string match" }

func (s StringMatcher) wildcard() predicate.Wildcard {
	switch s {
	case StartsWith:
		return predicate.WildcardPrefix
	case Contains:
		return predicate.WildcardBoth
	case EndsWith:
		return predicate.WildcardSuffix
	}
	return predicate.WildcardNone
}

// Matcher configures Of. The zero value matches all sample fields exactly.
type Matcher struct {
	ignored     map[string]bool
	stringMatch StringMatcher
	any         bool
}

// Matching returns a matcher requiring every sample field to match.
func Matching() Matcher { return Matcher{} }

// MatchingAny returns a matcher requiring at least one sample field to match.
func MatchingAny() Matcher { return Matcher{any: true} }

// WithIgnorePaths skips the given paths ("age", "team.name"). Ignoring a
// relation skips everything under it.
func (m Matcher) WithIgnorePaths(paths ...string) Matcher {
	ignored := make(map[string]bool, len(m.ignored)+len(paths))
	for p := range m.ignored {
		ignored[p] = true
	}
	for _, p := range paths {
		ignored[p] = true
	}
	m.ignored = ignored
	return m
}

func (m Matcher) WithStringMatcher(s StringMatcher) Matcher {
	m.stringMatch = s
	return m
}

// MatchAny switches the matcher to OR semantics.
func (m Matcher) MatchAny() Matcher {
	m.any = true
	return m
}

func (m Matcher) IsIgnored(path string) bool {
	for p := path; ; {
		if m.ignored[p] {
			return true
		}
		i := strings.LastIndexByte(p, '.')
		if i < 0 {
			return false
		}
		p = p[:i]
	}
}

// Of turns sample into a predicate. Nested rows become relation paths
// ("team.name"). Fields are visited in sorted order, so equal samples give
// equal trees. An empty sample yields nil, which selects every row.
func Of(sample types.Row, m Matcher) predicate.Node {
	var nodes []predicate.Node
	collect(sample, "", m, &nodes)
	if m.any {
		return predicate.AnyOf(nodes...)
	}
	return predicate.AllOf(nodes...)
}

func collect(sample types.Row, prefix string, m Matcher, nodes *[]predicate.Node) {
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := prefix + k
		v := sample[k]
		if v == nil || m.IsIgnored(path) {
			continue
		}
		switch t := v.(type) {
		case types.Row:
			collect(t, path+".", m, nodes)
		case map[string]interface{}:
			collect(types.Row(t), path+".", m, nodes)
		case string:
			if w := m.stringMatch.wildcard(); w != predicate.WildcardNone {
				*nodes = append(*nodes, predicate.Like(path, w.Apply(t)))
				continue
			}
			*nodes = append(*nodes, predicate.Equals(path, t))
		default:
			*nodes = append(*nodes, predicate.Equals(path, v))
		}
	}
}
