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

package gateway

import (
	"fmt"
	"sort"

	"github.com/znxmin/data-jpa/types"
)

type entry struct {
	entity   string
	row      types.Row
	snapshot types.Row
	readOnly bool
}

func (e *entry) dirty() bool { return !e.readOnly && e.snapshot != nil }

// arena is the identity map of one session.
type arena struct {
	entries map[string]*entry
}

func newArena() *arena {
	return &arena{entries: make(map[string]*entry)}
}

func arenaKey(entity string, id interface{}) string {
	return entity + "#" + fmt.Sprint(id)
}

func (a *arena) get(entity string, id interface{}) (*entry, bool) {
	e, ok := a.entries[arenaKey(entity, id)]
	return e, ok
}

// attach returns the managed copy of row. A row already in the arena wins
// over the fresh one; only relations it has not loaded yet are taken over.
func (a *arena) attach(entity string, id interface{}, row types.Row, readOnly bool) types.Row {
	if id == nil {
		return row
	}
	k := arenaKey(entity, id)
	if e, ok := a.entries[k]; ok {
		for name, v := range row {
			if _, loaded := e.row[name]; !loaded {
				e.row[name] = v
			}
		}
		return e.row
	}
	e := &entry{entity: entity, row: row, readOnly: readOnly}
	if !readOnly {
		e.snapshot = row.Clone()
	}
	a.entries[k] = e
	return row
}

func (a *arena) detach(entity string, id interface{}) bool {
	k := arenaKey(entity, id)
	_, ok := a.entries[k]
	delete(a.entries, k)
	return ok
}

func (a *arena) clear() {
	a.entries = make(map[string]*entry)
}

func (a *arena) len() int { return len(a.entries) }

// sorted returns the entries in key order so flushes are deterministic.
func (a *arena) sorted() []*entry {
	keys := make([]string, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*entry, len(keys))
	for i, k := range keys {
		out[i] = a.entries[k]
	}
	return out
}
