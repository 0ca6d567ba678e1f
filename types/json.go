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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// Row is a flat column->value record returned by the execution gateway.
// Materialized to-one relations are nested Rows under the relation name,
// to-many relations are []Row.
//
// Row also maps onto JSON columns.
type Row map[string]interface{}

// Get resolves a dotted path ("team.name") through nested rows.
func (r Row) Get(path string) (interface{}, bool) {
	cur := r
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(Row)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Clone returns a deep copy of the row, including nested relation rows.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		switch t := v.(type) {
		case Row:
			out[k] = t.Clone()
		case []Row:
			rows := make([]Row, len(t))
			for i := range t {
				rows[i] = t[i].Clone()
			}
			out[k] = rows
		default:
			out[k] = v
		}
	}
	return out
}

// Value implements driver.Valuer for Row.
func (r Row) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for Row.
func (r *Row) Scan(value interface{}) error {
	if value == nil {
		*r = make(Row)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion must be []byte or string")
	}
	return json.Unmarshal(bytes, r)
}
