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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/znxmin/data-jpa/registry"
)

type columnSpec struct {
	Name    string
	NotNull bool
}

// TableDrift lists where a live table disagrees with its entity descriptor.
type TableDrift struct {
	Entity  string
	Table   string
	Absent  bool     // the table does not exist
	Missing []string // descriptor columns the table lacks
	NotNull []string // nullable fields stored in NOT NULL columns
	Extra   []string // table columns no field maps to
}

// OK reports whether the table can serve every field of its entity.
// Extra columns are tolerated.
func (d TableDrift) OK() bool {
	return !d.Absent && len(d.Missing) == 0 && len(d.NotNull) == 0
}

func (d TableDrift) String() string {
	if d.Absent {
		return fmt.Sprintf("%s: table %s does not exist", d.Entity, d.Table)
	}
	var parts []string
	if len(d.Missing) > 0 {
		parts = append(parts, "missing columns "+strings.Join(d.Missing, ", "))
	}
	if len(d.NotNull) > 0 {
		parts = append(parts, "NOT NULL on nullable fields "+strings.Join(d.NotNull, ", "))
	}
	if len(d.Extra) > 0 {
		parts = append(parts, "unmapped columns "+strings.Join(d.Extra, ", "))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: table %s ok", d.Entity, d.Table)
	}
	return fmt.Sprintf("%s: table %s: %s", d.Entity, d.Table, strings.Join(parts, "; "))
}

// CheckSchema compares every registered entity with the columns its table
// has in db. It only reads the catalog; nothing is altered.
func CheckSchema(ctx context.Context, db *bun.DB, reg *registry.Registry) ([]TableDrift, error) {
	var out []TableDrift
	for _, ent := range reg.Entities() {
		existing, err := listExistingColumns(ctx, db, ent.Table())
		if err != nil {
			return nil, Classify(err)
		}
		out = append(out, planColumns(ent, existing))
	}
	return out, nil
}

func planColumns(ent *registry.EntityDescriptor, existing map[string]columnSpec) TableDrift {
	d := TableDrift{Entity: ent.Name(), Table: ent.Table()}
	if len(existing) == 0 {
		d.Absent = true
		return d
	}
	desired := make(map[string]bool)
	for _, f := range ent.Fields() {
		desired[f.Column] = true
		col, ok := existing[f.Column]
		switch {
		case !ok:
			d.Missing = append(d.Missing, f.Column)
		case f.Nullable && col.NotNull:
			d.NotNull = append(d.NotNull, f.Column)
		}
	}
	for name := range existing {
		if !desired[name] {
			d.Extra = append(d.Extra, name)
		}
	}
	sort.Strings(d.Extra)
	return d
}

func listExistingColumns(ctx context.Context, db *bun.DB, table string) (map[string]columnSpec, error) {
	cols := map[string]columnSpec{}
	name := db.Dialect().Name()
	var rows *sql.Rows
	var err error
	switch name {
	case dialect.PG:
		rows, err = db.QueryContext(ctx, `SELECT column_name, is_nullable FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?`, table)
	case dialect.MySQL:
		rows, err = db.QueryContext(ctx, `SELECT COLUMN_NAME, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, table)
	default:
		rows, err = db.QueryContext(ctx, `PRAGMA table_info(?)`, table)
	}
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var col, nullable string
		switch name {
		case dialect.PG, dialect.MySQL:
			if err := rows.Scan(&col, &nullable); err != nil {
				return nil, err
			}
		default:
			var cid, notnull, pk int
			var typ string
			var def sql.NullString
			if err := rows.Scan(&cid, &col, &typ, &notnull, &def, &pk); err != nil {
				return nil, err
			}
			nullable = map[bool]string{true: "NO", false: "YES"}[notnull == 1]
		}
		cols[col] = columnSpec{Name: col, NotNull: strings.EqualFold(nullable, "NO")}
	}
	return cols, rows.Err()
}
