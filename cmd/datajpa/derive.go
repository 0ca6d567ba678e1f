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

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/znxmin/data-jpa/query"
)

var deriveCmd = &cobra.Command{
	Use:   "derive <entity> <method> [args...]",
	Short: "Print the query derived from a repository method name",
	Long: `derive parses a method name such as findByUsernameAndAgeGreaterThan against
an entity and prints its predicate. With arguments it also renders the
SELECT statement for the chosen dialect. Numbers, booleans and
comma-separated lists are recognised in arguments.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fetch, _ := cmd.Flags().GetStringSlice("fetch")
		lock, _ := cmd.Flags().GetBool("lock")
		dialectName, _ := cmd.Flags().GetString("dialect")
		var opts []query.Option
		if len(fetch) > 0 {
			opts = append(opts, query.Fetch(fetch...))
		}
		if lock {
			opts = append(opts, query.WithLock(query.LockPessimisticWrite))
		}
		return runDerive(cmd.OutOrStdout(), dialectName, args[0], args[1], args[2:], opts...)
	},
}

func init() {
	deriveCmd.Flags().StringSlice("fetch", nil, "Relations to fetch with the rows")
	deriveCmd.Flags().Bool("lock", false, "Derive with a pessimistic write lock")
	deriveCmd.Flags().String("dialect", "pg", "SQL dialect for rendering (pg, mysql, sqlite)")
}

func runDerive(w io.Writer, dialectName, entity, method string, raw []string, opts ...query.Option) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	m, err := query.Derive(reg, entity, method, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "descriptor: %s\n", m.Template())
	fmt.Fprintf(w, "arguments:  %d\n", m.Arity())
	if len(raw) == 0 && m.Arity() > 0 {
		return nil
	}

	args := make([]interface{}, len(raw))
	for i, s := range raw {
		args[i] = parseArg(s)
	}
	q, err := m.Bind(args...)
	if err != nil {
		return err
	}
	d, err := dialectFor(dialectName)
	if err != nil {
		return err
	}
	ent, err := reg.Resolve(entity)
	if err != nil {
		return err
	}

	c := query.NewCompiler(reg, ent)
	where, whereArgs, err := c.Where(q.Where)
	if err != nil {
		return err
	}
	orders, orderArgs, err := c.OrderBy(q.Sort)
	if err != nil {
		return err
	}
	f := schema.NewFormatter(d)

	var sb strings.Builder
	sb.WriteString(f.FormatQuery("SELECT ?.* FROM ? AS ?", schema.Ident(ent.Alias()), schema.Ident(ent.Table()), schema.Ident(ent.Alias())))
	for _, j := range c.Joins() {
		expr, joinArgs := j.Expr(ent.Alias())
		sb.WriteString(" " + f.FormatQuery(expr, joinArgs...))
	}
	if where != "" {
		sb.WriteString(" WHERE " + f.FormatQuery(where, whereArgs...))
	}
	for i, o := range orders {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(f.FormatQuery(o, orderArgs[i]...))
	}
	if q.MaxResults > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.MaxResults)
	}
	fmt.Fprintf(w, "sql:        %s\n", sb.String())
	if len(q.FetchHints) > 0 {
		fmt.Fprintf(w, "fetch:      %s\n", strings.Join(q.FetchHints, ", "))
	}
	return nil
}

func dialectFor(name string) (schema.Dialect, error) {
	switch name {
	case "pg", "postgres", "pgx":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite", "sqlite3":
		return sqlitedialect.New(), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

func parseArg(s string) interface{} {
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = parseArg(strings.TrimSpace(p))
		}
		return out
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
