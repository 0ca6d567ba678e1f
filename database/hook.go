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
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes QueryHook and SlowQueryHook process-wide.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

var (
	selectColor  = color.New(color.FgGreen)
	insertColor  = color.New(color.FgBlue)
	updateColor  = color.New(color.FgYellow)
	deleteColor  = color.New(color.FgMagenta)
	otherColor   = color.New(color.FgRed)
	errorColor   = color.New(color.BgRed, color.FgHiWhite)
	bunTagColor  = color.New(color.FgCyan)
	slowTagColor = color.New(color.FgYellow, color.Bold)
)

// QueryHook prints every statement in colour. Setting the environment
// variable named by FromEnv overrides the static switches: "0" disables,
// "1" logs failures only, "2" logs everything.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

type QueryHookOption func(*QueryHook)

func WithEnabled(on bool) QueryHookOption { return func(h *QueryHook) { h.enabled = on } }

func WithVerbose(on bool) QueryHookOption { return func(h *QueryHook) { h.verbose = on } }

func FromEnv(name string) QueryHookOption { return func(h *QueryHook) { h.envName = name } }

func WithWriter(w io.Writer) QueryHookOption { return func(h *QueryHook) { h.writer = w } }

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{enabled: true, verbose: true, envName: "DATAJPA_SQL", writer: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ bun.QueryHook = (*QueryHook)(nil)

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	enabled, verbose := h.enabled, h.verbose
	if env, ok := os.LookupEnv(h.envName); ok && h.envName != "" {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		bunTagColor.Sprintf("%10s", "[BUN]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", errorColor.Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return selectColor
	case "INSERT":
		return insertColor
	case "UPDATE":
		return updateColor
	case "DELETE":
		return deleteColor
	default:
		return otherColor
	}
}

// SlowQueryHook warns through the package logger about statements slower
// than the threshold.
type SlowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

func NewSlowQueryHook(threshold time.Duration, logger Logger) *SlowQueryHook {
	if logger == nil {
		logger = GetLogger()
	}
	return &SlowQueryHook{threshold: threshold, logger: logger}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() || event.Err != nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration > h.threshold {
		h.logger.Warn(slowTagColor.Sprint("slow query"),
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.threshold,
			"query", event.Query,
		)
	}
}

// CountingHook records the statements a db runs, grouped by operation.
type CountingHook struct {
	mu      sync.Mutex
	counts  map[string]int
	queries []string
}

func NewCountingHook() *CountingHook {
	return &CountingHook{counts: make(map[string]int)}
}

func (h *CountingHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *CountingHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[event.Operation()]++
	h.queries = append(h.queries, event.Query)
}

// Count returns the number of statements of the given operation ("SELECT",
// "UPDATE", ...). An empty operation counts everything.
func (h *CountingHook) Count(operation string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if operation == "" {
		return len(h.queries)
	}
	return h.counts[strings.ToUpper(operation)]
}

func (h *CountingHook) Queries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.queries...)
}

func (h *CountingHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make(map[string]int)
	h.queries = nil
}
