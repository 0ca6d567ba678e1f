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
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datajpa_queries_total",
			Help: "Total number of statements executed, by operation",
		},
		[]string{"operation"},
	)
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datajpa_query_duration_seconds",
			Help:    "Statement latency in seconds, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	queryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datajpa_query_errors_total",
			Help: "Statements that returned an error, by operation",
		},
		[]string{"operation"},
	)
)

// MetricsHook exports per-operation statement counts and latencies.
type MetricsHook struct{}

func NewMetricsHook() *MetricsHook { return &MetricsHook{} }

func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	op := strings.ToLower(event.Operation())
	queriesTotal.WithLabelValues(op).Inc()
	queryDuration.WithLabelValues(op).Observe(time.Since(event.StartTime).Seconds())
	if event.Err != nil {
		if is, class := IsSqlError(event.Err); !is || class != NoRowsErr {
			queryErrors.WithLabelValues(op).Inc()
		}
	}
}
