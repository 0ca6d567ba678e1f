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

// Package gateway is the only component that talks to storage. It runs
// query descriptors through bun and keeps fetched rows in a per-session
// arena keyed by entity and identity.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/znxmin/data-jpa/database"
	"github.com/znxmin/data-jpa/registry"
)

// Gateway is safe for concurrent use. Sessions opened from it are not.
type Gateway struct {
	db     *bun.DB
	reg    *registry.Registry
	logger database.Logger
}

type Option func(*Gateway)

func WithLogger(logger database.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New builds a gateway over db. A nil registry means registry.Default().
func New(db *bun.DB, reg *registry.Registry, opts ...Option) *Gateway {
	if reg == nil {
		reg = registry.Default()
	}
	g := &Gateway{db: db, reg: reg, logger: database.GetLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) DB() *bun.DB { return g.db }

func (g *Gateway) Registry() *registry.Registry { return g.reg }

// Open pins a pooled connection to a new session. The caller must Close it.
func (g *Gateway) Open(ctx context.Context) (*Session, error) {
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, database.Classify(fmt.Errorf("failed to acquire connection: %w", err))
	}
	s := g.newSession(&conn)
	s.release = conn.Close
	return s, nil
}

// WithSession runs fn on a fresh session and releases its connection on
// every exit path. Pending changes are not flushed.
func (g *Gateway) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := g.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			g.logger.Warn("failed to release session", "session", s.ID(), "error", cerr)
		}
	}()
	return fn(ctx, s)
}

// WithTx runs fn inside a transaction. Dirty rows are flushed before the
// commit; any error rolls everything back.
func (g *Gateway) WithTx(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	err := g.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		s := g.newSession(&tx)
		defer s.Clear()
		if err := fn(ctx, s); err != nil {
			return err
		}
		_, err := s.Flush(ctx)
		return err
	})
	return database.Classify(err)
}

func (g *Gateway) newSession(idb bun.IDB) *Session {
	s := &Session{
		id:     uuid.NewString(),
		idb:    idb,
		reg:    g.reg,
		logger: g.logger,
		arena:  newArena(),
	}
	g.logger.Debug("session opened", "session", s.id)
	return s
}
