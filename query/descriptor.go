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

package query

import (
	"errors"
	"strings"

	"github.com/znxmin/data-jpa/predicate"
	"github.com/znxmin/data-jpa/types"
)

var (
	ErrUnknownField        = errors.New("unknown field")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidDescriptor   = errors.New("invalid query descriptor")
	ErrInvalidArguments    = errors.New("invalid query arguments")
	ErrAmbiguousResult     = errors.New("query returned more than one result")
)

// Kind is what a query produces: rows, a count, an existence flag or a
// delete.
type Kind int

const (
	KindFind Kind = iota
	KindCount
	KindExists
	KindDelete
)

var kindNames = []string{"find", "count", "exists", "delete"}

func (k Kind) IsValid() bool { return k >= KindFind && k <= KindDelete }

func (k Kind) Number() int {
	if !k.IsValid() {
		return types.IllegalValue
	}
	return int(k)
}

func (k Kind) Name() string {
	if !k.IsValid() {
		return types.IllegalName
	}
	return kindNames[k]
}

func (k Kind) String() string { return k.Name() }

func (k Kind) Desc() string { return k.Name() + " query" }

// LockMode selects row locking for a find query.
type LockMode int

const (
	LockNone LockMode = iota
	LockPessimisticWrite
)

// Descriptor is a fully bound query: entity, predicate (nil selects every
// row) and ordering, plus execution hints.
type Descriptor struct {
	Entity     string
	Where      predicate.Node
	Sort       []types.Order
	Kind       Kind
	MaxResults int
	Distinct   bool
	Lock       LockMode
	ReadOnly   bool
	FetchHints []string
}

// New builds a find descriptor.
func New(entity string, where predicate.Node, sort ...types.Order) Descriptor {
	return Descriptor{Entity: entity, Where: where, Sort: sort}
}

// WithSort returns a copy ordered by sort.
func (d Descriptor) WithSort(sort ...types.Order) Descriptor {
	d.Sort = append([]types.Order(nil), sort...)
	return d
}

// WithFetch returns a copy that eagerly loads the named relations.
func (d Descriptor) WithFetch(relations ...string) Descriptor {
	d.FetchHints = append(append([]string(nil), d.FetchHints...), relations...)
	return d
}

func (d Descriptor) WithLock(mode LockMode) Descriptor {
	d.Lock = mode
	return d
}

// AsReadOnly marks rows loaded by the query as never flushed.
func (d Descriptor) AsReadOnly() Descriptor {
	d.ReadOnly = true
	return d
}

// AsKind returns a copy producing k.
func (d Descriptor) AsKind(k Kind) Descriptor {
	d.Kind = k
	return d
}

func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteString(d.Kind.Name())
	sb.WriteByte(' ')
	sb.WriteString(d.Entity)
	if d.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(d.Where.String())
	}
	if len(d.Sort) > 0 {
		parts := make([]string, len(d.Sort))
		for i, o := range d.Sort {
			parts[i] = o.String()
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
