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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageRequest is returned for malformed paging parameters.
var ErrInvalidPageRequest = errors.New("invalid page request")

// QueryFilter describes a WHERE clause schema and its argument values.
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter creates a new query filter with schema and args.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{schema, args}
}

// Direction is the sort direction of an Order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) IsValid() bool { return d == Ascending || d == Descending }

func (d Direction) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

func (d Direction) Name() string {
	switch d {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return IllegalName
	}
}

func (d Direction) String() string { return d.Name() }

func (d Direction) Desc() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return IllegalDesc
	}
}

// Order is a single (field, direction) sort entry.
type Order struct {
	Field     string
	Direction Direction
}

// Asc orders by field ascending.
func Asc(field string) Order { return Order{Field: field, Direction: Ascending} }

// Desc orders by field descending.
func Desc(field string) Order { return Order{Field: field, Direction: Descending} }

func (o Order) String() string { return o.Field + " " + o.Direction.Name() }

// ParseOrder parses "username", "username,desc" or "username desc".
func ParseOrder(s string) (Order, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Order{}, fmt.Errorf("%w: empty sort", ErrInvalidPageRequest)
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	o := Asc(parts[0])
	if len(parts) > 1 {
		d, ok := ParseEnum(parts[1], Ascending, Descending)
		if !ok {
			return Order{}, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidPageRequest, parts[1])
		}
		o.Direction = d
	}
	return o, nil
}

// PageRequest describes a result window: offset, limit and ordering.
type PageRequest struct {
	offset int
	limit  int
	sort   []Order
}

// NewPageRequest builds a request for the zero-based page of the given size.
func NewPageRequest(page int, size int, sort ...Order) *PageRequest {
	return &PageRequest{offset: page * size, limit: size, sort: sort}
}

// NewOffsetRequest builds a request from a raw offset and limit.
func NewOffsetRequest(offset int, limit int, sort ...Order) *PageRequest {
	return &PageRequest{offset: offset, limit: limit, sort: sort}
}

func (p *PageRequest) GetOffset() int { return p.offset }

func (p *PageRequest) GetLimit() int { return p.limit }

// GetPage returns the zero-based page index of the request.
func (p *PageRequest) GetPage() int {
	if p.limit <= 0 {
		return 0
	}
	return p.offset / p.limit
}

func (p *PageRequest) GetSort() []Order {
	out := make([]Order, len(p.sort))
	copy(out, p.sort)
	return out
}

// Validate checks offset >= 0 and limit > 0.
func (p *PageRequest) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidPageRequest)
	}
	if p.limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidPageRequest, p.limit)
	}
	if p.offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidPageRequest, p.offset)
	}
	return nil
}

// Next returns the request for the following window.
func (p *PageRequest) Next() *PageRequest {
	return &PageRequest{offset: p.offset + p.limit, limit: p.limit, sort: p.sort}
}

// WithSort returns a copy of the request ordered by sort.
func (p *PageRequest) WithSort(sort ...Order) *PageRequest {
	return &PageRequest{offset: p.offset, limit: p.limit, sort: sort}
}

// Page holds one window of results along with the total element count.
// Page metadata (page count, first/last flags) is always derived.
type Page[T any] struct {
	Content []T
	Total   int
	Offset  int
	Limit   int
}

// NewPage constructs a page for the given request.
func NewPage[T any](content []T, req *PageRequest, total int) *Page[T] {
	if content == nil {
		content = make([]T, 0)
	}
	return &Page[T]{Content: content, Total: total, Offset: req.GetOffset(), Limit: req.GetLimit()}
}

// TotalPages is ceil(Total/Limit), zero when there are no elements.
func (p *Page[T]) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Number is the zero-based index of this page.
func (p *Page[T]) Number() int {
	if p.Limit <= 0 {
		return 0
	}
	return p.Offset / p.Limit
}

func (p *Page[T]) NumberOfElements() int { return len(p.Content) }

func (p *Page[T]) HasContent() bool { return len(p.Content) > 0 }

func (p *Page[T]) HasPrevious() bool { return p.Offset > 0 }

func (p *Page[T]) HasNext() bool { return p.Offset+p.Limit < p.Total }

func (p *Page[T]) IsFirst() bool { return !p.HasPrevious() }

func (p *Page[T]) IsLast() bool { return !p.HasNext() }

// MarshalJSON renders the page with its derived metadata.
func (p *Page[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Content          []T  `json:"content"`
		TotalElements    int  `json:"totalElements"`
		TotalPages       int  `json:"totalPages"`
		Number           int  `json:"number"`
		Size             int  `json:"size"`
		NumberOfElements int  `json:"numberOfElements"`
		First            bool `json:"first"`
		Last             bool `json:"last"`
	}{
		Content:          p.Content,
		TotalElements:    p.Total,
		TotalPages:       p.TotalPages(),
		Number:           p.Number(),
		Size:             p.Limit,
		NumberOfElements: len(p.Content),
		First:            p.IsFirst(),
		Last:             p.IsLast(),
	})
}

// MapPage converts the content of a page element by element.
func MapPage[T any, U any](p *Page[T], fn func(T) U) *Page[U] {
	out := make([]U, len(p.Content))
	for i, v := range p.Content {
		out[i] = fn(v)
	}
	return &Page[U]{Content: out, Total: p.Total, Offset: p.Offset, Limit: p.Limit}
}
