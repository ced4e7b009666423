// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package paging walks page-numbered and offset/limit remote listings.
package paging

import (
	"context"
	"fmt"
)

// DefaultMaxPages bounds a single Paginate call so a remote that always
// reports more results cannot loop forever.
const DefaultMaxPages = 10_000

// PageRequest describes the page to fetch and how to advance to the next.
type PageRequest[O any] interface {
	Opt() O
	Next() PageRequest[O]
}

// Page is a single page of results.
type Page[T any] interface {
	Content() []T
	HasNext() bool
}

// Pager fetches the page described by request.
type Pager[T, O any] func(ctx context.Context, request PageRequest[O]) (Page[T], error)

// Paginate calls pager until a page reports it is the last one and returns
// the accumulated content.
func Paginate[T, O any](ctx context.Context, pageRequest PageRequest[O], pager Pager[T, O]) ([]T, error) {
	items := make([]T, 0)
	for i := 0; ; i++ {
		if i >= DefaultMaxPages {
			return nil, fmt.Errorf("exceeded %d pages", DefaultMaxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("paging canceled: %w", err)
		}
		page, err := pager(ctx, pageRequest)
		if err != nil {
			return nil, fmt.Errorf("failed to get page: %w", err)
		}
		items = append(items, page.Content()...)
		if !page.HasNext() {
			break
		}
		pageRequest = pageRequest.Next()
	}

	return items, nil
}

// PageNumber requests pages by zero-based page number.
type PageNumber int

// Opt returns the page number.
func (p PageNumber) Opt() int {
	return int(p)
}

// Next returns the following page number.
func (p PageNumber) Next() PageRequest[int] {
	return p + 1
}

// Window is an offset/limit pair.
type Window struct {
	Offset int
	Limit  int
}

// OffsetRequest requests pages by offset and limit.
type OffsetRequest Window

// Opt returns the window to fetch.
func (r OffsetRequest) Opt() Window {
	return Window(r)
}

// Next returns the window directly after r.
func (r OffsetRequest) Next() PageRequest[Window] {
	return OffsetRequest{Offset: r.Offset + r.Limit, Limit: r.Limit}
}
