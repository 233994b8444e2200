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

package repository

import (
	"context"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun/schema"
)

// GetParams selects a single entity.
type GetParams struct {
	Filter  types.Filter
	Joins   []types.Join
	Loads   []types.Load
	OrderBy []string
}

// CountParams selects the rows to count.
type CountParams struct {
	Filter types.Filter
	Joins  []types.Join
}

// ListParams selects a list of entities. Search is matched against the
// SearchBy columns.
type ListParams struct {
	Filter   types.Filter
	Joins    []types.Join
	Loads    []types.Load
	Search   string
	SearchBy []string
	OrderBy  []string
	Limit    int
	Offset   int
}

// ReadRepository defines the read operations of a repository.
type ReadRepository[T any] interface {
	Get(ctx context.Context, p GetParams) (*T, error)
	Count(ctx context.Context, p CountParams) (int, error)
	List(ctx context.Context, p ListParams) ([]*T, error)
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// WriteRepository defines the write operations of a repository.
type WriteRepository[T any] interface {
	Create(ctx context.Context, data types.Data) (*T, error)
	CreateMany(ctx context.Context, data []types.Data) ([]*T, error)
	Update(ctx context.Context, data types.Data, filter types.Filter) ([]*T, error)
	UpdateInstance(ctx context.Context, item *T, data types.Data) (bool, *T, error)
	Delete(ctx context.Context, filter types.Filter) (int, error)
	DeleteInstance(ctx context.Context, item *T) bool
	Disable(ctx context.Context, ids []interface{}, extra types.Filter) (int, error)
	Upsert(ctx context.Context, fields []string, keys []string, items ...*T) error
}

// Repository binds read and write operations for the entity type T to one
// session.
type Repository[T any] interface {
	ReadRepository[T]
	WriteRepository[T]
	Config() Config
	Session() *database.Session
	Table() *schema.Table
}
