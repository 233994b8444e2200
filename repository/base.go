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
	"fmt"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/filters"
	"github.com/tomoncle/sqlrepo/queries"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	cfg     Config
	session *database.Session
	query   *queries.Query[T]
}

// NewRepository binds a repository for T to the session. The configuration
// is validated against the entity table.
func NewRepository[T any](session *database.Session, cfg Config) (Repository[T], error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", types.ErrRepositoryConfig)
	}
	cfg = cfg.clone()
	q, err := queries.NewQuery[T](session, queries.Options{
		Strategy:            cfg.Strategy,
		ColumnMapping:       cfg.ColumnMapping,
		SearchUseAnd:        cfg.SearchUseAnd,
		SearchCaseSensitive: cfg.SearchCaseSensitive,
	})
	if err != nil {
		return nil, err
	}
	table := q.Table()
	for _, name := range []string{cfg.DisableField, cfg.DisableIDField} {
		if name == "" {
			continue
		}
		if _, err := filters.LookupField(table, name); err != nil {
			return nil, fmt.Errorf("%w: disable field: %w", types.ErrRepositoryConfig, err)
		}
	}
	if cfg.DisableFieldType != types.DisableFieldUnset && !cfg.DisableFieldType.IsValid() {
		return nil, fmt.Errorf("%w: invalid disable field type %d", types.ErrRepositoryConfig, int(cfg.DisableFieldType))
	}
	return &baseRepositoryImpl[T]{cfg: cfg, session: session, query: q}, nil
}

func (r *baseRepositoryImpl[T]) Config() Config { return r.cfg.clone() }

func (r *baseRepositoryImpl[T]) Session() *database.Session { return r.session }

func (r *baseRepositoryImpl[T]) Table() *schema.Table { return r.query.Table() }

func (r *baseRepositoryImpl[T]) Get(ctx context.Context, p GetParams) (*T, error) {
	item, err := r.query.GetItem(ctx, queries.SelectParams{
		Filter:  p.Filter,
		Joins:   p.Joins,
		Loads:   p.Loads,
		OrderBy: p.OrderBy,
	})
	return item, wrapError("get", err)
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, p CountParams) (int, error) {
	n, err := r.query.GetItemsCount(ctx, p.Joins, p.Filter)
	return n, wrapError("count", err)
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, p ListParams) ([]*T, error) {
	items, err := r.query.GetItemList(ctx, queries.SelectParams{
		Filter:   p.Filter,
		Joins:    p.Joins,
		Loads:    p.Loads,
		Search:   p.Search,
		SearchBy: p.SearchBy,
		OrderBy:  p.OrderBy,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}, r.cfg.UniqueListItems)
	if err != nil {
		return nil, wrapError("list", err)
	}
	return items, nil
}

// Page counts the matching rows and loads the requested page. An empty
// result skips the second query.
func (r *baseRepositoryImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(1, 0)
	}
	pagination := types.NewDefaultPagination[T](page.GetPage(), page.GetPageSize())
	total, err := r.query.GetItemsCount(ctx, nil, page.GetFilter())
	if err != nil || total == 0 {
		return pagination, wrapError("page", err)
	}
	items, err := r.query.GetItemList(ctx, queries.SelectParams{
		Filter:  page.GetFilter(),
		OrderBy: page.GetOrders(),
		Limit:   page.GetPageSize(),
		Offset:  page.GetOffset(),
	}, r.cfg.UniqueListItems)
	if err != nil {
		return nil, wrapError("page", err)
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, data types.Data) (*T, error) {
	item, err := r.query.CreateItem(ctx, data, r.cfg.UseFlush)
	return item, wrapError("create", err)
}

func (r *baseRepositoryImpl[T]) CreateMany(ctx context.Context, data []types.Data) ([]*T, error) {
	items, err := r.query.CreateItems(ctx, data, r.cfg.UseFlush)
	return items, wrapError("create_many", err)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, data types.Data, filter types.Filter) ([]*T, error) {
	items, err := r.query.DBUpdate(ctx, data, filter, r.cfg.UseFlush)
	return items, wrapError("update", err)
}

// UpdateInstance assigns data onto a loaded entity and writes the changed
// columns. It reports whether anything changed.
func (r *baseRepositoryImpl[T]) UpdateInstance(ctx context.Context, item *T, data types.Data) (bool, *T, error) {
	changed, item, err := r.query.ChangeItem(ctx, item, data,
		r.cfg.UpdateSetNone, r.cfg.UpdateAllowedNoneFields, r.cfg.UseFlush)
	return changed, item, wrapError("update_instance", err)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, filter types.Filter) (int, error) {
	n, err := r.query.DBDelete(ctx, filter, r.cfg.UseFlush)
	return n, wrapError("delete", err)
}

// DeleteInstance deletes a loaded entity. It returns false, and rolls the
// session back, when the delete fails.
func (r *baseRepositoryImpl[T]) DeleteInstance(ctx context.Context, item *T) bool {
	return r.query.DeleteItem(ctx, item, r.cfg.UseFlush)
}

// Disable marks the rows with the given ids as disabled. The repository
// must be configured with the disable id field, field and field type.
func (r *baseRepositoryImpl[T]) Disable(ctx context.Context, ids []interface{}, extra types.Filter) (int, error) {
	if r.cfg.DisableIDField == "" || r.cfg.DisableField == "" || r.cfg.DisableFieldType == types.DisableFieldUnset {
		err := fmt.Errorf("%w: disable requires DisableIDField, DisableField and DisableFieldType", types.ErrRepositoryConfig)
		r.query.Logger().Error("Disable misconfigured", "model", r.query.Table().Type.Name(), "error", err)
		return 0, err
	}
	n, err := r.query.DisableItems(ctx, queries.DisableParams{
		IDs:           ids,
		IDField:       r.cfg.DisableIDField,
		Field:         r.cfg.DisableField,
		FieldType:     r.cfg.DisableFieldType,
		FilterByValue: r.cfg.AllowDisableFilterByValue,
		Extra:         extra,
	}, r.cfg.UseFlush)
	return n, wrapError("disable", err)
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, keys []string, items ...*T) error {
	return wrapError("upsert", r.query.Upsert(ctx, fields, keys, r.cfg.UseFlush, items...))
}
