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

package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Query executes the statements of a BaseQuery on a session. It keeps no
// state between calls.
type Query[T any] struct {
	*BaseQuery[T]
	session *database.Session
	logger  database.Logger
}

func NewQuery[T any](session *database.Session, opts Options) (*Query[T], error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", types.ErrRepositoryConfig)
	}
	base, err := NewBaseQuery[T](session.DB(), opts)
	if err != nil {
		return nil, err
	}
	logger := session.Logger()
	if logger == nil {
		logger = database.GetLogger()
	}
	return &Query[T]{BaseQuery: base, session: session, logger: logger}, nil
}

// Session returns the session the query runs on.
func (q *Query[T]) Session() *database.Session { return q.session }

func (q *Query[T]) Logger() database.Logger { return q.logger }

func (q *Query[T]) finish(ctx context.Context, useFlush bool) error {
	if useFlush {
		return q.session.Flush(ctx)
	}
	return q.session.Commit(ctx)
}

// GetItem returns the first matching row, or nil when nothing matches.
func (q *Query[T]) GetItem(ctx context.Context, p SelectParams) (*T, error) {
	p.Limit = 1
	items, err := q.GetItemList(ctx, p, false)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (q *Query[T]) GetItemsCount(ctx context.Context, joins []types.Join, f types.Filter) (int, error) {
	db, err := q.session.Conn(ctx)
	if err != nil {
		return 0, err
	}
	stmt, err := q.CountStmt(db, joins, f)
	if err != nil {
		return 0, err
	}
	return stmt.Count(ctx)
}

// GetItemList returns the matching rows. With unique set, rows repeated by
// joins are dropped by primary key.
func (q *Query[T]) GetItemList(ctx context.Context, p SelectParams, unique bool) ([]*T, error) {
	db, err := q.session.Conn(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*T, 0)
	stmt, err := q.SelectStmt(db, &items, p)
	if err != nil {
		return nil, err
	}
	if err := stmt.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if unique {
		items = q.uniqueItems(items)
	}
	return items, nil
}

func (q *Query[T]) pkKey(item *T) string {
	v := reflect.ValueOf(item).Elem()
	parts := make([]string, 0, len(q.table.PKs))
	for _, pk := range q.table.PKs {
		parts = append(parts, fmt.Sprint(pk.Value(v).Interface()))
	}
	return strings.Join(parts, "\x00")
}

func (q *Query[T]) uniqueItems(items []*T) []*T {
	if len(q.table.PKs) == 0 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := q.pkKey(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// DBCreate inserts one entity built from data with an insert statement.
func (q *Query[T]) DBCreate(ctx context.Context, data types.Data, useFlush bool) (*T, error) {
	items, err := q.DBCreateMany(ctx, []types.Data{data}, useFlush)
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (q *Query[T]) DBCreateMany(ctx context.Context, data []types.Data, useFlush bool) ([]*T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: nothing to create", types.ErrQuery)
	}
	items, err := q.buildItems(data)
	if err != nil {
		return nil, err
	}
	db, err := q.session.Conn(ctx)
	if err != nil {
		return nil, err
	}
	res, err := q.InsertStmt(db, &items).Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: no %s rows inserted", types.ErrQuery, q.table.Type.Name())
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return nil, err
	}
	q.logger.Debug("Items created", "model", q.table.Type.Name(), "count", len(items))
	return items, nil
}

// CreateItem builds an entity and queues it on the session.
func (q *Query[T]) CreateItem(ctx context.Context, data types.Data, useFlush bool) (*T, error) {
	items, err := q.CreateItems(ctx, []types.Data{data}, useFlush)
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (q *Query[T]) CreateItems(ctx context.Context, data []types.Data, useFlush bool) ([]*T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: nothing to create", types.ErrQuery)
	}
	items, err := q.buildItems(data)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := q.session.Add(item); err != nil {
			return nil, err
		}
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return nil, err
	}
	q.logger.Debug("Items created", "model", q.table.Type.Name(), "count", len(items))
	return items, nil
}

// DBUpdate updates the matching rows and returns them as stored.
func (q *Query[T]) DBUpdate(ctx context.Context, data types.Data, f types.Filter, useFlush bool) ([]*T, error) {
	db, err := q.session.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := q.UpdateStmt(db, data, f)
	if err != nil {
		return nil, err
	}

	items := make([]*T, 0)
	if q.session.HasFeature(feature.Returning) {
		if err := stmt.Returning("*").Scan(ctx, &items); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	} else {
		if items, err = q.updateThenSelect(ctx, db, stmt, f); err != nil {
			return nil, err
		}
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return nil, err
	}
	q.logger.Debug("Items updated", "model", q.table.Type.Name(), "count", len(items))
	return items, nil
}

// updateThenSelect captures the primary keys of the matching rows before
// the update, since the update may change the filtered columns.
func (q *Query[T]) updateThenSelect(ctx context.Context, db bun.IDB, stmt *bun.UpdateQuery, f types.Filter) ([]*T, error) {
	matched := make([]*T, 0)
	sel := db.NewSelect().Model(&matched)
	for _, pk := range q.table.PKs {
		sel = sel.Column(pk.Name)
	}
	if err := q.applyFilter(f, func(s string, args ...interface{}) { sel = sel.Where(s, args...) }); err != nil {
		return nil, err
	}
	if err := sel.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := stmt.Exec(ctx); err != nil {
		return nil, err
	}
	items := make([]*T, 0, len(matched))
	if len(matched) == 0 {
		return items, nil
	}
	reload := db.NewSelect().Model(&items)
	for _, m := range matched {
		v := reflect.ValueOf(m).Elem()
		reload = reload.WhereGroup(" OR ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, pk := range q.table.PKs {
				sq = sq.Where("?TableAlias.? = ?", bun.Ident(pk.Name), pk.Value(v).Interface())
			}
			return sq
		})
	}
	if err := reload.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return items, nil
}

// ChangeItem assigns data onto a loaded entity and queues the changed
// columns. Nil values are skipped unless setNone is true and the field is
// allowed; a nil allowedNone allows every field.
func (q *Query[T]) ChangeItem(ctx context.Context, item *T, data types.Data, setNone bool, allowedNone []string, useFlush bool) (bool, *T, error) {
	if item == nil {
		return false, nil, fmt.Errorf("%w: nil %s instance", types.ErrQuery, q.table.Type.Name())
	}
	changed, columns, err := q.changeItem(item, data, setNone, allowedNone)
	if err != nil {
		return false, item, err
	}
	if changed {
		if err := q.session.MarkDirty(item, columns...); err != nil {
			return false, item, err
		}
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return false, item, err
	}
	if changed {
		q.logger.Debug("Item changed", "model", q.table.Type.Name(), "columns", strings.Join(columns, ","))
	}
	return changed, item, nil
}

// DBDelete deletes the matching rows and returns how many were removed.
func (q *Query[T]) DBDelete(ctx context.Context, f types.Filter, useFlush bool) (int, error) {
	db, err := q.session.Conn(ctx)
	if err != nil {
		return 0, err
	}
	stmt, err := q.DeleteStmt(db, f)
	if err != nil {
		return 0, err
	}
	res, err := stmt.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return 0, err
	}
	q.logger.Debug("Items deleted", "model", q.table.Type.Name(), "count", n)
	return int(n), nil
}

// DeleteItem deletes a loaded entity. Failures roll the session back and
// report false.
func (q *Query[T]) DeleteItem(ctx context.Context, item *T, useFlush bool) bool {
	err := q.session.Delete(item)
	if err == nil {
		err = q.finish(ctx, useFlush)
	}
	if err != nil {
		if rbErr := q.session.Rollback(ctx); rbErr != nil {
			q.logger.Error("Rollback after failed delete", "model", q.table.Type.Name(), "error", rbErr)
		}
		_, kind := database.IsSqlError(err)
		q.logger.Warn("Item delete failed", "model", q.table.Type.Name(), "kind", kind, "error", err)
		return false
	}
	q.logger.Debug("Item deleted", "model", q.table.Type.Name())
	return true
}

// DisableItems marks the rows with the given ids as disabled and returns the
// number of rows changed.
func (q *Query[T]) DisableItems(ctx context.Context, p DisableParams, useFlush bool) (int, error) {
	if len(p.IDs) == 0 {
		return 0, nil
	}
	db, err := q.session.Conn(ctx)
	if err != nil {
		return 0, err
	}
	stmt, err := q.DisableStmt(db, p)
	if err != nil {
		q.logger.Error("Disable rejected", "model", q.table.Type.Name(), "error", err)
		return 0, err
	}
	res, err := stmt.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return 0, err
	}
	q.logger.Debug("Items disabled", "model", q.table.Type.Name(), "count", n)
	return int(n), nil
}
