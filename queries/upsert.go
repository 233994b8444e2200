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
	"fmt"

	"github.com/tomoncle/sqlrepo/filters"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Upsert inserts items, updating fields on rows that collide on keys. Keys
// default to the primary key.
func (q *Query[T]) Upsert(ctx context.Context, fields, keys []string, useFlush bool, items ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: upsert fields cannot be empty", types.ErrQuery)
	}
	if len(items) == 0 {
		return nil
	}
	columns, err := q.columnIdents(fields)
	if err != nil {
		return err
	}
	var keyColumns []bun.Ident
	if len(keys) == 0 {
		for _, pk := range q.table.PKs {
			keyColumns = append(keyColumns, bun.Ident(pk.Name))
		}
	} else if keyColumns, err = q.columnIdents(keys); err != nil {
		return err
	}

	db, err := q.session.Conn(ctx)
	if err != nil {
		return err
	}
	switch {
	case q.session.HasFeature(feature.InsertOnConflict):
		err = q.upsertOnConflict(ctx, db, columns, keyColumns, items)
	case q.session.HasFeature(feature.InsertOnDuplicateKey):
		err = q.upsertOnDuplicateKey(ctx, db, columns, items)
	default:
		err = q.upsertFallback(ctx, db, items)
	}
	if err != nil {
		return err
	}
	if err := q.finish(ctx, useFlush); err != nil {
		return err
	}
	q.logger.Debug("Items upserted", "model", q.table.Type.Name(), "count", len(items))
	return nil
}

func (q *Query[T]) columnIdents(names []string) ([]bun.Ident, error) {
	idents := make([]bun.Ident, 0, len(names))
	for _, name := range names {
		field, err := filters.LookupField(q.table, name)
		if err != nil {
			return nil, err
		}
		idents = append(idents, bun.Ident(field.Name))
	}
	return idents, nil
}

func (q *Query[T]) upsertOnConflict(ctx context.Context, db bun.IDB, columns, keys []bun.Ident, items []*T) error {
	stmt := db.NewInsert().Model(&items).On("CONFLICT (?) DO UPDATE", bun.In(keys))
	for _, col := range columns {
		stmt = stmt.Set("? = EXCLUDED.?", col, col)
	}
	_, err := stmt.Exec(ctx)
	return err
}

func (q *Query[T]) upsertOnDuplicateKey(ctx context.Context, db bun.IDB, columns []bun.Ident, items []*T) error {
	stmt := db.NewInsert().Model(&items).On("DUPLICATE KEY UPDATE")
	for _, col := range columns {
		stmt = stmt.Set("? = VALUES(?)", col, col)
	}
	_, err := stmt.Exec(ctx)
	return err
}

// upsertFallback inserts each item and updates it by primary key when the
// insert fails.
func (q *Query[T]) upsertFallback(ctx context.Context, db bun.IDB, items []*T) error {
	for _, item := range items {
		_, err := db.NewInsert().Model(item).Exec(ctx)
		if err == nil {
			continue
		}
		if _, updateErr := db.NewUpdate().Model(item).WherePK().Exec(ctx); updateErr != nil {
			return fmt.Errorf("upsert failed for %s: insert error: %v, update error: %w",
				q.table.Type.Name(), err, updateErr)
		}
	}
	return nil
}
