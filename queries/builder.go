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
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/tomoncle/sqlrepo/filters"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// BaseQuery builds statements for the entity type T. It never executes them.
type BaseQuery[T any] struct {
	db        *bun.DB
	table     *schema.Table
	converter filters.Converter
	opts      Options
}

// NewBaseQuery resolves the bun table of T. T must be a struct type.
func NewBaseQuery[T any](db *bun.DB, opts Options) (*BaseQuery[T], error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", types.ErrRepositoryConfig)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a model struct", types.ErrRepositoryConfig, typ)
	}
	converter, err := filters.ForStrategy(opts.Strategy)
	if err != nil {
		return nil, err
	}
	table := db.Table(typ)
	if len(table.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", types.ErrRepositoryConfig, typ)
	}
	return &BaseQuery[T]{db: db, table: table, converter: converter, opts: opts}, nil
}

// Table returns the bun table of T.
func (b *BaseQuery[T]) Table() *schema.Table { return b.table }

func (b *BaseQuery[T]) model() *T { return (*T)(nil) }

// applyFilter converts f and adds each predicate through where.
func (b *BaseQuery[T]) applyFilter(f types.Filter, where func(string, ...interface{})) error {
	preds, err := b.converter.Convert(b.table, f)
	if err != nil {
		return err
	}
	for _, p := range preds {
		where(p.Schema, p.Args...)
	}
	return nil
}

// SelectStmt builds a read statement scanning into dest. Stages are applied
// in order: joins, loads, filters, search, order, limit and offset.
func (b *BaseQuery[T]) SelectStmt(db bun.IDB, dest *[]*T, p SelectParams) (*bun.SelectQuery, error) {
	q := db.NewSelect().Model(dest)

	loaded, err := b.loadPaths(p.Loads)
	if err != nil {
		return nil, err
	}
	if q, err = b.applyJoins(q, p.Joins, loaded); err != nil {
		return nil, err
	}
	for _, l := range p.Loads {
		path, _ := b.relationPath(l.Path)
		if l.Apply != nil {
			q = q.Relation(path, l.Apply)
		} else {
			q = q.Relation(path)
		}
	}
	if err := b.applyFilter(p.Filter, func(s string, args ...interface{}) { q = q.Where(s, args...) }); err != nil {
		return nil, err
	}
	if p.Search != "" && len(p.SearchBy) > 0 {
		if q, err = b.applySearch(q, p.Search, p.SearchBy); err != nil {
			return nil, err
		}
	}
	if q, err = b.applyOrder(q, p.OrderBy); err != nil {
		return nil, err
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q, nil
}

// CountStmt builds a count statement with the join and filter stages of a
// read statement.
func (b *BaseQuery[T]) CountStmt(db bun.IDB, joins []types.Join, f types.Filter) (*bun.SelectQuery, error) {
	q, err := b.applyJoins(db.NewSelect().Model(b.model()), joins, nil)
	if err != nil {
		return nil, err
	}
	if err := b.applyFilter(f, func(s string, args ...interface{}) { q = q.Where(s, args...) }); err != nil {
		return nil, err
	}
	return q, nil
}

// InsertStmt builds an insert of the given items.
func (b *BaseQuery[T]) InsertStmt(db bun.IDB, items *[]*T) *bun.InsertQuery {
	return db.NewInsert().Model(items)
}

// UpdateStmt builds an update setting every data key on the rows matching
// f. Keys are written in sorted order.
func (b *BaseQuery[T]) UpdateStmt(db bun.IDB, data types.Data, f types.Filter) (*bun.UpdateQuery, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: update of %s without data", types.ErrQuery, b.table.Type.Name())
	}
	q := db.NewUpdate().Model(b.model())
	for _, key := range sortedDataKeys(data) {
		field, err := filters.LookupField(b.table, key)
		if err != nil {
			return nil, err
		}
		q = q.Set("? = ?", bun.Ident(field.Name), data[key])
	}
	n := 0
	if err := b.applyFilter(f, func(s string, args ...interface{}) { q = q.Where(s, args...); n++ }); err != nil {
		return nil, err
	}
	if n == 0 {
		q = q.Where("1 = 1")
	}
	return q, nil
}

// DeleteStmt builds a delete of the rows matching f.
func (b *BaseQuery[T]) DeleteStmt(db bun.IDB, f types.Filter) (*bun.DeleteQuery, error) {
	q := db.NewDelete().Model(b.model())
	n := 0
	if err := b.applyFilter(f, func(s string, args ...interface{}) { q = q.Where(s, args...); n++ }); err != nil {
		return nil, err
	}
	if n == 0 {
		q = q.Where("1 = 1")
	}
	return q, nil
}

// DisableStmt builds an update marking the rows with the given ids as
// disabled. Unresolvable fields, an unsupported field type and an empty id
// set are errors.
func (b *BaseQuery[T]) DisableStmt(db bun.IDB, p DisableParams) (*bun.UpdateQuery, error) {
	var value interface{}
	switch p.FieldType {
	case types.DisableFieldBool:
		value = true
	case types.DisableFieldTimestamp:
		value = time.Now().UTC()
	default:
		return nil, fmt.Errorf("%w: disable field type must be bool or timestamp, got %s", types.ErrQuery, p.FieldType)
	}
	ids := uniqueIDs(p.IDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: disable requires at least one id", types.ErrQuery)
	}
	idField, err := filters.LookupField(b.table, p.IDField)
	if err != nil {
		return nil, err
	}
	field, err := filters.LookupField(b.table, p.Field)
	if err != nil {
		return nil, err
	}

	col := bun.Ident(field.Name)
	q := db.NewUpdate().Model(b.model()).
		Set("? = ?", col, value).
		Where("?TableAlias.? IN (?)", bun.Ident(idField.Name), bun.In(ids))
	if p.FilterByValue {
		if p.FieldType == types.DisableFieldBool {
			q = q.WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
				return q.Where("?TableAlias.? IS NULL", col).WhereOr("?TableAlias.? = ?", col, false)
			})
		} else {
			q = q.Where("?TableAlias.? IS NULL", col)
		}
	}
	if err := b.applyFilter(p.Extra, func(s string, args ...interface{}) { q = q.Where(s, args...) }); err != nil {
		return nil, err
	}
	return q, nil
}

// relationPath validates a dotted relation path and returns it with Go
// field names, as bun expects.
func (b *BaseQuery[T]) relationPath(path string) (string, []*schema.Relation) {
	table := b.table
	var names []string
	var rels []*schema.Relation
	for _, seg := range strings.Split(path, ".") {
		rel, ok := filters.LookupRelation(table, seg)
		if !ok {
			return "", nil
		}
		names = append(names, rel.Field.GoName)
		rels = append(rels, rel)
		table = rel.JoinTable
	}
	return strings.Join(names, "."), rels
}

// loadPaths validates the loads and returns the paths of those bun joins
// into the main statement.
func (b *BaseQuery[T]) loadPaths(loads []types.Load) (map[string]struct{}, error) {
	joined := make(map[string]struct{})
	for _, l := range loads {
		path, rels := b.relationPath(l.Path)
		if rels == nil {
			return nil, fmt.Errorf("%w: %s has no relation path %q", types.ErrAttribute, b.table.Type.Name(), l.Path)
		}
		toOne := true
		for _, rel := range rels {
			if rel.Type != schema.HasOneRelation && rel.Type != schema.BelongsToRelation {
				toOne = false
			}
		}
		if toOne {
			joined[path] = struct{}{}
		}
	}
	return joined, nil
}

func (b *BaseQuery[T]) applyJoins(q *bun.SelectQuery, joins []types.Join, loaded map[string]struct{}) (*bun.SelectQuery, error) {
	for _, j := range joins {
		var err error
		switch v := j.(type) {
		case types.JoinRelation:
			q, err = b.joinRelation(q, string(v), loaded)
		case types.JoinModel:
			q, err = b.joinModel(q, v, loaded)
		case types.JoinOn:
			q, err = b.joinOn(q, v)
		default:
			err = fmt.Errorf("%w: unsupported join %T", types.ErrQuery, j)
		}
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

// joinRelation joins every relation on the path. Aliases follow bun's
// naming, so a path also loaded as a to-one relation is already joined.
func (b *BaseQuery[T]) joinRelation(q *bun.SelectQuery, path string, loaded map[string]struct{}) (*bun.SelectQuery, error) {
	goPath, rels := b.relationPath(path)
	if rels == nil {
		return nil, fmt.Errorf("%w: %s has no relation path %q", types.ErrAttribute, b.table.Type.Name(), path)
	}
	if _, ok := loaded[goPath]; ok {
		return q, nil
	}
	aliases := make([]string, 0, len(rels))
	for i, rel := range rels {
		if rel.Type == schema.ManyToManyRelation || len(rel.BasePKs) != 1 || len(rel.JoinPKs) != 1 {
			return nil, fmt.Errorf("%w: relation %q cannot be joined", types.ErrQuery, rel.Field.GoName)
		}
		aliases = append(aliases, rel.Field.Name)
		alias := bun.Ident(strings.Join(aliases, "__"))
		q = q.Join("JOIN ? AS ?", rel.JoinTable.SQLName, alias)
		if i == 0 {
			q = q.JoinOn("?TableAlias.? = ?.?", bun.Ident(rel.BasePKs[0].Name), alias, bun.Ident(rel.JoinPKs[0].Name))
		} else {
			parent := bun.Ident(strings.Join(aliases[:i], "__"))
			q = q.JoinOn("?.? = ?.?", parent, bun.Ident(rel.BasePKs[0].Name), alias, bun.Ident(rel.JoinPKs[0].Name))
		}
	}
	return q, nil
}

func (b *BaseQuery[T]) joinModel(q *bun.SelectQuery, j types.JoinModel, loaded map[string]struct{}) (*bun.SelectQuery, error) {
	typ, err := modelType(j.Model)
	if err != nil {
		return nil, err
	}
	for _, name := range sortedRelations(b.table) {
		if rel := b.table.Relations[name]; rel.JoinTable.Type == typ {
			return b.joinRelation(q, name, loaded)
		}
	}
	return nil, fmt.Errorf("%w: %s has no relation to %s", types.ErrAttribute, b.table.Type.Name(), typ.Name())
}

func (b *BaseQuery[T]) joinOn(q *bun.SelectQuery, j types.JoinOn) (*bun.SelectQuery, error) {
	typ, err := modelType(j.Model)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(j.On) == "" {
		return nil, fmt.Errorf("%w: join with %s has no ON clause", types.ErrQuery, typ.Name())
	}
	table := b.db.Table(typ)
	kind := "JOIN"
	switch {
	case j.Full:
		kind = "FULL OUTER JOIN"
	case j.Outer:
		kind = "LEFT JOIN"
	}
	args := append([]interface{}{table.SQLName, table.SQLAlias}, j.Args...)
	return q.Join(kind+" ? AS ? ON "+j.On, args...), nil
}

func (b *BaseQuery[T]) columnRef(name string) (string, []interface{}, error) {
	if expr, ok := b.opts.ColumnMapping[name]; ok {
		return expr, nil, nil
	}
	field, err := filters.LookupField(b.table, name)
	if err != nil {
		return "", nil, err
	}
	return "?TableAlias.?", []interface{}{bun.Ident(field.Name)}, nil
}

// applySearch matches the escaped term as a substring of each column,
// combined with OR unless SearchUseAnd is set.
func (b *BaseQuery[T]) applySearch(q *bun.SelectQuery, term string, by []string) (*bun.SelectQuery, error) {
	pattern := "%" + filters.EscapeLike(term) + "%"
	type clause struct {
		expr string
		args []interface{}
	}
	clauses := make([]clause, 0, len(by))
	for _, name := range by {
		ref, refArgs, err := b.columnRef(name)
		if err != nil {
			return nil, err
		}
		expr, args := filters.Like(ref, refArgs, pattern, !b.opts.SearchCaseSensitive)
		clauses = append(clauses, clause{expr, args})
	}
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, c := range clauses {
			if b.opts.SearchUseAnd {
				q = q.Where(c.expr, c.args...)
			} else {
				q = q.WhereOr(c.expr, c.args...)
			}
		}
		return q
	}), nil
}

func (b *BaseQuery[T]) applyOrder(q *bun.SelectQuery, orders []string) (*bun.SelectQuery, error) {
	for _, order := range orders {
		parts := strings.Fields(order)
		if len(parts) == 0 {
			continue
		}
		dir := ""
		if len(parts) == 2 {
			switch d := strings.ToUpper(parts[1]); d {
			case "ASC", "DESC":
				dir = " " + d
			}
		}
		if len(parts) == 1 || dir != "" {
			if expr, ok := b.opts.ColumnMapping[parts[0]]; ok {
				q = q.OrderExpr(expr + dir)
				continue
			}
			if field, err := filters.LookupField(b.table, parts[0]); err == nil {
				q = q.OrderExpr("?TableAlias.?"+dir, bun.Ident(field.Name))
				continue
			}
		}
		q = q.OrderExpr(order)
	}
	return q, nil
}

func modelType(model interface{}) (reflect.Type, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil join model", types.ErrQuery)
	}
	typ := reflect.TypeOf(model)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: join model %s is not a struct", types.ErrQuery, typ)
	}
	return typ, nil
}

func sortedRelations(table *schema.Table) []string {
	names := make([]string, 0, len(table.Relations))
	for name := range table.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedDataKeys(data types.Data) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// uniqueIDs drops repeated ids, keeping the first occurrence.
func uniqueIDs(ids []interface{}) []interface{} {
	seen := make(map[string]struct{}, len(ids))
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		key := fmt.Sprintf("%T:%v", id, id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}
