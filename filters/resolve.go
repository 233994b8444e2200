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

package filters

import (
	"fmt"
	"strings"

	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// LookupField finds a column by its SQL name or Go field name.
func LookupField(table *schema.Table, name string) (*schema.Field, error) {
	for _, f := range table.Fields {
		if f.Name == name || f.GoName == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no field %q", types.ErrAttribute, tableName(table), name)
}

// LookupRelation finds a relation by its Go field name or SQL name.
func LookupRelation(table *schema.Table, name string) (*schema.Relation, bool) {
	if rel, ok := table.Relations[name]; ok {
		return rel, true
	}
	for _, rel := range table.Relations {
		if rel.Field.Name == name {
			return rel, true
		}
	}
	return nil, false
}

func tableName(table *schema.Table) string {
	if table.Type != nil {
		return table.Type.Name()
	}
	return table.Name
}

// fieldPath is a column reached from the base table through zero or more
// relations.
type fieldPath struct {
	relations []*schema.Relation
	field     *schema.Field
}

func resolvePath(table *schema.Table, segments []string) (*fieldPath, error) {
	if len(segments) == 0 || segments[0] == "" {
		return nil, fmt.Errorf("%w: empty field name", types.ErrAttribute)
	}
	p := &fieldPath{}
	cur := table
	for i, seg := range segments {
		if i == len(segments)-1 {
			f, err := LookupField(cur, seg)
			if err != nil {
				return nil, err
			}
			p.field = f
			return p, nil
		}
		rel, ok := LookupRelation(cur, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no relation %q", types.ErrAttribute, tableName(cur), seg)
		}
		p.relations = append(p.relations, rel)
		cur = rel.JoinTable
	}
	return p, nil
}

func (p *fieldPath) alias(depth int) string {
	names := make([]string, 0, depth+1)
	for _, rel := range p.relations[:depth+1] {
		names = append(names, rel.Field.Name)
	}
	return "sq__" + strings.Join(names, "__")
}

// predicate compares the column and wraps the comparison in one IN subquery
// per traversed relation, innermost first.
func (p *fieldPath) predicate(op string, value interface{}) (*types.QueryFilter, error) {
	ref, refArgs := "?TableAlias.?", []interface{}{bun.Ident(p.field.Name)}
	if n := len(p.relations); n > 0 {
		ref, refArgs = "?.?", []interface{}{bun.Ident(p.alias(n - 1)), bun.Ident(p.field.Name)}
	}
	expr, args, err := compare(ref, refArgs, op, value)
	if err != nil {
		return nil, err
	}
	for i := len(p.relations) - 1; i >= 0; i-- {
		rel := p.relations[i]
		if rel.Type == schema.ManyToManyRelation {
			return nil, fmt.Errorf("%w: many-to-many relation %q cannot be filtered", types.ErrFilter, rel.Field.GoName)
		}
		if len(rel.BasePKs) != 1 || len(rel.JoinPKs) != 1 {
			return nil, fmt.Errorf("%w: relation %q has a composite key", types.ErrFilter, rel.Field.GoName)
		}
		parent, parentArgs := "?TableAlias.?", []interface{}{bun.Ident(rel.BasePKs[0].Name)}
		if i > 0 {
			parent, parentArgs = "?.?", []interface{}{bun.Ident(p.alias(i - 1)), bun.Ident(rel.BasePKs[0].Name)}
		}
		alias := bun.Ident(p.alias(i))
		expr = parent + " IN (SELECT ?.? FROM ? AS ? WHERE " + expr + ")"
		outer := append(parentArgs, alias, bun.Ident(rel.JoinPKs[0].Name), rel.JoinTable.SQLName, alias)
		args = append(outer, args...)
	}
	return types.NewQueryFilter(expr, args...), nil
}
