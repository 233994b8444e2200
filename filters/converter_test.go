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
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/sqlrepo/internal/dbtest"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

type fixture struct {
	db       *bun.DB
	data     *dbtest.Fixtures
	articles *schema.Table
	comments *schema.Table
}

func setup(t *testing.T) *fixture {
	db := dbtest.OpenWithSchema(t)
	return &fixture{
		db:       db,
		data:     dbtest.Seed(t, db),
		articles: db.Table(reflect.TypeOf(dbtest.Article{})),
		comments: db.Table(reflect.TypeOf(dbtest.Comment{})),
	}
}

func (f *fixture) titles(t *testing.T, c Converter, filter types.Filter) []string {
	t.Helper()
	preds, err := c.Convert(f.articles, filter)
	require.NoError(t, err)
	var rows []*dbtest.Article
	q := f.db.NewSelect().Model(&rows).OrderExpr("?TableAlias.id ASC")
	for _, p := range preds {
		q = q.Where(p.Schema, p.Args...)
	}
	require.NoError(t, q.Scan(context.Background()))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Title)
	}
	return out
}

func TestForStrategy(t *testing.T) {
	c, err := ForStrategy(types.StrategyDjango)
	require.NoError(t, err)
	assert.IsType(t, DjangoConverter{}, c)

	_, err = ForStrategy(types.ConvertStrategy(9))
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"plain":   "plain",
		"50% off": `50\% off`,
		"a_b":     `a\_b`,
		"a/b":     `a\/b`,
		`c:\tmp`:  `c:\\tmp`,
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeLike(in), in)
	}
}

func TestSimpleConverter(t *testing.T) {
	f := setup(t)
	c := SimpleConverter{}

	assert.Equal(t, []string{"Go generics"}, f.titles(t, c, types.Where{"title": "Go generics"}))
	assert.Equal(t, []string{"Go generics", "snake_case names", "500 offers"},
		f.titles(t, c, types.Where{"published": true}))
	assert.Len(t, f.titles(t, c, types.Where{"body": nil}), 5)

	ids := []int64{f.data.Articles[1].ID, f.data.Articles[3].ID}
	assert.Equal(t, []string{"50% off sale", "snakeXcase notes"}, f.titles(t, c, types.Where{"id": ids}))
	assert.Empty(t, f.titles(t, c, types.Where{"id": []int64{}}))

	// Go field names and relation paths resolve too.
	assert.Equal(t, []string{"Go generics", "snake_case names", "a/b testing"},
		f.titles(t, c, types.Where{"Author.name": "alice"}))
	assert.Equal(t, []string{"snake_case names"},
		f.titles(t, c, types.Where{"AuthorID": f.data.Authors[0].ID, "Views": 20}))
}

func TestSimpleConverterDeterministicSQL(t *testing.T) {
	f := setup(t)
	w := types.Where{"views": 1, "title": "x", "archived": false, "author_id": 2}
	render := func() string {
		preds, err := SimpleConverter{}.Convert(f.articles, w)
		require.NoError(t, err)
		q := f.db.NewSelect().Model((*dbtest.Article)(nil))
		for _, p := range preds {
			q = q.Where(p.Schema, p.Args...)
		}
		return q.String()
	}
	first := render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, render())
	}
	assert.Contains(t, first, `"article"."views" = 1`)
}

func TestUnknownFieldsFail(t *testing.T) {
	f := setup(t)
	for _, c := range []Converter{SimpleConverter{}, DjangoConverter{}} {
		_, err := c.Convert(f.articles, types.Where{"missing": 1})
		assert.ErrorIs(t, err, types.ErrAttribute)
	}
	_, err := SimpleConverter{}.Convert(f.articles, types.Where{"Editor.name": "x"})
	assert.ErrorIs(t, err, types.ErrAttribute)
	_, err = DjangoConverter{}.Convert(f.articles, types.Where{"editor__name": "x"})
	assert.ErrorIs(t, err, types.ErrAttribute)
	_, err = AdvancedConverter{}.Convert(f.articles, types.Where{"field": "nope", "operator": "=", "value": 1})
	assert.ErrorIs(t, err, types.ErrAttribute)
}

func TestAdvancedConverter(t *testing.T) {
	f := setup(t)
	c := AdvancedConverter{}

	assert.Equal(t, []string{"Go generics", "snake_case names", "snakeXcase notes"},
		f.titles(t, c, types.Where{"field": "views", "operator": ">=", "value": 10}))
	assert.Equal(t, []string{"Go generics", "50% off sale", "500 offers"},
		f.titles(t, c, types.Where{"field": "views", "operator": "between", "value": []int{5, 10}}))
	assert.Equal(t, []string{"50% off sale"},
		f.titles(t, c, types.Where{"field": "title", "operator": "contains", "value": "50% off"}))
	assert.Equal(t, []string{"Go generics"},
		f.titles(t, c, types.Where{"field": "body", "operator": types.OpIsNot, "value": nil}))
	assert.Len(t, f.titles(t, c, types.Where{"field": "published", "operator": "is", "value": false}), 3)

	both := types.Filters{
		types.Where{"field": "views", "operator": "<", "value": 16},
		types.Condition{Field: "Author.name", Operator: types.OpEq, Value: "bob"},
	}
	assert.Equal(t, []string{"50% off sale", "snakeXcase notes", "500 offers"}, f.titles(t, c, both))
}

func TestAdvancedConverterErrors(t *testing.T) {
	f := setup(t)
	c := AdvancedConverter{}
	bad := []types.Filter{
		types.Where{"field": "views", "operator": "~", "value": 1},
		types.Where{"operator": "=", "value": 1},
		types.Where{"field": "views", "value": 1},
		types.Where{"field": "views", "operator": "between", "value": 3},
		types.Where{"field": "views", "operator": "is", "value": 3},
		types.Where{"field": "views", "operator": "contains", "value": 3},
		types.Condition{Field: "views", Operator: "like", Value: 1},
	}
	for _, filter := range bad {
		_, err := c.Convert(f.articles, filter)
		assert.ErrorIs(t, err, types.ErrFilter, "%v", filter)
	}
}

func TestDjangoConverter(t *testing.T) {
	f := setup(t)
	c := DjangoConverter{}

	assert.Equal(t, []string{"Go generics", "snake_case names", "snakeXcase notes"},
		f.titles(t, c, types.Where{"views__gt": 9}))
	assert.Equal(t, []string{"Go generics"}, f.titles(t, c, types.Where{"title__icontains": "GO "}))
	assert.Equal(t, []string{"snake_case names"}, f.titles(t, c, types.Where{"title__contains": "e_c"}))
	assert.Equal(t, []string{"Go generics"}, f.titles(t, c, types.Where{"title__iexact": "go GENERICS"}))
	assert.Equal(t, []string{"500 offers"}, f.titles(t, c, types.Where{"title__endswith": "offers"}))
	assert.Equal(t, []string{"50% off sale", "500 offers"}, f.titles(t, c, types.Where{"title__istartswith": "50"}))
	assert.Equal(t, []string{"50% off sale", "a/b testing"}, f.titles(t, c, types.Where{"views__range": [2]int{0, 5}}))
	assert.Len(t, f.titles(t, c, types.Where{"body__isnull": true}), 5)
	assert.Equal(t, []string{"Go generics"}, f.titles(t, c, types.Where{"title": "Go generics"}))
	assert.Equal(t, []string{"Go generics", "500 offers"},
		f.titles(t, c, types.Where{"title__in": []string{"Go generics", "500 offers"}}))

	// belongs-to and has-many traversal
	assert.Equal(t, []string{"50% off sale", "snakeXcase notes", "500 offers"},
		f.titles(t, c, types.Where{"author__name": "bob"}))
	assert.Equal(t, []string{"Go generics"}, f.titles(t, c, types.Where{"comments__text": "nice"}))
	assert.Equal(t, []string{"Go generics", "snake_case names"},
		f.titles(t, c, types.Where{"comments__id__gt": 0}))
}

func TestDjangoNestedRelation(t *testing.T) {
	f := setup(t)
	preds, err := DjangoConverter{}.Convert(f.comments, types.Where{"article__author__name": "alice"})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Contains(t, preds[0].Schema, "IN (SELECT")

	var rows []*dbtest.Comment
	q := f.db.NewSelect().Model(&rows)
	for _, p := range preds {
		q = q.Where(p.Schema, p.Args...)
	}
	require.NoError(t, q.Scan(context.Background()))
	assert.Len(t, rows, 3)
}

func TestRawFilterPassesThrough(t *testing.T) {
	f := setup(t)
	raw := types.NewQueryFilter("?TableAlias.views = ?", 7)
	preds, err := SimpleConverter{}.Convert(f.articles, types.Filters{raw, nil})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Same(t, raw, preds[0])
	assert.Equal(t, []string{"500 offers"}, f.titles(t, SimpleConverter{}, raw))
}

func TestConvertDoesNotMutateFilter(t *testing.T) {
	f := setup(t)
	w := types.Where{"views__gte": 1, "author__name": "bob"}
	_, err := DjangoConverter{}.Convert(f.articles, w)
	require.NoError(t, err)
	assert.Equal(t, types.Where{"views__gte": 1, "author__name": "bob"}, w)
}
