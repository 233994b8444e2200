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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/internal/dbtest"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
)

type RepositorySuite struct {
	suite.Suite
	ctx     context.Context
	db      *bun.DB
	data    *dbtest.Fixtures
	session *database.Session
	repo    Repository[dbtest.Article]
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.db = dbtest.OpenWithSchema(s.T())
	s.data = dbtest.Seed(s.T(), s.db)
	s.session = database.NewSession(s.db)
	s.repo = s.newRepo(DefaultConfig().WithDisable("id", "archived", types.DisableFieldBool))
}

func (s *RepositorySuite) TearDownTest() {
	s.Require().NoError(s.session.Close(s.ctx))
}

func (s *RepositorySuite) newRepo(cfg Config) Repository[dbtest.Article] {
	repo, err := NewRepository[dbtest.Article](s.session, cfg)
	s.Require().NoError(err)
	return repo
}

func (s *RepositorySuite) TestSimpleFilterEquality() {
	items, err := s.repo.List(s.ctx, ListParams{Filter: types.Where{"author_id": s.data.Authors[1].ID}})
	s.Require().NoError(err)
	s.Len(items, 3)
	for _, it := range items {
		s.Equal(s.data.Authors[1].ID, it.AuthorID)
	}
}

func (s *RepositorySuite) TestListAndCountAgree() {
	filters := []types.Filter{
		nil,
		types.Where{"published": true},
		types.Where{"Author.name": "alice"},
		types.Filters{types.Where{"published": false}, types.Condition{Field: "views", Operator: types.OpGt, Value: 4}},
	}
	for _, f := range filters {
		items, err := s.repo.List(s.ctx, ListParams{Filter: f})
		s.Require().NoError(err)
		n, err := s.repo.Count(s.ctx, CountParams{Filter: f})
		s.Require().NoError(err)
		s.Equal(len(items), n)
	}
}

func (s *RepositorySuite) TestCreateThenGet() {
	created, err := s.repo.Create(s.ctx, types.Data{"title": "round trip", "author_id": s.data.Authors[0].ID, "views": 4})
	s.Require().NoError(err)
	s.NotZero(created.ID)

	got, err := s.repo.Get(s.ctx, GetParams{Filter: types.Where{"id": created.ID}, Loads: []types.Load{types.LoadPath("Author")}})
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("round trip", got.Title)
	s.Equal(4, got.Views)
	s.Equal("alice", got.Author.Name)
}

func (s *RepositorySuite) TestCreateMany() {
	items, err := s.repo.CreateMany(s.ctx, []types.Data{
		{"title": "one", "author_id": s.data.Authors[0].ID},
		{"title": "two", "author_id": s.data.Authors[1].ID},
	})
	s.Require().NoError(err)
	s.Len(items, 2)

	n, err := s.repo.Count(s.ctx, CountParams{})
	s.Require().NoError(err)
	s.Equal(8, n)
}

func (s *RepositorySuite) TestCreateForeignKeyViolationIsWrapped() {
	_, err := s.repo.Create(s.ctx, types.Data{"title": "orphan", "author_id": 999})
	s.Require().Error(err)
	var repoErr *Error
	s.Require().True(errors.As(err, &repoErr))
	s.Equal("create", repoErr.Op)
	s.Equal(database.ForeignKeyViolationErr, repoErr.Kind)
	s.Equal(database.ForeignKeyViolationErr, KindOf(err))
}

func (s *RepositorySuite) TestUpdateReturnsRows() {
	items, err := s.repo.Update(s.ctx, types.Data{"published": true}, types.Where{"author_id": s.data.Authors[1].ID})
	s.Require().NoError(err)
	s.Len(items, 3)

	n, err := s.repo.Count(s.ctx, CountParams{Filter: types.Where{"published": true}})
	s.Require().NoError(err)
	s.Equal(5, n)
}

func (s *RepositorySuite) TestUpdateInstanceEmptyData() {
	item, err := s.repo.Get(s.ctx, GetParams{Filter: types.Where{"id": s.data.Articles[0].ID}})
	s.Require().NoError(err)

	for _, data := range []types.Data{nil, {}} {
		changed, _, err := s.repo.UpdateInstance(s.ctx, item, data)
		s.Require().NoError(err)
		s.False(changed)
	}
}

func (s *RepositorySuite) TestUpdateInstanceSetNone() {
	load := func() *dbtest.Article {
		item, err := s.repo.Get(s.ctx, GetParams{Filter: types.Where{"id": s.data.Articles[0].ID}})
		s.Require().NoError(err)
		return item
	}

	changed, item, err := s.repo.UpdateInstance(s.ctx, load(), types.Data{"body": nil})
	s.Require().NoError(err)
	s.False(changed)
	s.NotNil(item.Body)

	restricted := s.newRepo(DefaultConfig().WithUpdateSetNone(true, "deleted_at"))
	changed, item, err = restricted.UpdateInstance(s.ctx, load(), types.Data{"body": nil})
	s.Require().NoError(err)
	s.False(changed)
	s.NotNil(item.Body)

	wildcard := s.newRepo(DefaultConfig().WithUpdateSetNone(true, "*"))
	changed, item, err = wildcard.UpdateInstance(s.ctx, load(), types.Data{"body": nil, "title": "renamed"})
	s.Require().NoError(err)
	s.True(changed)
	s.Nil(item.Body)

	stored := load()
	s.Nil(stored.Body)
	s.Equal("renamed", stored.Title)
}

func (s *RepositorySuite) TestDelete() {
	n, err := s.repo.Delete(s.ctx, types.Where{"published": false, "author_id": s.data.Authors[1].ID})
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *RepositorySuite) TestDeleteInstanceForeignKeyViolation() {
	s.False(s.repo.DeleteInstance(s.ctx, s.data.Articles[0]))

	got, err := s.repo.Get(s.ctx, GetParams{Filter: types.Where{"id": s.data.Articles[0].ID}})
	s.Require().NoError(err)
	s.NotNil(got)

	s.True(s.repo.DeleteInstance(s.ctx, s.data.Articles[1]))
}

func (s *RepositorySuite) TestDisable() {
	ids := []interface{}{s.data.Articles[0].ID, s.data.Articles[1].ID}
	n, err := s.repo.Disable(s.ctx, ids, nil)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.repo.Disable(s.ctx, ids, nil)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RepositorySuite) TestDisableEmptyIDs() {
	n, err := s.repo.Disable(s.ctx, nil, nil)
	s.Require().NoError(err)
	s.Zero(n)

	archived, err := s.repo.Count(s.ctx, CountParams{Filter: types.Where{"archived": true}})
	s.Require().NoError(err)
	s.Zero(archived)
}

func (s *RepositorySuite) TestDisableRequiresConfig() {
	repo := s.newRepo(DefaultConfig())
	_, err := repo.Disable(s.ctx, []interface{}{1}, nil)
	s.ErrorIs(err, types.ErrRepositoryConfig)

	repo = s.newRepo(DefaultConfig().WithDisable("id", "archived", types.DisableFieldUnset))
	_, err = repo.Disable(s.ctx, []interface{}{1}, nil)
	s.ErrorIs(err, types.ErrRepositoryConfig)
}

func (s *RepositorySuite) TestSearchLiteralWildcards() {
	cases := map[string]string{
		"50% off":    "50% off sale",
		"snake_case": "snake_case names",
		"a/b":        "a/b testing",
	}
	for term, title := range cases {
		items, err := s.repo.List(s.ctx, ListParams{Search: term, SearchBy: []string{"title"}})
		s.Require().NoError(err, term)
		s.Require().Len(items, 1, term)
		s.Equal(title, items[0].Title)
	}
}

func (s *RepositorySuite) TestSearchColumnMapping() {
	repo := s.newRepo(DefaultConfig().WithColumnMapping(map[string]string{"author": "author.name"}))
	items, err := repo.List(s.ctx, ListParams{
		Loads:    []types.Load{types.LoadPath("Author")},
		Search:   "BOB",
		SearchBy: []string{"author"},
		OrderBy:  []string{"author ASC", "views DESC"},
	})
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal("snakeXcase notes", items[0].Title)
}

func (s *RepositorySuite) TestPage() {
	page, err := s.repo.Page(s.ctx, types.NewPageRequest(2, 2, types.Where{"archived": false}, []string{"views DESC"}))
	s.Require().NoError(err)
	s.Equal(6, page.Total)
	s.Equal(2, page.Page)
	s.Require().Len(page.Items, 2)
	s.Equal("Go generics", page.Items[0].Title)
	s.Equal("500 offers", page.Items[1].Title)

	empty, err := s.repo.Page(s.ctx, types.NewPageRequestWithFilter(1, 10, types.Where{"title": "none"}))
	s.Require().NoError(err)
	s.Zero(empty.Total)
	s.Empty(empty.Items)
}

func (s *RepositorySuite) TestUpsert() {
	item := *s.data.Articles[3]
	item.Views = 500
	s.Require().NoError(s.repo.Upsert(s.ctx, []string{"views"}, []string{"id"}, &item))

	got, err := s.repo.Get(s.ctx, GetParams{Filter: types.Where{"id": item.ID}})
	s.Require().NoError(err)
	s.Equal(500, got.Views)
}

func (s *RepositorySuite) TestDomainErrorsPassThrough() {
	_, err := s.repo.List(s.ctx, ListParams{Filter: types.Where{"nope": 1}})
	s.ErrorIs(err, types.ErrAttribute)
	var repoErr *Error
	s.False(errors.As(err, &repoErr))

	_, err = s.repo.Update(s.ctx, types.Data{}, nil)
	s.ErrorIs(err, types.ErrQuery)
}

func TestNewRepositoryValidation(t *testing.T) {
	db := dbtest.Open(t)
	session := database.NewSession(db)

	_, err := NewRepository[dbtest.Article](nil, DefaultConfig())
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)

	_, err = NewRepository[string](session, DefaultConfig())
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)

	_, err = NewRepository[dbtest.Article](session, DefaultConfig().WithStrategy(types.ConvertStrategy(9)))
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)

	_, err = NewRepository[dbtest.Article](session, DefaultConfig().WithDisable("id", "hidden", types.DisableFieldBool))
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)
	assert.ErrorIs(t, err, types.ErrAttribute)

	_, err = NewRepository[dbtest.Article](session, DefaultConfig().WithDisable("id", "archived", types.DisableFieldType(7)))
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)

	repo, err := NewRepository[dbtest.Article](session, DefaultConfig().WithStrategy(types.StrategyDjango))
	require.NoError(t, err)
	assert.Equal(t, types.StrategyDjango, repo.Config().Strategy)
}

func TestConfigIsCopied(t *testing.T) {
	mapping := map[string]string{"a": "b"}
	cfg := DefaultConfig().WithColumnMapping(mapping)
	mapping["a"] = "changed"
	assert.Equal(t, "b", cfg.ColumnMapping["a"])

	base := DefaultConfig()
	_ = base.WithUseFlush(false)
	assert.True(t, base.UseFlush)
	assert.True(t, base.UniqueListItems)
	assert.True(t, base.AllowDisableFilterByValue)
	assert.Nil(t, base.UpdateAllowedNoneFields)
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError("get", nil))

	err := wrapError("count", errors.New("no such table: articles"))
	var repoErr *Error
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, database.NoTableErr, repoErr.Kind)
	assert.Same(t, err, wrapError("list", err))
	assert.Contains(t, err.Error(), "count")
}
