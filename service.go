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

package sqlrepo

import (
	"context"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/repository"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/tomoncle/sqlrepo/uow"
)

type Service[T any] interface {
	// Get returns the first entity matching the params, or nil.
	Get(ctx context.Context, p repository.GetParams) (*T, error)

	// Count returns the number of matching entities.
	Count(ctx context.Context, p repository.CountParams) (int, error)

	// List returns the entities matching the params.
	List(ctx context.Context, p repository.ListParams) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Create inserts one entity built from data.
	Create(ctx context.Context, data types.Data) (*T, error)

	// CreateMany inserts one entity per data map.
	CreateMany(ctx context.Context, data []types.Data) ([]*T, error)

	// Update sets data on the matching rows and returns them.
	Update(ctx context.Context, data types.Data, filter types.Filter) ([]*T, error)

	// Delete removes the matching rows and returns how many were removed.
	Delete(ctx context.Context, filter types.Filter) (int, error)

	// Disable marks the rows with the given ids as disabled.
	Disable(ctx context.Context, ids []interface{}, extra types.Filter) (int, error)

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error
}

type baseServiceImpl[T any] struct {
	cfg repository.Config
}

// NewService returns a Service over the global database. Every call runs in
// its own unit of work and is committed when it returns. The first config,
// if any, replaces repository.DefaultConfig.
func NewService[T any](cfg ...repository.Config) Service[T] {
	c := repository.DefaultConfig()
	if len(cfg) > 0 {
		c = cfg[0]
	}
	return &baseServiceImpl[T]{cfg: c}
}

func (s *baseServiceImpl[T]) run(ctx context.Context, fn func(context.Context, repository.Repository[T]) error) error {
	db := database.GetDB()
	if db == nil {
		return database.ErrNotInitialized
	}
	work, err := uow.New(database.NewSessionFactory(db), func(session *database.Session) (repository.Repository[T], error) {
		return repository.NewRepository[T](session, s.cfg)
	})
	if err != nil {
		return err
	}
	return work.Do(ctx, fn)
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, p repository.GetParams) (item *T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		item, err = repo.Get(ctx, p)
		return err
	})
	return item, err
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, p repository.CountParams) (n int, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		n, err = repo.Count(ctx, p)
		return err
	})
	return n, err
}

func (s *baseServiceImpl[T]) List(ctx context.Context, p repository.ListParams) (items []*T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		items, err = repo.List(ctx, p)
		return err
	})
	return items, err
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (result *types.Pagination[T], err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		result, err = repo.Page(ctx, page)
		return err
	})
	return result, err
}

func (s *baseServiceImpl[T]) Create(ctx context.Context, data types.Data) (item *T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		item, err = repo.Create(ctx, data)
		return err
	})
	return item, err
}

func (s *baseServiceImpl[T]) CreateMany(ctx context.Context, data []types.Data) (items []*T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		items, err = repo.CreateMany(ctx, data)
		return err
	})
	return items, err
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, data types.Data, filter types.Filter) (items []*T, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		items, err = repo.Update(ctx, data, filter)
		return err
	})
	return items, err
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, filter types.Filter) (n int, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		n, err = repo.Delete(ctx, filter)
		return err
	})
	return n, err
}

func (s *baseServiceImpl[T]) Disable(ctx context.Context, ids []interface{}, extra types.Filter) (n int, err error) {
	err = s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		n, err = repo.Disable(ctx, ids, extra)
		return err
	})
	return n, err
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return s.run(ctx, func(ctx context.Context, repo repository.Repository[T]) error {
		return repo.Upsert(ctx, fields, duplicateKeys, model...)
	})
}
