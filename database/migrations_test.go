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

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/sqlrepo/internal/dbtest"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)

	mm := NewMigrationManager(db, nil, dbtest.Models()...).WithForeignKeys("unused.yaml")
	require.NoError(t, mm.RunMigrations(ctx))
	require.NoError(t, mm.RunMigrations(ctx))

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "001", applied[0].Version)
	assert.Equal(t, "add_foreign_keys", applied[1].Name)

	fx := dbtest.Seed(t, db)
	assert.Len(t, fx.Articles, 6)
}

func TestDropTables(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	mm := NewMigrationManager(db, nil, dbtest.Models()...)
	require.NoError(t, mm.CreateTables(ctx, db))
	require.NoError(t, mm.DropTables(ctx, db))
	require.NoError(t, mm.DropTables(ctx, db))

	_, err := db.NewSelect().Model((*dbtest.Author)(nil)).Count(ctx)
	_, kind := IsSqlError(err)
	assert.Equal(t, NoTableErr, kind)
}

func TestModelRegistry(t *testing.T) {
	r := NewModelRegistry()
	require.NoError(t, r.Register(NewModelAdapter((*dbtest.Comment)(nil), 30)))
	require.NoError(t, r.Register(NewModelAdapter((*dbtest.Author)(nil), 10)))
	require.NoError(t, r.Register(NewModelAdapter(&dbtest.Article{}, 20)))

	assert.Error(t, r.Register(NewModelAdapter((*dbtest.Author)(nil), 1)))
	assert.Error(t, r.Register(NewModelAdapter(nil, 1)))
	assert.Error(t, r.Register(NewModelAdapter(42, 1)))

	instances := r.Instances()
	require.Len(t, instances, 3)
	assert.IsType(t, (*dbtest.Author)(nil), instances[0])
	assert.IsType(t, &dbtest.Article{}, instances[1])
	assert.IsType(t, (*dbtest.Comment)(nil), instances[2])
}
