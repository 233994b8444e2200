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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/sqlrepo/internal/dbtest"
)

func sqliteConfig(name string) *Config {
	cc := DefaultConnectionConfig()
	cc.Type = "sqlite"
	cc.DBName = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	cc.MaxOpenConns = 1
	cc.MaxIdleConns = 1
	cc.ForeignKeys = true
	cc.SlowQueryTime = time.Second
	return &Config{ConnectionConfig: *cc}
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewDatabaseManager(&sqliteConfig("manager_lifecycle").ConnectionConfig)
	assert.Error(t, m.Ping(ctx))
	assert.False(t, m.HealthCheck(ctx).Healthy)

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Ping(ctx))

	status := m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.Equal(t, 1, m.GetStats().MaxOpenConns)

	var fk int
	require.NoError(t, m.GetDB().NewRaw("PRAGMA foreign_keys").Scan(ctx, &fk))
	assert.Equal(t, 1, fk)

	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.Nil(t, m.GetSQLDB())
	require.NoError(t, m.Disconnect())
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := NewDatabaseFactory().CreateFromConfig(&ConnectionConfig{Type: "oracle"})
	assert.Error(t, err)
	_, err = NewDatabaseFactory().CreateFromConfig(nil)
	assert.Error(t, err)
}

func TestInitDB(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig("init_db")
	cfg.DataMigrateConfig.EnableMigrateOnStartup = true

	prev := defaultRegistry
	defaultRegistry = NewModelRegistry()
	t.Cleanup(func() { defaultRegistry = prev })
	for i, m := range dbtest.Models() {
		require.NoError(t, RegisterModel(m, i))
	}

	db, err := InitDB(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB() })
	assert.Same(t, db, GetDB())
	assert.True(t, GetHealthStatus(ctx).Healthy)

	s, err := OpenSession()
	require.NoError(t, err)
	require.NoError(t, s.Add(&dbtest.Author{Name: "carol"}))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Close(ctx))

	n, err := db.NewSelect().Model((*dbtest.Author)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDB())
	assert.False(t, GetHealthStatus(ctx).Healthy)
}
