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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/repository"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
)

type SystemConfig struct {
	bun.BaseModel `bun:"table:system_config,alias:sc"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ConfigKey   string    `bun:"config_key,notnull,unique" json:"config_key"`
	ConfigValue string    `bun:"config_value" json:"config_value"`
	Description string    `bun:"description" json:"description"`
	ConfigType  string    `bun:"config_type,notnull,default:'string'" json:"config_type"`
	Disabled    bool      `bun:"disabled,notnull" json:"disabled"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func initDB(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	cc := database.DefaultConnectionConfig()
	cc.Type = "sqlite"
	cc.DBName = "file:service_test?mode=memory&cache=shared"
	cc.MaxOpenConns = 1
	cc.MaxIdleConns = 1

	db, err := database.InitDB(ctx, &database.Config{ConnectionConfig: *cc})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })

	mm := database.NewMigrationManager(db, database.GetLogger(), (*SystemConfig)(nil))
	require.NoError(t, mm.RunMigrations(ctx))
}

func TestServiceRequiresDatabase(t *testing.T) {
	require.NoError(t, database.CloseDB())
	_, err := NewService[SystemConfig]().Count(context.Background(), repository.CountParams{})
	assert.ErrorIs(t, err, database.ErrNotInitialized)
}

func TestService(t *testing.T) {
	initDB(t)
	ctx := context.Background()
	svc := NewService[SystemConfig](repository.DefaultConfig().WithDisable("id", "disabled", types.DisableFieldBool))

	site, err := svc.Create(ctx, types.Data{"config_key": "site.name", "config_value": "demo", "config_type": "string"})
	require.NoError(t, err)
	assert.NotZero(t, site.ID)

	more, err := svc.CreateMany(ctx, []types.Data{
		{"config_key": "site.limit", "config_value": "10", "config_type": "int"},
		{"config_key": "mail.host", "config_value": "localhost", "config_type": "string"},
	})
	require.NoError(t, err)
	require.Len(t, more, 2)

	n, err := svc.Count(ctx, repository.CountParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := svc.Get(ctx, repository.GetParams{Filter: types.Where{"config_key": "site.name"}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "demo", got.ConfigValue)

	sites, err := svc.List(ctx, repository.ListParams{Search: "site.", SearchBy: []string{"config_key"}, OrderBy: []string{"config_key"}})
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "site.limit", sites[0].ConfigKey)

	page, err := svc.Page(ctx, types.NewPageRequest(1, 2, nil, []string{"id DESC"}))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "mail.host", page.Items[0].ConfigKey)

	updated, err := svc.Update(ctx, types.Data{"config_value": "20"}, types.Where{"config_key": "site.limit"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "20", updated[0].ConfigValue)

	require.NoError(t, svc.SaveOrUpdate(ctx, []string{"config_value"}, []string{"config_key"},
		&SystemConfig{ConfigKey: "site.name", ConfigValue: "renamed", ConfigType: "string"},
		&SystemConfig{ConfigKey: "site.theme", ConfigValue: "dark", ConfigType: "string"},
	))
	got, err = svc.Get(ctx, repository.GetParams{Filter: types.Where{"config_key": "site.name"}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.ConfigValue)
	assert.Equal(t, site.ID, got.ID)

	disabled, err := svc.Disable(ctx, []interface{}{site.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, disabled)

	deleted, err := svc.Delete(ctx, types.Where{"disabled": true})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	n, err = svc.Count(ctx, repository.CountParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestServiceDisableWithoutConfig(t *testing.T) {
	initDB(t)
	_, err := NewService[SystemConfig]().Disable(context.Background(), []interface{}{1}, nil)
	assert.ErrorIs(t, err, types.ErrRepositoryConfig)
}
