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
	"errors"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

// ErrNotInitialized is returned when the global database is used before
// InitDB or SetDB.
var ErrNotInitialized = errors.New("database not initialized")

var (
	globalMu      sync.RWMutex
	globalFactory *BaseDatabaseFactory
	globalDB      *bun.DB
)

// GetDB returns the global Bun database instance.
func GetDB() *bun.DB {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalFactory != nil {
		if db := globalFactory.GetDB(); db != nil {
			return db
		}
	}
	return globalDB
}

// SetDB installs db as the global database without a manager.
func SetDB(db *bun.DB) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalDB = db
}

// GetDatabaseFactory returns the global database factory.
func GetDatabaseFactory() *BaseDatabaseFactory {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFactory
}

// InitDB connects the global database using the provided configuration and
// runs migrations when enabled.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	manager, err := factory.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx, &cfg.DataMigrateConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := manager.GetDB()
	if models := RegisteredModelInstances(); len(models) > 0 {
		db.RegisterModel(models...)
	}

	globalMu.Lock()
	globalFactory = factory
	globalDB = db
	globalMu.Unlock()
	return db, nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	globalMu.Lock()
	factory := globalFactory
	globalFactory, globalDB = nil, nil
	globalMu.Unlock()
	if factory != nil {
		return factory.Close()
	}
	return nil
}

// OpenSession opens a session over the global database.
func OpenSession(opts ...SessionOption) (*Session, error) {
	db := GetDB()
	if db == nil {
		return nil, ErrNotInitialized
	}
	return NewSession(db, opts...), nil
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if f := GetDatabaseFactory(); f != nil {
		return f.GetHealthStatus(ctx)
	}
	return &HealthStatus{LastError: "Database not initialized"}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if f := GetDatabaseFactory(); f != nil {
		return f.GetStats()
	}
	return &DBStats{}
}
