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
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// MigrationManager creates the tables of the registered models and records
// which migrations have been applied.
type MigrationManager struct {
	db             *bun.DB
	logger         Logger
	models         []interface{}
	foreignKeyFile string
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:sqlrepo_migrations,alias:m"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
}

// NewMigrationManager constructs a MigrationManager over the given models.
// Without models it uses the default registry.
func NewMigrationManager(db *bun.DB, logger Logger, models ...interface{}) *MigrationManager {
	if len(models) == 0 {
		models = RegisteredModelInstances()
	}
	return &MigrationManager{db: db, logger: logger, models: models}
}

// WithForeignKeys enables the foreign key migration using a YAML file.
func (mm *MigrationManager) WithForeignKeys(path string) *MigrationManager {
	mm.foreignKeyFile = path
	return mm
}

// RunMigrations creates the migration tracking table if needed and executes
// the pending migrations in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}

	if _, err := mm.db.NewCreateTable().Model((*Migration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations := mm.getAllMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	if mm.logger != nil {
		mm.logger.Info("Database migrations completed!")
	}
	return nil
}

func (mm *MigrationManager) getAllMigrations() []MigrationItem {
	migrations := []MigrationItem{
		{
			Version:     "001",
			Name:        "create_base_tables",
			Description: "Create base table structure",
			Up:          mm.CreateTables,
		},
	}
	if mm.foreignKeyFile != "" {
		migrations = append(migrations, MigrationItem{
			Version:     "002",
			Name:        "add_foreign_keys",
			Description: "Add table foreign key constraints",
			Up:          mm.addForeignKeys,
		})
	}
	return migrations
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		record := &Migration{
			Version:     migration.Version,
			Name:        migration.Name,
			AppliedAt:   time.Now(),
			Description: migration.Description,
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		if mm.logger != nil {
			mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
		}
		return nil
	})
}

// CreateTables creates every model table that does not exist yet, with
// foreign keys derived from belongs-to relations.
func (mm *MigrationManager) CreateTables(ctx context.Context, db bun.IDB) error {
	for _, model := range mm.models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the model tables in reverse creation order.
func (mm *MigrationManager) DropTables(ctx context.Context, db bun.IDB) error {
	for i := len(mm.models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(mm.models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table %T: %w", mm.models[i], err)
		}
	}
	return nil
}

func (mm *MigrationManager) addForeignKeys(ctx context.Context, db bun.IDB) error {
	// SQLite cannot add constraints to existing tables.
	if db.Dialect().Name() == dialect.SQLite {
		if mm.logger != nil {
			mm.logger.Debug("Skipping foreign key migration on sqlite")
		}
		return nil
	}

	fkManager, err := LoadForeignKeyManager(mm.logger, mm.foreignKeyFile)
	if err != nil {
		if mm.logger != nil {
			mm.logger.Debug("Falling back to model-defined foreign keys", "error", err.Error())
		}
		fkManager = NewForeignKeyManager(mm.logger, ForeignKeysFromModels(mm.db, mm.models...)...)
	}

	if errs := fkManager.ValidateConstraints(); len(errs) > 0 {
		for _, err := range errs {
			if mm.logger != nil {
				mm.logger.Debug("Foreign key constraint validation failed", "error", err.Error())
			}
		}
		return fmt.Errorf("foreign key constraint validation failed, %d errors in total", len(errs))
	}
	return fkManager.AddAllForeignKeys(ctx, db)
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}
