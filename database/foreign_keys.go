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
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"gopkg.in/yaml.v3"
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or a derived name.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// GenerateSQL returns the ALTER TABLE statement to add the constraint.
func (fk *ForeignKeyConstraint) GenerateSQL() string {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		fk.Table, fk.GenerateConstraintName(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		sql += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		sql += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return sql
}

var referentialActions = []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

func validAction(action string) bool {
	for _, a := range referentialActions {
		if strings.EqualFold(action, a) {
			return true
		}
	}
	return false
}

// ForeignKeyConfig is the YAML structure that lists foreign key constraints.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraintConfig `yaml:"foreign_keys"`
}

// ForeignKeyConstraintConfig describes a single foreign key in configuration.
type ForeignKeyConstraintConfig struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
}

func (fkc *ForeignKeyConstraintConfig) toConstraint() ForeignKeyConstraint {
	return ForeignKeyConstraint{
		Table:           fkc.Table,
		Column:          fkc.Column,
		ReferenceTable:  fkc.ReferenceTable,
		ReferenceColumn: fkc.ReferenceColumn,
		OnDelete:        fkc.OnDelete,
		OnUpdate:        fkc.OnUpdate,
		ConstraintName:  fkc.ConstraintName,
	}
}

// ForeignKeyManager adds and validates foreign key constraints.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager creates a manager over the given constraints.
func NewForeignKeyManager(logger Logger, constraints ...ForeignKeyConstraint) *ForeignKeyManager {
	return &ForeignKeyManager{constraints: constraints, logger: logger}
}

// LoadForeignKeyManager reads constraints from a YAML file.
func LoadForeignKeyManager(logger Logger, path string) (*ForeignKeyManager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign key file: %w", err)
	}
	var config ForeignKeyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse foreign key file: %w", err)
	}
	constraints := make([]ForeignKeyConstraint, 0, len(config.ForeignKeys))
	for _, c := range config.ForeignKeys {
		constraints = append(constraints, c.toConstraint())
	}
	return NewForeignKeyManager(logger, constraints...), nil
}

// ForeignKeysFromModels derives constraints from the belongs-to relations of
// the given bun models. Composite join keys are skipped.
func ForeignKeysFromModels(db *bun.DB, models ...interface{}) []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, model := range models {
		typ := reflect.TypeOf(model)
		for typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		table := db.Table(typ)
		for _, name := range sortedRelationNames(table) {
			rel := table.Relations[name]
			if rel.Type != schema.BelongsToRelation || len(rel.BasePKs) != 1 || len(rel.JoinPKs) != 1 {
				continue
			}
			out = append(out, ForeignKeyConstraint{
				Table:           table.Name,
				Column:          rel.BasePKs[0].Name,
				ReferenceTable:  rel.JoinTable.Name,
				ReferenceColumn: rel.JoinPKs[0].Name,
			})
		}
	}
	return out
}

func sortedRelationNames(table *schema.Table) []string {
	names := make([]string, 0, len(table.Relations))
	for name := range table.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddAllForeignKeys adds every constraint. Failures are logged and skipped.
func (fkm *ForeignKeyManager) AddAllForeignKeys(ctx context.Context, db bun.IDB) error {
	for _, constraint := range fkm.constraints {
		if _, err := db.ExecContext(ctx, constraint.GenerateSQL()); err != nil {
			if fkm.logger != nil {
				fkm.logger.Debug("Failed to add foreign key constraint", "constraint", constraint.GenerateConstraintName(), "error", err.Error())
			}
			continue
		}
		if fkm.logger != nil {
			fkm.logger.Debug("Successfully added foreign key constraint", "constraint", constraint.GenerateConstraintName())
		}
	}
	return nil
}

// GetConstraintsByTable returns the constraints defined for a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, constraint := range fkm.constraints {
		if strings.EqualFold(constraint.Table, tableName) {
			result = append(result, constraint)
		}
	}
	return result
}

// ListAllConstraints returns all configured constraints.
func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// ValidateConstraints checks the configured constraints for common issues.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error
	for _, c := range fkm.constraints {
		switch {
		case c.Table == "":
			errs = append(errs, fmt.Errorf("table name cannot be empty"))
		case c.Column == "":
			errs = append(errs, fmt.Errorf("column name cannot be empty: %s", c.Table))
		case c.ReferenceTable == "":
			errs = append(errs, fmt.Errorf("reference table name cannot be empty: %s.%s", c.Table, c.Column))
		case c.ReferenceColumn == "":
			errs = append(errs, fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", c.Table, c.Column, c.ReferenceTable))
		}
		if c.OnDelete != "" && !validAction(c.OnDelete) {
			errs = append(errs, fmt.Errorf("invalid delete policy: %s, constraint: %s", c.OnDelete, c.GenerateConstraintName()))
		}
		if c.OnUpdate != "" && !validAction(c.OnUpdate) {
			errs = append(errs, fmt.Errorf("invalid update policy: %s, constraint: %s", c.OnUpdate, c.GenerateConstraintName()))
		}
	}
	return errs
}

// ExportToConfig writes the constraints to a YAML file, creating directories
// as needed.
func (fkm *ForeignKeyManager) ExportToConfig(outputPath string) error {
	config := ForeignKeyConfig{}
	for _, c := range fkm.constraints {
		config.ForeignKeys = append(config.ForeignKeys, ForeignKeyConstraintConfig{
			Table:           c.Table,
			Column:          c.Column,
			ReferenceTable:  c.ReferenceTable,
			ReferenceColumn: c.ReferenceColumn,
			OnDelete:        c.OnDelete,
			OnUpdate:        c.OnUpdate,
			ConstraintName:  c.ConstraintName,
			Description:     fmt.Sprintf("%s.%s -> %s.%s", c.Table, c.Column, c.ReferenceTable, c.ReferenceColumn),
		})
	}

	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
