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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/sqlrepo/internal/dbtest"
)

func TestForeignKeyConstraintSQL(t *testing.T) {
	fk := ForeignKeyConstraint{
		Table: "articles", Column: "author_id",
		ReferenceTable: "authors", ReferenceColumn: "id",
		OnDelete: "cascade",
	}
	assert.Equal(t, "fk_articles_author_id", fk.GenerateConstraintName())
	assert.Equal(t,
		"ALTER TABLE articles ADD CONSTRAINT fk_articles_author_id FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE",
		fk.GenerateSQL())
}

func TestForeignKeysFromModels(t *testing.T) {
	db := dbtest.Open(t)
	fks := ForeignKeysFromModels(db, dbtest.Models()...)
	require.Len(t, fks, 2)
	assert.Equal(t, ForeignKeyConstraint{Table: "articles", Column: "author_id", ReferenceTable: "authors", ReferenceColumn: "id"}, fks[0])
	assert.Equal(t, ForeignKeyConstraint{Table: "comments", Column: "article_id", ReferenceTable: "articles", ReferenceColumn: "id"}, fks[1])
}

func TestForeignKeyExportAndLoad(t *testing.T) {
	db := dbtest.Open(t)
	fkm := NewForeignKeyManager(nil, ForeignKeysFromModels(db, dbtest.Models()...)...)
	assert.Empty(t, fkm.ValidateConstraints())

	path := filepath.Join(t.TempDir(), "nested", "fk.yaml")
	require.NoError(t, fkm.ExportToConfig(path))

	loaded, err := LoadForeignKeyManager(nil, path)
	require.NoError(t, err)
	assert.Equal(t, fkm.ListAllConstraints(), loaded.ListAllConstraints())
	assert.Len(t, loaded.GetConstraintsByTable("COMMENTS"), 1)

	_, err = LoadForeignKeyManager(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConstraints(t *testing.T) {
	fkm := NewForeignKeyManager(nil,
		ForeignKeyConstraint{Column: "a"},
		ForeignKeyConstraint{Table: "t", Column: "c", ReferenceTable: "r", ReferenceColumn: "id", OnDelete: "explode"},
		ForeignKeyConstraint{Table: "t", Column: "c", ReferenceTable: "r", ReferenceColumn: "id", OnDelete: "set null"},
	)
	assert.Len(t, fkm.ValidateConstraints(), 2)
}
