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

// Package dbtest provides in-memory SQLite databases and fixture models for
// package tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:author"`

	ID       int64      `bun:"id,pk,autoincrement"`
	Name     string     `bun:"name,notnull"`
	Articles []*Article `bun:"rel:has-many,join:id=author_id"`
}

type Article struct {
	bun.BaseModel `bun:"table:articles,alias:article"`

	ID        int64      `bun:"id,pk,autoincrement"`
	Title     string     `bun:"title,notnull"`
	Body      *string    `bun:"body"`
	Views     int        `bun:"views,notnull"`
	Published bool       `bun:"published,notnull"`
	Archived  bool       `bun:"archived,notnull"`
	DeletedAt *time.Time `bun:"deleted_at"`
	AuthorID  int64      `bun:"author_id,notnull"`
	Author    *Author    `bun:"rel:belongs-to,join:author_id=id"`
	Comments  []*Comment `bun:"rel:has-many,join:id=article_id"`
}

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:comment"`

	ID        int64    `bun:"id,pk,autoincrement"`
	ArticleID int64    `bun:"article_id,notnull"`
	Text      string   `bun:"text,notnull"`
	Article   *Article `bun:"rel:belongs-to,join:article_id=id"`
}

// Models returns the fixture models in creation order.
func Models() []interface{} {
	return []interface{}{(*Author)(nil), (*Article)(nil), (*Comment)(nil)}
}

var seq atomic.Int64

// Open returns a private in-memory SQLite database with foreign keys enabled.
// The pool is limited to one connection, so a session holding a transaction
// must end it before the database is used directly.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", seq.Add(1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	return db
}

// OpenWithSchema opens a database and creates the fixture tables.
func OpenWithSchema(t testing.TB) *bun.DB {
	t.Helper()
	db := Open(t)
	ctx := context.Background()
	for _, m := range Models() {
		_, err := db.NewCreateTable().Model(m).WithForeignKeys().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

// Fixtures holds the seeded rows.
type Fixtures struct {
	Authors  []*Author
	Articles []*Article
	Comments []*Comment
}

func strPtr(s string) *string { return &s }

// Seed inserts two authors, six articles and three comments. The article
// titles exercise LIKE wildcards: "50% off sale" versus "500 offers" and
// "snake_case names" versus "snakeXcase notes".
func Seed(t testing.TB, db *bun.DB) *Fixtures {
	t.Helper()
	ctx := context.Background()

	authors := []*Author{{Name: "alice"}, {Name: "bob"}}
	_, err := db.NewInsert().Model(&authors).Exec(ctx)
	require.NoError(t, err)

	alice, bob := authors[0].ID, authors[1].ID
	articles := []*Article{
		{Title: "Go generics", Body: strPtr("intro"), Views: 10, Published: true, AuthorID: alice},
		{Title: "50% off sale", Views: 5, AuthorID: bob},
		{Title: "snake_case names", Views: 20, Published: true, AuthorID: alice},
		{Title: "snakeXcase notes", Views: 15, AuthorID: bob},
		{Title: "500 offers", Views: 7, Published: true, AuthorID: bob},
		{Title: "a/b testing", Views: 0, AuthorID: alice},
	}
	_, err = db.NewInsert().Model(&articles).Exec(ctx)
	require.NoError(t, err)

	comments := []*Comment{
		{ArticleID: articles[0].ID, Text: "nice"},
		{ArticleID: articles[0].ID, Text: "thanks"},
		{ArticleID: articles[2].ID, Text: "camelCase please"},
	}
	_, err = db.NewInsert().Model(&comments).Exec(ctx)
	require.NoError(t, err)

	return &Fixtures{Authors: authors, Articles: articles, Comments: comments}
}
