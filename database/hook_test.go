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
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) SetLevel(LogLevel)                       {}
func (l *recordingLogger) Debug(msg string, fields ...interface{}) {}
func (l *recordingLogger) Info(msg string, fields ...interface{})  {}
func (l *recordingLogger) Error(msg string, fields ...interface{}) {}
func (l *recordingLogger) Warn(msg string, fields ...interface{}) {
	l.warnings = append(l.warnings, msg+formatFields(fields))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(`SELECT * FROM "articles" WHERE id = 1 AND title = 'a'`)
	b := Fingerprint("select *  from \"articles\"\n where id = 42 and title = 'it''s'")
	c := Fingerprint(`SELECT * FROM "comments" WHERE id = 1`)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSlowQueryHookReportsOncePerWindow(t *testing.T) {
	log := &recordingLogger{}
	h := NewSlowQueryHook(100*time.Millisecond, time.Minute, log)
	now := time.Now()
	h.now = func() time.Time { return now }

	slow := func(query string) *bun.QueryEvent {
		return &bun.QueryEvent{Query: query, StartTime: now.Add(-time.Second)}
	}
	ctx := context.Background()

	h.AfterQuery(ctx, slow("SELECT 1"))
	h.AfterQuery(ctx, slow("SELECT 2"))
	assert.Len(t, log.warnings, 1)

	h.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT 3", StartTime: now})
	h.AfterQuery(ctx, &bun.QueryEvent{Query: "SELECT x", StartTime: now.Add(-time.Second), Err: errors.New("x")})
	assert.Len(t, log.warnings, 1)

	now = now.Add(2 * time.Minute)
	h.AfterQuery(ctx, slow("SELECT 4"))
	assert.Len(t, log.warnings, 2)
	assert.Contains(t, log.warnings[1], fmt.Sprintf("fingerprint=%016x", Fingerprint("SELECT 4")))
}

func TestQueryHook(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	ctx := context.Background()
	ok := &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()}
	failed := &bun.QueryEvent{Query: "SELECT broken", StartTime: time.Now(), Err: errors.New("syntax error")}

	h := NewQueryHook(WithQueryHookWriter(&buf), WithQueryHookVerbose(false))
	h.AfterQuery(ctx, ok)
	assert.Empty(t, buf.String())
	h.AfterQuery(ctx, failed)
	assert.Contains(t, buf.String(), "SELECT broken")
	assert.Contains(t, buf.String(), "syntax error")

	buf.Reset()
	t.Setenv("SQLREPO_TEST_QUERY_LOG", "0")
	h = NewQueryHook(WithQueryHookWriter(&buf), WithQueryHookEnv("SQLREPO_TEST_QUERY_LOG"))
	h.AfterQuery(ctx, failed)
	assert.Empty(t, buf.String())

	t.Setenv("SQLREPO_TEST_QUERY_LOG", "2")
	h.AfterQuery(ctx, ok)
	assert.Contains(t, buf.String(), "[SQL]")
	assert.Contains(t, buf.String(), "SELECT 1")
}
