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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var (
	hookTag   = color.New(color.FgCyan).SprintFunc()
	hookError = color.New(color.BgRed, color.FgWhite).SprintFunc()
	otherOp   = color.New(color.FgRed)
)

// QueryHook prints executed statements with the operation highlighted. The
// environment variable, when set, overrides the configuration: "0" or empty
// disables, "1" prints failed queries only and "2" prints everything.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

type QueryHookOption func(*QueryHook)

func WithQueryHookEnabled(on bool) QueryHookOption {
	return func(h *QueryHook) { h.enabled = on }
}

func WithQueryHookVerbose(on bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = on }
}

func WithQueryHookEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

func WithQueryHookWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{enabled: true, verbose: true, writer: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ bun.QueryHook = (*QueryHook)(nil)

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled, verbose := h.enabled, h.verbose
	if h.envName != "" {
		if env, ok := os.LookupEnv(h.envName); ok {
			enabled = env != "" && env != "0"
			verbose = env == "2"
		}
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		hookTag("[SQL]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", colorOperation(event),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", hookError(" "+typ+": "+event.Err.Error()+" "))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

func colorOperation(event *bun.QueryEvent) string {
	c, ok := operationColors[event.Operation()]
	if !ok {
		c = otherOp
	}
	return c.Sprint(event.Query)
}

var (
	quotedLiteral  = regexp.MustCompile(`'(?:[^']|'')*'`)
	numericLiteral = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// Fingerprint hashes a statement with its literals and spacing normalized, so
// the same query with different arguments shares one fingerprint.
func Fingerprint(query string) uint64 {
	q := quotedLiteral.ReplaceAllString(query, "?")
	q = numericLiteral.ReplaceAllString(q, "?")
	q = whitespace.ReplaceAllString(strings.TrimSpace(q), " ")
	return xxhash.Sum64String(strings.ToLower(q))
}

// SlowQueryHook warns about statements slower than the threshold. A given
// fingerprint is reported at most once per window.
type SlowQueryHook struct {
	threshold time.Duration
	window    time.Duration
	logger    Logger

	mu   sync.Mutex
	seen map[uint64]time.Time
	now  func() time.Time
}

func NewSlowQueryHook(threshold, window time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{
		threshold: threshold,
		window:    window,
		logger:    logger,
		seen:      make(map[uint64]time.Time),
		now:       time.Now,
	}
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.logger == nil {
		return
	}
	now := h.now()
	duration := now.Sub(event.StartTime)
	if duration <= h.threshold {
		return
	}
	fp := Fingerprint(event.Query)

	h.mu.Lock()
	last, ok := h.seen[fp]
	report := !ok || h.window <= 0 || now.Sub(last) >= h.window
	if report {
		h.seen[fp] = now
	}
	h.mu.Unlock()

	if report {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.threshold,
			"fingerprint", fmt.Sprintf("%016x", fp),
			"query", event.Query,
		)
	}
}
