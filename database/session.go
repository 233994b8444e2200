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
	"reflect"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// ErrSessionClosed is returned by every operation on a closed session.
var ErrSessionClosed = errors.New("session is closed")

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

type pendingOp struct {
	kind    opKind
	model   interface{}
	columns []string
}

// Session is a transactional handle over a bun database. The transaction is
// begun on first use. Models queued with Add, Delete and MarkDirty are
// written on Flush, on Commit, and before any statement run through Conn.
//
// A session is owned by the code that created it and is not meant to be
// shared between goroutines.
type Session struct {
	db     *bun.DB
	opts   *sql.TxOptions
	logger Logger

	mu      sync.Mutex
	tx      *bun.Tx
	pending []pendingOp
	closed  bool
}

type SessionOption func(*Session)

// WithTxOptions sets the options used when the transaction is begun.
func WithTxOptions(opts *sql.TxOptions) SessionOption {
	return func(s *Session) { s.opts = opts }
}

func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

func NewSession(db *bun.DB, opts ...SessionOption) *Session {
	s := &Session{db: db, logger: GetLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionFactory opens new sessions.
type SessionFactory func() *Session

// NewSessionFactory returns a factory of sessions over db.
func NewSessionFactory(db *bun.DB, opts ...SessionOption) SessionFactory {
	return func() *Session { return NewSession(db, opts...) }
}

func (s *Session) DB() *bun.DB { return s.db }

func (s *Session) Dialect() schema.Dialect { return s.db.Dialect() }

func (s *Session) HasFeature(feat feature.Feature) bool { return s.db.HasFeature(feat) }

// Table returns the bun table of a model type.
func (s *Session) Table(typ reflect.Type) *schema.Table { return s.db.Table(typ) }

func (s *Session) Logger() Logger { return s.logger }

// InTransaction reports whether a transaction has been begun.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Pending returns the number of queued operations.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Conn writes pending operations and returns the transaction to run
// statements on.
func (s *Session) Conn(ctx context.Context) (bun.IDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(ctx); err != nil {
		return nil, err
	}
	tx, err := s.beginLocked(ctx)
	if err != nil {
		return nil, err
	}
	return *tx, nil
}

// Add queues models for insertion.
func (s *Session) Add(models ...interface{}) error {
	return s.enqueue(opInsert, models, nil)
}

// Delete queues a model for deletion by primary key.
func (s *Session) Delete(model interface{}) error {
	return s.enqueue(opDelete, []interface{}{model}, nil)
}

// MarkDirty queues an update of a model by primary key. Without columns
// every column is written.
func (s *Session) MarkDirty(model interface{}, columns ...string) error {
	return s.enqueue(opUpdate, []interface{}{model}, columns)
}

func (s *Session) enqueue(kind opKind, models []interface{}, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	for _, m := range models {
		if m == nil {
			return fmt.Errorf("cannot queue nil model for %s", kind)
		}
		s.pending = append(s.pending, pendingOp{kind: kind, model: m, columns: columns})
	}
	return nil
}

// Flush writes the queued operations inside the transaction without
// committing it. The queue is emptied even when a write fails.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Commit flushes and commits the transaction. A session without a
// transaction commits nothing.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(ctx); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Rollback discards queued operations and rolls the transaction back.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked()
}

// Close rolls back anything uncommitted. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.rollbackLocked()
	s.closed = true
	return err
}

func (s *Session) rollbackLocked() error {
	s.pending = nil
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

func (s *Session) beginLocked(ctx context.Context) (*bun.Tx, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, s.opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	s.tx = &tx
	return s.tx, nil
}

func (s *Session) flushLocked(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.pending) == 0 {
		return nil
	}
	ops := s.pending
	s.pending = nil

	tx, err := s.beginLocked(ctx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := execOp(ctx, *tx, op); err != nil {
			if s.logger != nil {
				s.logger.Debug("Session flush failed", "op", op.kind, "model", fmt.Sprintf("%T", op.model), "error", err)
			}
			return err
		}
	}
	if s.logger != nil {
		s.logger.Debug("Session flushed", "ops", len(ops))
	}
	return nil
}

func execOp(ctx context.Context, db bun.IDB, op pendingOp) error {
	var err error
	switch op.kind {
	case opInsert:
		_, err = db.NewInsert().Model(op.model).Exec(ctx)
	case opUpdate:
		q := db.NewUpdate().Model(op.model).WherePK()
		if len(op.columns) > 0 {
			q = q.Column(op.columns...)
		}
		_, err = q.Exec(ctx)
	case opDelete:
		_, err = db.NewDelete().Model(op.model).WherePK().Exec(ctx)
	}
	return err
}
