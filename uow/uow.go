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

package uow

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/types"
)

// Option configures a UnitOfWork.
type Option func(*options)

type options struct {
	skipSessionUse bool
	logger         database.Logger
}

// WithSkipSessionUse turns commit, rollback and close into no-ops. It is
// meant for a unit of work nested over a session owned by an outer one.
func WithSkipSessionUse() Option {
	return func(o *options) { o.skipSessionUse = true }
}

func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// UnitOfWork opens a session per Do call, binds the repositories R to it and
// ends the session when the call returns.
type UnitOfWork[R any] struct {
	factory database.SessionFactory
	init    func(*database.Session) (R, error)
	opts    options

	mu      sync.Mutex
	session *database.Session
}

// New creates a unit of work. init binds the repositories to the session
// opened for each Do call.
func New[R any](factory database.SessionFactory, init func(*database.Session) (R, error), opts ...Option) (*UnitOfWork[R], error) {
	if factory == nil || init == nil {
		return nil, fmt.Errorf("%w: unit of work needs a session factory and an init function", types.ErrRepositoryConfig)
	}
	o := options{logger: database.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return &UnitOfWork[R]{factory: factory, init: init, opts: o}, nil
}

// Do runs fn with repositories bound to a new session. The session is
// committed when fn succeeds and rolled back when it fails or panics; a
// panic is re-raised after the rollback. Do is not reentrant.
func (u *UnitOfWork[R]) Do(ctx context.Context, fn func(ctx context.Context, repos R) error) (err error) {
	session, err := u.begin()
	if err != nil {
		return err
	}
	defer u.end(ctx, session)
	defer func() {
		if p := recover(); p != nil {
			u.rollback(ctx, session)
			panic(p)
		}
	}()

	repos, err := u.init(session)
	if err != nil {
		u.rollback(ctx, session)
		return err
	}
	if err := fn(ctx, repos); err != nil {
		u.rollback(ctx, session)
		return err
	}
	if u.opts.skipSessionUse {
		return nil
	}
	return session.Commit(ctx)
}

func (u *UnitOfWork[R]) begin() (*database.Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.session != nil {
		return nil, fmt.Errorf("%w: Do is already running", types.ErrUnitOfWorkUsage)
	}
	session := u.factory()
	if session == nil {
		return nil, fmt.Errorf("%w: session factory returned nil", types.ErrUnitOfWorkUsage)
	}
	u.session = session
	return session, nil
}

func (u *UnitOfWork[R]) end(ctx context.Context, session *database.Session) {
	if !u.opts.skipSessionUse {
		if err := session.Close(ctx); err != nil {
			u.opts.logger.Warn("Unit of work session close failed", "error", err)
		}
	}
	u.mu.Lock()
	u.session = nil
	u.mu.Unlock()
}

func (u *UnitOfWork[R]) rollback(ctx context.Context, session *database.Session) {
	if u.opts.skipSessionUse {
		return
	}
	if err := session.Rollback(ctx); err != nil {
		u.opts.logger.Error("Unit of work rollback failed", "error", err)
	}
}

func (u *UnitOfWork[R]) active() (*database.Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.session == nil {
		return nil, types.ErrUnitOfWorkUsage
	}
	return u.session, nil
}

// Session returns the session of the running Do call.
func (u *UnitOfWork[R]) Session() (*database.Session, error) {
	return u.active()
}

// Commit commits the work done so far inside Do. The session stays usable.
func (u *UnitOfWork[R]) Commit(ctx context.Context) error {
	session, err := u.active()
	if err != nil || u.opts.skipSessionUse {
		return err
	}
	return session.Commit(ctx)
}

func (u *UnitOfWork[R]) Rollback(ctx context.Context) error {
	session, err := u.active()
	if err != nil || u.opts.skipSessionUse {
		return err
	}
	return session.Rollback(ctx)
}

// Close closes the session of the running Do call. Later statements in fn
// fail with database.ErrSessionClosed.
func (u *UnitOfWork[R]) Close(ctx context.Context) error {
	session, err := u.active()
	if err != nil || u.opts.skipSessionUse {
		return err
	}
	return session.Close(ctx)
}
