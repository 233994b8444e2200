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

package repository

import (
	"errors"
	"fmt"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/types"
)

// Error wraps a storage failure of a repository operation. Kind classifies
// the cause.
type Error struct {
	Op   string
	Kind database.SQLError
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("repository %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var domainErrors = []error{
	types.ErrQuery,
	types.ErrFilter,
	types.ErrAttribute,
	types.ErrRepositoryConfig,
	types.ErrUnitOfWorkUsage,
}

// wrapError normalizes err for op. Domain errors and errors that are already
// wrapped are returned unchanged.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	_, kind := database.IsSqlError(err)
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the storage classification of err, or UnknownErr.
func KindOf(err error) database.SQLError {
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return repoErr.Kind
	}
	return database.UnknownErr
}
