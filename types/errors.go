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

package types

import "errors"

var (
	// ErrQuery is returned when a statement cannot be built or produced no result
	// where one was required.
	ErrQuery = errors.New("query error")

	// ErrFilter is returned for malformed filters and unsupported operators.
	ErrFilter = errors.New("filter error")

	// ErrAttribute is returned when a field, column or relation name does not
	// resolve on the entity type.
	ErrAttribute = errors.New("attribute error")

	// ErrRepositoryConfig is returned for invalid repository configuration.
	ErrRepositoryConfig = errors.New("repository configuration error")

	// ErrUnitOfWorkUsage is returned when a unit of work is used outside Do.
	ErrUnitOfWorkUsage = errors.New("unit of work is only usable inside Do")
)
