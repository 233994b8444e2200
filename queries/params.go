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

package queries

import (
	"github.com/tomoncle/sqlrepo/types"
)

// SelectParams configures a read statement. Zero values disable the
// corresponding stage.
type SelectParams struct {
	Filter   types.Filter
	Joins    []types.Join
	Loads    []types.Load
	Search   string
	SearchBy []string
	OrderBy  []string // "field", "field ASC", "field DESC" or a raw expression
	Limit    int
	Offset   int
}

// DisableParams configures a disable statement.
type DisableParams struct {
	IDs           []interface{}
	IDField       string
	Field         string
	FieldType     types.DisableFieldType
	FilterByValue bool
	Extra         types.Filter
}

// Options configures how a BaseQuery converts filters and resolves search
// and order names.
type Options struct {
	Strategy types.ConvertStrategy

	// ColumnMapping maps search and order names to raw SQL expressions.
	ColumnMapping map[string]string

	SearchUseAnd        bool
	SearchCaseSensitive bool
}
