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

import "github.com/uptrace/bun"

// Join is a join specification applied to read statements. It is one of
// JoinRelation, JoinModel or JoinOn.
type Join interface {
	join()
}

// JoinRelation joins a relation by its Go field path, e.g. "Author" or
// "Author.Profile". Nested relations get aliases joined by "__".
type JoinRelation string

// JoinModel joins another entity type using the relation that points to it.
type JoinModel struct {
	Model interface{}
}

// JoinOn joins another entity type with an explicit ON predicate.
type JoinOn struct {
	Model interface{}
	On    string
	Args  []interface{}
	Outer bool
	Full  bool
}

func (JoinRelation) join() {}
func (JoinModel) join()    {}
func (JoinOn) join()       {}

// Load eagerly loads a relation. To-one relations are joined; to-many
// relations are fetched with a second query keyed by the parent ids.
type Load struct {
	Path  string
	Apply func(*bun.SelectQuery) *bun.SelectQuery
}

// LoadPath returns a Load for the relation path without customization.
func LoadPath(path string) Load {
	return Load{Path: path}
}
