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

// Filter is a declarative predicate over an entity type. It is one of Where,
// Condition, *QueryFilter or Filters; converters in the filters package turn
// it into bun WHERE clauses.
type Filter interface {
	filter()
}

// Where maps keys to values. The meaning of the keys depends on the converter
// strategy: field paths for simple, field/operator/value for advanced and
// field__lookup for django.
type Where map[string]interface{}

// Condition is an explicit comparison of a field against a value.
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Filters is a sequence of filters joined with AND.
type Filters []Filter

func (Where) filter()        {}
func (Condition) filter()    {}
func (*QueryFilter) filter() {}
func (Filters) filter()      {}

// Operator is a comparison used by advanced filters.
type Operator string

const (
	OpEq       Operator = "="
	OpGt       Operator = ">"
	OpLt       Operator = "<"
	OpGte      Operator = ">="
	OpLte      Operator = "<="
	OpIs       Operator = "is"
	OpIsNot    Operator = "is_not"
	OpBetween  Operator = "between"
	OpContains Operator = "contains"
)

// IsValid reports whether the operator is supported.
func (o Operator) IsValid() bool {
	switch o {
	case OpEq, OpGt, OpLt, OpGte, OpLte, OpIs, OpIsNot, OpBetween, OpContains:
		return true
	}
	return false
}

// Data holds entity field values keyed by column name or Go field name.
type Data map[string]interface{}
