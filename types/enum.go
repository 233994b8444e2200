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

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// ConvertStrategy selects how declarative filters are turned into predicates.
type ConvertStrategy int

const (
	StrategySimple ConvertStrategy = iota
	StrategyAdvanced
	StrategyDjango
)

var _ BaseEnum = StrategySimple

var convertStrategyNames = map[ConvertStrategy][2]string{
	StrategySimple:   {"simple", "field equals value"},
	StrategyAdvanced: {"advanced", "field, operator and value triples"},
	StrategyDjango:   {"django", "field__lookup keys with relation traversal"},
}

func (s ConvertStrategy) IsValid() bool {
	_, ok := convertStrategyNames[s]
	return ok
}

func (s ConvertStrategy) Number() int {
	if !s.IsValid() {
		return IllegalValue
	}
	return int(s)
}

func (s ConvertStrategy) String() string { return s.Name() }

func (s ConvertStrategy) Name() string {
	if v, ok := convertStrategyNames[s]; ok {
		return v[0]
	}
	return IllegalName
}

func (s ConvertStrategy) Desc() string {
	if v, ok := convertStrategyNames[s]; ok {
		return v[1]
	}
	return IllegalDesc
}

// ParseConvertStrategy maps a strategy name to its value.
func ParseConvertStrategy(name string) (ConvertStrategy, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, v := range convertStrategyNames {
		if v[0] == name {
			return s, true
		}
	}
	return ConvertStrategy(IllegalValue), false
}

// DisableFieldType is the column type used to mark rows as disabled.
type DisableFieldType int

const (
	DisableFieldUnset DisableFieldType = iota
	DisableFieldBool
	DisableFieldTimestamp
)

var _ BaseEnum = DisableFieldBool

func (t DisableFieldType) IsValid() bool {
	return t == DisableFieldBool || t == DisableFieldTimestamp
}

func (t DisableFieldType) Number() int {
	if !t.IsValid() {
		return IllegalValue
	}
	return int(t)
}

func (t DisableFieldType) String() string { return t.Name() }

func (t DisableFieldType) Name() string {
	switch t {
	case DisableFieldBool:
		return "bool"
	case DisableFieldTimestamp:
		return "timestamp"
	default:
		return IllegalName
	}
}

func (t DisableFieldType) Desc() string {
	switch t {
	case DisableFieldBool:
		return "disabled rows have the flag set to true"
	case DisableFieldTimestamp:
		return "disabled rows carry the time they were disabled"
	default:
		return IllegalDesc
	}
}
