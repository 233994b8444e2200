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

import "github.com/tomoncle/sqlrepo/types"

// Config is the immutable configuration of a repository. The With methods
// return modified copies.
type Config struct {
	Strategy        types.ConvertStrategy
	UniqueListItems bool
	UseFlush        bool

	DisableField              string
	DisableIDField            string
	DisableFieldType          types.DisableFieldType
	AllowDisableFilterByValue bool

	UpdateSetNone bool
	// UpdateAllowedNoneFields limits which fields UpdateSetNone may clear.
	// Nil allows all of them.
	UpdateAllowedNoneFields []string

	ColumnMapping       map[string]string
	SearchUseAnd        bool
	SearchCaseSensitive bool
}

func DefaultConfig() Config {
	return Config{
		Strategy:                  types.StrategySimple,
		UniqueListItems:           true,
		UseFlush:                  true,
		AllowDisableFilterByValue: true,
	}
}

func (c Config) WithStrategy(s types.ConvertStrategy) Config {
	c.Strategy = s
	return c
}

func (c Config) WithUniqueListItems(on bool) Config {
	c.UniqueListItems = on
	return c
}

// WithUseFlush makes writes flush into the open transaction when on, and
// commit when off.
func (c Config) WithUseFlush(on bool) Config {
	c.UseFlush = on
	return c
}

func (c Config) WithDisable(idField, field string, typ types.DisableFieldType) Config {
	c.DisableIDField = idField
	c.DisableField = field
	c.DisableFieldType = typ
	return c
}

func (c Config) WithDisableFilterByValue(on bool) Config {
	c.AllowDisableFilterByValue = on
	return c
}

func (c Config) WithUpdateSetNone(on bool, allowed ...string) Config {
	c.UpdateSetNone = on
	c.UpdateAllowedNoneFields = nil
	if len(allowed) > 0 {
		c.UpdateAllowedNoneFields = append([]string(nil), allowed...)
	}
	return c
}

func (c Config) WithColumnMapping(mapping map[string]string) Config {
	c.ColumnMapping = copyMapping(mapping)
	return c
}

func (c Config) WithSearch(useAnd, caseSensitive bool) Config {
	c.SearchUseAnd = useAnd
	c.SearchCaseSensitive = caseSensitive
	return c
}

// clone copies the map and slice fields.
func (c Config) clone() Config {
	c.ColumnMapping = copyMapping(c.ColumnMapping)
	if c.UpdateAllowedNoneFields != nil {
		c.UpdateAllowedNoneFields = append([]string{}, c.UpdateAllowedNoneFields...)
	}
	return c
}

func copyMapping(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
