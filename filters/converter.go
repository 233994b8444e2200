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

package filters

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun/schema"
)

// Converter turns a filter into predicates against the given table. It never
// mutates the filter and never drops a predicate it cannot resolve.
type Converter interface {
	Convert(table *schema.Table, f types.Filter) ([]*types.QueryFilter, error)
}

// ForStrategy returns the converter implementing the strategy.
func ForStrategy(s types.ConvertStrategy) (Converter, error) {
	switch s {
	case types.StrategySimple:
		return SimpleConverter{}, nil
	case types.StrategyAdvanced:
		return AdvancedConverter{}, nil
	case types.StrategyDjango:
		return DjangoConverter{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown filter convert strategy %d", types.ErrRepositoryConfig, int(s))
	}
}

type whereFunc func(table *schema.Table, w types.Where) ([]*types.QueryFilter, error)

func convert(table *schema.Table, f types.Filter, where whereFunc) ([]*types.QueryFilter, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil table", types.ErrFilter)
	}
	switch v := f.(type) {
	case nil:
		return nil, nil
	case types.Where:
		return where(table, v)
	case types.Condition:
		p, err := conditionPredicate(table, v)
		if err != nil {
			return nil, err
		}
		return []*types.QueryFilter{p}, nil
	case *types.QueryFilter:
		if v == nil {
			return nil, nil
		}
		return []*types.QueryFilter{v}, nil
	case types.Filters:
		var out []*types.QueryFilter
		for _, item := range v {
			ps, err := convert(table, item, where)
			if err != nil {
				return nil, err
			}
			out = append(out, ps...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter type %T", types.ErrFilter, f)
	}
}

func conditionPredicate(table *schema.Table, c types.Condition) (*types.QueryFilter, error) {
	if !c.Operator.IsValid() {
		return nil, fmt.Errorf("%w: unknown operator %q", types.ErrFilter, c.Operator)
	}
	path, err := resolvePath(table, strings.Split(c.Field, "."))
	if err != nil {
		return nil, err
	}
	return path.predicate(string(c.Operator), c.Value)
}

// SimpleConverter compares each key for equality. Nil values become IS NULL
// and slices become IN.
type SimpleConverter struct{}

func (SimpleConverter) Convert(table *schema.Table, f types.Filter) ([]*types.QueryFilter, error) {
	return convert(table, f, simpleWhere)
}

func simpleWhere(table *schema.Table, w types.Where) ([]*types.QueryFilter, error) {
	out := make([]*types.QueryFilter, 0, len(w))
	for _, key := range sortedKeys(w) {
		path, err := resolvePath(table, strings.Split(key, "."))
		if err != nil {
			return nil, err
		}
		op := string(types.OpEq)
		if isList(w[key]) {
			op = lookupIn
		}
		p, err := path.predicate(op, w[key])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AdvancedConverter reads a Where as one comparison with "field", "operator"
// and "value" keys.
type AdvancedConverter struct{}

func (AdvancedConverter) Convert(table *schema.Table, f types.Filter) ([]*types.QueryFilter, error) {
	return convert(table, f, advancedWhere)
}

func advancedWhere(table *schema.Table, w types.Where) ([]*types.QueryFilter, error) {
	field, ok := w["field"].(string)
	if !ok || field == "" {
		return nil, fmt.Errorf("%w: advanced filter requires a \"field\" key", types.ErrFilter)
	}
	var op types.Operator
	switch v := w["operator"].(type) {
	case types.Operator:
		op = v
	case string:
		op = types.Operator(v)
	default:
		return nil, fmt.Errorf("%w: advanced filter requires an \"operator\" key", types.ErrFilter)
	}
	p, err := conditionPredicate(table, types.Condition{Field: field, Operator: op, Value: w["value"]})
	if err != nil {
		return nil, err
	}
	return []*types.QueryFilter{p}, nil
}

func sortedKeys(w types.Where) []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isList(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}
