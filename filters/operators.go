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
	"strings"

	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun"
)

// Lookups shared by the django strategy and the simple IN shortcut.
const (
	lookupExact       = "exact"
	lookupIExact      = "iexact"
	lookupContains    = "contains"
	lookupIContains   = "icontains"
	lookupIn          = "in"
	lookupGt          = "gt"
	lookupGte         = "gte"
	lookupLt          = "lt"
	lookupLte         = "lte"
	lookupStartswith  = "startswith"
	lookupIStartswith = "istartswith"
	lookupEndswith    = "endswith"
	lookupIEndswith   = "iendswith"
	lookupRange       = "range"
	lookupIsNull      = "isnull"
)

// LikeEscape is the escape character used by every generated LIKE.
const LikeEscape = "\\"

var likeReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"%", "\\%",
	"_", "\\_",
	"/", "\\/",
)

// EscapeLike escapes backslash, percent, underscore and slash so the term is
// matched literally by a LIKE pattern using LikeEscape.
func EscapeLike(s string) string {
	return likeReplacer.Replace(s)
}

// Like builds a LIKE comparison of ref against pattern.
func Like(ref string, refArgs []interface{}, pattern string, insensitive bool) (string, []interface{}) {
	args := append(append([]interface{}{}, refArgs...), pattern, LikeEscape)
	if insensitive {
		return "LOWER(" + ref + ") LIKE LOWER(?) ESCAPE ?", args
	}
	return ref + " LIKE ? ESCAPE ?", args
}

func compare(ref string, refArgs []interface{}, op string, value interface{}) (string, []interface{}, error) {
	value = indirect(value)
	with := func(v ...interface{}) []interface{} {
		return append(append([]interface{}{}, refArgs...), v...)
	}
	switch op {
	case string(types.OpEq), lookupExact:
		if value == nil {
			return ref + " IS NULL", with(), nil
		}
		return ref + " = ?", with(value), nil
	case string(types.OpGt), lookupGt:
		return ref + " > ?", with(value), nil
	case string(types.OpGte), lookupGte:
		return ref + " >= ?", with(value), nil
	case string(types.OpLt), lookupLt:
		return ref + " < ?", with(value), nil
	case string(types.OpLte), lookupLte:
		return ref + " <= ?", with(value), nil
	case string(types.OpIs):
		return is(ref, refArgs, value, false)
	case string(types.OpIsNot):
		return is(ref, refArgs, value, true)
	case string(types.OpBetween), lookupRange:
		lo, hi, err := bounds(value)
		if err != nil {
			return "", nil, err
		}
		return ref + " BETWEEN ? AND ?", with(lo, hi), nil
	case lookupIn:
		if !isList(value) {
			return "", nil, fmt.Errorf("%w: in requires a slice, got %T", types.ErrFilter, value)
		}
		if reflect.ValueOf(value).Len() == 0 {
			return "1 = 0", nil, nil
		}
		return ref + " IN (?)", with(bun.In(value)), nil
	case lookupIsNull:
		b, ok := value.(bool)
		if !ok {
			return "", nil, fmt.Errorf("%w: isnull requires a bool, got %T", types.ErrFilter, value)
		}
		if b {
			return ref + " IS NULL", with(), nil
		}
		return ref + " IS NOT NULL", with(), nil
	case lookupIExact:
		s, err := text(op, value)
		if err != nil {
			return "", nil, err
		}
		return "LOWER(" + ref + ") = LOWER(?)", with(s), nil
	case lookupContains, lookupIContains,
		lookupStartswith, lookupIStartswith, lookupEndswith, lookupIEndswith:
		s, err := text(op, value)
		if err != nil {
			return "", nil, err
		}
		pattern := EscapeLike(s)
		switch op {
		case lookupStartswith, lookupIStartswith:
			pattern += "%"
		case lookupEndswith, lookupIEndswith:
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		expr, args := Like(ref, refArgs, pattern, strings.HasPrefix(op, "i"))
		return expr, args, nil
	}
	return "", nil, fmt.Errorf("%w: unknown operator %q", types.ErrFilter, op)
}

func is(ref string, refArgs []interface{}, value interface{}, not bool) (string, []interface{}, error) {
	kw := " IS "
	if not {
		kw = " IS NOT "
	}
	args := append([]interface{}{}, refArgs...)
	switch v := value.(type) {
	case nil:
		return ref + kw + "NULL", args, nil
	case bool:
		if v {
			return ref + kw + "TRUE", args, nil
		}
		return ref + kw + "FALSE", args, nil
	}
	return "", nil, fmt.Errorf("%w: is/is_not accept nil or bool, got %T", types.ErrFilter, value)
}

func bounds(value interface{}) (interface{}, interface{}, error) {
	if value != nil {
		rv := reflect.ValueOf(value)
		if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 2 {
			return rv.Index(0).Interface(), rv.Index(1).Interface(), nil
		}
	}
	return nil, nil, fmt.Errorf("%w: between requires two values, got %v", types.ErrFilter, value)
}

func text(op string, value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", fmt.Errorf("%w: %s requires a string, got %T", types.ErrFilter, op, value)
}

func indirect(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
