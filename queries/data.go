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
	"fmt"
	"reflect"
	"time"

	"github.com/tomoncle/sqlrepo/filters"
	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun/schema"
)

var timeType = reflect.TypeOf(time.Time{})

// buildItems creates one entity per data map. A nil map builds a zero entity.
func (b *BaseQuery[T]) buildItems(data []types.Data) ([]*T, error) {
	items := make([]*T, 0, len(data))
	for _, d := range data {
		item := new(T)
		v := reflect.ValueOf(item).Elem()
		for _, key := range sortedDataKeys(d) {
			field, err := filters.LookupField(b.table, key)
			if err != nil {
				return nil, err
			}
			if err := setField(field, field.Value(v), d[key]); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// changeItem assigns data onto item and reports whether any value differs
// from what the item held, together with the changed column names. Every
// value is converted before the first assignment, so a failed conversion
// leaves item untouched.
func (b *BaseQuery[T]) changeItem(item *T, data types.Data, setNone bool, allowedNone []string) (bool, []string, error) {
	v := reflect.ValueOf(item).Elem()
	type change struct {
		field *schema.Field
		value reflect.Value
	}
	var changes []change
	for _, key := range sortedDataKeys(data) {
		field, err := filters.LookupField(b.table, key)
		if err != nil {
			return false, nil, err
		}
		value := data[key]
		if isNil(value) && (!setNone || !noneAllowed(allowedNone, key, field)) {
			continue
		}
		converted, err := fieldValue(field, field.Value(v).Type(), value)
		if err != nil {
			return false, nil, err
		}
		changes = append(changes, change{field: field, value: converted})
	}

	var columns []string
	for _, c := range changes {
		fv := c.field.Value(v)
		if !sameValue(fv, c.value) {
			columns = append(columns, c.field.Name)
		}
		fv.Set(c.value)
	}
	return len(columns) > 0, columns, nil
}

func noneAllowed(allowed []string, key string, field *schema.Field) bool {
	if allowed == nil {
		return true
	}
	for _, name := range allowed {
		if name == "*" || name == key || name == field.Name || name == field.GoName {
			return true
		}
	}
	return false
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// setField assigns value to dst, allocating pointers and converting between
// numeric kinds of the same family.
func setField(field *schema.Field, dst reflect.Value, value interface{}) error {
	converted, err := fieldValue(field, dst.Type(), value)
	if err != nil {
		return err
	}
	dst.Set(converted)
	return nil
}

// fieldValue converts value into a value assignable to a field of type typ.
func fieldValue(field *schema.Field, typ reflect.Type, value interface{}) (reflect.Value, error) {
	if isNil(value) {
		return reflect.Zero(typ), nil
	}
	src := reflect.ValueOf(value)
	for src.Kind() == reflect.Ptr && !src.Type().AssignableTo(typ) {
		src = src.Elem()
	}
	if src.Type().AssignableTo(typ) {
		return src, nil
	}
	target := typ
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	converted, ok := convertValue(src, target)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: cannot assign %s to field %s of type %s",
			types.ErrQuery, src.Type(), field.GoName, typ)
	}
	if typ.Kind() == reflect.Ptr {
		p := reflect.New(target)
		p.Elem().Set(converted)
		return p, nil
	}
	return converted, nil
}

func convertValue(src reflect.Value, target reflect.Type) (reflect.Value, bool) {
	if src.Type().AssignableTo(target) {
		return src, true
	}
	sk, tk := kindClass(src.Kind()), kindClass(target.Kind())
	switch {
	case sk == 0 || tk == 0:
		return reflect.Value{}, false
	case sk == tk, sk == classInt && tk == classFloat:
		return src.Convert(target), true
	}
	return reflect.Value{}, false
}

const (
	classInt = iota + 1
	classFloat
	classString
	classBool
)

func kindClass(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return classInt
	case reflect.Float32, reflect.Float64:
		return classFloat
	case reflect.String:
		return classString
	case reflect.Bool:
		return classBool
	}
	return 0
}

func sameValue(a, b reflect.Value) bool {
	for a.Kind() == reflect.Ptr && b.Kind() == reflect.Ptr {
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		a, b = a.Elem(), b.Elem()
	}
	if a.Type() == timeType && b.Type() == timeType {
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time))
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}
