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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertStrategyEnum(t *testing.T) {
	s, ok := ParseConvertStrategy(" Django ")
	assert.True(t, ok)
	assert.Equal(t, StrategyDjango, s)
	assert.Equal(t, "django", s.String())
	assert.Equal(t, 2, s.Number())

	bad := ConvertStrategy(42)
	assert.False(t, bad.IsValid())
	assert.Equal(t, IllegalValue, bad.Number())
	assert.Equal(t, IllegalName, bad.Name())

	_, ok = ParseConvertStrategy("fuzzy")
	assert.False(t, ok)
}

func TestDisableFieldType(t *testing.T) {
	assert.False(t, DisableFieldUnset.IsValid())
	assert.True(t, DisableFieldBool.IsValid())
	assert.Equal(t, "timestamp", DisableFieldTimestamp.Name())
	assert.Equal(t, IllegalDesc, DisableFieldUnset.Desc())
}

func TestOperatorIsValid(t *testing.T) {
	for _, op := range []Operator{OpEq, OpGt, OpLt, OpGte, OpLte, OpIs, OpIsNot, OpBetween, OpContains} {
		assert.True(t, op.IsValid(), op)
	}
	assert.False(t, Operator("like").IsValid())
}

func TestPageRequestDefaults(t *testing.T) {
	p := NewDefaultPageRequest(0, 0)
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 10, p.GetPageSize())
	assert.Equal(t, 0, p.GetOffset())

	p = NewPageRequestWithFilter(3, 5, Where{"name": "x"})
	assert.Equal(t, 10, p.GetOffset())
	assert.Equal(t, Where{"name": "x"}, p.GetFilter())
}
