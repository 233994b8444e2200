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
	"strings"

	"github.com/tomoncle/sqlrepo/types"
	"github.com/uptrace/bun/schema"
)

var djangoLookups = map[string]struct{}{
	lookupExact:       {},
	lookupIExact:      {},
	lookupContains:    {},
	lookupIContains:   {},
	lookupIn:          {},
	lookupGt:          {},
	lookupGte:         {},
	lookupLt:          {},
	lookupLte:         {},
	lookupStartswith:  {},
	lookupIStartswith: {},
	lookupEndswith:    {},
	lookupIEndswith:   {},
	lookupRange:       {},
	lookupIsNull:      {},
}

// DjangoConverter reads keys as field__lookup, e.g. "views__gte" or
// "author__name__icontains". Relations are traversed through "__" segments
// and a key without a lookup means exact.
type DjangoConverter struct{}

func (DjangoConverter) Convert(table *schema.Table, f types.Filter) ([]*types.QueryFilter, error) {
	return convert(table, f, djangoWhere)
}

func djangoWhere(table *schema.Table, w types.Where) ([]*types.QueryFilter, error) {
	out := make([]*types.QueryFilter, 0, len(w))
	for _, key := range sortedKeys(w) {
		segments, lookup := splitLookup(key)
		path, err := resolvePath(table, segments)
		if err != nil {
			return nil, err
		}
		p, err := path.predicate(lookup, w[key])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func splitLookup(key string) ([]string, string) {
	segments := strings.Split(key, "__")
	if n := len(segments); n > 1 {
		if _, ok := djangoLookups[segments[n-1]]; ok {
			return segments[:n-1], segments[n-1]
		}
	}
	return segments, lookupExact
}
