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

package database

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// SQLModel is a bun model registered for migrations. Lower priorities are
// created first, so referenced tables should carry a lower priority.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores models and returns them ordered by priority. Models
// with equal priority keep their registration order.
type ModelRegistry struct {
	mu     sync.RWMutex
	models []SQLModel
	seen   map[reflect.Type]struct{}
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{seen: make(map[reflect.Type]struct{})}
}

// Register adds a model. A nil instance, a non-struct instance or a type
// registered twice is rejected.
func (r *ModelRegistry) Register(model SQLModel) error {
	typ, err := modelType(model.Instance())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[typ]; ok {
		return fmt.Errorf("model %s already registered", typ)
	}
	r.seen[typ] = struct{}{}
	r.models = append(r.models, model)
	return nil
}

func (r *ModelRegistry) Models() []SQLModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

// Instances returns the registered model instances in priority order.
func (r *ModelRegistry) Instances() []interface{} {
	models := r.Models()
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Instance()
	}
	return out
}

func modelType(instance interface{}) (reflect.Type, error) {
	if instance == nil {
		return nil, fmt.Errorf("model instance cannot be nil")
	}
	typ := reflect.TypeOf(instance)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %T is not a struct", instance)
	}
	return typ, nil
}

type modelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct instance and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &modelAdapter{instance: instance, priority: priority}
}

func (a *modelAdapter) Instance() interface{} { return a.instance }
func (a *modelAdapter) Priority() int         { return a.priority }

// RegisterModel adds a model to the default registry.
func RegisterModel(instance interface{}, priority int) error {
	return defaultRegistry.Register(NewModelAdapter(instance, priority))
}

// RegisteredModelInstances returns the default registry's models.
func RegisteredModelInstances() []interface{} {
	return defaultRegistry.Instances()
}
