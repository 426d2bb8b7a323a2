// Copyright 2025 The KubeRocketCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache holds the shared key/value store the synchronizers publish
// their current views into.
package cache

import (
	"sort"

	"k8s.io/client-go/tools/cache"
)

// Cache is a concurrency safe key/value store. Values are treated as
// immutable: writers replace them, they never mutate a stored value.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	// Keys returns the stored keys in lexical order.
	Keys() []string
}

type memory struct {
	store cache.ThreadSafeStore
}

var _ Cache = &memory{}

// NewMemory returns an in-process Cache.
func NewMemory() Cache {
	return &memory{store: cache.NewThreadSafeStore(cache.Indexers{}, cache.Indices{})}
}

func (m *memory) Get(key string) (any, bool) {
	return m.store.Get(key)
}

func (m *memory) Set(key string, value any) {
	m.store.Update(key, value)
}

func (m *memory) Delete(key string) {
	m.store.Delete(key)
}

func (m *memory) Keys() []string {
	keys := m.store.ListKeys()
	sort.Strings(keys)
	return keys
}
