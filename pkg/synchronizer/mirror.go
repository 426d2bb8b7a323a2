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

package synchronizer

import (
	"sort"
	"strconv"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
)

// Mirror is the local copy of one partition of a collection: items keyed by
// name plus the collection resourceVersion.
//
// A Mirror published to the cache is never mutated again; writers Clone it,
// Apply to the clone and publish the clone.
type Mirror[T subscription.Object] struct {
	items           map[string]T
	resourceVersion string
}

// NewMirror builds a mirror from a snapshot. Later items win on duplicate
// names.
func NewMirror[T subscription.Object](items []T, resourceVersion string) *Mirror[T] {
	m := &Mirror[T]{
		items:           make(map[string]T, len(items)),
		resourceVersion: resourceVersion,
	}
	for _, it := range items {
		m.items[it.GetName()] = it
	}
	return m
}

// Apply applies ev and reports whether the mirror changed.
//
// ADDED inserts or overwrites. MODIFIED inserts when absent and otherwise
// replaces unless the new version is numerically older than the mirrored
// one; versions that do not parse are always accepted. DELETED removes the
// name; removing an absent name changes nothing. ERROR never mutates.
//
// The collection resourceVersion follows accepted events only and never
// moves backwards between two numeric versions.
func (m *Mirror[T]) Apply(ev subscription.Event[T]) bool {
	if ev.Type == subscription.EventError {
		return false
	}
	name := ev.Object.GetName()
	if name == "" {
		return false
	}

	switch ev.Type {
	case subscription.EventAdded:
		m.items[name] = ev.Object
	case subscription.EventModified:
		if cur, ok := m.items[name]; ok && olderThan(ev.Object.GetResourceVersion(), cur.GetResourceVersion()) {
			return false
		}
		m.items[name] = ev.Object
	case subscription.EventDeleted:
		if _, ok := m.items[name]; !ok {
			return false
		}
		delete(m.items, name)
	default:
		return false
	}

	m.advance(ev.Object.GetResourceVersion())
	return true
}

func (m *Mirror[T]) advance(rv string) {
	if rv == "" || olderThan(rv, m.resourceVersion) {
		return
	}
	m.resourceVersion = rv
}

// olderThan reports whether a is numerically lower than b. It is false
// whenever either side is not a number.
func olderThan(a, b string) bool {
	av, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return false
	}
	bv, err := strconv.ParseUint(b, 10, 64)
	if err != nil {
		return false
	}
	return av < bv
}

// Clone returns a shallow copy: the item map is copied, the items are not.
func (m *Mirror[T]) Clone() *Mirror[T] {
	c := &Mirror[T]{
		items:           make(map[string]T, len(m.items)),
		resourceVersion: m.resourceVersion,
	}
	for k, v := range m.items {
		c.items[k] = v
	}
	return c
}

// Get returns the item called name.
func (m *Mirror[T]) Get(name string) (T, bool) {
	it, ok := m.items[name]
	return it, ok
}

// Items returns the mirrored items ordered by name.
func (m *Mirror[T]) Items() []T {
	names := make([]string, 0, len(m.items))
	for name := range m.items {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		out = append(out, m.items[name])
	}
	return out
}

// Len returns the number of mirrored items.
func (m *Mirror[T]) Len() int {
	return len(m.items)
}

// ResourceVersion returns the collection resourceVersion.
func (m *Mirror[T]) ResourceVersion() string {
	return m.resourceVersion
}
