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

package fake

import (
	"context"
	"sync"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/source"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
)

// Fetcher serves canned snapshots keyed by namespace and name.
type Fetcher[T subscription.Object] struct {
	mu       sync.Mutex
	items    map[string]T
	lists    map[string]source.List[T]
	errs     map[string]error
	gates    map[string]chan struct{}
	getCalls int
	lsCalls  int
}

var _ source.Fetcher[subscription.Object] = &Fetcher[subscription.Object]{}

// NewFetcher returns an empty Fetcher.
func NewFetcher[T subscription.Object]() *Fetcher[T] {
	return &Fetcher[T]{
		items: make(map[string]T),
		lists: make(map[string]source.List[T]),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func itemKey(namespace, name string) string { return namespace + "/" + name }

// SetItem makes Get return obj.
func (f *Fetcher[T]) SetItem(obj T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(obj.GetNamespace(), obj.GetName())] = obj
}

// SetList makes List for namespace return the given snapshot.
func (f *Fetcher[T]) SetList(namespace, resourceVersion string, items ...T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[namespace] = source.List[T]{Items: items, ResourceVersion: resourceVersion}
}

// FailGet makes Get of namespace/name fail with err.
func (f *Fetcher[T]) FailGet(namespace, name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[itemKey(namespace, name)] = err
}

// FailList makes List of namespace fail with err.
func (f *Fetcher[T]) FailList(namespace string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[namespace+"/"] = err
}

// HoldList makes List of namespace block until the returned function is
// called.
func (f *Fetcher[T]) HoldList(namespace string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[namespace] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns how many times Get and List were called.
func (f *Fetcher[T]) Calls() (get, list int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.lsCalls
}

// Get implements source.Fetcher.
func (f *Fetcher[T]) Get(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	var zero T
	if err, ok := f.errs[itemKey(namespace, name)]; ok {
		return zero, err
	}
	obj, ok := f.items[itemKey(namespace, name)]
	if !ok {
		return zero, apierrors.NewNotFound(gvr.GroupResource(), name)
	}
	return obj, nil
}

// List implements source.Fetcher. The label selector is ignored.
func (f *Fetcher[T]) List(ctx context.Context, _ schema.GroupVersionResource, namespace, _ string) (source.List[T], error) {
	f.mu.Lock()
	f.lsCalls++
	gate := f.gates[namespace]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return source.List[T]{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[namespace+"/"]; ok {
		return source.List[T]{}, err
	}
	l, ok := f.lists[namespace]
	if !ok {
		return source.List[T]{ResourceVersion: "1"}, nil
	}
	return source.List[T]{Items: append([]T(nil), l.Items...), ResourceVersion: l.ResourceVersion}, nil
}
