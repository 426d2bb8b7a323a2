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
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/cache"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/source"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// ListTarget names a collection within one namespace. An empty Selector
// selects everything.
type ListTarget struct {
	Resource  schema.GroupVersionResource
	Namespace string
	Selector  map[string]string
}

// ListSynchronizer keeps one Mirror per watched collection in sync with the
// remote collection.
type ListSynchronizer[T subscription.Object] struct {
	cluster  string
	fetcher  source.Fetcher[T]
	registry *subscription.Registry[T]
	cache    cache.Cache
	log      logr.Logger

	// mu serializes the read-modify-write of mirrors in the cache.
	mu sync.Mutex
}

// NewListSynchronizer creates a ListSynchronizer for cluster.
func NewListSynchronizer[T subscription.Object](
	cluster string,
	fetcher source.Fetcher[T],
	registry *subscription.Registry[T],
	c cache.Cache,
	log logr.Logger,
) *ListSynchronizer[T] {
	return &ListSynchronizer[T]{
		cluster:  cluster,
		fetcher:  fetcher,
		registry: registry,
		cache:    c,
		log:      log.WithName("list-synchronizer"),
	}
}

// ListWatch is a consumer's handle on a watched collection. Callers must
// Unwatch it on every exit path.
type ListWatch[T subscription.Object] struct {
	*handle
	cache cache.Cache
}

// Current returns the current mirror. The returned mirror is never mutated;
// call Current again to observe later changes. It is empty once the watch
// was released by every consumer.
func (w *ListWatch[T]) Current() *Mirror[T] {
	return mirrorFrom[T](w.cache, w.key)
}

// IsEmpty reports whether the current mirror has no items.
func (w *ListWatch[T]) IsEmpty() bool {
	return w.Current().Len() == 0
}

func mirrorFrom[T subscription.Object](c cache.Cache, key watchkey.Key) *Mirror[T] {
	if v, ok := c.Get(key.String()); ok {
		if m, ok := v.(*Mirror[T]); ok {
			return m
		}
	}
	return NewMirror[T](nil, "")
}

// Watch lists the collection, publishes it as a Mirror and applies the
// changes streamed from the snapshot version on. A failed fetch is returned
// as *SnapshotFetchError and leaves nothing registered.
func (s *ListSynchronizer[T]) Watch(ctx context.Context, target ListTarget, opts ...WatchOption) (*ListWatch[T], error) {
	key := watchkey.ForList(s.cluster, target.Namespace, target.Resource, target.Selector)
	selector := labels.Set(target.Selector).String()
	log := s.log.WithValues("resource", target.Resource.String(), "namespace", target.Namespace, "selector", selector)

	snapshot, err := s.fetcher.List(ctx, target.Resource, target.Namespace, selector)
	if err != nil {
		snapshotErrorsTotal.WithLabelValues(kindList).Inc()
		return nil, &SnapshotFetchError{Key: key, Err: err}
	}
	if snapshot.ResourceVersion == "" {
		snapshotErrorsTotal.WithLabelValues(kindList).Inc()
		return nil, &SnapshotFetchError{Key: key, Err: subscription.ErrNoInitialVersion}
	}

	items := make([]T, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		if malformed(it) {
			malformedEventsTotal.WithLabelValues(kindList).Inc()
			log.Info("Dropping malformed item from snapshot")
			continue
		}
		items = append(items, it)
	}

	w := &ListWatch[T]{handle: newHandle(key, s.registry, opts), cache: s.cache}
	_, w.release = s.registry.Register(key, subscription.Params{
		Request: subscription.Request{
			Resource:      target.Resource,
			Namespace:     target.Namespace,
			LabelSelector: selector,
		},
		Finalizer: func() { s.forget(key) },
	}, s.handler(w, log))

	s.seed(key, NewMirror(items, snapshot.ResourceVersion))

	// Started once per registration; a live entry ignores it, and version
	// advances never restart the subscription.
	if err := s.registry.Start(key, snapshot.ResourceVersion); err != nil {
		w.Unwatch()
		return nil, fmt.Errorf("failed to watch %s in namespace %q: %w", target.Resource.Resource, target.Namespace, err)
	}

	log.V(1).Info("Watching collection", "resourceVersion", snapshot.ResourceVersion, "items", len(items))
	return w, nil
}

// seed publishes the snapshot mirror unless a live subscription of another
// consumer already published a newer one.
func (s *ListSynchronizer[T]) seed(key watchkey.Key, m *Mirror[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(key.String()); ok {
		if cur, ok := v.(*Mirror[T]); ok && olderThan(m.ResourceVersion(), cur.ResourceVersion()) {
			return
		}
	}
	s.cache.Set(key.String(), m)
}

// forget drops the mirror once nobody watches key any more.
func (s *ListSynchronizer[T]) forget(key watchkey.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry.RefCount(key) > 0 {
		return
	}
	s.cache.Delete(key.String())
}

// apply publishes a new mirror with ev applied and reports whether anything
// changed.
func (s *ListSynchronizer[T]) apply(key watchkey.Key, ev subscription.Event[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := mirrorFrom[T](s.cache, key)
	next := cur.Clone()
	if !next.Apply(ev) {
		return false
	}
	s.cache.Set(key.String(), next)
	return true
}

func (s *ListSynchronizer[T]) handler(w *ListWatch[T], log logr.Logger) subscription.Handler[T] {
	return subscription.Handler[T]{
		OnEvent: func(ev subscription.Event[T]) {
			if ev.Type == subscription.EventError {
				log.Error(ev.Err, "Collection watch reported an error", "lastVersion", w.Current().ResourceVersion())
				w.setError(ev.Err)
				return
			}
			if malformed(ev.Object) {
				malformedEventsTotal.WithLabelValues(kindList).Inc()
				log.Info("Dropping malformed event", "type", ev.Type)
				return
			}

			// Every consumer of the key applies the event to the shared
			// mirror. Re-applying is harmless, so each consumer is notified.
			if s.apply(w.key, ev) {
				log.V(2).Info("Applied collection event", "type", ev.Type,
					"name", ev.Object.GetName(), "resourceVersion", ev.Object.GetResourceVersion())
			} else if ev.Type == subscription.EventModified {
				staleEventsTotal.Inc()
				log.V(2).Info("Ignored stale event", "name", ev.Object.GetName(),
					"resourceVersion", ev.Object.GetResourceVersion())
			}
			w.clearError()
			w.notify()
		},
		OnError: func(err error) {
			log.Error(err, "Collection stream error", "lastVersion", w.Current().ResourceVersion())
			w.setError(err)
		},
	}
}
