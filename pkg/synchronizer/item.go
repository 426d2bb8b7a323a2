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
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/cache"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/source"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// ItemTarget names a single resource.
type ItemTarget struct {
	Resource  schema.GroupVersionResource
	Namespace string
	Name      string
}

// ItemSynchronizer keeps one cache entry per watched item in sync with the
// remote resource.
type ItemSynchronizer[T subscription.Object] struct {
	cluster  string
	fetcher  source.Fetcher[T]
	registry *subscription.Registry[T]
	cache    cache.Cache
	log      logr.Logger

	// mu serializes cache writes of this synchronizer.
	mu sync.Mutex
}

// NewItemSynchronizer creates an ItemSynchronizer for cluster.
func NewItemSynchronizer[T subscription.Object](
	cluster string,
	fetcher source.Fetcher[T],
	registry *subscription.Registry[T],
	c cache.Cache,
	log logr.Logger,
) *ItemSynchronizer[T] {
	return &ItemSynchronizer[T]{
		cluster:  cluster,
		fetcher:  fetcher,
		registry: registry,
		cache:    c,
		log:      log.WithName("item-synchronizer"),
	}
}

// ItemWatch is a consumer's handle on a watched item. Callers must Unwatch
// it on every exit path.
type ItemWatch[T subscription.Object] struct {
	*handle
	cache cache.Cache
}

// Current returns the cached item. It reports false once the item was
// deleted remotely or the watch was released by every consumer.
func (w *ItemWatch[T]) Current() (T, bool) {
	var zero T
	v, ok := w.cache.Get(w.key.String())
	if !ok {
		return zero, false
	}
	obj, ok := v.(T)
	return obj, ok
}

// Watch fetches the item, publishes it to the cache and follows its changes.
// A failed fetch is returned as *SnapshotFetchError and leaves nothing
// registered.
func (s *ItemSynchronizer[T]) Watch(ctx context.Context, target ItemTarget, opts ...WatchOption) (*ItemWatch[T], error) {
	key := watchkey.ForItem(s.cluster, target.Namespace, target.Resource, target.Name)
	log := s.log.WithValues("resource", target.Resource.String(), "namespace", target.Namespace, "name", target.Name)

	obj, err := s.fetcher.Get(ctx, target.Resource, target.Namespace, target.Name)
	if err != nil {
		snapshotErrorsTotal.WithLabelValues(kindItem).Inc()
		return nil, &SnapshotFetchError{Key: key, Err: err}
	}
	if malformed(obj) {
		snapshotErrorsTotal.WithLabelValues(kindItem).Inc()
		return nil, &SnapshotFetchError{Key: key, Err: ErrMalformedObject}
	}
	if obj.GetResourceVersion() == "" {
		snapshotErrorsTotal.WithLabelValues(kindItem).Inc()
		return nil, &SnapshotFetchError{Key: key, Err: subscription.ErrNoInitialVersion}
	}

	w := &ItemWatch[T]{handle: newHandle(key, s.registry, opts), cache: s.cache}
	_, w.release = s.registry.Register(key, subscription.Params{
		Request: subscription.Request{
			Resource:  target.Resource,
			Namespace: target.Namespace,
			Name:      target.Name,
		},
		Finalizer: func() { s.forget(key) },
	}, s.handler(w, log))

	s.seed(key, obj)

	if err := s.registry.Start(key, obj.GetResourceVersion()); err != nil {
		w.Unwatch()
		return nil, fmt.Errorf("failed to watch %s %s/%s: %w", target.Resource.Resource, target.Namespace, target.Name, err)
	}

	log.V(1).Info("Watching item", "resourceVersion", obj.GetResourceVersion())
	return w, nil
}

// seed publishes the snapshot unless a live subscription of another consumer
// already published a newer version.
func (s *ItemSynchronizer[T]) seed(key watchkey.Key, obj T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(key.String()); ok {
		if cur, ok := v.(T); ok && olderThan(obj.GetResourceVersion(), cur.GetResourceVersion()) {
			return
		}
	}
	s.cache.Set(key.String(), obj)
}

// forget drops the cache entry once nobody watches key any more.
func (s *ItemSynchronizer[T]) forget(key watchkey.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry.RefCount(key) > 0 {
		return
	}
	s.cache.Delete(key.String())
}

func (s *ItemSynchronizer[T]) handler(w *ItemWatch[T], log logr.Logger) subscription.Handler[T] {
	return subscription.Handler[T]{
		OnEvent: func(ev subscription.Event[T]) {
			if ev.Type == subscription.EventError {
				log.Error(ev.Err, "Item watch reported an error", "lastVersion", s.lastVersion(w))
				w.setError(ev.Err)
				return
			}
			if malformed(ev.Object) {
				malformedEventsTotal.WithLabelValues(kindItem).Inc()
				log.Info("Dropping malformed event", "type", ev.Type)
				return
			}

			s.mu.Lock()
			switch ev.Type {
			case subscription.EventAdded, subscription.EventModified:
				s.cache.Set(w.key.String(), ev.Object)
			case subscription.EventDeleted:
				s.cache.Delete(w.key.String())
			}
			s.mu.Unlock()

			log.V(2).Info("Applied item event", "type", ev.Type, "resourceVersion", ev.Object.GetResourceVersion())
			w.clearError()
			w.notify()
		},
		OnError: func(err error) {
			log.Error(err, "Item stream error", "lastVersion", s.lastVersion(w))
			w.setError(err)
		},
	}
}

func (s *ItemSynchronizer[T]) lastVersion(w *ItemWatch[T]) string {
	if obj, ok := w.Current(); ok {
		return obj.GetResourceVersion()
	}
	return ""
}
