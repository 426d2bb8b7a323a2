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

package source

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/cache"
	watchtools "k8s.io/client-go/tools/watch"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/features"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
)

var (
	_ Fetcher[*unstructured.Unstructured]                = &Dynamic[*unstructured.Unstructured]{}
	_ subscription.Transport[*unstructured.Unstructured] = &Dynamic[*unstructured.Unstructured]{}
)

// Dynamic fetches snapshots and streams changes through a dynamic client.
type Dynamic[T subscription.Object] struct {
	client  dynamic.Interface
	convert Converter[T]
}

// NewDynamic returns a Fetcher and Transport backed by client.
func NewDynamic[T subscription.Object](client dynamic.Interface, convert Converter[T]) *Dynamic[T] {
	return &Dynamic[T]{client: client, convert: convert}
}

func (d *Dynamic[T]) resource(gvr schema.GroupVersionResource, namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return d.client.Resource(gvr)
	}
	return d.client.Resource(gvr).Namespace(namespace)
}

// Get implements Fetcher.
func (d *Dynamic[T]) Get(ctx context.Context, gvr schema.GroupVersionResource, namespace, name string) (T, error) {
	var zero T
	u, err := d.resource(gvr, namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return zero, err
	}
	return d.convert(u)
}

// List implements Fetcher.
func (d *Dynamic[T]) List(ctx context.Context, gvr schema.GroupVersionResource, namespace, labelSelector string) (List[T], error) {
	ul, err := d.resource(gvr, namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return List[T]{}, err
	}
	out := List[T]{
		Items:           make([]T, 0, len(ul.Items)),
		ResourceVersion: ul.GetResourceVersion(),
	}
	for i := range ul.Items {
		obj, err := d.convert(&ul.Items[i])
		if err != nil {
			return List[T]{}, err
		}
		out.Items = append(out.Items, obj)
	}
	return out, nil
}

// Subscribe implements subscription.Transport. The stream is resumed from the
// last delivered resourceVersion whenever the server closes it; an expired
// version ends the stream with an error reported through cb.OnError and
// cb.OnClose.
func (d *Dynamic[T]) Subscribe(ctx context.Context, req subscription.Request, cb subscription.Callbacks[T]) (subscription.Subscription, error) {
	ri := d.resource(req.Resource, req.Namespace)
	lw := &cache.ListWatch{
		WatchFunc: func(options metav1.ListOptions) (watch.Interface, error) {
			if req.Name != "" {
				options.FieldSelector = fields.OneTermEqualSelector("metadata.name", req.Name).String()
			} else {
				options.LabelSelector = req.LabelSelector
			}
			options.AllowWatchBookmarks = features.FeatureGate.Enabled(features.WatchBookmarks)
			return ri.Watch(ctx, options)
		},
	}

	rw, err := watchtools.NewRetryWatcher(req.FromVersion, lw)
	if err != nil {
		return nil, err
	}

	s := &stream{watcher: rw}
	go deliver(ctx, s, d.convert, cb)
	return s, nil
}

type stream struct {
	watcher *watchtools.RetryWatcher
	once    sync.Once
	stopped atomic.Bool
}

func (s *stream) Unsubscribe() {
	s.stopped.Store(true)
	s.once.Do(s.watcher.Stop)
}

func deliver[T subscription.Object](ctx context.Context, s *stream, convert Converter[T], cb subscription.Callbacks[T]) {
	defer s.Unsubscribe()

	// ended reports a stream that stopped without Unsubscribe.
	ended := func(err error) {
		if s.stopped.Load() || ctx.Err() != nil || cb.OnClose == nil {
			return
		}
		cb.OnClose(err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.watcher.Done():
			ended(fmt.Errorf("watch stream stopped"))
			return
		case ev, ok := <-s.watcher.ResultChan():
			if !ok {
				if ctx.Err() == nil && !s.stopped.Load() {
					cb.OnError(fmt.Errorf("watch stream closed"))
				}
				ended(fmt.Errorf("watch stream closed"))
				return
			}
			switch ev.Type {
			case watch.Bookmark:
				continue
			case watch.Error:
				err := apierrors.FromObject(ev.Object)
				cb.OnData(subscription.Event[T]{Type: subscription.EventError, Err: err})
				if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
					// The retry watcher cannot resume past an expired version.
					err = fmt.Errorf("watch can no longer be resumed: %w", err)
					cb.OnError(err)
					ended(err)
					return
				}
				continue
			}

			u, ok := ev.Object.(*unstructured.Unstructured)
			if !ok {
				cb.OnError(fmt.Errorf("unexpected object type %T in watch event", ev.Object))
				continue
			}
			obj, err := convert(u)
			if err != nil {
				cb.OnError(err)
				continue
			}
			cb.OnData(subscription.Event[T]{Type: subscription.EventType(ev.Type), Object: obj})
		}
	}
}
