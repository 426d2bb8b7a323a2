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

package subscription

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
)

// Object is the minimal identity every watched resource must expose. Any
// metav1.Object and *unstructured.Unstructured satisfy it.
type Object interface {
	GetName() string
	GetNamespace() string
	GetResourceVersion() string
}

// EventType identifies the kind of change carried by an Event.
type EventType string

const (
	EventAdded    EventType = EventType(watch.Added)
	EventModified EventType = EventType(watch.Modified)
	EventDeleted  EventType = EventType(watch.Deleted)
	EventError    EventType = EventType(watch.Error)
)

// Event is a single change delivered by a live subscription. Err is only set
// for EventError, in which case Object is the zero value.
type Event[T Object] struct {
	Type   EventType
	Object T
	Err    error
}

// Request describes what a transport-level subscription should stream.
// Name and LabelSelector are mutually exclusive: a set Name means a single
// item watch.
type Request struct {
	Resource      schema.GroupVersionResource
	Namespace     string
	Name          string
	LabelSelector string
	// FromVersion is the resourceVersion the stream continues from. It is
	// filled in by the registry when the subscription is started.
	FromVersion string
}

// Callbacks receive everything a live subscription produces. A transport
// must invoke them from a single goroutine per subscription, in order.
type Callbacks[T Object] struct {
	OnData  func(Event[T])
	OnError func(error)
	// OnClose is called at most once, when the stream ended for good without
	// Unsubscribe, e.g. because its version expired. Nothing is delivered
	// after it.
	OnClose func(error)
}

// Subscription is the handle of a live transport-level stream.
type Subscription interface {
	// Unsubscribe stops the stream. It must be idempotent and must not block
	// on in-flight deliveries.
	Unsubscribe()
}

// Transport opens streaming subscriptions. Reconnects and backoff are the
// transport's own business; the registry never re-subscribes on its own.
type Transport[T Object] interface {
	// Subscribe starts streaming changes for req. ctx bounds the lifetime of
	// the subscription, not only the call.
	Subscribe(ctx context.Context, req Request, cb Callbacks[T]) (Subscription, error)
}

// Handler is a consumer registered for a key. Both callbacks are optional.
type Handler[T Object] struct {
	OnEvent func(Event[T])
	OnError func(error)
}

// HandlerID identifies one registration within the registry.
type HandlerID uint64

// Params are the per-entry parameters fixed by the first registration of a
// key. Later registrations for the same key reuse the existing entry and
// their Params are ignored.
type Params struct {
	Request Request
	// Finalizer, when set, runs exactly once after the entry is destroyed.
	Finalizer func()
}
