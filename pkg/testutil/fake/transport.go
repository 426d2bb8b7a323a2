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

// Package fake provides in-memory collaborators for watch layer tests.
package fake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
)

// Transport records every Subscribe call and lets tests drive the resulting
// streams by hand.
type Transport[T subscription.Object] struct {
	mu      sync.Mutex
	streams []*Stream[T]
	err     error
	errNext error
	gate    chan struct{}
	entered chan struct{}
}

var _ subscription.Transport[subscription.Object] = &Transport[subscription.Object]{}

// NewTransport returns a Transport that accepts every subscription.
func NewTransport[T subscription.Object]() *Transport[T] {
	return &Transport[T]{}
}

// FailWith makes subsequent Subscribe calls fail with err. A nil err restores
// normal behaviour.
func (t *Transport[T]) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// FailNext makes only the next Subscribe call fail with err.
func (t *Transport[T]) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errNext = err
}

// Block makes subsequent Subscribe calls wait until the returned release
// function is called. The entered channel receives once per blocked call.
func (t *Transport[T]) Block() (entered <-chan struct{}, release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = make(chan struct{})
	t.entered = make(chan struct{}, 16)
	gate := t.gate
	var once sync.Once
	return t.entered, func() { once.Do(func() { close(gate) }) }
}

// Subscribe implements subscription.Transport.
func (t *Transport[T]) Subscribe(ctx context.Context, req subscription.Request, cb subscription.Callbacks[T]) (subscription.Subscription, error) {
	t.mu.Lock()
	gate, entered := t.gate, t.entered
	t.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.errNext != nil {
		err := t.errNext
		t.errNext = nil
		t.streams = append(t.streams, &Stream[T]{Request: req, Failed: true})
		return nil, err
	}
	if t.err != nil {
		t.streams = append(t.streams, &Stream[T]{Request: req, Failed: true})
		return nil, t.err
	}
	s := &Stream[T]{Request: req, ctx: ctx, cb: cb}
	t.streams = append(t.streams, s)
	return s, nil
}

// Calls returns the number of Subscribe calls, successful or not.
func (t *Transport[T]) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}

// Streams returns every stream opened so far, in order.
func (t *Transport[T]) Streams() []*Stream[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Stream[T](nil), t.streams...)
}

// Last returns the most recent stream, or nil.
func (t *Transport[T]) Last() *Stream[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.streams) == 0 {
		return nil
	}
	return t.streams[len(t.streams)-1]
}

// Stream is one subscription handed out by Transport. Emit keeps delivering
// after Unsubscribe so tests can simulate late deliveries.
type Stream[T subscription.Object] struct {
	Request subscription.Request
	Failed  bool

	ctx     context.Context
	cb      subscription.Callbacks[T]
	stopped atomic.Bool
}

// Emit delivers ev to the subscriber.
func (s *Stream[T]) Emit(ev subscription.Event[T]) {
	s.cb.OnData(ev)
}

// Added delivers an ADDED event.
func (s *Stream[T]) Added(obj T) { s.Emit(subscription.Event[T]{Type: subscription.EventAdded, Object: obj}) }

// Modified delivers a MODIFIED event.
func (s *Stream[T]) Modified(obj T) {
	s.Emit(subscription.Event[T]{Type: subscription.EventModified, Object: obj})
}

// Deleted delivers a DELETED event.
func (s *Stream[T]) Deleted(obj T) {
	s.Emit(subscription.Event[T]{Type: subscription.EventDeleted, Object: obj})
}

// StatusError delivers an ERROR event.
func (s *Stream[T]) StatusError(err error) {
	s.Emit(subscription.Event[T]{Type: subscription.EventError, Err: err})
}

// Fail reports a stream error.
func (s *Stream[T]) Fail(err error) {
	s.cb.OnError(err)
}

// Close ends the stream from the transport side, as an expired version does.
func (s *Stream[T]) Close(err error) {
	if s.cb.OnClose != nil {
		s.cb.OnClose(err)
	}
}

// Unsubscribe implements subscription.Subscription.
func (s *Stream[T]) Unsubscribe() {
	s.stopped.Store(true)
}

// Stopped reports whether the subscription was cancelled, either through
// Unsubscribe or through its context.
func (s *Stream[T]) Stopped() bool {
	if s.stopped.Load() {
		return true
	}
	return s.ctx != nil && s.ctx.Err() != nil
}
