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

// Package subscription multiplexes independent consumers of the same watch
// target onto one transport-level subscription, reference counted by the
// number of registered handlers.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription/watchtracker"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// ErrNoInitialVersion is returned by Start when no resourceVersion is known
// yet. A subscription is never started blind.
var ErrNoInitialVersion = errors.New("initial resource version is required to start a subscription")

// Config tunes a Registry.
type Config struct {
	// RecoveryTimeout is how long a key must stay error free before its
	// tracked state leaves Degraded.
	RecoveryTimeout time.Duration
	// StateEventBuffer is the buffer size of the tracker state event channel.
	StateEventBuffer int
}

func (c Config) withDefaults() Config {
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.StateEventBuffer <= 0 {
		c.StateEventBuffer = 100
	}
	return c
}

// Registry is a ref-counted subscription multiplexer. Each watch key owns at
// most one entry and each entry owns at most one live subscription, shared
// by every handler registered for that key.
//
// Entry lifecycle:
//
//	ABSENT --Register--> REGISTERED --Start--> LIVE
//	LIVE --stream ended by the transport--> REGISTERED
//	REGISTERED|LIVE --last Unregister--> ABSENT
type Registry[T Object] struct {
	mu      sync.Mutex
	entries map[watchkey.Key]*entry[T]
	nextID  HandlerID

	transport Transport[T]
	tracker   *watchtracker.Tracker
	log       logr.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type entry[T Object] struct {
	key    watchkey.Key
	params Params

	// handlers is kept in registration order; fan-out follows it.
	handlers []*handlerSlot[T]

	sub      Subscription
	cancel   context.CancelFunc
	starting bool
	// startDone is closed when the subscribe attempt in flight finishes.
	startDone chan struct{}
	// lost is set when the stream of the attempt in flight ended before
	// Subscribe returned.
	lost bool
	// generation increases with every subscribe attempt so that callbacks
	// from a superseded subscription can be recognised and dropped.
	generation uint64
	closed     bool
}

type handlerSlot[T Object] struct {
	id      HandlerID
	handler Handler[T]
	active  atomic.Bool
}

// NewRegistry creates a Registry that opens subscriptions through transport.
func NewRegistry[T Object](transport Transport[T], cfg Config, log logr.Logger) *Registry[T] {
	cfg = cfg.withDefaults()
	return NewRegistryWithTracker(transport, watchtracker.NewTracker(cfg.RecoveryTimeout, cfg.StateEventBuffer), log)
}

// NewRegistryWithTracker creates a Registry reporting to the given tracker.
func NewRegistryWithTracker[T Object](transport Transport[T], tracker *watchtracker.Tracker, log logr.Logger) *Registry[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry[T]{
		entries:   make(map[watchkey.Key]*entry[T]),
		transport: transport,
		tracker:   tracker,
		log:       log.WithName("subscription-registry"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register adds handler to the entry of key, creating the entry when it does
// not exist yet. Nothing is subscribed until Start is called. The returned
// function unregisters the handler and is safe to call more than once.
func (r *Registry[T]) Register(key watchkey.Key, params Params, handler Handler[T]) (HandlerID, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &entry[T]{key: key, params: params}
		r.entries[key] = e
		registryEntries.Inc()
		r.log.V(1).Info("Created subscription entry", "key", key)
	}

	r.nextID++
	slot := &handlerSlot[T]{id: r.nextID, handler: handler}
	slot.active.Store(true)
	e.handlers = append(e.handlers, slot)
	registryHandlers.Inc()

	r.log.V(2).Info("Registered handler", "key", key, "handler", slot.id, "refCount", len(e.handlers))

	var once sync.Once
	return slot.id, func() {
		once.Do(func() { r.Unregister(key, slot.id) })
	}
}

// Unregister removes the handler from the entry of key. When the last handler
// is removed the live subscription, if any, is cancelled and the entry is
// destroyed. Unknown keys and handlers are ignored. Once Unregister returns,
// the handler receives no further callbacks.
func (r *Registry[T]) Unregister(key watchkey.Key, id HandlerID) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return
	}

	idx := -1
	for i, slot := range e.handlers {
		if slot.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}

	e.handlers[idx].active.Store(false)
	e.handlers = append(e.handlers[:idx], e.handlers[idx+1:]...)
	registryHandlers.Dec()
	r.log.V(2).Info("Unregistered handler", "key", key, "handler", id, "refCount", len(e.handlers))

	if len(e.handlers) > 0 {
		r.mu.Unlock()
		return
	}

	delete(r.entries, key)
	sub, cancel := r.closeEntryLocked(e)
	r.mu.Unlock()

	r.teardown(e, sub, cancel)
}

// Start opens the transport subscription of key, continuing from
// initialVersion. It is a no-op when the entry does not exist or already has
// a live subscription. When another caller is opening the subscription, Start
// waits for that attempt and, if it failed, tries again itself. Callers must
// never pass a version older than one they already observed.
func (r *Registry[T]) Start(key watchkey.Key, initialVersion string) error {
	if initialVersion == "" {
		return ErrNoInitialVersion
	}

	r.mu.Lock()
	var e *entry[T]
	for {
		cur, ok := r.entries[key]
		if !ok || cur.sub != nil {
			r.mu.Unlock()
			return nil
		}
		if !cur.starting {
			e = cur
			break
		}
		done := cur.startDone
		r.mu.Unlock()
		<-done
		r.mu.Lock()
	}
	e.starting = true
	e.startDone = make(chan struct{})
	e.lost = false
	e.generation++
	generation := e.generation
	req := e.params.Request
	req.FromVersion = initialVersion
	ctx, cancel := context.WithCancel(r.ctx)
	r.tracker.InitState(key)
	r.mu.Unlock()

	// The transport is called without holding the registry lock: opening a
	// stream may block and handlers may re-enter the registry.
	sub, err := r.transport.Subscribe(ctx, req, r.callbacks(e, generation))

	r.mu.Lock()
	e.starting = false
	// Waiters are released only after the outcome is recorded.
	done := e.startDone
	defer close(done)
	if err != nil {
		r.tracker.RecordError(key, err)
		r.mu.Unlock()
		cancel()
		registrySubscribeTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to subscribe to %s from version %s: %w", key, initialVersion, err)
	}
	registrySubscribeTotal.WithLabelValues("success").Inc()

	if e.closed {
		// Every handler left while the stream was being opened.
		r.mu.Unlock()
		sub.Unsubscribe()
		cancel()
		return nil
	}
	if e.lost {
		err := fmt.Errorf("subscription to %s ended while it was being opened", key)
		r.tracker.MarkLost(key, err)
		r.mu.Unlock()
		sub.Unsubscribe()
		cancel()
		return err
	}
	e.sub = sub
	e.cancel = cancel
	registryLiveSubscriptions.Inc()
	r.tracker.MarkSynced(key)
	r.mu.Unlock()

	r.log.V(1).Info("Subscription started", "key", key, "fromVersion", initialVersion)
	return nil
}

// RefCount returns the number of handlers registered for key.
func (r *Registry[T]) RefCount(key watchkey.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return len(e.handlers)
	}
	return 0
}

// IsLive reports whether key currently has an open subscription.
func (r *Registry[T]) IsLive(key watchkey.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return ok && e.sub != nil
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// State returns the tracked health of the subscription of key.
func (r *Registry[T]) State(key watchkey.Key) (watchtracker.State, bool) {
	return r.tracker.GetState(key)
}

// StateEvents returns the channel of subscription health transitions.
func (r *Registry[T]) StateEvents() <-chan watchtracker.StateChangeEvent {
	return r.tracker.StateEvents()
}

// Shutdown cancels every subscription and destroys every entry. The registry
// must not be used afterwards.
func (r *Registry[T]) Shutdown() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[watchkey.Key]*entry[T])

	type closing struct {
		e      *entry[T]
		sub    Subscription
		cancel context.CancelFunc
	}
	toClose := make([]closing, 0, len(entries))
	for _, e := range entries {
		for _, slot := range e.handlers {
			slot.active.Store(false)
			registryHandlers.Dec()
		}
		e.handlers = nil
		sub, cancel := r.closeEntryLocked(e)
		toClose = append(toClose, closing{e: e, sub: sub, cancel: cancel})
	}
	r.mu.Unlock()

	for _, c := range toClose {
		r.teardown(c.e, c.sub, c.cancel)
	}
	r.cancel()
	r.tracker.Shutdown()
}

// closeEntryLocked marks e as destroyed and detaches its subscription. The
// caller holds r.mu and has already removed e from r.entries.
func (r *Registry[T]) closeEntryLocked(e *entry[T]) (Subscription, context.CancelFunc) {
	e.closed = true
	sub, cancel := e.sub, e.cancel
	e.sub, e.cancel = nil, nil
	registryEntries.Dec()
	if sub != nil {
		registryLiveSubscriptions.Dec()
	}
	return sub, cancel
}

// teardown releases what closeEntryLocked detached. It runs without r.mu.
func (r *Registry[T]) teardown(e *entry[T], sub Subscription, cancel context.CancelFunc) {
	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	r.tracker.MarkStopped(e.key)
	if e.params.Finalizer != nil {
		e.params.Finalizer()
	}
	r.log.V(1).Info("Subscription entry destroyed", "key", e.key, "hadSubscription", sub != nil)
}

// callbacks binds transport callbacks to one subscribe attempt of e.
func (r *Registry[T]) callbacks(e *entry[T], generation uint64) Callbacks[T] {
	return Callbacks[T]{
		OnData: func(ev Event[T]) {
			slots, ok := r.currentHandlers(e, generation)
			if !ok {
				return
			}
			registryEventsTotal.WithLabelValues(string(ev.Type)).Inc()
			for _, slot := range slots {
				// A handler unregistered mid fan-out must not see the event.
				if !slot.active.Load() || slot.handler.OnEvent == nil {
					continue
				}
				slot.handler.OnEvent(ev)
			}
		},
		OnError: func(err error) {
			slots, ok := r.currentHandlers(e, generation)
			if !ok {
				return
			}
			registryStreamErrorsTotal.Inc()
			r.tracker.RecordError(e.key, err)
			r.log.V(1).Info("Subscription reported an error", "key", e.key, "error", err.Error())
			for _, slot := range slots {
				if !slot.active.Load() || slot.handler.OnError == nil {
					continue
				}
				slot.handler.OnError(err)
			}
		},
		OnClose: func(err error) {
			r.lose(e, generation, err)
		},
	}
}

// lose detaches a subscription whose stream the transport ended on its own.
// The entry stays registered and the next Start opens a new subscription.
func (r *Registry[T]) lose(e *entry[T], generation uint64, err error) {
	r.mu.Lock()
	if e.closed || e.generation != generation {
		r.mu.Unlock()
		return
	}
	if e.starting {
		e.lost = true
		r.mu.Unlock()
		return
	}
	sub, cancel := e.sub, e.cancel
	e.sub, e.cancel = nil, nil
	if sub == nil {
		r.mu.Unlock()
		return
	}
	// Late deliveries of the ended stream are dropped.
	e.generation++
	registryLiveSubscriptions.Dec()
	r.mu.Unlock()

	sub.Unsubscribe()
	cancel()
	r.tracker.MarkLost(e.key, err)
	r.log.Info("Subscription ended, waiting for a restart", "key", e.key, "error", fmt.Sprint(err))
}

// currentHandlers returns a copy of the handlers of e, or false when the
// callback belongs to a destroyed entry or a superseded subscribe attempt.
func (r *Registry[T]) currentHandlers(e *entry[T], generation uint64) ([]*handlerSlot[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.closed || e.generation != generation {
		return nil, false
	}
	return append([]*handlerSlot[T](nil), e.handlers...), true
}
