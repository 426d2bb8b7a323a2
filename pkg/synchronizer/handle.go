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
	"sync"
	"sync/atomic"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// WatchOption configures a watch handle.
type WatchOption func(*watchOptions)

type watchOptions struct {
	notify func()
}

// WithNotify registers fn to be called after every change observed by the
// watch: applied events and errors. fn runs on the delivery goroutine and
// must not block.
func WithNotify(fn func()) WatchOption {
	return func(o *watchOptions) {
		o.notify = fn
	}
}

type liveness interface {
	IsLive(key watchkey.Key) bool
}

// handle is the part of ItemWatch and ListWatch that does not depend on what
// is being watched.
type handle struct {
	key      watchkey.Key
	registry liveness
	release  func()
	notifyFn func()
	changed  chan struct{}

	mu      sync.Mutex
	lastErr error
	done    atomic.Bool
}

func newHandle(key watchkey.Key, registry liveness, opts []WatchOption) *handle {
	var o watchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &handle{
		key:      key,
		registry: registry,
		notifyFn: o.notify,
		changed:  make(chan struct{}, 1),
	}
}

// Key returns the watch key shared by every consumer of the same target.
func (h *handle) Key() watchkey.Key {
	return h.key
}

// IsReady reports whether the snapshot is loaded and the subscription is
// live.
func (h *handle) IsReady() bool {
	return !h.done.Load() && h.registry.IsLive(h.key)
}

// LastError returns the most recent stream error, if any. It is cleared once
// the stream delivers a change again. The current view keeps serving the last
// known good state regardless.
func (h *handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Changed returns a channel that receives after the view changed. Signals
// are coalesced: a consumer that falls behind sees one pending signal.
func (h *handle) Changed() <-chan struct{} {
	return h.changed
}

// Unwatch releases the watch. It is safe to call more than once.
func (h *handle) Unwatch() {
	if h.done.CompareAndSwap(false, true) && h.release != nil {
		h.release()
	}
}

func (h *handle) setError(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
	h.notify()
}

func (h *handle) clearError() {
	h.mu.Lock()
	h.lastErr = nil
	h.mu.Unlock()
}

func (h *handle) notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
	if h.notifyFn != nil {
		h.notifyFn()
	}
}
