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

package watchtracker

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// Tracker records the health of every live subscription, keyed by watch key.
// Entries are independent: each one carries its own mutex and recovery timer,
// so updates for different keys never contend.
type Tracker struct {
	states sync.Map // map[watchkey.Key]*stateEntry

	// stateEventsCh receives state transitions. Sends never block; when the
	// buffer is full the event is dropped.
	stateEventsCh chan StateChangeEvent

	// recoveryTimeout is how long a key has to stay error free before it
	// leaves the degraded state.
	recoveryTimeout time.Duration

	clock clock.WithDelayedExecution
}

type stateEntry struct {
	mu            sync.Mutex
	state         State
	recoveryTimer clock.Timer
}

// NewTracker creates a tracker backed by the real clock.
func NewTracker(recoveryTimeout time.Duration, bufferSize int) *Tracker {
	return NewTrackerWithClock(recoveryTimeout, bufferSize, clock.RealClock{})
}

// NewTrackerWithClock creates a tracker with a custom clock (for testing).
func NewTrackerWithClock(recoveryTimeout time.Duration, bufferSize int, clk clock.WithDelayedExecution) *Tracker {
	return &Tracker{
		stateEventsCh:   make(chan StateChangeEvent, bufferSize),
		recoveryTimeout: recoveryTimeout,
		clock:           clk,
	}
}

// GetState returns the state of key and whether it is tracked.
func (t *Tracker) GetState(key watchkey.Key) (State, bool) {
	value, exists := t.states.Load(key)
	if !exists {
		return State{}, false
	}

	entry := value.(*stateEntry)
	entry.mu.Lock()
	state := entry.state
	entry.mu.Unlock()

	return state, true
}

// StateEvents returns the channel of state transitions.
func (t *Tracker) StateEvents() <-chan StateChangeEvent {
	return t.stateEventsCh
}

// InitState starts tracking key in the Syncing state. A synced key is left
// untouched; a key whose subscription failed or was lost goes back to
// Syncing.
func (t *Tracker) InitState(key watchkey.Key) {
	value, loaded := t.states.LoadOrStore(key, &stateEntry{
		state: State{Status: StatusSyncing},
	})
	if !loaded {
		trackedKeys.Inc()
		trackedKeysByStatus.WithLabelValues(string(StatusSyncing)).Inc()
		return
	}

	entry := value.(*stateEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.state.Synced {
		return
	}
	if entry.recoveryTimer != nil {
		entry.recoveryTimer.Stop()
		entry.recoveryTimer = nil
	}
	oldState := entry.state
	entry.state.HasError = false
	entry.state.Status = StatusSyncing
	t.transitionLocked(key, oldState, entry.state)
}

// MarkSynced records that the subscription for key is open.
func (t *Tracker) MarkSynced(key watchkey.Key) {
	t.update(key, func(s *State) {
		s.Synced = true
		if s.HasError {
			s.Status = StatusDegraded
		} else {
			s.Status = StatusSynced
		}
	})
}

// RecordError records a stream or subscribe error for key and (re)arms the
// recovery timer.
func (t *Tracker) RecordError(key watchkey.Key, err error) {
	value, exists := t.states.Load(key)
	if !exists {
		return
	}
	entry := value.(*stateEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	oldState := entry.state
	entry.state.HasError = true
	entry.state.LastError = err
	entry.state.LastErrorTime = t.clock.Now()
	entry.state.ErrorCount++
	if entry.state.Synced {
		entry.state.Status = StatusDegraded
	} else {
		entry.state.Status = StatusSyncingError
	}

	if entry.recoveryTimer != nil {
		entry.recoveryTimer.Stop()
	}
	entry.recoveryTimer = t.clock.AfterFunc(t.recoveryTimeout, func() {
		t.checkRecovery(key)
	})

	trackerErrorsTotal.Inc()
	t.transitionLocked(key, oldState, entry.state)
}

func (t *Tracker) checkRecovery(key watchkey.Key) {
	value, exists := t.states.Load(key)
	if !exists {
		return
	}
	entry := value.(*stateEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// A nil timer means the entry was stopped after this callback was armed.
	if entry.recoveryTimer == nil {
		return
	}
	entry.recoveryTimer = nil

	oldState := entry.state
	entry.state.HasError = false
	entry.state.ErrorCount = 0
	if entry.state.Synced {
		entry.state.Status = StatusSynced
	} else {
		entry.state.Status = StatusSyncing
	}

	if oldState.Status != entry.state.Status {
		trackerRecoveriesTotal.Inc()
	}
	t.transitionLocked(key, oldState, entry.state)
}

// MarkLost records that the subscription for key ended without being torn
// down. The key stays in SyncingError until it is started again.
func (t *Tracker) MarkLost(key watchkey.Key, err error) {
	value, exists := t.states.Load(key)
	if !exists {
		return
	}
	entry := value.(*stateEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.recoveryTimer != nil {
		entry.recoveryTimer.Stop()
		entry.recoveryTimer = nil
	}
	oldState := entry.state
	entry.state.Synced = false
	entry.state.HasError = true
	if err != nil {
		entry.state.LastError = err
		entry.state.LastErrorTime = t.clock.Now()
	}
	entry.state.Status = StatusSyncingError
	t.transitionLocked(key, oldState, entry.state)
}

// MarkStopped removes key from tracking and emits a Stopped transition.
func (t *Tracker) MarkStopped(key watchkey.Key) {
	value, exists := t.states.LoadAndDelete(key)
	if !exists {
		return
	}
	entry := value.(*stateEntry)

	entry.mu.Lock()
	if entry.recoveryTimer != nil {
		entry.recoveryTimer.Stop()
		entry.recoveryTimer = nil
	}
	oldState := entry.state
	entry.mu.Unlock()

	trackedKeys.Dec()
	trackedKeysByStatus.WithLabelValues(string(oldState.Status)).Dec()

	t.notify(key, oldState, State{Status: StatusStopped})
}

// Shutdown stops every recovery timer. The tracker must not be used after.
func (t *Tracker) Shutdown() {
	t.states.Range(func(_, value any) bool {
		entry := value.(*stateEntry)
		entry.mu.Lock()
		if entry.recoveryTimer != nil {
			entry.recoveryTimer.Stop()
			entry.recoveryTimer = nil
		}
		entry.mu.Unlock()
		return true
	})
}

func (t *Tracker) update(key watchkey.Key, mutate func(*State)) {
	value, exists := t.states.Load(key)
	if !exists {
		return
	}
	entry := value.(*stateEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	oldState := entry.state
	mutate(&entry.state)
	t.transitionLocked(key, oldState, entry.state)
}

// transitionLocked updates the status gauges and emits an event when the
// status changed. The caller holds the entry mutex.
func (t *Tracker) transitionLocked(key watchkey.Key, oldState, newState State) {
	if oldState.Status == newState.Status {
		return
	}
	trackedKeysByStatus.WithLabelValues(string(oldState.Status)).Dec()
	trackedKeysByStatus.WithLabelValues(string(newState.Status)).Inc()
	t.notify(key, oldState, newState)
}

func (t *Tracker) notify(key watchkey.Key, oldState, newState State) {
	select {
	case t.stateEventsCh <- StateChangeEvent{Key: key, OldState: oldState, NewState: newState}:
	default:
		trackerEventsDroppedTotal.Inc()
	}
}
