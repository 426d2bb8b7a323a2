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
	"time"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// Status represents the current health of a subscription.
type Status string

const (
	// StatusSyncing indicates the subscription is being opened.
	StatusSyncing Status = "Syncing"
	// StatusSyncingError indicates the subscription failed to open.
	StatusSyncingError Status = "SyncingError"
	// StatusSynced indicates the subscription is open and healthy.
	StatusSynced Status = "Synced"
	// StatusDegraded indicates the subscription is open but the stream
	// reported errors recently.
	StatusDegraded Status = "Degraded"
	// StatusStopped indicates the subscription has been torn down.
	StatusStopped Status = "Stopped"
)

// State is the health snapshot of one watch key.
type State struct {
	Status        Status
	Synced        bool
	HasError      bool
	LastError     error
	LastErrorTime time.Time
	ErrorCount    int
}

// StateChangeEvent is emitted whenever the Status of a key changes.
type StateChangeEvent struct {
	Key      watchkey.Key
	OldState State
	NewState State
}
