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
	"errors"
	"fmt"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

// ErrMalformedObject is reported for objects missing their name.
var ErrMalformedObject = errors.New("object has no name")

// SnapshotFetchError is returned when the initial snapshot of a watch target
// could not be obtained. No subscription is started in that case.
type SnapshotFetchError struct {
	Key watchkey.Key
	Err error
}

func (e *SnapshotFetchError) Error() string {
	return fmt.Sprintf("failed to fetch snapshot for %s: %v", e.Key, e.Err)
}

func (e *SnapshotFetchError) Unwrap() error {
	return e.Err
}
