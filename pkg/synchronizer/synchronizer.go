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

// Package synchronizer keeps cache entries in sync with remote resources:
// snapshot, publish to the cache, then follow the shared subscription.
package synchronizer

import (
	"github.com/samber/lo"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
)

// malformed reports whether obj lacks the identity every event must carry.
func malformed[T subscription.Object](obj T) bool {
	return lo.IsNil(obj) || obj.GetName() == ""
}
