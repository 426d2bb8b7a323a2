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
	"io"
	"testing"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/cache"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/testutil/fake"
)

func noopLogger() logr.Logger {
	opts := zap.Options{DestWriter: io.Discard}
	return zap.New(zap.UseFlagOptions(&opts))
}

type testEnv struct {
	transport *fake.Transport[obj]
	fetcher   *fake.Fetcher[obj]
	registry  *subscription.Registry[obj]
	cache     cache.Cache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		transport: fake.NewTransport[obj](),
		fetcher:   fake.NewFetcher[obj](),
		cache:     cache.NewMemory(),
	}
	env.registry = subscription.NewRegistry[obj](env.transport, subscription.Config{}, noopLogger())
	t.Cleanup(env.registry.Shutdown)
	return env
}

func (e *testEnv) items() *ItemSynchronizer[obj] {
	return NewItemSynchronizer[obj]("c1", e.fetcher, e.registry, e.cache, noopLogger())
}

func (e *testEnv) lists() *ListSynchronizer[obj] {
	return NewListSynchronizer[obj]("c1", e.fetcher, e.registry, e.cache, noopLogger())
}

func signaled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
