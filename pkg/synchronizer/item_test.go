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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/testutil/generator"
)

func itemTarget(name string) ItemTarget {
	return ItemTarget{Resource: generator.ConfigMaps, Namespace: "ns1", Name: name}
}

func TestItemSynchronizer_FollowsChanges(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetItem(generator.NewObject("ns1", "cm-1", "5"))

	w, err := env.items().Watch(t.Context(), itemTarget("cm-1"))
	require.NoError(t, err)
	defer w.Unwatch()

	assert.True(t, w.IsReady())
	got, ok := w.Current()
	require.True(t, ok)
	assert.Equal(t, "5", got.GetResourceVersion())

	require.Equal(t, 1, env.transport.Calls())
	s := env.transport.Last()
	assert.Equal(t, "cm-1", s.Request.Name)
	assert.Equal(t, "5", s.Request.FromVersion)

	s.Modified(generator.NewObject("ns1", "cm-1", "6"))
	assert.True(t, signaled(w.Changed()))
	got, ok = w.Current()
	require.True(t, ok)
	assert.Equal(t, "6", got.GetResourceVersion())

	s.Deleted(generator.NewObject("ns1", "cm-1", "7"))
	_, ok = w.Current()
	assert.False(t, ok)

	s.Added(generator.NewObject("ns1", "cm-1", "8"))
	got, ok = w.Current()
	require.True(t, ok)
	assert.Equal(t, "8", got.GetResourceVersion())
}

func TestItemSynchronizer_SnapshotFailure(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.items().Watch(t.Context(), itemTarget("missing"))
	require.Error(t, err)

	var fetchErr *SnapshotFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, apierrors.IsNotFound(err))
	assert.Equal(t, 0, env.registry.Len())
	assert.Equal(t, 0, env.transport.Calls())
	assert.Empty(t, env.cache.Keys())
}

func TestItemSynchronizer_MalformedSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetItem(generator.NewObject("ns1", "", "5"))

	_, err := env.items().Watch(t.Context(), itemTarget(""))
	require.ErrorIs(t, err, ErrMalformedObject)
	assert.Equal(t, 0, env.registry.Len())
}

func TestItemSynchronizer_DropsMalformedEvents(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetItem(generator.NewObject("ns1", "cm-1", "5"))

	w, err := env.items().Watch(t.Context(), itemTarget("cm-1"))
	require.NoError(t, err)
	defer w.Unwatch()

	env.transport.Last().Modified(generator.NewObject("ns1", "", "9"))
	env.transport.Last().Modified(nil)

	got, ok := w.Current()
	require.True(t, ok)
	assert.Equal(t, "cm-1", got.GetName())
	assert.Equal(t, "5", got.GetResourceVersion())
	assert.False(t, signaled(w.Changed()))
}

func TestItemSynchronizer_StreamErrorsKeepLastKnownState(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetItem(generator.NewObject("ns1", "cm-1", "5"))

	w, err := env.items().Watch(t.Context(), itemTarget("cm-1"))
	require.NoError(t, err)
	defer w.Unwatch()

	boom := errors.New("stream reset")
	env.transport.Last().Fail(boom)
	assert.ErrorIs(t, w.LastError(), boom)

	status := apierrors.NewInternalError(errors.New("etcd unavailable"))
	env.transport.Last().StatusError(status)
	assert.True(t, apierrors.IsInternalError(w.LastError()))

	got, ok := w.Current()
	require.True(t, ok)
	assert.Equal(t, "5", got.GetResourceVersion())
	assert.True(t, w.IsReady())

	env.transport.Last().Modified(generator.NewObject("ns1", "cm-1", "6"))
	assert.NoError(t, w.LastError(), "a delivered change clears the error")
}

func TestItemSynchronizer_SharedByConsumers(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetItem(generator.NewObject("ns1", "cm-1", "5"))
	items := env.items()

	first, err := items.Watch(t.Context(), itemTarget("cm-1"))
	require.NoError(t, err)
	second, err := items.Watch(t.Context(), itemTarget("cm-1"))
	require.NoError(t, err)

	assert.Equal(t, first.Key(), second.Key())
	assert.Equal(t, 1, env.transport.Calls())
	assert.Equal(t, 2, env.registry.RefCount(first.Key()))

	env.transport.Last().Modified(generator.NewObject("ns1", "cm-1", "6"))
	assert.True(t, signaled(first.Changed()))
	assert.True(t, signaled(second.Changed()))

	first.Unwatch()
	first.Unwatch()
	got, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, "6", got.GetResourceVersion())
	assert.False(t, env.transport.Last().Stopped())

	second.Unwatch()
	assert.True(t, env.transport.Last().Stopped())
	assert.Empty(t, env.cache.Keys())
	assert.False(t, second.IsReady())
}

func TestItemSynchronizer_SubscribeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetItem(generator.NewObject("ns1", "cm-1", "5"))
	env.transport.FailWith(errors.New("connection refused"))

	_, err := env.items().Watch(t.Context(), itemTarget("cm-1"))
	require.Error(t, err)
	assert.Equal(t, 0, env.registry.Len())
	assert.Empty(t, env.cache.Keys())
}
