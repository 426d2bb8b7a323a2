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

package aggregator

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/cache"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/synchronizer"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/testutil/fake"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/testutil/generator"
)

type obj = *unstructured.Unstructured

func noopLogger() logr.Logger {
	opts := zap.Options{DestWriter: io.Discard}
	return zap.New(zap.UseFlagOptions(&opts))
}

type testEnv struct {
	transport  *fake.Transport[obj]
	fetcher    *fake.Fetcher[obj]
	registry   *subscription.Registry[obj]
	aggregator *Aggregator[obj]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		transport: fake.NewTransport[obj](),
		fetcher:   fake.NewFetcher[obj](),
	}
	env.registry = subscription.NewRegistry[obj](env.transport, subscription.Config{}, noopLogger())
	t.Cleanup(env.registry.Shutdown)
	lists := synchronizer.NewListSynchronizer[obj]("c1", env.fetcher, env.registry, cache.NewMemory(), noopLogger())
	env.aggregator = New(lists, noopLogger())
	return env
}

func target() synchronizer.ListTarget {
	return synchronizer.ListTarget{Resource: generator.ConfigMaps}
}

func waitReady(t *testing.T, mw *MultiWatch[obj]) *View[obj] {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, mw.WaitForReady(ctx))
	return mw.View()
}

func streamFor(t *testing.T, tr *fake.Transport[obj], namespace string) *fake.Stream[obj] {
	t.Helper()
	for _, s := range tr.Streams() {
		if s.Request.Namespace == namespace && !s.Failed {
			return s
		}
	}
	t.Fatalf("no stream for namespace %s", namespace)
	return nil
}

func TestAggregator_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetList("ns-a", "10",
		generator.NewObject("ns-a", "item1", "9"),
		generator.NewObject("ns-a", "item2", "10"),
	)
	releaseB := env.fetcher.HoldList("ns-b")

	mw := env.aggregator.Watch(t.Context(), target(), []string{"ns-a", "ns-b"})
	defer mw.Unwatch()

	require.Eventually(t, func() bool {
		return len(mw.View().Items) == 2
	}, 5*time.Second, 10*time.Millisecond)

	v := mw.View()
	assert.False(t, v.Ready, "ns-b is still pending")
	assert.True(t, v.Loading)
	assert.Empty(t, v.Errors)

	boom := errors.New("forbidden")
	env.fetcher.FailList("ns-b", boom)
	releaseB()

	v = waitReady(t, mw)
	assert.True(t, v.Ready)
	assert.False(t, v.Loading)

	require.Len(t, v.Errors, 1)
	var perr *PartitionError
	require.ErrorAs(t, v.Errors[0], &perr)
	assert.Equal(t, "ns-b", perr.Partition)
	assert.ErrorIs(t, v.Errors[0], boom)

	assert.Len(t, v.Merged, 2)
	assert.Contains(t, v.Merged, "ns-a/item1")
	assert.Contains(t, v.Merged, "ns-a/item2")
	require.Len(t, v.Items, 2)
	assert.Equal(t, "item1", v.Items[0].GetName())
	assert.Equal(t, "item2", v.Items[1].GetName())

	require.Contains(t, v.ByPartition, "ns-b")
	assert.Equal(t, 0, v.ByPartition["ns-b"].Len())
	assert.Equal(t, 2, v.ByPartition["ns-a"].Len())
}

func TestAggregator_SameNameInDifferentPartitions(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetList("ns-a", "1", generator.NewObject("ns-a", "shared", "1"))
	env.fetcher.SetList("ns-b", "2", generator.NewObject("ns-b", "shared", "2"))

	mw := env.aggregator.Watch(t.Context(), target(), []string{"ns-b", "ns-a", "ns-b"})
	defer mw.Unwatch()

	v := waitReady(t, mw)
	assert.Empty(t, v.Errors)
	assert.Len(t, v.ByPartition, 2)
	assert.Len(t, v.Merged, 2)
	assert.Equal(t, "ns-a", v.Merged["ns-a/shared"].GetNamespace())
	assert.Equal(t, "ns-b", v.Merged["ns-b/shared"].GetNamespace())

	require.Len(t, v.Items, 2)
	assert.Equal(t, "ns-b", v.Items[0].GetNamespace(), "items follow partition order")
	assert.Equal(t, 2, env.transport.Calls())
}

func TestAggregator_FollowsLiveChanges(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetList("ns-a", "1", generator.NewObject("ns-a", "a", "1"))
	env.fetcher.SetList("ns-b", "1")

	mw := env.aggregator.Watch(t.Context(), target(), []string{"ns-a", "ns-b"})
	defer mw.Unwatch()
	waitReady(t, mw)

	streamFor(t, env.transport, "ns-b").Added(generator.NewObject("ns-b", "b", "2"))
	v := mw.View()
	assert.Len(t, v.Items, 2)
	assert.Contains(t, v.Merged, "ns-b/b")

	streamFor(t, env.transport, "ns-a").Deleted(generator.NewObject("ns-a", "a", "3"))
	v = mw.View()
	assert.Len(t, v.Items, 1)
	assert.NotContains(t, v.Merged, "ns-a/a")

	streamFor(t, env.transport, "ns-a").Fail(errors.New("stream reset"))
	v = mw.View()
	require.Len(t, v.Errors, 1)
	var perr *PartitionError
	require.ErrorAs(t, v.Errors[0], &perr)
	assert.Equal(t, "ns-a", perr.Partition)
	assert.Len(t, v.Items, 1, "stream errors keep the last known data")

	streamFor(t, env.transport, "ns-a").Added(generator.NewObject("ns-a", "c", "4"))
	v = mw.View()
	assert.Empty(t, v.Errors, "the partition recovered")
	assert.Len(t, v.Items, 2)
}

func TestAggregator_ChangedSignals(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetList("ns-a", "1")

	mw := env.aggregator.Watch(t.Context(), target(), []string{"ns-a"})
	defer mw.Unwatch()
	waitReady(t, mw)

	select {
	case <-mw.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change signal after loading")
	}

	streamFor(t, env.transport, "ns-a").Added(generator.NewObject("ns-a", "x", "2"))
	select {
	case <-mw.Changed():
	default:
		t.Fatal("no change signal after event")
	}
}

func TestAggregator_UnwatchReleasesPartitions(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.SetList("ns-a", "1")
	releaseB := env.fetcher.HoldList("ns-b")

	mw := env.aggregator.Watch(t.Context(), target(), []string{"ns-a", "ns-b"})
	require.Eventually(t, func() bool {
		return env.registry.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	mw.Unwatch()
	mw.Unwatch()
	releaseB()

	require.Eventually(t, func() bool {
		if env.registry.Len() != 0 {
			return false
		}
		for _, s := range env.transport.Streams() {
			if !s.Failed && !s.Stopped() {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAggregator_NoPartitions(t *testing.T) {
	env := newTestEnv(t)
	mw := env.aggregator.Watch(t.Context(), target(), nil)
	defer mw.Unwatch()

	v := waitReady(t, mw)
	assert.True(t, v.Ready)
	assert.Empty(t, v.Items)
	assert.Empty(t, v.Errors)
}
