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

// Package watcher is the entry point of the watch layer: one Manager per
// cluster shares a single subscription registry between item, list and
// multi-namespace watches.
package watcher

import (
	"context"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/aggregator"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/cache"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/source"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription/watchtracker"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/synchronizer"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watchkey"
)

type (
	// Object is the resource type served by a Manager.
	Object = *unstructured.Unstructured

	ItemWatch  = synchronizer.ItemWatch[Object]
	ListWatch  = synchronizer.ListWatch[Object]
	MultiWatch = aggregator.MultiWatch[Object]
)

// Config configures a Manager.
type Config struct {
	Registry subscription.Config
}

// Manager serves watches of one cluster.
type Manager struct {
	registry   *subscription.Registry[Object]
	items      *synchronizer.ItemSynchronizer[Object]
	lists      *synchronizer.ListSynchronizer[Object]
	aggregator *aggregator.Aggregator[Object]
	log        logr.Logger
}

// New creates a Manager reading cluster through client and publishing into c.
func New(cluster string, client dynamic.Interface, c cache.Cache, cfg Config, log logr.Logger) *Manager {
	d := source.NewDynamic(client, source.Unstructured())
	return NewWithSource(cluster, d, d, c, cfg, log)
}

// NewWithSource creates a Manager on explicit collaborators.
func NewWithSource(
	cluster string,
	fetcher source.Fetcher[Object],
	transport subscription.Transport[Object],
	c cache.Cache,
	cfg Config,
	log logr.Logger,
) *Manager {
	log = log.WithName("watcher").WithValues("cluster", cluster)
	registry := subscription.NewRegistry(transport, cfg.Registry, log)
	lists := synchronizer.NewListSynchronizer(cluster, fetcher, registry, c, log)
	return &Manager{
		registry:   registry,
		items:      synchronizer.NewItemSynchronizer(cluster, fetcher, registry, c, log),
		lists:      lists,
		aggregator: aggregator.New(lists, log),
		log:        log,
	}
}

// WatchItem watches a single named resource.
func (m *Manager) WatchItem(ctx context.Context, target synchronizer.ItemTarget) (*ItemWatch, error) {
	return m.items.Watch(ctx, target)
}

// WatchList watches a collection in one namespace.
func (m *Manager) WatchList(ctx context.Context, target synchronizer.ListTarget) (*ListWatch, error) {
	return m.lists.Watch(ctx, target)
}

// WatchListAcrossPartitions watches a collection in several namespaces and
// merges the results. It never fails: per namespace errors are reported in
// the view.
func (m *Manager) WatchListAcrossPartitions(ctx context.Context, target synchronizer.ListTarget, namespaces []string) *MultiWatch {
	return m.aggregator.Watch(ctx, target, namespaces)
}

// State returns the health of the subscription behind key.
func (m *Manager) State(key watchkey.Key) (watchtracker.State, bool) {
	return m.registry.State(key)
}

// StateEvents streams subscription health transitions.
func (m *Manager) StateEvents() <-chan watchtracker.StateChangeEvent {
	return m.registry.StateEvents()
}

// Shutdown cancels every subscription. Outstanding watches stop receiving
// changes; their Unwatch remains safe to call.
func (m *Manager) Shutdown() {
	m.log.V(1).Info("Shutting down", "subscriptions", m.registry.Len())
	m.registry.Shutdown()
}
