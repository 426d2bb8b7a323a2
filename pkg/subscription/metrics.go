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

package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

func init() {
	metrics.Registry.MustRegister(
		registryEntries,
		registryLiveSubscriptions,
		registryHandlers,
		registrySubscribeTotal,
		registryEventsTotal,
		registryStreamErrorsTotal,
	)
}

var (
	registryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_registry_entries",
			Help: "Number of watch keys with at least one registered handler",
		},
	)
	registryLiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_registry_live_subscriptions",
			Help: "Number of open transport subscriptions",
		},
	)
	registryHandlers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_registry_handlers",
			Help: "Number of registered handlers across all watch keys",
		},
	)
	registrySubscribeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_registry_subscribe_total",
			Help: "Total number of transport subscribe calls by result",
		},
		[]string{"result"},
	)
	registryEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_registry_events_total",
			Help: "Total number of events fanned out to handlers by event type",
		},
		[]string{"type"},
	)
	registryStreamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_registry_stream_errors_total",
			Help: "Total number of transport errors reported by live subscriptions",
		},
	)
)
