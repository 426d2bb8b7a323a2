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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

func init() {
	metrics.Registry.MustRegister(
		trackedKeys,
		trackedKeysByStatus,
		trackerErrorsTotal,
		trackerRecoveriesTotal,
		trackerEventsDroppedTotal,
	)
}

var (
	trackedKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_tracker_keys",
			Help: "Number of watch keys currently tracked",
		},
	)
	trackedKeysByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watch_tracker_keys_by_status",
			Help: "Number of tracked watch keys by status",
		},
		[]string{"status"},
	)
	trackerErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_tracker_errors_total",
			Help: "Total number of subscription errors recorded",
		},
	)
	trackerRecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_tracker_recoveries_total",
			Help: "Total number of recoveries from a degraded subscription",
		},
	)
	trackerEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_tracker_events_dropped_total",
			Help: "Total number of state change events dropped due to a full buffer",
		},
	)
)
