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
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	malformedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_synchronizer_malformed_events_total",
			Help: "Total number of events dropped because the object had no name",
		},
		[]string{"kind"},
	)

	staleEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_synchronizer_stale_events_total",
			Help: "Total number of MODIFIED events rejected because a newer version was already mirrored",
		},
	)

	snapshotErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_synchronizer_snapshot_errors_total",
			Help: "Total number of failed snapshot fetches",
		},
		[]string{"kind"},
	)
)

const (
	kindItem = "item"
	kindList = "list"
)

func init() {
	metrics.Registry.MustRegister(
		malformedEventsTotal,
		staleEventsTotal,
		snapshotErrorsTotal,
	)
}
