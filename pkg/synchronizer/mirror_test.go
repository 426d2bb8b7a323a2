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
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/testutil/generator"
)

type obj = *unstructured.Unstructured

func event(t subscription.EventType, name, rv string) subscription.Event[obj] {
	return subscription.Event[obj]{Type: t, Object: generator.NewObject("ns", name, rv)}
}

func names(m *Mirror[obj]) []string {
	out := []string{}
	for _, it := range m.Items() {
		out = append(out, it.GetName()+"@"+it.GetResourceVersion())
	}
	return out
}

func TestMirror_ApplyTable(t *testing.T) {
	tests := []struct {
		name        string
		initial     []obj
		initialRV   string
		event       subscription.Event[obj]
		wantChanged bool
		wantItems   []string
		wantRV      string
	}{
		{
			name:        "added inserts",
			initialRV:   "10",
			event:       event(subscription.EventAdded, "a", "11"),
			wantChanged: true,
			wantItems:   []string{"a@11"},
			wantRV:      "11",
		},
		{
			name:        "added overwrites regardless of version",
			initial:     []obj{generator.NewObject("ns", "a", "20")},
			initialRV:   "20",
			event:       event(subscription.EventAdded, "a", "15"),
			wantChanged: true,
			wantItems:   []string{"a@15"},
			wantRV:      "20",
		},
		{
			name:        "modified inserts absent item",
			initialRV:   "10",
			event:       event(subscription.EventModified, "b", "12"),
			wantChanged: true,
			wantItems:   []string{"b@12"},
			wantRV:      "12",
		},
		{
			name:        "modified with newer version replaces",
			initial:     []obj{generator.NewObject("ns", "a", "5")},
			initialRV:   "5",
			event:       event(subscription.EventModified, "a", "6"),
			wantChanged: true,
			wantItems:   []string{"a@6"},
			wantRV:      "6",
		},
		{
			name:        "modified with equal version replaces",
			initial:     []obj{generator.NewObject("ns", "a", "5")},
			initialRV:   "5",
			event:       event(subscription.EventModified, "a", "5"),
			wantChanged: true,
			wantItems:   []string{"a@5"},
			wantRV:      "5",
		},
		{
			name:        "modified with older version is ignored",
			initial:     []obj{generator.NewObject("ns", "a", "5")},
			initialRV:   "5",
			event:       event(subscription.EventModified, "a", "3"),
			wantChanged: false,
			wantItems:   []string{"a@5"},
			wantRV:      "5",
		},
		{
			name:        "modified with unparseable version fails open",
			initial:     []obj{generator.NewObject("ns", "a", "5")},
			initialRV:   "5",
			event:       event(subscription.EventModified, "a", "abc"),
			wantChanged: true,
			wantItems:   []string{"a@abc"},
			wantRV:      "abc",
		},
		{
			name:        "modified over unparseable cached version fails open",
			initial:     []obj{generator.NewObject("ns", "a", "xyz")},
			initialRV:   "xyz",
			event:       event(subscription.EventModified, "a", "1"),
			wantChanged: true,
			wantItems:   []string{"a@1"},
			wantRV:      "1",
		},
		{
			name:        "deleted removes",
			initial:     []obj{generator.NewObject("ns", "a", "5"), generator.NewObject("ns", "b", "6")},
			initialRV:   "6",
			event:       event(subscription.EventDeleted, "a", "7"),
			wantChanged: true,
			wantItems:   []string{"b@6"},
			wantRV:      "7",
		},
		{
			name:        "deleted absent is a no-op",
			initial:     []obj{generator.NewObject("ns", "a", "5")},
			initialRV:   "5",
			event:       event(subscription.EventDeleted, "zzz", "9"),
			wantChanged: false,
			wantItems:   []string{"a@5"},
			wantRV:      "5",
		},
		{
			name:        "error never mutates",
			initial:     []obj{generator.NewObject("ns", "a", "5")},
			initialRV:   "5",
			event:       subscription.Event[obj]{Type: subscription.EventError, Err: fmt.Errorf("boom")},
			wantChanged: false,
			wantItems:   []string{"a@5"},
			wantRV:      "5",
		},
		{
			name:        "event without version keeps collection version",
			initialRV:   "5",
			event:       event(subscription.EventAdded, "a", ""),
			wantChanged: true,
			wantItems:   []string{"a@"},
			wantRV:      "5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMirror(tt.initial, tt.initialRV)
			assert.Equal(t, tt.wantChanged, m.Apply(tt.event))
			assert.Equal(t, tt.wantItems, names(m))
			assert.Equal(t, tt.wantRV, m.ResourceVersion())
		})
	}
}

func TestMirror_StaleModifiedIsNoop(t *testing.T) {
	base := NewMirror([]obj{generator.NewObject("ns", "a", "1")}, "1")

	once := base.Clone()
	once.Apply(event(subscription.EventModified, "a", "5"))

	twice := base.Clone()
	twice.Apply(event(subscription.EventModified, "a", "5"))
	twice.Apply(event(subscription.EventModified, "a", "3"))

	assert.Equal(t, names(once), names(twice))
	assert.Equal(t, once.ResourceVersion(), twice.ResourceVersion())
}

func TestMirror_DeleteAbsentIsIdempotent(t *testing.T) {
	m := NewMirror([]obj{generator.NewObject("ns", "a", "1")}, "1")
	require.True(t, m.Apply(event(subscription.EventDeleted, "a", "2")))
	require.False(t, m.Apply(event(subscription.EventDeleted, "a", "3")))
	require.False(t, m.Apply(event(subscription.EventDeleted, "never", "4")))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "2", m.ResourceVersion())
}

func TestMirror_BatchEqualsIncremental(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []subscription.EventType{subscription.EventAdded, subscription.EventModified, subscription.EventDeleted}

	for round := 0; round < 50; round++ {
		var events []subscription.Event[obj]
		for i := 0; i < 40; i++ {
			name := "item-" + strconv.Itoa(rng.Intn(6))
			events = append(events, event(types[rng.Intn(len(types))], name, strconv.Itoa(100+i)))
		}

		batch := NewMirror[obj](nil, "")
		for _, ev := range events {
			batch.Apply(ev)
		}

		incremental := NewMirror[obj](nil, "")
		for _, ev := range events {
			next := incremental.Clone()
			if next.Apply(ev) {
				incremental = next
			}
		}

		require.Equal(t, names(batch), names(incremental), "round %d", round)
		require.Equal(t, batch.ResourceVersion(), incremental.ResourceVersion(), "round %d", round)
	}
}

func TestMirror_CloneIsIndependent(t *testing.T) {
	m := NewMirror([]obj{generator.NewObject("ns", "a", "1")}, "1")
	c := m.Clone()
	c.Apply(event(subscription.EventAdded, "b", "2"))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "1", m.ResourceVersion())
	assert.Equal(t, 2, c.Len())

	_, ok := m.Get("b")
	assert.False(t, ok)
	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", got.GetResourceVersion())
}
