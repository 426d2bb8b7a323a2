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

// Package aggregator merges list watches over several partitions
// (namespaces) of the same collection into one view.
package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/samber/lo"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/synchronizer"
)

// PartitionError is the failure of one partition. It never affects the data
// of other partitions.
type PartitionError struct {
	Partition string
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %q: %v", e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// View is an immutable snapshot of a MultiWatch.
type View[T subscription.Object] struct {
	// Merged is keyed by "{partition}/{name}".
	Merged map[string]T
	// Items lists every item, in partition order and then by name.
	Items []T
	// ByPartition holds one mirror per partition. Partitions that are still
	// loading or that failed contribute an empty mirror.
	ByPartition map[string]*synchronizer.Mirror[T]
	// Ready is set once every partition finished its initial snapshot,
	// successfully or not.
	Ready bool
	// Loading is set while any partition is still fetching its snapshot.
	Loading bool
	// Errors holds a *PartitionError per failed partition and per live
	// partition whose stream last reported an error.
	Errors []error
}

// Aggregator runs one list watch per partition.
type Aggregator[T subscription.Object] struct {
	lists *synchronizer.ListSynchronizer[T]
	log   logr.Logger
}

// New creates an Aggregator on top of lists.
func New[T subscription.Object](lists *synchronizer.ListSynchronizer[T], log logr.Logger) *Aggregator[T] {
	return &Aggregator[T]{lists: lists, log: log.WithName("aggregator")}
}

type partition[T subscription.Object] struct {
	name    string
	watch   *synchronizer.ListWatch[T]
	loading bool
	err     error
}

// MultiWatch is a consumer's handle on an aggregated watch. Callers must
// Unwatch it on every exit path.
type MultiWatch[T subscription.Object] struct {
	log    logr.Logger
	cancel context.CancelFunc

	mu         sync.Mutex
	partitions []*partition[T]
	pending    int
	closed     bool
	view       *View[T]

	changed chan struct{}
	ready   chan struct{}
}

// Watch starts watching target in every partition; target.Namespace is
// ignored. It returns immediately, snapshots are fetched concurrently.
// Duplicate partitions are watched once.
func (a *Aggregator[T]) Watch(ctx context.Context, target synchronizer.ListTarget, partitions []string) *MultiWatch[T] {
	ctx, cancel := context.WithCancel(ctx)
	names := lo.Uniq(partitions)

	mw := &MultiWatch[T]{
		log:     a.log.WithValues("resource", target.Resource.String(), "partitions", names),
		cancel:  cancel,
		pending: len(names),
		changed: make(chan struct{}, 1),
		ready:   make(chan struct{}),
	}
	for _, name := range names {
		mw.partitions = append(mw.partitions, &partition[T]{name: name, loading: true})
	}

	mw.mu.Lock()
	if mw.pending == 0 {
		close(mw.ready)
	}
	mw.recomputeLocked()
	mw.mu.Unlock()

	for _, p := range mw.partitions {
		go mw.load(ctx, a.lists, target, p)
	}
	return mw
}

func (mw *MultiWatch[T]) load(ctx context.Context, lists *synchronizer.ListSynchronizer[T], target synchronizer.ListTarget, p *partition[T]) {
	target.Namespace = p.name
	w, err := lists.Watch(ctx, target, synchronizer.WithNotify(mw.refresh))

	mw.mu.Lock()
	if mw.closed {
		mw.mu.Unlock()
		if w != nil {
			// Unwatch raced with the snapshot.
			w.Unwatch()
		}
		return
	}

	p.loading = false
	if err != nil {
		p.err = err
		mw.log.Error(err, "Partition failed to load", "partition", p.name)
	} else {
		p.watch = w
		mw.log.V(1).Info("Partition loaded", "partition", p.name, "items", w.Current().Len())
	}
	mw.pending--
	if mw.pending == 0 {
		close(mw.ready)
	}
	mw.recomputeLocked()
	mw.mu.Unlock()

	mw.signal()
}

// refresh recomputes the view after a partition changed.
func (mw *MultiWatch[T]) refresh() {
	mw.mu.Lock()
	if mw.closed {
		mw.mu.Unlock()
		return
	}
	mw.recomputeLocked()
	mw.mu.Unlock()

	mw.signal()
}

func (mw *MultiWatch[T]) recomputeLocked() {
	v := &View[T]{
		Merged:      make(map[string]T),
		ByPartition: make(map[string]*synchronizer.Mirror[T], len(mw.partitions)),
		Ready:       mw.pending == 0,
		Loading:     mw.pending > 0,
	}

	for _, p := range mw.partitions {
		m := synchronizer.NewMirror[T](nil, "")
		switch {
		case p.watch != nil:
			m = p.watch.Current()
			if err := p.watch.LastError(); err != nil {
				v.Errors = append(v.Errors, &PartitionError{Partition: p.name, Err: err})
			}
		case p.err != nil:
			v.Errors = append(v.Errors, &PartitionError{Partition: p.name, Err: p.err})
		}

		v.ByPartition[p.name] = m
		for _, it := range m.Items() {
			v.Merged[p.name+"/"+it.GetName()] = it
			v.Items = append(v.Items, it)
		}
	}
	mw.view = v
}

func (mw *MultiWatch[T]) signal() {
	select {
	case mw.changed <- struct{}{}:
	default:
	}
}

// View returns the latest merged view. The returned value is never mutated.
func (mw *MultiWatch[T]) View() *View[T] {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.view
}

// Changed returns a channel that receives after the view changed. Signals
// are coalesced.
func (mw *MultiWatch[T]) Changed() <-chan struct{} {
	return mw.changed
}

// WaitForReady blocks until every partition finished loading or ctx is done.
func (mw *MultiWatch[T]) WaitForReady(ctx context.Context) error {
	select {
	case <-mw.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unwatch releases every partition. Partitions still loading release
// themselves once their snapshot completes. It is safe to call more than
// once.
func (mw *MultiWatch[T]) Unwatch() {
	mw.mu.Lock()
	if mw.closed {
		mw.mu.Unlock()
		return
	}
	mw.closed = true
	var watches []*synchronizer.ListWatch[T]
	for _, p := range mw.partitions {
		if p.watch != nil {
			watches = append(watches, p.watch)
		}
	}
	mw.mu.Unlock()

	mw.cancel()
	for _, w := range watches {
		w.Unwatch()
	}
}
