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

// Package source implements the snapshot and streaming collaborators of the
// watch layer on top of the client-go dynamic client.
package source

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/KubeRocketCI/krci-portal-sub004/pkg/subscription"
)

// List is a collection snapshot: the items and the collection-level
// resourceVersion a watch can continue from.
type List[T subscription.Object] struct {
	Items           []T
	ResourceVersion string
}

// Fetcher takes snapshots of remote resources.
type Fetcher[T subscription.Object] interface {
	// Get returns a single named resource, including its resourceVersion.
	Get(ctx context.Context, resource schema.GroupVersionResource, namespace, name string) (T, error)
	// List returns the collection matching labelSelector (empty means
	// everything) together with its resourceVersion.
	List(ctx context.Context, resource schema.GroupVersionResource, namespace, labelSelector string) (List[T], error)
}

// Converter turns a dynamic client object into the watched type.
type Converter[T subscription.Object] func(*unstructured.Unstructured) (T, error)

// Unstructured returns the identity converter.
func Unstructured() Converter[*unstructured.Unstructured] {
	return func(u *unstructured.Unstructured) (*unstructured.Unstructured, error) {
		return u, nil
	}
}

// Typed returns a converter into a typed API object such as *corev1.ConfigMap.
func Typed[T any, PT interface {
	*T
	subscription.Object
}]() Converter[PT] {
	return func(u *unstructured.Unstructured) (PT, error) {
		obj := PT(new(T))
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.UnstructuredContent(), obj); err != nil {
			var zero PT
			return zero, fmt.Errorf("failed to convert %s %s/%s: %w",
				u.GetKind(), u.GetNamespace(), u.GetName(), err)
		}
		return obj, nil
	}
}
