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

// Package watchkey derives the identity of a watch target. Two requests for
// the same cluster, namespace, resource, selector and name always produce the
// same Key, regardless of the order in which selector labels were supplied.
package watchkey

import (
	"net/url"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Key is the canonical identity of "what is being watched". It is safe to use
// as a map key, a cache key and a log value.
type Key string

// String returns the canonical form of the key.
func (k Key) String() string {
	return string(k)
}

// Build returns the Key for the given watch target. selector and name are
// optional; a nil and an empty selector yield the same Key.
func Build(
	cluster, namespace string,
	resource schema.GroupVersionResource,
	selector map[string]string,
	name string,
) Key {
	v := url.Values{}
	v.Set("cluster", cluster)
	v.Set("namespace", namespace)
	v.Set("resource", resource.String())
	// labels.Set.String sorts by label key.
	if s := labels.Set(selector).String(); s != "" {
		v.Set("labelSelector", s)
	}
	if name != "" {
		v.Set("name", name)
	}
	// Encode sorts by parameter name, which makes the whole key deterministic.
	return Key(v.Encode())
}

// ForItem returns the Key of a single named resource.
func ForItem(cluster, namespace string, resource schema.GroupVersionResource, name string) Key {
	return Build(cluster, namespace, resource, nil, name)
}

// ForList returns the Key of a resource collection within one namespace.
func ForList(cluster, namespace string, resource schema.GroupVersionResource, selector map[string]string) Key {
	return Build(cluster, namespace, resource, selector, "")
}
