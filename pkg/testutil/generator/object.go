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

package generator

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ConfigMaps is the resource most tests watch.
var ConfigMaps = schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}

// ObjectOption is a functional option for an unstructured object
type ObjectOption func(*unstructured.Unstructured)

// NewObject creates a ConfigMap shaped unstructured object with the given
// identity and options
func NewObject(namespace, name, resourceVersion string, opts ...ObjectOption) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetAPIVersion("v1")
	u.SetKind("ConfigMap")
	u.SetNamespace(namespace)
	u.SetName(name)
	u.SetResourceVersion(resourceVersion)

	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithLabels sets the labels of the object
func WithLabels(labels map[string]string) ObjectOption {
	return func(u *unstructured.Unstructured) {
		u.SetLabels(labels)
	}
}

// WithData sets the ConfigMap data of the object
func WithData(data map[string]string) ObjectOption {
	return func(u *unstructured.Unstructured) {
		m := make(map[string]interface{}, len(data))
		for k, v := range data {
			m[k] = v
		}
		u.Object["data"] = m
	}
}

// NewList creates an UnstructuredList carrying a collection resourceVersion
func NewList(resourceVersion string, items ...*unstructured.Unstructured) *unstructured.UnstructuredList {
	l := &unstructured.UnstructuredList{}
	l.SetAPIVersion("v1")
	l.SetKind("ConfigMapList")
	l.SetResourceVersion(resourceVersion)
	for _, it := range items {
		l.Items = append(l.Items, *it)
	}
	return l
}
