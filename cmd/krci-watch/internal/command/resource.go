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

package command

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// parseResource parses RESOURCE in kubectl's resource.version.group form.
// Core resources may omit the version, in which case v1 is assumed.
func parseResource(arg string) (schema.GroupVersionResource, error) {
	gvr, gr := schema.ParseResourceArg(arg)
	if gvr != nil {
		return *gvr, nil
	}
	if gr.Resource == "" {
		return schema.GroupVersionResource{}, fmt.Errorf("resource must not be empty")
	}
	if gr.Group != "" {
		return schema.GroupVersionResource{}, fmt.Errorf(
			"resource %q is ambiguous, use the RESOURCE.VERSION.GROUP form", arg)
	}
	return schema.GroupVersionResource{Version: "v1", Resource: gr.Resource}, nil
}
