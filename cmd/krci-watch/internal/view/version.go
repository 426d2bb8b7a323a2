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

package view

import (
	"sigs.k8s.io/release-utils/version"
	"sigs.k8s.io/yaml"
)

// RenderVersion writes the build information in the format of v.
func RenderVersion(v Viewer, info version.Info) {
	switch vt := v.(type) {
	case *HumanView:
		vt.Println(info.String())
	case *JSONView:
		out, err := info.JSONString()
		if err != nil {
			vt.Logger().Error("failed to encode version", "error", err)
			return
		}
		vt.Println(out)
	case *YAMLView:
		out, err := yaml.Marshal(info)
		if err != nil {
			vt.Logger().Error("failed to encode version", "error", err)
			return
		}
		vt.Printf("%s", out)
	default:
		panic("unknown view type")
	}
}
