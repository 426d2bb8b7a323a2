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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestParseResource(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    schema.GroupVersionResource
		wantErr string
	}{
		{
			name: "core resource",
			arg:  "configmaps",
			want: schema.GroupVersionResource{Version: "v1", Resource: "configmaps"},
		},
		{
			name: "fully qualified",
			arg:  "codebases.v1.v2.edp.epam.com",
			want: schema.GroupVersionResource{Group: "v2.edp.epam.com", Version: "v1", Resource: "codebases"},
		},
		{
			name: "tekton",
			arg:  "pipelineruns.v1.tekton.dev",
			want: schema.GroupVersionResource{Group: "tekton.dev", Version: "v1", Resource: "pipelineruns"},
		},
		{
			name:    "group without version",
			arg:     "deployments.apps",
			wantErr: "ambiguous",
		},
		{
			name:    "empty",
			arg:     "",
			wantErr: "must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResource(tt.arg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
