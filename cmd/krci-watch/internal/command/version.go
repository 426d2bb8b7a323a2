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
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/view"
)

func NewVersionCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: Highlight("krci-watch version") + "\n\n" +
			"Display the build information of krci-watch.\n",
		Args: MaxArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			view.RenderVersion(cli.Viewer, version.GetVersionInfo())
		},
	}
	return cmd
}
