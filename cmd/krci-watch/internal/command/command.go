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
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"

	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/view"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/cache"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/client"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watcher"
)

// ClientFactory returns the dynamic client and the cluster name to watch.
type ClientFactory func(cli *CLI) (dynamic.Interface, string, error)

// CLI holds shared state and is propagated from root to subcommands.
type CLI struct {
	view.Viewer
	*view.Stream

	Kubeconfig string
	Context    string
	Cluster    string

	// NewClient is replaced in tests.
	NewClient ClientFactory
}

// Highlight applies a blue color to the given format and arguments.
func Highlight(format string, a ...any) string {
	return color.RGB(50, 108, 229).Sprintf(format, a...)
}

func NewCLI(vt view.ViewType, w io.Writer, logLevel view.LogLevel) *CLI {
	s := view.NewStream(w)

	return &CLI{
		Viewer:    view.NewViewer(vt, s, logLevel),
		Stream:    s,
		NewClient: kubeconfigClient,
	}
}

func kubeconfigClient(cli *CLI) (dynamic.Interface, string, error) {
	set, err := client.NewSet(client.Config{
		Kubeconfig: cli.Kubeconfig,
		Context:    cli.Context,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create client set: %w", err)
	}
	return set.Dynamic(), set.ClusterName(), nil
}

// NewManager builds a watch manager for the configured cluster. The caller
// must Shutdown the manager.
func (c *CLI) NewManager() (*watcher.Manager, error) {
	dyn, cluster, err := c.NewClient(c)
	if err != nil {
		return nil, err
	}
	if c.Cluster != "" {
		cluster = c.Cluster
	}
	return watcher.New(cluster, dyn, cache.NewMemory(), watcher.Config{}, c.Logger().Logr()), nil
}

// ExactArgsWithUsage returns an error if there is not the exact number of args,
// and shows usage information for better user experience.
func ExactArgsWithUsage(number int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == number {
			return nil
		}
		_ = cmd.Usage()
		if number == 1 {
			return fmt.Errorf("requires exactly 1 argument")
		}
		return fmt.Errorf("requires exactly %d arguments", number)
	}
}

// MaxArgs returns an error if there are more than the max number of args.
func MaxArgs(number int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) <= number {
			return nil
		}
		return fmt.Errorf("expected at most %d arguments, got %d", number, len(args))
	}
}
