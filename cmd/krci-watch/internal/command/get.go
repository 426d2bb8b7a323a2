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
	"context"

	"github.com/spf13/cobra"

	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/view"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/synchronizer"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watcher"
)

type GetOptions struct {
	Namespace string
	Watch     bool
}

func NewGetCommand(cli *CLI) *cobra.Command {
	var opts GetOptions

	cmd := &cobra.Command{
		Use:   "get RESOURCE NAME",
		Short: "Show a resource and optionally follow its changes",
		Long: Highlight("krci-watch get RESOURCE NAME [-n namespace] [--watch]") + "\n\n" +
			"Fetch a single resource and print it. With --watch the resource is\n" +
			"printed again on every change until interrupted.\n\n" +
			"Examples:\n" +
			"  # Show a config map\n" +
			"  krci-watch get configmaps my-config -n default\n\n" +
			"  # Follow a codebase\n" +
			"  krci-watch get codebases.v1.v2.edp.epam.com my-app -n edp --watch\n",
		Args: ExactArgsWithUsage(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunGet(cmd.Context(), cli, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "default", "Namespace of the resource")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Keep printing the resource on every change")

	return cmd
}

func RunGet(ctx context.Context, cli *CLI, resource, name string, opts GetOptions) error {
	gvr, err := parseResource(resource)
	if err != nil {
		return err
	}

	mgr, err := cli.NewManager()
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	w, err := mgr.WatchItem(ctx, synchronizer.ItemTarget{Resource: gvr, Namespace: opts.Namespace, Name: name})
	if err != nil {
		return err
	}
	defer w.Unwatch()

	out := view.NewWatchView(cli.Viewer)
	out.RenderItem(itemResult(w, opts.Namespace, name))
	if !opts.Watch {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
			out.RenderItem(itemResult(w, opts.Namespace, name))
		}
	}
}

func itemResult(w *watcher.ItemWatch, namespace, name string) view.ItemResult {
	r := view.ItemResult{Namespace: namespace, Name: name}
	if obj, ok := w.Current(); ok {
		r.Object = obj
	}
	if err := w.LastError(); err != nil {
		r.Error = err.Error()
	}
	return r
}
