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
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/view"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/synchronizer"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/watcher"
)

type ListOptions struct {
	Namespaces []string
	Selector   string
	Watch      bool
}

func NewListCommand(cli *CLI) *cobra.Command {
	var opts ListOptions

	cmd := &cobra.Command{
		Use:   "list RESOURCE",
		Short: "List resources across one or more namespaces",
		Long: Highlight("krci-watch list RESOURCE [-n namespace]... [-l selector] [--watch]") + "\n\n" +
			"List a collection and print it. Several namespaces are listed\n" +
			"concurrently and merged; namespaces that fail are reported next to\n" +
			"the data of the others. With --watch the list is printed again on\n" +
			"every change until interrupted.\n\n" +
			"Examples:\n" +
			"  # List config maps of two namespaces\n" +
			"  krci-watch list configmaps -n dev -n qa\n\n" +
			"  # Follow pipeline runs of one codebase\n" +
			"  krci-watch list pipelineruns.v1.tekton.dev -n edp -l app.edp.epam.com/codebase=my-app --watch\n",
		Args: ExactArgsWithUsage(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunList(cmd.Context(), cli, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Namespaces, "namespace", "n", []string{"default"},
		"Namespaces to list, repeat or separate with commas")
	cmd.Flags().StringVarP(&opts.Selector, "selector", "l", "", "Equality based label selector, e.g. app=web")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Keep printing the list on every change")

	return cmd
}

func RunList(ctx context.Context, cli *CLI, resource string, opts ListOptions) error {
	gvr, err := parseResource(resource)
	if err != nil {
		return err
	}
	selector, err := labels.ConvertSelectorToLabelsMap(opts.Selector)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", opts.Selector, err)
	}
	namespaces := lo.Uniq(opts.Namespaces)
	if len(namespaces) == 0 {
		namespaces = []string{""}
	}

	mgr, err := cli.NewManager()
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	target := synchronizer.ListTarget{Resource: gvr, Selector: selector}
	out := view.NewWatchView(cli.Viewer)

	if len(namespaces) == 1 {
		target.Namespace = namespaces[0]
		w, err := mgr.WatchList(ctx, target)
		if err != nil {
			return err
		}
		defer w.Unwatch()
		return follow(ctx, opts.Watch, w.Changed(), func() { out.RenderList(singleResult(w, target.Namespace)) })
	}

	mw := mgr.WatchListAcrossPartitions(ctx, target, namespaces)
	defer mw.Unwatch()
	if err := mw.WaitForReady(ctx); err != nil {
		return err
	}
	return follow(ctx, opts.Watch, mw.Changed(), func() { out.RenderList(multiResult(mw, namespaces)) })
}

// follow renders once, then on every change while watch is set.
func follow(ctx context.Context, watch bool, changed <-chan struct{}, render func()) error {
	render()
	if !watch {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			render()
		}
	}
}

func singleResult(w *watcher.ListWatch, namespace string) view.ListResult {
	m := w.Current()
	r := view.ListResult{ResourceVersion: m.ResourceVersion(), Ready: w.IsReady()}
	for _, obj := range m.Items() {
		partition := namespace
		if partition == "" {
			partition = obj.GetNamespace()
		}
		r.Rows = append(r.Rows, view.ListRow{Partition: partition, Object: obj})
	}
	if err := w.LastError(); err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

func multiResult(mw *watcher.MultiWatch, namespaces []string) view.ListResult {
	v := mw.View()
	r := view.ListResult{Ready: v.Ready}
	for _, ns := range namespaces {
		m, ok := v.ByPartition[ns]
		if !ok {
			continue
		}
		for _, obj := range m.Items() {
			r.Rows = append(r.Rows, view.ListRow{Partition: ns, Object: obj})
		}
	}
	r.Errors = lo.Map(v.Errors, func(err error, _ int) string { return err.Error() })
	return r
}
