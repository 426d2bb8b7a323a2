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
	"encoding/json"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

// ItemResult is the state of an item watch at one point in time.
type ItemResult struct {
	Namespace string
	Name      string
	// Object is nil when the item does not exist (anymore).
	Object *unstructured.Unstructured
	Error  string
}

// ListRow is one item of a list watch.
type ListRow struct {
	Partition string
	Object    *unstructured.Unstructured
}

// ListResult is the state of a list watch at one point in time.
type ListResult struct {
	ResourceVersion string
	Ready           bool
	Rows            []ListRow
	Errors          []string
}

// WatchView renders watch results.
type WatchView interface {
	RenderItem(ItemResult)
	RenderList(ListResult)
}

var (
	headerFmt = color.New(color.FgGreen, color.Bold).SprintfFunc()
	columnFmt = color.New(color.FgYellow).SprintfFunc()
	errorFmt  = color.RGB(229, 50, 50).SprintfFunc()
)

// Human view implementation.

type watchHumanView struct {
	*HumanView
}

func (v *watchHumanView) RenderItem(r ItemResult) {
	if r.Object == nil {
		v.Println(errorFmt("Not found:"), r.Namespace+"/"+r.Name)
	} else {
		tbl := table.New("NAMESPACE", "NAME", "RESOURCE-VERSION").WithWriter(v.Writer)
		tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
		tbl.AddRow(r.Object.GetNamespace(), r.Object.GetName(), r.Object.GetResourceVersion())
		tbl.Print()
	}
	if r.Error != "" {
		v.Println(errorFmt("Error!"), r.Error)
	}
}

func (v *watchHumanView) RenderList(r ListResult) {
	if len(r.Rows) == 0 {
		v.Println("No resources found.")
	} else {
		tbl := table.New("PARTITION", "NAME", "RESOURCE-VERSION").WithWriter(v.Writer)
		tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
		for _, row := range r.Rows {
			tbl.AddRow(row.Partition, row.Object.GetName(), row.Object.GetResourceVersion())
		}
		tbl.Print()
	}
	for _, e := range r.Errors {
		v.Println(errorFmt("Error!"), e)
	}
}

// Structured (json and yaml) view implementation.

type structuredItem struct {
	Namespace string                 `json:"namespace"`
	Name      string                 `json:"name"`
	Found     bool                   `json:"found"`
	Object    map[string]interface{} `json:"object,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type structuredListItem struct {
	Partition string                 `json:"partition"`
	Object    map[string]interface{} `json:"object"`
}

type structuredList struct {
	ResourceVersion string               `json:"resourceVersion,omitempty"`
	Ready           bool                 `json:"ready"`
	Items           []structuredListItem `json:"items"`
	Errors          []string             `json:"errors,omitempty"`
}

func toStructuredItem(r ItemResult) structuredItem {
	out := structuredItem{Namespace: r.Namespace, Name: r.Name, Error: r.Error}
	if r.Object != nil {
		out.Found = true
		out.Object = r.Object.Object
	}
	return out
}

func toStructuredList(r ListResult) structuredList {
	out := structuredList{
		ResourceVersion: r.ResourceVersion,
		Ready:           r.Ready,
		Items:           make([]structuredListItem, 0, len(r.Rows)),
		Errors:          r.Errors,
	}
	for _, row := range r.Rows {
		out.Items = append(out.Items, structuredListItem{Partition: row.Partition, Object: row.Object.Object})
	}
	return out
}

type watchJSONView struct {
	*JSONView
}

func (v *watchJSONView) print(value any) {
	if data, err := json.Marshal(value); err == nil {
		v.Println(string(data))
	} else {
		v.Logger().Error("failed to encode output", "error", err)
	}
}

func (v *watchJSONView) RenderItem(r ItemResult) {
	v.print(toStructuredItem(r))
}

func (v *watchJSONView) RenderList(r ListResult) {
	v.print(toStructuredList(r))
}

type watchYAMLView struct {
	*YAMLView
}

func (v *watchYAMLView) print(value any) {
	data, err := yaml.Marshal(value)
	if err != nil {
		v.Logger().Error("failed to encode output", "error", err)
		return
	}
	v.Println("---")
	v.Printf("%s", data)
}

func (v *watchYAMLView) RenderItem(r ItemResult) {
	v.print(toStructuredItem(r))
}

func (v *watchYAMLView) RenderList(r ListResult) {
	v.print(toStructuredList(r))
}

func NewWatchView(v Viewer) WatchView {
	switch vt := v.(type) {
	case *HumanView:
		return &watchHumanView{HumanView: vt}
	case *JSONView:
		return &watchJSONView{JSONView: vt}
	case *YAMLView:
		return &watchYAMLView{YAMLView: vt}
	default:
		panic("unknown view type")
	}
}
