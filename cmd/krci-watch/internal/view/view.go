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

var _ Viewer = (*HumanView)(nil)
var _ Viewer = (*JSONView)(nil)
var _ Viewer = (*YAMLView)(nil)

type Viewer interface {
	Logger() Logger
}

func NewViewer(vt ViewType, s *Stream, level LogLevel) Viewer {
	switch vt {
	case ViewHuman:
		return NewHumanView(s, level)
	case ViewJSON:
		return NewJSONView(s, level)
	case ViewYAML:
		return NewYAMLView(s, level)
	default:
		panic("unknown view type")
	}
}

func newLogger(s *Stream, level LogLevel, human bool) Logger {
	switch {
	case level == LogLevelSilent:
		return NewNopLogger()
	case human:
		return NewHumanLogger(s.ErrWriter, level)
	default:
		return NewJSONLogger(s.ErrWriter, level)
	}
}

type HumanView struct {
	*Stream
	logger Logger
}

func NewHumanView(s *Stream, level LogLevel) *HumanView {
	return &HumanView{
		Stream: s,
		logger: newLogger(s, level, true),
	}
}

func (h *HumanView) Logger() Logger {
	return h.logger
}

type JSONView struct {
	*Stream
	logger Logger
}

func NewJSONView(s *Stream, level LogLevel) *JSONView {
	return &JSONView{
		Stream: s,
		logger: newLogger(s, level, false),
	}
}

func (j *JSONView) Logger() Logger {
	return j.logger
}

// YAMLView logs like the human view; only its output is yaml.
type YAMLView struct {
	*Stream
	logger Logger
}

func NewYAMLView(s *Stream, level LogLevel) *YAMLView {
	return &YAMLView{
		Stream: s,
		logger: newLogger(s, level, true),
	}
}

func (y *YAMLView) Logger() Logger {
	return y.logger
}
