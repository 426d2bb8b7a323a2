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

package command_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/command"
	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/view"
)

func TestNewRootCommand(t *testing.T) {
	cmd := command.NewRootCommand()

	assert.Equal(t, "krci-watch", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotEmpty(t, cmd.Version)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.CompletionOptions.DisableDefaultCmd)
}

func TestNewRootCommand_PersistentFlags(t *testing.T) {
	cmd := command.NewRootCommand()

	for _, name := range []string{"output", "debug", "kubeconfig", "context", "cluster"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, cmd.PersistentFlags().Lookup("output"), cmd.PersistentFlags().ShorthandLookup("o"))
}

func TestAddCommands(t *testing.T) {
	cmd := command.NewRootCommand()
	cli := command.NewCLI(view.ViewHuman, &bytes.Buffer{}, view.LogLevelSilent)
	command.AddCommands(cmd, cli)

	for _, name := range []string{"version", "get", "list"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestConfigure_RejectsUnknownOutput(t *testing.T) {
	cmd := command.NewRootCommand()
	cli := command.NewCLI(view.ViewHuman, &bytes.Buffer{}, view.LogLevelSilent)
	command.AddCommands(cmd, cli)
	command.Configure(cmd, cli, &bytes.Buffer{}, &bytes.Buffer{})
	cmd.SetArgs([]string{"version", "-o", "xml"})

	assert.Error(t, cmd.ExecuteContext(t.Context()))
}

func TestVersionCommand_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := command.NewRootCommand()
	cli := command.NewCLI(view.ViewHuman, out, view.LogLevelSilent)
	command.AddCommands(cmd, cli)
	command.Configure(cmd, cli, out, &bytes.Buffer{})
	cmd.SetArgs([]string{"version", "-o", "json"})

	require.NoError(t, cmd.ExecuteContext(t.Context()))
	assert.Contains(t, out.String(), `"gitVersion"`)
}
