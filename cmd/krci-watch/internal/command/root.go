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
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/release-utils/version"

	"github.com/KubeRocketCI/krci-portal-sub004/cmd/krci-watch/internal/view"
	"github.com/KubeRocketCI/krci-portal-sub004/pkg/features"
)

var rootCmd *cobra.Command

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "krci-watch",
		Short: Highlight("krci-watch [global options] <subcommand> [args]") + "\n" +
			"Watch Kubernetes resources through the shared watch layer",
		Long: Highlight("Usage: krci-watch [global options] <subcommand> [args]") + "\n\n" +
			"krci-watch snapshots a resource or a collection, then follows its\n" +
			"changes from the snapshot version on. Collections can span several\n" +
			"namespaces; a namespace that fails to load is reported without\n" +
			"hiding the others.\n",
		Version:       version.GetVersionInfo().GitVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				_ = cmd.Help()
			}
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	flags := cmd.PersistentFlags()
	flags.StringP("output", "o", "", "Output format. One of: (human | json | yaml)")
	flags.Bool("debug", false, "Set log level to debug")
	flags.String("kubeconfig", "", "Path to the kubeconfig file")
	flags.String("context", "", "The kubeconfig context to use")
	flags.String("cluster", "", "Cluster name used in watch keys. Defaults to the kubeconfig cluster")
	features.FeatureGate.AddFlag(flags)
	return cmd
}

func setCobraUsageTemplate() {
	cobra.AddTemplateFunc("StyleHeading", color.RGB(50, 108, 229).SprintFunc())
	usageTemplate := rootCmd.UsageTemplate()
	usageTemplate = strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Examples:`, `{{StyleHeading "Examples:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Additional Commands:`, `{{StyleHeading "Additional Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(usageTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)
}

func setVersionTemplate() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Configure makes root set up the viewer and the connection settings of cli
// once flags are parsed. Output goes to out, logs to errOut.
func Configure(root *cobra.Command, cli *CLI, out, errOut io.Writer) {
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		output, _ := flags.GetString("output")
		viewType, err := view.ParseOutputFormat(output)
		if err != nil {
			return err
		}

		logLevel := view.LogLevelSilent
		switch strings.ToLower(os.Getenv("KRCI_WATCH_LOG")) {
		case "debug":
			logLevel = view.LogLevelDebug
		case "info":
			logLevel = view.LogLevelInfo
		default:
			// Unknown value: keep default (silent)
		}
		if debug, _ := flags.GetBool("debug"); debug {
			logLevel = view.LogLevelDebug
		}

		cli.Kubeconfig, _ = flags.GetString("kubeconfig")
		cli.Context, _ = flags.GetString("context")
		cli.Cluster, _ = flags.GetString("cluster")

		s := view.NewStreams(out, errOut)
		cli.Viewer = view.NewViewer(viewType, s, logLevel)
		cli.Stream = s
		return nil
	}
}

func Execute() {
	rootCmd = NewRootCommand()

	// Templates are used to standardize the output format of krci-watch.
	setCobraUsageTemplate()
	setVersionTemplate()

	// Disable color output if NO_COLOR is set in the environment
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		color.NoColor = true
	}

	// The viewer is reconfigured once flags are parsed.
	cli := NewCLI(view.ViewHuman, os.Stdout, view.LogLevelSilent)
	AddCommands(rootCmd, cli)
	Configure(rootCmd, cli, os.Stdout, os.Stderr)

	if err := rootCmd.ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		if msg := err.Error(); msg != "" {
			cli.Println(color.RGB(229, 50, 50).Sprintf("Error!"), msg)
		}
		os.Exit(1)
	}

	os.Exit(0)
}

// AddCommands registers all subcommands to the root command.
func AddCommands(root *cobra.Command, cli *CLI) {
	root.AddCommand(
		NewVersionCommand(cli),
		NewGetCommand(cli),
		NewListCommand(cli),
	)
}
