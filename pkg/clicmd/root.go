// Package clicmd implements the external CLI surface over the core
// library. Each command loads a project (pkg/pipeline), builds
// the action graph (pkg/graph), and drives it through the Solver
// (pkg/solver), following the convention of one NewXCommand()
// constructor per subcommand and a single os.Exit point at the very top
// of main().
package clicmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/garden-io/garden-core/pkg/console"
	"github.com/garden-io/garden-core/pkg/constants"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/plugin"
	"github.com/spf13/cobra"
)

// Hook, when set, is called with each new plugin/handler registry the CLI
// dispatches actions through. The core ships no concrete plugins — every
// action type a project uses must be registered by a plugin the host
// program wires in before calling Execute; Hook lets an embedder do that.
var Hook func(*plugin.Registry)

func registry() *plugin.Registry {
	r := plugin.NewRegistry()
	if Hook != nil {
		Hook(r)
	}
	return r
}

// projectRoot resolves the --root flag, defaulting to the working
// directory.
func projectRoot(cmd *cobra.Command) (string, error) {
	root, _ := cmd.Flags().GetString("root")
	if root != "" {
		return root, nil
	}
	return os.Getwd()
}

// variableOverrides merges the two override layers the CLI itself
// contributes, in ascending precedence (project/environment file variables
// are merged by the caller): GARDEN_VAR_<KEY> environment variables, with
// <KEY> lowercased, then repeated --var key=value flags, each layer winning
// key-by-key over the last.
func variableOverrides(cmd *cobra.Command) map[string]any {
	varEnvPrefix := constants.EnvPrefix + "VAR_"
	overrides := map[string]any{}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, varEnvPrefix) {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], varEnvPrefix))
		overrides[key] = parts[1]
	}

	raw, _ := cmd.Flags().GetStringArray("var")
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		overrides[parts[0]] = parts[1]
	}
	return overrides
}

func mergeVariables(layers ...map[string]any) map[string]any {
	merged := map[string]any{}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// addCommonActionFlags registers the flags every action-running command
// (build/deploy/run/test) shares.
func addCommonActionFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", "", "Project root directory (default: current directory)")
	cmd.Flags().String("env", "default", "Environment to resolve the project against")
	cmd.Flags().StringArray("var", nil, "Override a top-level variable, as key=value (repeatable)")
	cmd.Flags().Bool("force", false, "Re-run actions even if their status already reports ready")
	cmd.Flags().Int("concurrency", 0, "Maximum number of actions to process concurrently (default: GOMAXPROCS)")
}

// exitCode maps err to the process exit code the CLI should return,
// following the solver/error-kind convention: nil is success, a
// CancellationError is 3, a ValidationError or ConfigurationError is 2,
// everything else is 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return gardenerr.KindOf(err).ExitCode()
}

// NewRootCommand builds the garden root command and wires every subcommand
// into it, grouped into execution and analysis command sets.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   constants.CLIName,
		Short: "Garden: a developer-workflow orchestrator for build, deploy, run, and test actions",
		Long: `Garden resolves a project's configuration, builds the dependency graph of
its actions, and runs them through a concurrent Solver.

Common tasks:
  garden get graph             # Print the resolved action graph
  garden build                 # Build every Build action
  garden deploy                # Deploy every Deploy action
  garden test                  # Run every Test action
  garden get status            # Report status without processing anything

For detailed help on any command, use:
  garden [command] --help`,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	root.AddGroup(&cobra.Group{ID: "execution", Title: "Execution Commands:"})
	root.AddGroup(&cobra.Group{ID: "analysis", Title: "Analysis Commands:"})

	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")
	root.SetOut(os.Stderr)
	root.SetVersionTemplate(fmt.Sprintf("%s\n", console.FormatInfoMessage(fmt.Sprintf("%s version {{.Version}}", constants.CLIName))))

	buildCmd := NewBuildCommand()
	deployCmd := NewDeployCommand()
	runCmd := NewRunCommand()
	testCmd := NewTestCommand()
	getCmd := NewGetCommand()
	configCmd := NewConfigCommand()
	versionCmd := NewVersionCommand()

	buildCmd.GroupID = "execution"
	deployCmd.GroupID = "execution"
	runCmd.GroupID = "execution"
	testCmd.GroupID = "execution"
	getCmd.GroupID = "analysis"
	configCmd.GroupID = "analysis"

	root.AddCommand(buildCmd, deployCmd, runCmd, testCmd, getCmd, configCmd, versionCmd)

	return root
}

// Execute builds the root command, sets its version, runs it against args,
// and returns the process exit code the caller should pass to os.Exit —
// following the solver/error-kind exit-code convention rather than cobra's
// default always-1 behavior.
func Execute(version string, args []string) int {
	SetVersion(version)

	root := NewRootCommand()
	root.Version = version
	root.SetArgs(args)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
	}
	return exitCode(err)
}
