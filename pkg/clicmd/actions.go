package clicmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/console"
	"github.com/garden-io/garden-core/pkg/graph"
	"github.com/garden-io/garden-core/pkg/pipeline"
	"github.com/garden-io/garden-core/pkg/solver"
	"github.com/garden-io/garden-core/pkg/template"
	"github.com/garden-io/garden-core/pkg/tmplcontext"
	"github.com/garden-io/garden-core/pkg/version"
	"github.com/garden-io/garden-core/pkg/watcher"
	"github.com/spf13/cobra"
)

// runnerOptions is the common shape build/deploy/run/test all reduce to:
// load the project, build the graph, and execute it — only the Solver's
// StatusOnly/kind-filter semantics differ per command.
type runnerOptions struct {
	statusOnly bool
}

func newActionCommand(use, short, long string, opts runnerOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, opts, args)
		},
	}
	addCommonActionFlags(cmd)
	cmd.Flags().Bool("watch", false, "Re-run affected actions whenever a watched config or source file changes")
	cmd.Flags().String("events", "", `Stream Solver lifecycle events to stdout as NDJSON ("json" to enable)`)
	return cmd
}

// NewBuildCommand builds every Build action in the project.
func NewBuildCommand() *cobra.Command {
	return newActionCommand("build [names...]", "Build actions",
		`Build one or more Build actions, or every Build action in the project if none are named.`,
		runnerOptions{})
}

// NewDeployCommand deploys every Deploy action in the project.
func NewDeployCommand() *cobra.Command {
	return newActionCommand("deploy [names...]", "Deploy actions",
		`Deploy one or more Deploy actions, or every Deploy action in the project if none are named.

Builds required by the deployed actions run first.`,
		runnerOptions{})
}

// NewRunCommand runs a single Run action.
func NewRunCommand() *cobra.Command {
	return newActionCommand("run <name>", "Run a Run action",
		`Run a single Run action, building its dependencies first if necessary.`,
		runnerOptions{})
}

// NewTestCommand runs Test actions.
func NewTestCommand() *cobra.Command {
	return newActionCommand("test [names...]", "Run Test actions",
		`Run one or more Test actions, or every Test action in the project if none are named.`,
		runnerOptions{})
}

// NewGetStatusCommand reports status without processing anything.
func NewGetStatusCommand() *cobra.Command {
	return newActionCommand("status [names...]", "Show action status without processing",
		`Report each action's status (its StatusTask result) without running any ProcessTask.`,
		runnerOptions{statusOnly: true})
}

// runGraph runs runOnce, then — if --watch was passed — keeps re-running
// it on every config or source change until the process is interrupted.
func runGraph(cmd *cobra.Command, ropts runnerOptions, targets []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetBool("watch")

	runErr := runOnce(cmd, ropts, targets, root)
	if !watch {
		return runErr
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(runErr.Error()))
	}

	w, err := watcher.New()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Subscribe(root, false); err != nil {
		return err
	}
	w.Start()

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage("watching for changes — press Ctrl+C to stop"))
	for range w.Events() {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage("change detected, re-running"))
		if err := runOnce(cmd, ropts, targets, root); err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		}
	}
	return nil
}

func runOnce(cmd *cobra.Command, ropts runnerOptions, targets []string, root string) error {
	env, _ := cmd.Flags().GetString("env")
	force, _ := cmd.Flags().GetBool("force")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	ctx := context.Background()
	reg := registry()

	proj, err := pipeline.LoadProject(ctx, root, pipeline.LoadOptions{Registry: reg})
	if err != nil {
		return err
	}

	overrides := variableOverrides(cmd)
	projectVars := mergeVariables(proj.Variables, overrides)
	envCtx := tmplcontext.NewEnvironmentContext(
		tmplcontext.NewProjectContext(proj.Name, projectVars), env, projectVars, nil)

	g, err := graph.Build(proj.Actions, graph.Options{
		Registry: reg,
		ContextFor: func(cfg action.Config) template.Resolver {
			id := tmplcontext.ActionIdentity{Name: cfg.Name, Kind: string(cfg.Kind), Type: cfg.Type}
			return tmplcontext.NewActionPreprocessContext(envCtx, id, nil, nil, cfg.Variables)
		},
	})
	if err != nil {
		return err
	}

	cache := version.NewCache(version.DefaultCacheDir(root), version.DefaultTTL)

	var onEvent func(solver.Event)
	if events, _ := cmd.Flags().GetString("events"); events == "json" {
		enc := json.NewEncoder(os.Stdout)
		onEvent = func(ev solver.Event) {
			_ = enc.Encode(ev)
		}
	}

	results, success, err := pipeline.Execute(ctx, g, pipeline.ExecuteOptions{
		ProjectName:          proj.Name,
		ProjectVariables:     projectVars,
		EnvironmentName:      env,
		EnvironmentVariables: nil,
		Registry:             reg,
		Cache:                cache,
		Targets:              targets,
		OnEvent:              onEvent,
		Force:                force,
		ThrowOnError:         true,
		StatusOnly:           ropts.statusOnly,
		ConcurrencyLimit:     concurrency,
		GraceWindow:          30 * time.Second,
	})
	if err != nil {
		return err
	}

	for _, key := range sortedKeys(results) {
		r := results[key]
		switch {
		case r.Err != nil:
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(fmt.Sprintf("%s: %v", key, r.Err)))
		case r.Aborted:
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("%s: aborted", key)))
		default:
			fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("%s: done", key)))
		}
	}

	if !success {
		return fmt.Errorf("one or more actions failed")
	}
	return nil
}

func sortedKeys[K fmt.Stringer, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStringers(keys)
	return keys
}

func sortStringers[K fmt.Stringer](keys []K) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1].String() > keys[j].String(); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}
