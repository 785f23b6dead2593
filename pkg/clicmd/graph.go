package clicmd

import (
	"context"
	"fmt"
	"os"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/console"
	"github.com/garden-io/garden-core/pkg/graph"
	"github.com/garden-io/garden-core/pkg/pipeline"
	"github.com/garden-io/garden-core/pkg/template"
	"github.com/garden-io/garden-core/pkg/tmplcontext"
	"github.com/spf13/cobra"
)

// NewGetCommand is the parent of the read-only "get" subcommands.
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print information about a project",
	}
	cmd.AddCommand(newGetGraphCommand())
	cmd.AddCommand(NewGetStatusCommand())
	return cmd
}

func newGetGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the action graph in topological order",
		Long: `Load the project, build the action graph, and print every action with
its kind, type, and dependencies, in the graph's topological order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			reg := registry()

			proj, err := pipeline.LoadProject(ctx, root, pipeline.LoadOptions{Registry: reg})
			if err != nil {
				return err
			}

			g, err := graph.Build(proj.Actions, graph.Options{
				Registry: reg,
				ContextFor: func(cfg action.Config) template.Resolver {
					id := tmplcontext.ActionIdentity{Name: cfg.Name, Kind: string(cfg.Kind), Type: cfg.Type}
					return tmplcontext.NewActionPreprocessContext(
						tmplcontext.NewProjectContext(proj.Name, proj.Variables), id, nil, nil, cfg.Variables)
				},
			})
			if err != nil {
				return err
			}

			for _, n := range g.All() {
				fmt.Fprintln(os.Stdout, console.FormatListHeader(fmt.Sprintf("%s.%s (%s)", n.Config.Kind, n.Config.Name, n.Config.Type)))
				for _, d := range n.StatusDeps {
					fmt.Fprintln(os.Stdout, console.FormatListItem(fmt.Sprintf("status  -> %s.%s", d.Kind, d.Name)))
				}
				for _, d := range n.ProcessDeps {
					fmt.Fprintln(os.Stdout, console.FormatListItem(fmt.Sprintf("process -> %s.%s", d.Kind, d.Name)))
				}
			}
			return nil
		},
	}
	cmd.Flags().String("root", "", "Project root directory (default: current directory)")
	return cmd
}
