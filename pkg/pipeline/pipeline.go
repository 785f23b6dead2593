// Package pipeline wires the single load-graph-execute sequence the CLI
// drives: walk and parse a project (configload), expand any
// ConfigTemplate/RenderTemplate pairs (rendertemplate), convert legacy
// Modules (moduleconvert), build the action graph (graph), materialise
// status/process tasks (task), and run them through the Solver (solver),
// consulting the plugin registry (plugin) and the version/cache (version)
// along the way.
//
// This orchestration isn't itself a reusable library concern — it is the
// glue a command-line entry point needs to drive the other packages in
// the right order, one Cobra RunE at a time.
package pipeline

import (
	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/logger"
)

var log = logger.New("pipeline")

// Project is everything LoadProject extracts from a project root before
// the graph is built: the project-level document, every action-shaped
// config (Build/Deploy/Run/Test, including ones produced by module
// conversion or template rendering), and the legacy modules pending
// conversion.
type Project struct {
	Name      string
	Variables map[string]any
	RootDir   string

	Actions []action.Config
}
