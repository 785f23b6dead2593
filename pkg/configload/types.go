// Package configload walks a project root, parses its YAML documents,
// attaches source metadata, and dispatches each document to a schema
// validator keyed by `kind`.
package configload

import "github.com/garden-io/garden-core/pkg/logger"

var log = logger.New("configload")

// Kind enumerates the document kinds the loader recognises at the
// top-level project-root walk ("Each document carries a
// kind and a name").
type Kind string

const (
	KindProject        Kind = "Project"
	KindCommand        Kind = "Command"
	KindWorkflow       Kind = "Workflow"
	KindModule         Kind = "Module"
	KindBuild          Kind = "Build"
	KindDeploy         Kind = "Deploy"
	KindRun            Kind = "Run"
	KindTest           Kind = "Test"
	KindGroup          Kind = "Group"
	KindConfigTemplate Kind = "ConfigTemplate"
	KindRenderTemplate Kind = "RenderTemplate"
)

// ActionKinds are the Kind values that become nodes in the action graph
// rather than being consumed earlier in the pipeline.
var ActionKinds = map[Kind]bool{
	KindBuild:  true,
	KindDeploy: true,
	KindRun:    true,
	KindTest:   true,
}

// SourceRange pinpoints a document within a multi-document YAML file, for
// error messages and for internal.configFilePath/internal.basePath.
type SourceRange struct {
	Path      string
	StartLine int
	EndLine   int
}

// RawDoc is one parsed-but-unvalidated YAML document, with its source
// metadata attached ("yielding {kind, path, rawConfig, sourceRange}").
type RawDoc struct {
	Kind Kind
	Name string
	Body map[string]any

	Source SourceRange

	// BasePath is the directory containing the file this document came
	// from; ConfigFilePath is the file's own absolute path. Both become
	// internal.basePath / internal.configFilePath on the resulting Action.
	BasePath       string
	ConfigFilePath string
}
