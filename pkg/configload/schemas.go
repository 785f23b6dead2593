package configload

import (
	_ "embed"
	"strings"
)

//go:embed schemas/project.schema.json
var projectSchema string

//go:embed schemas/command.schema.json
var commandSchema string

//go:embed schemas/workflow.schema.json
var workflowSchema string

//go:embed schemas/module.schema.json
var moduleSchema string

//go:embed schemas/action.schema.json
var actionSchemaTemplate string

//go:embed schemas/group.schema.json
var groupSchema string

//go:embed schemas/config-template.schema.json
var configTemplateSchema string

//go:embed schemas/render-template.schema.json
var renderTemplateSchema string

// schemaFor returns the embedded schema JSON for kind. Build/Deploy/Run/
// Test share one schema shape (action.schema.json); only the `kind` const
// differs, substituted here rather than maintaining four near-identical
// files.
func schemaFor(kind Kind) (string, bool) {
	switch kind {
	case KindProject:
		return projectSchema, true
	case KindCommand:
		return commandSchema, true
	case KindWorkflow:
		return workflowSchema, true
	case KindModule:
		return moduleSchema, true
	case KindGroup:
		return groupSchema, true
	case KindConfigTemplate:
		return configTemplateSchema, true
	case KindRenderTemplate:
		return renderTemplateSchema, true
	case KindBuild, KindDeploy, KindRun, KindTest:
		return strings.Replace(actionSchemaTemplate, "{{KIND}}", string(kind), 1), true
	default:
		return "", false
	}
}
