// Package rendertemplate expands a ConfigTemplate/RenderTemplate pair
// into concrete action/module config documents. This runs before the
// template context hierarchy and the full expression engine exist for an
// action, so rendering only ever substitutes `${inputs.*}` references;
// every other `${...}` expression in the template body is left
// byte-for-byte untouched for later phases to evaluate against the real
// context.
package rendertemplate

import (
	"fmt"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/logger"
	"github.com/garden-io/garden-core/pkg/template"
	"github.com/google/jsonschema-go/jsonschema"
)

var log = logger.New("rendertemplate")

// Definition is a parsed `ConfigTemplate` document: a name, an inputs
// schema (author-supplied JSON Schema, validated with google/jsonschema-go
// rather than the core's fixed per-kind schemas — see DESIGN.md), and the
// list of config bodies it emits.
type Definition struct {
	Name         string
	InputsSchema map[string]any
	Configs      []map[string]any
	BasePath     string
}

// Request is a `RenderTemplate` document: which ConfigTemplate to
// instantiate, the instance name used to prefix emitted config names, and
// the concrete inputs map.
type Request struct {
	TemplateName string
	InstanceName string
	Inputs       map[string]any
}

// Render expands def against req, returning one config body per entry in
// def.Configs. Every emitted body's `name` field is prefixed with
// req.InstanceName ("all emitted config names are prefixed... with
// the instance name to prevent collisions"), and `internal.basePath`
// inherits the renderer's BasePath.
func Render(def Definition, req Request) ([]map[string]any, error) {
	if err := validateInputs(def, req); err != nil {
		return nil, err
	}

	inputsVal := template.FromNative(req.Inputs)

	out := make([]map[string]any, 0, len(def.Configs))
	for _, cfg := range def.Configs {
		rendered, err := substituteInputs(cfg, inputsVal)
		if err != nil {
			return nil, gardenerr.Wrap(gardenerr.KindTemplate, err, fmt.Sprintf("rendering %s instance %q", def.Name, req.InstanceName))
		}
		body, ok := rendered.(map[string]any)
		if !ok {
			return nil, gardenerr.New(gardenerr.KindConfiguration, "ConfigTemplate config entries must be maps")
		}

		if n, ok := body["name"].(string); ok {
			body["name"] = req.InstanceName + "-" + n
		} else {
			body["name"] = req.InstanceName
		}
		body["internal"] = map[string]any{"basePath": def.BasePath}
		out = append(out, body)
	}

	log.Printf("rendered %d config(s) from template %q instance %q", len(out), def.Name, req.InstanceName)
	return out, nil
}

// validateInputs checks req.Inputs against def.InputsSchema before any
// template string is evaluated.
func validateInputs(def Definition, req Request) error {
	if len(def.InputsSchema) == 0 {
		return nil
	}
	schema := new(jsonschema.Schema)
	if err := remarshalInto(def.InputsSchema, schema); err != nil {
		return gardenerr.Wrap(gardenerr.KindConfiguration, err, "invalid inputs schema on ConfigTemplate "+def.Name)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindConfiguration, err, "resolving inputs schema on ConfigTemplate "+def.Name)
	}
	if err := resolved.Validate(req.Inputs); err != nil {
		return gardenerr.Wrap(gardenerr.KindValidation, err, fmt.Sprintf("inputs for %s instance %q failed schema validation", def.Name, req.InstanceName))
	}
	return nil
}
