// Package tmplcontext implements the layered template context hierarchy:
// Project → Environment → Provider → Action(preprocess) →
// ActionSpec(full). Each layer is a template.Resolver that owns a fixed
// set of root identifiers and falls through to its parent for anything it
// doesn't own, so a deeply-nested context (e.g. ActionSpec) transparently
// exposes every root a shallower one does.
package tmplcontext

import (
	"sort"

	"github.com/garden-io/garden-core/pkg/template"
)

// Context is one layer of the hierarchy. Roots are the identifiers this
// layer resolves directly (e.g. "var", "environment", "providers",
// "actions"); Parent is consulted for anything absent from Roots.
type Context struct {
	name   string
	roots  map[string]template.Value
	parent template.Resolver
}

// Resolve implements template.Resolver. Strict mode returns an error for a
// name no layer in the chain owns; partial mode reports it absent so a
// dependency-discovery scan degrades gracefully instead of failing.
func (c *Context) Resolve(name string, mode template.Mode) (template.Value, error) {
	if v, ok := c.roots[name]; ok {
		return v, nil
	}
	if c.parent != nil {
		return c.parent.Resolve(name, mode)
	}
	if mode == template.ModePartial {
		return template.Absent(), nil
	}
	return template.Value{}, &template.TemplateError{Message: "unknown reference root " + name}
}

// Name identifies the layer for diagnostics (e.g. "project", "action:build").
func (c *Context) Name() string { return c.name }

func mapValue(raw map[string]any) template.Value {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]template.MapEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, template.MapEntry{Key: k, Value: template.FromNative(raw[k])})
	}
	return template.Map(entries)
}

// mergeVarLayers implements the var.* precedence chain: later layers
// win over earlier ones, key by key, rather than one replacing the whole
// map — "var.foo" set at the project level survives into an environment
// that only overrides "var.bar".
func mergeVarLayers(layers ...map[string]any) template.Value {
	merged := map[string]any{}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return mapValue(merged)
}

// NewProjectContext is the root of the hierarchy: project-level variables
// plus static identity fields (project name, default environment). It has
// no parent — an unresolved root here is a genuine unresolved reference.
func NewProjectContext(projectName string, vars map[string]any) *Context {
	return &Context{
		name: "project",
		roots: map[string]template.Value{
			"var": mapValue(vars),
			"project": template.Map([]template.MapEntry{
				{Key: "name", Value: template.String(projectName)},
			}),
			"local": localRoot(),
		},
	}
}

// NewEnvironmentContext layers an environment's name and variable
// overrides over a project context.
func NewEnvironmentContext(parent *Context, envName string, projectVars, envVars map[string]any) *Context {
	return &Context{
		name:   "environment:" + envName,
		parent: parent,
		roots: map[string]template.Value{
			"var": mergeVarLayers(projectVars, envVars),
			"environment": template.Map([]template.MapEntry{
				{Key: "name", Value: template.String(envName)},
			}),
		},
	}
}

// ProviderOutputs is the resolved output map of one configured provider,
// keyed by provider name (e.g. "kubernetes" -> {"namespace": "..."}).
type ProviderOutputs map[string]map[string]any

// NewProviderContext layers every configured provider's outputs over an
// environment context, exposed as providers.<name>.<key>. Providers are
// visible to every later layer (actions commonly reference
// providers.kubernetes.namespace in their spec).
func NewProviderContext(parent *Context, outputs ProviderOutputs) *Context {
	names := make([]string, 0, len(outputs))
	for n := range outputs {
		names = append(names, n)
	}
	sort.Strings(names)
	entries := make([]template.MapEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, template.MapEntry{Key: n, Value: mapValue(outputs[n])})
	}
	return &Context{
		name:   "providers",
		parent: parent,
		roots: map[string]template.Value{
			"providers": template.Map(entries),
		},
	}
}

// ActionIdentity is the static identity metadata of the action being
// resolved, available in both preprocess and full phases.
type ActionIdentity struct {
	Name string
	Kind string
	Type string
}

func (ai ActionIdentity) value() template.Value {
	return template.Map([]template.MapEntry{
		{Key: "name", Value: template.String(ai.Name)},
		{Key: "kind", Value: template.String(ai.Kind)},
		{Key: "type", Value: template.String(ai.Type)},
	})
}

// NewActionPreprocessContext is the Phase-1 context: it carries
// var.* (including the action's own variable/varfile overrides, which sit
// above group/environment/project per the precedence chain) and the
// action's static identity, but deliberately does NOT expose "actions" —
// dependency outputs don't exist yet during preprocessing, so any
// reference to them must resolve through partial mode as absent rather
// than a concrete value.
func NewActionPreprocessContext(parent *Context, id ActionIdentity, groupVars, actionVarfileVars, actionVars map[string]any) *Context {
	return &Context{
		name:   "action-preprocess:" + id.Name,
		parent: parent,
		roots: map[string]template.Value{
			"var":    mergeVarLayers(groupVars, actionVarfileVars, actionVars),
			"action": id.value(),
		},
	}
}

// NewActionFullContext is the Phase-2 ("ActionSpec") context: everything
// the preprocess context has, plus every other action's resolved outputs
// (actions.<name>.outputs.*) and this action's rendered inputs (for
// actions sourced from a ConfigTemplate).
func NewActionFullContext(parent *Context, id ActionIdentity, groupVars, actionVarfileVars, actionVars map[string]any, actionsOutputs map[string]map[string]any, inputs map[string]any) *Context {
	names := make([]string, 0, len(actionsOutputs))
	for n := range actionsOutputs {
		names = append(names, n)
	}
	sort.Strings(names)
	actionEntries := make([]template.MapEntry, 0, len(names))
	for _, n := range names {
		actionEntries = append(actionEntries, template.MapEntry{
			Key: n,
			Value: template.Map([]template.MapEntry{
				{Key: "outputs", Value: mapValue(actionsOutputs[n])},
			}),
		})
	}

	return &Context{
		name:   "action-full:" + id.Name,
		parent: parent,
		roots: map[string]template.Value{
			"var":     mergeVarLayers(groupVars, actionVarfileVars, actionVars),
			"action":  id.value(),
			"actions": template.Map(actionEntries),
			"inputs":  mapValue(inputs),
		},
	}
}
