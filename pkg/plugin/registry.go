// Package plugin implements the plugin/handler registry that
// Build/Deploy/Run/Test actions (and legacy Modules) are dispatched
// through. The core never implements container, Kubernetes, or Terraform
// logic itself — it only knows how to look up and invoke the handler a
// plugin registered for a given (kind, type, handler name) triple.
package plugin

import (
	"context"
	"sort"

	"github.com/garden-io/garden-core/pkg/gardenerr"
)

// HandlerName enumerates the handler hooks a plugin's action type may
// implement.
type HandlerName string

const (
	HandlerConfigure       HandlerName = "configure"
	HandlerValidate        HandlerName = "validate"
	HandlerGetOutputs      HandlerName = "getOutputs"
	HandlerBuild           HandlerName = "build"
	HandlerGetStatus       HandlerName = "getStatus"
	HandlerDeploy          HandlerName = "deploy"
	HandlerDelete          HandlerName = "delete"
	HandlerGetLogs         HandlerName = "getLogs"
	HandlerRun             HandlerName = "run"
	HandlerTest            HandlerName = "test"
	HandlerPublish         HandlerName = "publish"
	HandlerExec            HandlerName = "exec"
	HandlerGetSyncStatus   HandlerName = "getSyncStatus"
	HandlerStartSync       HandlerName = "startSync"
	HandlerStopSync        HandlerName = "stopSync"
	HandlerAugmentGraph    HandlerName = "augmentGraph"
	HandlerSuggestCommands HandlerName = "suggestCommands"
	HandlerModuleConvert   HandlerName = "module.convert"
)

// HandlerFunc is the uniform shape every handler is invoked through. req
// and the return value are handler-specific payloads (e.g. a ResolvedAction
// for "deploy", a ConvertRequest for "module.convert"); the registry itself
// is payload-agnostic.
type HandlerFunc func(ctx context.Context, req any) (any, error)

// ActionType is one plugin-declared action type (e.g. "container",
// "kubernetes"). It may declare a Base type to fall through to when it has
// no override for a given handler.
type ActionType struct {
	Name     string
	Base     string
	Handlers map[HandlerName]HandlerFunc

	// StaticOutputs names the outputs this action type computes without
	// running the action (e.g. an image tag derived from config alone).
	// Any output not listed here is treated as runtime-only — a reference
	// to it forces execution of the dependency.
	StaticOutputs map[string]bool
}

// Plugin is a registered plugin: a name, an optional config schema, the
// action types it contributes, and any external tools it declares.
type Plugin struct {
	Name         string
	ConfigSchema map[string]any
	ActionTypes  map[string]*ActionType
	Tools        []ToolSpec
}

// Registry holds all registered plugins and resolves handler lookups,
// including base-type inheritance fallthrough ("Action types may
// declare inheritance from a base type").
type Registry struct {
	plugins map[string]*Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: map[string]*Plugin{}}
}

func (r *Registry) Register(p *Plugin) error {
	if p.Name == "" {
		return gardenerr.New(gardenerr.KindConfiguration, "plugin must have a name")
	}
	if _, exists := r.plugins[p.Name]; exists {
		return gardenerr.Newf(gardenerr.KindConfiguration, "plugin %q is already registered", p.Name)
	}
	r.plugins[p.Name] = p
	return nil
}

func (r *Registry) Plugin(name string) (*Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Lookup resolves the handler for (pluginName, actionType, handler),
// walking the action type's Base chain when the concrete type has no
// override. Returns gardenerr.KindPlugin if the plugin, type, or handler
// cannot be found, anywhere in the chain.
func (r *Registry) Lookup(pluginName, actionType string, handler HandlerName) (HandlerFunc, error) {
	p, ok := r.plugins[pluginName]
	if !ok {
		return nil, gardenerr.Newf(gardenerr.KindPlugin, "no such plugin %q", pluginName)
	}

	seen := map[string]bool{}
	typeName := actionType
	for typeName != "" {
		if seen[typeName] {
			return nil, gardenerr.Newf(gardenerr.KindPlugin, "action type %q has a cyclic base-type chain in plugin %q", actionType, pluginName)
		}
		seen[typeName] = true

		at, ok := p.ActionTypes[typeName]
		if !ok {
			return nil, gardenerr.Newf(gardenerr.KindPlugin, "plugin %q has no action type %q", pluginName, typeName)
		}
		if fn, ok := at.Handlers[handler]; ok {
			return fn, nil
		}
		typeName = at.Base
	}
	return nil, gardenerr.Newf(gardenerr.KindPlugin, "plugin %q action type %q has no %q handler (including base types)", pluginName, actionType, handler)
}

// FindActionType locates the plugin and action-type definition that
// declares typeName, searching every registered plugin. Action type names
// are expected to be unique across the registry (a plugin collision is a
// configuration error the caller should have caught at registration time).
func (r *Registry) FindActionType(typeName string) (*Plugin, *ActionType, bool) {
	for _, p := range r.plugins {
		if at, ok := p.ActionTypes[typeName]; ok {
			return p, at, true
		}
	}
	return nil, nil, false
}

// IsStaticOutput reports whether output is declared static by typeName or
// any of its base types. An unknown action type or unknown output is
// treated as non-static (the conservative default — see ActionType.StaticOutputs).
func (r *Registry) IsStaticOutput(typeName, output string) bool {
	_, at, ok := r.FindActionType(typeName)
	if !ok {
		return false
	}
	seen := map[string]bool{}
	for at != nil {
		if seen[at.Name] {
			return false
		}
		seen[at.Name] = true
		if at.StaticOutputs[output] {
			return true
		}
		if at.Base == "" {
			return false
		}
		_, next, ok := r.FindActionType(at.Base)
		if !ok {
			return false
		}
		at = next
	}
	return false
}

// Augmenter is one plugin's augmentGraph contribution, named so ordering
// decisions (and error messages) can cite the plugin.
type Augmenter struct {
	PluginName   string
	ProviderDeps []string // names of providers this plugin's provider depends on
	Handler      HandlerFunc
}

// OrderedAugmenters returns augmenters in the order augmentGraph handlers
// must run: topologically over provider dependencies, ties broken by
// plugin name ascending. Ordering across plugins isn't otherwise
// specified, so providers that depend on other providers' outputs augment
// after their dependencies do (see DESIGN.md).
func OrderedAugmenters(augmenters []Augmenter) ([]Augmenter, error) {
	byName := make(map[string]Augmenter, len(augmenters))
	for _, a := range augmenters {
		byName[a.PluginName] = a
	}

	var order []Augmenter
	visited := map[string]bool{}
	visiting := map[string]bool{}

	var visit func(name string) error
	visit = func(name string) error {
		a, ok := byName[name]
		if !ok {
			return nil // dependency isn't itself an augmenter; nothing to order
		}
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return gardenerr.Newf(gardenerr.KindConfiguration, "cyclic augmentGraph provider dependency involving %q", name)
		}
		visiting[name] = true
		deps := append([]string(nil), a.ProviderDeps...)
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[name] = false
		visited[name] = true
		order = append(order, a)
		return nil
	}

	names := make([]string, 0, len(augmenters))
	for _, a := range augmenters {
		names = append(names, a.PluginName)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
