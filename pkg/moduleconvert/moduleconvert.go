// Package moduleconvert translates legacy Module documents into
// Build/Deploy/Run/Test actions via each plugin's
// `module.convert` handler. A single module typically
// yields one Build, one Deploy per service, one Run per task, and one
// Test per test config; plugins may suppress the Build entirely.
package moduleconvert

import (
	"context"
	"fmt"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/logger"
	"github.com/garden-io/garden-core/pkg/plugin"
)

var log = logger.New("moduleconvert")

// Module is a legacy Module document, already resolved per, before
// conversion.
type Module struct {
	Name      string
	Type      string
	Plugin    string // which plugin's module.convert handler to invoke
	Disabled  bool
	Include   []string
	Exclude   []string
	Variables map[string]any
	Spec      map[string]any
	BasePath  string
}

// ConvertRequest is the payload passed to a plugin's module.convert
// handler.
type ConvertRequest struct {
	Module Module
}

// ConvertResult is what a module.convert handler returns: the set of
// actions derived from the module. Plugins populate Build only when the
// module actually builds something (nil/zero-value Build means "no
// build", e.g. Helm with skipDeploy).
type ConvertResult struct {
	Build  *action.Config
	Deploy []action.Config
	Run    []action.Config
	Test   []action.Config
}

// DependentRemoval records a dangling Build dependency the converter
// stripped because the module it pointed at produced no Build action —
// this is a warning, not a failure.
type DependentRemoval struct {
	From action.Ref // the action whose dependency was removed
	On   action.Ref // the dangling {kind:Build, name} reference
}

// Convert runs module.convert for every module in modules, via reg, and
// returns the combined action set plus any dangling-Build-dependency
// removals (for the caller to log as warnings).
func Convert(ctx context.Context, reg *plugin.Registry, modules []Module) ([]action.Config, []DependentRemoval, error) {
	var all []action.Config
	builtModules := map[string]bool{} // module name -> produced a Build action

	type pending struct {
		result ConvertResult
		module Module
	}
	var converted []pending

	for _, m := range modules {
		if m.Disabled {
			continue
		}
		handler, err := reg.Lookup(m.Plugin, m.Type, plugin.HandlerModuleConvert)
		if err != nil {
			return nil, nil, gardenerr.Wrap(gardenerr.KindPlugin, err, fmt.Sprintf("converting module %q", m.Name))
		}
		raw, err := handler(ctx, ConvertRequest{Module: m})
		if err != nil {
			return nil, nil, gardenerr.Wrap(gardenerr.KindPlugin, err, fmt.Sprintf("module.convert failed for module %q", m.Name))
		}
		result, ok := raw.(ConvertResult)
		if !ok {
			return nil, nil, gardenerr.Newf(gardenerr.KindPlugin, "module.convert for %q returned an unexpected type %T", m.Name, raw)
		}

		if result.Build != nil {
			builtModules[m.Name] = true
			all = append(all, *result.Build)
		}
		all = append(all, result.Deploy...)
		all = append(all, result.Run...)
		all = append(all, result.Test...)
		converted = append(converted, pending{result: result, module: m})
	}

	removals := removeDanglingBuildDeps(all, builtModules)
	for _, r := range removals {
		log.Printf("warning: removed dangling Build dependency %s -> %s (module produced no Build action)", r.From.Name, r.On.Name)
	}

	return all, removals, nil
}

// removeDanglingBuildDeps drops any `{kind: Build, name: X}` dependency
// (including an implicit `build: X` reference) where X never produced a
// Build action, and returns what it removed. It mutates the Dependencies
// slice of each entry in actions in place.
func removeDanglingBuildDeps(actions []action.Config, builtModules map[string]bool) []DependentRemoval {
	hasBuild := map[string]bool{}
	for _, a := range actions {
		if a.Kind == action.KindBuild {
			hasBuild[a.Name] = true
		}
	}
	for name, ok := range builtModules {
		if ok {
			hasBuild[name] = true
		}
	}

	var removals []DependentRemoval
	for i := range actions {
		a := &actions[i]

		if a.Build != "" && !hasBuild[a.Build] {
			removals = append(removals, DependentRemoval{
				From: action.Ref{Kind: a.Kind, Name: a.Name},
				On:   action.Ref{Kind: action.KindBuild, Name: a.Build},
			})
			a.Build = ""
		}

		kept := a.Dependencies[:0]
		for _, dep := range a.Dependencies {
			if dep.Kind == action.KindBuild && !hasBuild[dep.Name] {
				removals = append(removals, DependentRemoval{
					From: action.Ref{Kind: a.Kind, Name: a.Name},
					On:   dep,
				})
				continue
			}
			kept = append(kept, dep)
		}
		a.Dependencies = kept
	}
	return removals
}
