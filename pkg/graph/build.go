package graph

import (
	"fmt"
	"sort"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/logger"
	"github.com/garden-io/garden-core/pkg/plugin"
	"github.com/garden-io/garden-core/pkg/template"
)

var log = logger.New("graph")

// Options configures Build.
type Options struct {
	Registry *plugin.Registry
	// ContextFor returns the Action-preprocess template context to
	// resolve cfg's framework-level fields against. Required.
	ContextFor func(cfg action.Config) template.Resolver
}

// Build runs Phase 1 of the Action Graph Builder over
// configs: dedups same-(kind,name) entries where one is disabled,
// discovers implicit dependencies, merges them with explicit ones,
// validates the include/exclude policy, topologically orders the result
// (failing on cycles), resolves framework-level fields, and freezes an
// immutable ConfigGraph.
func Build(configs []action.Config, opts Options) (*ConfigGraph, error) {
	deduped, err := dedupeByKindAndName(configs)
	if err != nil {
		return nil, err
	}

	byKey := make(map[nodeKey]*action.Config, len(deduped))
	for i := range deduped {
		byKey[nodeKey{deduped[i].Kind, deduped[i].Name}] = &deduped[i]
	}

	nodes := make(map[nodeKey]*Node, len(deduped))
	edges := make(map[nodeKey][]nodeKey, len(deduped))
	var keys []nodeKey

	for i := range deduped {
		cfg := deduped[i]
		if err := validateIncludeExclude(&cfg); err != nil {
			return nil, err
		}

		ref := action.Ref{Kind: cfg.Kind, Name: cfg.Name}
		node := &Node{Config: cfg}

		implicit, err := collectImplicit(ref, cfg)
		if err != nil {
			return nil, err
		}

		seenStatus := map[nodeKey]bool{}
		seenProcess := map[nodeKey]bool{}
		addStatus := func(r action.Ref) {
			k := refKey(r)
			if !seenStatus[k] {
				seenStatus[k] = true
				node.StatusDeps = append(node.StatusDeps, r)
			}
		}
		addProcess := func(r action.Ref) {
			k := refKey(r)
			if !seenProcess[k] {
				seenProcess[k] = true
				node.ProcessDeps = append(node.ProcessDeps, r)
			}
		}

		for _, ir := range implicit {
			target, ok := byKey[refKey(ir.To)]
			if !ok {
				return nil, gardenerr.Newf(gardenerr.KindConfiguration,
					"action %s references %s, which does not exist in the graph", ref, ir.To)
			}
			isStatic := func(actionType, output string) bool {
				if opts.Registry == nil {
					return false
				}
				return opts.Registry.IsStaticOutput(actionType, output)
			}
			needsStatic, needsExecuted := classify(ir, target.Type, isStatic)
			if needsStatic {
				node.NeedsStaticOutputs = true
				addStatus(ir.To)
			}
			if needsExecuted {
				node.NeedsExecutedOutputs = true
				addProcess(ir.To)
			}
		}

		// Explicit dependencies (including an implicit Build dependency
 // from a `build:` field, folded in here as explicit per
		// step 3) always become process-deps: they reference the whole
		// action, not a provably-static field.
		explicitDeps := append([]action.Ref(nil), cfg.Dependencies...)
		if cfg.Build != "" {
			explicitDeps = append(explicitDeps, action.Ref{Kind: action.KindBuild, Name: cfg.Build})
		}
		for _, dep := range explicitDeps {
			if _, ok := byKey[refKey(dep)]; !ok {
				return nil, gardenerr.Newf(gardenerr.KindConfiguration,
					"action %s depends on %s, which does not exist in the graph", ref, dep)
			}
			addProcess(dep)
		}

		key := nodeKey{cfg.Kind, cfg.Name}
		nodes[key] = node
		keys = append(keys, key)

		var edgeSet []nodeKey
		seenEdge := map[nodeKey]bool{}
		for _, d := range node.StatusDeps {
			k := refKey(d)
			if !seenEdge[k] {
				seenEdge[k] = true
				edgeSet = append(edgeSet, k)
			}
		}
		for _, d := range node.ProcessDeps {
			k := refKey(d)
			if !seenEdge[k] {
				seenEdge[k] = true
				edgeSet = append(edgeSet, k)
			}
		}
		edges[key] = edgeSet
	}

	order, err := topoSort(keys, edges)
	if err != nil {
		return nil, err
	}

	if opts.ContextFor != nil {
		for _, k := range order {
			n := nodes[k]
			if err := resolveFrameworkFields(n, opts.ContextFor(n.Config)); err != nil {
				return nil, err
			}
		}
	}

	log.Printf("built action graph: %d actions", len(order))
	return &ConfigGraph{order: order, nodes: nodes}, nil
}

func collectImplicit(ref action.Ref, cfg action.Config) ([]ImplicitRef, error) {
	var all []ImplicitRef
	specRefs, err := scanImplicitRefs(ref, cfg.Spec)
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindTemplate, err, fmt.Sprintf("scanning spec of %s for implicit dependencies", ref))
	}
	all = append(all, specRefs...)

	varRefs, err := scanImplicitRefs(ref, cfg.Variables)
	if err != nil {
		return nil, gardenerr.Wrap(gardenerr.KindTemplate, err, fmt.Sprintf("scanning variables of %s for implicit dependencies", ref))
	}
	all = append(all, varRefs...)
	return all, nil
}

// dedupeByKindAndName implements the invariant: (kind, name) is unique
// except that at most one of two same-key entries may be disabled (the
// enabled one wins); two enabled duplicates is a build failure.
func dedupeByKindAndName(configs []action.Config) ([]action.Config, error) {
	groups := map[nodeKey][]action.Config{}
	var order []nodeKey
	for _, c := range configs {
		k := nodeKey{c.Kind, c.Name}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	var out []action.Config
	for _, k := range order {
		group := groups[k]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		var enabled []action.Config
		for _, c := range group {
			if !c.Disabled {
				enabled = append(enabled, c)
			}
		}
		switch len(enabled) {
		case 0:
			out = append(out, group[0]) // all disabled: keep one, inert
		case 1:
			out = append(out, enabled[0])
		default:
			return nil, gardenerr.Newf(gardenerr.KindConfiguration,
				"duplicate action %s: %d enabled definitions (only one may be enabled)", k, len(enabled))
		}
	}
	return out, nil
}

// validateIncludeExclude enforces 's file-inclusion-exclusion policy.
func validateIncludeExclude(cfg *action.Config) error {
	hasAllFilesExclude := false
	for _, e := range cfg.Exclude {
		if e == "**/*" {
			hasAllFilesExclude = true
			break
		}
	}
	if !hasAllFilesExclude {
		return nil
	}
	if len(cfg.Include) > 0 {
		return gardenerr.Newf(gardenerr.KindConfiguration,
			"action %s.%s: exclude: [\"**/*\"] together with a non-empty include is invalid", cfg.Kind, cfg.Name)
	}
	cfg.Include = nil
	return nil
}

// resolveFrameworkFields evaluates the action's framework-level string
// fields (include/exclude globs) against r. Spec and Variables are
// deliberately left untouched — they remain lazy until the action runs.
func resolveFrameworkFields(n *Node, r template.Resolver) error {
	resolveGlobs := func(globs []string) ([]string, error) {
		out := make([]string, len(globs))
		for i, g := range globs {
			v, err := template.EvaluateString(g, r, template.ModePartial)
			if err != nil {
				return nil, err
			}
			s, _ := v.AsString()
			if s == "" {
				s = g // non-templated or unresolved literal glob
			}
			out[i] = s
		}
		return out, nil
	}

	include, err := resolveGlobs(n.Config.Include)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindTemplate, err, fmt.Sprintf("resolving include globs for %s.%s", n.Config.Kind, n.Config.Name))
	}
	exclude, err := resolveGlobs(n.Config.Exclude)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindTemplate, err, fmt.Sprintf("resolving exclude globs for %s.%s", n.Config.Kind, n.Config.Name))
	}
	n.Config.Include = include
	n.Config.Exclude = exclude
	return nil
}

// sortedRefStrings is a small test/debug helper: stable string rendering
// of a Ref slice.
func sortedRefStrings(refs []action.Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, fmt.Sprintf("%s.%s", r.Kind, r.Name))
	}
	sort.Strings(out)
	return out
}
