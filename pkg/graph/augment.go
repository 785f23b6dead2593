package graph

import (
	"context"
	"fmt"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/plugin"
)

// AugmentRequest is the payload passed to an augmentGraph handler: the
// frozen graph as built so far.
type AugmentRequest struct {
	Graph *ConfigGraph
}

// AugmentResult is what an augmentGraph handler returns: actions and
// dependency edges to add. Augmentation runs once, after all
// preprocessing.
type AugmentResult struct {
	AddActions      []action.Config
	AddDependencies []ImplicitRef
}

// Augment applies reg's registered augmentGraph handlers, in the order
// OrderedAugmenters resolves, and returns a new graph with their
// contributions merged in. The graph is rebuilt after each handler, so a
// later augmenter observes the actions and dependency edges contributed by
// an earlier one — each receives the graph as built so far.
//
// A plugin may not mutate an action whose internal.groupName was set by a
// different plugin's augmentation pass (the Open Question decision
// recorded in DESIGN.md) — enforced here by rejecting an AddActions entry
// that collides with an existing (kind, name) stamped by another plugin,
// and an AddDependencies entry whose From is such an action.
func Augment(ctx context.Context, g *ConfigGraph, augmenters []plugin.Augmenter, rebuild func([]action.Config) (*ConfigGraph, error)) (*ConfigGraph, error) {
	ordered, err := plugin.OrderedAugmenters(augmenters)
	if err != nil {
		return nil, err
	}

	configs := configsOf(g)
	owner := map[nodeKey]string{}
	for _, n := range g.All() {
		owner[n.key()] = n.Config.Internal.GroupName
	}

	for _, aug := range ordered {
		raw, err := aug.Handler(ctx, AugmentRequest{Graph: g})
		if err != nil {
			return nil, gardenerr.Wrap(gardenerr.KindPlugin, err, fmt.Sprintf("augmentGraph handler for plugin %q failed", aug.PluginName))
		}
		result, ok := raw.(AugmentResult)
		if !ok {
			return nil, gardenerr.Newf(gardenerr.KindPlugin, "augmentGraph handler for plugin %q returned an unexpected type %T", aug.PluginName, raw)
		}

		for _, a := range result.AddActions {
			k := nodeKey{a.Kind, a.Name}
			if existingOwner, exists := owner[k]; exists && existingOwner != "" && existingOwner != aug.PluginName {
				return nil, gardenerr.Newf(gardenerr.KindPlugin,
					"augmentGraph handler for plugin %q may not mutate action %s owned by %q", aug.PluginName, k, existingOwner)
			}
			a.Internal.GroupName = aug.PluginName
			configs = append(configs, a)
			owner[k] = aug.PluginName
		}

		for _, dep := range result.AddDependencies {
			k := nodeKey{dep.From.Kind, dep.From.Name}
			if existingOwner := owner[k]; existingOwner != "" && existingOwner != aug.PluginName {
				return nil, gardenerr.Newf(gardenerr.KindPlugin,
					"augmentGraph handler for plugin %q may not mutate action %s owned by %q", aug.PluginName, k, existingOwner)
			}
			for i := range configs {
				if configs[i].Kind == dep.From.Kind && configs[i].Name == dep.From.Name {
					configs[i].Dependencies = append(configs[i].Dependencies, dep.To)
				}
			}
		}

		g, err = rebuild(configs)
		if err != nil {
			return nil, gardenerr.Wrap(gardenerr.KindPlugin, err, fmt.Sprintf("rebuilding graph after %q's augmentGraph contribution", aug.PluginName))
		}
	}

	return g, nil
}

func configsOf(g *ConfigGraph) []action.Config {
	nodes := g.All()
	out := make([]action.Config, len(nodes))
	for i, n := range nodes {
		out[i] = n.Config
	}
	return out
}
