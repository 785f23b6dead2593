// Package graph implements Phase 1 of the Action Graph Builder. It
// discovers implicit dependencies from
// template references, merges them with explicit ones, orders configs
// topologically, resolves framework-level fields (leaving spec/variables
// lazy), and freezes the result as an immutable graph indexed by
// (kind, name).
package graph

import (
	"fmt"

	"github.com/garden-io/garden-core/pkg/action"
)

// ImplicitRef is one `actions.<kind>.<name>.<field path>` reference found
// while scanning a config body in partial mode.
type ImplicitRef struct {
	From      action.Ref // the action whose config contained the reference
	To        action.Ref // the referenced action
	FieldPath []string   // path past the name, e.g. ["outputs", "image"]
}

// Node is one preprocessed action in the graph: the original config (with
// framework-level fields resolved; Spec/Variables remain exactly as
// parsed, still lazy), plus its classified dependency edges.
type Node struct {
	Config action.Config

	// StatusDeps are dependencies this action only needs the *status* of
	// (static outputs, or non-output framework fields).
	StatusDeps []action.Ref
	// ProcessDeps are dependencies this action needs *executed*: runtime
	// (or unknown) output references, and explicit `dependencies`/`build`
	// entries always count as process-deps too ("ProcessTask's
	// process-deps = process tasks of all dependencies").
	ProcessDeps []action.Ref

	NeedsStaticOutputs   bool
	NeedsExecutedOutputs bool
}

func (n *Node) key() nodeKey { return nodeKey{n.Config.Kind, n.Config.Name} }

type nodeKey struct {
	Kind action.Kind
	Name string
}

// ConfigGraph is the immutable, arena-indexed result of Phase 1: every
// action reachable by (kind, name) in O(1), with O(dep) traversal over
// its edges.
type ConfigGraph struct {
	order []nodeKey
	nodes map[nodeKey]*Node
}

// Get looks up a node by (kind, name).
func (g *ConfigGraph) Get(kind action.Kind, name string) (*Node, bool) {
	n, ok := g.nodes[nodeKey{kind, name}]
	return n, ok
}

// Len returns the number of actions in the graph.
func (g *ConfigGraph) Len() int { return len(g.order) }

// All returns every node in topological order (dependencies before
// dependents).
func (g *ConfigGraph) All() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.nodes[k])
	}
	return out
}

func (k nodeKey) String() string {
	return fmt.Sprintf("%s.%s", k.Kind, k.Name)
}
