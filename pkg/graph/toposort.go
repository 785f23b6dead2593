package graph

import (
	"sort"
	"strings"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/gardenerr"
)

// topoSort orders keys so that every edge in edges (from -> to, meaning
// "from depends on to") places "to" before "from" in the result. On a
// cycle it fails citing every participating name.
func topoSort(keys []nodeKey, edges map[nodeKey][]nodeKey) ([]nodeKey, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[nodeKey]int, len(keys))
	var order []nodeKey
	var stack []nodeKey

	var visit func(k nodeKey) error
	visit = func(k nodeKey) error {
		switch color[k] {
		case black:
			return nil
		case gray:
			cycle := cycleNames(stack, k)
			return gardenerr.Newf(gardenerr.KindConfiguration, "dependency cycle detected: %s", strings.Join(cycle, " -> "))
		}
		color[k] = gray
		stack = append(stack, k)

		deps := append([]nodeKey(nil), edges[k]...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		color[k] = black
		order = append(order, k)
		return nil
	}

	sorted := append([]nodeKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	for _, k := range sorted {
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func cycleNames(stack []nodeKey, closing nodeKey) []string {
	start := 0
	for i, k := range stack {
		if k == closing {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, k := range stack[start:] {
		names = append(names, k.String())
	}
	names = append(names, closing.String())
	return names
}

// refKey converts an action.Ref to the internal nodeKey type.
func refKey(r action.Ref) nodeKey { return nodeKey{r.Kind, r.Name} }
