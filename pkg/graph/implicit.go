package graph

import (
	"strings"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/template"
)

// kindFromPathSegment maps the lowercase kind token used in template
// references ("build", "deploy", "run", "test") to action.Kind.
func kindFromPathSegment(seg string) (action.Kind, bool) {
	switch strings.ToLower(seg) {
	case "build":
		return action.KindBuild, true
	case "deploy":
		return action.KindDeploy, true
	case "run":
		return action.KindRun, true
	case "test":
		return action.KindTest, true
	default:
		return "", false
	}
}

// scanImplicitRefs runs the Template Expression Engine in partial mode
// (implicitly: CollectIdentPaths never resolves anything, so there is no
// mode to pass) over every string field reachable from body, collecting
// every `actions.<kind>.<name>.*` reference.
func scanImplicitRefs(from action.Ref, body any) ([]ImplicitRef, error) {
	var refs []ImplicitRef
	var walkErr error

	var walk func(v any)
	walk = func(v any) {
		if walkErr != nil {
			return
		}
		switch t := v.(type) {
		case string:
			paths, err := template.CollectIdentPaths(t)
			if err != nil {
				walkErr = err
				return
			}
			for _, p := range paths {
				if len(p) < 3 || p[0] != "actions" {
					continue
				}
				kind, ok := kindFromPathSegment(p[1])
				if !ok {
					continue
				}
				refs = append(refs, ImplicitRef{
					From:      from,
					To:        action.Ref{Kind: kind, Name: p[2]},
					FieldPath: p[3:],
				})
			}
		case map[string]any:
			for _, vv := range t {
				walk(vv)
			}
		case []any:
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	walk(body)
	return refs, walkErr
}

// classify determines whether ref forces execution of its target. A
// reference to a non-output field is always static. A reference to
// `outputs.*` is static only if the target's plugin action type declares
// that specific output static; everything else — including an unknown
// action type — forces execution.
func classify(ref ImplicitRef, targetType string, isStaticOutput func(actionType, output string) bool) (needsStatic, needsExecuted bool) {
	if len(ref.FieldPath) == 0 || ref.FieldPath[0] != "outputs" {
		return true, false
	}
	if len(ref.FieldPath) < 2 {
		// A bare `outputs` reference (no specific field) can't be proven
		// static; be conservative and force execution.
		return false, true
	}
	output := ref.FieldPath[1]
	if isStaticOutput(targetType, output) {
		return true, false
	}
	return false, true
}
