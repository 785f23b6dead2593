package rendertemplate

import (
	"encoding/json"
	"strings"

	"github.com/garden-io/garden-core/pkg/template"
)

// remarshalInto round-trips raw (a map[string]any decoded from YAML) into
// dst via JSON, relying on jsonschema.Schema's own json tags to populate
// its fields — the reflection-friendly shape DESIGN.md calls out as the
// reason this component uses jsonschema-go instead of the v6 compiler API.
func remarshalInto(raw map[string]any, dst any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// substituteInputs recursively walks a raw YAML-decoded value, replacing
// only `${inputs....}` expressions with their resolved value and leaving
// every other string (including other `${...}` expressions) exactly as
// written. This is deliberately narrower than template.BuildValue: at
// render time no other context layer exists yet, so only `inputs` can be
// resolved.
func substituteInputs(raw any, inputs template.Value) (any, error) {
	switch t := raw.(type) {
	case string:
		return substituteInputsInString(t, inputs)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			rv, err := substituteInputs(v, inputs)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			rv, err := substituteInputs(v, inputs)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return raw, nil
	}
}

type inputsOnlyResolver struct{ inputs template.Value }

func (r inputsOnlyResolver) Resolve(name string, mode template.Mode) (template.Value, error) {
	if name == "inputs" {
		return r.inputs, nil
	}
	return template.Absent(), nil // never reached: callers only evaluate exprs rooted at "inputs"
}

// substituteInputsInString scans s for `${ ... }` occurrences (the same
// balanced-brace scan as template.ScanString) and evaluates only the ones
// whose root identifier is "inputs", preserving everything else —
// including unrelated `${...}` expressions — as literal source text so a
// later phase can still parse and evaluate them against the real context.
func substituteInputsInString(s string, inputs template.Value) (any, error) {
	r := []rune(s)
	var b strings.Builder
	i := 0
	var onlyExprValue any
	exprCount := 0

	for i < len(r) {
		switch {
		case r[i] == '$' && i+1 < len(r) && r[i+1] == '$':
			b.WriteString("$$")
			i += 2
		case r[i] == '$' && i+1 < len(r) && r[i+1] == '{':
			depth := 1
			j := i + 2
			for j < len(r) && depth > 0 {
				switch r[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			if depth != 0 {
				b.WriteString(string(r[i:]))
				i = len(r)
				break
			}
			body := string(r[i+2 : j])
			exprCount++

			if isInputsRooted(body) {
				expr, err := template.Parse(body)
				if err != nil {
					return nil, err
				}
				v, err := template.Evaluate(expr, inputsOnlyResolver{inputs: inputs}, template.ModeStrict)
				if err != nil {
					return nil, err
				}
				onlyExprValue = template.ToNative(v)
				b.WriteString(stringifyNative(onlyExprValue))
			} else {
				b.WriteString("${")
				b.WriteString(body)
				b.WriteString("}")
				onlyExprValue = nil // this slot wasn't a resolved inputs value
			}
			i = j + 1
		default:
			b.WriteRune(r[i])
			i++
		}
	}

	// A string that is exactly one `${inputs...}` expression (no
	// surrounding literal text) yields that expression's native type,
	// mirroring the full evaluator's own rule for single-expression strings.
	if exprCount == 1 && strings.TrimSpace(s) == s {
		trimmed := strings.TrimPrefix(strings.TrimSuffix(s, "}"), "${")
		if trimmed != s && isInputsRooted(trimmed) && onlyExprValue != nil {
			return onlyExprValue, nil
		}
	}
	return b.String(), nil
}

func isInputsRooted(exprSrc string) bool {
	trimmed := strings.TrimSpace(exprSrc)
	return trimmed == "inputs" || strings.HasPrefix(trimmed, "inputs.") || strings.HasPrefix(trimmed, "inputs[")
}

func stringifyNative(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
