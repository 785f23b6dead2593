package template

import (
	"fmt"
	"sort"
)

// Structural operators are recognised at map-key positions before string
// evaluation of surrounding siblings. They decide the SHAPE of the
// resulting tree (whether a key/list slot exists at all, and what it
// expands to), so they are always evaluated eagerly — only plain scalar
// leaves can be left as Lazy values.
const (
	opMerge   = "$merge"
	opConcat  = "$concat"
	opIf      = "$if"
	opThen    = "$then"
	opElse    = "$else"
	opForEach = "$forEach"
	opReturn  = "$return"
	opFilter  = "$filter"
)

var reservedKeys = map[string]bool{
	opMerge: true, opConcat: true, opIf: true, opThen: true, opElse: true,
	opForEach: true, opReturn: true, opFilter: true,
}

// BuildValue walks a raw YAML-decoded tree (map[string]any / []any /
// string / float64 / bool / nil, as produced by goccy/go-yaml's generic
// decode) and resolves the structural operators into a plain Value tree.
//
// When lazy is true, plain scalar strings that contain a `${ … }`
// expression are left as Lazy values wrapping the whole string, deferring
// evaluation to whenever a consumer navigates to that leaf ("Lazy
// evaluation"); everything that determines shape ($merge/$concat/$if/
// $forEach operands) is still evaluated immediately, under mode, because
// the resulting tree shape cannot otherwise be decided. When lazy is
// false, every leaf is evaluated immediately too — used for phase-1
// framework-level fields (include/exclude/dependencies/timeout) that must
// be fully concrete before the graph can be built, and for final
// materialisation of a resolved config document.
func BuildValue(raw any, r Resolver, mode Mode, lazy bool) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return buildLeafString(t, r, mode, lazy)
	case bool, int, int64, float64:
		return FromNative(t), nil
	case []any:
		return buildList(t, r, mode, lazy)
	case map[string]any:
		return buildMap(t, r, mode, lazy)
	case []MapEntry:
		return buildOrderedMap(t, r, mode, lazy)
	default:
		return Value{}, fmt.Errorf("TemplateError: unsupported config value of type %T", raw)
	}
}

func buildLeafString(s string, r Resolver, mode Mode, lazy bool) (Value, error) {
	if !lazy {
		return EvaluateString(s, r, mode)
	}
	segs, err := ScanString(s)
	if err != nil {
		return Value{}, err
	}
	hasExpr := false
	for _, seg := range segs {
		if seg.isExpr {
			hasExpr = true
			break
		}
	}
	if !hasExpr {
		return String(s), nil
	}
	return Lazy(&LazyValue{Expr: &StringTemplate{Segments: segs}, Resolver: r}), nil
}

func buildList(items []any, r Resolver, mode Mode, lazy bool) (Value, error) {
	out := make([]Value, 0, len(items))
	for _, raw := range items {
		if m, ok := raw.(map[string]any); ok {
			if concatExpr, ok := soleKey(m, opConcat); ok {
				spliced, err := BuildValue(concatExpr, r, mode, false)
				if err != nil {
					return Value{}, err
				}
				list, ok := spliced.AsList()
				if !ok {
					return Value{}, fmt.Errorf("TemplateError: %s must evaluate to a list, got %s", opConcat, spliced.Kind())
				}
				out = append(out, list...)
				continue
			}
		}
		v, err := BuildValue(raw, r, mode, lazy)
		if err != nil {
			return Value{}, err
		}
		out = append(out, v)
	}
	return List(out), nil
}

// soleKey reports whether m contains exactly the one reserved key name
// (no siblings), returning its value. $concat is only recognised in this
// single-key form, as a "$concat: <list>" map-key operator appearing as
// one item in a list.
func soleKey(m map[string]any, key string) (any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func buildMap(m map[string]any, r Resolver, mode Mode, lazy bool) (Value, error) {
	for k := range m {
		if len(k) > 0 && k[0] == '$' && !reservedKeys[k] {
			return Value{}, fmt.Errorf("TemplateError: unknown structural operator %q", k)
		}
	}

	if cond, ok := m[opIf]; ok {
		return buildIf(cond, m, r, mode, lazy)
	}
	if mergeSrc, ok := m[opMerge]; ok {
		return buildMerge(mergeSrc, m, r, mode, lazy)
	}
	if iterable, ok := m[opForEach]; ok {
		return buildForEach(iterable, m, r, mode)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]MapEntry, 0, len(keys))
	for _, k := range keys {
		v, err := BuildValue(m[k], r, mode, lazy)
		if err != nil {
			return Value{}, err
		}
		if sub, ok := m[k].(map[string]any); ok && v.IsAbsent() {
			if _, isIf := sub[opIf]; isIf {
				continue
			}
		}
		entries = append(entries, MapEntry{Key: k, Value: v})
	}
	return Map(entries), nil
}

func buildOrderedMap(entries []MapEntry, r Resolver, mode Mode, lazy bool) (Value, error) {
	out := make([]MapEntry, 0, len(entries))
	for _, e := range entries {
		v, err := BuildValue(e.Value, r, mode, lazy)
		if err != nil {
			return Value{}, err
		}
		out = append(out, MapEntry{Key: e.Key, Value: v})
	}
	return Map(out), nil
}

// buildIf implements `$if: <cond>` with sibling `$then`/`$else` values
//. Any other keys alongside $if are ignored — only $then/$else are
// special. A missing $else with a falsy/absent condition removes the key
// entirely from the containing map (signalled by returning Absent()).
func buildIf(cond any, m map[string]any, r Resolver, mode Mode, lazy bool) (Value, error) {
	condVal, err := BuildValue(cond, r, mode, false)
	if err != nil {
		return Value{}, err
	}
	if condVal.IsAbsent() {
		if mode == ModePartial {
			return Absent(), nil
		}
		return Value{}, missingKeyError([]string{opIf})
	}
	if condVal.Truthy() {
		thenVal, ok := m[opThen]
		if !ok {
			return Value{}, fmt.Errorf("TemplateError: %s requires a %s", opIf, opThen)
		}
		return BuildValue(thenVal, r, mode, lazy)
	}
	elseVal, ok := m[opElse]
	if !ok {
		return Absent(), nil
	}
	return BuildValue(elseVal, r, mode, lazy)
}

// buildMerge implements `$merge: <expr|map>`: the merged map is the base,
// and every explicit sibling key in the containing map overrides it,
// regardless of declaration order.
func buildMerge(mergeSrc any, m map[string]any, r Resolver, mode Mode, lazy bool) (Value, error) {
	mergedVal, err := BuildValue(mergeSrc, r, mode, false)
	if err != nil {
		return Value{}, err
	}
	if mergedVal.IsAbsent() {
		mergedVal = Map(nil)
	}
	mergedEntries, ok := mergedVal.AsMap()
	if !ok {
		return Value{}, fmt.Errorf("TemplateError: %s must evaluate to a map, got %s", opMerge, mergedVal.Kind())
	}

	result := make(map[string]Value, len(mergedEntries))
	order := make([]string, 0, len(mergedEntries))
	for _, e := range mergedEntries {
		if _, exists := result[e.Key]; !exists {
			order = append(order, e.Key)
		}
		result[e.Key] = e.Value
	}

	explicitKeys := make([]string, 0, len(m))
	for k := range m {
		if k == opMerge {
			continue
		}
		explicitKeys = append(explicitKeys, k)
	}
	sort.Strings(explicitKeys)
	for _, k := range explicitKeys {
		v, err := BuildValue(m[k], r, mode, lazy)
		if err != nil {
			return Value{}, err
		}
		if sub, ok := m[k].(map[string]any); ok && v.IsAbsent() {
			if _, isIf := sub[opIf]; isIf {
				continue
			}
		}
		if _, exists := result[k]; !exists {
			order = append(order, k)
		}
		result[k] = v
	}

	entries := make([]MapEntry, 0, len(order))
	for _, k := range order {
		entries = append(entries, MapEntry{Key: k, Value: result[k]})
	}
	return Map(entries), nil
}

// buildForEach implements `$forEach: <iterable>` with sibling `$return`
// (required) and `$filter` (optional). Inside $return/$filter, the
// identifiers item.value and item.key are bound to the current element.
func buildForEach(iterable any, m map[string]any, r Resolver, mode Mode) (Value, error) {
	returnTpl, ok := m[opReturn]
	if !ok {
		return Value{}, fmt.Errorf("TemplateError: %s requires a %s", opForEach, opReturn)
	}
	filterTpl := m[opFilter]

	iterVal, err := BuildValue(iterable, r, mode, false)
	if err != nil {
		return Value{}, err
	}
	if iterVal.IsAbsent() {
		if mode == ModePartial {
			return Absent(), nil
		}
		return Value{}, missingKeyError([]string{opForEach})
	}

	type elem struct {
		key Value
		val Value
	}
	var elems []elem
	if list, ok := iterVal.AsList(); ok {
		for i, v := range list {
			elems = append(elems, elem{key: Number(float64(i)), val: v})
		}
	} else if entries, ok := iterVal.AsMap(); ok {
		for _, e := range entries {
			elems = append(elems, elem{key: String(e.Key), val: e.Value})
		}
	} else {
		return Value{}, fmt.Errorf("TemplateError: %s must evaluate to a list or map, got %s", opForEach, iterVal.Kind())
	}

	out := make([]Value, 0, len(elems))
	for _, e := range elems {
		itemR := &itemResolver{key: e.key, value: e.val, parent: r}

		if filterTpl != nil {
			fv, err := BuildValue(filterTpl, itemR, mode, false)
			if err != nil {
				return Value{}, err
			}
			if fv.IsAbsent() {
				if mode == ModePartial {
					return Absent(), nil
				}
				return Value{}, missingKeyError([]string{opForEach, opFilter})
			}
			if !fv.Truthy() {
				continue
			}
		}

		rv, err := BuildValue(returnTpl, itemR, mode, false)
		if err != nil {
			return Value{}, err
		}
		out = append(out, rv)
	}
	return List(out), nil
}

// itemResolver layers the current $forEach element (exposed as item.value
// and item.key) over the enclosing resolver, so nested identifiers that
// aren't "item" still resolve through the outer context.
type itemResolver struct {
	key    Value
	value  Value
	parent Resolver
}

func (ir *itemResolver) Resolve(name string, mode Mode) (Value, error) {
	if name == "item" {
		return Map([]MapEntry{
			{Key: "key", Value: ir.key},
			{Key: "value", Value: ir.value},
		}), nil
	}
	return ir.parent.Resolve(name, mode)
}
