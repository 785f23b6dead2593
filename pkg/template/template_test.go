package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mapResolver resolves root identifiers from a flat map, for tests that
// don't need the full layered context hierarchy (pkg/tmplcontext).
type mapResolver map[string]Value

func (m mapResolver) Resolve(name string, mode Mode) (Value, error) {
	v, ok := m[name]
	if !ok {
		if mode == ModeStrict {
			return Value{}, missingKeyError([]string{name})
		}
		return Absent(), nil
	}
	return v, nil
}

func evalString(t *testing.T, src string, r Resolver, mode Mode) Value {
	t.Helper()
	expr, err := Parse(src)
	require.NoError(t, err)
	v, err := Evaluate(expr, r, mode)
	require.NoError(t, err)
	return v
}

func TestEvaluate_ArithmeticAndPrecedence(t *testing.T) {
	r := mapResolver{}
	v := evalString(t, "1 + 2 * 3", r, ModeStrict)
	n, ok := v.AsNumber()
	require.True(t, ok)
	require.Equal(t, float64(7), n)
}

func TestEvaluate_TernaryAndComparison(t *testing.T) {
	r := mapResolver{"var": Map([]MapEntry{{Key: "count", Value: Number(3)}})}
	v := evalString(t, "var.count > 2 ? 'many' : 'few'", r, ModeStrict)
	s, ok := v.AsString()
	require.True(t, ok)
	require.Equal(t, "many", s)
}

func TestEvaluate_LogicalOr_PartialMasksAbsent(t *testing.T) {
	r := mapResolver{}
	expr, err := Parse("missing || 'fallback'")
	require.NoError(t, err)

	v, err := Evaluate(expr, r, ModePartial)
	require.NoError(t, err)
	require.True(t, v.IsAbsent())

	v, err = Evaluate(expr, r, ModeStrict)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "fallback", s)
}

func TestEvaluate_LogicalAnd_ShortCircuitsOnFalsy(t *testing.T) {
	r := mapResolver{"var": Map([]MapEntry{{Key: "enabled", Value: Bool(false)}})}
	v := evalString(t, "var.enabled && missing", r, ModeStrict)
	b, ok := v.AsBool()
	require.True(t, ok)
	require.False(t, b)
}

func TestEvaluate_StrictModeMissingKeyErrors(t *testing.T) {
	r := mapResolver{"var": Map(nil)}
	expr, err := Parse("var.nope")
	require.NoError(t, err)
	_, err = Evaluate(expr, r, ModeStrict)
	require.Error(t, err)
}

func TestEvaluate_PartialModeMissingKeyIsAbsent(t *testing.T) {
	r := mapResolver{"var": Map(nil)}
	v := evalString(t, "var.nope", r, ModePartial)
	require.True(t, v.IsAbsent())
}

func TestHelpers_CamelKebabSnake(t *testing.T) {
	r := mapResolver{}
	require.Equal(t, "fooBarBaz", mustString(t, evalString(t, "camelCase('foo-bar_baz')", r, ModeStrict)))
	require.Equal(t, "foo-bar-baz", mustString(t, evalString(t, "kebabCase('fooBarBaz')", r, ModeStrict)))
	require.Equal(t, "foo_bar_baz", mustString(t, evalString(t, "snakeCase('foo-bar baz')", r, ModeStrict)))
}

func mustString(t *testing.T, v Value) string {
	t.Helper()
	s, ok := v.AsString()
	require.True(t, ok)
	return s
}

func TestEvaluateString_SingleExpressionYieldsNativeType(t *testing.T) {
	r := mapResolver{"var": Map([]MapEntry{{Key: "count", Value: Number(3)}})}
	v, err := EvaluateString("${var.count}", r, ModeStrict)
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	require.Equal(t, float64(3), n)
}

func TestEvaluateString_MixedTextConcatenates(t *testing.T) {
	r := mapResolver{"var": Map([]MapEntry{{Key: "name", Value: String("api")}})}
	v, err := EvaluateString("service-${var.name}", r, ModeStrict)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "service-api", s)
}

func TestEvaluateString_DollarDollarEscapesLiteralDollar(t *testing.T) {
	r := mapResolver{}
	v, err := EvaluateString("cost: $$5", r, ModeStrict)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "cost: $5", s)
}

func TestBuildValue_PlainMapAndListPassThrough(t *testing.T) {
	r := mapResolver{}
	raw := map[string]any{
		"name": "api",
		"tags": []any{"a", "b"},
	}
	v, err := BuildValue(raw, r, ModeStrict, false)
	require.NoError(t, err)
	name, ok := v.MapGet("name")
	require.True(t, ok)
	require.Equal(t, "api", mustString(t, name))
	tags, ok := v.MapGet("tags")
	require.True(t, ok)
	list, ok := tags.AsList()
	require.True(t, ok)
	require.Len(t, list, 2)
}

func TestBuildValue_IfThenElse(t *testing.T) {
	r := mapResolver{"var": Map([]MapEntry{{Key: "prod", Value: Bool(true)}})}
	raw := map[string]any{
		"$if":   "${var.prod}",
		"$then": "release",
		"$else": "debug",
	}
	v, err := BuildValue(raw, r, ModeStrict, false)
	require.NoError(t, err)
	require.Equal(t, "release", mustString(t, v))
}

func TestBuildValue_IfWithoutElseIsAbsentWhenFalsy(t *testing.T) {
	r := mapResolver{"var": Map([]MapEntry{{Key: "prod", Value: Bool(false)}})}
	raw := map[string]any{
		"$if":   "${var.prod}",
		"$then": "release",
	}
	v, err := BuildValue(raw, r, ModeStrict, false)
	require.NoError(t, err)
	require.True(t, v.IsAbsent())
}

func TestBuildValue_Merge_ExplicitKeysOverrideMerged(t *testing.T) {
	r := mapResolver{
		"base": Map([]MapEntry{
			{Key: "timeout", Value: Number(30)},
			{Key: "retries", Value: Number(1)},
		}),
	}
	raw := map[string]any{
		"$merge":  "${base}",
		"retries": "3",
	}
	v, err := BuildValue(raw, r, ModeStrict, false)
	require.NoError(t, err)

	timeout, ok := v.MapGet("timeout")
	require.True(t, ok)
	n, _ := timeout.AsNumber()
	require.Equal(t, float64(30), n)

	retries, ok := v.MapGet("retries")
	require.True(t, ok)
	require.Equal(t, "3", mustString(t, retries))
}

func TestBuildValue_ConcatSplicesListInPlace(t *testing.T) {
	r := mapResolver{"extra": List([]Value{String("c"), String("d")})}
	raw := []any{
		"a",
		"b",
		map[string]any{"$concat": "${extra}"},
	}
	v, err := BuildValue(raw, r, ModeStrict, false)
	require.NoError(t, err)
	list, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, list, 4)
	require.Equal(t, "d", mustString(t, list[3]))
}

func TestBuildValue_ForEachWithFilterAndItemBindings(t *testing.T) {
	r := mapResolver{"names": List([]Value{String("web"), String("worker"), String("db")})}
	raw := map[string]any{
		"$forEach": "${names}",
		"$filter":  "${item.value != 'db'}",
		"$return":  "svc-${item.value}",
	}
	v, err := BuildValue(raw, r, ModeStrict, false)
	require.NoError(t, err)
	list, ok := v.AsList()
	require.True(t, ok)
	require.Len(t, list, 2)
	require.Equal(t, "svc-web", mustString(t, list[0]))
	require.Equal(t, "svc-worker", mustString(t, list[1]))
}

func TestBuildValue_UnknownDollarKeyIsError(t *testing.T) {
	r := mapResolver{}
	raw := map[string]any{"$bogus": "x"}
	_, err := BuildValue(raw, r, ModeStrict, false)
	require.Error(t, err)
}

func TestBuildValue_LazyLeafDefersEvaluation(t *testing.T) {
	calls := 0
	r := countingResolver{inner: mapResolver{"var": Map([]MapEntry{{Key: "a", Value: Number(1)}, {Key: "b", Value: Number(2)}})}, count: &calls}
	raw := map[string]any{
		"a": "${var.a}",
		"b": "${var.b}",
	}
	v, err := BuildValue(raw, r, ModeStrict, true)
	require.NoError(t, err)
	require.Equal(t, 0, calls, "no lazy leaf should be forced while just building the tree")

	a, ok := v.MapGet("a")
	require.True(t, ok)
	require.True(t, a.IsLazy())
	forced, err := force(a, ModeStrict)
	require.NoError(t, err)
	n, _ := forced.AsNumber()
	require.Equal(t, float64(1), n)
}

type countingResolver struct {
	inner Resolver
	count *int
}

func (c countingResolver) Resolve(name string, mode Mode) (Value, error) {
	*c.count++
	return c.inner.Resolve(name, mode)
}

func TestForce_CyclicReferenceRaisesTemplateError(t *testing.T) {
	lv := &LazyValue{}
	selfResolver := cycleResolver{lv: lv}
	expr, err := Parse("self")
	require.NoError(t, err)
	lv.Expr = expr
	lv.Resolver = selfResolver

	_, err = force(Lazy(lv), ModeStrict)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cyclic")
}

type cycleResolver struct{ lv *LazyValue }

func (c cycleResolver) Resolve(name string, mode Mode) (Value, error) {
	return Lazy(c.lv), nil
}

func TestProxy_ReadOnlyOverList(t *testing.T) {
	v := List([]Value{String("a"), String("b"), String("c")})
	p, err := NewProxy(v)
	require.NoError(t, err)
	require.Equal(t, 3, p.Length())
	elem, err := p.At(1)
	require.NoError(t, err)
	require.Equal(t, "b", mustString(t, elem))
	require.Error(t, p.Set("0", String("z")))
	require.Error(t, p.Delete("0"))
}

func TestProxy_EntriesPreserveDeclarationOrderForMaps(t *testing.T) {
	v := Map([]MapEntry{{Key: "z", Value: Number(1)}, {Key: "a", Value: Number(2)}})
	p, err := NewProxy(v)
	require.NoError(t, err)
	entries := p.Entries()
	require.Equal(t, "z", entries[0].Key)
	require.Equal(t, "a", entries[1].Key)
}
