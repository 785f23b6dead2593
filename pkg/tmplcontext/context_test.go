package tmplcontext

import (
	"testing"

	"github.com/garden-io/garden-core/pkg/template"
	"github.com/stretchr/testify/require"
)

func TestVarPrecedence_EnvironmentOverridesProject(t *testing.T) {
	project := NewProjectContext("demo", map[string]any{"region": "us-east-1", "tier": "small"})
	env := NewEnvironmentContext(project, "prod", map[string]any{"region": "us-east-1", "tier": "small"}, map[string]any{"tier": "large"})

	expr, err := template.Parse("var.tier")
	require.NoError(t, err)
	v, err := template.Evaluate(expr, env, template.ModeStrict)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "large", s)

	expr, err = template.Parse("var.region")
	require.NoError(t, err)
	v, err = template.Evaluate(expr, env, template.ModeStrict)
	require.NoError(t, err)
	s, _ = v.AsString()
	require.Equal(t, "us-east-1", s, "keys not overridden by a later layer must survive from the project layer")
}

func TestActionPreprocessContext_HidesActionOutputs(t *testing.T) {
	project := NewProjectContext("demo", nil)
	env := NewEnvironmentContext(project, "dev", nil, nil)
	pre := NewActionPreprocessContext(env, ActionIdentity{Name: "build", Kind: "Build", Type: "docker"}, nil, nil, nil)

	expr, err := template.Parse("actions.api.outputs.image")
	require.NoError(t, err)

	v, err := template.Evaluate(expr, pre, template.ModePartial)
	require.NoError(t, err)
	require.True(t, v.IsAbsent(), "dependency outputs must not be visible during preprocessing")

	_, err = template.Evaluate(expr, pre, template.ModeStrict)
	require.Error(t, err)
}

func TestActionFullContext_ExposesDependencyOutputs(t *testing.T) {
	project := NewProjectContext("demo", nil)
	env := NewEnvironmentContext(project, "dev", nil, nil)
	full := NewActionFullContext(env, ActionIdentity{Name: "deploy", Kind: "Deploy", Type: "kubernetes"}, nil, nil, nil,
		map[string]map[string]any{"api": {"image": "registry/api:abc123"}}, nil)

	expr, err := template.Parse("actions.api.outputs.image")
	require.NoError(t, err)
	v, err := template.Evaluate(expr, full, template.ModeStrict)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "registry/api:abc123", s)
}

func TestProviderContext_ExposesOutputsUnderProviderName(t *testing.T) {
	project := NewProjectContext("demo", nil)
	env := NewEnvironmentContext(project, "dev", nil, nil)
	prov := NewProviderContext(env, ProviderOutputs{"kubernetes": {"namespace": "demo-dev"}})

	expr, err := template.Parse("providers.kubernetes.namespace")
	require.NoError(t, err)
	v, err := template.Evaluate(expr, prov, template.ModeStrict)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "demo-dev", s)
}

func TestUnknownRoot_StrictErrorsPartialAbsent(t *testing.T) {
	project := NewProjectContext("demo", nil)

	expr, err := template.Parse("bogus.field")
	require.NoError(t, err)

	_, err = template.Evaluate(expr, project, template.ModeStrict)
	require.Error(t, err)

	v, err := template.Evaluate(expr, project, template.ModePartial)
	require.NoError(t, err)
	require.True(t, v.IsAbsent())
}
