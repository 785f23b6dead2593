package pipeline

import (
	"testing"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/configload"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	ref, err := parseRef("build.api")
	require.NoError(t, err)
	require.Equal(t, action.Ref{Kind: action.KindBuild, Name: "api"}, ref)

	_, err = parseRef("nokind")
	require.Error(t, err)

	_, err = parseRef("bogus.api")
	require.Error(t, err)
}

func TestDecodeAction_FillsDefaultsAndSource(t *testing.T) {
	doc := configload.RawDoc{
		Kind: configload.KindDeploy,
		Name: "web",
		Body: map[string]any{
			"type":         "container",
			"dependencies": []any{"build.web"},
			"source": map[string]any{
				"repository": "https://example.com/repo.git",
				"revision":   "v1.0.0",
			},
			"spec": map[string]any{"replicas": 2},
		},
		BasePath:       "/proj/web",
		ConfigFilePath: "/proj/web/garden.yml",
	}

	cfg, err := decodeAction(doc)
	require.NoError(t, err)

	require.Equal(t, action.KindDeploy, cfg.Kind)
	require.Equal(t, "web", cfg.Name)
	require.Equal(t, "container", cfg.Type)
	require.Equal(t, []action.Ref{{Kind: action.KindBuild, Name: "web"}}, cfg.Dependencies)
	require.Equal(t, action.DefaultTimeoutSeconds(action.KindDeploy), cfg.Timeout)
	require.NotNil(t, cfg.Source.Remote)
	require.Equal(t, "https://example.com/repo.git", cfg.Source.Remote.Repository)
	require.Equal(t, "v1.0.0", cfg.Source.Remote.Revision)
	require.Equal(t, "/proj/web", cfg.Internal.BasePath)
	require.Equal(t, "/proj/web/garden.yml", cfg.Internal.ConfigFilePath)
	require.Equal(t, map[string]any{"replicas": 2}, cfg.Spec)
}

func TestDecodeAction_RejectsNonActionKind(t *testing.T) {
	_, err := decodeAction(configload.RawDoc{Kind: configload.KindProject})
	require.Error(t, err)
}

func TestDecodeAction_HonoursExplicitTimeoutAndVersionPolicy(t *testing.T) {
	doc := configload.RawDoc{
		Kind: configload.KindBuild,
		Name: "api",
		Body: map[string]any{
			"type":    "container",
			"timeout": 42,
			"version": map[string]any{
				"excludeFields": []any{"spec.debug"},
				"excludeValues": []any{"spec.tag"},
			},
		},
	}
	cfg, err := decodeAction(doc)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Timeout)
	require.Equal(t, []string{"spec.debug"}, cfg.Version.ExcludeFields)
	require.Equal(t, []string{"spec.tag"}, cfg.Version.ExcludeValues)
}

func TestDecodeModule(t *testing.T) {
	doc := configload.RawDoc{
		Kind: configload.KindModule,
		Name: "backend",
		Body: map[string]any{
			"type":     "container",
			"disabled": true,
			"include":  []any{"src/**"},
			"spec":     map[string]any{"dockerfile": "Dockerfile"},
		},
		BasePath: "/proj/backend",
	}

	mod := decodeModule(doc)
	require.Equal(t, "backend", mod.Name)
	require.Equal(t, "container", mod.Type)
	require.Equal(t, "container", mod.Plugin)
	require.True(t, mod.Disabled)
	require.Equal(t, []string{"src/**"}, mod.Include)
	require.Equal(t, "/proj/backend", mod.BasePath)
}

func TestDecodeConfigTemplateAndRenderTemplate(t *testing.T) {
	tmplDoc := configload.RawDoc{
		Kind: configload.KindConfigTemplate,
		Name: "my-template",
		Body: map[string]any{
			"inputs": map[string]any{"type": "object"},
			"configs": []any{
				map[string]any{"kind": "Deploy", "name": "${inputs.name}"},
			},
		},
		BasePath: "/proj",
	}
	def := decodeConfigTemplate(tmplDoc)
	require.Equal(t, "my-template", def.Name)
	require.Len(t, def.Configs, 1)
	require.Equal(t, "/proj", def.BasePath)

	renderDoc := configload.RawDoc{
		Kind: configload.KindRenderTemplate,
		Name: "web-instance",
		Body: map[string]any{
			"template": "my-template",
			"inputs":   map[string]any{"name": "web"},
		},
	}
	req := decodeRenderTemplate(renderDoc)
	require.Equal(t, "my-template", req.TemplateName)
	require.Equal(t, "web-instance", req.InstanceName)
	require.Equal(t, map[string]any{"name": "web"}, req.Inputs)
}

func TestDecodeProject_FallsBackToBodyName(t *testing.T) {
	name, vars := decodeProject(configload.RawDoc{
		Body: map[string]any{"name": "my-project", "variables": map[string]any{"env": "dev"}},
	})
	require.Equal(t, "my-project", name)
	require.Equal(t, map[string]any{"env": "dev"}, vars)

	name, _ = decodeProject(configload.RawDoc{Name: "explicit-name", Body: map[string]any{}})
	require.Equal(t, "explicit-name", name)
}

func TestGetHelpers(t *testing.T) {
	body := map[string]any{
		"str":   "hello",
		"bool":  true,
		"intv":  7,
		"float": 3.0,
		"strv":  "9",
		"slice": []any{"a", "b", 3},
		"map":   map[string]any{"k": "v"},
	}

	require.Equal(t, "hello", getString(body, "str"))
	require.True(t, getBool(body, "bool"))
	require.Equal(t, 7, getInt(body, "intv"))
	require.Equal(t, 3, getInt(body, "float"))
	require.Equal(t, 9, getInt(body, "strv"))
	require.Equal(t, 0, getInt(body, "missing"))
	require.Equal(t, []string{"a", "b"}, getStringSlice(body, "slice"))
	require.Equal(t, map[string]any{"k": "v"}, getMap(body, "map"))
}
