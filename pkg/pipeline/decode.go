package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/garden-io/garden-core/pkg/action"
	"github.com/garden-io/garden-core/pkg/configload"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/moduleconvert"
	"github.com/garden-io/garden-core/pkg/rendertemplate"
)

// refKindFromToken maps the lowercase kind token a `dependencies` or
// `build` entry uses ("build.api") to an action.Kind, mirroring the
// template-reference convention graph.kindFromPathSegment uses for
// `${actions.build.api...}`.
func refKindFromToken(token string) (action.Kind, bool) {
	switch strings.ToLower(token) {
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

func parseRef(s string) (action.Ref, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return action.Ref{}, gardenerr.Newf(gardenerr.KindConfiguration, "invalid dependency reference %q: expected <kind>.<name>", s)
	}
	kind, ok := refKindFromToken(parts[0])
	if !ok {
		return action.Ref{}, gardenerr.Newf(gardenerr.KindConfiguration, "invalid dependency reference %q: unknown kind %q", s, parts[0])
	}
	return action.Ref{Kind: kind, Name: parts[1]}, nil
}

func getString(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func getBool(body map[string]any, key string) bool {
	b, _ := body[key].(bool)
	return b
}

func getInt(body map[string]any, key string) int {
	switch v := body[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func getStringSlice(body map[string]any, key string) []string {
	raw, _ := body[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getMap(body map[string]any, key string) map[string]any {
	m, _ := body[key].(map[string]any)
	return m
}

func getRefs(body map[string]any, key string) ([]action.Ref, error) {
	raw, _ := body[key].([]any)
	out := make([]action.Ref, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		ref, err := parseRef(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// decodeAction turns one validated Build/Deploy/Run/Test RawDoc into an
// action.Config, leaving Spec/Variables exactly as parsed from YAML so the
// framework-level fields below are the only ones resolved before the
// action reaches the graph builder.
func decodeAction(doc configload.RawDoc) (action.Config, error) {
	kind, ok := map[configload.Kind]action.Kind{
		configload.KindBuild:  action.KindBuild,
		configload.KindDeploy: action.KindDeploy,
		configload.KindRun:    action.KindRun,
		configload.KindTest:   action.KindTest,
	}[doc.Kind]
	if !ok {
		return action.Config{}, gardenerr.Newf(gardenerr.KindConfiguration, "%s is not an action kind", doc.Kind)
	}

	deps, err := getRefs(doc.Body, "dependencies")
	if err != nil {
		return action.Config{}, err
	}

	cfg := action.Config{
		Kind:         kind,
		Type:         getString(doc.Body, "type"),
		Name:         doc.Name,
		Dependencies: deps,
		Disabled:     getBool(doc.Body, "disabled"),
		Include:      getStringSlice(doc.Body, "include"),
		Exclude:      getStringSlice(doc.Body, "exclude"),
		Variables:    getMap(doc.Body, "variables"),
		Varfiles:     getStringSlice(doc.Body, "varfiles"),
		Timeout:      getInt(doc.Body, "timeout"),
		Spec:         getMap(doc.Body, "spec"),
		Build:        getString(doc.Body, "build"),
		Internal: action.Internal{
			BasePath:       doc.BasePath,
			ConfigFilePath: doc.ConfigFilePath,
		},
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = action.DefaultTimeoutSeconds(kind)
	}
	if src, ok := doc.Body["source"].(map[string]any); ok {
		if localPath := getString(src, "path"); localPath != "" {
			cfg.Source.LocalPath = localPath
		}
		if repo := getString(src, "repository"); repo != "" {
			cfg.Source.Remote = &action.RemoteSource{Repository: repo, Revision: getString(src, "revision")}
		}
	}
	if ver, ok := doc.Body["version"].(map[string]any); ok {
		cfg.Version = action.VersionPolicy{
			ExcludeFields: getStringSlice(ver, "excludeFields"),
			ExcludeValues: getStringSlice(ver, "excludeValues"),
		}
	}
	return cfg, nil
}

// decodeModule turns a validated Module RawDoc into a moduleconvert.Module,
// ready for Convert to dispatch to its plugin's module.convert handler.
func decodeModule(doc configload.RawDoc) moduleconvert.Module {
	return moduleconvert.Module{
		Name:      doc.Name,
		Type:      getString(doc.Body, "type"),
		Plugin:    getString(doc.Body, "type"),
		Disabled:  getBool(doc.Body, "disabled"),
		Include:   getStringSlice(doc.Body, "include"),
		Exclude:   getStringSlice(doc.Body, "exclude"),
		Variables: getMap(doc.Body, "variables"),
		Spec:      getMap(doc.Body, "spec"),
		BasePath:  doc.BasePath,
	}
}

// decodeConfigTemplate turns a validated ConfigTemplate RawDoc into a
// rendertemplate.Definition.
func decodeConfigTemplate(doc configload.RawDoc) rendertemplate.Definition {
	rawConfigs, _ := doc.Body["configs"].([]any)
	configs := make([]map[string]any, 0, len(rawConfigs))
	for _, c := range rawConfigs {
		if m, ok := c.(map[string]any); ok {
			configs = append(configs, m)
		}
	}
	return rendertemplate.Definition{
		Name:         doc.Name,
		InputsSchema: getMap(doc.Body, "inputs"),
		Configs:      configs,
		BasePath:     doc.BasePath,
	}
}

// decodeRenderTemplate turns a validated RenderTemplate RawDoc into a
// rendertemplate.Request.
func decodeRenderTemplate(doc configload.RawDoc) rendertemplate.Request {
	return rendertemplate.Request{
		TemplateName: getString(doc.Body, "template"),
		InstanceName: doc.Name,
		Inputs:       getMap(doc.Body, "inputs"),
	}
}

// decodeProject turns the (exactly one expected) Project RawDoc into its
// name and top-level variables.
func decodeProject(doc configload.RawDoc) (string, map[string]any) {
	name := doc.Name
	if name == "" {
		name = fmt.Sprintf("%v", doc.Body["name"])
	}
	return name, getMap(doc.Body, "variables")
}
