package configload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestWalk_FindsAllDocumentsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.garden.yml", "kind: Project\nname: demo\n")
	writeFile(t, dir, "api.garden.yml", "kind: Build\ntype: container\nname: api\n---\nkind: Deploy\ntype: container\nname: api\ndependencies: [\"build.api\"]\n")

	docs, err := Walk(dir, WalkOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	var kinds []string
	for _, d := range docs {
		kinds = append(kinds, string(d.Kind))
	}
	require.ElementsMatch(t, []string{"Project", "Build", "Deploy"}, kinds)
}

func TestWalk_SkipsIgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	writeFile(t, filepath.Join(dir, ".git"), "bad.garden.yml", "kind: Build\ntype: x\nname: should-not-load\n")
	writeFile(t, dir, "good.garden.yml", "kind: Build\ntype: container\nname: ok\n")

	docs, err := Walk(dir, WalkOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "ok", docs[0].Name)
}

func TestWalk_IncludeExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "services", "api"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "services", "worker"), 0o755))
	writeFile(t, filepath.Join(dir, "services", "api"), "action.garden.yml", "kind: Build\ntype: container\nname: api\n")
	writeFile(t, filepath.Join(dir, "services", "worker"), "action.garden.yml", "kind: Build\ntype: container\nname: worker\n")

	docs, err := Walk(dir, WalkOptions{Include: []string{"services/api/**"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "api", docs[0].Name)
}

func TestParseFile_MissingKindIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.garden.yml")
	writeFile(t, dir, "bad.garden.yml", "name: oops\n")

	_, err := ParseFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kind")
}

func TestValidate_BuildActionSchema(t *testing.T) {
	body := map[string]any{
		"kind": "Build",
		"type": "container",
		"name": "api",
	}
	require.NoError(t, Validate(KindBuild, body))
}

func TestValidate_MissingRequiredFieldFails(t *testing.T) {
	body := map[string]any{
		"kind": "Build",
		"name": "api",
	}
	err := Validate(KindBuild, body)
	require.Error(t, err)
}

func TestValidate_ProjectSchema(t *testing.T) {
	body := map[string]any{
		"kind": "Project",
		"name": "demo",
		"environments": []any{
			map[string]any{"name": "dev"},
		},
	}
	require.NoError(t, Validate(KindProject, body))
}
