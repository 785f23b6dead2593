package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadProject_WalksAndDecodesActions(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, "garden.yml", `
kind: Project
name: my-project
variables:
  region: us-east-1
`)
	writeFile(t, root, "api/garden.yml", `
kind: Build
type: container
name: api
spec:
  dockerfile: Dockerfile
`)
	writeFile(t, root, "web/garden.yml", `
kind: Deploy
type: container
name: web
build: api
dependencies:
  - build.api
spec:
  replicas: 1
`)

	proj, err := LoadProject(context.Background(), root, LoadOptions{})
	require.NoError(t, err)

	require.Equal(t, "my-project", proj.Name)
	require.Equal(t, map[string]any{"region": "us-east-1"}, proj.Variables)
	require.Len(t, proj.Actions, 2)

	var names []string
	for _, a := range proj.Actions {
		names = append(names, a.Name)
	}
	require.ElementsMatch(t, []string{"api", "web"}, names)
}

func TestLoadProject_RequiresRegistryForModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "garden.yml", `
kind: Project
name: my-project
`)
	writeFile(t, root, "svc/garden.yml", `
kind: Module
type: container
name: svc
spec:
  dockerfile: Dockerfile
`)

	_, err := LoadProject(context.Background(), root, LoadOptions{})
	require.Error(t, err)
}

func TestLoadProject_RenderTemplateExpandsConfigTemplate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "garden.yml", `
kind: Project
name: my-project
`)
	writeFile(t, root, "templates/garden.yml", `
kind: ConfigTemplate
name: web-template
inputs:
  type: object
  properties:
    name:
      type: string
configs:
  - kind: Deploy
    type: container
    name: '${inputs.name}'
`)
	writeFile(t, root, "instances/garden.yml", `
kind: RenderTemplate
name: checkout
template: web-template
inputs:
  name: checkout
`)

	proj, err := LoadProject(context.Background(), root, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, proj.Actions, 1)
	require.Equal(t, "checkout-checkout", proj.Actions[0].Name)
}

func TestLoadProject_UnknownTemplateReferenceFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "garden.yml", `
kind: Project
name: my-project
`)
	writeFile(t, root, "instances/garden.yml", `
kind: RenderTemplate
name: checkout
template: does-not-exist
inputs: {}
`)

	_, err := LoadProject(context.Background(), root, LoadOptions{})
	require.Error(t, err)
}
