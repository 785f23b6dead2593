package clicmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableOverrides(t *testing.T) {
	t.Setenv("GARDEN_VAR_REGION", "eu-west")
	t.Setenv("GARDEN_VAR_ZONE", "eu-west-1a")
	t.Setenv("NOT_GARDEN_IGNORED", "x")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringArray("var", nil, "")
	require.NoError(t, cmd.Flags().Set("var", "replicas=3"))
	require.NoError(t, cmd.Flags().Set("var", "region=us-east"))

	overrides := variableOverrides(cmd)

	assert.Equal(t, "eu-west-1a", overrides["zone"], "GARDEN_VAR_ env vars should be lowercased into overrides")
	assert.Equal(t, "3", overrides["replicas"])
	assert.NotContains(t, overrides, "not_garden_ignored")
	assert.Equal(t, "us-east", overrides["region"], "--var flags should win over GARDEN_VAR_ env vars")
}

func TestMergeVariables(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	override := map[string]any{"b": 3, "c": 4}

	merged := mergeVariables(base, override)

	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 3, merged["b"], "later layers should win")
	assert.Equal(t, 4, merged["c"])
}

func TestProjectRoot(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("root", "", "")
	require.NoError(t, cmd.Flags().Set("root", "/tmp/my-project"))

	root, err := projectRoot(cmd)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/my-project", root)
}

func TestProjectRootDefaultsToWorkingDirectory(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("root", "", "")

	root, err := projectRoot(cmd)

	require.NoError(t, err)
	assert.NotEmpty(t, root)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	require.NotNil(t, root)
	assert.Equal(t, "garden", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"build", "deploy", "run", "test", "get", "config", "version"} {
		assert.True(t, names[want], "root command should register %q", want)
	}
}
