package clicmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSectionKey(t *testing.T) {
	section, key, err := splitSectionKey("providers.region")

	require.NoError(t, err)
	assert.Equal(t, "providers", section)
	assert.Equal(t, "region", key)
}

func TestSplitSectionKeyRejectsMissingDot(t *testing.T) {
	_, _, err := splitSectionKey("providers")
	assert.Error(t, err)
}

func TestSplitSectionKeyRejectsEmptyParts(t *testing.T) {
	_, _, err := splitSectionKey(".region")
	assert.Error(t, err)

	_, _, err = splitSectionKey("providers.")
	assert.Error(t, err)
}

func TestNewConfigCommandRegistersSubcommands(t *testing.T) {
	cmd := NewConfigCommand()

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["get"])
	assert.True(t, names["set"])
	assert.True(t, names["clear"])

	globalFlag := cmd.PersistentFlags().Lookup("global")
	assert.NotNil(t, globalFlag, "config command should have a --global flag")
}
