package clicmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVersion(t *testing.T) {
	defer SetVersion("dev")

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", cliVersion)

	SetVersion("")
	assert.Equal(t, "1.2.3", cliVersion, "an empty version string should not overwrite the last recorded one")
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand()
	assert.Equal(t, "version", cmd.Use)
	assert.NotNil(t, cmd.Run)
}
