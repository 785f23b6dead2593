package clicmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildCommandFlags(t *testing.T) {
	cmd := NewBuildCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "build [names...]", cmd.Use)

	for _, name := range []string{"root", "env", "var", "force", "concurrency", "watch", "events"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "build command should have a %q flag", name)
	}
}

func TestNewGetStatusCommandIsNamedStatus(t *testing.T) {
	cmd := NewGetStatusCommand()
	assert.Equal(t, "status [names...]", cmd.Use)
	assert.Equal(t, "status", cmd.Name(), "must be named 'status' so it nests under 'get' as 'garden get status'")
}

func TestSortedKeys(t *testing.T) {
	m := map[stringerKey]int{
		{val: "b"}: 2,
		{val: "a"}: 1,
		{val: "c"}: 3,
	}

	keys := sortedKeys(m)

	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = k.String()
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

type stringerKey struct{ val string }

func (k stringerKey) String() string { return k.val }
