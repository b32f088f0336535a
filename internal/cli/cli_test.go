package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"start"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"seed"},
		{"worker", "run"},
		{"account", "create-admin"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"account", "create-admin", "--username", "boss"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestSeedAdminFlagsDefault(t *testing.T) {
	root := NewRootCommand()
	cmd, _, err := root.Find([]string{"seed"})
	require.NoError(t, err)

	req := adminRequest(cmd)
	assert.Equal(t, "admin", req.Username)
	assert.Equal(t, "admin@brewline.local", req.Email)
}
