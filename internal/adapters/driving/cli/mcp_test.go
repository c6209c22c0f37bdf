package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestMCPCmd_HasServe(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"mcp", "serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", cmd.Name())
}
