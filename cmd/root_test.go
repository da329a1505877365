package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"evaluate", "audit", "import", "fix", "split", "publish", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "funnel-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestEvaluateCommand_Flags(t *testing.T) {
	for _, name := range []string{"funnel", "prices", "funnel-id"} {
		require.NotNil(t, evaluateCmd.Flags().Lookup(name), "evaluate should have --%s", name)
	}

	format := evaluateCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	fail := evaluateCmd.Flags().Lookup("fail-on-blocker")
	require.NotNil(t, fail)
	assert.Equal(t, "false", fail.DefValue)
}

func TestAuditCommand_Flags(t *testing.T) {
	require.NotNil(t, auditCmd.Flags().Lookup("format"))
	require.NotNil(t, auditCmd.Flags().Lookup("fail-on-blocker"))
}

func TestImportCommand_Flags(t *testing.T) {
	flag := importCmd.Flags().Lookup("funnel")
	require.NotNil(t, flag)
	assert.Equal(t, "stringSlice", flag.Value.Type())
	require.NotNil(t, importCmd.Flags().Lookup("prices"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPositionalArgs(t *testing.T) {
	assert.Error(t, fixCmd.Args(fixCmd, []string{"fun_1"}))
	assert.NoError(t, fixCmd.Args(fixCmd, []string{"fun_1", "mixed-billing-c1"}))
	assert.Error(t, splitCmd.Args(splitCmd, nil))
	assert.NoError(t, publishCmd.Args(publishCmd, []string{"fun_1"}))
	assert.Error(t, publishCmd.Args(publishCmd, []string{"a", "b"}))
}
