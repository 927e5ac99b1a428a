package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	return nil
}

func TestRootCommands(t *testing.T) {
	for _, name := range []string{"migrate", "ingest", "categorize", "correct", "review", "proposals", "rules", "contacts", "personal", "categories", "version"} {
		assert.NotNil(t, subcommand(rootCmd, name), "%s command should be registered", name)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		parent *cobra.Command
		subs   []string
	}{
		{proposalsCmd(), []string{"list", "approve", "reject"}},
		{rulesCmd(), []string{"list", "add", "import"}},
		{contactsCmd(), []string{"show", "alias"}},
		{personalCmd(), []string{"list"}},
		{categoriesCmd(), []string{"list", "add"}},
	}

	for _, tt := range tests {
		t.Run(tt.parent.Name(), func(t *testing.T) {
			for _, name := range tt.subs {
				assert.NotNil(t, subcommand(tt.parent, name), "%s %s should exist", tt.parent.Name(), name)
			}
		})
	}
}

func TestAddRuleCmd_Flags(t *testing.T) {
	cmd := addRuleCmd()

	flag := cmd.Flag("confidence")
	require.NotNil(t, flag)
	assert.Equal(t, "0.95", flag.DefValue)
	assert.NotNil(t, cmd.Flag("regex"))
}

func TestListProposalsCmd_DefaultStatus(t *testing.T) {
	flag := listProposalsCmd().Flag("status")
	require.NotNil(t, flag)
	assert.Equal(t, "pending", flag.DefValue)
}

func TestFormatVotes(t *testing.T) {
	assert.Equal(t, "Entertainment:4 Shopping:1 Utilities:1",
		formatVotes(map[string]int{"Utilities": 1, "Entertainment": 4, "Shopping": 1}))
	assert.Equal(t, "", formatVotes(nil))
}
