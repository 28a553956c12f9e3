package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"reconcile", "history", "stats"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestReconcile_RequiresPurchaseID(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"reconcile"})
	assert.ErrorContains(t, root.Execute(), "accepts 1 arg")
}

func TestStats_DefaultItems(t *testing.T) {
	cmd := newStatsCommand()
	items, err := cmd.Flags().GetStringSlice("item")
	require.NoError(t, err)
	assert.Equal(t, []string{"status_count", "provider_count", "transaction_total"}, items)
}
