package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	tests := []struct {
		use   string
		flags []string
	}{
		{"serve", []string{"no-ingestion", "no-relay", "no-scheduler"}},
		{"reevaluate-demurrage", []string{"as-of"}},
		{"relay-events", []string{"once"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			cmd, _, err := root.Find([]string{tt.use})
			require.NoError(t, err)
			assert.Equal(t, tt.use, cmd.Name())
			assert.NotNil(t, cmd.RunE)
			for _, f := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(f), "flag %s", f)
			}
		})
	}
}

func TestSubcommandsRejectArgs(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"serve", "reevaluate-demurrage", "relay-events"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Error(t, cmd.Args(cmd, []string{"extra"}), name)
	}
}
