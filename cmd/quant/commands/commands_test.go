package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"with password", "postgres://quant:s3cret@db:5432/newsquant", "postgres://quant:***@db:5432/newsquant"},
		{"no password", "postgres://quant@db:5432/newsquant", "postgres://quant@db:5432/newsquant"},
		{"not a url", "host=db user=quant", "host=db user=quant"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskPassword(tt.url))
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "evaluate", "snapshot", "brief", "scheduler", "api", "migrate", "status", "test-db"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	run, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.NotNil(t, run.Flags().Lookup("dry-run"))

	start, _, err := rootCmd.Find([]string{"scheduler", "start"})
	require.NoError(t, err)
	assert.NotNil(t, start.Flags().Lookup("with-api"))
}

func TestExecuteRecoversPanic(t *testing.T) {
	t.Setenv("ENV", "test")

	boom := &cobra.Command{
		Use: "boom",
		RunE: func(cmd *cobra.Command, args []string) error {
			var alerts map[string]int
			alerts["halt"]++
			return nil
		},
	}
	rootCmd.AddCommand(boom)
	rootCmd.SetArgs([]string{"boom"})

	var buf bytes.Buffer
	panicOutput = &buf
	t.Cleanup(func() {
		rootCmd.RemoveCommand(boom)
		rootCmd.SetArgs(nil)
		panicOutput = os.Stderr
	})

	err := Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "Unhandled panic, exiting", entry["message"])
	assert.Equal(t, "test", entry["env"])
	assert.Contains(t, entry["panic"], "nil map")
	assert.NotEmpty(t, entry["stack"])
}
