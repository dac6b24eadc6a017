package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbarchive/pkg/config"
)

// newSweepFlagSet registers the sweep command's flags on a throwaway
// command so tests can parse arguments without touching sweepCmd.
func newSweepFlagSet() *cobra.Command {
	cmd := &cobra.Command{Use: "sweep", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "")
	cmd.Flags().DurationVar(&pacing, "interval", 0, "")
	cmd.Flags().IntVar(&requestsRate, "requests-per-minute", 0, "")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "")
	return cmd
}

func TestFlagOverridesSkipUnsetFlags(t *testing.T) {
	cmd := newSweepFlagSet()
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	assert.Empty(t, flagOverrides(cmd))
}

func TestFlagOverridesCarryChangedFlags(t *testing.T) {
	cmd := newSweepFlagSet()
	cmd.SetArgs([]string{"--interval", "5s", "--requests-per-minute", "30"})
	require.NoError(t, cmd.Execute())

	flags := flagOverrides(cmd)
	assert.Equal(t, 5*time.Second, flags["interval"])
	assert.Equal(t, 30, flags["requests-per-minute"])
	assert.NotContains(t, flags, "output")
	assert.NotContains(t, flags, "log-level")
}

func TestConfigIntervalSurvivesUnsetFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
pacing:
  interval: 5s
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cmd := newSweepFlagSet()
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	cfg, err := config.Load(path, flagOverrides(cmd))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Pacing.Interval)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
