package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbarchive/pkg/config"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"bogus", zerolog.InfoLevel, true},
	}

	for _, tc := range cases {
		got, err := parseLogLevel(tc.input)
		if tc.wantErr {
			assert.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "shouting"})
	assert.Error(t, err)
}

func TestWithFieldsReturnsNewLogger(t *testing.T) {
	base, err := New(&config.LoggingConfig{Level: "disabled"})
	require.NoError(t, err)

	derived := base.WithField("uid", "2668367923")
	assert.NotSame(t, base, derived)

	// Both remain usable.
	base.Info("base")
	derived.WithError(assert.AnError).Warn("derived")
}

func TestGetLoggerReturnsDefault(t *testing.T) {
	assert.NotNil(t, GetLogger())
}
