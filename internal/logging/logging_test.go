package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"datahub/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  zerolog.Level
		known bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"INFO", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
		{"Warn", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"verbose", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		got, known := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.known, known, tt.in)
	}
}

func TestSetupWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "datahub.log")
	logger, closer := Setup(config.LoggingConfig{Level: "warn", File: path, Env: "production"})

	logger.Info().Msg("dropped")
	logger.Warn().Str("worksheet", "HLD_Pole").Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "one JSON line expected")
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "HLD_Pole", entry["worksheet"])
	assert.Equal(t, "warn", entry["level"])
}
