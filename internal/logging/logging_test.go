package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fmuoria/recruit-crm/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info", Format: "json", Service: "recruit-crm"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Int("inserted", 3).Msg("commit finished")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "recruit-crm", entry["service"])
	assert.Equal(t, "commit finished", entry["message"])
	assert.EqualValues(t, 3, entry["inserted"])
	assert.Contains(t, entry, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "debug", Format: "console"}, &buf)

	log.Debug().Str("upload_id", "abc").Msg("upload resolved")
	out := buf.String()
	assert.Contains(t, out, "upload resolved")
	assert.Contains(t, out, "upload_id=")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
