package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLoggerTagsFields(t *testing.T) {
	var buf bytes.Buffer
	log := Session(New(&buf, "debug", "json"), "s-1", "e-1")

	log.Info().Str("reason", "timeout").Msg("Session finalized")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "s-1", line["session_id"])
	assert.Equal(t, "e-1", line["exam_id"])
	assert.Equal(t, "timeout", line["reason"])
	assert.Equal(t, "Session finalized", line["message"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "chatty", "json")

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
