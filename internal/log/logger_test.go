package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithChannelAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	l := WithChannel("eventsub", "1234").Output(&buf)

	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "eventsub", entry[FieldComponent])
	assert.Equal(t, "1234", entry[FieldChannelID])
	assert.Equal(t, "tb", entry["service"])
	assert.Equal(t, "hello", entry["message"])
}

func TestWithComponentAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent("helix").Output(&buf)

	l.Warn().Int(FieldStatus, 408).Msg("timeout")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "helix", entry[FieldComponent])
	assert.Equal(t, float64(408), entry[FieldStatus])
	assert.Equal(t, "warn", entry["level"])
}
