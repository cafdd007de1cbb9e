package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "doctor-booking", "production", "info")

	l.Info().Str("doctor_id", "d-1").Msg("availability updated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "doctor-booking", line["service"])
	assert.Equal(t, "d-1", line["doctor_id"])
	assert.Equal(t, "availability updated", line["message"])
	assert.Contains(t, line, "caller")
}

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "doctor-booking", "production", "warn")

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "doctor-booking", "production", "chatty")

	l.Debug().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Info().Msg("kept")
	assert.NotZero(t, buf.Len())
}
