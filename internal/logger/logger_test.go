package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelFiltersMessages(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel("info")

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Info("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	require.NoError(t, SetLevel(""))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetLevelRejectsUnknownName(t *testing.T) {
	defer SetLevel("info")
	require.NoError(t, SetLevel("error"))

	assert.ErrorContains(t, SetLevel("loud"), `unknown log level "loud"`)
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Errorf("capture %s failed", errors.New("device gone"), "mic")
	assert.Contains(t, buf.String(), "capture mic failed")
	assert.Contains(t, buf.String(), "device gone")
}

func TestWithTagsMeterID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	l := With("abc-123")
	l.Info().Msg("tick")
	assert.Contains(t, buf.String(), "abc-123")
}

func TestSetOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vumeter.log")
	require.NoError(t, SetOutputFile(path))
	Info("to file")
	CloseLogFile()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
