package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	SetVerbose(false)
	_ = Configure(Options{Format: FormatConsole})
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "test message arg")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Info("info message")

	assert.Zero(t, buf.Len(), "expected no output when verbose is disabled")
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Warn("disk %d%% full", 90)

	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "disk 90% full")
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Ingest")

	assert.Contains(t, buf.String(), "=== Ingest ===")
}

func TestConfigure_JSON(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Configure(Options{Level: "info", Format: FormatJSON}))

	Info("document %s ready", "abc")

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "document abc ready", entry["msg"])
}

func TestConfigure_Invalid(t *testing.T) {
	defer reset()

	assert.Error(t, Configure(Options{Level: "loud"}))
	assert.Error(t, Configure(Options{Format: "xml"}))
}
