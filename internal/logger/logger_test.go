package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		_ = SetFormat("text")
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Debug("test message %s", "arg")

	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), `msg="test message arg"`)
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	buf := capture(t, false)

	Debug("test message")
	Info("info message")
	Section("Stage")

	assert.Zero(t, buf.Len())
}

func TestSection(t *testing.T) {
	buf := capture(t, true)

	Section("normalize_drugs")

	assert.Contains(t, buf.String(), "=== normalize_drugs ===")
	assert.Contains(t, buf.String(), "section=normalize_drugs")
}

func TestInfo(t *testing.T) {
	buf := capture(t, true)

	Info("cache %s", "hit")

	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), `msg="cache hit"`)
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	buf := capture(t, false)

	Warn("provider %s unavailable", "openfda")

	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), `msg="provider openfda unavailable"`)
}

func TestSetFormat_JSON(t *testing.T) {
	buf := capture(t, false)
	require.NoError(t, SetFormat("json"))

	WithFields(map[string]any{"stage": "assess_risk"}).Warn("slow stage")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "slow stage", entry["msg"])
	assert.Equal(t, "assess_risk", entry["stage"])
}

func TestSetFormat_Unknown(t *testing.T) {
	capture(t, false)

	assert.Error(t, SetFormat("xml"))
}

func TestConcurrentAccess(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			SetVerbose(n%2 == 0)
			Debug("debug %d", n)
			Warn("warn %d", n)
			_ = IsVerbose()
		}(i)
	}
	wg.Wait()
	SetVerbose(false)
}
