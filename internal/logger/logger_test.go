package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "hablara.log")

	log, err := New("hablara", "info", path)
	require.NoError(t, err)

	log.Debugw("hidden")
	log.Infow("recorder: recording started", "device", "mic")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"service":"hablara"`)
	assert.Contains(t, out, `"msg":"recorder: recording started"`)
	assert.Contains(t, out, `"device":"mic"`)
	assert.NotContains(t, out, "hidden")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("hablara", "loud")
	assert.Error(t, err)
}
